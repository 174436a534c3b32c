package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

// ── Categories ───────────────────────────────────────────────────────────────

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	cat, err := h.inventory.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, cat)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.inventory.GetCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, cats)
}

// ── Products ─────────────────────────────────────────────────────────────────

type productRequest struct {
	CategoryID     *int            `json:"category_id"`
	Name           string          `json:"name"`
	BuyingPrice    decimal.Decimal `json:"buying_price"`
	SellingPrice   decimal.Decimal `json:"selling_price"`
	WholesalePrice decimal.Decimal `json:"wholesale_price"`
	Quantity       decimal.Decimal `json:"quantity"`
	Threshold      decimal.Decimal `json:"threshold"`
}

func (p productRequest) toInput() core.ProductInput {
	return core.ProductInput{
		CategoryID:     p.CategoryID,
		Name:           p.Name,
		BuyingPrice:    p.BuyingPrice,
		SellingPrice:   p.SellingPrice,
		WholesalePrice: p.WholesalePrice,
		Quantity:       p.Quantity,
		Threshold:      p.Threshold,
	}
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	product, err := h.inventory.CreateProduct(r.Context(), req.toInput(), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req productRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.inventory.UpdateProduct(r.Context(), id, req.toInput(), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.inventory.DeleteProduct(r.Context(), id, authFromContext(r.Context()).UserID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity decimal.Decimal `json:"quantity"`
		Note     string          `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.inventory.UpdateStockQuantity(r.Context(), id, req.Quantity, req.Note, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) receiveStock(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Quantity decimal.Decimal `json:"quantity"`
		Note     string          `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.inventory.ReceiveStock(r.Context(), id, req.Quantity, req.Note, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	product, err := h.inventory.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	lowStockOnly := r.URL.Query().Get("low_stock") == "true"
	products, err := h.inventory.GetProducts(r.Context(), lowStockOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (h *Handler) listStockEntries(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	kind := core.StockEntryKind(r.URL.Query().Get("kind"))
	entries, err := h.inventory.GetStockEntries(r.Context(), id, kind, queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, entries)
}
