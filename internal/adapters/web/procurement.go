package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	supplier, err := h.procurement.CreateSupplier(r.Context(), req.Name, req.Phone, req.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, supplier)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.procurement.GetSuppliers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}

func (h *Handler) createPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SupplierID int    `json:"supplier_id"`
		Notes      string `json:"notes"`
		Lines      []struct {
			ProductID int             `json:"product_id"`
			Quantity  decimal.Decimal `json:"quantity"`
			UnitCost  decimal.Decimal `json:"unit_cost"`
		} `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SupplierID <= 0 || len(req.Lines) == 0 {
		writeError(w, r, "supplier_id and lines are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	lines := make([]core.POLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.POLineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost})
	}

	po, err := h.procurement.CreatePurchaseOrder(r.Context(), req.SupplierID, lines, req.Notes, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, po)
}

func (h *Handler) markPurchaseOrderOrdered(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	po, err := h.procurement.MarkOrdered(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) receivePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reference string `json:"reference"`
		Lines     []struct {
			POLineID int             `json:"po_line_id"`
			Quantity decimal.Decimal `json:"quantity"`
		} `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	lines := make([]core.ReceiptLineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, core.ReceiptLineInput{POLineID: l.POLineID, Quantity: l.Quantity})
	}

	receipt, err := h.procurement.ReceiveGoods(r.Context(), id, req.Reference, lines, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, receipt)
}

func (h *Handler) cancelPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	po, err := h.procurement.CancelPurchaseOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) getPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	po, err := h.procurement.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, po)
}

func (h *Handler) listPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	status := core.POStatus(r.URL.Query().Get("status"))
	orders, err := h.procurement.GetPurchaseOrders(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, orders)
}
