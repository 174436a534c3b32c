package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

type saleLineRequest struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func (h *Handler) completeSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID *int              `json:"customer_id"`
		Unit       string            `json:"unit"`
		OrderType  string            `json:"order_type"`
		Items      []saleLineRequest `json:"items"`
		Discount   decimal.Decimal   `json:"discount"`
		AmountPaid decimal.Decimal   `json:"amount_paid"`
		Method     string            `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, "items are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	in := core.CompleteSaleRequest{
		CustomerID: req.CustomerID,
		Unit:       core.UnitCode(req.Unit),
		OrderType:  core.OrderType(req.OrderType),
		Discount:   req.Discount,
		AmountPaid: req.AmountPaid,
		Method:     core.PaymentMethod(req.Method),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, core.SaleLineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	sale, err := h.sales.CompleteSale(r.Context(), in, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, sale)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Method string          `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sale, err := h.sales.RecordPayment(r.Context(), id, req.Amount, core.PaymentMethod(req.Method), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) refundSale(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sale, err := h.sales.RefundSale(r.Context(), id, req.Reason, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) markChecked(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	sale, err := h.sales.MarkChecked(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	sale, err := h.sales.GetSale(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.SaleFilter{
		Unit:          core.UnitCode(q.Get("unit")),
		PaymentStatus: core.PaymentStatus(q.Get("payment_status")),
		LoansOnly:     q.Get("loans") == "true",
		From:          queryTime(r, "from"),
		To:            queryTime(r, "to"),
	}
	sales, err := h.sales.GetSales(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, sales)
}

func (h *Handler) loanSummary(w http.ResponseWriter, r *http.Request) {
	rows, err := h.sales.GetLoanSummary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, rows)
}
