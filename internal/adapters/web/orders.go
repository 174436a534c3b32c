package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

type orderLineRequest struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Portion   string          `json:"portion"`
}

func orderLines(reqs []orderLineRequest) []core.OrderLineInput {
	lines := make([]core.OrderLineInput, 0, len(reqs))
	for _, l := range reqs {
		lines = append(lines, core.OrderLineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Portion:   core.Portion(l.Portion),
		})
	}
	return lines
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID *int               `json:"customer_id"`
		OrderType  string             `json:"order_type"`
		Unit       string             `json:"unit"`
		Lines      []orderLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, r, "lines are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), req.CustomerID, core.OrderType(req.OrderType),
		core.UnitCode(req.Unit), orderLines(req.Lines), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, order)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Lines []orderLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateOrder(r.Context(), id, orderLines(req.Lines), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Discount   decimal.Decimal `json:"discount"`
		AmountPaid decimal.Decimal `json:"amount_paid"`
		Method     string          `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, sale, err := h.orders.ConfirmOrder(r.Context(), id, core.ConfirmOrderInput{
		Discount:   req.Discount,
		AmountPaid: req.AmountPaid,
		Method:     core.PaymentMethod(req.Method),
	}, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	type response struct {
		Order *core.Order `json:"order"`
		Sale  *core.Sale  `json:"sale"`
	}
	writeJSON(w, response{Order: order, Sale: sale})
}

func (h *Handler) rejectOrder(w http.ResponseWriter, r *http.Request) {
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

	order, err := h.orders.RejectOrder(r.Context(), id, req.Reason, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	status := core.OrderStatus(r.URL.Query().Get("status"))
	orders, err := h.orders.GetOrders(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, orders)
}
