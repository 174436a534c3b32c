package web

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

// ── Quotes ───────────────────────────────────────────────────────────────────

func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName  string          `json:"customer_name"`
		CustomerPhone string          `json:"customer_phone"`
		VatPercent    decimal.Decimal `json:"vat_percent"`
		ValidUntil    *time.Time      `json:"valid_until"`
		Items         []struct {
			ProductID *int            `json:"product_id"`
			Name      string          `json:"name"`
			Quantity  decimal.Decimal `json:"quantity"`
			UnitPrice decimal.Decimal `json:"unit_price"`
		} `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CustomerName == "" || len(req.Items) == 0 {
		writeError(w, r, "customer_name and items are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	items := make([]core.QuoteItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, core.QuoteItemInput{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	quote, err := h.quotes.CreateQuote(r.Context(), req.CustomerName, req.CustomerPhone, items, req.VatPercent, req.ValidUntil, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, quote)
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	quote, err := h.quotes.GetQuote(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, quote)
}

func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.quotes.GetQuotes(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, quotes)
}

func (h *Handler) deleteQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.quotes.DeleteQuote(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Expenses ─────────────────────────────────────────────────────────────────

func (h *Handler) recordExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit        string          `json:"unit"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        *time.Time      `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}
	unit := core.UnitCode(req.Unit)
	if unit == "" {
		unit = core.UnitShop
	}
	category := core.ExpenseCategory(req.Category)
	if category == "" {
		category = core.ExpenseOther
	}

	expense, err := h.expenses.RecordExpense(r.Context(), unit, category, req.Amount, req.Description, date, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, expense)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	unit := core.UnitCode(r.URL.Query().Get("unit"))
	expenses, err := h.expenses.GetExpenses(r.Context(), unit, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, expenses)
}

// ── Cash close, dashboard, report ────────────────────────────────────────────

func (h *Handler) submitCashClose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Unit   string          `json:"unit"`
		Date   *time.Time      `json:"date"`
		Actual decimal.Decimal `json:"actual_amount"`
		Notes  string          `json:"notes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}
	unit := core.UnitCode(req.Unit)
	if unit == "" {
		unit = core.UnitShop
	}

	cc, err := h.cashbook.SubmitCashClose(r.Context(), unit, date, req.Actual, req.Notes, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, cc)
}

func (h *Handler) listCashCloses(w http.ResponseWriter, r *http.Request) {
	unit := core.UnitCode(r.URL.Query().Get("unit"))
	closes, err := h.cashbook.GetCashCloses(r.Context(), unit, queryTime(r, "from"), queryTime(r, "to"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, closes)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	unit := core.UnitCode(r.URL.Query().Get("unit"))
	if unit == "" {
		unit = core.UnitShop
	}
	summary, err := h.cashbook.Dashboard(r.Context(), unit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	unit := core.UnitCode(r.URL.Query().Get("unit"))
	if unit == "" {
		unit = core.UnitShop
	}
	from := queryTime(r, "from")
	to := queryTime(r, "to")
	if from == nil || to == nil {
		writeError(w, r, "from and to are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	report, err := h.cashbook.Report(r.Context(), unit, *from, *to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// ── Timeline ─────────────────────────────────────────────────────────────────

func (h *Handler) listTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.timeline.GetEvents(r.Context(), q.Get("entity_type"), core.TimelineEventKind(q.Get("kind")), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, events)
}
