package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pos-backoffice/internal/core"
)

// Services bundles the domain services the HTTP layer exposes.
type Services struct {
	Users       core.UserService
	Inventory   core.InventoryService
	Sales       core.SaleService
	Orders      core.OrderService
	Repairs     core.RepairService
	Transfers   core.TransferService
	Procurement core.ProcurementService
	Quotes      core.QuoteService
	Expenses    core.ExpenseService
	Cashbook    core.CashbookService
	Timeline    core.TimelineService
}

// Handler holds the domain services and the chi router.
type Handler struct {
	users       core.UserService
	inventory   core.InventoryService
	sales       core.SaleService
	orders      core.OrderService
	repairs     core.RepairService
	transfers   core.TransferService
	procurement core.ProcurementService
	quotes      core.QuoteService
	expenses    core.ExpenseService
	cashbook    core.CashbookService
	timeline    core.TimelineService
	jwtSecret   string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc Services, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		users:       svc.Users,
		inventory:   svc.Inventory,
		sales:       svc.Sales,
		orders:      svc.Orders,
		repairs:     svc.Repairs,
		transfers:   svc.Transfers,
		procurement: svc.Procurement,
		quotes:      svc.Quotes,
		expenses:    svc.Expenses,
		cashbook:    svc.Cashbook,
		timeline:    svc.Timeline,
		jwtSecret:   jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (401 JSON if unauthenticated) ───────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Staff and reference data
		r.Get("/api/units", h.listUnits)
		r.With(h.RequireRole("manager")).Post("/api/users", h.createUser)
		r.With(h.RequireRole("manager")).Get("/api/users", h.listUsers)
		r.With(h.RequireRole("manager")).Delete("/api/users/{id}", h.deactivateUser)
		r.Post("/api/customers", h.createCustomer)
		r.Get("/api/customers", h.listCustomers)
		r.Get("/api/customers/{id}", h.getCustomer)
		r.With(h.RequireRole("manager")).Put("/api/customers/{id}", h.updateCustomer)

		// Inventory
		r.Post("/api/categories", h.createCategory)
		r.Get("/api/categories", h.listCategories)
		r.With(h.RequireRole("manager", "storekeeper")).Post("/api/products", h.createProduct)
		r.Get("/api/products", h.listProducts)
		r.Get("/api/products/{id}", h.getProduct)
		r.With(h.RequireRole("manager", "storekeeper")).Put("/api/products/{id}", h.updateProduct)
		r.With(h.RequireRole("manager", "storekeeper")).Delete("/api/products/{id}", h.deleteProduct)
		r.With(h.RequireRole("manager", "storekeeper")).Post("/api/products/{id}/stock", h.adjustStock)
		r.With(h.RequireRole("manager", "storekeeper")).Post("/api/products/{id}/receive", h.receiveStock)
		r.Get("/api/products/{id}/entries", h.listStockEntries)

		// Sales, payments, refunds, loans
		r.With(h.RequireRole("manager", "cashier")).Post("/api/sales", h.completeSale)
		r.Get("/api/sales", h.listSales)
		r.Get("/api/sales/{id}", h.getSale)
		r.With(h.RequireRole("manager", "cashier")).Post("/api/sales/{id}/payments", h.recordPayment)
		r.With(h.RequireRole("manager")).Post("/api/sales/{id}/refund", h.refundSale)
		r.With(h.RequireRole("manager")).Post("/api/sales/{id}/check", h.markChecked)
		r.Get("/api/loans", h.loanSummary)

		// Staff orders
		r.Post("/api/orders", h.createOrder)
		r.Get("/api/orders", h.listOrders)
		r.Get("/api/orders/{id}", h.getOrder)
		r.Put("/api/orders/{id}", h.updateOrder)
		r.With(h.RequireRole("manager", "cashier")).Post("/api/orders/{id}/confirm", h.confirmOrder)
		r.With(h.RequireRole("manager", "cashier")).Post("/api/orders/{id}/reject", h.rejectOrder)
		r.Post("/api/orders/{id}/cancel", h.cancelOrder)
		r.Delete("/api/orders/{id}", h.deleteOrder)

		// Repairs
		r.With(h.RequireRole("manager")).Post("/api/job-types", h.createJobType)
		r.Get("/api/job-types", h.listJobTypes)
		r.Post("/api/repairs", h.createRepairJob)
		r.Get("/api/repairs", h.listRepairJobs)
		r.Get("/api/repairs/{id}", h.getRepairJob)
		r.Post("/api/repairs/{id}/start", h.repairTransition(repairStart))
		r.Post("/api/repairs/{id}/hold", h.repairTransition(repairHold))
		r.Post("/api/repairs/{id}/resume", h.repairTransition(repairResume))
		r.Post("/api/repairs/{id}/complete", h.repairTransition(repairComplete))
		r.Post("/api/repairs/{id}/collect", h.repairTransition(repairCollect))
		r.Post("/api/repairs/{id}/cancel", h.repairTransition(repairCancel))
		r.Post("/api/repairs/{id}/parts", h.addRepairPart)
		r.Post("/api/repairs/{id}/labour", h.addLabourCharge)
		r.Get("/api/repairs/{id}/invoice", h.getRepairInvoice)
		r.Post("/api/invoices/{id}/payments", h.recordRepairPayment)

		// Material requests and transfers
		r.Post("/api/material-requests", h.createMaterialRequest)
		r.Get("/api/material-requests", h.listMaterialRequests)
		r.Get("/api/material-requests/{id}", h.getMaterialRequest)
		r.Put("/api/material-requests/{id}", h.updateMaterialRequest)
		r.Post("/api/material-requests/{id}/resubmit", h.resubmitMaterialRequest)
		r.Delete("/api/material-requests/{id}", h.deleteMaterialRequest)
		r.With(h.RequireRole("manager", "storekeeper"), h.RequireUnit(core.UnitShop)).Post("/api/material-requests/{id}/approve", h.approveMaterialRequest)
		r.With(h.RequireRole("manager", "storekeeper"), h.RequireUnit(core.UnitShop)).Post("/api/material-requests/{id}/reject", h.rejectMaterialRequest)
		r.Get("/api/transfers", h.listTransfers)
		r.Get("/api/transfers/{id}", h.getTransfer)
		r.Get("/api/transfers/{id}/settlements", h.listSettlements)
		r.Post("/api/transfers/{id}/pay", h.payTransfer)
		r.With(h.RequireRole("manager")).Post("/api/transfers/{id}/settlements", h.recordSettlement)
		r.With(h.RequireRole("manager", "storekeeper"), h.RequireUnit(core.UnitShop)).Post("/api/settlements/{id}/clear", h.clearSettlement)

		// Procurement
		r.With(h.RequireRole("manager", "storekeeper")).Group(func(r chi.Router) {
			r.Post("/api/suppliers", h.createSupplier)
			r.Get("/api/suppliers", h.listSuppliers)
			r.Post("/api/purchase-orders", h.createPurchaseOrder)
			r.Get("/api/purchase-orders", h.listPurchaseOrders)
			r.Get("/api/purchase-orders/{id}", h.getPurchaseOrder)
			r.Post("/api/purchase-orders/{id}/order", h.markPurchaseOrderOrdered)
			r.Post("/api/purchase-orders/{id}/receive", h.receivePurchaseOrder)
			r.Post("/api/purchase-orders/{id}/cancel", h.cancelPurchaseOrder)
		})

		// Quotes and expenses
		r.Post("/api/quotes", h.createQuote)
		r.Get("/api/quotes", h.listQuotes)
		r.Get("/api/quotes/{id}", h.getQuote)
		r.Delete("/api/quotes/{id}", h.deleteQuote)
		r.With(h.RequireRole("manager")).Post("/api/expenses", h.recordExpense)
		r.Get("/api/expenses", h.listExpenses)

		// Cashbook, dashboards, timeline
		r.With(h.RequireRole("manager", "cashier")).Post("/api/cashbook/close", h.submitCashClose)
		r.Get("/api/cashbook/closes", h.listCashCloses)
		r.Get("/api/dashboard", h.dashboard)
		r.Get("/api/reports/summary", h.reportSummary)
		r.Get("/api/timeline", h.listTimeline)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// urlID extracts an integer {id} URL parameter; the bool reports validity.
func urlID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter, returning 0 when absent or bad.
func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// queryTime parses an RFC 3339 or YYYY-MM-DD query parameter, nil when absent.
func queryTime(r *http.Request, key string) *time.Time {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
