package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

// ── Users ────────────────────────────────────────────────────────────────────

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		FullName string `json:"full_name"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Unit     string `json:"unit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" || req.Role == "" {
		writeError(w, r, "username, password, and role are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, req.FullName, req.Password, core.Role(req.Role), core.UnitCode(req.Unit))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.GetUsers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, users)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.users.DeactivateUser(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Units ────────────────────────────────────────────────────────────────────

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.users.GetUnits(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, units)
}

// ── Customers ────────────────────────────────────────────────────────────────

type customerRequest struct {
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	CreditLimit   *decimal.Decimal `json:"credit_limit"`
	IsVIP         bool             `json:"is_vip"`
	IsBlacklisted bool             `json:"is_blacklisted"`
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	customer, err := h.users.CreateCustomer(r.Context(), req.Name, req.Phone, req.CreditLimit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	customer, err := h.users.UpdateCustomer(r.Context(), id, req.Name, req.Phone, req.CreditLimit, req.IsVIP, req.IsBlacklisted)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, customer)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	customer, err := h.users.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, customer)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.users.GetCustomers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, customers)
}
