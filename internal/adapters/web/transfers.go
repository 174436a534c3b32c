package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

type requestLineRequest struct {
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

func requestLines(reqs []requestLineRequest) []core.RequestLineInput {
	lines := make([]core.RequestLineInput, 0, len(reqs))
	for _, l := range reqs {
		lines = append(lines, core.RequestLineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return lines
}

func (h *Handler) createMaterialRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		JobID *int                 `json:"job_id"`
		Lines []requestLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, r, "lines are required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	mr, err := h.transfers.CreateRequest(r.Context(), req.JobID, requestLines(req.Lines), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, mr)
}

func (h *Handler) updateMaterialRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Lines []requestLineRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	mr, err := h.transfers.UpdateRequest(r.Context(), id, requestLines(req.Lines), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, mr)
}

func (h *Handler) resubmitMaterialRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	mr, err := h.transfers.ResubmitRequest(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, mr)
}

func (h *Handler) deleteMaterialRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	if err := h.transfers.DeleteRequest(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) approveMaterialRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	transfer, err := h.transfers.ApproveRequest(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, transfer)
}

func (h *Handler) rejectMaterialRequest(w http.ResponseWriter, r *http.Request) {
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

	mr, err := h.transfers.RejectRequest(r.Context(), id, req.Reason, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, mr)
}

func (h *Handler) getMaterialRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	mr, err := h.transfers.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, mr)
}

func (h *Handler) listMaterialRequests(w http.ResponseWriter, r *http.Request) {
	status := core.RequestStatus(r.URL.Query().Get("status"))
	requests, err := h.transfers.GetRequests(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, requests)
}

func (h *Handler) payTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	transfer, err := h.transfers.PayTransfer(r.Context(), id, req.Amount, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, transfer)
}

func (h *Handler) recordSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Note   string          `json:"note"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	transfer, err := h.transfers.RecordSettlement(r.Context(), id, req.Amount, req.Note, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, transfer)
}

func (h *Handler) clearSettlement(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	settlement, err := h.transfers.ClearSettlement(r.Context(), id, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, settlement)
}

func (h *Handler) getTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	transfer, err := h.transfers.GetTransfer(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, transfer)
}

func (h *Handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	status := core.TransferStatus(r.URL.Query().Get("status"))
	transfers, err := h.transfers.GetTransfers(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, transfers)
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	settlements, err := h.transfers.GetSettlements(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, settlements)
}
