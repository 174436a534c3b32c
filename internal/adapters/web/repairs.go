package web

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pos-backoffice/internal/core"
)

func (h *Handler) createJobType(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string           `json:"name"`
		FixedPrice *decimal.Decimal `json:"fixed_price"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, r, "name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	jt, err := h.repairs.CreateJobType(r.Context(), req.Name, req.FixedPrice)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, jt)
}

func (h *Handler) listJobTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.repairs.GetJobTypes(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, types)
}

func (h *Handler) createRepairJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID   *int            `json:"customer_id"`
		CustomerName string          `json:"customer_name"`
		Phone        string          `json:"phone"`
		ItemName     string          `json:"item_name"`
		Description  string          `json:"description"`
		JobTypeID    *int            `json:"job_type_id"`
		Priority     string          `json:"priority"`
		TechnicianID *int            `json:"technician_id"`
		IntakeDate   *time.Time      `json:"intake_date"`
		DueDate      *time.Time      `json:"due_date"`
		Tax          decimal.Decimal `json:"tax"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemName == "" {
		writeError(w, r, "item_name is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	job, err := h.repairs.CreateJob(r.Context(), core.RepairJobInput{
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		ItemName:     req.ItemName,
		Description:  req.Description,
		JobTypeID:    req.JobTypeID,
		Priority:     core.RepairPriority(req.Priority),
		TechnicianID: req.TechnicianID,
		IntakeDate:   req.IntakeDate,
		DueDate:      req.DueDate,
		Tax:          req.Tax,
	}, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, job)
}

// repairAction names a job lifecycle endpoint.
type repairAction int

const (
	repairStart repairAction = iota
	repairHold
	repairResume
	repairComplete
	repairCollect
	repairCancel
)

// repairTransition returns a handler that applies one lifecycle action.
func (h *Handler) repairTransition(action repairAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r)
		if !ok {
			return
		}
		actorID := authFromContext(r.Context()).UserID

		var job *core.RepairJob
		var err error
		switch action {
		case repairStart:
			job, err = h.repairs.StartJob(r.Context(), id, actorID)
		case repairHold:
			job, err = h.repairs.HoldJob(r.Context(), id, actorID)
		case repairResume:
			job, err = h.repairs.ResumeJob(r.Context(), id, actorID)
		case repairComplete:
			job, err = h.repairs.CompleteJob(r.Context(), id, actorID)
		case repairCollect:
			job, err = h.repairs.CollectJob(r.Context(), id, actorID)
		case repairCancel:
			job, err = h.repairs.CancelJob(r.Context(), id, actorID)
		}
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, job)
	}
}

func (h *Handler) addRepairPart(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		ProductID      *int            `json:"product_id"`
		Name           string          `json:"name"`
		QuantityUsed   decimal.Decimal `json:"quantity_used"`
		UnitCost       decimal.Decimal `json:"unit_cost"`
		TransferLineID *int            `json:"transfer_line_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	part, err := h.repairs.AddPart(r.Context(), id, core.PartInput{
		ProductID:      req.ProductID,
		Name:           req.Name,
		QuantityUsed:   req.QuantityUsed,
		UnitCost:       req.UnitCost,
		TransferLineID: req.TransferLineID,
	}, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, part)
}

func (h *Handler) addLabourCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	charge, err := h.repairs.AddLabour(r.Context(), id, req.Description, req.Amount, authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeCreated(w, charge)
}

func (h *Handler) recordRepairPayment(w http.ResponseWriter, r *http.Request) {
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

	invoice, err := h.repairs.RecordPayment(r.Context(), id, req.Amount, core.PaymentMethod(req.Method), authFromContext(r.Context()).UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, invoice)
}

func (h *Handler) getRepairJob(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	job, err := h.repairs.GetJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, job)
}

func (h *Handler) listRepairJobs(w http.ResponseWriter, r *http.Request) {
	status := core.RepairStatus(r.URL.Query().Get("status"))
	jobs, err := h.repairs.GetJobs(r.Context(), status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, jobs)
}

func (h *Handler) getRepairInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}
	invoice, err := h.repairs.GetInvoiceByJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	parts, err := h.repairs.GetJobParts(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	labour, err := h.repairs.GetLabourCharges(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	type response struct {
		Invoice *core.RepairInvoice  `json:"invoice"`
		Parts   []core.RepairJobPart `json:"parts"`
		Labour  []core.LabourCharge  `json:"labour"`
	}
	writeJSON(w, response{Invoice: invoice, Parts: parts, Labour: labour})
}
