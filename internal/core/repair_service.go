package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepairJobInput holds the fields required to open a repair job. A nil
// IntakeDate defaults to now.
type RepairJobInput struct {
	CustomerID   *int
	CustomerName string
	Phone        string
	ItemName     string
	Description  string
	JobTypeID    *int
	Priority     RepairPriority
	TechnicianID *int
	IntakeDate   *time.Time
	DueDate      *time.Time
	Tax          decimal.Decimal
}

// PartInput is one material consumed by a job.
type PartInput struct {
	ProductID      *int
	Name           string
	QuantityUsed   decimal.Decimal
	UnitCost       decimal.Decimal
	TransferLineID *int
}

// RepairService manages workshop jobs, their invoices, and repair payments.
type RepairService interface {
	CreateJobType(ctx context.Context, name string, fixedPrice *decimal.Decimal) (*JobType, error)
	GetJobTypes(ctx context.Context) ([]JobType, error)

	// CreateJob opens a job in "received" and creates its invoice.
	CreateJob(ctx context.Context, in RepairJobInput, actorID int) (*RepairJob, error)

	// Job lifecycle. Each transition is guarded by the current status.
	StartJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)
	HoldJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)
	ResumeJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)
	CompleteJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)
	CollectJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)
	CancelJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error)

	// AddPart records a material used and recomputes the invoice.
	AddPart(ctx context.Context, jobID int, in PartInput, actorID int) (*RepairJobPart, error)

	// AddLabour records a labour charge and recomputes the invoice.
	AddLabour(ctx context.Context, jobID int, description string, amount decimal.Decimal, actorID int) (*LabourCharge, error)

	// RecordPayment appends a repair payment and re-derives the invoice's
	// paid amount and status. Materials are never auto-settled to the shop.
	RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, method PaymentMethod, actorID int) (*RepairInvoice, error)

	GetJob(ctx context.Context, jobID int) (*RepairJob, error)
	GetJobs(ctx context.Context, status RepairStatus) ([]RepairJob, error)
	GetInvoiceByJob(ctx context.Context, jobID int) (*RepairInvoice, error)
	GetJobParts(ctx context.Context, jobID int) ([]RepairJobPart, error)
	GetLabourCharges(ctx context.Context, jobID int) ([]LabourCharge, error)
}

type repairService struct {
	pool     *pgxpool.Pool
	timeline TimelineService
}

// NewRepairService constructs a RepairService backed by PostgreSQL.
func NewRepairService(pool *pgxpool.Pool, timeline TimelineService) RepairService {
	return &repairService{pool: pool, timeline: timeline}
}

// ── Job types ────────────────────────────────────────────────────────────────

func (s *repairService) CreateJobType(ctx context.Context, name string, fixedPrice *decimal.Decimal) (*JobType, error) {
	jt := &JobType{Name: name, FixedPrice: fixedPrice}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO job_types (name, fixed_price) VALUES ($1, $2) RETURNING id, created_at",
		name, fixedPrice,
	).Scan(&jt.ID, &jt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job type %q: %w", name, err)
	}
	return jt, nil
}

func (s *repairService) GetJobTypes(ctx context.Context) ([]JobType, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, fixed_price, created_at FROM job_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query job types: %w", err)
	}
	defer rows.Close()

	var types []JobType
	for rows.Next() {
		var jt JobType
		if err := rows.Scan(&jt.ID, &jt.Name, &jt.FixedPrice, &jt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job type: %w", err)
		}
		types = append(types, jt)
	}
	return types, rows.Err()
}

// ── Jobs ─────────────────────────────────────────────────────────────────────

func (s *repairService) CreateJob(ctx context.Context, in RepairJobInput, actorID int) (*RepairJob, error) {
	if in.Priority == "" {
		in.Priority = PriorityNormal
	}
	intake := time.Now()
	if in.IntakeDate != nil {
		intake = *in.IntakeDate
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	job := &RepairJob{
		JobNumber:    "JOB-" + uuid.NewString()[:8],
		CustomerID:   in.CustomerID,
		CustomerName: in.CustomerName,
		Phone:        in.Phone,
		ItemName:     in.ItemName,
		Description:  in.Description,
		JobTypeID:    in.JobTypeID,
		Status:       RepairReceived,
		Priority:     in.Priority,
		TechnicianID: in.TechnicianID,
		IntakeDate:   intake,
		DueDate:      in.DueDate,
		CreatedBy:    actorID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO repair_jobs (job_number, customer_id, customer_name, phone, item_name, description,
		                         job_type_id, status, priority, technician_id, intake_date, due_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`,
		job.JobNumber, job.CustomerID, job.CustomerName, job.Phone, job.ItemName, job.Description,
		job.JobTypeID, job.Status, job.Priority, job.TechnicianID, job.IntakeDate, job.DueDate, job.CreatedBy,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create repair job: %w", err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRepairJobCreated, ActorID: &actorID,
		EntityType: "repair_job", EntityID: &job.ID,
		Summary: fmt.Sprintf("Repair job %s opened for %s", job.JobNumber, job.ItemName),
	})
	if err != nil {
		return nil, err
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO repair_invoices (job_id, tax) VALUES ($1, $2) RETURNING id`,
		job.ID, RoundTwo(in.Tax),
	).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice for job %d: %w", job.ID, err)
	}
	if err := s.recomputeInvoiceTx(ctx, tx, invoiceID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit repair job: %w", err)
	}
	return job, nil
}

func (s *repairService) StartJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairInProgress, actorID, RepairReceived)
}

func (s *repairService) HoldJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairOnHold, actorID, RepairInProgress)
}

func (s *repairService) ResumeJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairInProgress, actorID, RepairOnHold)
}

func (s *repairService) CompleteJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairCompleted, actorID, RepairReceived, RepairInProgress, RepairOnHold)
}

func (s *repairService) CollectJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairCollected, actorID, RepairCompleted)
}

func (s *repairService) CancelJob(ctx context.Context, jobID int, actorID int) (*RepairJob, error) {
	return s.transition(ctx, jobID, RepairCancelled, actorID, RepairReceived, RepairInProgress, RepairOnHold)
}

func (s *repairService) transition(ctx context.Context, jobID int, to RepairStatus, actorID int, allowedFrom ...RepairStatus) (*RepairJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	job, err := lockJob(ctx, tx, jobID)
	if err != nil {
		return nil, err
	}

	ok := false
	for _, from := range allowedFrom {
		if job.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		return nil, fmt.Errorf("job %s is %s, cannot move to %s: %w",
			job.JobNumber, job.Status, to, ErrInvalidStateTransition)
	}

	// Completing stamps completed_date; collecting stamps collected_date.
	set := "status = $2, updated_at = now()"
	switch to {
	case RepairCompleted:
		set += ", completed_date = now()"
	case RepairCollected:
		set += ", collected_date = now()"
	}

	job.Status = to
	err = tx.QueryRow(ctx,
		"UPDATE repair_jobs SET "+set+" WHERE id = $1 RETURNING completed_date, collected_date, updated_at",
		jobID, to,
	).Scan(&job.CompletedDate, &job.CollectedDate, &job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to transition job %d to %s: %w", jobID, to, err)
	}

	var kind TimelineEventKind
	switch to {
	case RepairCompleted:
		kind = EventRepairJobCompleted
	case RepairCollected:
		kind = EventRepairJobCollected
	}
	if kind != "" {
		err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
			Kind: kind, ActorID: &actorID,
			EntityType: "repair_job", EntityID: &jobID,
			Summary: fmt.Sprintf("Repair job %s moved to %s", job.JobNumber, to),
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job transition: %w", err)
	}
	return job, nil
}

// ── Parts and labour ─────────────────────────────────────────────────────────

func (s *repairService) AddPart(ctx context.Context, jobID int, in PartInput, actorID int) (*RepairJobPart, error) {
	if !in.QuantityUsed.IsPositive() {
		return nil, fmt.Errorf("part %q quantity %s: %w", in.Name, in.QuantityUsed, ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	part := &RepairJobPart{
		JobID:          jobID,
		ProductID:      in.ProductID,
		Name:           in.Name,
		QuantityUsed:   in.QuantityUsed,
		UnitCost:       RoundTwo(in.UnitCost),
		TransferLineID: in.TransferLineID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO repair_job_parts (job_id, product_id, name, quantity_used, unit_cost, transfer_line_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		part.JobID, part.ProductID, part.Name, part.QuantityUsed, part.UnitCost, part.TransferLineID,
	).Scan(&part.ID, &part.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add part to job %d: %w", jobID, err)
	}

	if err := s.recomputeInvoiceByJobTx(ctx, tx, jobID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit part: %w", err)
	}
	return part, nil
}

func (s *repairService) AddLabour(ctx context.Context, jobID int, description string, amount decimal.Decimal, actorID int) (*LabourCharge, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("labour charge %s on job %d: %w", amount, jobID, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	charge := &LabourCharge{JobID: jobID, Description: description, Amount: RoundTwo(amount)}
	err = tx.QueryRow(ctx, `
		INSERT INTO labour_charges (job_id, description, amount)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		jobID, description, charge.Amount,
	).Scan(&charge.ID, &charge.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add labour to job %d: %w", jobID, err)
	}

	if err := s.recomputeInvoiceByJobTx(ctx, tx, jobID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit labour charge: %w", err)
	}
	return charge, nil
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *repairService) RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, method PaymentMethod, actorID int) (*RepairInvoice, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("repair payment %s: %w", amount, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}

	outstanding := inv.TotalAmount.Sub(inv.AmountPaid)
	if amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("payment %s exceeds outstanding %s on invoice %d: %w",
			amount, outstanding, invoiceID, ErrOverpaymentNotAllowed)
	}

	// materials_settled stays false here: settling materials back to the
	// shop is a deliberate manual step through transfer settlements.
	_, err = tx.Exec(ctx, `
		INSERT INTO repair_payments (invoice_id, amount, method, materials_settled, received_by)
		VALUES ($1, $2, $3, false, $4)`,
		invoiceID, RoundTwo(amount), method, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record repair payment: %w", err)
	}

	if err := s.recomputeInvoiceTx(ctx, tx, invoiceID); err != nil {
		return nil, err
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRepairPayment, ActorID: &actorID,
		EntityType: "repair_invoice", EntityID: &invoiceID,
		Summary: fmt.Sprintf("Repair payment of %s on invoice %d", amount, invoiceID),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit repair payment: %w", err)
	}
	return s.getInvoice(ctx, s.pool, invoiceID)
}

// recomputeInvoiceTx reloads an invoice's parts, labour, payments, and fixed
// price, reapplies the billing rule, and writes the totals back.
func (s *repairService) recomputeInvoiceTx(ctx context.Context, tx pgx.Tx, invoiceID int) error {
	inv, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	parts, err := fetchPartsQ(ctx, tx, inv.JobID)
	if err != nil {
		return err
	}
	labour, err := fetchLabourQ(ctx, tx, inv.JobID)
	if err != nil {
		return err
	}

	var fixedPrice *decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT jt.fixed_price
		FROM repair_jobs j LEFT JOIN job_types jt ON jt.id = j.job_type_id
		WHERE j.id = $1`,
		inv.JobID,
	).Scan(&fixedPrice)
	if err != nil {
		return fmt.Errorf("failed to fetch job type for job %d: %w", inv.JobID, err)
	}

	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM repair_payments WHERE invoice_id = $1", invoiceID,
	).Scan(&inv.AmountPaid)
	if err != nil {
		return fmt.Errorf("failed to sum repair payments for invoice %d: %w", invoiceID, err)
	}

	RecomputeInvoiceTotals(inv, parts, labour, fixedPrice)

	_, err = tx.Exec(ctx, `
		UPDATE repair_invoices
		SET total_parts = $2, total_labour = $3, total_amount = $4, amount_paid = $5,
		    payment_status = $6, updated_at = now()
		WHERE id = $1`,
		invoiceID, inv.TotalParts, inv.TotalLabour, inv.TotalAmount, inv.AmountPaid, inv.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d totals: %w", invoiceID, err)
	}
	return nil
}

func (s *repairService) recomputeInvoiceByJobTx(ctx context.Context, tx pgx.Tx, jobID int) error {
	var invoiceID int
	err := tx.QueryRow(ctx, "SELECT id FROM repair_invoices WHERE job_id = $1", jobID).Scan(&invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice for job %d: %w", jobID, ErrNotFound)
		}
		return fmt.Errorf("failed to find invoice for job %d: %w", jobID, err)
	}
	return s.recomputeInvoiceTx(ctx, tx, invoiceID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const jobColumns = `id, job_number, customer_id, customer_name, phone, item_name, description,
	job_type_id, status, priority, technician_id, intake_date, due_date, completed_date, collected_date,
	created_by, created_at, updated_at`

func scanJob(row pgx.Row) (*RepairJob, error) {
	job := &RepairJob{}
	err := row.Scan(&job.ID, &job.JobNumber, &job.CustomerID, &job.CustomerName, &job.Phone,
		&job.ItemName, &job.Description, &job.JobTypeID, &job.Status, &job.Priority,
		&job.TechnicianID, &job.IntakeDate, &job.DueDate, &job.CompletedDate, &job.CollectedDate,
		&job.CreatedBy, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *repairService) GetJob(ctx context.Context, jobID int) (*RepairJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, "SELECT "+jobColumns+" FROM repair_jobs WHERE id = $1", jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repair job %d: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch repair job %d: %w", jobID, err)
	}
	return job, nil
}

func (s *repairService) GetJobs(ctx context.Context, status RepairStatus) ([]RepairJob, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+jobColumns+" FROM repair_jobs WHERE ($1 = '' OR status = $1) ORDER BY id DESC",
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query repair jobs: %w", err)
	}
	defer rows.Close()

	var jobs []RepairJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repair job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *repairService) GetInvoiceByJob(ctx context.Context, jobID int) (*RepairInvoice, error) {
	var invoiceID int
	err := s.pool.QueryRow(ctx, "SELECT id FROM repair_invoices WHERE job_id = $1", jobID).Scan(&invoiceID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice for job %d: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find invoice for job %d: %w", jobID, err)
	}
	return s.getInvoice(ctx, s.pool, invoiceID)
}

func (s *repairService) GetJobParts(ctx context.Context, jobID int) ([]RepairJobPart, error) {
	return fetchPartsQ(ctx, s.pool, jobID)
}

func (s *repairService) GetLabourCharges(ctx context.Context, jobID int) ([]LabourCharge, error) {
	return fetchLabourQ(ctx, s.pool, jobID)
}

const invoiceColumns = `id, job_id, total_parts, total_labour, tax, total_amount, amount_paid,
	payment_status, created_at, updated_at`

func (s *repairService) getInvoice(ctx context.Context, q pgxQuerier, invoiceID int) (*RepairInvoice, error) {
	inv := &RepairInvoice{}
	err := q.QueryRow(ctx, "SELECT "+invoiceColumns+" FROM repair_invoices WHERE id = $1", invoiceID).
		Scan(&inv.ID, &inv.JobID, &inv.TotalParts, &inv.TotalLabour, &inv.Tax, &inv.TotalAmount,
			&inv.AmountPaid, &inv.PaymentStatus, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

func fetchPartsQ(ctx context.Context, q pgxRowQuerier, jobID int) ([]RepairJobPart, error) {
	rows, err := q.Query(ctx, `
		SELECT id, job_id, product_id, name, quantity_used, unit_cost, transfer_line_id, created_at
		FROM repair_job_parts WHERE job_id = $1 ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var parts []RepairJobPart
	for rows.Next() {
		var p RepairJobPart
		if err := rows.Scan(&p.ID, &p.JobID, &p.ProductID, &p.Name, &p.QuantityUsed, &p.UnitCost, &p.TransferLineID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func fetchLabourQ(ctx context.Context, q pgxRowQuerier, jobID int) ([]LabourCharge, error) {
	rows, err := q.Query(ctx, `
		SELECT id, job_id, description, amount, created_at
		FROM labour_charges WHERE job_id = $1 ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query labour for job %d: %w", jobID, err)
	}
	defer rows.Close()

	var charges []LabourCharge
	for rows.Next() {
		var c LabourCharge
		if err := rows.Scan(&c.ID, &c.JobID, &c.Description, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan labour charge: %w", err)
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// lockJob reads a repair job FOR UPDATE inside tx.
func lockJob(ctx context.Context, tx pgx.Tx, jobID int) (*RepairJob, error) {
	job, err := scanJob(tx.QueryRow(ctx, "SELECT "+jobColumns+" FROM repair_jobs WHERE id = $1 FOR UPDATE", jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repair job %d: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock repair job %d: %w", jobID, err)
	}
	return job, nil
}

// lockInvoice reads a repair invoice FOR UPDATE inside tx.
func lockInvoice(ctx context.Context, tx pgx.Tx, invoiceID int) (*RepairInvoice, error) {
	inv := &RepairInvoice{}
	err := tx.QueryRow(ctx, "SELECT "+invoiceColumns+" FROM repair_invoices WHERE id = $1 FOR UPDATE", invoiceID).
		Scan(&inv.ID, &inv.JobID, &inv.TotalParts, &inv.TotalLabour, &inv.Tax, &inv.TotalAmount,
			&inv.AmountPaid, &inv.PaymentStatus, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %d: %w", invoiceID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}
