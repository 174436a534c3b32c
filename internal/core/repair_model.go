package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobType is a predefined repair category, optionally carrying a fixed
// price that overrides itemised labour billing.
type JobType struct {
	ID         int              `json:"id"`
	Name       string           `json:"name"`
	FixedPrice *decimal.Decimal `json:"fixed_price,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// RepairStatus is the lifecycle state of a repair job.
type RepairStatus string

const (
	RepairReceived   RepairStatus = "received"
	RepairInProgress RepairStatus = "in_progress"
	RepairOnHold     RepairStatus = "on_hold"
	RepairCompleted  RepairStatus = "completed"
	RepairCollected  RepairStatus = "collected"
	RepairCancelled  RepairStatus = "cancelled"
)

// RepairPriority orders the workshop queue.
type RepairPriority string

const (
	PriorityLow    RepairPriority = "low"
	PriorityNormal RepairPriority = "normal"
	PriorityHigh   RepairPriority = "high"
	PriorityUrgent RepairPriority = "urgent"
)

// RepairJob is a workshop job for a customer item. IntakeDate is when the
// item was brought in (defaults to creation time); CompletedDate and
// CollectedDate are stamped by the matching lifecycle transitions.
type RepairJob struct {
	ID            int            `json:"id"`
	JobNumber     string         `json:"job_number"`
	CustomerID    *int           `json:"customer_id,omitempty"`
	CustomerName  string         `json:"customer_name"`
	Phone         string         `json:"phone,omitempty"`
	ItemName      string         `json:"item_name"`
	Description   string         `json:"description,omitempty"`
	JobTypeID     *int           `json:"job_type_id,omitempty"`
	Status        RepairStatus   `json:"status"`
	Priority      RepairPriority `json:"priority"`
	TechnicianID  *int           `json:"technician_id,omitempty"`
	IntakeDate    time.Time      `json:"intake_date"`
	DueDate       *time.Time     `json:"due_date,omitempty"`
	CompletedDate *time.Time     `json:"completed_date,omitempty"`
	CollectedDate *time.Time     `json:"collected_date,omitempty"`
	CreatedBy     int            `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RepairJobPart is a material consumed by a job. TransferLineID links the
// part back to the shop transfer that supplied it, when there is one.
type RepairJobPart struct {
	ID             int             `json:"id"`
	JobID          int             `json:"job_id"`
	ProductID      *int            `json:"product_id,omitempty"`
	Name           string          `json:"name"`
	QuantityUsed   decimal.Decimal `json:"quantity_used"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	TransferLineID *int            `json:"transfer_line_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// LabourCharge is one itemised labour line on a job.
type LabourCharge struct {
	ID          int             `json:"id"`
	JobID       int             `json:"job_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// InvoiceStatus is derived from a repair invoice's paid and total amounts.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// RepairInvoice is the bill for a repair job. Totals are recomputed from
// parts and labour whenever either changes; see RecomputeInvoiceTotals.
type RepairInvoice struct {
	ID            int             `json:"id"`
	JobID         int             `json:"job_id"`
	TotalParts    decimal.Decimal `json:"total_parts"`
	TotalLabour   decimal.Decimal `json:"total_labour"`
	Tax           decimal.Decimal `json:"tax"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentStatus InvoiceStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RepairPayment is one payment row against a repair invoice. Payments never
// settle materials back to the shop; that reconciliation is manual through
// transfer settlements.
type RepairPayment struct {
	ID               int             `json:"id"`
	InvoiceID        int             `json:"invoice_id"`
	Amount           decimal.Decimal `json:"amount"`
	Method           PaymentMethod   `json:"method"`
	MaterialsSettled bool            `json:"materials_settled"`
	ReceivedBy       int             `json:"received_by"`
	CreatedAt        time.Time       `json:"created_at"`
}
