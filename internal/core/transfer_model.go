package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a material request.
type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestSubmitted RequestStatus = "submitted"
	RequestApproved  RequestStatus = "approved"
	RequestRejected  RequestStatus = "rejected"
)

// MaterialRequest asks the shop to release parts to the workshop. Newly
// created requests are submitted immediately after a stock availability
// check.
type MaterialRequest struct {
	ID              int                   `json:"id"`
	JobID           *int                  `json:"job_id,omitempty"`
	Status          RequestStatus         `json:"status"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	RequestedBy     int                   `json:"requested_by"`
	ReviewedBy      *int                  `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Lines           []MaterialRequestLine `json:"lines,omitempty"`
}

// MaterialRequestLine is one requested product and quantity.
type MaterialRequestLine struct {
	ID        int             `json:"id"`
	RequestID int             `json:"request_id"`
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// TransferStatus is derived from a transfer's settled and total amounts.
type TransferStatus string

const (
	TransferConfirmed        TransferStatus = "confirmed"
	TransferPartiallySettled TransferStatus = "partially_settled"
	TransferClosed           TransferStatus = "closed"
)

// TransferOrder records stock moved from the shop to the workshop and the
// money the workshop owes back. TotalAmount snapshots buying prices at
// approval time.
type TransferOrder struct {
	ID            int             `json:"id"`
	RequestID     int             `json:"request_id"`
	FromUnitID    int             `json:"from_unit_id"`
	ToUnitID      int             `json:"to_unit_id"`
	Status        TransferStatus  `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []TransferLine  `json:"lines,omitempty"`
}

// TransferLine is one product moved on a transfer, costed at the buying
// price snapshotted when the request was approved.
type TransferLine struct {
	ID         int             `json:"id"`
	TransferID int             `json:"transfer_id"`
	ProductID  int             `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// TransferSettlement is one repayment against a transfer. Cleared is the
// shop-side acknowledgement that the cash physically arrived; it never
// changes the settled amount, but only cleared settlements count as shop
// cash.
type TransferSettlement struct {
	ID         int             `json:"id"`
	TransferID int             `json:"transfer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	SettledBy  int             `json:"settled_by"`
	Cleared    bool            `json:"cleared"`
	ClearedBy  *int            `json:"cleared_by,omitempty"`
	ClearedAt  *time.Time      `json:"cleared_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
