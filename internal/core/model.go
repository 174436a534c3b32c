package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitCode identifies one of the two cash-handling units.
type UnitCode string

const (
	UnitShop     UnitCode = "shop"
	UnitWorkshop UnitCode = "workshop"
)

// Unit is a physical business unit that handles its own cash.
type Unit struct {
	ID        int       `json:"id"`
	Code      UnitCode  `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Role is a user's permission role.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleCashier     Role = "cashier"
	RoleStorekeeper Role = "storekeeper"
	RoleTechnician  Role = "technician"
)

// User represents an authenticated system user assigned to a unit.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	UnitID       *int      `json:"unit_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Customer is a buyer, optionally tracked for credit.
// A nil CreditLimit means unlimited credit; blacklisting blocks all credit.
type Customer struct {
	ID            int              `json:"id"`
	Name          string           `json:"name"`
	Phone         string           `json:"phone"`
	CreditLimit   *decimal.Decimal `json:"credit_limit,omitempty"`
	IsVIP         bool             `json:"is_vip"`
	IsBlacklisted bool             `json:"is_blacklisted"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Category groups products.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Product is a stocked item. QuantityInStock is only ever changed through
// the stock ledger, which records a StockEntry per movement.
type Product struct {
	ID              int             `json:"id"`
	CategoryID      *int            `json:"category_id,omitempty"`
	Name            string          `json:"name"`
	BuyingPrice     decimal.Decimal `json:"buying_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	WholesalePrice  decimal.Decimal `json:"wholesale_price"`
	QuantityInStock decimal.Decimal `json:"quantity_in_stock"`
	Threshold       decimal.Decimal `json:"threshold"`
	IsActive        bool            `json:"is_active"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StockEntryKind classifies a stock ledger movement.
type StockEntryKind string

const (
	StockAdded           StockEntryKind = "added"
	StockUpdated         StockEntryKind = "updated"
	StockDeleted         StockEntryKind = "deleted"
	StockQuantityUpdated StockEntryKind = "quantity_updated"
	StockSold            StockEntryKind = "sold"
	StockIn              StockEntryKind = "stock_in"
	StockReceived        StockEntryKind = "received"
	StockTransferredOut  StockEntryKind = "transferred_out"
	StockTransferredIn   StockEntryKind = "transferred_in"
	StockAdjusted        StockEntryKind = "adjusted"
	StockReturned        StockEntryKind = "returned"
	StockWrittenOff      StockEntryKind = "written_off"
)

// StockEntry is one row of the stock audit ledger. Quantity is the signed
// delta applied; LevelAfter is the product's stock level after the movement.
type StockEntry struct {
	ID         int             `json:"id"`
	ProductID  int             `json:"product_id"`
	Kind       StockEntryKind  `json:"kind"`
	Quantity   decimal.Decimal `json:"quantity"`
	LevelAfter decimal.Decimal `json:"level_after"`
	ActorID    *int            `json:"actor_id,omitempty"`
	RefType    string          `json:"ref_type,omitempty"`
	RefID      *int            `json:"ref_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TimelineEventKind names a significant state transition.
type TimelineEventKind string

const (
	EventSaleCreated        TimelineEventKind = "sale_created"
	EventPaymentRecorded    TimelineEventKind = "payment_recorded"
	EventLoanPayment        TimelineEventKind = "loan_payment"
	EventSaleRefunded       TimelineEventKind = "sale_refunded"
	EventSaleChecked        TimelineEventKind = "sale_checked"
	EventOrderPlaced        TimelineEventKind = "order_placed"
	EventOrderConfirmed     TimelineEventKind = "order_confirmed"
	EventOrderRejected      TimelineEventKind = "order_rejected"
	EventOrderResent        TimelineEventKind = "order_resent"
	EventOrderCancelled     TimelineEventKind = "order_cancelled"
	EventStockAdded         TimelineEventKind = "stock_added"
	EventStockAdjusted      TimelineEventKind = "stock_adjusted"
	EventProductCreated     TimelineEventKind = "product_created"
	EventProductUpdated     TimelineEventKind = "product_updated"
	EventProductDeleted     TimelineEventKind = "product_deleted"
	EventExpenseRecorded    TimelineEventKind = "expense_recorded"
	EventCashCloseSubmitted TimelineEventKind = "cash_close_submitted"
	EventRequestSubmitted   TimelineEventKind = "request_submitted"
	EventRequestApproved    TimelineEventKind = "request_approved"
	EventRequestRejected    TimelineEventKind = "request_rejected"
	EventTransferSettled    TimelineEventKind = "transfer_settled"
	EventSettlementCleared  TimelineEventKind = "settlement_cleared"
	EventRepairJobCreated   TimelineEventKind = "repair_job_created"
	EventRepairJobCompleted TimelineEventKind = "repair_job_completed"
	EventRepairJobCollected TimelineEventKind = "repair_job_collected"
	EventRepairPayment      TimelineEventKind = "repair_payment"
)

// TimelineEvent is an append-only audit record of a state transition.
type TimelineEvent struct {
	ID         int               `json:"id"`
	Kind       TimelineEventKind `json:"kind"`
	ActorID    *int              `json:"actor_id,omitempty"`
	EntityType string            `json:"entity_type"`
	EntityID   *int              `json:"entity_id,omitempty"`
	Summary    string            `json:"summary"`
	Details    string            `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
