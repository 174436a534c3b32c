package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType selects the price tier applied at the point of sale.
type OrderType string

const (
	OrderTypeRetail    OrderType = "retail"
	OrderTypeWholesale OrderType = "wholesale"
)

// OrderStatus is the lifecycle state of a staff order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
	OrderUpdated   OrderStatus = "updated"
)

// Portion is a fractional quantity add-on for an order item.
type Portion string

const (
	PortionNone    Portion = "none"
	PortionHalf    Portion = "half"
	PortionQuarter Portion = "quarter"
)

// Order is a staff-placed order awaiting confirmation into a sale.
type Order struct {
	ID              int         `json:"id"`
	CustomerID      *int        `json:"customer_id,omitempty"`
	UnitID          *int        `json:"unit_id,omitempty"`
	OrderType       OrderType   `json:"order_type"`
	Status          OrderStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	CreatedBy       int         `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of a staff order. The effective quantity sold on
// confirmation is Quantity plus the portion extra.
type OrderItem struct {
	ID        int             `json:"id"`
	OrderID   int             `json:"order_id"`
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Portion   Portion         `json:"portion"`
}

// SaleStatus is the lifecycle state of a sale.
type SaleStatus string

const (
	SaleConfirmed SaleStatus = "confirmed"
	SaleRefunded  SaleStatus = "refunded"
)

// PaymentStatus is derived from a sale's paid and final amounts. It is never
// stored independently of those amounts; see DerivePaymentStatus.
type PaymentStatus string

const (
	PaymentPaid     PaymentStatus = "paid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentNotPaid  PaymentStatus = "not_paid"
	PaymentPending  PaymentStatus = "pending"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod is how money changed hands.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "cash"
	MethodMobileMoney PaymentMethod = "mobile_money"
	MethodCard        PaymentMethod = "card"
	MethodBank        PaymentMethod = "bank"
	MethodRefund      PaymentMethod = "refund"
)

// Sale is a completed point-of-sale transaction. IsLoan records that the
// sale began as credit; it is set at creation and never cleared by later
// payments.
type Sale struct {
	ID            int             `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	CustomerID    *int            `json:"customer_id,omitempty"`
	UnitID        *int            `json:"unit_id,omitempty"`
	OrderID       *int            `json:"order_id,omitempty"`
	OrderType     OrderType       `json:"order_type"`
	Status        SaleStatus      `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Discount      decimal.Decimal `json:"discount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	RefundTotal   decimal.Decimal `json:"refund_total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	IsLoan        bool            `json:"is_loan"`
	IsChecked     bool            `json:"is_checked"`
	CheckedBy     *int            `json:"checked_by,omitempty"`
	CheckedAt     *time.Time      `json:"checked_at,omitempty"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"items,omitempty"`
}

// SaleItem is one line of a sale with the unit price snapshot taken at sale
// time.
type SaleItem struct {
	ID        int             `json:"id"`
	SaleID    int             `json:"sale_id"`
	ProductID int             `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Payment is one payment row against a sale. Refunds appear as a negative
// amount with method "refund".
type Payment struct {
	ID         int             `json:"id"`
	SaleID     int             `json:"sale_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	ReceivedBy int             `json:"received_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Refund records a full refund of a sale's paid amount.
type Refund struct {
	ID          int             `json:"id"`
	SaleID      int             `json:"sale_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ProcessedBy int             `json:"processed_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExpenseCategory classifies an operating expense.
type ExpenseCategory string

const (
	ExpenseStockPurchase ExpenseCategory = "stock_purchase"
	ExpenseRent          ExpenseCategory = "rent"
	ExpenseUtilities     ExpenseCategory = "utilities"
	ExpenseSalary        ExpenseCategory = "salary"
	ExpenseOther         ExpenseCategory = "other"
)

// Expense is a unit-scoped operating expense; it reduces the unit's expected
// cash for the day it was incurred.
type Expense struct {
	ID          int             `json:"id"`
	UnitID      *int            `json:"unit_id,omitempty"`
	Category    ExpenseCategory `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	RecordedBy  int             `json:"recorded_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DailyCashClose is the end-of-day reconciliation for one unit and date.
// Resubmitting for the same unit and date overwrites the previous close.
type DailyCashClose struct {
	ID             int             `json:"id"`
	UnitID         int             `json:"unit_id"`
	Date           time.Time       `json:"date"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Variance       decimal.Decimal `json:"variance"`
	Notes          string          `json:"notes,omitempty"`
	ClosedBy       int             `json:"closed_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Quote is a priced offer with no stock or cash effects. Customer details
// are snapshotted so later customer edits do not alter issued quotes.
type Quote struct {
	ID            int             `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VatPercent    decimal.Decimal `json:"vat_percent"`
	VatAmount     decimal.Decimal `json:"vat_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	ValidUntil    *time.Time      `json:"valid_until,omitempty"`
	CreatedBy     int             `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []QuoteItem     `json:"items,omitempty"`
}

// QuoteItem is one line of a quote.
type QuoteItem struct {
	ID        int             `json:"id"`
	QuoteID   int             `json:"quote_id"`
	ProductID *int            `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}
