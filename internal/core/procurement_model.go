package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Supplier is a vendor the shop buys stock from.
type Supplier struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// POStatus is the lifecycle state of a purchase order.
type POStatus string

const (
	PODraft             POStatus = "draft"
	POOrdered           POStatus = "ordered"
	POPartiallyReceived POStatus = "partially_received"
	POReceived          POStatus = "received"
	POCancelled         POStatus = "cancelled"
)

// PurchaseOrder is an order placed with a supplier.
type PurchaseOrder struct {
	ID          int                 `json:"id"`
	SupplierID  int                 `json:"supplier_id"`
	Status      POStatus            `json:"status"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	Notes       string              `json:"notes,omitempty"`
	OrderedAt   *time.Time          `json:"ordered_at,omitempty"`
	CreatedBy   int                 `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	Lines       []PurchaseOrderLine `json:"lines,omitempty"`
}

// PurchaseOrderLine is one product ordered from the supplier.
// ReceivedQuantity accumulates across goods receipts.
type PurchaseOrderLine struct {
	ID               int             `json:"id"`
	OrderID          int             `json:"order_id"`
	ProductID        int             `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// GoodsReceipt records a delivery against a purchase order.
type GoodsReceipt struct {
	ID         int                `json:"id"`
	OrderID    int                `json:"order_id"`
	Reference  string             `json:"reference,omitempty"`
	ReceivedBy int                `json:"received_by"`
	CreatedAt  time.Time          `json:"created_at"`
	Lines      []GoodsReceiptLine `json:"lines,omitempty"`
}

// GoodsReceiptLine is one PO line quantity received on a delivery.
type GoodsReceiptLine struct {
	ID        int             `json:"id"`
	ReceiptID int             `json:"receipt_id"`
	POLineID  int             `json:"po_line_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// POLineInput holds the fields required to create a purchase order line.
type POLineInput struct {
	ProductID int
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// ReceiptLineInput is one PO line quantity being received.
type ReceiptLineInput struct {
	POLineID int
	Quantity decimal.Decimal
}

// ProcurementService manages suppliers, purchase orders, and goods receipts.
type ProcurementService interface {
	// CreateSupplier registers a new supplier.
	CreateSupplier(ctx context.Context, name, phone, email string) (*Supplier, error)

	// GetSuppliers returns all active suppliers.
	GetSuppliers(ctx context.Context) ([]Supplier, error)

	// CreatePurchaseOrder creates a DRAFT purchase order with computed total.
	CreatePurchaseOrder(ctx context.Context, supplierID int, lines []POLineInput, notes string, actorID int) (*PurchaseOrder, error)

	// MarkOrdered transitions a DRAFT purchase order to ORDERED.
	MarkOrdered(ctx context.Context, poID int) (*PurchaseOrder, error)

	// ReceiveGoods records a delivery: each line increases stock through the
	// stock ledger and accumulates the PO line's received quantity. The PO
	// status is re-derived from received vs ordered quantities. Over-receipt
	// is accepted and recorded as-is.
	ReceiveGoods(ctx context.Context, poID int, reference string, lines []ReceiptLineInput, actorID int) (*GoodsReceipt, error)

	// CancelPurchaseOrder cancels a PO that has not yet been fully received.
	CancelPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPurchaseOrder returns a purchase order with its lines.
	GetPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error)

	// GetPurchaseOrders returns purchase orders, optionally filtered by status.
	GetPurchaseOrders(ctx context.Context, status POStatus) ([]PurchaseOrder, error)
}
