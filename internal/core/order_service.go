package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// OrderLineInput is one requested product, whole quantity, and portion.
type OrderLineInput struct {
	ProductID int
	Quantity  decimal.Decimal
	Portion   Portion
}

// ConfirmOrderInput carries the payment taken when an order is confirmed
// into a sale.
type ConfirmOrderInput struct {
	Discount   decimal.Decimal
	AmountPaid decimal.Decimal
	Method     PaymentMethod
}

// OrderService manages staff orders and their confirmation into sales.
type OrderService interface {
	// CreateOrder places a pending order.
	CreateOrder(ctx context.Context, customerID *int, orderType OrderType, unit UnitCode, lines []OrderLineInput, actorID int) (*Order, error)

	// UpdateOrder replaces an order's lines. Editing a rejected order by
	// its creator resubmits it with status "updated".
	UpdateOrder(ctx context.Context, orderID int, lines []OrderLineInput, actorID int) (*Order, error)

	// ConfirmOrder completes the order as a sale of each line's effective
	// quantity (whole plus portion extra). Only pending and updated orders
	// can be confirmed. Paying exactly the final amount closes the sale
	// fully paid; paying more is rejected.
	ConfirmOrder(ctx context.Context, orderID int, in ConfirmOrderInput, actorID int) (*Order, *Sale, error)

	// RejectOrder rejects a pending or updated order with a reason.
	RejectOrder(ctx context.Context, orderID int, reason string, actorID int) (*Order, error)

	// CancelOrder cancels a pending or updated order.
	CancelOrder(ctx context.Context, orderID int, actorID int) (*Order, error)

	// DeleteOrder removes a rejected or cancelled order.
	DeleteOrder(ctx context.Context, orderID int) error

	GetOrder(ctx context.Context, orderID int) (*Order, error)
	GetOrders(ctx context.Context, status OrderStatus) ([]Order, error)
}

type orderService struct {
	pool     *pgxpool.Pool
	sales    SaleService
	timeline TimelineService
}

// NewOrderService constructs an OrderService backed by PostgreSQL.
func NewOrderService(pool *pgxpool.Pool, sales SaleService, timeline TimelineService) OrderService {
	return &orderService{pool: pool, sales: sales, timeline: timeline}
}

func (s *orderService) CreateOrder(ctx context.Context, customerID *int, orderType OrderType, unit UnitCode, lines []OrderLineInput, actorID int) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items: %w", ErrInvalidQuantity)
	}
	if orderType == "" {
		orderType = OrderTypeRetail
	}
	if unit == "" {
		unit = UnitShop
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	unitID, err := resolveUnitID(ctx, tx, unit)
	if err != nil {
		return nil, err
	}

	order := &Order{
		CustomerID: customerID,
		UnitID:     &unitID,
		OrderType:  orderType,
		Status:     OrderPending,
		CreatedBy:  actorID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (customer_id, unit_id, order_type, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		order.CustomerID, order.UnitID, order.OrderType, order.Status, order.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	order.Items, err = insertOrderItems(ctx, tx, order.ID, lines)
	if err != nil {
		return nil, err
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventOrderPlaced, ActorID: &actorID,
		EntityType: "order", EntityID: &order.ID,
		Summary: fmt.Sprintf("Order %d placed with %d items", order.ID, len(lines)),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}
	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, orderID int, lines []OrderLineInput, actorID int) (*Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order has no items: %w", ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case OrderPending, OrderUpdated:
		// editable in place
	case OrderRejected:
		if order.CreatedBy != actorID {
			return nil, fmt.Errorf("order %d can only be resent by its creator: %w", orderID, ErrInvalidStateTransition)
		}
		order.Status = OrderUpdated
		order.RejectionReason = ""
		if _, err := tx.Exec(ctx,
			"UPDATE orders SET status = $2, rejection_reason = '', updated_at = now() WHERE id = $1",
			orderID, order.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to resend order %d: %w", orderID, err)
		}
		err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
			Kind: EventOrderResent, ActorID: &actorID,
			EntityType: "order", EntityID: &orderID,
			Summary: fmt.Sprintf("Order %d resent after rejection", orderID),
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrInvalidStateTransition)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to clear order %d items: %w", orderID, err)
	}
	order.Items, err = insertOrderItems(ctx, tx, orderID, lines)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "UPDATE orders SET updated_at = now() WHERE id = $1", orderID); err != nil {
		return nil, fmt.Errorf("failed to touch order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}
	return order, nil
}

func (s *orderService) ConfirmOrder(ctx context.Context, orderID int, in ConfirmOrderInput, actorID int) (*Order, *Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status != OrderPending && order.Status != OrderUpdated {
		return nil, nil, fmt.Errorf("order %d is %s, confirm needs pending or updated: %w",
			orderID, order.Status, ErrInvalidStateTransition)
	}

	order.Items, err = fetchOrderItemsQ(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}

	saleLines := make([]SaleLineInput, len(order.Items))
	for i, it := range order.Items {
		saleLines[i] = SaleLineInput{
			ProductID: it.ProductID,
			Quantity:  EffectiveQuantity(it.Quantity, it.Portion),
		}
	}

	var unit UnitCode
	if order.UnitID != nil {
		if err := tx.QueryRow(ctx, "SELECT code FROM units WHERE id = $1", *order.UnitID).Scan(&unit); err != nil {
			return nil, nil, fmt.Errorf("failed to resolve order %d unit: %w", orderID, err)
		}
	}

	sale, err := s.sales.CompleteSaleTx(ctx, tx, CompleteSaleRequest{
		CustomerID: order.CustomerID,
		Unit:       unit,
		OrderType:  order.OrderType,
		OrderID:    &orderID,
		Items:      saleLines,
		Discount:   in.Discount,
		AmountPaid: in.AmountPaid,
		Method:     in.Method,
	}, actorID)
	if err != nil {
		return nil, nil, err
	}

	order.Status = OrderConfirmed
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $2, updated_at = now() WHERE id = $1", orderID, order.Status,
	); err != nil {
		return nil, nil, fmt.Errorf("failed to confirm order %d: %w", orderID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventOrderConfirmed, ActorID: &actorID,
		EntityType: "order", EntityID: &orderID,
		Summary: fmt.Sprintf("Order %d confirmed as sale %s", orderID, sale.ReceiptNumber),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit order confirmation: %w", err)
	}
	return order, sale, nil
}

func (s *orderService) RejectOrder(ctx context.Context, orderID int, reason string, actorID int) (*Order, error) {
	return s.transition(ctx, orderID, OrderRejected, reason, EventOrderRejected, actorID)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID int, actorID int) (*Order, error) {
	return s.transition(ctx, orderID, OrderCancelled, "", EventOrderCancelled, actorID)
}

func (s *orderService) transition(ctx context.Context, orderID int, to OrderStatus, reason string, event TimelineEventKind, actorID int) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderPending && order.Status != OrderUpdated {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrInvalidStateTransition)
	}

	order.Status = to
	order.RejectionReason = reason
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $2, rejection_reason = $3, updated_at = now() WHERE id = $1",
		orderID, to, reason,
	); err != nil {
		return nil, fmt.Errorf("failed to transition order %d to %s: %w", orderID, to, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: event, ActorID: &actorID,
		EntityType: "order", EntityID: &orderID,
		Summary: fmt.Sprintf("Order %d %s", orderID, to),
		Details: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order transition: %w", err)
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Status != OrderRejected && order.Status != OrderCancelled {
		return fmt.Errorf("order %d is %s, only rejected or cancelled orders can be deleted: %w",
			orderID, order.Status, ErrInvalidStateTransition)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order %d items: %w", orderID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order deletion: %w", err)
	}
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	order := &Order{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, unit_id, order_type, status, rejection_reason, created_by, created_at, updated_at
		FROM orders WHERE id = $1`,
		orderID,
	).Scan(&order.ID, &order.CustomerID, &order.UnitID, &order.OrderType, &order.Status,
		&order.RejectionReason, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	order.Items, err = fetchOrderItemsQ(ctx, s.pool, orderID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrders(ctx context.Context, status OrderStatus) ([]Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, unit_id, order_type, status, rejection_reason, created_by, created_at, updated_at
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.UnitID, &o.OrderType, &o.Status,
			&o.RejectionReason, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func insertOrderItems(ctx context.Context, tx pgx.Tx, orderID int, lines []OrderLineInput) ([]OrderItem, error) {
	var items []OrderItem
	for _, l := range lines {
		if !l.Quantity.IsPositive() && PortionExtra(l.Portion).IsZero() {
			return nil, fmt.Errorf("product %d quantity %s portion %s: %w", l.ProductID, l.Quantity, l.Portion, ErrInvalidQuantity)
		}
		if l.Portion == "" {
			l.Portion = PortionNone
		}
		item := OrderItem{OrderID: orderID, ProductID: l.ProductID, Quantity: l.Quantity, Portion: l.Portion}
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, portion)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			orderID, l.ProductID, l.Quantity, l.Portion,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item for product %d: %w", l.ProductID, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func fetchOrderItemsQ(ctx context.Context, q pgxRowQuerier, orderID int) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, portion
		FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Portion); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// lockOrder reads an order row FOR UPDATE inside tx.
func lockOrder(ctx context.Context, tx pgx.Tx, orderID int) (*Order, error) {
	order := &Order{}
	err := tx.QueryRow(ctx, `
		SELECT id, customer_id, unit_id, order_type, status, rejection_reason, created_by, created_at, updated_at
		FROM orders WHERE id = $1
		FOR UPDATE`,
		orderID,
	).Scan(&order.ID, &order.CustomerID, &order.UnitID, &order.OrderType, &order.Status,
		&order.RejectionReason, &order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock order %d: %w", orderID, err)
	}
	return order, nil
}
