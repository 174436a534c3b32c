package core_test

import (
	"context"
	"errors"
	"testing"

	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupOrderTest(t *testing.T) (*pgxpool.Pool, core.OrderService, core.SaleService, core.InventoryService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)
	orders := core.NewOrderService(pool, sales, timeline)
	return pool, orders, sales, inv, ctx
}

func TestOrder_CreateAndConfirm(t *testing.T) {
	_, orders, _, inv, ctx := setupOrderTest(t)

	// 2 hammers plus a half portion: effective 2.5 @ 100 = 250.
	order, err := orders.CreateOrder(ctx, nil, core.OrderTypeRetail, core.UnitShop,
		[]core.OrderLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(2), Portion: core.PortionHalf}}, 2)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if order.Status != core.OrderPending {
		t.Fatalf("Expected pending, got %s", order.Status)
	}

	confirmed, sale, err := orders.ConfirmOrder(ctx, order.ID, core.ConfirmOrderInput{
		AmountPaid: decimal.NewFromInt(250),
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}
	if confirmed.Status != core.OrderConfirmed {
		t.Errorf("Expected order confirmed, got %s", confirmed.Status)
	}
	if !sale.TotalAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("Expected sale total=250 for effective 2.5 units, got %s", sale.TotalAmount)
	}
	if sale.OrderID == nil || *sale.OrderID != order.ID {
		t.Error("Sale must link back to the order")
	}
	if sale.PaymentStatus != core.PaymentPaid {
		t.Errorf("Expected paid, got %s", sale.PaymentStatus)
	}

	// Stock deducted by the effective quantity.
	hammer, err := inv.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !hammer.QuantityInStock.Equal(decimal.RequireFromString("47.5")) {
		t.Errorf("Expected stock=47.5, got %s", hammer.QuantityInStock)
	}
}

func TestOrder_ConfirmOnlyFromPendingOrUpdated(t *testing.T) {
	pool, orders, _, _, ctx := setupOrderTest(t)

	order, err := orders.CreateOrder(ctx, nil, core.OrderTypeRetail, core.UnitShop,
		[]core.OrderLineInput{{ProductID: 2, Quantity: decimal.NewFromInt(5)}}, 2)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := orders.CancelOrder(ctx, order.ID, 2); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}

	// Cancellation records its own event kind, not a rejection.
	var cancelled, rejected int
	if err := pool.QueryRow(ctx,
		"SELECT count(*) FILTER (WHERE kind = $1), count(*) FILTER (WHERE kind = $2) FROM timeline_events WHERE entity_id = $3",
		core.EventOrderCancelled, core.EventOrderRejected, order.ID).Scan(&cancelled, &rejected); err != nil {
		t.Fatalf("Counting timeline events failed: %v", err)
	}
	if cancelled != 1 || rejected != 0 {
		t.Errorf("Expected 1 cancelled / 0 rejected events, got %d / %d", cancelled, rejected)
	}

	_, _, err = orders.ConfirmOrder(ctx, order.ID, core.ConfirmOrderInput{Method: core.MethodCash}, 2)
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition confirming a cancelled order, got %v", err)
	}
}

func TestOrder_RejectEditResend(t *testing.T) {
	_, orders, _, _, ctx := setupOrderTest(t)

	order, err := orders.CreateOrder(ctx, nil, core.OrderTypeRetail, core.UnitShop,
		[]core.OrderLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(1)}}, 2)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	rejected, err := orders.RejectOrder(ctx, order.ID, "price query", 1)
	if err != nil {
		t.Fatalf("RejectOrder failed: %v", err)
	}
	if rejected.Status != core.OrderRejected || rejected.RejectionReason == "" {
		t.Errorf("Expected rejected with reason, got %s %q", rejected.Status, rejected.RejectionReason)
	}

	// A different user cannot edit someone else's rejected order.
	_, err = orders.UpdateOrder(ctx, order.ID, []core.OrderLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(2)}}, 3)
	if !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition for non-creator edit, got %v", err)
	}

	// The creator's edit resubmits the order.
	updated, err := orders.UpdateOrder(ctx, order.ID, []core.OrderLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(2)}}, 2)
	if err != nil {
		t.Fatalf("UpdateOrder by creator failed: %v", err)
	}
	if updated.Status != core.OrderUpdated {
		t.Errorf("Expected status=updated, got %s", updated.Status)
	}
	if updated.RejectionReason != "" {
		t.Errorf("Expected rejection reason cleared, got %q", updated.RejectionReason)
	}

	// An updated order can be confirmed.
	if _, _, err := orders.ConfirmOrder(ctx, order.ID, core.ConfirmOrderInput{
		AmountPaid: decimal.NewFromInt(200),
		Method:     core.MethodCash,
	}, 1); err != nil {
		t.Fatalf("ConfirmOrder after resend failed: %v", err)
	}
}

func TestOrder_DeleteOnlyTerminal(t *testing.T) {
	_, orders, _, _, ctx := setupOrderTest(t)

	order, err := orders.CreateOrder(ctx, nil, core.OrderTypeRetail, core.UnitShop,
		[]core.OrderLineInput{{ProductID: 2, Quantity: decimal.NewFromInt(1)}}, 2)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if err := orders.DeleteOrder(ctx, order.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition deleting a pending order, got %v", err)
	}

	if _, err := orders.CancelOrder(ctx, order.ID, 2); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if err := orders.DeleteOrder(ctx, order.ID); err != nil {
		t.Fatalf("DeleteOrder after cancel failed: %v", err)
	}
	if _, err := orders.GetOrder(ctx, order.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
