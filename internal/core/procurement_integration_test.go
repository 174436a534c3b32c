package core_test

import (
	"context"
	"errors"
	"testing"

	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupProcurementTest(t *testing.T) (*pgxpool.Pool, core.ProcurementService, core.InventoryService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	proc := core.NewProcurementService(pool, inv, timeline)
	return pool, proc, inv, ctx
}

func orderedPO(t *testing.T, ctx context.Context, proc core.ProcurementService, lines []core.POLineInput) *core.PurchaseOrder {
	t.Helper()
	supplier, err := proc.CreateSupplier(ctx, "Coast Hardware Ltd", "+255700000001", "sales@coasthw.example")
	if err != nil {
		t.Fatalf("CreateSupplier failed: %v", err)
	}
	po, err := proc.CreatePurchaseOrder(ctx, supplier.ID, lines, "", 1)
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	po, err = proc.MarkOrdered(ctx, po.ID)
	if err != nil {
		t.Fatalf("MarkOrdered failed: %v", err)
	}
	return po
}

func TestProcurement_CreateAndOrder(t *testing.T) {
	_, proc, _, ctx := setupProcurementTest(t)

	supplier, err := proc.CreateSupplier(ctx, "Coast Hardware Ltd", "", "")
	if err != nil {
		t.Fatalf("CreateSupplier failed: %v", err)
	}

	po, err := proc.CreatePurchaseOrder(ctx, supplier.ID, []core.POLineInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(20), UnitCost: decimal.NewFromInt(55)},
		{ProductID: 2, Quantity: decimal.NewFromInt(500), UnitCost: decimal.RequireFromString("4.5")},
	}, "restock before season", 1)
	if err != nil {
		t.Fatalf("CreatePurchaseOrder failed: %v", err)
	}
	if po.Status != core.PODraft {
		t.Errorf("Expected draft, got %s", po.Status)
	}
	// 20*55 + 500*4.5 = 3350.
	if !po.TotalAmount.Equal(decimal.NewFromInt(3350)) {
		t.Errorf("Expected total=3350, got %s", po.TotalAmount)
	}

	po, err = proc.MarkOrdered(ctx, po.ID)
	if err != nil {
		t.Fatalf("MarkOrdered failed: %v", err)
	}
	if po.Status != core.POOrdered || po.OrderedAt == nil {
		t.Errorf("Expected ordered with timestamp, got %s %v", po.Status, po.OrderedAt)
	}

	// MarkOrdered is draft-only.
	if _, err := proc.MarkOrdered(ctx, po.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition ordering twice, got %v", err)
	}
}

func TestProcurement_ReceiveGoods(t *testing.T) {
	_, proc, inv, ctx := setupProcurementTest(t)

	po := orderedPO(t, ctx, proc, []core.POLineInput{
		{ProductID: 1, Quantity: decimal.NewFromInt(20), UnitCost: decimal.NewFromInt(55)},
	})

	receipt, err := proc.ReceiveGoods(ctx, po.ID, "DN-1001", []core.ReceiptLineInput{
		{POLineID: po.Lines[0].ID, Quantity: decimal.NewFromInt(12)},
	}, 1)
	if err != nil {
		t.Fatalf("ReceiveGoods failed: %v", err)
	}
	if receipt.Reference != "DN-1001" {
		t.Errorf("Expected reference recorded, got %q", receipt.Reference)
	}

	got, err := proc.GetPurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder failed: %v", err)
	}
	if got.Status != core.POPartiallyReceived {
		t.Errorf("Expected partially_received, got %s", got.Status)
	}
	if !got.Lines[0].ReceivedQuantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected received=12, got %s", got.Lines[0].ReceivedQuantity)
	}

	hammer, err := inv.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !hammer.QuantityInStock.Equal(decimal.NewFromInt(62)) {
		t.Errorf("Expected stock=62 after receipt, got %s", hammer.QuantityInStock)
	}
	entry := lastStockEntry(t, ctx, inv, 1)
	if entry.Kind != core.StockReceived {
		t.Errorf("Expected received ledger entry, got %s", entry.Kind)
	}

	// The second delivery overshoots by one; it is accepted and the order
	// still counts as fully received.
	if _, err := proc.ReceiveGoods(ctx, po.ID, "DN-1002", []core.ReceiptLineInput{
		{POLineID: po.Lines[0].ID, Quantity: decimal.NewFromInt(9)},
	}, 1); err != nil {
		t.Fatalf("Second ReceiveGoods failed: %v", err)
	}

	got, err = proc.GetPurchaseOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("GetPurchaseOrder failed: %v", err)
	}
	if got.Status != core.POReceived {
		t.Errorf("Expected received, got %s", got.Status)
	}
	if !got.Lines[0].ReceivedQuantity.Equal(decimal.NewFromInt(21)) {
		t.Errorf("Expected received=21, got %s", got.Lines[0].ReceivedQuantity)
	}
}

func TestProcurement_Cancel(t *testing.T) {
	_, proc, _, ctx := setupProcurementTest(t)

	po := orderedPO(t, ctx, proc, []core.POLineInput{
		{ProductID: 2, Quantity: decimal.NewFromInt(100), UnitCost: decimal.NewFromInt(5)},
	})

	if _, err := proc.ReceiveGoods(ctx, po.ID, "", []core.ReceiptLineInput{
		{POLineID: po.Lines[0].ID, Quantity: decimal.NewFromInt(100)},
	}, 1); err != nil {
		t.Fatalf("ReceiveGoods failed: %v", err)
	}

	if _, err := proc.CancelPurchaseOrder(ctx, po.ID); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition cancelling received order, got %v", err)
	}
}
