package core_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, context.Context) {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE timeline_events, goods_receipt_lines, goods_receipts,
			purchase_order_lines, purchase_orders, suppliers,
			transfer_settlements, transfer_lines, transfer_orders,
			material_request_lines, material_requests,
			repair_payments, repair_invoices, labour_charges, repair_job_parts,
			repair_jobs, job_types,
			daily_cash_closes, expenses, quotes, quote_items,
			refunds, payments, sale_items, sales, order_items, orders,
			stock_entries, products, categories, customers, users, units
		RESTART IDENTITY CASCADE;

		INSERT INTO units (code, name) VALUES ('shop', 'Shop'), ('workshop', 'Workshop');

		INSERT INTO users (username, full_name, password_hash, role, unit_id) VALUES
		('manager',  'M. Manager',    'x', 'manager',    1),
		('cashier',  'C. Cashier',    'x', 'cashier',    1),
		('tech',     'T. Technician', 'x', 'technician', 2);

		INSERT INTO customers (name, phone, credit_limit, is_blacklisted) VALUES
		('Walk-in Regular', '0700000001', 1000, false),
		('Blocked Buyer',   '0700000002', 5000, true),
		('Open Account',    '0700000003', NULL, false);

		INSERT INTO categories (name) VALUES ('Tools'), ('Consumables');

		INSERT INTO products (name, category_id, buying_price, selling_price, wholesale_price, quantity_in_stock, threshold) VALUES
		('Hammer', 1,  60, 100,  80,  50, 5),
		('Nails',  2,   5,  10,   0, 200, 20),
		('Drill',  1, 300, 500, 450,  10, 2);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool, ctx
}

func setupInventoryTest(t *testing.T) (*pgxpool.Pool, core.InventoryService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	timeline := core.NewTimelineService(pool)
	return pool, core.NewInventoryService(pool, timeline), ctx
}

// lastStockEntry fetches the newest ledger entry for a product.
func lastStockEntry(t *testing.T, ctx context.Context, inv core.InventoryService, productID int) core.StockEntry {
	t.Helper()
	entries, err := inv.GetStockEntries(ctx, productID, "", 1)
	if err != nil {
		t.Fatalf("GetStockEntries failed: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("No stock entries for product %d", productID)
	}
	return entries[0]
}

func TestInventory_CreateProductRecordsLedger(t *testing.T) {
	_, inv, ctx := setupInventoryTest(t)

	p, err := inv.CreateProduct(ctx, core.ProductInput{
		Name:         "Chisel",
		BuyingPrice:  decimal.NewFromInt(20),
		SellingPrice: decimal.NewFromInt(35),
		Quantity:     decimal.NewFromInt(12),
	}, 1)
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	entry := lastStockEntry(t, ctx, inv, p.ID)
	if entry.Kind != core.StockAdded {
		t.Errorf("Expected kind=added, got %s", entry.Kind)
	}
	if !entry.Quantity.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected quantity=12, got %s", entry.Quantity)
	}
	if !entry.LevelAfter.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected level_after=12, got %s", entry.LevelAfter)
	}
}

func TestInventory_ReceiveStock(t *testing.T) {
	_, inv, ctx := setupInventoryTest(t)

	p, err := inv.ReceiveStock(ctx, 1, decimal.NewFromInt(25), "supplier drop", 1)
	if err != nil {
		t.Fatalf("ReceiveStock failed: %v", err)
	}
	if !p.QuantityInStock.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected stock=75, got %s", p.QuantityInStock)
	}

	entry := lastStockEntry(t, ctx, inv, 1)
	if entry.Kind != core.StockIn {
		t.Errorf("Expected kind=stock_in, got %s", entry.Kind)
	}
	if !entry.LevelAfter.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected level_after=75, got %s", entry.LevelAfter)
	}
}

func TestInventory_AdjustQuantityRecordsSignedDelta(t *testing.T) {
	_, inv, ctx := setupInventoryTest(t)

	// 50 → 44: delta should be -6
	p, err := inv.UpdateStockQuantity(ctx, 1, decimal.NewFromInt(44), "count correction", 1)
	if err != nil {
		t.Fatalf("UpdateStockQuantity failed: %v", err)
	}
	if !p.QuantityInStock.Equal(decimal.NewFromInt(44)) {
		t.Errorf("Expected stock=44, got %s", p.QuantityInStock)
	}

	entry := lastStockEntry(t, ctx, inv, 1)
	if entry.Kind != core.StockQuantityUpdated {
		t.Errorf("Expected kind=quantity_updated, got %s", entry.Kind)
	}
	if !entry.Quantity.Equal(decimal.NewFromInt(-6)) {
		t.Errorf("Expected delta=-6, got %s", entry.Quantity)
	}
}

func TestInventory_LowStockFilter(t *testing.T) {
	_, inv, ctx := setupInventoryTest(t)

	// Drop the drill to its threshold.
	if _, err := inv.UpdateStockQuantity(ctx, 3, decimal.NewFromInt(2), "", 1); err != nil {
		t.Fatalf("UpdateStockQuantity failed: %v", err)
	}

	low, err := inv.GetProducts(ctx, true)
	if err != nil {
		t.Fatalf("GetProducts(lowStockOnly) failed: %v", err)
	}
	if len(low) != 1 || low[0].Name != "Drill" {
		t.Errorf("Expected only Drill below threshold, got %d products", len(low))
	}
}

func TestInventory_DeleteProduct(t *testing.T) {
	_, inv, ctx := setupInventoryTest(t)

	if err := inv.DeleteProduct(ctx, 2, 1); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}

	_, err := inv.GetProduct(ctx, 2)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
