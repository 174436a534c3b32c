package core_test

import (
	"context"
	"testing"
	"time"

	"pos-backoffice/internal/cache"
	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupCashbookTest(t *testing.T) (*pgxpool.Pool, core.CashbookService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	// Empty address disables Redis; the service falls back to the database.
	cashbook := core.NewCashbookService(pool, cache.New("", ""))
	return pool, cashbook, ctx
}

func TestCashbook_ShopExpectedCash(t *testing.T) {
	pool, cashbook, ctx := setupCashbookTest(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)
	transfers := core.NewTransferService(pool, inv, timeline)
	expenses := core.NewExpenseService(pool, timeline)

	// One confirmed sale paid in full: 2 hammers = 200 cash in.
	completeSimpleSale(t, ctx, sales, 2)

	// A settled-and-cleared 60 from the workshop counts; an uncleared 40
	// does not.
	transfer := approvedTransfer(t, ctx, transfers, nil,
		[]core.RequestLineInput{{ProductID: 2, Quantity: decimal.NewFromInt(20)}}) // 100 owed
	if _, err := transfers.RecordSettlement(ctx, transfer.ID, decimal.NewFromInt(60), "", 3); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}
	if _, err := transfers.RecordSettlement(ctx, transfer.ID, decimal.NewFromInt(40), "", 3); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}
	stls, err := transfers.GetSettlements(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("GetSettlements failed: %v", err)
	}
	if _, err := transfers.ClearSettlement(ctx, stls[0].ID, 1); err != nil {
		t.Fatalf("ClearSettlement failed: %v", err)
	}

	// A 50 shop expense reduces the drawer.
	if _, err := expenses.RecordExpense(ctx, core.UnitShop, core.ExpenseUtilities,
		decimal.NewFromInt(50), "electricity", time.Now(), 1); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	got, err := cashbook.ExpectedCash(ctx, core.UnitShop, time.Now())
	if err != nil {
		t.Fatalf("ExpectedCash failed: %v", err)
	}
	// 200 + 60 - 50 = 210.
	if !got.Equal(decimal.NewFromInt(210)) {
		t.Errorf("Expected shop cash=210, got %s", got)
	}
}

func TestCashbook_WorkshopExpectedCash(t *testing.T) {
	pool, cashbook, ctx := setupCashbookTest(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	transfers := core.NewTransferService(pool, inv, timeline)
	repairs := core.NewRepairService(pool, timeline)
	expenses := core.NewExpenseService(pool, timeline)

	// 500 of repair money in.
	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{})
	if _, err := repairs.AddLabour(ctx, job.ID, "replace bearings", decimal.NewFromInt(500), 3); err != nil {
		t.Fatalf("AddLabour failed: %v", err)
	}
	invc, err := repairs.GetInvoiceByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetInvoiceByJob failed: %v", err)
	}
	if _, err := repairs.RecordPayment(ctx, invc.ID, decimal.NewFromInt(500), core.MethodCash, 3); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	// 100 paid back to the shop leaves the workshop drawer regardless of
	// whether the shop has cleared it yet.
	transfer := approvedTransfer(t, ctx, transfers, nil,
		[]core.RequestLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(5)}}) // 300 owed
	if _, err := transfers.RecordSettlement(ctx, transfer.ID, decimal.NewFromInt(100), "", 3); err != nil {
		t.Fatalf("RecordSettlement failed: %v", err)
	}

	if _, err := expenses.RecordExpense(ctx, core.UnitWorkshop, core.ExpenseOther,
		decimal.NewFromInt(30), "solvent", time.Now(), 3); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	got, err := cashbook.ExpectedCash(ctx, core.UnitWorkshop, time.Now())
	if err != nil {
		t.Fatalf("ExpectedCash failed: %v", err)
	}
	// 500 - 100 - 30 = 370.
	if !got.Equal(decimal.NewFromInt(370)) {
		t.Errorf("Expected workshop cash=370, got %s", got)
	}
}

func TestCashbook_SubmitCloseUpserts(t *testing.T) {
	pool, cashbook, ctx := setupCashbookTest(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)

	completeSimpleSale(t, ctx, sales, 1) // expected 100

	day := time.Now()
	first, err := cashbook.SubmitCashClose(ctx, core.UnitShop, day, decimal.NewFromInt(95), "short", 2)
	if err != nil {
		t.Fatalf("SubmitCashClose failed: %v", err)
	}
	if !first.Variance.Equal(decimal.NewFromInt(-5)) {
		t.Errorf("Expected variance=-5, got %s", first.Variance)
	}

	// Recounting the same drawer replaces the close instead of adding one.
	second, err := cashbook.SubmitCashClose(ctx, core.UnitShop, day, decimal.NewFromInt(100), "", 1)
	if err != nil {
		t.Fatalf("Second SubmitCashClose failed: %v", err)
	}
	if !second.Variance.IsZero() {
		t.Errorf("Expected zero variance after recount, got %s", second.Variance)
	}

	closes, err := cashbook.GetCashCloses(ctx, core.UnitShop, nil, nil)
	if err != nil {
		t.Fatalf("GetCashCloses failed: %v", err)
	}
	if len(closes) != 1 {
		t.Fatalf("Expected a single close for the day, got %d", len(closes))
	}
	if !closes[0].ActualAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected last count kept, got %s", closes[0].ActualAmount)
	}
	if closes[0].ClosedBy != 1 {
		t.Errorf("Expected last closer recorded, got %d", closes[0].ClosedBy)
	}
}

func TestCashbook_Dashboard(t *testing.T) {
	pool, cashbook, ctx := setupCashbookTest(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)

	completeSimpleSale(t, ctx, sales, 3)

	dash, err := cashbook.Dashboard(ctx, core.UnitShop)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if dash.SalesToday != 1 {
		t.Errorf("Expected 1 sale today, got %d", dash.SalesToday)
	}
	if !dash.RevenueToday.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected revenue=300, got %s", dash.RevenueToday)
	}
}

func TestCashbook_Report(t *testing.T) {
	pool, cashbook, ctx := setupCashbookTest(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)
	expenses := core.NewExpenseService(pool, timeline)

	completeSimpleSale(t, ctx, sales, 2)
	if _, err := expenses.RecordExpense(ctx, core.UnitShop, core.ExpenseRent,
		decimal.NewFromInt(80), "stall rent", time.Now(), 1); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(24 * time.Hour)
	report, err := cashbook.Report(ctx, core.UnitShop, from, to)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.SalesCount != 1 {
		t.Errorf("Expected 1 sale, got %d", report.SalesCount)
	}
	if !report.Revenue.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected revenue=200, got %s", report.Revenue)
	}
	if !report.Expenses.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Expected expenses=80, got %s", report.Expenses)
	}
}
