package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupSaleTest(t *testing.T) (*pgxpool.Pool, core.SaleService, core.InventoryService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	timeline := core.NewTimelineService(pool)
	inv := core.NewInventoryService(pool, timeline)
	sales := core.NewSaleService(pool, inv, timeline)
	return pool, sales, inv, ctx
}

func intp(v int) *int { return &v }

// completeSimpleSale sells qty hammers fully paid in cash.
func completeSimpleSale(t *testing.T, ctx context.Context, sales core.SaleService, qty int64) *core.Sale {
	t.Helper()
	total := decimal.NewFromInt(qty * 100)
	sale, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
		Items:      []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(qty)}},
		AmountPaid: total,
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}
	return sale
}

func TestSale_CompleteSale(t *testing.T) {
	_, sales, inv, ctx := setupSaleTest(t)

	// 3 hammers @100 and 20 nails @10 = 500, paid in full
	sale, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
		Items: []core.SaleLineInput{
			{ProductID: 1, Quantity: decimal.NewFromInt(3)},
			{ProductID: 2, Quantity: decimal.NewFromInt(20)},
		},
		AmountPaid: decimal.NewFromInt(500),
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	if !sale.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected total=500, got %s", sale.TotalAmount)
	}
	if !sale.FinalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected final=500, got %s", sale.FinalAmount)
	}
	if sale.PaymentStatus != core.PaymentPaid {
		t.Errorf("Expected payment_status=paid, got %s", sale.PaymentStatus)
	}
	if sale.IsLoan {
		t.Error("Fully paid sale must not be a loan")
	}
	if sale.ReceiptNumber == "" {
		t.Error("Expected a receipt number")
	}

	// Stock deducted through the ledger
	hammer, err := inv.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !hammer.QuantityInStock.Equal(decimal.NewFromInt(47)) {
		t.Errorf("Expected hammer stock=47, got %s", hammer.QuantityInStock)
	}
	entry := lastStockEntry(t, ctx, inv, 1)
	if entry.Kind != core.StockSold {
		t.Errorf("Expected ledger kind=sold, got %s", entry.Kind)
	}
}

func TestSale_WholesalePricing(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	// Hammer has wholesale 80; nails have none and fall back to retail 10.
	sale, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
		OrderType: core.OrderTypeWholesale,
		Items: []core.SaleLineInput{
			{ProductID: 1, Quantity: decimal.NewFromInt(5)},
			{ProductID: 2, Quantity: decimal.NewFromInt(10)},
		},
		AmountPaid: decimal.NewFromInt(500),
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	// 5*80 + 10*10 = 500
	if !sale.TotalAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected wholesale total=500, got %s", sale.TotalAmount)
	}
}

func TestSale_Validation(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	base := core.CompleteSaleRequest{
		Items:  []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(1)}},
		Method: core.MethodCash,
	}

	t.Run("discount exceeds total", func(t *testing.T) {
		req := base
		req.Discount = decimal.NewFromInt(150)
		if _, err := sales.CompleteSale(ctx, req, 2); !errors.Is(err, core.ErrDiscountExceedsTotal) {
			t.Errorf("Expected ErrDiscountExceedsTotal, got %v", err)
		}
	})

	t.Run("negative discount", func(t *testing.T) {
		req := base
		req.Discount = decimal.NewFromInt(-5)
		if _, err := sales.CompleteSale(ctx, req, 2); !errors.Is(err, core.ErrInvalidAmount) {
			t.Errorf("Expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("overpayment", func(t *testing.T) {
		req := base
		req.AmountPaid = decimal.NewFromInt(101)
		if _, err := sales.CompleteSale(ctx, req, 2); !errors.Is(err, core.ErrOverpaymentNotAllowed) {
			t.Errorf("Expected ErrOverpaymentNotAllowed, got %v", err)
		}
	})

	t.Run("insufficient stock", func(t *testing.T) {
		req := base
		req.Items = []core.SaleLineInput{{ProductID: 3, Quantity: decimal.NewFromInt(11)}}
		req.AmountPaid = decimal.Zero
		req.CustomerID = intp(3)
		if _, err := sales.CompleteSale(ctx, req, 2); !errors.Is(err, core.ErrInsufficientStock) {
			t.Errorf("Expected ErrInsufficientStock, got %v", err)
		}
	})
}

func TestSale_ConcurrentLoansShareOneLimit(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	// Two simultaneous 600 loans for customer 1 (limit 1000) on different
	// products. The customer row lock serializes the credit checks, so the
	// second sees the first loan outstanding and must fail.
	requests := []core.CompleteSaleRequest{
		{CustomerID: intp(1), Items: []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(6)}}, Method: core.MethodCash},
		{CustomerID: intp(1), Items: []core.SaleLineInput{{ProductID: 2, Quantity: decimal.NewFromInt(60)}}, Method: core.MethodCash},
	}

	errs := make(chan error, len(requests))
	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		go func(req core.CompleteSaleRequest) {
			defer wg.Done()
			_, err := sales.CompleteSale(ctx, req, 2)
			errs <- err
		}(req)
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrCreditLimitExceeded):
			rejected++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Errorf("Expected exactly one loan granted and one rejected, got %d granted, %d rejected",
			succeeded, rejected)
	}
}

func TestSale_LoanCreditControl(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	t.Run("loan without customer", func(t *testing.T) {
		_, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
			Items:  []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(1)}},
			Method: core.MethodCash,
		}, 2)
		if !errors.Is(err, core.ErrCustomerRequiredForCredit) {
			t.Errorf("Expected ErrCustomerRequiredForCredit, got %v", err)
		}
	})

	t.Run("blacklisted customer", func(t *testing.T) {
		_, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
			CustomerID: intp(2),
			Items:      []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(1)}},
			Method:     core.MethodCash,
		}, 2)
		if !errors.Is(err, core.ErrCustomerBlacklisted) {
			t.Errorf("Expected ErrCustomerBlacklisted, got %v", err)
		}
	})

	t.Run("exactly at the limit is allowed", func(t *testing.T) {
		// Customer 1 has a 1000 limit: a 1000 debt fits exactly.
		sale, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
			CustomerID: intp(1),
			Items:      []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(10)}},
			Method:     core.MethodCash,
		}, 2)
		if err != nil {
			t.Fatalf("Expected boundary loan to pass, got %v", err)
		}
		if !sale.IsLoan || sale.PaymentStatus != core.PaymentNotPaid {
			t.Errorf("Expected unpaid loan, got is_loan=%v status=%s", sale.IsLoan, sale.PaymentStatus)
		}
	})

	t.Run("over the limit is rejected", func(t *testing.T) {
		// Outstanding is now 1000; any further credit breaks the limit.
		_, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
			CustomerID: intp(1),
			Items:      []core.SaleLineInput{{ProductID: 2, Quantity: decimal.NewFromInt(1)}},
			Method:     core.MethodCash,
		}, 2)
		if !errors.Is(err, core.ErrCreditLimitExceeded) {
			t.Errorf("Expected ErrCreditLimitExceeded, got %v", err)
		}
	})

	t.Run("nil limit means unlimited", func(t *testing.T) {
		_, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
			CustomerID: intp(3),
			Items:      []core.SaleLineInput{{ProductID: 3, Quantity: decimal.NewFromInt(9)}},
			Method:     core.MethodCash,
		}, 2)
		if err != nil {
			t.Errorf("Expected unlimited credit to pass, got %v", err)
		}
	})
}

func TestSale_RecordPayment(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	// Loan of 400 for hammers.
	sale, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
		CustomerID: intp(1),
		Items:      []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(4)}},
		AmountPaid: decimal.NewFromInt(100),
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}
	if !sale.IsLoan || sale.PaymentStatus != core.PaymentPartial {
		t.Fatalf("Expected partial loan, got is_loan=%v status=%s", sale.IsLoan, sale.PaymentStatus)
	}

	// Overpaying the balance is rejected.
	if _, err := sales.RecordPayment(ctx, sale.ID, decimal.NewFromInt(301), core.MethodCash, 2); !errors.Is(err, core.ErrOverpaymentNotAllowed) {
		t.Errorf("Expected ErrOverpaymentNotAllowed, got %v", err)
	}

	// Paying off the balance settles the loan but keeps its history.
	settled, err := sales.RecordPayment(ctx, sale.ID, decimal.NewFromInt(300), core.MethodMobileMoney, 2)
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if settled.PaymentStatus != core.PaymentPaid {
		t.Errorf("Expected paid, got %s", settled.PaymentStatus)
	}
	if !settled.IsLoan {
		t.Error("is_loan must stay true after settlement")
	}
}

func TestSale_Refund(t *testing.T) {
	pool, sales, inv, ctx := setupSaleTest(t)

	sale := completeSimpleSale(t, ctx, sales, 2)

	refunded, err := sales.RefundSale(ctx, sale.ID, "changed mind", 1)
	if err != nil {
		t.Fatalf("RefundSale failed: %v", err)
	}
	if refunded.Status != core.SaleRefunded || refunded.PaymentStatus != core.PaymentRefunded {
		t.Errorf("Expected refunded/refunded, got %s/%s", refunded.Status, refunded.PaymentStatus)
	}
	if !refunded.RefundTotal.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected refund_total=200, got %s", refunded.RefundTotal)
	}
	if !refunded.PaidAmount.IsZero() {
		t.Errorf("Expected paid_amount to net to zero, got %s", refunded.PaidAmount)
	}

	// Items restocked.
	hammer, err := inv.GetProduct(ctx, 1)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if !hammer.QuantityInStock.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected stock restored to 50, got %s", hammer.QuantityInStock)
	}

	// Second refund is rejected.
	if _, err := sales.RefundSale(ctx, sale.ID, "again", 1); !errors.Is(err, core.ErrAlreadyRefunded) {
		t.Errorf("Expected ErrAlreadyRefunded, got %v", err)
	}

	// Refund window: an 11-day-old sale cannot be refunded.
	old := completeSimpleSale(t, ctx, sales, 1)
	if _, err := pool.Exec(ctx, "UPDATE sales SET created_at = now() - interval '11 days' WHERE id = $1", old.ID); err != nil {
		t.Fatalf("Failed to age sale: %v", err)
	}
	if _, err := sales.RefundSale(ctx, old.ID, "too late", 1); !errors.Is(err, core.ErrRefundWindowExpired) {
		t.Errorf("Expected ErrRefundWindowExpired, got %v", err)
	}
}

func TestSale_MarkChecked(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	sale := completeSimpleSale(t, ctx, sales, 1)

	checked, err := sales.MarkChecked(ctx, sale.ID, 1)
	if err != nil {
		t.Fatalf("MarkChecked failed: %v", err)
	}
	if !checked.IsChecked || checked.CheckedBy == nil {
		t.Error("Expected sale to be marked checked with an auditor")
	}

	if _, err := sales.MarkChecked(ctx, sale.ID, 1); !errors.Is(err, core.ErrAlreadyProcessed) {
		t.Errorf("Expected ErrAlreadyProcessed on re-check, got %v", err)
	}
}

func TestSale_LoanSummary(t *testing.T) {
	_, sales, _, ctx := setupSaleTest(t)

	_, err := sales.CompleteSale(ctx, core.CompleteSaleRequest{
		CustomerID: intp(1),
		Items:      []core.SaleLineInput{{ProductID: 1, Quantity: decimal.NewFromInt(5)}},
		AmountPaid: decimal.NewFromInt(200),
		Method:     core.MethodCash,
	}, 2)
	if err != nil {
		t.Fatalf("CompleteSale failed: %v", err)
	}

	rows, err := sales.GetLoanSummary(ctx)
	if err != nil {
		t.Fatalf("GetLoanSummary failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 debtor, got %d", len(rows))
	}
	if !rows[0].Outstanding.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected outstanding=300, got %s", rows[0].Outstanding)
	}
}
