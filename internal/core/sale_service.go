package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// refundWindow is how long after a sale a refund is accepted.
const refundWindow = 10 * 24 * time.Hour

// SaleLineInput is one product and quantity being sold.
type SaleLineInput struct {
	ProductID int
	Quantity  decimal.Decimal
}

// CompleteSaleRequest carries everything needed to close a sale at the till.
type CompleteSaleRequest struct {
	CustomerID *int
	Unit       UnitCode // empty means shop
	OrderType  OrderType
	OrderID    *int
	Items      []SaleLineInput
	Discount   decimal.Decimal
	AmountPaid decimal.Decimal
	Method     PaymentMethod
}

// SaleFilter narrows GetSales.
type SaleFilter struct {
	Unit          UnitCode
	PaymentStatus PaymentStatus
	LoansOnly     bool
	From, To      *time.Time
}

// LoanSummaryRow is one customer's open credit position.
type LoanSummaryRow struct {
	CustomerID  int             `json:"customer_id"`
	Name        string          `json:"name"`
	LoanCount   int             `json:"loan_count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// SaleService completes sales, records payments, and runs the refund
// protocol. All stock effects go through the inventory ledger.
type SaleService interface {
	// CompleteSale closes a point-of-sale transaction: prices and stock
	// checks, discount and payment validation, the credit check for loan
	// sales, sale and item rows, stock deduction, and the initial payment.
	CompleteSale(ctx context.Context, req CompleteSaleRequest, actorID int) (*Sale, error)

	// CompleteSaleTx is CompleteSale within a caller-provided transaction,
	// used when confirming a staff order.
	CompleteSaleTx(ctx context.Context, tx pgx.Tx, req CompleteSaleRequest, actorID int) (*Sale, error)

	// RecordPayment appends a payment to a sale and re-derives paid amount
	// and payment status from the payment rows.
	RecordPayment(ctx context.Context, saleID int, amount decimal.Decimal, method PaymentMethod, actorID int) (*Sale, error)

	// RefundSale refunds the sale's full paid amount, restocks every item,
	// and marks the sale refunded. Allowed once, within the refund window,
	// and only when something was paid.
	RefundSale(ctx context.Context, saleID int, reason string, actorID int) (*Sale, error)

	// MarkChecked records the storekeeper's fulfilment check. A sale can
	// only be checked once.
	MarkChecked(ctx context.Context, saleID int, actorID int) (*Sale, error)

	GetSale(ctx context.Context, saleID int) (*Sale, error)
	GetSales(ctx context.Context, filter SaleFilter) ([]Sale, error)

	// GetLoanSummary lists customers with open loan balances.
	GetLoanSummary(ctx context.Context) ([]LoanSummaryRow, error)
}

type saleService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	timeline  TimelineService
}

// NewSaleService constructs a SaleService backed by PostgreSQL.
func NewSaleService(pool *pgxpool.Pool, inventory InventoryService, timeline TimelineService) SaleService {
	return &saleService{pool: pool, inventory: inventory, timeline: timeline}
}

// ── Sale completion ──────────────────────────────────────────────────────────

func (s *saleService) CompleteSale(ctx context.Context, req CompleteSaleRequest, actorID int) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := s.CompleteSaleTx(ctx, tx, req, actorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}
	return sale, nil
}

func (s *saleService) CompleteSaleTx(ctx context.Context, tx pgx.Tx, req CompleteSaleRequest, actorID int) (*Sale, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("sale has no items: %w", ErrInvalidQuantity)
	}

	// Lock products in id order so concurrent sales cannot deadlock.
	items := make([]SaleLineInput, len(req.Items))
	copy(items, req.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	type resolvedLine struct {
		productID int
		quantity  decimal.Decimal
		unitPrice decimal.Decimal
		lineTotal decimal.Decimal
	}
	var lines []resolvedLine
	total := decimal.Zero
	for _, it := range items {
		if !it.Quantity.IsPositive() {
			return nil, fmt.Errorf("product %d quantity %s: %w", it.ProductID, it.Quantity, ErrInvalidQuantity)
		}
		p, err := lockProduct(ctx, tx, it.ProductID)
		if err != nil {
			return nil, err
		}
		price := p.SellingPrice
		if req.OrderType == OrderTypeWholesale && p.WholesalePrice.IsPositive() {
			price = p.WholesalePrice
		}
		lineTotal := RoundTwo(price.Mul(it.Quantity))
		lines = append(lines, resolvedLine{productID: p.ID, quantity: it.Quantity, unitPrice: price, lineTotal: lineTotal})
		total = total.Add(lineTotal)
	}
	total = RoundTwo(total)

	if req.Discount.IsNegative() {
		return nil, fmt.Errorf("discount %s: %w", req.Discount, ErrInvalidAmount)
	}
	if req.Discount.GreaterThan(total) {
		return nil, fmt.Errorf("discount %s against total %s: %w", req.Discount, total, ErrDiscountExceedsTotal)
	}
	final := FinalAmount(total, req.Discount)

	if req.AmountPaid.IsNegative() {
		return nil, fmt.Errorf("amount paid %s: %w", req.AmountPaid, ErrInvalidAmount)
	}
	if req.AmountPaid.GreaterThan(final) {
		return nil, fmt.Errorf("paid %s against final %s: %w", req.AmountPaid, final, ErrOverpaymentNotAllowed)
	}

	isLoan := req.AmountPaid.LessThan(final)
	if isLoan {
		if req.CustomerID == nil {
			return nil, ErrCustomerRequiredForCredit
		}
		if err := checkCreditTx(ctx, tx, *req.CustomerID, final.Sub(req.AmountPaid)); err != nil {
			return nil, err
		}
	}

	unit := req.Unit
	if unit == "" {
		unit = UnitShop
	}
	unitID, err := resolveUnitID(ctx, tx, unit)
	if err != nil {
		return nil, err
	}

	sale := &Sale{
		ReceiptNumber: "RCP-" + uuid.NewString(),
		CustomerID:    req.CustomerID,
		UnitID:        &unitID,
		OrderID:       req.OrderID,
		OrderType:     req.OrderType,
		Status:        SaleConfirmed,
		TotalAmount:   total,
		Discount:      RoundTwo(req.Discount),
		FinalAmount:   RoundTwo(final),
		PaidAmount:    RoundTwo(req.AmountPaid),
		RefundTotal:   decimal.Zero,
		PaymentStatus: DerivePaymentStatus(req.AmountPaid, final),
		IsLoan:        isLoan,
		CreatedBy:     actorID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (receipt_number, customer_id, unit_id, order_id, order_type, status,
		                   total_amount, discount, final_amount, paid_amount, refund_total,
		                   payment_status, is_loan, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at`,
		sale.ReceiptNumber, sale.CustomerID, sale.UnitID, sale.OrderID, sale.OrderType, sale.Status,
		sale.TotalAmount, sale.Discount, sale.FinalAmount, sale.PaidAmount, sale.RefundTotal,
		sale.PaymentStatus, sale.IsLoan, sale.CreatedBy,
	).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	for _, l := range lines {
		item := SaleItem{SaleID: sale.ID, ProductID: l.productID, Quantity: l.quantity, UnitPrice: l.unitPrice, LineTotal: l.lineTotal}
		err := tx.QueryRow(ctx, `
			INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create sale item for product %d: %w", l.productID, err)
		}
		sale.Items = append(sale.Items, item)

		_, err = s.inventory.RemoveStockTx(ctx, tx, l.productID, l.quantity, StockSold, &actorID, "sale", &sale.ID, "")
		if err != nil {
			return nil, err
		}
	}

	if sale.PaidAmount.IsPositive() {
		_, err = tx.Exec(ctx, `
			INSERT INTO payments (sale_id, amount, method, received_by)
			VALUES ($1, $2, $3, $4)`,
			sale.ID, sale.PaidAmount, req.Method, actorID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record initial payment: %w", err)
		}
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventSaleCreated, ActorID: &actorID,
		EntityType: "sale", EntityID: &sale.ID,
		Summary: fmt.Sprintf("Sale %s for %s completed", sale.ReceiptNumber, sale.FinalAmount),
	})
	if err != nil {
		return nil, err
	}
	if sale.PaidAmount.IsPositive() {
		kind := EventPaymentRecorded
		if sale.IsLoan {
			kind = EventLoanPayment
		}
		err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
			Kind: kind, ActorID: &actorID,
			EntityType: "sale", EntityID: &sale.ID,
			Summary: fmt.Sprintf("Payment of %s on sale %s", sale.PaidAmount, sale.ReceiptNumber),
		})
		if err != nil {
			return nil, err
		}
	}

	return sale, nil
}

// ── Payments ─────────────────────────────────────────────────────────────────

func (s *saleService) RecordPayment(ctx context.Context, saleID int, amount decimal.Decimal, method PaymentMethod, actorID int) (*Sale, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment of %s on sale %d: %w", amount, saleID, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := lockSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == SaleRefunded {
		return nil, fmt.Errorf("sale %d: %w", saleID, ErrAlreadyRefunded)
	}

	remaining := sale.FinalAmount.Sub(sale.PaidAmount)
	if amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("payment %s exceeds remaining balance %s on sale %d: %w",
			amount, remaining, saleID, ErrOverpaymentNotAllowed)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO payments (sale_id, amount, method, received_by) VALUES ($1, $2, $3, $4)",
		saleID, RoundTwo(amount), method, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	if err := recomputePaidTx(ctx, tx, sale); err != nil {
		return nil, err
	}

	kind := EventPaymentRecorded
	if sale.IsLoan {
		kind = EventLoanPayment
	}
	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: kind, ActorID: &actorID,
		EntityType: "sale", EntityID: &saleID,
		Summary: fmt.Sprintf("Payment of %s on sale %s", amount, sale.ReceiptNumber),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return sale, nil
}

// recomputePaidTx re-derives a sale's paid amount and payment status from
// its payment rows and writes both back. The passed sale is updated in place.
func recomputePaidTx(ctx context.Context, tx pgx.Tx, sale *Sale) error {
	err := tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE sale_id = $1", sale.ID,
	).Scan(&sale.PaidAmount)
	if err != nil {
		return fmt.Errorf("failed to sum payments for sale %d: %w", sale.ID, err)
	}

	sale.PaymentStatus = DerivePaymentStatus(sale.PaidAmount, sale.FinalAmount)
	if sale.Status == SaleRefunded {
		sale.PaymentStatus = PaymentRefunded
	}

	_, err = tx.Exec(ctx,
		"UPDATE sales SET paid_amount = $2, payment_status = $3 WHERE id = $1",
		sale.ID, sale.PaidAmount, sale.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale %d payment state: %w", sale.ID, err)
	}
	return nil
}

// ── Refunds ──────────────────────────────────────────────────────────────────

func (s *saleService) RefundSale(ctx context.Context, saleID int, reason string, actorID int) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := lockSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == SaleRefunded {
		return nil, fmt.Errorf("sale %d: %w", saleID, ErrAlreadyRefunded)
	}
	if !sale.PaidAmount.IsPositive() {
		return nil, fmt.Errorf("sale %d: %w", saleID, ErrNothingToRefund)
	}
	if time.Since(sale.CreatedAt) > refundWindow {
		return nil, fmt.Errorf("sale %d from %s: %w", saleID, sale.CreatedAt.Format("2006-01-02"), ErrRefundWindowExpired)
	}

	amount := sale.PaidAmount
	_, err = tx.Exec(ctx,
		"INSERT INTO refunds (sale_id, amount, reason, processed_by) VALUES ($1, $2, $3, $4)",
		saleID, amount, reason, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refund: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO payments (sale_id, amount, method, received_by) VALUES ($1, $2, $3, $4)",
		saleID, amount.Neg(), MethodRefund, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record refund payment: %w", err)
	}

	sale.Status = SaleRefunded
	sale.RefundTotal = sale.RefundTotal.Add(amount)
	_, err = tx.Exec(ctx,
		"UPDATE sales SET status = $2, refund_total = $3 WHERE id = $1",
		saleID, sale.Status, sale.RefundTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark sale %d refunded: %w", saleID, err)
	}
	if err := recomputePaidTx(ctx, tx, sale); err != nil {
		return nil, err
	}

	items, err := fetchSaleItemsQ(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		_, err := s.inventory.AddStockTx(ctx, tx, it.ProductID, it.Quantity, StockReturned, &actorID, "refund", &saleID, "sale refund")
		if err != nil {
			return nil, err
		}
	}
	sale.Items = items

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventSaleRefunded, ActorID: &actorID,
		EntityType: "sale", EntityID: &saleID,
		Summary: fmt.Sprintf("Sale %s refunded %s", sale.ReceiptNumber, amount),
		Details: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	return sale, nil
}

// ── Fulfilment check ─────────────────────────────────────────────────────────

func (s *saleService) MarkChecked(ctx context.Context, saleID int, actorID int) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := lockSale(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.IsChecked {
		return nil, fmt.Errorf("sale %d already checked: %w", saleID, ErrAlreadyProcessed)
	}

	now := time.Now()
	sale.IsChecked = true
	sale.CheckedBy = &actorID
	sale.CheckedAt = &now
	_, err = tx.Exec(ctx,
		"UPDATE sales SET is_checked = true, checked_by = $2, checked_at = $3 WHERE id = $1",
		saleID, actorID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark sale %d checked: %w", saleID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventSaleChecked, ActorID: &actorID,
		EntityType: "sale", EntityID: &saleID,
		Summary: fmt.Sprintf("Sale %s fulfilment checked", sale.ReceiptNumber),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit fulfilment check: %w", err)
	}
	return sale, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

const saleColumns = `id, receipt_number, customer_id, unit_id, order_id, order_type, status,
	total_amount, discount, final_amount, paid_amount, refund_total, payment_status,
	is_loan, is_checked, checked_by, checked_at, created_by, created_at`

func scanSale(row pgx.Row) (*Sale, error) {
	sale := &Sale{}
	err := row.Scan(&sale.ID, &sale.ReceiptNumber, &sale.CustomerID, &sale.UnitID, &sale.OrderID,
		&sale.OrderType, &sale.Status, &sale.TotalAmount, &sale.Discount, &sale.FinalAmount,
		&sale.PaidAmount, &sale.RefundTotal, &sale.PaymentStatus, &sale.IsLoan,
		&sale.IsChecked, &sale.CheckedBy, &sale.CheckedAt, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *saleService) GetSale(ctx context.Context, saleID int) (*Sale, error) {
	sale, err := scanSale(s.pool.QueryRow(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = $1", saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}
	sale.Items, err = fetchSaleItemsQ(ctx, s.pool, saleID)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *saleService) GetSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	// A unit filter matches null unit ids when the filter is shop: rows
	// written before units existed belong to the shop.
	rows, err := s.pool.Query(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = ''
		       OR ($1 = 'shop' AND (unit_id IS NULL OR unit_id = (SELECT id FROM units WHERE code = 'shop')))
		       OR unit_id = (SELECT id FROM units WHERE code = $1))
		  AND ($2 = '' OR payment_status = $2)
		  AND ($3 = false OR is_loan = true)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY id DESC`,
		string(filter.Unit), string(filter.PaymentStatus), filter.LoansOnly, filter.From, filter.To,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *saleService) GetLoanSummary(ctx context.Context) ([]LoanSummaryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, COUNT(s.id),
		       COALESCE(SUM(GREATEST(s.final_amount - s.paid_amount, 0)), 0)
		FROM customers c
		JOIN sales s ON s.customer_id = c.id
		WHERE s.is_loan = true AND s.status <> 'refunded'
		GROUP BY c.id, c.name
		HAVING SUM(GREATEST(s.final_amount - s.paid_amount, 0)) > 0
		ORDER BY 4 DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query loan summary: %w", err)
	}
	defer rows.Close()

	var summary []LoanSummaryRow
	for rows.Next() {
		var r LoanSummaryRow
		if err := rows.Scan(&r.CustomerID, &r.Name, &r.LoanCount, &r.Outstanding); err != nil {
			return nil, fmt.Errorf("failed to scan loan summary: %w", err)
		}
		summary = append(summary, r)
	}
	return summary, rows.Err()
}

func fetchSaleItemsQ(ctx context.Context, q pgxRowQuerier, saleID int) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, line_total
		FROM sale_items WHERE sale_id = $1 ORDER BY id`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// lockSale reads a sale row FOR UPDATE inside tx.
func lockSale(ctx context.Context, tx pgx.Tx, saleID int) (*Sale, error) {
	sale, err := scanSale(tx.QueryRow(ctx, "SELECT "+saleColumns+" FROM sales WHERE id = $1 FOR UPDATE", saleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock sale %d: %w", saleID, err)
	}
	return sale, nil
}
