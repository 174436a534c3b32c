package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"pos-backoffice/internal/cache"
)

// DashboardSummary is the headline figures for one unit's landing page.
type DashboardSummary struct {
	Unit             UnitCode        `json:"unit"`
	SalesToday       int             `json:"sales_today"`
	RevenueToday     decimal.Decimal `json:"revenue_today"`
	CashToday        decimal.Decimal `json:"cash_today"`
	OutstandingLoans decimal.Decimal `json:"outstanding_loans"`
	LowStockCount    int             `json:"low_stock_count"`
	OpenRepairs      int             `json:"open_repairs"`
	PendingOrders    int             `json:"pending_orders"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// ReportSummary aggregates a date range for reporting.
type ReportSummary struct {
	Unit         UnitCode        `json:"unit"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	SalesCount   int             `json:"sales_count"`
	Revenue      decimal.Decimal `json:"revenue"`
	CashReceived decimal.Decimal `json:"cash_received"`
	Refunds      decimal.Decimal `json:"refunds"`
	Expenses     decimal.Decimal `json:"expenses"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// CashbookService computes expected cash per unit and records the daily
// close. Resubmitting a close for the same unit and date overwrites it.
type CashbookService interface {
	// ExpectedCash returns the expected cash position for a unit on a date.
	ExpectedCash(ctx context.Context, unit UnitCode, date time.Time) (decimal.Decimal, error)

	// SubmitCashClose records the counted cash against the expected figure
	// for the unit and date, upserting any previous close for that day.
	SubmitCashClose(ctx context.Context, unit UnitCode, date time.Time, actual decimal.Decimal, notes string, actorID int) (*DailyCashClose, error)

	GetCashCloses(ctx context.Context, unit UnitCode, from, to *time.Time) ([]DailyCashClose, error)

	// Dashboard returns the unit's headline figures, served from cache when
	// fresh.
	Dashboard(ctx context.Context, unit UnitCode) (*DashboardSummary, error)

	// Report aggregates sales, cash, refunds, and expenses over a range.
	Report(ctx context.Context, unit UnitCode, from, to time.Time) (*ReportSummary, error)
}

type cashbookService struct {
	pool  *pgxpool.Pool
	cache *cache.Cache
}

const dashboardTTL = 60 * time.Second

// NewCashbookService constructs a CashbookService backed by PostgreSQL with
// a Redis read-through cache for dashboards and reports.
func NewCashbookService(pool *pgxpool.Pool, c *cache.Cache) CashbookService {
	return &cashbookService{pool: pool, cache: c}
}

// ── Expected cash ────────────────────────────────────────────────────────────

// expectedShopCash is sale payments taken at the shop, plus settlement cash
// the shop has confirmed received from the workshop, minus shop expenses.
// Sales with no unit recorded are counted as shop sales.
func (s *cashbookService) expectedShopCash(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start, end := dayBounds(day)

	var payments, settlements, expenses decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE s.status = 'confirmed'
		  AND (s.unit_id IS NULL OR s.unit_id = (SELECT id FROM units WHERE code = 'shop'))
		  AND p.created_at >= $1 AND p.created_at < $2`,
		start, end,
	).Scan(&payments)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum shop sale payments: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transfer_settlements
		WHERE cleared = true AND cleared_at >= $1 AND cleared_at < $2`,
		start, end,
	).Scan(&settlements)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum cleared settlements: %w", err)
	}

	expenses, err = s.sumExpenses(ctx, UnitShop, start, end)
	if err != nil {
		return decimal.Zero, err
	}

	return payments.Add(settlements).Sub(expenses), nil
}

// expectedWorkshopCash is repair payments taken, minus settlements paid out
// to the shop (whether or not the shop has cleared them yet), minus
// workshop expenses.
func (s *cashbookService) expectedWorkshopCash(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	start, end := dayBounds(day)

	var payments, settlements, expenses decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM repair_payments
		WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(&payments)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum repair payments: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transfer_settlements
		WHERE created_at >= $1 AND created_at < $2`,
		start, end,
	).Scan(&settlements)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum outgoing settlements: %w", err)
	}

	expenses, err = s.sumExpenses(ctx, UnitWorkshop, start, end)
	if err != nil {
		return decimal.Zero, err
	}

	return payments.Sub(settlements).Sub(expenses), nil
}

func (s *cashbookService) sumExpenses(ctx context.Context, unit UnitCode, start, end time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(e.amount), 0)
		FROM expenses e
		JOIN units u ON u.id = e.unit_id
		WHERE u.code = $1 AND e.date >= $2 AND e.date < $3`,
		string(unit), start, end,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s expenses: %w", unit, err)
	}
	return total, nil
}

func (s *cashbookService) ExpectedCash(ctx context.Context, unit UnitCode, date time.Time) (decimal.Decimal, error) {
	switch unit {
	case UnitWorkshop:
		return s.expectedWorkshopCash(ctx, date)
	default:
		return s.expectedShopCash(ctx, date)
	}
}

// ── Daily close ──────────────────────────────────────────────────────────────

func (s *cashbookService) SubmitCashClose(ctx context.Context, unit UnitCode, date time.Time, actual decimal.Decimal, notes string, actorID int) (*DailyCashClose, error) {
	if actual.IsNegative() {
		return nil, fmt.Errorf("counted cash %s: %w", actual, ErrInvalidAmount)
	}

	expected, err := s.ExpectedCash(ctx, unit, date)
	if err != nil {
		return nil, err
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

	day, _ := dayBounds(date)
	cc := &DailyCashClose{
		UnitID:         unitID,
		Date:           day,
		ExpectedAmount: RoundTwo(expected),
		ActualAmount:   RoundTwo(actual),
		Notes:          notes,
		ClosedBy:       actorID,
	}
	cc.Variance = cc.ActualAmount.Sub(cc.ExpectedAmount)

	err = tx.QueryRow(ctx, `
		INSERT INTO daily_cash_closes (unit_id, date, expected_amount, actual_amount, variance, notes, closed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (unit_id, date) DO UPDATE SET
			expected_amount = EXCLUDED.expected_amount,
			actual_amount   = EXCLUDED.actual_amount,
			variance        = EXCLUDED.variance,
			notes           = EXCLUDED.notes,
			closed_by       = EXCLUDED.closed_by,
			updated_at      = now()
		RETURNING id, created_at, updated_at`,
		cc.UnitID, cc.Date, cc.ExpectedAmount, cc.ActualAmount, cc.Variance, notes, actorID,
	).Scan(&cc.ID, &cc.CreatedAt, &cc.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cash close: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO timeline_events (kind, actor_id, entity_type, entity_id, summary)
		VALUES ($1, $2, 'cash_close', $3, $4)`,
		EventCashCloseSubmitted, actorID, cc.ID,
		fmt.Sprintf("%s cash close for %s: expected %s, counted %s", unit, day.Format("2006-01-02"), cc.ExpectedAmount, cc.ActualAmount),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record cash close event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cash close: %w", err)
	}

	s.cache.Invalidate(ctx, dashboardKey(unit))
	return cc, nil
}

func (s *cashbookService) GetCashCloses(ctx context.Context, unit UnitCode, from, to *time.Time) ([]DailyCashClose, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.unit_id, c.date, c.expected_amount, c.actual_amount, c.variance, c.notes, c.closed_by, c.created_at, c.updated_at
		FROM daily_cash_closes c
		JOIN units u ON u.id = c.unit_id
		WHERE ($1 = '' OR u.code = $1)
		  AND ($2::timestamptz IS NULL OR c.date >= $2)
		  AND ($3::timestamptz IS NULL OR c.date <= $3)
		ORDER BY c.date DESC`,
		string(unit), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash closes: %w", err)
	}
	defer rows.Close()

	var closes []DailyCashClose
	for rows.Next() {
		var c DailyCashClose
		if err := rows.Scan(&c.ID, &c.UnitID, &c.Date, &c.ExpectedAmount, &c.ActualAmount, &c.Variance, &c.Notes, &c.ClosedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cash close: %w", err)
		}
		closes = append(closes, c)
	}
	return closes, rows.Err()
}

// ── Dashboards and reports ───────────────────────────────────────────────────

func (s *cashbookService) Dashboard(ctx context.Context, unit UnitCode) (*DashboardSummary, error) {
	key := dashboardKey(unit)
	var cached DashboardSummary
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	now := time.Now()
	start, end := dayBounds(now)
	sum := &DashboardSummary{Unit: unit, GeneratedAt: now}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM sales
		WHERE status = 'confirmed' AND created_at >= $1 AND created_at < $2
		  AND ($3 <> 'shop' OR unit_id IS NULL OR unit_id = (SELECT id FROM units WHERE code = 'shop'))
		  AND ($3 <> 'workshop' OR unit_id = (SELECT id FROM units WHERE code = 'workshop'))`,
		start, end, string(unit),
	).Scan(&sum.SalesToday, &sum.RevenueToday)
	if err != nil {
		return nil, fmt.Errorf("failed to compute today's sales: %w", err)
	}

	sum.CashToday, err = s.ExpectedCash(ctx, unit, now)
	if err != nil {
		return nil, err
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(GREATEST(final_amount - paid_amount, 0)), 0)
		FROM sales WHERE is_loan = true AND status <> 'refunded'`,
	).Scan(&sum.OutstandingLoans)
	if err != nil {
		return nil, fmt.Errorf("failed to compute outstanding loans: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE is_active = true AND quantity_in_stock <= threshold",
	).Scan(&sum.LowStockCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count low stock: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM repair_jobs WHERE status IN ('received', 'in_progress', 'on_hold')",
	).Scan(&sum.OpenRepairs)
	if err != nil {
		return nil, fmt.Errorf("failed to count open repairs: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE status IN ('pending', 'updated')",
	).Scan(&sum.PendingOrders)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending orders: %w", err)
	}

	s.cache.SetJSON(ctx, key, sum, dashboardTTL)
	return sum, nil
}

func (s *cashbookService) Report(ctx context.Context, unit UnitCode, from, to time.Time) (*ReportSummary, error) {
	key := fmt.Sprintf("report:%s:%s:%s", unit, from.Format("2006-01-02"), to.Format("2006-01-02"))
	var cached ReportSummary
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	rep := &ReportSummary{Unit: unit, From: from, To: to, GeneratedAt: time.Now()}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(final_amount), 0)
		FROM sales
		WHERE status = 'confirmed' AND created_at >= $1 AND created_at < $2
		  AND ($3 <> 'shop' OR unit_id IS NULL OR unit_id = (SELECT id FROM units WHERE code = 'shop'))
		  AND ($3 <> 'workshop' OR unit_id = (SELECT id FROM units WHERE code = 'workshop'))`,
		from, to, string(unit),
	).Scan(&rep.SalesCount, &rep.Revenue)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN sales s ON s.id = p.sale_id
		WHERE p.amount > 0 AND p.created_at >= $1 AND p.created_at < $2
		  AND ($3 <> 'shop' OR s.unit_id IS NULL OR s.unit_id = (SELECT id FROM units WHERE code = 'shop'))
		  AND ($3 <> 'workshop' OR s.unit_id = (SELECT id FROM units WHERE code = 'workshop'))`,
		from, to, string(unit),
	).Scan(&rep.CashReceived)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate payments: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE created_at >= $1 AND created_at < $2",
		from, to,
	).Scan(&rep.Refunds)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate refunds: %w", err)
	}

	rep.Expenses, err = s.sumExpenses(ctx, unit, from, to)
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, key, rep, 5*time.Minute)
	return rep, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func dashboardKey(unit UnitCode) string {
	return fmt.Sprintf("dashboard:%s", unit)
}

// dayBounds returns midnight and the following midnight around t, local time.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}
