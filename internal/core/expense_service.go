package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExpenseService records operating expenses per unit. Expenses reduce the
// expected cash figure at the daily close.
type ExpenseService interface {
	RecordExpense(ctx context.Context, unit UnitCode, category ExpenseCategory, amount decimal.Decimal, description string, date time.Time, actorID int) (*Expense, error)
	GetExpenses(ctx context.Context, unit UnitCode, from, to *time.Time) ([]Expense, error)
}

type expenseService struct {
	pool     *pgxpool.Pool
	timeline TimelineService
}

// NewExpenseService constructs an ExpenseService backed by PostgreSQL.
func NewExpenseService(pool *pgxpool.Pool, timeline TimelineService) ExpenseService {
	return &expenseService{pool: pool, timeline: timeline}
}

func (s *expenseService) RecordExpense(ctx context.Context, unit UnitCode, category ExpenseCategory, amount decimal.Decimal, description string, date time.Time, actorID int) (*Expense, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("expense of %s: %w", amount, ErrInvalidAmount)
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

	exp := &Expense{
		UnitID:      &unitID,
		Category:    category,
		Amount:      RoundTwo(amount),
		Description: description,
		Date:        date,
		RecordedBy:  actorID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO expenses (unit_id, category, amount, description, date, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		unitID, category, exp.Amount, description, date, actorID,
	).Scan(&exp.ID, &exp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record expense: %w", err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventExpenseRecorded, ActorID: &actorID,
		EntityType: "expense", EntityID: &exp.ID,
		Summary: fmt.Sprintf("%s expense of %s recorded for %s", category, exp.Amount, unit),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit expense: %w", err)
	}
	return exp, nil
}

func (s *expenseService) GetExpenses(ctx context.Context, unit UnitCode, from, to *time.Time) ([]Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.unit_id, e.category, e.amount, e.description, e.date, e.recorded_by, e.created_at
		FROM expenses e
		JOIN units u ON u.id = e.unit_id
		WHERE ($1 = '' OR u.code = $1)
		  AND ($2::timestamptz IS NULL OR e.date >= $2)
		  AND ($3::timestamptz IS NULL OR e.date <= $3)
		ORDER BY e.date DESC, e.id DESC`,
		string(unit), from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.UnitID, &e.Category, &e.Amount, &e.Description, &e.Date, &e.RecordedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}
