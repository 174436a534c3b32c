package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// QuoteItemInput is one line of a quote being issued. ProductID is optional;
// free-text lines carry only a name and price.
type QuoteItemInput struct {
	ProductID *int
	Name      string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// QuoteService issues priced offers. Quotes never touch stock or cash.
type QuoteService interface {
	CreateQuote(ctx context.Context, customerName, customerPhone string, items []QuoteItemInput, vatPercent decimal.Decimal, validUntil *time.Time, actorID int) (*Quote, error)
	GetQuote(ctx context.Context, quoteID int) (*Quote, error)
	GetQuotes(ctx context.Context) ([]Quote, error)
	DeleteQuote(ctx context.Context, quoteID int) error
}

type quoteService struct {
	pool *pgxpool.Pool
}

// NewQuoteService constructs a QuoteService backed by PostgreSQL.
func NewQuoteService(pool *pgxpool.Pool) QuoteService {
	return &quoteService{pool: pool}
}

func (s *quoteService) CreateQuote(ctx context.Context, customerName, customerPhone string, items []QuoteItemInput, vatPercent decimal.Decimal, validUntil *time.Time, actorID int) (*Quote, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("quote has no items: %w", ErrInvalidQuantity)
	}
	if vatPercent.IsNegative() {
		return nil, fmt.Errorf("VAT percent %s: %w", vatPercent, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := &Quote{
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		VatPercent:    vatPercent,
		ValidUntil:    validUntil,
		CreatedBy:     actorID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO quotes (customer_name, customer_phone, subtotal, vat_percent, vat_amount, total_amount, valid_until, created_by)
		VALUES ($1, $2, 0, $3, 0, 0, $4, $5) RETURNING id, created_at`,
		customerName, customerPhone, vatPercent, validUntil, actorID,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}

	subtotal := decimal.Zero
	for _, in := range items {
		if !in.Quantity.IsPositive() {
			return nil, fmt.Errorf("item %q quantity %s: %w", in.Name, in.Quantity, ErrInvalidQuantity)
		}
		if in.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("item %q price %s: %w", in.Name, in.UnitPrice, ErrInvalidAmount)
		}
		item := QuoteItem{
			QuoteID:   q.ID,
			ProductID: in.ProductID,
			Name:      in.Name,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			LineTotal: RoundTwo(in.Quantity.Mul(in.UnitPrice)),
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO quote_items (quote_id, product_id, name, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			item.QuoteID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.LineTotal,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create quote item %q: %w", in.Name, err)
		}
		q.Items = append(q.Items, item)
		subtotal = subtotal.Add(item.LineTotal)
	}

	q.Subtotal = RoundTwo(subtotal)
	q.VatAmount = RoundTwo(q.Subtotal.Mul(vatPercent).Div(decimal.NewFromInt(100)))
	q.TotalAmount = q.Subtotal.Add(q.VatAmount)
	if _, err := tx.Exec(ctx,
		"UPDATE quotes SET subtotal = $2, vat_amount = $3, total_amount = $4 WHERE id = $1",
		q.ID, q.Subtotal, q.VatAmount, q.TotalAmount,
	); err != nil {
		return nil, fmt.Errorf("failed to set quote %d totals: %w", q.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit quote: %w", err)
	}
	return q, nil
}

func (s *quoteService) GetQuote(ctx context.Context, quoteID int) (*Quote, error) {
	q := &Quote{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, customer_name, customer_phone, subtotal, vat_percent, vat_amount, total_amount, valid_until, created_by, created_at
		FROM quotes WHERE id = $1`,
		quoteID,
	).Scan(&q.ID, &q.CustomerName, &q.CustomerPhone, &q.Subtotal, &q.VatPercent, &q.VatAmount, &q.TotalAmount, &q.ValidUntil, &q.CreatedBy, &q.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quote %d: %w", quoteID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch quote %d: %w", quoteID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, quote_id, product_id, name, quantity, unit_price, line_total
		FROM quote_items WHERE quote_id = $1 ORDER BY id`,
		quoteID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query quote items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item QuoteItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan quote item: %w", err)
		}
		q.Items = append(q.Items, item)
	}
	return q, rows.Err()
}

func (s *quoteService) GetQuotes(ctx context.Context) ([]Quote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_name, customer_phone, subtotal, vat_percent, vat_amount, total_amount, valid_until, created_by, created_at
		FROM quotes ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	var quotes []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ID, &q.CustomerName, &q.CustomerPhone, &q.Subtotal, &q.VatPercent, &q.VatAmount, &q.TotalAmount, &q.ValidUntil, &q.CreatedBy, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (s *quoteService) DeleteQuote(ctx context.Context, quoteID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM quote_items WHERE quote_id = $1", quoteID); err != nil {
		return fmt.Errorf("failed to delete quote %d items: %w", quoteID, err)
	}
	tag, err := tx.Exec(ctx, "DELETE FROM quotes WHERE id = $1", quoteID)
	if err != nil {
		return fmt.Errorf("failed to delete quote %d: %w", quoteID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quote %d: %w", quoteID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quote deletion: %w", err)
	}
	return nil
}
