package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgxRowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx (for Query).
type pgxRowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// resolveUnitID looks up the internal unit ID from a unit code.
func resolveUnitID(ctx context.Context, q pgxQuerier, code UnitCode) (int, error) {
	var id int
	err := q.QueryRow(ctx, "SELECT id FROM units WHERE code = $1", code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("unit %s not found: %w", code, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve unit %s: %w", code, err)
	}
	return id, nil
}

// effectiveUnitID normalizes a legacy nullable unit reference: records
// written before units existed carry NULL, which always means the shop.
func effectiveUnitID(unitID *int, shopID int) int {
	if unitID == nil {
		return shopID
	}
	return *unitID
}
