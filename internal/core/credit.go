package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// checkCreditTx decides whether a customer may take on newDebt of credit.
// Blacklisting blocks credit outright. A null credit limit means unlimited.
// Otherwise the customer's outstanding loan debt (unpaid balances of
// non-refunded loan sales) plus the new debt must stay within the limit;
// landing exactly on the limit is allowed.
//
// The customer row is locked FOR UPDATE so two concurrent credit sales for
// the same customer cannot both read the same outstanding total and jointly
// blow past the limit. The lock is held until the caller's tx commits.
func checkCreditTx(ctx context.Context, tx pgx.Tx, customerID int, newDebt decimal.Decimal) error {
	var limit *decimal.Decimal
	var blacklisted bool
	err := tx.QueryRow(ctx,
		"SELECT credit_limit, is_blacklisted FROM customers WHERE id = $1 FOR UPDATE", customerID,
	).Scan(&limit, &blacklisted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return fmt.Errorf("failed to fetch customer %d: %w", customerID, err)
	}

	if blacklisted {
		return fmt.Errorf("customer %d: %w", customerID, ErrCustomerBlacklisted)
	}
	if limit == nil {
		return nil
	}

	var outstanding decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(GREATEST(final_amount - paid_amount, 0)), 0)
		FROM sales
		WHERE customer_id = $1 AND is_loan = true AND status <> 'refunded'`,
		customerID,
	).Scan(&outstanding)
	if err != nil {
		return fmt.Errorf("failed to compute outstanding debt for customer %d: %w", customerID, err)
	}

	if outstanding.Add(newDebt).GreaterThan(*limit) {
		return fmt.Errorf("customer %d owes %s, requested %s against limit %s: %w",
			customerID, outstanding, newDebt, *limit, ErrCreditLimitExceeded)
	}
	return nil
}
