package core

import "errors"

// Domain errors. Services wrap these with fmt.Errorf("...: %w", err) to add
// the offending entity and amounts; callers branch with errors.Is.
var (
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInvalidQuantity           = errors.New("quantity must be positive")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrDiscountExceedsTotal      = errors.New("discount exceeds sale total")
	ErrOverpaymentNotAllowed     = errors.New("payment exceeds amount owed")
	ErrCustomerRequiredForCredit = errors.New("credit sale requires a customer")
	ErrCustomerBlacklisted       = errors.New("customer is blacklisted")
	ErrCreditLimitExceeded       = errors.New("credit limit exceeded")
	ErrAlreadyRefunded           = errors.New("sale already refunded")
	ErrNothingToRefund           = errors.New("sale has no payments to refund")
	ErrRefundWindowExpired       = errors.New("refund window has expired")
	ErrAlreadyProcessed          = errors.New("already processed")
	ErrInvalidStateTransition    = errors.New("invalid state transition")
	ErrNotFound                  = errors.New("not found")
)
