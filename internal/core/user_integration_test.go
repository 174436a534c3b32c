package core_test

import (
	"errors"
	"testing"

	"pos-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func TestUser_AuthenticateRoundTrip(t *testing.T) {
	pool, ctx := setupTestDB(t)
	users := core.NewUserService(pool)

	created, err := users.CreateUser(ctx, "neema", "Neema K", "hunter2", "cashier", core.UnitShop)
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if created.PasswordHash == "hunter2" {
		t.Fatal("Password must be stored hashed")
	}

	u, err := users.Authenticate(ctx, "neema", "hunter2")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.ID != created.ID {
		t.Errorf("Expected user %d, got %d", created.ID, u.ID)
	}

	if _, err := users.Authenticate(ctx, "neema", "wrong"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := users.Authenticate(ctx, "nobody", "hunter2"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	if err := users.DeactivateUser(ctx, created.ID); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}
	if _, err := users.Authenticate(ctx, "neema", "hunter2"); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials after deactivation, got %v", err)
	}
}

func TestUser_CustomerCreditFlags(t *testing.T) {
	pool, ctx := setupTestDB(t)
	users := core.NewUserService(pool)

	limit := decimal.NewFromInt(5000)
	c, err := users.CreateCustomer(ctx, "Bora Traders", "+255700000003", &limit)
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if c.IsBlacklisted || c.IsVIP {
		t.Error("Expected fresh customer with no flags set")
	}

	updated, err := users.UpdateCustomer(ctx, c.ID, "Bora Traders", "+255700000003", nil, true, true)
	if err != nil {
		t.Fatalf("UpdateCustomer failed: %v", err)
	}
	if !updated.IsVIP || !updated.IsBlacklisted {
		t.Error("Expected both flags set after update")
	}
	if updated.CreditLimit != nil {
		t.Errorf("Expected credit limit cleared, got %s", updated.CreditLimit)
	}
}
