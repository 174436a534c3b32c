package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on a failed login attempt. It does not
// distinguish an unknown username from a wrong password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// UserService manages staff accounts, authentication, units, and customers.
type UserService interface {
	Authenticate(ctx context.Context, username, password string) (*User, error)
	CreateUser(ctx context.Context, username, fullName, password string, role Role, unit UnitCode) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, userID int) (*User, error)
	GetUsers(ctx context.Context) ([]User, error)
	DeactivateUser(ctx context.Context, userID int) error

	GetUnits(ctx context.Context) ([]Unit, error)

	CreateCustomer(ctx context.Context, name, phone string, creditLimit *decimal.Decimal) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID int, name, phone string, creditLimit *decimal.Decimal, isVIP, isBlacklisted bool) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int) (*Customer, error)
	GetCustomers(ctx context.Context) ([]Customer, error)
}

type userService struct {
	pool *pgxpool.Pool
}

// NewUserService constructs a UserService backed by PostgreSQL.
func NewUserService(pool *pgxpool.Pool) UserService {
	return &userService{pool: pool}
}

// ── Users ────────────────────────────────────────────────────────────────────

func (s *userService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) CreateUser(ctx context.Context, username, fullName, password string, role Role, unit UnitCode) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var unitID *int
	if unit != "" {
		id, err := resolveUnitID(ctx, s.pool, unit)
		if err != nil {
			return nil, err
		}
		unitID = &id
	}

	u := &User{Username: username, FullName: fullName, PasswordHash: string(hash), Role: role, UnitID: unitID, IsActive: true}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO users (username, full_name, password_hash, role, unit_id, is_active)
		VALUES ($1, $2, $3, $4, $5, true) RETURNING id, created_at`,
		username, fullName, u.PasswordHash, role, unitID,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return u, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, full_name, password_hash, role, unit_id, is_active, created_at
		FROM users
		WHERE username = $1 AND is_active = true
		LIMIT 1`,
		username,
	).Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Role, &u.UnitID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %q: %w", username, err)
	}
	return u, nil
}

func (s *userService) GetByID(ctx context.Context, userID int) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, full_name, password_hash, role, unit_id, is_active, created_at
		FROM users
		WHERE id = $1`,
		userID,
	).Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Role, &u.UnitID, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user %d: %w", userID, err)
	}
	return u, nil
}

func (s *userService) GetUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, full_name, password_hash, role, unit_id, is_active, created_at
		FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.FullName, &u.PasswordHash, &u.Role, &u.UnitID, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *userService) DeactivateUser(ctx context.Context, userID int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE users SET is_active = false WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user %d: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// ── Units ────────────────────────────────────────────────────────────────────

func (s *userService) GetUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, code, name, created_at FROM units ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// ── Customers ────────────────────────────────────────────────────────────────

func (s *userService) CreateCustomer(ctx context.Context, name, phone string, creditLimit *decimal.Decimal) (*Customer, error) {
	c := &Customer{Name: name, Phone: phone, CreditLimit: creditLimit}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, credit_limit)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		name, phone, creditLimit,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *userService) UpdateCustomer(ctx context.Context, customerID int, name, phone string, creditLimit *decimal.Decimal, isVIP, isBlacklisted bool) (*Customer, error) {
	c := &Customer{ID: customerID, Name: name, Phone: phone, CreditLimit: creditLimit, IsVIP: isVIP, IsBlacklisted: isBlacklisted}
	err := s.pool.QueryRow(ctx, `
		UPDATE customers SET name = $2, phone = $3, credit_limit = $4, is_vip = $5, is_blacklisted = $6
		WHERE id = $1 RETURNING created_at`,
		customerID, name, phone, creditLimit, isVIP, isBlacklisted,
	).Scan(&c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update customer %d: %w", customerID, err)
	}
	return c, nil
}

func (s *userService) GetCustomer(ctx context.Context, customerID int) (*Customer, error) {
	c := &Customer{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, credit_limit, is_vip, is_blacklisted, created_at
		FROM customers WHERE id = $1`,
		customerID,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreditLimit, &c.IsVIP, &c.IsBlacklisted, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch customer %d: %w", customerID, err)
	}
	return c, nil
}

func (s *userService) GetCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, phone, credit_limit, is_vip, is_blacklisted, created_at
		FROM customers ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreditLimit, &c.IsVIP, &c.IsBlacklisted, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}
