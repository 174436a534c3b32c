package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductInput holds the writable fields of a product.
type ProductInput struct {
	CategoryID     *int
	Name           string
	BuyingPrice    decimal.Decimal
	SellingPrice   decimal.Decimal
	WholesalePrice decimal.Decimal
	Quantity       decimal.Decimal
	Threshold      decimal.Decimal
}

// InventoryService owns products, categories, and the stock ledger. Every
// change to a product's quantity goes through AddStockTx or RemoveStockTx,
// which lock the product row and append a StockEntry.
type InventoryService interface {
	CreateCategory(ctx context.Context, name string) (*Category, error)
	GetCategories(ctx context.Context) ([]Category, error)

	// CreateProduct registers a product; the starting quantity is recorded
	// as an "added" ledger entry.
	CreateProduct(ctx context.Context, in ProductInput, actorID int) (*Product, error)

	// UpdateProduct rewrites product fields. A quantity change through this
	// path is recorded as an "updated" ledger entry with the delta.
	UpdateProduct(ctx context.Context, productID int, in ProductInput, actorID int) (*Product, error)

	// UpdateStockQuantity sets the stock level directly, recording a
	// "quantity_updated" entry with the signed delta.
	UpdateStockQuantity(ctx context.Context, productID int, newQty decimal.Decimal, note string, actorID int) (*Product, error)

	// DeleteProduct records a "deleted" entry for the remaining stock, then
	// removes the product.
	DeleteProduct(ctx context.Context, productID int, actorID int) error

	// ReceiveStock increases stock outside a sale flow ("stock_in").
	ReceiveStock(ctx context.Context, productID int, qty decimal.Decimal, note string, actorID int) (*Product, error)

	GetProduct(ctx context.Context, productID int) (*Product, error)
	GetProducts(ctx context.Context, lowStockOnly bool) ([]Product, error)
	GetStockEntries(ctx context.Context, productID int, kind StockEntryKind, limit int) ([]StockEntry, error)

	// TX-scoped operations: work within a caller-provided transaction.
	// Used by sale, transfer, and procurement flows to keep stock changes
	// atomic with their own state transitions.

	// AddStockTx increases a product's stock and appends a ledger entry.
	// Returns the resulting stock level.
	AddStockTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, kind StockEntryKind, actorID *int, refType string, refID *int, note string) (decimal.Decimal, error)

	// RemoveStockTx decreases a product's stock. Removing more than is
	// available fails with ErrInsufficientStock.
	RemoveStockTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, kind StockEntryKind, actorID *int, refType string, refID *int, note string) (decimal.Decimal, error)
}

type inventoryService struct {
	pool     *pgxpool.Pool
	timeline TimelineService
}

// NewInventoryService constructs an InventoryService backed by PostgreSQL.
func NewInventoryService(pool *pgxpool.Pool, timeline TimelineService) InventoryService {
	return &inventoryService{pool: pool, timeline: timeline}
}

// ── Categories ───────────────────────────────────────────────────────────────

func (s *inventoryService) CreateCategory(ctx context.Context, name string) (*Category, error) {
	c := &Category{Name: name}
	err := s.pool.QueryRow(ctx,
		"INSERT INTO categories (name) VALUES ($1) RETURNING id", name,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return c, nil
}

func (s *inventoryService) GetCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name FROM categories ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ── Products ─────────────────────────────────────────────────────────────────

func (s *inventoryService) CreateProduct(ctx context.Context, in ProductInput, actorID int) (*Product, error) {
	if in.Quantity.IsNegative() {
		return nil, fmt.Errorf("starting quantity %s for %q: %w", in.Quantity, in.Name, ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p := &Product{
		CategoryID:      in.CategoryID,
		Name:            in.Name,
		BuyingPrice:     RoundTwo(in.BuyingPrice),
		SellingPrice:    RoundTwo(in.SellingPrice),
		WholesalePrice:  RoundTwo(in.WholesalePrice),
		QuantityInStock: in.Quantity,
		Threshold:       in.Threshold,
		IsActive:        true,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO products (category_id, name, buying_price, selling_price, wholesale_price, quantity_in_stock, threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id, created_at`,
		p.CategoryID, p.Name, p.BuyingPrice, p.SellingPrice, p.WholesalePrice, p.QuantityInStock, p.Threshold,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product %q: %w", in.Name, err)
	}

	if err := s.insertEntry(ctx, tx, p.ID, StockAdded, in.Quantity, in.Quantity, &actorID, "product", &p.ID, "initial stock"); err != nil {
		return nil, err
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventProductCreated, ActorID: &actorID,
		EntityType: "product", EntityID: &p.ID,
		Summary: fmt.Sprintf("Product %q created with %s in stock", p.Name, in.Quantity),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	return p, nil
}

func (s *inventoryService) UpdateProduct(ctx context.Context, productID int, in ProductInput, actorID int) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	if !in.Quantity.Equal(current.QuantityInStock) {
		delta := in.Quantity.Sub(current.QuantityInStock)
		if err := s.insertEntry(ctx, tx, productID, StockUpdated, delta, in.Quantity, &actorID, "product", &productID, "edited with quantity change"); err != nil {
			return nil, err
		}
	}

	p := &Product{
		ID:              productID,
		CategoryID:      in.CategoryID,
		Name:            in.Name,
		BuyingPrice:     RoundTwo(in.BuyingPrice),
		SellingPrice:    RoundTwo(in.SellingPrice),
		WholesalePrice:  RoundTwo(in.WholesalePrice),
		QuantityInStock: in.Quantity,
		Threshold:       in.Threshold,
		IsActive:        current.IsActive,
		CreatedAt:       current.CreatedAt,
	}
	_, err = tx.Exec(ctx, `
		UPDATE products
		SET category_id = $2, name = $3, buying_price = $4, selling_price = $5,
		    wholesale_price = $6, quantity_in_stock = $7, threshold = $8
		WHERE id = $1`,
		productID, p.CategoryID, p.Name, p.BuyingPrice, p.SellingPrice, p.WholesalePrice, p.QuantityInStock, p.Threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventProductUpdated, ActorID: &actorID,
		EntityType: "product", EntityID: &productID,
		Summary: fmt.Sprintf("Product %q updated", p.Name),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	return p, nil
}

func (s *inventoryService) UpdateStockQuantity(ctx context.Context, productID int, newQty decimal.Decimal, note string, actorID int) (*Product, error) {
	if newQty.IsNegative() {
		return nil, fmt.Errorf("stock level %s for product %d: %w", newQty, productID, ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	delta := newQty.Sub(p.QuantityInStock)
	if err := s.insertEntry(ctx, tx, productID, StockQuantityUpdated, delta, newQty, &actorID, "product", &productID, note); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, "UPDATE products SET quantity_in_stock = $2 WHERE id = $1", productID, newQty); err != nil {
		return nil, fmt.Errorf("failed to set stock for product %d: %w", productID, err)
	}
	p.QuantityInStock = newQty

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventStockAdjusted, ActorID: &actorID,
		EntityType: "product", EntityID: &productID,
		Summary: fmt.Sprintf("Stock for %q set to %s (delta %s)", p.Name, newQty, delta),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock adjustment: %w", err)
	}
	return p, nil
}

func (s *inventoryService) DeleteProduct(ctx context.Context, productID int, actorID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return err
	}

	// The "deleted" entry keeps the audit trail after the product row goes.
	if err := s.insertEntry(ctx, tx, productID, StockDeleted, p.QuantityInStock.Neg(), decimal.Zero, &actorID, "product", &productID, "product deleted"); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM products WHERE id = $1", productID); err != nil {
		return fmt.Errorf("failed to delete product %d: %w", productID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventProductDeleted, ActorID: &actorID,
		EntityType: "product", EntityID: &productID,
		Summary: fmt.Sprintf("Product %q deleted", p.Name),
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit product deletion: %w", err)
	}
	return nil
}

func (s *inventoryService) ReceiveStock(ctx context.Context, productID int, qty decimal.Decimal, note string, actorID int) (*Product, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = s.AddStockTx(ctx, tx, productID, qty, StockIn, &actorID, "product", &productID, note)
	if err != nil {
		return nil, err
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventStockAdded, ActorID: &actorID,
		EntityType: "product", EntityID: &productID,
		Summary: fmt.Sprintf("Stock in: +%s for product %d", qty, productID),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock receipt: %w", err)
	}

	return s.GetProduct(ctx, productID)
}

func (s *inventoryService) GetProduct(ctx context.Context, productID int) (*Product, error) {
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, category_id, name, buying_price, selling_price, wholesale_price, quantity_in_stock, threshold, is_active, created_at
		FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.CategoryID, &p.Name, &p.BuyingPrice, &p.SellingPrice, &p.WholesalePrice, &p.QuantityInStock, &p.Threshold, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", productID, err)
	}
	return p, nil
}

func (s *inventoryService) GetProducts(ctx context.Context, lowStockOnly bool) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category_id, name, buying_price, selling_price, wholesale_price, quantity_in_stock, threshold, is_active, created_at
		FROM products
		WHERE is_active = true
		  AND ($1 = false OR quantity_in_stock <= threshold)
		ORDER BY name`,
		lowStockOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.BuyingPrice, &p.SellingPrice, &p.WholesalePrice, &p.QuantityInStock, &p.Threshold, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ── Stock ledger ─────────────────────────────────────────────────────────────

func (s *inventoryService) AddStockTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, kind StockEntryKind, actorID *int, refType string, refID *int, note string) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("add %s to product %d: %w", qty, productID, ErrInvalidQuantity)
	}

	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return decimal.Zero, err
	}

	level := p.QuantityInStock.Add(qty)
	if _, err := tx.Exec(ctx, "UPDATE products SET quantity_in_stock = $2 WHERE id = $1", productID, level); err != nil {
		return decimal.Zero, fmt.Errorf("failed to add stock to product %d: %w", productID, err)
	}

	if err := s.insertEntry(ctx, tx, productID, kind, qty, level, actorID, refType, refID, note); err != nil {
		return decimal.Zero, err
	}
	return level, nil
}

func (s *inventoryService) RemoveStockTx(ctx context.Context, tx pgx.Tx, productID int, qty decimal.Decimal, kind StockEntryKind, actorID *int, refType string, refID *int, note string) (decimal.Decimal, error) {
	if !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("remove %s from product %d: %w", qty, productID, ErrInvalidQuantity)
	}

	p, err := lockProduct(ctx, tx, productID)
	if err != nil {
		return decimal.Zero, err
	}

	if p.QuantityInStock.LessThan(qty) {
		return decimal.Zero, fmt.Errorf("product %q: available %s, required %s: %w",
			p.Name, p.QuantityInStock, qty, ErrInsufficientStock)
	}

	level := p.QuantityInStock.Sub(qty)
	if _, err := tx.Exec(ctx, "UPDATE products SET quantity_in_stock = $2 WHERE id = $1", productID, level); err != nil {
		return decimal.Zero, fmt.Errorf("failed to remove stock from product %d: %w", productID, err)
	}

	if err := s.insertEntry(ctx, tx, productID, kind, qty.Neg(), level, actorID, refType, refID, note); err != nil {
		return decimal.Zero, err
	}
	return level, nil
}

func (s *inventoryService) GetStockEntries(ctx context.Context, productID int, kind StockEntryKind, limit int) ([]StockEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, kind, quantity, level_after, actor_id, ref_type, ref_id, note, created_at
		FROM stock_entries
		WHERE ($1 = 0 OR product_id = $1)
		  AND ($2 = '' OR kind = $2)
		ORDER BY id DESC
		LIMIT $3`,
		productID, string(kind), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock entries: %w", err)
	}
	defer rows.Close()

	var entries []StockEntry
	for rows.Next() {
		var e StockEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Kind, &e.Quantity, &e.LevelAfter, &e.ActorID, &e.RefType, &e.RefID, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// insertEntry appends one stock ledger row. quantity is the signed delta.
func (s *inventoryService) insertEntry(ctx context.Context, tx pgx.Tx, productID int, kind StockEntryKind, quantity, levelAfter decimal.Decimal, actorID *int, refType string, refID *int, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO stock_entries (product_id, kind, quantity, level_after, actor_id, ref_type, ref_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		productID, kind, quantity, levelAfter, actorID, refType, refID, note,
	)
	if err != nil {
		return fmt.Errorf("failed to record stock entry %s for product %d: %w", kind, productID, err)
	}
	return nil
}

// lockProduct reads a product row FOR UPDATE inside tx.
func lockProduct(ctx context.Context, tx pgx.Tx, productID int) (*Product, error) {
	p := &Product{}
	err := tx.QueryRow(ctx, `
		SELECT id, category_id, name, buying_price, selling_price, wholesale_price, quantity_in_stock, threshold, is_active, created_at
		FROM products WHERE id = $1
		FOR UPDATE`,
		productID,
	).Scan(&p.ID, &p.CategoryID, &p.Name, &p.BuyingPrice, &p.SellingPrice, &p.WholesalePrice, &p.QuantityInStock, &p.Threshold, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}
	return p, nil
}
