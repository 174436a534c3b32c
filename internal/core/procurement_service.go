package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type procurementService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	timeline  TimelineService
}

// NewProcurementService constructs a ProcurementService backed by PostgreSQL.
func NewProcurementService(pool *pgxpool.Pool, inventory InventoryService, timeline TimelineService) ProcurementService {
	return &procurementService{pool: pool, inventory: inventory, timeline: timeline}
}

func (s *procurementService) CreateSupplier(ctx context.Context, name, phone, email string) (*Supplier, error) {
	sup := &Supplier{Name: name, Phone: phone, Email: email, IsActive: true}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (name, phone, email, is_active)
		VALUES ($1, $2, $3, true) RETURNING id, created_at`,
		name, phone, email,
	).Scan(&sup.ID, &sup.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create supplier: %w", err)
	}
	return sup, nil
}

func (s *procurementService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, name, phone, email, is_active, created_at FROM suppliers WHERE is_active = true ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Phone, &sup.Email, &sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *procurementService) CreatePurchaseOrder(ctx context.Context, supplierID int, lines []POLineInput, notes string, actorID int) (*PurchaseOrder, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("purchase order has no lines: %w", ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po := &PurchaseOrder{SupplierID: supplierID, Status: PODraft, Notes: notes, CreatedBy: actorID}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (supplier_id, status, total_amount, notes, created_by)
		VALUES ($1, $2, 0, $3, $4) RETURNING id, created_at`,
		supplierID, po.Status, notes, actorID,
	).Scan(&po.ID, &po.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	total := decimal.Zero
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("product %d quantity %s: %w", l.ProductID, l.Quantity, ErrInvalidQuantity)
		}
		if l.UnitCost.IsNegative() {
			return nil, fmt.Errorf("product %d unit cost %s: %w", l.ProductID, l.UnitCost, ErrInvalidAmount)
		}
		line := PurchaseOrderLine{OrderID: po.ID, ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: l.UnitCost}
		err = tx.QueryRow(ctx, `
			INSERT INTO purchase_order_lines (order_id, product_id, quantity, unit_cost, received_quantity)
			VALUES ($1, $2, $3, $4, 0) RETURNING id`,
			po.ID, l.ProductID, l.Quantity, l.UnitCost,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create purchase order line for product %d: %w", l.ProductID, err)
		}
		po.Lines = append(po.Lines, line)
		total = total.Add(l.Quantity.Mul(l.UnitCost))
	}

	po.TotalAmount = RoundTwo(total)
	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET total_amount = $2 WHERE id = $1", po.ID, po.TotalAmount,
	); err != nil {
		return nil, fmt.Errorf("failed to set purchase order %d total: %w", po.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase order: %w", err)
	}
	return po, nil
}

func (s *procurementService) MarkOrdered(ctx context.Context, poID int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := lockPurchaseOrder(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != PODraft {
		return nil, fmt.Errorf("purchase order %d is %s, ordering needs draft: %w", poID, po.Status, ErrInvalidStateTransition)
	}

	po.Status = POOrdered
	err = tx.QueryRow(ctx,
		"UPDATE purchase_orders SET status = $2, ordered_at = now() WHERE id = $1 RETURNING ordered_at",
		poID, po.Status,
	).Scan(&po.OrderedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark purchase order %d ordered: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order placement: %w", err)
	}
	return po, nil
}

func (s *procurementService) ReceiveGoods(ctx context.Context, poID int, reference string, lines []ReceiptLineInput, actorID int) (*GoodsReceipt, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("receipt has no lines: %w", ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := lockPurchaseOrder(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status != POOrdered && po.Status != POPartiallyReceived {
		return nil, fmt.Errorf("purchase order %d is %s, receiving needs ordered or partially_received: %w",
			poID, po.Status, ErrInvalidStateTransition)
	}

	poLines := map[int]*PurchaseOrderLine{}
	for i := range po.Lines {
		poLines[po.Lines[i].ID] = &po.Lines[i]
	}

	receipt := &GoodsReceipt{OrderID: poID, Reference: reference, ReceivedBy: actorID}
	err = tx.QueryRow(ctx, `
		INSERT INTO goods_receipts (order_id, reference, received_by)
		VALUES ($1, $2, $3) RETURNING id, created_at`,
		poID, reference, actorID,
	).Scan(&receipt.ID, &receipt.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create goods receipt: %w", err)
	}

	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("receipt line %d quantity %s: %w", l.POLineID, l.Quantity, ErrInvalidQuantity)
		}
		poLine, ok := poLines[l.POLineID]
		if !ok {
			return nil, fmt.Errorf("purchase order line %d: %w", l.POLineID, ErrNotFound)
		}

		line := GoodsReceiptLine{ReceiptID: receipt.ID, POLineID: l.POLineID, Quantity: l.Quantity}
		err = tx.QueryRow(ctx, `
			INSERT INTO goods_receipt_lines (receipt_id, po_line_id, quantity)
			VALUES ($1, $2, $3) RETURNING id`,
			receipt.ID, l.POLineID, l.Quantity,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create receipt line: %w", err)
		}
		receipt.Lines = append(receipt.Lines, line)

		poLine.ReceivedQuantity = poLine.ReceivedQuantity.Add(l.Quantity)
		if _, err := tx.Exec(ctx,
			"UPDATE purchase_order_lines SET received_quantity = $2 WHERE id = $1",
			l.POLineID, poLine.ReceivedQuantity,
		); err != nil {
			return nil, fmt.Errorf("failed to accumulate received quantity on line %d: %w", l.POLineID, err)
		}

		note := fmt.Sprintf("goods receipt %s", reference)
		_, err = s.inventory.AddStockTx(ctx, tx, poLine.ProductID, l.Quantity, StockReceived, &actorID, "goods_receipt", &receipt.ID, note)
		if err != nil {
			return nil, err
		}
	}

	// Re-derive PO status. Over-receipt still counts as fully received.
	fully := true
	for _, pl := range po.Lines {
		if pl.ReceivedQuantity.LessThan(pl.Quantity) {
			fully = false
			break
		}
	}
	po.Status = POPartiallyReceived
	if fully {
		po.Status = POReceived
	}
	if _, err := tx.Exec(ctx,
		"UPDATE purchase_orders SET status = $2 WHERE id = $1", poID, po.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to update purchase order %d status: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit goods receipt: %w", err)
	}
	return receipt, nil
}

func (s *procurementService) CancelPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := lockPurchaseOrder(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	if po.Status == POReceived || po.Status == POCancelled {
		return nil, fmt.Errorf("purchase order %d is %s: %w", poID, po.Status, ErrInvalidStateTransition)
	}

	po.Status = POCancelled
	if _, err := tx.Exec(ctx, "UPDATE purchase_orders SET status = $2 WHERE id = $1", poID, po.Status); err != nil {
		return nil, fmt.Errorf("failed to cancel purchase order %d: %w", poID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return po, nil
}

func (s *procurementService) GetPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, supplier_id, status, total_amount, notes, ordered_at, created_by, created_at
		FROM purchase_orders WHERE id = $1`,
		poID,
	).Scan(&po.ID, &po.SupplierID, &po.Status, &po.TotalAmount, &po.Notes, &po.OrderedAt, &po.CreatedBy, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch purchase order %d: %w", poID, err)
	}
	po.Lines, err = fetchPOLinesQ(ctx, s.pool, poID)
	if err != nil {
		return nil, err
	}
	return po, nil
}

func (s *procurementService) GetPurchaseOrders(ctx context.Context, status POStatus) ([]PurchaseOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, status, total_amount, notes, ordered_at, created_by, created_at
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase orders: %w", err)
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := rows.Scan(&po.ID, &po.SupplierID, &po.Status, &po.TotalAmount, &po.Notes, &po.OrderedAt, &po.CreatedBy, &po.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// lockPurchaseOrder reads a purchase order FOR UPDATE inside tx, with lines.
func lockPurchaseOrder(ctx context.Context, tx pgx.Tx, poID int) (*PurchaseOrder, error) {
	po := &PurchaseOrder{}
	err := tx.QueryRow(ctx, `
		SELECT id, supplier_id, status, total_amount, notes, ordered_at, created_by, created_at
		FROM purchase_orders WHERE id = $1
		FOR UPDATE`,
		poID,
	).Scan(&po.ID, &po.SupplierID, &po.Status, &po.TotalAmount, &po.Notes, &po.OrderedAt, &po.CreatedBy, &po.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", poID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock purchase order %d: %w", poID, err)
	}
	po.Lines, err = fetchPOLinesQ(ctx, tx, poID)
	if err != nil {
		return nil, err
	}
	return po, nil
}

func fetchPOLinesQ(ctx context.Context, q pgxRowQuerier, poID int) ([]PurchaseOrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_cost, received_quantity
		FROM purchase_order_lines WHERE order_id = $1 ORDER BY id`,
		poID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase order lines: %w", err)
	}
	defer rows.Close()

	var lines []PurchaseOrderLine
	for rows.Next() {
		var l PurchaseOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitCost, &l.ReceivedQuantity); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
