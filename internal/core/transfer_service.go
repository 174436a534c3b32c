package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RequestLineInput is one product and quantity on a material request.
type RequestLineInput struct {
	ProductID int
	Quantity  decimal.Decimal
}

// TransferService runs the material request, transfer order, and settlement
// protocol between the shop and the workshop.
type TransferService interface {
	// CreateRequest validates stock availability per line and submits the
	// request in one step.
	CreateRequest(ctx context.Context, jobID *int, lines []RequestLineInput, actorID int) (*MaterialRequest, error)

	// UpdateRequest replaces a request's lines. Editing a rejected request
	// by its requester resubmits it. Editing an approved request reconciles
	// the transfer: stock deltas are applied and the transfer total and
	// status re-derived, without touching the settled amount.
	UpdateRequest(ctx context.Context, requestID int, lines []RequestLineInput, actorID int) (*MaterialRequest, error)

	// ResubmitRequest moves a draft or rejected request back to submitted
	// after re-checking stock availability.
	ResubmitRequest(ctx context.Context, requestID int, actorID int) (*MaterialRequest, error)

	// DeleteRequest removes a draft or rejected request.
	DeleteRequest(ctx context.Context, requestID int) error

	// ApproveRequest (shop reviewer) atomically creates the transfer order
	// with buying-price snapshots, deducts shop stock, and marks the
	// request approved.
	ApproveRequest(ctx context.Context, requestID int, reviewerID int) (*TransferOrder, error)

	// RejectRequest (shop reviewer) rejects a submitted request.
	RejectRequest(ctx context.Context, requestID int, reason string, reviewerID int) (*MaterialRequest, error)

	// PayTransfer settles money from the workshop against a transfer. The
	// linked repair invoice must be fully paid and the amount must not
	// exceed the unsettled balance.
	PayTransfer(ctx context.Context, transferID int, amount decimal.Decimal, actorID int) (*TransferOrder, error)

	// RecordSettlement appends a settlement and re-derives the transfer's
	// settled amount and status. Settling beyond the total is rejected.
	RecordSettlement(ctx context.Context, transferID int, amount decimal.Decimal, note string, actorID int) (*TransferOrder, error)

	// ClearSettlement is the shop-side acknowledgement that settlement cash
	// arrived. It is one-shot per settlement and never changes amounts.
	ClearSettlement(ctx context.Context, settlementID int, actorID int) (*TransferSettlement, error)

	GetRequest(ctx context.Context, requestID int) (*MaterialRequest, error)
	GetRequests(ctx context.Context, status RequestStatus) ([]MaterialRequest, error)
	GetTransfer(ctx context.Context, transferID int) (*TransferOrder, error)
	GetTransfers(ctx context.Context, status TransferStatus) ([]TransferOrder, error)
	GetSettlements(ctx context.Context, transferID int) ([]TransferSettlement, error)
}

type transferService struct {
	pool      *pgxpool.Pool
	inventory InventoryService
	timeline  TimelineService
}

// NewTransferService constructs a TransferService backed by PostgreSQL.
func NewTransferService(pool *pgxpool.Pool, inventory InventoryService, timeline TimelineService) TransferService {
	return &transferService{pool: pool, inventory: inventory, timeline: timeline}
}

// ── Material requests ────────────────────────────────────────────────────────

func (s *transferService) CreateRequest(ctx context.Context, jobID *int, lines []RequestLineInput, actorID int) (*MaterialRequest, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("request has no lines: %w", ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := checkRequestStockTx(ctx, tx, lines); err != nil {
		return nil, err
	}

	req := &MaterialRequest{JobID: jobID, Status: RequestSubmitted, RequestedBy: actorID}
	err = tx.QueryRow(ctx, `
		INSERT INTO material_requests (job_id, status, requested_by)
		VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
		req.JobID, req.Status, req.RequestedBy,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create material request: %w", err)
	}

	req.Lines, err = insertRequestLines(ctx, tx, req.ID, lines)
	if err != nil {
		return nil, err
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRequestSubmitted, ActorID: &actorID,
		EntityType: "material_request", EntityID: &req.ID,
		Summary: fmt.Sprintf("Material request %d submitted with %d lines", req.ID, len(lines)),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit material request: %w", err)
	}
	return req, nil
}

func (s *transferService) UpdateRequest(ctx context.Context, requestID int, lines []RequestLineInput, actorID int) (*MaterialRequest, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("request has no lines: %w", ErrInvalidQuantity)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case RequestDraft, RequestSubmitted:
		if _, err := tx.Exec(ctx, "DELETE FROM material_request_lines WHERE request_id = $1", requestID); err != nil {
			return nil, fmt.Errorf("failed to clear request %d lines: %w", requestID, err)
		}
		req.Lines, err = insertRequestLines(ctx, tx, requestID, lines)
		if err != nil {
			return nil, err
		}

	case RequestRejected:
		if req.RequestedBy != actorID {
			return nil, fmt.Errorf("request %d can only be edited by its requester: %w", requestID, ErrInvalidStateTransition)
		}
		if err := checkRequestStockTx(ctx, tx, lines); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM material_request_lines WHERE request_id = $1", requestID); err != nil {
			return nil, fmt.Errorf("failed to clear request %d lines: %w", requestID, err)
		}
		req.Lines, err = insertRequestLines(ctx, tx, requestID, lines)
		if err != nil {
			return nil, err
		}
		req.Status = RequestSubmitted
		req.RejectionReason = ""
		if _, err := tx.Exec(ctx,
			"UPDATE material_requests SET status = $2, rejection_reason = '', updated_at = now() WHERE id = $1",
			requestID, req.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to resubmit request %d: %w", requestID, err)
		}
		err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
			Kind: EventRequestSubmitted, ActorID: &actorID,
			EntityType: "material_request", EntityID: &requestID,
			Summary: fmt.Sprintf("Material request %d edited and resubmitted", requestID),
		})
		if err != nil {
			return nil, err
		}

	case RequestApproved:
		if err := s.reconcileApprovedTx(ctx, tx, req, lines, actorID); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("request %d is %s: %w", requestID, req.Status, ErrInvalidStateTransition)
	}

	if _, err := tx.Exec(ctx, "UPDATE material_requests SET updated_at = now() WHERE id = $1", requestID); err != nil {
		return nil, fmt.Errorf("failed to touch request %d: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit request update: %w", err)
	}
	return req, nil
}

// reconcileApprovedTx applies line edits to an already-approved request:
// quantity increases move more shop stock out, decreases return stock, and
// the transfer's lines and total are rebuilt. The settled amount is left
// alone; only the derived status can change.
func (s *transferService) reconcileApprovedTx(ctx context.Context, tx pgx.Tx, req *MaterialRequest, lines []RequestLineInput, actorID int) error {
	transfer, err := lockTransferByRequest(ctx, tx, req.ID)
	if err != nil {
		return err
	}

	oldQty := map[int]decimal.Decimal{}
	unitCost := map[int]decimal.Decimal{}
	for _, l := range transfer.Lines {
		oldQty[l.ProductID] = l.Quantity
		unitCost[l.ProductID] = l.UnitCost
	}

	newQty := map[int]decimal.Decimal{}
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("product %d quantity %s: %w", l.ProductID, l.Quantity, ErrInvalidQuantity)
		}
		newQty[l.ProductID] = newQty[l.ProductID].Add(l.Quantity)
	}

	// Apply stock deltas against the shop.
	for productID, nq := range newQty {
		delta := nq.Sub(oldQty[productID])
		if delta.IsPositive() {
			_, err := s.inventory.RemoveStockTx(ctx, tx, productID, delta, StockTransferredOut, &actorID, "transfer", &transfer.ID, "approved request edited")
			if err != nil {
				return err
			}
		} else if delta.IsNegative() {
			_, err := s.inventory.AddStockTx(ctx, tx, productID, delta.Neg(), StockTransferredIn, &actorID, "transfer", &transfer.ID, "approved request edited")
			if err != nil {
				return err
			}
		}
	}
	for productID, oq := range oldQty {
		if _, still := newQty[productID]; !still {
			_, err := s.inventory.AddStockTx(ctx, tx, productID, oq, StockTransferredIn, &actorID, "transfer", &transfer.ID, "line removed from approved request")
			if err != nil {
				return err
			}
		}
	}

	// Rebuild request and transfer lines.
	if _, err := tx.Exec(ctx, "DELETE FROM material_request_lines WHERE request_id = $1", req.ID); err != nil {
		return fmt.Errorf("failed to clear request %d lines: %w", req.ID, err)
	}
	req.Lines, err = insertRequestLines(ctx, tx, req.ID, lines)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "DELETE FROM transfer_lines WHERE transfer_id = $1", transfer.ID); err != nil {
		return fmt.Errorf("failed to clear transfer %d lines: %w", transfer.ID, err)
	}
	total := decimal.Zero
	for productID, nq := range newQty {
		cost, ok := unitCost[productID]
		if !ok {
			// New product on an approved request: snapshot its current buying price.
			if err := tx.QueryRow(ctx, "SELECT buying_price FROM products WHERE id = $1", productID).Scan(&cost); err != nil {
				return fmt.Errorf("failed to price product %d: %w", productID, err)
			}
		}
		lineTotal := RoundTwo(nq.Mul(cost))
		if _, err := tx.Exec(ctx, `
			INSERT INTO transfer_lines (transfer_id, product_id, quantity, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5)`,
			transfer.ID, productID, nq, cost, lineTotal,
		); err != nil {
			return fmt.Errorf("failed to rebuild transfer line for product %d: %w", productID, err)
		}
		total = total.Add(lineTotal)
	}

	transfer.TotalAmount = RoundTwo(total)
	transfer.Status = DeriveTransferStatus(transfer.SettledAmount, transfer.TotalAmount)
	if _, err := tx.Exec(ctx,
		"UPDATE transfer_orders SET total_amount = $2, status = $3, updated_at = now() WHERE id = $1",
		transfer.ID, transfer.TotalAmount, transfer.Status,
	); err != nil {
		return fmt.Errorf("failed to update transfer %d total: %w", transfer.ID, err)
	}
	return nil
}

func (s *transferService) ResubmitRequest(ctx context.Context, requestID int, actorID int) (*MaterialRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestDraft && req.Status != RequestRejected {
		return nil, fmt.Errorf("request %d is %s: %w", requestID, req.Status, ErrInvalidStateTransition)
	}

	req.Lines, err = fetchRequestLinesQ(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	inputs := make([]RequestLineInput, len(req.Lines))
	for i, l := range req.Lines {
		inputs[i] = RequestLineInput{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	if err := checkRequestStockTx(ctx, tx, inputs); err != nil {
		return nil, err
	}

	req.Status = RequestSubmitted
	req.RejectionReason = ""
	if _, err := tx.Exec(ctx,
		"UPDATE material_requests SET status = $2, rejection_reason = '', updated_at = now() WHERE id = $1",
		requestID, req.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to resubmit request %d: %w", requestID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRequestSubmitted, ActorID: &actorID,
		EntityType: "material_request", EntityID: &requestID,
		Summary: fmt.Sprintf("Material request %d resubmitted", requestID),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit resubmit: %w", err)
	}
	return req, nil
}

func (s *transferService) DeleteRequest(ctx context.Context, requestID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if req.Status != RequestDraft && req.Status != RequestRejected {
		return fmt.Errorf("request %d is %s, only draft or rejected requests can be deleted: %w",
			requestID, req.Status, ErrInvalidStateTransition)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM material_request_lines WHERE request_id = $1", requestID); err != nil {
		return fmt.Errorf("failed to delete request %d lines: %w", requestID, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM material_requests WHERE id = $1", requestID); err != nil {
		return fmt.Errorf("failed to delete request %d: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit request deletion: %w", err)
	}
	return nil
}

// ── Approval ─────────────────────────────────────────────────────────────────

func (s *transferService) ApproveRequest(ctx context.Context, requestID int, reviewerID int) (*TransferOrder, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestSubmitted {
		return nil, fmt.Errorf("request %d is %s, approve needs submitted: %w",
			requestID, req.Status, ErrInvalidStateTransition)
	}

	req.Lines, err = fetchRequestLinesQ(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("request %d has no lines: %w", requestID, ErrInvalidQuantity)
	}

	shopID, err := resolveUnitID(ctx, tx, UnitShop)
	if err != nil {
		return nil, err
	}
	workshopID, err := resolveUnitID(ctx, tx, UnitWorkshop)
	if err != nil {
		return nil, err
	}

	transfer := &TransferOrder{
		RequestID:     requestID,
		FromUnitID:    shopID,
		ToUnitID:      workshopID,
		Status:        TransferConfirmed,
		SettledAmount: decimal.Zero,
		CreatedBy:     reviewerID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transfer_orders (request_id, from_unit_id, to_unit_id, status, total_amount, settled_amount, created_by)
		VALUES ($1, $2, $3, $4, 0, 0, $5)
		RETURNING id, created_at, updated_at`,
		transfer.RequestID, transfer.FromUnitID, transfer.ToUnitID, transfer.Status, transfer.CreatedBy,
	).Scan(&transfer.ID, &transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer order: %w", err)
	}

	total := decimal.Zero
	for _, l := range req.Lines {
		var cost decimal.Decimal
		if err := tx.QueryRow(ctx, "SELECT buying_price FROM products WHERE id = $1", l.ProductID).Scan(&cost); err != nil {
			return nil, fmt.Errorf("failed to price product %d: %w", l.ProductID, err)
		}
		lineTotal := RoundTwo(l.Quantity.Mul(cost))
		line := TransferLine{TransferID: transfer.ID, ProductID: l.ProductID, Quantity: l.Quantity, UnitCost: cost, LineTotal: lineTotal}
		err = tx.QueryRow(ctx, `
			INSERT INTO transfer_lines (transfer_id, product_id, quantity, unit_cost, line_total)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.TransferID, line.ProductID, line.Quantity, line.UnitCost, line.LineTotal,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create transfer line for product %d: %w", l.ProductID, err)
		}
		transfer.Lines = append(transfer.Lines, line)
		total = total.Add(lineTotal)

		_, err = s.inventory.RemoveStockTx(ctx, tx, l.ProductID, l.Quantity, StockTransferredOut, &reviewerID, "transfer", &transfer.ID, "")
		if err != nil {
			return nil, err
		}
	}

	transfer.TotalAmount = RoundTwo(total)
	if _, err := tx.Exec(ctx,
		"UPDATE transfer_orders SET total_amount = $2 WHERE id = $1", transfer.ID, transfer.TotalAmount,
	); err != nil {
		return nil, fmt.Errorf("failed to set transfer %d total: %w", transfer.ID, err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE material_requests SET status = $2, reviewed_by = $3, updated_at = now() WHERE id = $1",
		requestID, RequestApproved, reviewerID,
	); err != nil {
		return nil, fmt.Errorf("failed to approve request %d: %w", requestID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRequestApproved, ActorID: &reviewerID,
		EntityType: "material_request", EntityID: &requestID,
		Summary: fmt.Sprintf("Material request %d approved, transfer %d for %s", requestID, transfer.ID, transfer.TotalAmount),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}
	return transfer, nil
}

func (s *transferService) RejectRequest(ctx context.Context, requestID int, reason string, reviewerID int) (*MaterialRequest, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	req, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != RequestSubmitted {
		return nil, fmt.Errorf("request %d is %s, reject needs submitted: %w",
			requestID, req.Status, ErrInvalidStateTransition)
	}

	req.Status = RequestRejected
	req.RejectionReason = reason
	req.ReviewedBy = &reviewerID
	if _, err := tx.Exec(ctx,
		"UPDATE material_requests SET status = $2, rejection_reason = $3, reviewed_by = $4, updated_at = now() WHERE id = $1",
		requestID, req.Status, reason, reviewerID,
	); err != nil {
		return nil, fmt.Errorf("failed to reject request %d: %w", requestID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventRequestRejected, ActorID: &reviewerID,
		EntityType: "material_request", EntityID: &requestID,
		Summary: fmt.Sprintf("Material request %d rejected", requestID),
		Details: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rejection: %w", err)
	}
	return req, nil
}

// ── Settlements ──────────────────────────────────────────────────────────────

func (s *transferService) PayTransfer(ctx context.Context, transferID int, amount decimal.Decimal, actorID int) (*TransferOrder, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("settlement of %s: %w", amount, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	transfer, err := lockTransfer(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}

	// The workshop pays out of repair revenue, so the linked job's invoice
	// must be fully collected first.
	var invoiceStatus *InvoiceStatus
	err = tx.QueryRow(ctx, `
		SELECT ri.payment_status
		FROM material_requests mr
		JOIN repair_invoices ri ON ri.job_id = mr.job_id
		WHERE mr.id = $1`,
		transfer.RequestID,
	).Scan(&invoiceStatus)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check invoice for transfer %d: %w", transferID, err)
	}
	if invoiceStatus != nil && *invoiceStatus != InvoicePaid {
		return nil, fmt.Errorf("transfer %d repair invoice is %s, must be paid: %w",
			transferID, *invoiceStatus, ErrInvalidStateTransition)
	}

	return s.settleTx(ctx, tx, transfer, amount, "workshop payment", actorID)
}

func (s *transferService) RecordSettlement(ctx context.Context, transferID int, amount decimal.Decimal, note string, actorID int) (*TransferOrder, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("settlement of %s: %w", amount, ErrInvalidAmount)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	transfer, err := lockTransfer(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}
	return s.settleTx(ctx, tx, transfer, amount, note, actorID)
}

// settleTx inserts the settlement row, re-derives the transfer's settled
// amount and status, records the timeline event, and commits tx.
func (s *transferService) settleTx(ctx context.Context, tx pgx.Tx, transfer *TransferOrder, amount decimal.Decimal, note string, actorID int) (*TransferOrder, error) {
	outstanding := transfer.TotalAmount.Sub(transfer.SettledAmount)
	if amount.GreaterThan(outstanding) {
		return nil, fmt.Errorf("settlement %s exceeds outstanding %s on transfer %d: %w",
			amount, outstanding, transfer.ID, ErrOverpaymentNotAllowed)
	}

	_, err := tx.Exec(ctx,
		"INSERT INTO transfer_settlements (transfer_id, amount, note, settled_by) VALUES ($1, $2, $3, $4)",
		transfer.ID, RoundTwo(amount), note, actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create settlement: %w", err)
	}

	err = tx.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM transfer_settlements WHERE transfer_id = $1", transfer.ID,
	).Scan(&transfer.SettledAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to sum settlements for transfer %d: %w", transfer.ID, err)
	}

	transfer.Status = DeriveTransferStatus(transfer.SettledAmount, transfer.TotalAmount)
	if _, err := tx.Exec(ctx,
		"UPDATE transfer_orders SET settled_amount = $2, status = $3, updated_at = now() WHERE id = $1",
		transfer.ID, transfer.SettledAmount, transfer.Status,
	); err != nil {
		return nil, fmt.Errorf("failed to update transfer %d settlement state: %w", transfer.ID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventTransferSettled, ActorID: &actorID,
		EntityType: "transfer", EntityID: &transfer.ID,
		Summary: fmt.Sprintf("Transfer %d settled %s, now %s of %s", transfer.ID, amount, transfer.SettledAmount, transfer.TotalAmount),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}
	return transfer, nil
}

func (s *transferService) ClearSettlement(ctx context.Context, settlementID int, actorID int) (*TransferSettlement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	st := &TransferSettlement{}
	err = tx.QueryRow(ctx, `
		SELECT id, transfer_id, amount, note, settled_by, cleared, cleared_by, cleared_at, created_at
		FROM transfer_settlements WHERE id = $1
		FOR UPDATE`,
		settlementID,
	).Scan(&st.ID, &st.TransferID, &st.Amount, &st.Note, &st.SettledBy, &st.Cleared, &st.ClearedBy, &st.ClearedAt, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("settlement %d: %w", settlementID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock settlement %d: %w", settlementID, err)
	}

	if st.Cleared {
		return nil, fmt.Errorf("settlement %d already cleared: %w", settlementID, ErrAlreadyProcessed)
	}

	err = tx.QueryRow(ctx, `
		UPDATE transfer_settlements SET cleared = true, cleared_by = $2, cleared_at = now()
		WHERE id = $1 RETURNING cleared, cleared_by, cleared_at`,
		settlementID, actorID,
	).Scan(&st.Cleared, &st.ClearedBy, &st.ClearedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to clear settlement %d: %w", settlementID, err)
	}

	err = s.timeline.RecordTx(ctx, tx, TimelineEvent{
		Kind: EventSettlementCleared, ActorID: &actorID,
		EntityType: "settlement", EntityID: &settlementID,
		Summary: fmt.Sprintf("Settlement %d of %s cleared by shop", settlementID, st.Amount),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit clearance: %w", err)
	}
	return st, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *transferService) GetRequest(ctx context.Context, requestID int) (*MaterialRequest, error) {
	req := &MaterialRequest{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, job_id, status, rejection_reason, requested_by, reviewed_by, created_at, updated_at
		FROM material_requests WHERE id = $1`,
		requestID,
	).Scan(&req.ID, &req.JobID, &req.Status, &req.RejectionReason, &req.RequestedBy, &req.ReviewedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch request %d: %w", requestID, err)
	}
	req.Lines, err = fetchRequestLinesQ(ctx, s.pool, requestID)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (s *transferService) GetRequests(ctx context.Context, status RequestStatus) ([]MaterialRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, job_id, status, rejection_reason, requested_by, reviewed_by, created_at, updated_at
		FROM material_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []MaterialRequest
	for rows.Next() {
		var r MaterialRequest
		if err := rows.Scan(&r.ID, &r.JobID, &r.Status, &r.RejectionReason, &r.RequestedBy, &r.ReviewedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (s *transferService) GetTransfer(ctx context.Context, transferID int) (*TransferOrder, error) {
	transfer := &TransferOrder{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, request_id, from_unit_id, to_unit_id, status, total_amount, settled_amount, created_by, created_at, updated_at
		FROM transfer_orders WHERE id = $1`,
		transferID,
	).Scan(&transfer.ID, &transfer.RequestID, &transfer.FromUnitID, &transfer.ToUnitID, &transfer.Status,
		&transfer.TotalAmount, &transfer.SettledAmount, &transfer.CreatedBy, &transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer %d: %w", transferID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch transfer %d: %w", transferID, err)
	}
	transfer.Lines, err = fetchTransferLinesQ(ctx, s.pool, transferID)
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

func (s *transferService) GetTransfers(ctx context.Context, status TransferStatus) ([]TransferOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, request_id, from_unit_id, to_unit_id, status, total_amount, settled_amount, created_by, created_at, updated_at
		FROM transfer_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY id DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []TransferOrder
	for rows.Next() {
		var t TransferOrder
		if err := rows.Scan(&t.ID, &t.RequestID, &t.FromUnitID, &t.ToUnitID, &t.Status,
			&t.TotalAmount, &t.SettledAmount, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func (s *transferService) GetSettlements(ctx context.Context, transferID int) ([]TransferSettlement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, transfer_id, amount, note, settled_by, cleared, cleared_by, cleared_at, created_at
		FROM transfer_settlements WHERE transfer_id = $1 ORDER BY id`,
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var settlements []TransferSettlement
	for rows.Next() {
		var st TransferSettlement
		if err := rows.Scan(&st.ID, &st.TransferID, &st.Amount, &st.Note, &st.SettledBy, &st.Cleared, &st.ClearedBy, &st.ClearedAt, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// checkRequestStockTx verifies shop stock can cover every requested line.
func checkRequestStockTx(ctx context.Context, tx pgx.Tx, lines []RequestLineInput) error {
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return fmt.Errorf("product %d quantity %s: %w", l.ProductID, l.Quantity, ErrInvalidQuantity)
		}
		var name string
		var available decimal.Decimal
		err := tx.QueryRow(ctx, "SELECT name, quantity_in_stock FROM products WHERE id = $1", l.ProductID).Scan(&name, &available)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("product %d: %w", l.ProductID, ErrNotFound)
			}
			return fmt.Errorf("failed to check stock for product %d: %w", l.ProductID, err)
		}
		if available.LessThan(l.Quantity) {
			return fmt.Errorf("product %q: available %s, requested %s: %w", name, available, l.Quantity, ErrInsufficientStock)
		}
	}
	return nil
}

func insertRequestLines(ctx context.Context, tx pgx.Tx, requestID int, lines []RequestLineInput) ([]MaterialRequestLine, error) {
	var out []MaterialRequestLine
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, fmt.Errorf("product %d quantity %s: %w", l.ProductID, l.Quantity, ErrInvalidQuantity)
		}
		line := MaterialRequestLine{RequestID: requestID, ProductID: l.ProductID, Quantity: l.Quantity}
		err := tx.QueryRow(ctx, `
			INSERT INTO material_request_lines (request_id, product_id, quantity)
			VALUES ($1, $2, $3) RETURNING id`,
			requestID, l.ProductID, l.Quantity,
		).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create request line for product %d: %w", l.ProductID, err)
		}
		out = append(out, line)
	}
	return out, nil
}

func fetchRequestLinesQ(ctx context.Context, q pgxRowQuerier, requestID int) ([]MaterialRequestLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, request_id, product_id, quantity
		FROM material_request_lines WHERE request_id = $1 ORDER BY id`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query request lines: %w", err)
	}
	defer rows.Close()

	var lines []MaterialRequestLine
	for rows.Next() {
		var l MaterialRequestLine
		if err := rows.Scan(&l.ID, &l.RequestID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan request line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func fetchTransferLinesQ(ctx context.Context, q pgxRowQuerier, transferID int) ([]TransferLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, transfer_id, product_id, quantity, unit_cost, line_total
		FROM transfer_lines WHERE transfer_id = $1 ORDER BY id`,
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfer lines: %w", err)
	}
	defer rows.Close()

	var lines []TransferLine
	for rows.Next() {
		var l TransferLine
		if err := rows.Scan(&l.ID, &l.TransferID, &l.ProductID, &l.Quantity, &l.UnitCost, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan transfer line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// lockRequest reads a material request FOR UPDATE inside tx.
func lockRequest(ctx context.Context, tx pgx.Tx, requestID int) (*MaterialRequest, error) {
	req := &MaterialRequest{}
	err := tx.QueryRow(ctx, `
		SELECT id, job_id, status, rejection_reason, requested_by, reviewed_by, created_at, updated_at
		FROM material_requests WHERE id = $1
		FOR UPDATE`,
		requestID,
	).Scan(&req.ID, &req.JobID, &req.Status, &req.RejectionReason, &req.RequestedBy, &req.ReviewedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("request %d: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock request %d: %w", requestID, err)
	}
	return req, nil
}

// lockTransfer reads a transfer order FOR UPDATE inside tx, with lines.
func lockTransfer(ctx context.Context, tx pgx.Tx, transferID int) (*TransferOrder, error) {
	transfer := &TransferOrder{}
	err := tx.QueryRow(ctx, `
		SELECT id, request_id, from_unit_id, to_unit_id, status, total_amount, settled_amount, created_by, created_at, updated_at
		FROM transfer_orders WHERE id = $1
		FOR UPDATE`,
		transferID,
	).Scan(&transfer.ID, &transfer.RequestID, &transfer.FromUnitID, &transfer.ToUnitID, &transfer.Status,
		&transfer.TotalAmount, &transfer.SettledAmount, &transfer.CreatedBy, &transfer.CreatedAt, &transfer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer %d: %w", transferID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock transfer %d: %w", transferID, err)
	}
	transfer.Lines, err = fetchTransferLinesQ(ctx, tx, transferID)
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// lockTransferByRequest locks the transfer created for a request.
func lockTransferByRequest(ctx context.Context, tx pgx.Tx, requestID int) (*TransferOrder, error) {
	var transferID int
	err := tx.QueryRow(ctx, "SELECT id FROM transfer_orders WHERE request_id = $1", requestID).Scan(&transferID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("transfer for request %d: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find transfer for request %d: %w", requestID, err)
	}
	return lockTransfer(ctx, tx, transferID)
}
