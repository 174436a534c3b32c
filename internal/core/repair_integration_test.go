package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-backoffice/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

func setupRepairTest(t *testing.T) (*pgxpool.Pool, core.RepairService, context.Context) {
	t.Helper()
	pool, ctx := setupTestDB(t)
	timeline := core.NewTimelineService(pool)
	repairs := core.NewRepairService(pool, timeline)
	return pool, repairs, ctx
}

func newRepairJob(t *testing.T, ctx context.Context, repairs core.RepairService, in core.RepairJobInput) *core.RepairJob {
	t.Helper()
	if in.CustomerName == "" {
		in.CustomerName = "Juma"
	}
	if in.ItemName == "" {
		in.ItemName = "Angle grinder"
	}
	if in.Priority == "" {
		in.Priority = core.PriorityNormal
	}
	job, err := repairs.CreateJob(ctx, in, 3)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	return job
}

func TestRepair_Lifecycle(t *testing.T) {
	pool, repairs, ctx := setupRepairTest(t)

	due := time.Now().Add(72 * time.Hour)
	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{DueDate: &due})
	if job.Status != core.RepairReceived {
		t.Fatalf("Expected received, got %s", job.Status)
	}
	if job.JobNumber == "" {
		t.Error("Expected a job number to be assigned")
	}
	if job.IntakeDate.IsZero() {
		t.Error("Expected intake date to default to now")
	}
	if job.DueDate == nil {
		t.Error("Expected due date to be stored")
	}

	steps := []struct {
		name string
		fn   func(context.Context, int, int) (*core.RepairJob, error)
		want core.RepairStatus
	}{
		{"start", repairs.StartJob, core.RepairInProgress},
		{"hold", repairs.HoldJob, core.RepairOnHold},
		{"resume", repairs.ResumeJob, core.RepairInProgress},
		{"complete", repairs.CompleteJob, core.RepairCompleted},
		{"collect", repairs.CollectJob, core.RepairCollected},
	}
	for _, step := range steps {
		got, err := step.fn(ctx, job.ID, 3)
		if err != nil {
			t.Fatalf("%s failed: %v", step.name, err)
		}
		if got.Status != step.want {
			t.Fatalf("After %s expected %s, got %s", step.name, step.want, got.Status)
		}
	}

	// Completing and collecting stamp their dates.
	got, err := repairs.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.CompletedDate == nil {
		t.Error("Expected completed date to be stamped")
	}
	if got.CollectedDate == nil {
		t.Error("Expected collected date to be stamped")
	}

	// Create, complete, and collect each leave a timeline record.
	for _, kind := range []core.TimelineEventKind{
		core.EventRepairJobCreated, core.EventRepairJobCompleted, core.EventRepairJobCollected,
	} {
		var n int
		err := pool.QueryRow(ctx,
			"SELECT count(*) FROM timeline_events WHERE kind = $1 AND entity_id = $2", kind, job.ID,
		).Scan(&n)
		if err != nil {
			t.Fatalf("Failed to count %s events: %v", kind, err)
		}
		if n != 1 {
			t.Errorf("Expected one %s event, got %d", kind, n)
		}
	}
}

func TestRepair_GuardedTransitions(t *testing.T) {
	_, repairs, ctx := setupRepairTest(t)

	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{})

	// Cannot collect a job that was never completed.
	if _, err := repairs.CollectJob(ctx, job.ID, 3); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition collecting received job, got %v", err)
	}

	if _, err := repairs.StartJob(ctx, job.ID, 3); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if _, err := repairs.StartJob(ctx, job.ID, 3); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition starting twice, got %v", err)
	}

	if _, err := repairs.CompleteJob(ctx, job.ID, 3); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}
	if _, err := repairs.CancelJob(ctx, job.ID, 3); !errors.Is(err, core.ErrInvalidStateTransition) {
		t.Errorf("Expected ErrInvalidStateTransition cancelling completed job, got %v", err)
	}
}

func TestRepair_InvoiceTotals(t *testing.T) {
	_, repairs, ctx := setupRepairTest(t)

	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{Tax: decimal.NewFromInt(30)})

	if _, err := repairs.AddPart(ctx, job.ID, core.PartInput{
		ProductID:    intp(1),
		Name:         "Hammer",
		QuantityUsed: decimal.NewFromInt(2),
		UnitCost:     decimal.NewFromInt(60),
	}, 3); err != nil {
		t.Fatalf("AddPart failed: %v", err)
	}
	if _, err := repairs.AddLabour(ctx, job.ID, "strip and rebuild", decimal.NewFromInt(200), 3); err != nil {
		t.Fatalf("AddLabour failed: %v", err)
	}

	inv, err := repairs.GetInvoiceByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetInvoiceByJob failed: %v", err)
	}
	if !inv.TotalParts.Equal(decimal.NewFromInt(120)) {
		t.Errorf("Expected parts=120, got %s", inv.TotalParts)
	}
	if !inv.TotalLabour.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected labour=200, got %s", inv.TotalLabour)
	}
	if !inv.TotalAmount.Equal(decimal.NewFromInt(350)) {
		t.Errorf("Expected total=350 with tax 30, got %s", inv.TotalAmount)
	}
	if inv.PaymentStatus != core.InvoiceUnpaid {
		t.Errorf("Expected unpaid, got %s", inv.PaymentStatus)
	}
}

func TestRepair_FixedPriceOverridesLabour(t *testing.T) {
	_, repairs, ctx := setupRepairTest(t)

	fixed := decimal.NewFromInt(1000)
	jt, err := repairs.CreateJobType(ctx, "Full generator service", &fixed)
	if err != nil {
		t.Fatalf("CreateJobType failed: %v", err)
	}

	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{
		JobTypeID: &jt.ID,
		Tax:       decimal.NewFromInt(50),
	})

	if _, err := repairs.AddPart(ctx, job.ID, core.PartInput{
		Name:         "Brush set",
		QuantityUsed: decimal.NewFromInt(1),
		UnitCost:     decimal.NewFromInt(300),
	}, 3); err != nil {
		t.Fatalf("AddPart failed: %v", err)
	}
	// Itemised labour is ignored under a fixed price.
	if _, err := repairs.AddLabour(ctx, job.ID, "cleaning", decimal.NewFromInt(5000), 3); err != nil {
		t.Fatalf("AddLabour failed: %v", err)
	}

	inv, err := repairs.GetInvoiceByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetInvoiceByJob failed: %v", err)
	}
	// Fixed price plus tax: 1000 + 50.
	if !inv.TotalAmount.Equal(decimal.NewFromInt(1050)) {
		t.Errorf("Expected fixed total=1050, got %s", inv.TotalAmount)
	}
	// Labour is the remainder after parts and tax, floored at zero.
	if !inv.TotalLabour.Equal(decimal.NewFromInt(700)) {
		t.Errorf("Expected derived labour=700, got %s", inv.TotalLabour)
	}
}

func TestRepair_Payments(t *testing.T) {
	pool, repairs, ctx := setupRepairTest(t)

	job := newRepairJob(t, ctx, repairs, core.RepairJobInput{})
	if _, err := repairs.AddLabour(ctx, job.ID, "weld frame", decimal.NewFromInt(500), 3); err != nil {
		t.Fatalf("AddLabour failed: %v", err)
	}
	inv, err := repairs.GetInvoiceByJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetInvoiceByJob failed: %v", err)
	}

	partial, err := repairs.RecordPayment(ctx, inv.ID, decimal.NewFromInt(200), core.MethodCash, 3)
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if partial.PaymentStatus != core.InvoicePartial {
		t.Errorf("Expected partial, got %s", partial.PaymentStatus)
	}

	_, err = repairs.RecordPayment(ctx, inv.ID, decimal.NewFromInt(301), core.MethodCash, 3)
	if !errors.Is(err, core.ErrOverpaymentNotAllowed) {
		t.Errorf("Expected ErrOverpaymentNotAllowed, got %v", err)
	}

	paid, err := repairs.RecordPayment(ctx, inv.ID, decimal.NewFromInt(300), core.MethodMobileMoney, 3)
	if err != nil {
		t.Fatalf("RecordPayment of balance failed: %v", err)
	}
	if paid.PaymentStatus != core.InvoicePaid {
		t.Errorf("Expected paid, got %s", paid.PaymentStatus)
	}

	// Repair payments never settle materials automatically.
	var settled bool
	err = pool.QueryRow(ctx,
		"SELECT bool_or(materials_settled) FROM repair_payments WHERE invoice_id = $1", inv.ID,
	).Scan(&settled)
	if err != nil {
		t.Fatalf("Failed to inspect repair payments: %v", err)
	}
	if settled {
		t.Error("Expected materials_settled=false on all payments")
	}
}
