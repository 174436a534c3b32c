package core_test

import (
	"testing"

	"pos-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name  string
		paid  string
		final string
		want  core.PaymentStatus
	}{
		{"fully paid", "100", "100", core.PaymentPaid},
		{"overpaid counts as paid", "120", "100", core.PaymentPaid},
		{"partial", "40", "100", core.PaymentPartial},
		{"nothing paid", "0", "100", core.PaymentNotPaid},
		{"zero-value sale", "0", "0", core.PaymentPending},
		{"payment against zero final", "10", "0", core.PaymentPending},
		{"one cent short is partial", "99.99", "100", core.PaymentPartial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.DerivePaymentStatus(d(tt.paid), d(tt.final))
			if got != tt.want {
				t.Errorf("DerivePaymentStatus(%s, %s) = %s, want %s", tt.paid, tt.final, got, tt.want)
			}
		})
	}
}

func TestFinalAmount(t *testing.T) {
	if got := core.FinalAmount(d("100"), d("30")); !got.Equal(d("70")) {
		t.Errorf("final = %s, want 70", got)
	}
	// Discount larger than total floors at zero rather than going negative.
	if got := core.FinalAmount(d("50"), d("80")); !got.Equal(decimal.Zero) {
		t.Errorf("final = %s, want 0", got)
	}
}

func TestEffectiveQuantity(t *testing.T) {
	tests := []struct {
		whole   string
		portion core.Portion
		want    string
	}{
		{"3", core.PortionNone, "3"},
		{"3", core.PortionHalf, "3.5"},
		{"0", core.PortionQuarter, "0.25"},
		{"2", core.PortionQuarter, "2.25"},
	}
	for _, tt := range tests {
		got := core.EffectiveQuantity(d(tt.whole), tt.portion)
		if !got.Equal(d(tt.want)) {
			t.Errorf("EffectiveQuantity(%s, %s) = %s, want %s", tt.whole, tt.portion, got, tt.want)
		}
	}
}

func TestDeriveTransferStatus(t *testing.T) {
	tests := []struct {
		name    string
		settled string
		total   string
		want    core.TransferStatus
	}{
		{"nothing settled", "0", "500", core.TransferConfirmed},
		{"partially settled", "200", "500", core.TransferPartiallySettled},
		{"exactly settled", "500", "500", core.TransferClosed},
		{"zero-total transfer stays confirmed", "0", "0", core.TransferConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := core.DeriveTransferStatus(d(tt.settled), d(tt.total))
			if got != tt.want {
				t.Errorf("DeriveTransferStatus(%s, %s) = %s, want %s", tt.settled, tt.total, got, tt.want)
			}
		})
	}
}

func TestRecomputeInvoiceTotals(t *testing.T) {
	parts := []core.RepairJobPart{
		{QuantityUsed: d("2"), UnitCost: d("150")},
		{QuantityUsed: d("1"), UnitCost: d("75.50")},
	}
	labour := []core.LabourCharge{
		{Amount: d("300")},
		{Amount: d("120")},
	}

	t.Run("itemised labour", func(t *testing.T) {
		inv := &core.RepairInvoice{Tax: d("50")}
		core.RecomputeInvoiceTotals(inv, parts, labour, nil)
		if !inv.TotalParts.Equal(d("375.50")) {
			t.Errorf("parts = %s, want 375.50", inv.TotalParts)
		}
		if !inv.TotalLabour.Equal(d("420")) {
			t.Errorf("labour = %s, want 420", inv.TotalLabour)
		}
		if !inv.TotalAmount.Equal(d("845.50")) {
			t.Errorf("total = %s, want 845.50", inv.TotalAmount)
		}
		if inv.PaymentStatus != core.InvoiceUnpaid {
			t.Errorf("status = %s, want unpaid", inv.PaymentStatus)
		}
	})

	t.Run("fixed price job type", func(t *testing.T) {
		fixed := d("1000")
		inv := &core.RepairInvoice{Tax: d("50")}
		core.RecomputeInvoiceTotals(inv, parts, labour, &fixed)
		if !inv.TotalAmount.Equal(d("1050")) {
			t.Errorf("total = %s, want 1050", inv.TotalAmount)
		}
		// Labour is the remainder after parts and tax, not the itemised sum.
		if !inv.TotalLabour.Equal(d("624.50")) {
			t.Errorf("labour = %s, want 624.50", inv.TotalLabour)
		}
	})

	t.Run("fixed price below parts floors labour at zero", func(t *testing.T) {
		fixed := d("100")
		inv := &core.RepairInvoice{Tax: decimal.Zero}
		core.RecomputeInvoiceTotals(inv, parts, nil, &fixed)
		if !inv.TotalLabour.Equal(decimal.Zero) {
			t.Errorf("labour = %s, want 0", inv.TotalLabour)
		}
		if !inv.TotalAmount.Equal(d("100")) {
			t.Errorf("total = %s, want 100", inv.TotalAmount)
		}
	})

	t.Run("partial payment status", func(t *testing.T) {
		inv := &core.RepairInvoice{Tax: decimal.Zero, AmountPaid: d("100")}
		core.RecomputeInvoiceTotals(inv, parts, labour, nil)
		if inv.PaymentStatus != core.InvoicePartial {
			t.Errorf("status = %s, want partial", inv.PaymentStatus)
		}
	})
}
