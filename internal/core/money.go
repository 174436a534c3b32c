package core

import "github.com/shopspring/decimal"

// RoundTwo rounds an amount half-up to two decimal places. Amounts are
// rounded at persistence boundaries only; comparisons use exact values.
func RoundTwo(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FinalAmount computes a sale's final amount: total minus discount, floored
// at zero.
func FinalAmount(total, discount decimal.Decimal) decimal.Decimal {
	final := total.Sub(discount)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final
}

// DerivePaymentStatus derives a sale's payment status purely from its paid
// and final amounts.
func DerivePaymentStatus(paid, final decimal.Decimal) PaymentStatus {
	switch {
	case final.IsPositive() && paid.GreaterThanOrEqual(final):
		return PaymentPaid
	case paid.IsPositive() && paid.LessThan(final):
		return PaymentPartial
	case paid.IsZero() && final.IsPositive():
		return PaymentNotPaid
	default:
		return PaymentPending
	}
}

// DeriveInvoiceStatus derives a repair invoice's payment status from its
// paid and total amounts.
func DeriveInvoiceStatus(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return InvoicePaid
	case paid.IsPositive() && paid.LessThan(total):
		return InvoicePartial
	default:
		return InvoiceUnpaid
	}
}

// DeriveTransferStatus derives a transfer's status from its settled and
// total amounts.
func DeriveTransferStatus(settled, total decimal.Decimal) TransferStatus {
	switch {
	case settled.GreaterThanOrEqual(total) && total.IsPositive():
		return TransferClosed
	case settled.IsPositive() && settled.LessThan(total):
		return TransferPartiallySettled
	default:
		return TransferConfirmed
	}
}

// PortionExtra returns the fractional quantity a portion adds.
func PortionExtra(p Portion) decimal.Decimal {
	switch p {
	case PortionHalf:
		return decimal.NewFromFloat(0.5)
	case PortionQuarter:
		return decimal.NewFromFloat(0.25)
	default:
		return decimal.Zero
	}
}

// EffectiveQuantity is the quantity actually sold for an order item: the
// whole quantity plus the portion extra.
func EffectiveQuantity(whole decimal.Decimal, p Portion) decimal.Decimal {
	return whole.Add(PortionExtra(p))
}

// RecomputeInvoiceTotals applies the repair billing rule to an invoice.
// With a fixed-price job type the total is fixed price plus tax and labour
// is the remainder after parts (floored at zero). Otherwise labour is the
// sum of itemised charges and the total is labour plus parts plus tax.
func RecomputeInvoiceTotals(inv *RepairInvoice, parts []RepairJobPart, labour []LabourCharge, fixedPrice *decimal.Decimal) {
	totalParts := decimal.Zero
	for _, p := range parts {
		totalParts = totalParts.Add(p.QuantityUsed.Mul(p.UnitCost))
	}
	inv.TotalParts = RoundTwo(totalParts)

	if fixedPrice != nil {
		inv.TotalAmount = RoundTwo(fixedPrice.Add(inv.Tax))
		remainder := inv.TotalAmount.Sub(inv.TotalParts).Sub(inv.Tax)
		if remainder.IsNegative() {
			remainder = decimal.Zero
		}
		inv.TotalLabour = RoundTwo(remainder)
	} else {
		totalLabour := decimal.Zero
		for _, l := range labour {
			totalLabour = totalLabour.Add(l.Amount)
		}
		inv.TotalLabour = RoundTwo(totalLabour)
		inv.TotalAmount = RoundTwo(inv.TotalLabour.Add(inv.TotalParts).Add(inv.Tax))
	}

	inv.PaymentStatus = DeriveInvoiceStatus(inv.AmountPaid, inv.TotalAmount)
}
