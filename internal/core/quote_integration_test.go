package core_test

import (
	"errors"
	"testing"
	"time"

	"pos-backoffice/internal/core"

	"github.com/shopspring/decimal"
)

func TestQuote_CreateComputesVat(t *testing.T) {
	pool, ctx := setupTestDB(t)
	quotes := core.NewQuoteService(pool)

	until := time.Now().Add(14 * 24 * time.Hour)
	quote, err := quotes.CreateQuote(ctx, "Mwanga Builders", "+255700000009", []core.QuoteItemInput{
		{ProductID: intp(1), Name: "Hammer", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(100)},
		{Name: "Delivery", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50)},
	}, decimal.NewFromInt(18), &until, 2)
	if err != nil {
		t.Fatalf("CreateQuote failed: %v", err)
	}

	if !quote.Subtotal.Equal(decimal.NewFromInt(450)) {
		t.Errorf("Expected subtotal=450, got %s", quote.Subtotal)
	}
	if !quote.VatAmount.Equal(decimal.NewFromInt(81)) {
		t.Errorf("Expected VAT=81, got %s", quote.VatAmount)
	}
	if !quote.TotalAmount.Equal(decimal.NewFromInt(531)) {
		t.Errorf("Expected total=531, got %s", quote.TotalAmount)
	}
	if len(quote.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(quote.Items))
	}
	// Free-text lines carry no product reference.
	if quote.Items[1].ProductID != nil {
		t.Error("Expected nil product on free-text line")
	}
}

func TestQuote_Delete(t *testing.T) {
	pool, ctx := setupTestDB(t)
	quotes := core.NewQuoteService(pool)

	quote, err := quotes.CreateQuote(ctx, "Walk-in", "", []core.QuoteItemInput{
		{Name: "Padlock", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(70)},
	}, decimal.Zero, nil, 2)
	if err != nil {
		t.Fatalf("CreateQuote failed: %v", err)
	}

	if err := quotes.DeleteQuote(ctx, quote.ID); err != nil {
		t.Fatalf("DeleteQuote failed: %v", err)
	}
	if _, err := quotes.GetQuote(ctx, quote.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := quotes.DeleteQuote(ctx, quote.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
	}
}
