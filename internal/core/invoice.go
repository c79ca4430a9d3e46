package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// invoiceTypeCode prefixes invoice numbers and keys their gapless sequence.
const invoiceTypeCode = "INV"

// InvoiceAccumulator maintains the progressive invoice of an order. The invoice is created on
// the first delivery and merged into afterwards; it is never deleted.
type InvoiceAccumulator struct {
	now func() time.Time
}

// NewInvoiceAccumulator constructs an InvoiceAccumulator using the given clock.
func NewInvoiceAccumulator(now func() time.Time) *InvoiceAccumulator {
	if now == nil {
		now = time.Now
	}
	return &InvoiceAccumulator{now: now}
}

// Append merges a delivery into the order's invoice, creating the invoice if needed.
// When resultingStatus is completed the invoice closes and its total is reconciled to o.Total.
func (a *InvoiceAccumulator) Append(ctx context.Context, tx Tx, o *Order, deltas []LineDelta, amountReceived decimal.Decimal, resultingStatus OrderStatus) (*Invoice, error) {
	inv, err := tx.SelectInvoiceByOrder(ctx, o.ID)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		created = true
		inv = &Invoice{
			OrderID:   o.ID,
			Status:    InvoiceOpen,
			Total:     decimal.Zero,
			CreatedAt: a.now(),
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load invoice for order %d: %w", o.ID, err)
	}
	if inv.Status == InvoiceCompleted {
		return nil, fmt.Errorf("%w: invoice %s of order %d is already completed", ErrInvalidStateTransition, inv.InvoiceNumber, o.ID)
	}

	mergeInvoiceLines(inv, o.Lines, deltas)
	inv.Total = inv.Total.Add(amountReceived)
	if resultingStatus == StatusCompleted {
		inv.Status = InvoiceCompleted
		inv.Total = o.Total
	}
	inv.UpdatedAt = a.now()

	if !created {
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return nil, fmt.Errorf("failed to update invoice %s: %w", inv.InvoiceNumber, err)
		}
		return inv, nil
	}

	year := inv.CreatedAt.Year()
	n, err := tx.NextSequence(ctx, invoiceTypeCode, year)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice number: %w", err)
	}
	inv.InvoiceNumber = FormatDocumentNumber(invoiceTypeCode, year, n)

	id, err := tx.InsertInvoice(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice for order %d: %w", o.ID, err)
	}
	inv.ID = id
	return inv, nil
}

// mergeInvoiceLines adds delivered quantities to the invoice, one line per article.
// Prices and labels come from the order lines captured at creation.
func mergeInvoiceLines(inv *Invoice, lines []OrderLine, deltas []LineDelta) {
	byArticle := make(map[string]OrderLine, len(lines))
	for _, l := range lines {
		byArticle[l.ArticleID] = l
	}
	idx := make(map[string]int, len(inv.Lines))
	for i, l := range inv.Lines {
		idx[l.ArticleID] = i
	}
	for _, d := range deltas {
		if i, ok := idx[d.ArticleID]; ok {
			inv.Lines[i].Quantity = inv.Lines[i].Quantity.Add(d.Quantity)
			continue
		}
		ol := byArticle[d.ArticleID]
		inv.Lines = append(inv.Lines, InvoiceLine{
			ArticleID:    d.ArticleID,
			ArticleLabel: ol.ArticleLabel,
			UnitPrice:    ol.UnitPrice,
			Quantity:     d.Quantity,
		})
		idx[d.ArticleID] = len(inv.Lines) - 1
	}
}

// FormatDocumentNumber renders a gapless sequence value, e.g. INV-2026-00042.
func FormatDocumentNumber(typeCode string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%05d", typeCode, year, n)
}
