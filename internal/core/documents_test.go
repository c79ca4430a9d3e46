package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/core"
)

func TestAllowedDocumentsByStatus(t *testing.T) {
	all := []core.DocumentKind{core.DocumentQuote, core.DocumentInvoice, core.DocumentDeliveryNote}
	tests := []struct {
		status core.OrderStatus
		want   []core.DocumentKind
	}{
		{core.StatusPending, []core.DocumentKind{core.DocumentQuote}},
		{core.StatusInProgress, all},
		{core.StatusPartial, all},
		{core.StatusCompleted, []core.DocumentKind{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got := core.AllowedDocumentsFor(&core.Order{ID: 7, Status: tt.status})
			assert.Equal(t, tt.want, got.Kinds)
			assert.NotNil(t, got.Kinds)
			for _, k := range all {
				assert.Equal(t, contains(tt.want, k), got.Allows(k), k)
			}
		})
	}
}

func contains(kinds []core.DocumentKind, k core.DocumentKind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func TestGenerateDocumentPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.scenarioA(t)

	quote, err := f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentQuote)
	require.NoError(t, err)
	assert.Equal(t, core.DocumentQuote, quote.Kind)
	assert.Len(t, quote.Lines, 2)
	assertDec(t, "1250", quote.Totals.Total)
	assert.Empty(t, quote.InvoiceNumber)

	_, err = f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentInvoice)
	assert.ErrorIs(t, err, core.ErrDocumentNotAllowed)
	_, err = f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentDeliveryNote)
	assert.ErrorIs(t, err, core.ErrDocumentNotAllowed)
}

func TestGenerateDocumentPartialShowsDeliveredLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.scenarioA(t)
	_, err := f.svc.ApplyPartialDelivery(ctx, f.scope, o.ID, []core.LineDelta{
		{ArticleID: "A1", Quantity: dec("4")},
	}, dec("300"), "")
	require.NoError(t, err)

	inv, err := f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-00001", inv.InvoiceNumber)
	require.Len(t, inv.Lines, 1)
	assert.Equal(t, "A1", inv.Lines[0].ArticleID)
	assertDec(t, "4", inv.Lines[0].Quantity)
	assertDec(t, "400", inv.Lines[0].Amount)
	assertDec(t, "400", inv.Totals.Total)
	assertDec(t, "300", inv.AmountPaid)
	assertDec(t, "950", inv.AmountRemaining)

	note, err := f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentDeliveryNote)
	require.NoError(t, err)
	assert.Empty(t, note.InvoiceNumber)
	assert.Equal(t, inv.Lines, note.Lines)

	quote, err := f.svc.GenerateDocument(ctx, f.scope, o.ID, core.DocumentQuote)
	require.NoError(t, err)
	assert.Len(t, quote.Lines, 2)
	assertDec(t, "1250", quote.Totals.Total)
}

func TestBuildDocumentViewAppliesDiscountToDeliveredSubset(t *testing.T) {
	o := &core.Order{
		ID:              3,
		Status:          core.StatusPartial,
		DiscountPercent: dec("10"),
		Fees:            []core.Fee{{Label: "Delivery", Amount: dec("20")}},
		Lines: []core.OrderLine{
			{ArticleID: "A", UnitPrice: dec("100"), OrderedQuantity: dec("5"), DeliveredQuantity: dec("2"), DeliveryStatus: core.DeliveryPartial},
			{ArticleID: "B", UnitPrice: dec("10"), OrderedQuantity: dec("5"), DeliveredQuantity: dec("0"), DeliveryStatus: core.DeliveryUndelivered},
		},
	}
	view, err := core.BuildDocumentView(o, nil, core.DocumentDeliveryNote)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assertDec(t, "200", view.Totals.Subtotal)
	assertDec(t, "20", view.Totals.DiscountAmount)
	assertDec(t, "200", view.Totals.Total)

	_, err = core.BuildDocumentView(o, nil, core.DocumentKind("receipt"))
	assert.ErrorIs(t, err, core.ErrDocumentNotAllowed)
}

func TestParseDocumentKind(t *testing.T) {
	k, err := core.ParseDocumentKind("delivery_note")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentDeliveryNote, k)

	_, err = core.ParseDocumentKind("proforma")
	assert.ErrorIs(t, err, core.ErrValidation)
}
