package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AllowedDocumentsFor maps the order's status to the documents it may currently produce.
// A completed order is closed to new paperwork.
func AllowedDocumentsFor(o *Order) AllowedDocuments {
	var kinds []DocumentKind
	switch o.Status {
	case StatusPending:
		kinds = []DocumentKind{DocumentQuote}
	case StatusInProgress, StatusPartial:
		kinds = []DocumentKind{DocumentQuote, DocumentInvoice, DocumentDeliveryNote}
	case StatusCompleted:
		kinds = []DocumentKind{}
	}
	return AllowedDocuments{OrderID: o.ID, Status: o.Status, Kinds: kinds}
}

// BuildDocumentView renders the content of a document of the given kind.
// inv may be nil when no delivery has been recorded yet.
//
// Quotes always show every line at its ordered quantity. Invoices and delivery notes
// of a partial order show only lines with something delivered, at the delivered quantity.
func BuildDocumentView(o *Order, inv *Invoice, kind DocumentKind) (*DocumentView, error) {
	allowed := AllowedDocumentsFor(o)
	if !allowed.Allows(kind) {
		return nil, fmt.Errorf("%w: %s is not available for order %d in status %s", ErrDocumentNotAllowed, kind, o.ID, o.Status)
	}

	deliveredOnly := false
	switch kind {
	case DocumentQuote:
	case DocumentInvoice, DocumentDeliveryNote:
		deliveredOnly = o.Status == StatusPartial
	default:
		return nil, fmt.Errorf("%w: unknown document kind %q", ErrValidation, kind)
	}

	view := &DocumentView{
		Kind:            kind,
		OrderID:         o.ID,
		OrderStatus:     o.Status,
		ClientRef:       o.ClientRef,
		ClientName:      o.ClientName,
		ClientAddress:   o.ClientAddress,
		OrderDate:       o.OrderDate,
		Fees:            o.Fees,
		AmountPaid:      o.AmountPaid,
		AmountRemaining: o.AmountRemaining,
		Comment:         o.Comment,
	}
	if kind == DocumentInvoice && inv != nil {
		view.InvoiceNumber = inv.InvoiceNumber
	}

	priced := make([]PricedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		qty := l.OrderedQuantity
		if deliveredOnly {
			if l.DeliveryStatus == DeliveryUndelivered {
				continue
			}
			qty = l.DeliveredQuantity
		}
		view.Lines = append(view.Lines, DocumentLineView{
			ArticleID:    l.ArticleID,
			ArticleLabel: l.ArticleLabel,
			Kind:         l.Kind,
			UnitPrice:    l.UnitPrice,
			Quantity:     qty,
			Amount:       l.UnitPrice.Mul(qty),
		})
		priced = append(priced, PricedLine{UnitPrice: l.UnitPrice, EffectiveQuantity: qty})
	}

	if !deliveredOnly {
		view.Totals = Totals{
			Subtotal:       o.Subtotal,
			DiscountAmount: o.DiscountAmount,
			FeesTotal:      o.FeesTotal,
			Total:          o.Total,
		}
		return view, nil
	}

	if len(priced) == 0 {
		view.Totals = Totals{Subtotal: decimal.Zero, DiscountAmount: decimal.Zero, FeesTotal: decimal.Zero, Total: decimal.Zero}
		return view, nil
	}
	totals, err := Compute(priced, o.DiscountPercent, o.Fees)
	if err != nil {
		return nil, fmt.Errorf("failed to total %s for order %d: %w", kind, o.ID, err)
	}
	view.Totals = totals
	return view, nil
}
