package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FulfillmentProcessor is the only writer of delivered quantities, amount paid,
// amount remaining and post-creation status.
type FulfillmentProcessor struct {
	store    *OrderStore
	invoices *InvoiceAccumulator
	now      func() time.Time
}

// NewFulfillmentProcessor wires the processor to the order store and invoice accumulator.
func NewFulfillmentProcessor(store *OrderStore, invoices *InvoiceAccumulator, now func() time.Time) *FulfillmentProcessor {
	if now == nil {
		now = time.Now
	}
	return &FulfillmentProcessor{store: store, invoices: invoices, now: now}
}

// DeliveryResult is what one applied partial delivery produced.
type DeliveryResult struct {
	Order          *Order
	Invoice        *Invoice
	Event          *DeliveryEvent
	PreviousStatus OrderStatus
}

// validateDelivery checks the submission shape. It never touches storage.
func validateDelivery(orderID int64, deltas []LineDelta, amountReceived decimal.Decimal) error {
	if orderID <= 0 {
		return fmt.Errorf("%w: order id must be positive", ErrValidation)
	}
	if amountReceived.IsNegative() {
		return fmt.Errorf("%w: amount received must not be negative, got %s", ErrValidation, amountReceived)
	}
	if len(deltas) == 0 && amountReceived.IsZero() {
		return fmt.Errorf("%w: a delivery must carry at least one line or a payment", ErrValidation)
	}
	seen := make(map[string]bool, len(deltas))
	for i, d := range deltas {
		if d.ArticleID == "" {
			return fmt.Errorf("%w: delta %d: article id is required", ErrValidation, i+1)
		}
		if !d.Quantity.IsPositive() {
			return fmt.Errorf("%w: delta %d (%s): quantity must be positive, got %s", ErrValidation, i+1, d.ArticleID, d.Quantity)
		}
		if seen[d.ArticleID] {
			return fmt.Errorf("%w: article %s appears more than once in the delivery", ErrValidation, d.ArticleID)
		}
		seen[d.ArticleID] = true
	}
	return nil
}

// Apply records a partial delivery inside tx:
//
//  1. read the order and remember its status and version
//  2. refuse completed orders
//  3. refuse any delta larger than the line's undelivered quantity
//  4. add deltas and re-derive each line's delivery status
//  5. add the payment and recompute the remaining balance
//  6-7. settle to completed when every line is delivered and nothing is owed, otherwise partial
//  8. write once, conditional on the status/version read in step 1
//  9. append to the progressive invoice
//
// The caller owns commit and rollback.
func (p *FulfillmentProcessor) Apply(ctx context.Context, tx Tx, scope Scope, orderID int64, deltas []LineDelta, amountReceived decimal.Decimal, comment string) (*DeliveryResult, error) {
	o, err := p.store.Get(ctx, tx, scope, orderID)
	if err != nil {
		return nil, err
	}
	observed := o.Status

	if observed.IsTerminal() {
		return nil, fmt.Errorf("%w: order %d is %s, no further deliveries accepted", ErrInvalidStateTransition, o.ID, observed)
	}

	lineByArticle := make(map[string]int, len(o.Lines))
	for i, l := range o.Lines {
		lineByArticle[l.ArticleID] = i
	}
	for _, d := range deltas {
		idx, ok := lineByArticle[d.ArticleID]
		if !ok {
			return nil, fmt.Errorf("%w: article %s is not on order %d", ErrNotFound, d.ArticleID, o.ID)
		}
		line := o.Lines[idx]
		if d.Quantity.GreaterThan(line.Remaining()) {
			return nil, fmt.Errorf("%w: article %s: delivering %s but only %s outstanding (ordered %s, delivered %s)",
				ErrInvalidQuantity, d.ArticleID, d.Quantity, line.Remaining(), line.OrderedQuantity, line.DeliveredQuantity)
		}
	}

	for _, d := range deltas {
		line := &o.Lines[lineByArticle[d.ArticleID]]
		line.DeliveredQuantity = line.DeliveredQuantity.Add(d.Quantity)
		line.DeliveryStatus = deliveryStatusFor(line.DeliveredQuantity, line.OrderedQuantity)
	}

	newPaid := o.AmountPaid.Add(amountReceived)
	newRemaining := remainingAmount(o.Total, newPaid)

	next, err := statusAfterDelivery(observed, o.Lines, newRemaining)
	if err != nil {
		return nil, err
	}
	if next == StatusCompleted {
		// Settling absorbs any rounding slack between what was paid and the total.
		newPaid = o.Total
		newRemaining = decimal.Zero
	}
	o.AmountPaid = newPaid
	o.AmountRemaining = newRemaining
	o.Status = next

	if err := p.store.UpdateFulfillment(ctx, tx, o, observed); err != nil {
		return nil, err
	}

	event := &DeliveryEvent{
		OrderID:        o.ID,
		Deltas:         deltas,
		AmountReceived: amountReceived,
		Comment:        comment,
		PreviousStatus: observed,
		ResultStatus:   next,
		Actor:          scope.Actor,
		CreatedAt:      p.now(),
	}
	eventID, err := tx.InsertDeliveryEvent(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery event for order %d: %w", o.ID, err)
	}
	event.ID = eventID

	inv, err := p.invoices.Append(ctx, tx, o, deltas, amountReceived, next)
	if err != nil {
		return nil, err
	}

	return &DeliveryResult{Order: o, Invoice: inv, Event: event, PreviousStatus: observed}, nil
}
