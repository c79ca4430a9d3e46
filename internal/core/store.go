package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Repository opens transactions against the backing store.
// Implementations: internal/store/postgres (pgx) and internal/store/memory.
type Repository interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. Rollback after Commit must be a harmless no-op so callers can
// always `defer tx.Rollback(ctx)`.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	// InsertOrder persists the header and lines and returns the new order ID.
	InsertOrder(ctx context.Context, o *Order) (int64, error)
	// SelectOrder returns the order with its lines, or ErrNotFound.
	SelectOrder(ctx context.Context, orderID int64) (*Order, error)
	SelectOrders(ctx context.Context, company string, status *OrderStatus) ([]Order, error)
	// ReplaceOrder rewrites the header and wholesale-replaces the lines if the stored
	// version still equals o.Version. It reports whether the row matched.
	ReplaceOrder(ctx context.Context, o *Order) (bool, error)
	// DeleteOrder removes the order if the stored version still equals version.
	DeleteOrder(ctx context.Context, orderID, version int64) (bool, error)
	// UpdateFulfillment writes paid/remaining/status and per-line delivery state, but only if
	// the stored row still has the expected status and o.Version. It reports whether the row matched.
	// Every successful write increments the stored version.
	UpdateFulfillment(ctx context.Context, o *Order, expected OrderStatus) (bool, error)

	InsertDeliveryEvent(ctx context.Context, e *DeliveryEvent) (int64, error)
	SelectDeliveryEvents(ctx context.Context, orderID int64) ([]DeliveryEvent, error)

	// SelectInvoiceByOrder returns the order's invoice, or ErrNotFound.
	SelectInvoiceByOrder(ctx context.Context, orderID int64) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv *Invoice) (int64, error)
	// UpdateInvoice writes total/status and replaces the merged lines.
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	// NextSequence returns the next gapless number for (typeCode, year).
	NextSequence(ctx context.Context, typeCode string, year int) (int64, error)
}

// OrderStore owns the read → validate → mutate → verify → write discipline for orders.
// Every method runs inside the caller's transaction.
type OrderStore struct {
	now func() time.Time
}

// NewOrderStore constructs an OrderStore using the given clock.
func NewOrderStore(now func() time.Time) *OrderStore {
	if now == nil {
		now = time.Now
	}
	return &OrderStore{now: now}
}

// Create persists a new pending order. Totals must already be computed.
func (s *OrderStore) Create(ctx context.Context, tx Tx, o *Order) (int64, error) {
	if len(o.Lines) == 0 {
		return 0, fmt.Errorf("%w: order must have at least one line", ErrValidation)
	}
	o.Status = StatusPending
	o.AmountPaid = decimal.Zero
	o.AmountRemaining = remainingAmount(o.Total, o.AmountPaid)
	for i := range o.Lines {
		o.Lines[i].LineNumber = i + 1
		o.Lines[i].DeliveredQuantity = decimal.Zero
		o.Lines[i].DeliveryStatus = DeliveryUndelivered
	}
	o.Version = 1
	o.CreatedAt = s.now()
	o.UpdatedAt = o.CreatedAt
	if err := verifyOrder(o); err != nil {
		return 0, err
	}

	id, err := tx.InsertOrder(ctx, o)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}
	o.ID = id
	return id, nil
}

// Get loads an order. Orders belonging to another company are reported as not found.
func (s *OrderStore) Get(ctx context.Context, tx Tx, scope Scope, orderID int64) (*Order, error) {
	o, err := tx.SelectOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if scope.Company != "" && o.CompanyCode != scope.Company {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return o, nil
}

// ReplaceLines wholesale-replaces lines and editable header fields and recomputes totals.
// Only pending and in-progress orders may be edited.
func (s *OrderStore) ReplaceLines(ctx context.Context, tx Tx, o *Order, lines []OrderLine, discountPercent decimal.Decimal, fees []Fee, comment string) error {
	if !o.Status.IsEditable() {
		return fmt.Errorf("%w: order %d is %s, only pending or in_progress orders can be edited", ErrInvalidStateTransition, o.ID, o.Status)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: order must have at least one line", ErrValidation)
	}
	totals, err := computeOrderLines(lines, discountPercent, fees)
	if err != nil {
		return err
	}

	// Deliveries already recorded against an article survive the replacement.
	delivered := make(map[string]decimal.Decimal, len(o.Lines))
	for _, l := range o.Lines {
		delivered[l.ArticleID] = l.DeliveredQuantity
	}
	for i := range lines {
		d := delivered[lines[i].ArticleID]
		if d.GreaterThan(lines[i].OrderedQuantity) {
			return fmt.Errorf("%w: article %s: %s already delivered, cannot order %s",
				ErrInvalidQuantity, lines[i].ArticleID, d, lines[i].OrderedQuantity)
		}
		lines[i].LineNumber = i + 1
		lines[i].DeliveredQuantity = d
		lines[i].DeliveryStatus = deliveryStatusFor(d, lines[i].OrderedQuantity)
		delete(delivered, lines[i].ArticleID)
	}
	for articleID, d := range delivered {
		if d.IsPositive() {
			return fmt.Errorf("%w: article %s: %s already delivered, cannot be removed from the order",
				ErrInvalidQuantity, articleID, d)
		}
	}
	remaining := remainingAmount(totals.Total, o.AmountPaid)
	if isSettled(lines, remaining) {
		return fmt.Errorf("%w: edit would leave order %d fully delivered and paid while %s", ErrInvalidStateTransition, o.ID, o.Status)
	}

	o.Lines = lines
	o.DiscountPercent = discountPercent
	o.Fees = fees
	o.Comment = comment
	o.applyTotals(totals)
	o.AmountRemaining = remaining
	o.UpdatedAt = s.now()
	if err := verifyOrder(o); err != nil {
		return err
	}

	ok, err := tx.ReplaceOrder(ctx, o)
	if err != nil {
		return fmt.Errorf("failed to replace lines of order %d: %w", o.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: order %d changed since it was read", ErrConcurrencyConflict, o.ID)
	}
	o.Version++
	return nil
}

// Delete destroys a pending or in-progress order that has never been delivered or paid.
// An order moved back to pending by an override keeps its invoice and delivery events,
// so it stays undeletable.
func (s *OrderStore) Delete(ctx context.Context, tx Tx, o *Order) error {
	if !o.Status.IsDeletable() {
		return fmt.Errorf("%w: order %d is %s and has financial history", ErrInvalidStateTransition, o.ID, o.Status)
	}
	if err := s.checkNoHistory(ctx, tx, o); err != nil {
		return err
	}
	ok, err := tx.DeleteOrder(ctx, o.ID, o.Version)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", o.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: order %d changed since it was read", ErrConcurrencyConflict, o.ID)
	}
	return nil
}

func (s *OrderStore) checkNoHistory(ctx context.Context, tx Tx, o *Order) error {
	if o.AmountPaid.IsPositive() {
		return fmt.Errorf("%w: order %d has received %s", ErrInvalidStateTransition, o.ID, o.AmountPaid)
	}
	for _, l := range o.Lines {
		if l.DeliveredQuantity.IsPositive() {
			return fmt.Errorf("%w: order %d has deliveries on article %s", ErrInvalidStateTransition, o.ID, l.ArticleID)
		}
	}
	inv, err := tx.SelectInvoiceByOrder(ctx, o.ID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: order %d is billed on invoice %s", ErrInvalidStateTransition, o.ID, inv.InvoiceNumber)
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to load invoice of order %d: %w", o.ID, err)
	}
	events, err := tx.SelectDeliveryEvents(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("failed to load delivery history of order %d: %w", o.ID, err)
	}
	if len(events) > 0 {
		return fmt.Errorf("%w: order %d has %d delivery events", ErrInvalidStateTransition, o.ID, len(events))
	}
	return nil
}

// UpdateFulfillment is the single atomic write of delivery and payment state. observed is the
// status read at transaction start and o.Version the version read with it; if either changed
// in the meantime the write is refused with ErrConcurrencyConflict.
func (s *OrderStore) UpdateFulfillment(ctx context.Context, tx Tx, o *Order, observed OrderStatus) error {
	o.UpdatedAt = s.now()
	if err := verifyOrder(o); err != nil {
		return err
	}
	ok, err := tx.UpdateFulfillment(ctx, o, observed)
	if err != nil {
		return fmt.Errorf("failed to update fulfillment of order %d: %w", o.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: order %d changed since it was read (expected status %s)", ErrConcurrencyConflict, o.ID, observed)
	}
	o.Version++
	return nil
}

// SetStatus writes an operator status override through the same guarded path.
func (s *OrderStore) SetStatus(ctx context.Context, tx Tx, o *Order, target OrderStatus) error {
	observed := o.Status
	o.Status = target
	return s.UpdateFulfillment(ctx, tx, o, observed)
}

func (o *Order) applyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.DiscountAmount = t.DiscountAmount
	o.FeesTotal = t.FeesTotal
	o.Total = t.Total
}

// verifyOrder checks every stored invariant before a write. A failure here is a bug
// in the caller, not a user error, so it is not classified.
func verifyOrder(o *Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %d: invalid status %q", o.ID, o.Status)
	}
	for _, l := range o.Lines {
		if l.DeliveredQuantity.IsNegative() || l.DeliveredQuantity.GreaterThan(l.OrderedQuantity) {
			return fmt.Errorf("order %d line %d: delivered %s outside [0, %s]",
				o.ID, l.LineNumber, l.DeliveredQuantity, l.OrderedQuantity)
		}
		if want := deliveryStatusFor(l.DeliveredQuantity, l.OrderedQuantity); l.DeliveryStatus != want {
			return fmt.Errorf("order %d line %d: delivery status %s, expected %s", o.ID, l.LineNumber, l.DeliveryStatus, want)
		}
	}
	if want := o.Subtotal.Sub(o.DiscountAmount).Add(o.FeesTotal); !o.Total.Equal(want) {
		return fmt.Errorf("order %d: total %s does not match subtotal − discount + fees = %s", o.ID, o.Total, want)
	}
	if want := remainingAmount(o.Total, o.AmountPaid); !o.AmountRemaining.Equal(want) {
		return fmt.Errorf("order %d: amount remaining %s, expected %s", o.ID, o.AmountRemaining, want)
	}
	if settled := isSettled(o.Lines, o.AmountRemaining); settled != (o.Status == StatusCompleted) {
		return fmt.Errorf("order %d: status %s inconsistent with settlement (settled=%t)", o.ID, o.Status, settled)
	}
	return nil
}
