package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// transitions lists the direct lifecycle edges. completed has none: it is terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusInProgress},
	StatusInProgress: {StatusPartial, StatusCompleted},
	StatusPartial:    {StatusCompleted},
	StatusCompleted:  {},
}

// CanTransition reports whether to is reachable from from along lifecycle edges.
// A status is reachable from itself unless it is terminal.
func CanTransition(from, to OrderStatus) bool {
	if from == StatusCompleted {
		return false
	}
	if from == to {
		return true
	}
	seen := map[OrderStatus]bool{from: true}
	queue := []OrderStatus{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range transitions[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted
}

// IsEditable reports whether lines and header fields may be wholesale-replaced.
func (s OrderStatus) IsEditable() bool {
	return s == StatusPending || s == StatusInProgress
}

// IsDeletable reports whether the order may be destroyed. Orders with delivery or
// payment history (partial, completed) are immutable.
func (s OrderStatus) IsDeletable() bool {
	return s == StatusPending || s == StatusInProgress
}

// isSettled is the completion condition: every line delivered and nothing left to pay.
func isSettled(lines []OrderLine, remaining decimal.Decimal) bool {
	if len(lines) == 0 || remaining.IsPositive() {
		return false
	}
	for _, l := range lines {
		if l.DeliveryStatus != DeliveryDelivered {
			return false
		}
	}
	return true
}

// statusAfterDelivery decides the status produced by a fulfillment step.
// The result is completed iff the order is settled, partial otherwise.
func statusAfterDelivery(current OrderStatus, lines []OrderLine, remaining decimal.Decimal) (OrderStatus, error) {
	if current.IsTerminal() {
		return "", fmt.Errorf("%w: order is %s, no further deliveries accepted", ErrInvalidStateTransition, current)
	}
	next := StatusPartial
	if isSettled(lines, remaining) {
		next = StatusCompleted
	}
	if !CanTransition(current, next) {
		return "", fmt.Errorf("%w: %s → %s", ErrInvalidStateTransition, current, next)
	}
	return next, nil
}

// validateOverride guards an operator status correction. Any target is permitted from a
// non-terminal status as long as the completion biconditional still holds afterwards.
func validateOverride(o *Order, target OrderStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown order status %q", ErrValidation, target)
	}
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order %d is %s and cannot change status", ErrInvalidStateTransition, o.ID, o.Status)
	}
	settled := isSettled(o.Lines, o.AmountRemaining)
	if target == StatusCompleted && !settled {
		return fmt.Errorf("%w: order %d cannot be completed while quantities or balance %s are outstanding",
			ErrInvalidStateTransition, o.ID, o.AmountRemaining.StringFixed(2))
	}
	if target != StatusCompleted && settled {
		return fmt.Errorf("%w: order %d is fully delivered and paid, only completed is valid", ErrInvalidStateTransition, o.ID)
	}
	return nil
}
