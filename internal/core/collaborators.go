package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Catalog is the read-only article registry. It is consulted only when lines are created or
// replaced; fulfillment works from the prices captured on the order lines.
type Catalog interface {
	// LookupArticle returns the article or an error wrapping ErrNotFound.
	LookupArticle(ctx context.Context, scope Scope, articleID string) (*Article, error)
}

// ClientDirectory is the read-only client registry whose identity is snapshotted into orders.
type ClientDirectory interface {
	// LookupClient returns the client or an error wrapping ErrNotFound.
	LookupClient(ctx context.Context, scope Scope, clientRef string) (*Client, error)
}

// EventType names an order lifecycle event.
type EventType string

const (
	EventOrderCreated     EventType = "order.created"
	EventLinesReplaced    EventType = "order.lines_replaced"
	EventOrderDeleted     EventType = "order.deleted"
	EventDeliveryApplied  EventType = "order.delivery_applied"
	EventStatusOverridden EventType = "order.status_overridden"
)

// Event is published after a mutation has committed.
type Event struct {
	Type           EventType       `json:"type"`
	OrderID        int64           `json:"order_id"`
	Company        string          `json:"company"`
	Actor          string          `json:"actor"`
	RequestID      string          `json:"request_id,omitempty"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	Status         OrderStatus     `json:"status,omitempty"`
	Total          decimal.Decimal `json:"total"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	InvoiceNumber  string          `json:"invoice_number,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// EventPublisher delivers lifecycle events to downstream consumers.
// Publishing happens after commit and can never undo a committed mutation.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
