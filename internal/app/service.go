package app

import (
	"context"
)

// Caller identifies who is calling and on behalf of which company.
// Adapters build it from their own transport (HTTP headers, CLI flags).
type Caller struct {
	CompanyCode string
	Actor       string
	RequestID   string
}

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// Every ref argument is the numeric order ID as typed by the user.
type ApplicationService interface {
	// CreateOrder creates a new pending proforma order with catalog-priced lines.
	CreateOrder(ctx context.Context, caller Caller, req CreateOrderRequest) (*OrderResult, error)

	// ReplaceOrderLines replaces the header terms and every line of a pending or in-progress order.
	ReplaceOrderLines(ctx context.Context, caller Caller, ref string, req ReplaceOrderRequest) (*OrderResult, error)

	// DeleteOrder removes a pending or in-progress order and everything attached to it.
	DeleteOrder(ctx context.Context, caller Caller, ref string) error

	// ApplyDelivery records a partial delivery and an optional payment against an order.
	ApplyDelivery(ctx context.Context, caller Caller, ref string, req DeliveryRequest) (*OrderResult, error)

	// OverrideStatus moves an order to a manually chosen status.
	OverrideStatus(ctx context.Context, caller Caller, ref, status string) (*OrderResult, error)

	// GetAllowedDocuments returns the document kinds the order's status permits.
	GetAllowedDocuments(ctx context.Context, caller Caller, ref string) (*DocumentsResult, error)

	// GenerateDocument builds the printable content of a quote, invoice or delivery note.
	GenerateDocument(ctx context.Context, caller Caller, ref, kind string) (*DocumentResult, error)

	// GetOrder returns a single order with its lines.
	GetOrder(ctx context.Context, caller Caller, ref string) (*OrderResult, error)

	// ListOrders returns the caller's orders, optionally filtered by status.
	ListOrders(ctx context.Context, caller Caller, status *string) (*OrderListResult, error)

	// GetInvoice returns the progressive invoice of an order.
	GetInvoice(ctx context.Context, caller Caller, ref string) (*InvoiceResult, error)

	// ListDeliveries returns the delivery history of an order, oldest first.
	ListDeliveries(ctx context.Context, caller Caller, ref string) (*DeliveryListResult, error)
}
