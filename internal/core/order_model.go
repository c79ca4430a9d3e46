package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a proforma order header with its line items.
// Status progresses through the state machine:
//
//	pending → in_progress → partial → completed
//	in_progress → completed (single full delivery)
//
// Subtotal, DiscountAmount, FeesTotal and Total are derived by Compute and persisted
// alongside the header so that reads never re-query the catalog.
type Order struct {
	ID              int64           `json:"id"`
	CompanyCode     string          `json:"company_code"`
	ClientRef       string          `json:"client_ref"`
	ClientName      string          `json:"client_name"`    // snapshot taken at creation
	ClientAddress   string          `json:"client_address"` // snapshot taken at creation
	OrderDate       string          `json:"order_date"`     // YYYY-MM-DD
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Fees            []Fee           `json:"fees"`
	Comment         string          `json:"comment"`
	Status          OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	FeesTotal       decimal.Decimal `json:"fees_total"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amount_paid"`
	AmountRemaining decimal.Decimal `json:"amount_remaining"`
	Lines           []OrderLine     `json:"lines"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine is one catalog article attached to an order.
// UnitPrice is captured at creation (or line replacement) and never re-read from the catalog.
type OrderLine struct {
	LineNumber        int             `json:"line_number"`
	ArticleID         string          `json:"article_id"`
	ArticleLabel      string          `json:"article_label"`
	Kind              ArticleKind     `json:"kind"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Quantity          decimal.Decimal `json:"quantity"`
	Days              decimal.Decimal `json:"days"`
	Hours             decimal.Decimal `json:"hours"`
	OrderedQuantity   decimal.Decimal `json:"ordered_quantity"` // effective quantity
	DeliveredQuantity decimal.Decimal `json:"delivered_quantity"`
	DeliveryStatus    DeliveryStatus  `json:"delivery_status"`
}

// Remaining returns the quantity still to be delivered on this line.
func (l OrderLine) Remaining() decimal.Decimal {
	return l.OrderedQuantity.Sub(l.DeliveredQuantity)
}

// LineTotal returns unit price × ordered (effective) quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(l.OrderedQuantity)
}

// Fee is an additive charge applied after the discount (shipping, handling, ...).
type Fee struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// LineInput is used when creating an order or replacing its lines.
// Quantity applies to unit articles, Days to day-priced and Hours to hour-priced articles.
type LineInput struct {
	ArticleID string
	Quantity  decimal.Decimal
	Days      decimal.Decimal
	Hours     decimal.Decimal
}

// CreateOrderInput is the core input for CreateOrder.
type CreateOrderInput struct {
	ClientRef       string
	OrderDate       string
	DiscountPercent decimal.Decimal
	Fees            []Fee
	Comment         string
	Lines           []LineInput
}

// ReplaceOrderInput wholesale-replaces the editable parts of a pending or in-progress order.
type ReplaceOrderInput struct {
	DiscountPercent decimal.Decimal
	Fees            []Fee
	Comment         string
	Lines           []LineInput
}

// LineDelta is one line of a partial-delivery submission.
type LineDelta struct {
	ArticleID string          `json:"article_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// DeliveryEvent is the append-only record of one applied partial delivery.
type DeliveryEvent struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	Deltas         []LineDelta     `json:"deltas"`
	AmountReceived decimal.Decimal `json:"amount_received"`
	Comment        string          `json:"comment"`
	PreviousStatus OrderStatus     `json:"previous_status"`
	ResultStatus   OrderStatus     `json:"result_status"`
	Actor          string          `json:"actor"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Article is the catalog view consumed at order-creation time.
type Article struct {
	ID        string          `json:"id"`
	Label     string          `json:"label"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Kind      ArticleKind     `json:"kind"`
}

// Client is the client-registry view snapshotted into an order.
type Client struct {
	Ref     string `json:"ref"`
	Name    string `json:"name"`
	Address string `json:"address"`
}
