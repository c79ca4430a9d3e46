package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in_progress"
	StatusPartial    OrderStatus = "partial"
	StatusCompleted  OrderStatus = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPartial, StatusCompleted:
		return true
	}
	return false
}

// ParseOrderStatus converts free-form input into an OrderStatus.
func ParseOrderStatus(v string) (OrderStatus, error) {
	s := OrderStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, v)
	}
	return s, nil
}

// DeliveryStatus is the per-line delivery state, always derived from quantities.
type DeliveryStatus string

const (
	DeliveryUndelivered DeliveryStatus = "undelivered"
	DeliveryPartial     DeliveryStatus = "partially_delivered"
	DeliveryDelivered   DeliveryStatus = "delivered"
)

// deliveryStatusFor derives the delivery status of a line from its quantities.
func deliveryStatusFor(delivered, ordered decimal.Decimal) DeliveryStatus {
	switch {
	case delivered.IsZero():
		return DeliveryUndelivered
	case delivered.LessThan(ordered):
		return DeliveryPartial
	default:
		return DeliveryDelivered
	}
}

// ArticleKind decides which input field is the effective pricing multiplier.
type ArticleKind string

const (
	ArticleUnit ArticleKind = "unit"
	ArticleDay  ArticleKind = "day"
	ArticleHour ArticleKind = "hour"
)

// Valid reports whether k is a known article kind.
func (k ArticleKind) Valid() bool {
	switch k {
	case ArticleUnit, ArticleDay, ArticleHour:
		return true
	}
	return false
}

// EffectiveQuantity resolves the multiplier used to price a line of this kind.
func (k ArticleKind) EffectiveQuantity(in LineInput) (decimal.Decimal, error) {
	switch k {
	case ArticleUnit:
		return in.Quantity, nil
	case ArticleDay:
		return in.Days, nil
	case ArticleHour:
		return in.Hours, nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown article kind %q", ErrValidation, k)
}

// DocumentKind is a printable document an order may produce.
type DocumentKind string

const (
	DocumentQuote        DocumentKind = "quote"
	DocumentInvoice      DocumentKind = "invoice"
	DocumentDeliveryNote DocumentKind = "delivery_note"
)

// ParseDocumentKind converts free-form input into a DocumentKind.
func ParseDocumentKind(v string) (DocumentKind, error) {
	switch k := DocumentKind(v); k {
	case DocumentQuote, DocumentInvoice, DocumentDeliveryNote:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown document kind %q", ErrValidation, v)
}

// Scope is the request-scoped identity threaded explicitly into every core call.
type Scope struct {
	Company   string
	Actor     string
	RequestID string
}

// Totals is the result of the financial calculation for a set of lines.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FeesTotal      decimal.Decimal `json:"fees_total"`
	Total          decimal.Decimal `json:"total"`
}

// InvoiceStatus is the lifecycle state of an order's progressive invoice.
type InvoiceStatus string

const (
	InvoiceOpen      InvoiceStatus = "open"
	InvoiceCompleted InvoiceStatus = "completed"
)

// Invoice is the progressive invoice accumulated across deliveries of one order.
type Invoice struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Status        InvoiceStatus   `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Lines         []InvoiceLine   `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InvoiceLine is unique per article within one invoice.
type InvoiceLine struct {
	ArticleID    string          `json:"article_id"`
	ArticleLabel string          `json:"article_label"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
}

// Amount returns unit price × invoiced quantity.
func (l InvoiceLine) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(l.Quantity)
}

// AllowedDocuments is the document authorization for an order at its current status.
type AllowedDocuments struct {
	OrderID int64          `json:"order_id"`
	Status  OrderStatus    `json:"status"`
	Kinds   []DocumentKind `json:"kinds"`
}

// Allows reports whether kind is part of the allowed set.
func (a AllowedDocuments) Allows(kind DocumentKind) bool {
	for _, k := range a.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// DocumentView is the renderer-independent content of a printable document.
type DocumentView struct {
	Kind            DocumentKind       `json:"kind"`
	OrderID         int64              `json:"order_id"`
	OrderStatus     OrderStatus        `json:"order_status"`
	InvoiceNumber   string             `json:"invoice_number,omitempty"`
	ClientRef       string             `json:"client_ref"`
	ClientName      string             `json:"client_name"`
	ClientAddress   string             `json:"client_address"`
	OrderDate       string             `json:"order_date"`
	Lines           []DocumentLineView `json:"lines"`
	Totals          Totals             `json:"totals"`
	Fees            []Fee              `json:"fees"`
	AmountPaid      decimal.Decimal    `json:"amount_paid"`
	AmountRemaining decimal.Decimal    `json:"amount_remaining"`
	Comment         string             `json:"comment"`
}

// DocumentLineView is one printed line; Quantity is either ordered or delivered
// depending on the document kind and order status.
type DocumentLineView struct {
	ArticleID    string          `json:"article_id"`
	ArticleLabel string          `json:"article_label"`
	Kind         ArticleKind     `json:"kind"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Amount       decimal.Decimal `json:"amount"`
}
