package app

// Amounts and quantities arrive as decimal strings so that adapters never round
// through float64. An empty string means zero.

// CreateOrderRequest is the input for creating a new proforma order.
type CreateOrderRequest struct {
	ClientRef       string
	OrderDate       string // YYYY-MM-DD; empty means today
	DiscountPercent string
	Fees            []FeeInput
	Comment         string
	Lines           []OrderLineInput
}

// ReplaceOrderRequest is the input for replacing the lines of an order.
type ReplaceOrderRequest struct {
	DiscountPercent string
	Fees            []FeeInput
	Comment         string
	Lines           []OrderLineInput
}

// OrderLineInput is a single line within a create or replace request.
// Only the field matching the article's kind is used for pricing.
type OrderLineInput struct {
	ArticleID string
	Quantity  string
	Days      string
	Hours     string
}

// FeeInput is an additive charge applied after the discount.
type FeeInput struct {
	Label  string
	Amount string
}

// DeliveryRequest is one partial-delivery submission.
type DeliveryRequest struct {
	Lines          []DeliveryLineInput
	AmountReceived string
	Comment        string
}

// DeliveryLineInput is the quantity delivered now for one article.
type DeliveryLineInput struct {
	ArticleID string
	Quantity  string
}
