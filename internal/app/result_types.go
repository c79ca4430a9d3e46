package app

import "proforma/internal/core"

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order *core.Order
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders      []core.Order
	CompanyCode string
}

// DocumentsResult is returned by GetAllowedDocuments.
type DocumentsResult struct {
	Allowed *core.AllowedDocuments
}

// DocumentResult is returned by GenerateDocument.
type DocumentResult struct {
	Document *core.DocumentView
}

// InvoiceResult is returned by GetInvoice.
type InvoiceResult struct {
	Invoice *core.Invoice
}

// DeliveryListResult is returned by ListDeliveries.
type DeliveryListResult struct {
	OrderID    int64
	Deliveries []core.DeliveryEvent
}
