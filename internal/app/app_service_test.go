package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/app"
	"proforma/internal/core"
	"proforma/internal/store/memory"
)

func newService(t *testing.T) (app.ApplicationService, app.Caller) {
	t.Helper()
	catalog := memory.NewCatalog()
	clients := memory.NewClients()
	memory.SeedDemo(catalog, clients, "1000")
	svc := app.NewAppService(core.NewOrderService(memory.NewStore(), catalog, clients))
	return svc, app.Caller{CompanyCode: "1000", Actor: "clerk", RequestID: "r-1"}
}

func createDemoOrder(t *testing.T, svc app.ApplicationService, caller app.Caller) *core.Order {
	t.Helper()
	res, err := svc.CreateOrder(context.Background(), caller, app.CreateOrderRequest{
		ClientRef:       "CL-01",
		OrderDate:       "2026-06-01",
		DiscountPercent: "5",
		Fees:            []app.FeeInput{{Label: "Delivery", Amount: "35.00"}},
		Lines: []app.OrderLineInput{
			{ArticleID: "CHAIR", Quantity: "100"},
			{ArticleID: "TENT", Days: "2"},
			{ArticleID: "TECH", Hours: "6"},
		},
	})
	require.NoError(t, err)
	return res.Order
}

func TestCreateOrderParsesDecimalStrings(t *testing.T) {
	svc, caller := newService(t)
	o := createDemoOrder(t, svc, caller)

	// 250 + 900 + 273 = 1423; 5% = 71.15; + 35
	assert.Equal(t, "1423", o.Subtotal.String())
	assert.Equal(t, "71.15", o.DiscountAmount.String())
	assert.Equal(t, "1386.85", o.Total.String())
	assert.Equal(t, core.StatusPending, o.Status)
	assert.Equal(t, "1000", o.CompanyCode)
}

func TestCreateOrderDefaultsOrderDateToToday(t *testing.T) {
	svc, caller := newService(t)
	res, err := svc.CreateOrder(context.Background(), caller, app.CreateOrderRequest{
		ClientRef: "CL-02",
		Lines:     []app.OrderLineInput{{ArticleID: "TABLE", Quantity: "3"}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Order.OrderDate, len("2006-01-02"))
}

func TestRequestParsingErrors(t *testing.T) {
	svc, caller := newService(t)
	ctx := context.Background()
	o := createDemoOrder(t, svc, caller)
	ref := "1"
	require.Equal(t, int64(1), o.ID)

	tests := []struct {
		name string
		call func() error
	}{
		{"bad discount", func() error {
			_, err := svc.CreateOrder(ctx, caller, app.CreateOrderRequest{
				ClientRef: "CL-01", DiscountPercent: "ten",
				Lines: []app.OrderLineInput{{ArticleID: "CHAIR", Quantity: "1"}},
			})
			return err
		}},
		{"bad fee amount", func() error {
			_, err := svc.CreateOrder(ctx, caller, app.CreateOrderRequest{
				ClientRef: "CL-01", Fees: []app.FeeInput{{Label: "x", Amount: "1,5"}},
				Lines: []app.OrderLineInput{{ArticleID: "CHAIR", Quantity: "1"}},
			})
			return err
		}},
		{"bad line hours", func() error {
			_, err := svc.ReplaceOrderLines(ctx, caller, ref, app.ReplaceOrderRequest{
				Lines: []app.OrderLineInput{{ArticleID: "TECH", Hours: "two"}},
			})
			return err
		}},
		{"bad amount received", func() error {
			_, err := svc.ApplyDelivery(ctx, caller, ref, app.DeliveryRequest{AmountReceived: "lots"})
			return err
		}},
		{"bad delivery quantity", func() error {
			_, err := svc.ApplyDelivery(ctx, caller, ref, app.DeliveryRequest{
				Lines: []app.DeliveryLineInput{{ArticleID: "CHAIR", Quantity: "?"}},
			})
			return err
		}},
		{"non numeric ref", func() error {
			_, err := svc.GetOrder(ctx, caller, "ORD-1")
			return err
		}},
		{"zero ref", func() error {
			_, err := svc.GetOrder(ctx, caller, "0")
			return err
		}},
		{"unknown status", func() error {
			_, err := svc.OverrideStatus(ctx, caller, ref, "cancelled")
			return err
		}},
		{"unknown document", func() error {
			_, err := svc.GenerateDocument(ctx, caller, ref, "receipt")
			return err
		}},
		{"missing company", func() error {
			_, err := svc.ListOrders(ctx, app.Caller{Actor: "clerk"}, nil)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
		})
	}
}

func TestDeliveryLifecycleThroughApplicationService(t *testing.T) {
	svc, caller := newService(t)
	ctx := context.Background()
	o := createDemoOrder(t, svc, caller)
	ref := "1"
	require.Equal(t, int64(1), o.ID)

	docs, err := svc.GetAllowedDocuments(ctx, caller, ref)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentKind{core.DocumentQuote}, docs.Allowed.Kinds)

	res, err := svc.ApplyDelivery(ctx, caller, ref, app.DeliveryRequest{
		Lines:          []app.DeliveryLineInput{{ArticleID: "CHAIR", Quantity: "100"}},
		AmountReceived: "500",
		Comment:        "chairs dropped off",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPartial, res.Order.Status)
	assert.Equal(t, "886.85", res.Order.AmountRemaining.String())

	doc, err := svc.GenerateDocument(ctx, caller, ref, "Delivery_Note")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentDeliveryNote, doc.Document.Kind)

	res, err = svc.ApplyDelivery(ctx, caller, ref, app.DeliveryRequest{
		Lines: []app.DeliveryLineInput{
			{ArticleID: "TENT", Quantity: "2"},
			{ArticleID: "TECH", Quantity: "6"},
		},
		AmountReceived: "886.85",
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Order.Status)

	inv, err := svc.GetInvoice(ctx, caller, ref)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceCompleted, inv.Invoice.Status)
	assert.Len(t, inv.Invoice.Lines, 3)

	hist, err := svc.ListDeliveries(ctx, caller, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hist.OrderID)
	require.Len(t, hist.Deliveries, 2)
	assert.Equal(t, "clerk", hist.Deliveries[0].Actor)

	err = svc.DeleteOrder(ctx, caller, ref)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func TestListOrdersAndOverride(t *testing.T) {
	svc, caller := newService(t)
	ctx := context.Background()
	createDemoOrder(t, svc, caller)
	createDemoOrder(t, svc, caller)

	res, err := svc.OverrideStatus(ctx, caller, "2", " IN_PROGRESS ")
	require.NoError(t, err)
	assert.Equal(t, core.StatusInProgress, res.Order.Status)

	status := "in_progress"
	list, err := svc.ListOrders(ctx, caller, &status)
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, int64(2), list.Orders[0].ID)
	assert.Equal(t, "1000", list.CompanyCode)

	empty := ""
	list, err = svc.ListOrders(ctx, caller, &empty)
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)

	other := app.Caller{CompanyCode: "2000"}
	_, err = svc.GetOrder(ctx, other, "1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReplaceAndDeleteThroughApplicationService(t *testing.T) {
	svc, caller := newService(t)
	ctx := context.Background()
	createDemoOrder(t, svc, caller)

	res, err := svc.ReplaceOrderLines(ctx, caller, "1", app.ReplaceOrderRequest{
		Lines: []app.OrderLineInput{{ArticleID: "STAGE", Days: "1.5"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "450", res.Order.Total.String())
	require.Len(t, res.Order.Lines, 1)

	require.NoError(t, svc.DeleteOrder(ctx, caller, "1"))
	_, err = svc.GetOrder(ctx, caller, "1")
	assert.Equal(t, core.KindNotFound, core.KindOf(err))
}
