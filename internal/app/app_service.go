package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"proforma/internal/core"
)

type appService struct {
	orderService core.OrderService
	now          func() time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(orderService core.OrderService) ApplicationService {
	return &appService{orderService: orderService, now: time.Now}
}

// CreateOrder creates a new pending order.
func (s *appService) CreateOrder(ctx context.Context, caller Caller, req CreateOrderRequest) (*OrderResult, error) {
	scope, err := caller.scope()
	if err != nil {
		return nil, err
	}
	discount, err := parseDecimal("discount_percent", req.DiscountPercent)
	if err != nil {
		return nil, err
	}
	fees, err := parseFees(req.Fees)
	if err != nil {
		return nil, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}

	orderDate := req.OrderDate
	if orderDate == "" {
		orderDate = s.now().Format("2006-01-02")
	}

	order, err := s.orderService.CreateOrder(ctx, scope, core.CreateOrderInput{
		ClientRef:       strings.TrimSpace(req.ClientRef),
		OrderDate:       orderDate,
		DiscountPercent: discount,
		Fees:            fees,
		Comment:         req.Comment,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// ReplaceOrderLines replaces the editable parts of an order.
func (s *appService) ReplaceOrderLines(ctx context.Context, caller Caller, ref string, req ReplaceOrderRequest) (*OrderResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	discount, err := parseDecimal("discount_percent", req.DiscountPercent)
	if err != nil {
		return nil, err
	}
	fees, err := parseFees(req.Fees)
	if err != nil {
		return nil, err
	}
	lines, err := parseLines(req.Lines)
	if err != nil {
		return nil, err
	}

	order, err := s.orderService.ReplaceOrderLines(ctx, scope, id, core.ReplaceOrderInput{
		DiscountPercent: discount,
		Fees:            fees,
		Comment:         req.Comment,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// DeleteOrder removes an order that has not started fulfillment.
func (s *appService) DeleteOrder(ctx context.Context, caller Caller, ref string) error {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return err
	}
	return s.orderService.DeleteOrder(ctx, scope, id)
}

// ApplyDelivery records delivered quantities and a payment against an order.
func (s *appService) ApplyDelivery(ctx context.Context, caller Caller, ref string, req DeliveryRequest) (*OrderResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal("amount_received", req.AmountReceived)
	if err != nil {
		return nil, err
	}

	deltas := make([]core.LineDelta, 0, len(req.Lines))
	for i, l := range req.Lines {
		qty, err := parseDecimal(fmt.Sprintf("lines[%d].quantity", i), l.Quantity)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, core.LineDelta{ArticleID: strings.TrimSpace(l.ArticleID), Quantity: qty})
	}

	order, err := s.orderService.ApplyPartialDelivery(ctx, scope, id, deltas, amount, req.Comment)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// OverrideStatus forces an order into the given status.
func (s *appService) OverrideStatus(ctx context.Context, caller Caller, ref, status string) (*OrderResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	target, err := core.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, err
	}
	order, err := s.orderService.OverrideStatus(ctx, scope, id, target)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// GetAllowedDocuments returns the printable documents for an order.
func (s *appService) GetAllowedDocuments(ctx context.Context, caller Caller, ref string) (*DocumentsResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	allowed, err := s.orderService.GetAllowedDocuments(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return &DocumentsResult{Allowed: allowed}, nil
}

// GenerateDocument builds one printable document.
func (s *appService) GenerateDocument(ctx context.Context, caller Caller, ref, kind string) (*DocumentResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	k, err := core.ParseDocumentKind(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return nil, err
	}
	view, err := s.orderService.GenerateDocument(ctx, scope, id, k)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Document: view}, nil
}

// GetOrder returns a single order.
func (s *appService) GetOrder(ctx context.Context, caller Caller, ref string) (*OrderResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	order, err := s.orderService.GetOrder(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return &OrderResult{Order: order}, nil
}

// ListOrders returns orders for the caller's company, optionally filtered by status.
func (s *appService) ListOrders(ctx context.Context, caller Caller, status *string) (*OrderListResult, error) {
	scope, err := caller.scope()
	if err != nil {
		return nil, err
	}
	var filter *core.OrderStatus
	if status != nil && *status != "" {
		st, err := core.ParseOrderStatus(strings.ToLower(*status))
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	orders, err := s.orderService.GetOrders(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	return &OrderListResult{Orders: orders, CompanyCode: scope.Company}, nil
}

// GetInvoice returns the progressive invoice of an order.
func (s *appService) GetInvoice(ctx context.Context, caller Caller, ref string) (*InvoiceResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	inv, err := s.orderService.GetInvoice(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv}, nil
}

// ListDeliveries returns the delivery events of an order.
func (s *appService) ListDeliveries(ctx context.Context, caller Caller, ref string) (*DeliveryListResult, error) {
	scope, id, err := s.resolve(caller, ref)
	if err != nil {
		return nil, err
	}
	events, err := s.orderService.GetDeliveries(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return &DeliveryListResult{OrderID: id, Deliveries: events}, nil
}

// resolve builds the core scope and parses the order reference.
func (s *appService) resolve(caller Caller, ref string) (core.Scope, int64, error) {
	scope, err := caller.scope()
	if err != nil {
		return core.Scope{}, 0, err
	}
	id, err := ParseOrderRef(ref)
	if err != nil {
		return core.Scope{}, 0, err
	}
	return scope, id, nil
}

func (c Caller) scope() (core.Scope, error) {
	company := strings.TrimSpace(c.CompanyCode)
	if company == "" {
		return core.Scope{}, fmt.Errorf("%w: company code is required", core.ErrValidation)
	}
	actor := strings.TrimSpace(c.Actor)
	if actor == "" {
		actor = "system"
	}
	return core.Scope{Company: company, Actor: actor, RequestID: c.RequestID}, nil
}

// ParseOrderRef parses a user-supplied order reference into an order ID.
func ParseOrderRef(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid order reference %q", core.ErrValidation, ref)
	}
	return id, nil
}

func parseDecimal(field, v string) (decimal.Decimal, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number: %q", core.ErrValidation, field, v)
	}
	return d, nil
}

func parseFees(in []FeeInput) ([]core.Fee, error) {
	fees := make([]core.Fee, 0, len(in))
	for i, f := range in {
		amount, err := parseDecimal(fmt.Sprintf("fees[%d].amount", i), f.Amount)
		if err != nil {
			return nil, err
		}
		fees = append(fees, core.Fee{Label: strings.TrimSpace(f.Label), Amount: amount})
	}
	return fees, nil
}

func parseLines(in []OrderLineInput) ([]core.LineInput, error) {
	lines := make([]core.LineInput, 0, len(in))
	for i, l := range in {
		qty, err := parseDecimal(fmt.Sprintf("lines[%d].quantity", i), l.Quantity)
		if err != nil {
			return nil, err
		}
		days, err := parseDecimal(fmt.Sprintf("lines[%d].days", i), l.Days)
		if err != nil {
			return nil, err
		}
		hours, err := parseDecimal(fmt.Sprintf("lines[%d].hours", i), l.Hours)
		if err != nil {
			return nil, err
		}
		lines = append(lines, core.LineInput{
			ArticleID: strings.TrimSpace(l.ArticleID),
			Quantity:  qty,
			Days:      days,
			Hours:     hours,
		})
	}
	return lines, nil
}
