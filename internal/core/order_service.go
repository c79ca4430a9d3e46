package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OrderService manages the proforma order lifecycle: creation and editing, partial deliveries
// with payment reconciliation, progressive invoicing and document authorization.
type OrderService interface {
	// Order lifecycle
	CreateOrder(ctx context.Context, scope Scope, in CreateOrderInput) (*Order, error)
	// ReplaceOrderLines wholesale-replaces lines, discount, fees and comment of a pending
	// or in-progress order and recomputes its totals.
	ReplaceOrderLines(ctx context.Context, scope Scope, orderID int64, in ReplaceOrderInput) (*Order, error)
	DeleteOrder(ctx context.Context, scope Scope, orderID int64) error
	// ApplyPartialDelivery records delivered quantities and a payment, auto-completing the
	// order once every line is delivered and nothing remains to be paid.
	ApplyPartialDelivery(ctx context.Context, scope Scope, orderID int64, deltas []LineDelta, amountReceived decimal.Decimal, comment string) (*Order, error)
	// OverrideStatus is an operator correction guarded by the state machine.
	OverrideStatus(ctx context.Context, scope Scope, orderID int64, target OrderStatus) (*Order, error)

	// Documents
	GetAllowedDocuments(ctx context.Context, scope Scope, orderID int64) (*AllowedDocuments, error)
	GenerateDocument(ctx context.Context, scope Scope, orderID int64, kind DocumentKind) (*DocumentView, error)

	// Queries
	GetOrder(ctx context.Context, scope Scope, orderID int64) (*Order, error)
	GetOrders(ctx context.Context, scope Scope, status *OrderStatus) ([]Order, error)
	GetInvoice(ctx context.Context, scope Scope, orderID int64) (*Invoice, error)
	GetDeliveries(ctx context.Context, scope Scope, orderID int64) ([]DeliveryEvent, error)
}

type orderService struct {
	repo      Repository
	catalog   Catalog
	clients   ClientDirectory
	publisher EventPublisher
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	store     *OrderStore
	processor *FulfillmentProcessor
}

// Option customises an OrderService.
type Option func(*orderService)

// WithPublisher sets the lifecycle event publisher. The default discards events.
func WithPublisher(p EventPublisher) Option {
	return func(s *orderService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithLogger sets the service logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *orderService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *orderService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewOrderService wires the order lifecycle over a transactional repository and the
// read-only catalog and client registries.
func NewOrderService(repo Repository, catalog Catalog, clients ClientDirectory, opts ...Option) OrderService {
	s := &orderService{
		repo:      repo,
		catalog:   catalog,
		clients:   clients,
		publisher: nopPublisher{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("proforma/internal/core"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = NewOrderStore(s.now)
	s.processor = NewFulfillmentProcessor(s.store, NewInvoiceAccumulator(s.now), s.now)
	return s
}

// ── Order Lifecycle ──────────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, scope Scope, in CreateOrderInput) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "CreateOrder", scope)
	defer func() { endSpan(span, err) }()

	if in.ClientRef == "" {
		return nil, fmt.Errorf("%w: client reference is required", ErrValidation)
	}
	if in.OrderDate != "" {
		if _, err := time.Parse("2006-01-02", in.OrderDate); err != nil {
			return nil, fmt.Errorf("%w: order date %q is not YYYY-MM-DD", ErrValidation, in.OrderDate)
		}
	}
	if err := validateHeader(in.DiscountPercent, in.Fees); err != nil {
		return nil, err
	}
	if err := validateLineInputs(in.Lines); err != nil {
		return nil, err
	}

	client, err := s.clients.LookupClient(ctx, scope, in.ClientRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve client %s: %w", in.ClientRef, err)
	}
	lines, err := s.resolveLines(ctx, scope, in.Lines)
	if err != nil {
		return nil, err
	}
	totals, err := computeOrderLines(lines, in.DiscountPercent, in.Fees)
	if err != nil {
		return nil, err
	}

	orderDate := in.OrderDate
	if orderDate == "" {
		orderDate = s.now().Format("2006-01-02")
	}
	o := &Order{
		CompanyCode:     scope.Company,
		ClientRef:       client.Ref,
		ClientName:      client.Name,
		ClientAddress:   client.Address,
		OrderDate:       orderDate,
		DiscountPercent: in.DiscountPercent,
		Fees:            in.Fees,
		Comment:         in.Comment,
		Lines:           lines,
	}
	o.applyTotals(totals)

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderID, err := s.store.Create(ctx, tx, o)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}

	s.logger.Info("order created",
		zap.Int64("order_id", orderID),
		zap.String("client_ref", o.ClientRef),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("request_id", scope.RequestID),
	)
	s.publish(ctx, scope, Event{Type: EventOrderCreated, OrderID: orderID, Status: o.Status, Total: o.Total, AmountPaid: o.AmountPaid})

	return s.GetOrder(ctx, scope, orderID)
}

func (s *orderService) ReplaceOrderLines(ctx context.Context, scope Scope, orderID int64, in ReplaceOrderInput) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "ReplaceOrderLines", scope, attribute.Int64("order.id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validateHeader(in.DiscountPercent, in.Fees); err != nil {
		return nil, err
	}
	if err := validateLineInputs(in.Lines); err != nil {
		return nil, err
	}
	lines, err := s.resolveLines(ctx, scope, in.Lines)
	if err != nil {
		return nil, err
	}
	if _, err := computeOrderLines(lines, in.DiscountPercent, in.Fees); err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := s.store.Get(ctx, tx, scope, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.store.ReplaceLines(ctx, tx, o, lines, in.DiscountPercent, in.Fees, in.Comment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit line replacement: %w", err)
	}

	s.publish(ctx, scope, Event{Type: EventLinesReplaced, OrderID: o.ID, Status: o.Status, Total: o.Total, AmountPaid: o.AmountPaid})
	return o, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, scope Scope, orderID int64) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteOrder", scope, attribute.Int64("order.id", orderID))
	defer func() { endSpan(span, err) }()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := s.store.Get(ctx, tx, scope, orderID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, tx, o); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order deletion: %w", err)
	}

	s.logger.Info("order deleted", zap.Int64("order_id", orderID), zap.String("request_id", scope.RequestID))
	s.publish(ctx, scope, Event{Type: EventOrderDeleted, OrderID: orderID, PreviousStatus: o.Status, Total: o.Total, AmountPaid: o.AmountPaid})
	return nil
}

func (s *orderService) ApplyPartialDelivery(ctx context.Context, scope Scope, orderID int64, deltas []LineDelta, amountReceived decimal.Decimal, comment string) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "ApplyPartialDelivery", scope, attribute.Int64("order.id", orderID))
	defer func() { endSpan(span, err) }()

	if err := validateDelivery(orderID, deltas, amountReceived); err != nil {
		return nil, err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := s.processor.Apply(ctx, tx, scope, orderID, deltas, amountReceived, comment)
	if err != nil {
		if KindOf(err) == KindConcurrency {
			s.logger.Warn("delivery rejected by concurrent update",
				zap.Int64("order_id", orderID), zap.String("request_id", scope.RequestID), zap.Error(err))
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delivery for order %d: %w", orderID, err)
	}

	o := res.Order
	s.logger.Info("delivery applied",
		zap.Int64("order_id", o.ID),
		zap.String("previous_status", string(res.PreviousStatus)),
		zap.String("status", string(o.Status)),
		zap.String("amount_paid", o.AmountPaid.StringFixed(2)),
		zap.String("amount_remaining", o.AmountRemaining.StringFixed(2)),
		zap.String("invoice_number", res.Invoice.InvoiceNumber),
		zap.String("request_id", scope.RequestID),
	)
	s.publish(ctx, scope, Event{
		Type:           EventDeliveryApplied,
		OrderID:        o.ID,
		PreviousStatus: res.PreviousStatus,
		Status:         o.Status,
		Total:          o.Total,
		AmountPaid:     o.AmountPaid,
		InvoiceNumber:  res.Invoice.InvoiceNumber,
	})
	return o, nil
}

func (s *orderService) OverrideStatus(ctx context.Context, scope Scope, orderID int64, target OrderStatus) (_ *Order, err error) {
	ctx, span := s.startSpan(ctx, "OverrideStatus", scope, attribute.Int64("order.id", orderID), attribute.String("order.target_status", string(target)))
	defer func() { endSpan(span, err) }()

	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, target)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := s.store.Get(ctx, tx, scope, orderID)
	if err != nil {
		return nil, err
	}
	if err := validateOverride(o, target); err != nil {
		return nil, err
	}
	previous := o.Status
	if previous == target {
		return o, nil
	}
	if err := s.store.SetStatus(ctx, tx, o, target); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit status override: %w", err)
	}

	s.logger.Info("order status overridden",
		zap.Int64("order_id", o.ID),
		zap.String("previous_status", string(previous)),
		zap.String("status", string(o.Status)),
		zap.String("actor", scope.Actor),
		zap.String("request_id", scope.RequestID),
	)
	s.publish(ctx, scope, Event{Type: EventStatusOverridden, OrderID: o.ID, PreviousStatus: previous, Status: o.Status, Total: o.Total, AmountPaid: o.AmountPaid})
	return o, nil
}

// ── Documents ────────────────────────────────────────────────────────────────

func (s *orderService) GetAllowedDocuments(ctx context.Context, scope Scope, orderID int64) (*AllowedDocuments, error) {
	o, err := s.GetOrder(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}
	allowed := AllowedDocumentsFor(o)
	return &allowed, nil
}

func (s *orderService) GenerateDocument(ctx context.Context, scope Scope, orderID int64, kind DocumentKind) (*DocumentView, error) {
	var view *DocumentView
	err := s.read(ctx, func(tx Tx) error {
		o, err := s.store.Get(ctx, tx, scope, orderID)
		if err != nil {
			return err
		}
		inv, err := tx.SelectInvoiceByOrder(ctx, o.ID)
		if err != nil && KindOf(err) != KindNotFound {
			return fmt.Errorf("failed to load invoice for order %d: %w", o.ID, err)
		}
		view, err = BuildDocumentView(o, inv, kind)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (s *orderService) GetOrder(ctx context.Context, scope Scope, orderID int64) (*Order, error) {
	var o *Order
	err := s.read(ctx, func(tx Tx) error {
		var err error
		o, err = s.store.Get(ctx, tx, scope, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *orderService) GetOrders(ctx context.Context, scope Scope, status *OrderStatus) ([]Order, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", ErrValidation, *status)
	}
	var orders []Order
	err := s.read(ctx, func(tx Tx) error {
		var err error
		orders, err = tx.SelectOrders(ctx, scope.Company, status)
		if err != nil {
			return fmt.Errorf("failed to query orders: %w", err)
		}
		return nil
	})
	return orders, err
}

func (s *orderService) GetInvoice(ctx context.Context, scope Scope, orderID int64) (*Invoice, error) {
	var inv *Invoice
	err := s.read(ctx, func(tx Tx) error {
		if _, err := s.store.Get(ctx, tx, scope, orderID); err != nil {
			return err
		}
		var err error
		inv, err = tx.SelectInvoiceByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *orderService) GetDeliveries(ctx context.Context, scope Scope, orderID int64) ([]DeliveryEvent, error) {
	var events []DeliveryEvent
	err := s.read(ctx, func(tx Tx) error {
		if _, err := s.store.Get(ctx, tx, scope, orderID); err != nil {
			return err
		}
		var err error
		events, err = tx.SelectDeliveryEvents(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to query deliveries of order %d: %w", orderID, err)
		}
		return nil
	})
	return events, err
}

// ── private helpers ──────────────────────────────────────────────────────────

// read runs fn in a transaction that is always rolled back.
func (s *orderService) read(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)
	return fn(tx)
}

// resolveLines captures catalog prices and kinds into order lines.
func (s *orderService) resolveLines(ctx context.Context, scope Scope, inputs []LineInput) ([]OrderLine, error) {
	lines := make([]OrderLine, 0, len(inputs))
	for i, in := range inputs {
		art, err := s.catalog.LookupArticle(ctx, scope, in.ArticleID)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to resolve article %s: %w", i+1, in.ArticleID, err)
		}
		qty, err := art.Kind.EffectiveQuantity(in)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, OrderLine{
			ArticleID:       art.ID,
			ArticleLabel:    art.Label,
			Kind:            art.Kind,
			UnitPrice:       art.UnitPrice,
			Quantity:        in.Quantity,
			Days:            in.Days,
			Hours:           in.Hours,
			OrderedQuantity: qty,
		})
	}
	return lines, nil
}

func (s *orderService) publish(ctx context.Context, scope Scope, e Event) {
	e.Company = scope.Company
	e.Actor = scope.Actor
	e.RequestID = scope.RequestID
	e.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Error("failed to publish order event",
			zap.String("type", string(e.Type)), zap.Int64("order_id", e.OrderID), zap.Error(err))
	}
}

func (s *orderService) startSpan(ctx context.Context, name string, scope Scope, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("company", scope.Company))
	return s.tracer.Start(ctx, "OrderService."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
	}
	span.End()
}

func validateHeader(discountPercent decimal.Decimal, fees []Fee) error {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount percent %s outside [0,100]", ErrValidation, discountPercent)
	}
	for _, f := range fees {
		if f.Amount.IsNegative() {
			return fmt.Errorf("%w: fee %q must not be negative", ErrValidation, f.Label)
		}
	}
	return nil
}

func validateLineInputs(lines []LineInput) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: order must have at least one line", ErrValidation)
	}
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		if l.ArticleID == "" {
			return fmt.Errorf("%w: line %d: article id is required", ErrValidation, i+1)
		}
		if seen[l.ArticleID] {
			return fmt.Errorf("%w: article %s appears on more than one line", ErrValidation, l.ArticleID)
		}
		seen[l.ArticleID] = true
	}
	return nil
}
