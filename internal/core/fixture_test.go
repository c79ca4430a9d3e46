package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/core"
	"proforma/internal/store/memory"
)

const testCompany = "1000"

var fixedNow = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []core.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc       core.OrderService
	repo      *memory.Store
	catalog   *memory.Catalog
	clients   *memory.Clients
	publisher *recordingPublisher
	scope     core.Scope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      memory.NewStore(),
		catalog:   memory.NewCatalog(),
		clients:   memory.NewClients(),
		publisher: &recordingPublisher{},
		scope:     core.Scope{Company: testCompany, Actor: "tester", RequestID: "req-1"},
	}
	f.catalog.Add(testCompany, core.Article{ID: "A1", Label: "Folding chair", UnitPrice: dec("100"), Kind: core.ArticleUnit})
	f.catalog.Add(testCompany, core.Article{ID: "A2", Label: "Trestle table", UnitPrice: dec("50"), Kind: core.ArticleUnit})
	f.catalog.Add(testCompany, core.Article{ID: "D1", Label: "Stage rental", UnitPrice: dec("300"), Kind: core.ArticleDay})
	f.catalog.Add(testCompany, core.Article{ID: "H1", Label: "Technician", UnitPrice: dec("45.50"), Kind: core.ArticleHour})
	f.catalog.Add(testCompany, core.Article{ID: "Z0", Label: "Free sample", UnitPrice: decimal.Zero, Kind: core.ArticleUnit})
	f.clients.Add(testCompany, core.Client{Ref: "CL-01", Name: "Salle des fêtes", Address: "1 rue de la Mairie"})

	f.svc = core.NewOrderService(f.repo, f.catalog, f.clients,
		core.WithPublisher(f.publisher),
		core.WithClock(clock),
	)
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	msg := fmt.Sprintf("want %s, got %s", want, got)
	if len(msgAndArgs) > 0 {
		msg += " (" + fmt.Sprint(msgAndArgs...) + ")"
	}
	assert.True(t, dec(want).Equal(got), msg)
}

// scenarioA creates the two-line order: 10 × 100 and 5 × 50.
func (f *fixture) scenarioA(t *testing.T) *core.Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), f.scope, core.CreateOrderInput{
		ClientRef: "CL-01",
		Lines: []core.LineInput{
			{ArticleID: "A1", Quantity: dec("10")},
			{ArticleID: "A2", Quantity: dec("5")},
		},
	})
	require.NoError(t, err)
	return o
}

// scenarioB delivers line 1 in full with a 1000 payment.
func (f *fixture) scenarioB(t *testing.T) *core.Order {
	t.Helper()
	o := f.scenarioA(t)
	o, err := f.svc.ApplyPartialDelivery(context.Background(), f.scope, o.ID,
		[]core.LineDelta{{ArticleID: "A1", Quantity: dec("10")}}, dec("1000"), "first truck")
	require.NoError(t, err)
	return o
}

// scenarioC delivers line 2 with the remaining 250.
func (f *fixture) scenarioC(t *testing.T) *core.Order {
	t.Helper()
	o := f.scenarioB(t)
	o, err := f.svc.ApplyPartialDelivery(context.Background(), f.scope, o.ID,
		[]core.LineDelta{{ArticleID: "A2", Quantity: dec("5")}}, dec("250"), "second truck")
	require.NoError(t, err)
	return o
}

func line(t *testing.T, o *core.Order, articleID string) core.OrderLine {
	t.Helper()
	for _, l := range o.Lines {
		if l.ArticleID == articleID {
			return l
		}
	}
	t.Fatalf("order %d has no line for %s", o.ID, articleID)
	return core.OrderLine{}
}

var errBrokerDown = errors.New("broker down")
