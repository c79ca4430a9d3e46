// Package memory is an in-process core.Repository. Transactions stage their writes on
// private copies and validate every version they wrote against at commit, so two
// overlapping fulfillment transactions behave the way they do against PostgreSQL.
// Document sequences are settled at commit: numbers drawn by a transaction are shifted
// past anything committed in the meantime, which keeps them gapless without making
// unrelated orders conflict.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"proforma/internal/core"
)

type Store struct {
	mu sync.Mutex

	lastOrderID   int64
	lastEventID   int64
	lastInvoiceID int64

	orders    map[int64]*core.Order
	events    map[int64][]core.DeliveryEvent
	invoices  map[int64]*core.Invoice // keyed by order ID
	sequences map[string]int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		orders:    make(map[int64]*core.Order),
		events:    make(map[int64][]core.DeliveryEvent),
		invoices:  make(map[int64]*core.Invoice),
		sequences: make(map[string]int64),
	}
}

func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		s:        s,
		orders:   make(map[int64]*core.Order),
		invoices: make(map[int64]*core.Invoice),
		inserted: make(map[int64]*core.Invoice),
		baseline: make(map[int64]int64),
		seqs:     make(map[string]*sequenceDraw),
	}, nil
}

type tx struct {
	s    *Store
	done bool

	// staged writes; a nil order marks a deletion
	orders   map[int64]*core.Order
	invoices map[int64]*core.Invoice
	events   []core.DeliveryEvent
	seqs     map[string]*sequenceDraw

	// caller-owned invoices passed to InsertInvoice, renumbered in place at commit
	inserted map[int64]*core.Invoice

	// live versions this transaction based its writes on
	baseline map[int64]int64
}

// sequenceDraw is the run of values base+1..last a transaction took from one sequence.
type sequenceDraw struct {
	typeCode string
	year     int
	base     int64
	last     int64
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("transaction already closed")
	}
	t.done = true

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for id, version := range t.baseline {
		live, ok := t.s.orders[id]
		if !ok || live.Version != version {
			return fmt.Errorf("%w: order %d was modified by another transaction", core.ErrConcurrencyConflict, id)
		}
	}
	for key, d := range t.seqs {
		if shift := t.s.sequences[key] - d.base; shift > 0 {
			t.renumber(d, shift)
		}
	}

	for id, o := range t.orders {
		if o == nil {
			delete(t.s.orders, id)
			continue
		}
		t.s.orders[id] = cloneOrder(o)
	}
	for orderID, inv := range t.invoices {
		t.s.invoices[orderID] = cloneInvoice(inv)
	}
	for _, e := range t.events {
		t.s.events[e.OrderID] = append(t.s.events[e.OrderID], cloneEvent(e))
	}
	for key, d := range t.seqs {
		t.s.sequences[key] += d.last - d.base
	}
	return nil
}

// renumber moves the document numbers this transaction drew past values another
// transaction committed after it first read the sequence.
func (t *tx) renumber(d *sequenceDraw, shift int64) {
	moved := make(map[string]string, d.last-d.base)
	for n := d.base + 1; n <= d.last; n++ {
		moved[core.FormatDocumentNumber(d.typeCode, d.year, n)] = core.FormatDocumentNumber(d.typeCode, d.year, n+shift)
	}
	for orderID, orig := range t.inserted {
		staged := t.invoices[orderID]
		if staged == nil {
			continue
		}
		to, ok := moved[staged.InvoiceNumber]
		if !ok {
			continue
		}
		staged.InvoiceNumber = to
		orig.InvoiceNumber = to
	}
}

func (t *tx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}

// current returns the order as this transaction sees it, and whether it came from the live map.
func (t *tx) current(orderID int64) (*core.Order, bool) {
	if o, ok := t.orders[orderID]; ok {
		return o, false
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	o, ok := t.s.orders[orderID]
	if !ok {
		return nil, false
	}
	return cloneOrder(o), true
}

func (t *tx) InsertOrder(ctx context.Context, o *core.Order) (int64, error) {
	t.s.mu.Lock()
	t.s.lastOrderID++
	id := t.s.lastOrderID
	t.s.mu.Unlock()

	staged := cloneOrder(o)
	staged.ID = id
	t.orders[id] = staged
	return id, nil
}

func (t *tx) SelectOrder(ctx context.Context, orderID int64) (*core.Order, error) {
	o, _ := t.current(orderID)
	if o == nil {
		return nil, fmt.Errorf("%w: order %d", core.ErrNotFound, orderID)
	}
	return cloneOrder(o), nil
}

func (t *tx) SelectOrders(ctx context.Context, company string, status *core.OrderStatus) ([]core.Order, error) {
	t.s.mu.Lock()
	merged := make(map[int64]*core.Order, len(t.s.orders))
	for id, o := range t.s.orders {
		merged[id] = o
	}
	t.s.mu.Unlock()
	for id, o := range t.orders {
		merged[id] = o
	}

	var orders []core.Order
	for _, o := range merged {
		if o == nil || (company != "" && o.CompanyCode != company) {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		orders = append(orders, *cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

func (t *tx) ReplaceOrder(ctx context.Context, o *core.Order) (bool, error) {
	cur, live := t.current(o.ID)
	if cur == nil || cur.Version != o.Version {
		return false, nil
	}
	t.track(o.ID, cur.Version, live)
	staged := cloneOrder(o)
	staged.Version = o.Version + 1
	t.orders[o.ID] = staged
	return true, nil
}

func (t *tx) DeleteOrder(ctx context.Context, orderID, version int64) (bool, error) {
	cur, live := t.current(orderID)
	if cur == nil || cur.Version != version {
		return false, nil
	}
	// invoices and delivery events are never removed with their order
	if inv, _ := t.SelectInvoiceByOrder(ctx, orderID); inv != nil {
		return false, fmt.Errorf("%w: order %d is billed on invoice %s", core.ErrInvalidStateTransition, orderID, inv.InvoiceNumber)
	}
	if events, _ := t.SelectDeliveryEvents(ctx, orderID); len(events) > 0 {
		return false, fmt.Errorf("%w: order %d has delivery history", core.ErrInvalidStateTransition, orderID)
	}
	t.track(orderID, cur.Version, live)
	t.orders[orderID] = nil
	return true, nil
}

func (t *tx) UpdateFulfillment(ctx context.Context, o *core.Order, expected core.OrderStatus) (bool, error) {
	cur, live := t.current(o.ID)
	if cur == nil || cur.Status != expected || cur.Version != o.Version {
		return false, nil
	}
	t.track(o.ID, cur.Version, live)
	staged := cloneOrder(o)
	staged.Version = o.Version + 1
	t.orders[o.ID] = staged
	return true, nil
}

func (t *tx) track(orderID, version int64, live bool) {
	if _, seen := t.baseline[orderID]; seen || !live {
		return
	}
	t.baseline[orderID] = version
}

func (t *tx) InsertDeliveryEvent(ctx context.Context, e *core.DeliveryEvent) (int64, error) {
	t.s.mu.Lock()
	t.s.lastEventID++
	id := t.s.lastEventID
	t.s.mu.Unlock()

	staged := cloneEvent(*e)
	staged.ID = id
	t.events = append(t.events, staged)
	return id, nil
}

func (t *tx) SelectDeliveryEvents(ctx context.Context, orderID int64) ([]core.DeliveryEvent, error) {
	var events []core.DeliveryEvent
	if o, ok := t.orders[orderID]; !ok || o != nil {
		t.s.mu.Lock()
		for _, e := range t.s.events[orderID] {
			events = append(events, cloneEvent(e))
		}
		t.s.mu.Unlock()
	}
	for _, e := range t.events {
		if e.OrderID == orderID {
			events = append(events, cloneEvent(e))
		}
	}
	return events, nil
}

func (t *tx) SelectInvoiceByOrder(ctx context.Context, orderID int64) (*core.Invoice, error) {
	if inv, ok := t.invoices[orderID]; ok {
		return cloneInvoice(inv), nil
	}
	if o, ok := t.orders[orderID]; ok && o == nil {
		return nil, fmt.Errorf("%w: invoice for order %d", core.ErrNotFound, orderID)
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	inv, ok := t.s.invoices[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: invoice for order %d", core.ErrNotFound, orderID)
	}
	return cloneInvoice(inv), nil
}

func (t *tx) InsertInvoice(ctx context.Context, inv *core.Invoice) (int64, error) {
	t.s.mu.Lock()
	t.s.lastInvoiceID++
	id := t.s.lastInvoiceID
	t.s.mu.Unlock()

	staged := cloneInvoice(inv)
	staged.ID = id
	t.invoices[inv.OrderID] = staged
	t.inserted[inv.OrderID] = inv
	return id, nil
}

func (t *tx) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	t.invoices[inv.OrderID] = cloneInvoice(inv)
	return nil
}

func (t *tx) NextSequence(ctx context.Context, typeCode string, year int) (int64, error) {
	key := fmt.Sprintf("%s/%d", typeCode, year)
	d, ok := t.seqs[key]
	if !ok {
		t.s.mu.Lock()
		base := t.s.sequences[key]
		t.s.mu.Unlock()
		d = &sequenceDraw{typeCode: typeCode, year: year, base: base, last: base}
		t.seqs[key] = d
	}
	d.last++
	return d.last, nil
}

func cloneOrder(o *core.Order) *core.Order {
	c := *o
	c.Lines = append([]core.OrderLine(nil), o.Lines...)
	c.Fees = append([]core.Fee(nil), o.Fees...)
	return &c
}

func cloneInvoice(inv *core.Invoice) *core.Invoice {
	c := *inv
	c.Lines = append([]core.InvoiceLine(nil), inv.Lines...)
	return &c
}

func cloneEvent(e core.DeliveryEvent) core.DeliveryEvent {
	e.Deltas = append([]core.LineDelta(nil), e.Deltas...)
	return e
}
