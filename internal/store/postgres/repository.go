// Package postgres implements core.Repository, core.Catalog and core.ClientDirectory on pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"proforma/internal/core"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

const orderColumns = `
	id, company_code, client_ref, client_name, client_address, order_date, discount_percent, fees, comment,
	status, subtotal, discount_amount, fees_total, total, amount_paid, amount_remaining, version,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*core.Order, error) {
	var o core.Order
	var orderDate time.Time
	var fees []byte
	err := row.Scan(
		&o.ID, &o.CompanyCode, &o.ClientRef, &o.ClientName, &o.ClientAddress, &orderDate,
		&o.DiscountPercent, &fees, &o.Comment, &o.Status,
		&o.Subtotal, &o.DiscountAmount, &o.FeesTotal, &o.Total, &o.AmountPaid, &o.AmountRemaining,
		&o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.OrderDate = orderDate.Format("2006-01-02")
	if err := json.Unmarshal(fees, &o.Fees); err != nil {
		return nil, fmt.Errorf("failed to decode fees of order %d: %w", o.ID, err)
	}
	return &o, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *core.Order) (int64, error) {
	orderDate, err := time.Parse("2006-01-02", o.OrderDate)
	if err != nil {
		return 0, fmt.Errorf("invalid order date %q: %w", o.OrderDate, err)
	}
	fees, err := marshalFees(o.Fees)
	if err != nil {
		return 0, err
	}

	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO orders (company_code, client_ref, client_name, client_address, order_date, discount_percent,
			fees, comment, status, subtotal, discount_amount, fees_total, total, amount_paid, amount_remaining,
			version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id
	`, o.CompanyCode, o.ClientRef, o.ClientName, o.ClientAddress, orderDate, o.DiscountPercent,
		fees, o.Comment, string(o.Status), o.Subtotal, o.DiscountAmount, o.FeesTotal, o.Total,
		o.AmountPaid, o.AmountRemaining, o.Version, o.CreatedAt, o.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order header: %w", err)
	}

	if err := t.insertLines(ctx, id, o.Lines); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *pgTx) insertLines(ctx context.Context, orderID int64, lines []core.OrderLine) error {
	for _, l := range lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, line_number, article_id, article_label, kind, unit_price,
				quantity, days, hours, ordered_quantity, delivered_quantity, delivery_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, orderID, l.LineNumber, l.ArticleID, l.ArticleLabel, string(l.Kind), l.UnitPrice,
			l.Quantity, l.Days, l.Hours, l.OrderedQuantity, l.DeliveredQuantity, string(l.DeliveryStatus))
		if err != nil {
			return fmt.Errorf("failed to insert line %d: %w", l.LineNumber, err)
		}
	}
	return nil
}

func (t *pgTx) SelectOrder(ctx context.Context, orderID int64) (*core.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: order %d", core.ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}

	lines, err := t.selectLines(ctx, []int64{orderID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[orderID]
	return o, nil
}

func (t *pgTx) SelectOrders(ctx context.Context, company string, status *core.OrderStatus) ([]core.Order, error) {
	var statusFilter *string
	if status != nil {
		s := string(*status)
		statusFilter = &s
	}
	rows, err := t.tx.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR company_code = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY id
	`, company, statusFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []core.Order
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := t.selectLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (t *pgTx) selectLines(ctx context.Context, orderIDs []int64) (map[int64][]core.OrderLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT order_id, line_number, article_id, article_label, kind, unit_price, quantity, days, hours,
		       ordered_quantity, delivered_quantity, delivery_status
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY order_id, line_number
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]core.OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var l core.OrderLine
		if err := rows.Scan(&orderID, &l.LineNumber, &l.ArticleID, &l.ArticleLabel, &l.Kind, &l.UnitPrice,
			&l.Quantity, &l.Days, &l.Hours, &l.OrderedQuantity, &l.DeliveredQuantity, &l.DeliveryStatus); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		byOrder[orderID] = append(byOrder[orderID], l)
	}
	return byOrder, rows.Err()
}

func (t *pgTx) ReplaceOrder(ctx context.Context, o *core.Order) (bool, error) {
	fees, err := marshalFees(o.Fees)
	if err != nil {
		return false, err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET discount_percent = $3, fees = $4, comment = $5, subtotal = $6, discount_amount = $7,
		    fees_total = $8, total = $9, amount_remaining = $10, updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $2
	`, o.ID, o.Version, o.DiscountPercent, fees, o.Comment, o.Subtotal, o.DiscountAmount,
		o.FeesTotal, o.Total, o.AmountRemaining, o.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update order header: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, o.ID); err != nil {
		return false, fmt.Errorf("failed to clear order lines: %w", err)
	}
	if err := t.insertLines(ctx, o.ID, o.Lines); err != nil {
		return false, err
	}
	return true, nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, orderID, version int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND version = $2`, orderID, version)
	if err != nil {
		// invoices and delivery_events reference orders ON DELETE RESTRICT
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, fmt.Errorf("%w: order %d has invoice or delivery history", core.ErrInvalidStateTransition, orderID)
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) UpdateFulfillment(ctx context.Context, o *core.Order, expected core.OrderStatus) (bool, error) {
	// Under READ COMMITTED a concurrent writer holds the row lock; once it commits the
	// WHERE clause is re-evaluated against its version and matches nothing.
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET amount_paid = $4, amount_remaining = $5, status = $6, updated_at = $7, version = version + 1
		WHERE id = $1 AND status = $2 AND version = $3
	`, o.ID, string(expected), o.Version, o.AmountPaid, o.AmountRemaining, string(o.Status), o.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for _, l := range o.Lines {
		_, err := t.tx.Exec(ctx, `
			UPDATE order_lines SET delivered_quantity = $3, delivery_status = $4
			WHERE order_id = $1 AND line_number = $2
		`, o.ID, l.LineNumber, l.DeliveredQuantity, string(l.DeliveryStatus))
		if err != nil {
			return false, fmt.Errorf("failed to update line %d: %w", l.LineNumber, err)
		}
	}
	return true, nil
}

// ── Delivery history ─────────────────────────────────────────────────────────

func (t *pgTx) InsertDeliveryEvent(ctx context.Context, e *core.DeliveryEvent) (int64, error) {
	deltas, err := json.Marshal(e.Deltas)
	if err != nil {
		return 0, fmt.Errorf("failed to encode deltas: %w", err)
	}
	var id int64
	err = t.tx.QueryRow(ctx, `
		INSERT INTO delivery_events (order_id, deltas, amount_received, comment, previous_status, result_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, e.OrderID, deltas, e.AmountReceived, e.Comment, string(e.PreviousStatus), string(e.ResultStatus),
		e.Actor, e.CreatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *pgTx) SelectDeliveryEvents(ctx context.Context, orderID int64) ([]core.DeliveryEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, order_id, deltas, amount_received, comment, previous_status, result_status, actor, created_at
		FROM delivery_events
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []core.DeliveryEvent
	for rows.Next() {
		var e core.DeliveryEvent
		var deltas []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &deltas, &e.AmountReceived, &e.Comment,
			&e.PreviousStatus, &e.ResultStatus, &e.Actor, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery event: %w", err)
		}
		if err := json.Unmarshal(deltas, &e.Deltas); err != nil {
			return nil, fmt.Errorf("failed to decode deltas of event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (t *pgTx) SelectInvoiceByOrder(ctx context.Context, orderID int64) (*core.Invoice, error) {
	var inv core.Invoice
	err := t.tx.QueryRow(ctx, `
		SELECT id, order_id, invoice_number, status, total, created_at, updated_at
		FROM invoices WHERE order_id = $1
	`, orderID).Scan(&inv.ID, &inv.OrderID, &inv.InvoiceNumber, &inv.Status, &inv.Total, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: invoice for order %d", core.ErrNotFound, orderID)
		}
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT article_id, article_label, unit_price, quantity
		FROM invoice_lines WHERE invoice_id = $1
		ORDER BY position
	`, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l core.InvoiceLine
		if err := rows.Scan(&l.ArticleID, &l.ArticleLabel, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}
		inv.Lines = append(inv.Lines, l)
	}
	return &inv, rows.Err()
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv *core.Invoice) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO invoices (order_id, invoice_number, status, total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, inv.OrderID, inv.InvoiceNumber, string(inv.Status), inv.Total, inv.CreatedAt, inv.UpdatedAt).Scan(&id)
	if err != nil {
		return 0, err
	}
	if err := t.insertInvoiceLines(ctx, id, inv.Lines); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *pgTx) UpdateInvoice(ctx context.Context, inv *core.Invoice) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE invoices SET status = $2, total = $3, updated_at = $4 WHERE id = $1
	`, inv.ID, string(inv.Status), inv.Total, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("failed to clear invoice lines: %w", err)
	}
	return t.insertInvoiceLines(ctx, inv.ID, inv.Lines)
}

func (t *pgTx) insertInvoiceLines(ctx context.Context, invoiceID int64, lines []core.InvoiceLine) error {
	for i, l := range lines {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, position, article_id, article_label, unit_price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, invoiceID, i+1, l.ArticleID, l.ArticleLabel, l.UnitPrice, l.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line %s: %w", l.ArticleID, err)
		}
	}
	return nil
}

// NextSequence is concurrency-safe and gapless: the upsert takes the row lock until commit,
// and a rollback returns the number.
func (t *pgTx) NextSequence(ctx context.Context, typeCode string, year int) (int64, error) {
	var lastNumber int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO document_sequences (type_code, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (type_code, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, typeCode, year).Scan(&lastNumber)
	if err != nil {
		return 0, err
	}
	return lastNumber, nil
}

func marshalFees(fees []core.Fee) ([]byte, error) {
	if fees == nil {
		fees = []core.Fee{}
	}
	b, err := json.Marshal(fees)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fees: %w", err)
	}
	return b, nil
}

