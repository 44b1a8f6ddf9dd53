package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/HerbTrace/internal/model"
)

// LedgerRepository is the Postgres implementation of ledger.Store. Rows are
// only ever inserted; ordering comes from the seq column.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const (
	insertEvent = `
		INSERT INTO ledger_events (product_id, transaction_id, event_type, payload, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`
	insertProduct = `
		INSERT INTO ledger_products (product_id, transaction_id, attributes, created_at)
		VALUES ($1,$2,$3,$4)
	`
)

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AppendEvent inserts ev.
func (r *LedgerRepository) AppendEvent(ctx context.Context, ev model.Event) error {
	return appendEvent(ctx, r.pool, ev)
}

// AppendCollection inserts ev and p in one transaction.
func (r *LedgerRepository) AppendCollection(ctx context.Context, ev model.Event, p model.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin collection: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback(ctx)

	if err := appendEvent(ctx, tx, ev); err != nil {
		return err
	}
	attrs := p.Attributes
	if attrs == nil {
		attrs = model.Payload{}
	}
	if _, err := tx.Exec(ctx, insertProduct, p.ProductID, p.TransactionID, map[string]any(attrs), p.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit collection: %w", err)
	}
	return nil
}

func appendEvent(ctx context.Context, db execer, ev model.Event) error {
	payload := ev.Payload
	if payload == nil {
		payload = model.Payload{}
	}
	_, err := db.Exec(ctx, insertEvent,
		ev.ProductID, ev.TransactionID, string(ev.Type), map[string]any(payload), ev.Status, ev.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventsByProduct returns the events for productID in insertion order.
func (r *LedgerRepository) EventsByProduct(ctx context.Context, productID string) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, transaction_id, event_type, payload, status, created_at
		FROM ledger_events WHERE product_id=$1 ORDER BY seq
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var (
			ev      model.Event
			typ     string
			payload map[string]any
			created time.Time
		)
		if err := rows.Scan(&ev.ProductID, &ev.TransactionID, &typ, &payload, &ev.Status, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = model.EventType(typ)
		ev.Payload = model.Payload(payload)
		ev.Timestamp = created.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// FindProduct returns the first product recorded under productID.
func (r *LedgerRepository) FindProduct(ctx context.Context, productID string) (model.Product, bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT product_id, transaction_id, attributes, created_at
		FROM ledger_products WHERE product_id=$1 ORDER BY seq LIMIT 1
	`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, fmt.Errorf("select product: %w", err)
	}
	return p, true, nil
}

// Products returns every product in insertion order.
func (r *LedgerRepository) Products(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, transaction_id, attributes, created_at
		FROM ledger_products ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()
	out := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// CountEvents returns the number of stored events.
func (r *LedgerRepository) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var (
		p       model.Product
		attrs   map[string]any
		created time.Time
	)
	if err := row.Scan(&p.ProductID, &p.TransactionID, &attrs, &created); err != nil {
		return model.Product{}, err
	}
	p.Attributes = model.Payload(attrs)
	p.CreatedAt = created.UTC()
	return p, nil
}
