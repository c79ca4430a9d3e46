package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"proforma/internal/core"
)

// Catalog reads articles straight from the pool; lookups never join a write transaction.
type Catalog struct {
	pool *pgxpool.Pool
}

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) LookupArticle(ctx context.Context, scope core.Scope, articleID string) (*core.Article, error) {
	var a core.Article
	err := c.pool.QueryRow(ctx, `
		SELECT id, label, unit_price, kind
		FROM articles
		WHERE company_code = $1 AND id = $2
	`, scope.Company, articleID).Scan(&a.ID, &a.Label, &a.UnitPrice, &a.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: article %s", core.ErrNotFound, articleID)
		}
		return nil, fmt.Errorf("failed to look up article %s: %w", articleID, err)
	}
	return &a, nil
}

// UpsertArticle creates or updates a catalog entry. Existing orders keep the price they captured.
func (c *Catalog) UpsertArticle(ctx context.Context, company string, a core.Article) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO articles (company_code, id, label, unit_price, kind)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_code, id)
		DO UPDATE SET label = EXCLUDED.label, unit_price = EXCLUDED.unit_price, kind = EXCLUDED.kind
	`, company, a.ID, a.Label, a.UnitPrice, string(a.Kind))
	if err != nil {
		return fmt.Errorf("failed to upsert article %s: %w", a.ID, err)
	}
	return nil
}

type Clients struct {
	pool *pgxpool.Pool
}

func NewClients(pool *pgxpool.Pool) *Clients {
	return &Clients{pool: pool}
}

func (c *Clients) LookupClient(ctx context.Context, scope core.Scope, clientRef string) (*core.Client, error) {
	var cl core.Client
	err := c.pool.QueryRow(ctx, `
		SELECT ref, name, address
		FROM clients
		WHERE company_code = $1 AND ref = $2
	`, scope.Company, clientRef).Scan(&cl.Ref, &cl.Name, &cl.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: client %s", core.ErrNotFound, clientRef)
		}
		return nil, fmt.Errorf("failed to look up client %s: %w", clientRef, err)
	}
	return &cl, nil
}

func (c *Clients) UpsertClient(ctx context.Context, company string, cl core.Client) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO clients (company_code, ref, name, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_code, ref)
		DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address
	`, company, cl.Ref, cl.Name, cl.Address)
	if err != nil {
		return fmt.Errorf("failed to upsert client %s: %w", cl.Ref, err)
	}
	return nil
}
