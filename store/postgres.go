// Package store holds the product store implementations used by the
// reconciler: PostgreSQL through pgx and an in-memory store for dry runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/aluiziolira/go-catalogue-sync/models"
	"github.com/aluiziolira/go-catalogue-sync/reconcile"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name        text NOT NULL,
	slug        text NOT NULL UNIQUE,
	description text
);

CREATE TABLE IF NOT EXISTS products (
	id               uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	category_id      uuid NOT NULL REFERENCES categories (id),
	reference        text NOT NULL UNIQUE,
	name             text NOT NULL,
	slug             text NOT NULL UNIQUE,
	description      text,
	price            numeric(10, 2) NOT NULL,
	tva_rate         numeric(5, 2) NOT NULL DEFAULT 20,
	stock_quantity   integer NOT NULL DEFAULT 0,
	images           text[] NOT NULL DEFAULT '{}',
	meta_description text,
	status           text NOT NULL DEFAULT 'draft',
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now()
);`

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	URL         string
	MaxConns    int32
	MaxConnIdle time.Duration
}

// Postgres is a reconcile.Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pool and checks the server is reachable.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("ping", "", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the server is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return classify("ping", "", p.pool.Ping(ctx))
}

// Migrate creates the category and product tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return classify("migrate", "", err)
	}
	return nil
}

// EnsureCategory returns the id of the category slug, inserting it first when
// it does not exist.
func (p *Postgres) EnsureCategory(ctx context.Context, category models.Category) (string, error) {
	query := `
		INSERT INTO categories (name, slug, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id::text`

	var id string
	if err := p.pool.QueryRow(ctx, query, category.Name, category.Slug, category.Description).Scan(&id); err != nil {
		return "", classify("ensure category", "", err)
	}
	return id, nil
}

// FindByReference loads the product carrying reference.
func (p *Postgres) FindByReference(ctx context.Context, reference string) (*models.StoredProduct, error) {
	query := `
		SELECT id::text, category_id::text, reference, name, slug,
			COALESCE(description, ''), price::float8, tva_rate::float8,
			stock_quantity, images, COALESCE(meta_description, ''), status
		FROM products
		WHERE reference = $1`

	var (
		product models.StoredProduct
		status  string
	)
	err := p.pool.QueryRow(ctx, query, reference).Scan(
		&product.ID, &product.CategoryID, &product.Reference, &product.Name, &product.Slug,
		&product.Description, &product.Price, &product.TVARate,
		&product.StockQuantity, &product.Images, &product.MetaDescription, &status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reconcile.ErrProductNotFound
	}
	if err != nil {
		return nil, classify("find product", reference, err)
	}
	product.Status = models.ProductStatus(status)
	return &product, nil
}

// Create inserts product and returns its id.
func (p *Postgres) Create(ctx context.Context, product *models.StoredProduct) (string, error) {
	query := `
		INSERT INTO products
			(category_id, reference, name, slug, description, price, tva_rate,
			 stock_quantity, images, meta_description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id::text`

	images := product.Images
	if images == nil {
		images = []string{}
	}

	var id string
	err := p.pool.QueryRow(ctx, query,
		product.CategoryID, product.Reference, product.Name, product.Slug, product.Description,
		product.Price, product.TVARate, product.StockQuantity, images,
		product.MetaDescription, string(product.Status),
	).Scan(&id)
	if err != nil {
		return "", classify("create product", product.Reference, err)
	}
	product.ID = id
	return id, nil
}

// Update writes the non-nil fields of update to the product carrying reference.
func (p *Postgres) Update(ctx context.Context, reference string, update models.ProductUpdate) error {
	query, args := updateStatement(reference, update)
	if query == "" {
		return nil
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return classify("update product", reference, err)
	}
	if tag.RowsAffected() == 0 {
		return reconcile.ErrProductNotFound
	}
	return nil
}

func updateStatement(reference string, update models.ProductUpdate) (string, []any) {
	if update.Empty() {
		return "", nil
	}

	var (
		sets []string
		args []any
	)
	if update.Price != nil {
		args = append(args, *update.Price)
		sets = append(sets, fmt.Sprintf("price = $%d", len(args)))
	}
	if update.Stock != nil {
		args = append(args, *update.Stock)
		sets = append(sets, fmt.Sprintf("stock_quantity = $%d", len(args)))
	}
	if update.Images != nil {
		args = append(args, update.Images)
		sets = append(sets, fmt.Sprintf("images = $%d", len(args)))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, reference)

	return fmt.Sprintf("UPDATE products SET %s WHERE reference = $%d", strings.Join(sets, ", "), len(args)), args
}

// classify maps driver errors onto the reconcile error taxonomy.
func classify(op, reference string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation:
			return &reconcile.ConflictError{Reference: reference, Constraint: pgErr.ConstraintName, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "53300", pgErr.Code == "57P01", pgErr.Code == "57P03":
			return &reconcile.UnavailableError{Op: op, Err: err}
		}
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err):
		return &reconcile.UnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
