package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-commerce/internal/db"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// Product is the catalog row written by the importer.
type Product struct {
	ID    uuid.UUID     `json:"id"`
	SKU   string        `json:"sku"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// Store captures the storage operations required by the catalog services.
type Store interface {
	pivot.Store
	InsertChildren(ctx context.Context, parentID string, target pivot.Target, keys []string) error
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	UpsertProduct(ctx context.Context, p Product) (id uuid.UUID, created bool, err error)
}

// TxRunner runs fn against a Store bound to one transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	*pivot.PGStore
	conn DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn DBTX) *PGStore {
	return &PGStore{PGStore: pivot.NewPGStore(conn), conn: conn}
}

// ProductExists reports whether a product row exists.
func (s *PGStore) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// UpsertProduct inserts or updates a product keyed by SKU.
func (s *PGStore) UpsertProduct(ctx context.Context, p Product) (uuid.UUID, bool, error) {
	var (
		id       uuid.UUID
		inserted bool
	)
	err := s.conn.QueryRow(ctx, `INSERT INTO products (sku, name, price) VALUES ($1, $2, $3)
ON CONFLICT (sku) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, updated_at = now()
RETURNING id, (xmax = 0) AS inserted`, p.SKU, p.Name, p.Price).Scan(&id, &inserted)
	return id, inserted, err
}

// PGTxRunner opens a transaction per InTx call.
type PGTxRunner struct {
	DB db.TxBeginner
}

// InTx implements TxRunner.
func (r PGTxRunner) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(NewPGStore(tx))
	})
}
