package coupon

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-commerce/internal/db"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Repository against PostgreSQL.
type PGStore struct {
	*pivot.PGStore
	db DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn DBTX) *PGStore {
	return &PGStore{PGStore: pivot.NewPGStore(conn), db: conn}
}

const couponColumns = `id, code, kind, value, scope, countries, usage_limit, coupon_limit, used_count, active_from, active_to`

// GetByCode loads a coupon and its target memberships. Codes match case-insensitively.
func (s *PGStore) GetByCode(ctx context.Context, code string) (Spec, error) {
	var (
		spec  Spec
		kind  string
		scope string
	)
	err := s.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE lower(code) = lower($1)`, code).Scan(
		&spec.ID, &spec.Code, &kind, &spec.Value, &scope, &spec.Countries,
		&spec.UsageLimit, &spec.CouponLimit, &spec.UsedCount, &spec.ActiveFrom, &spec.ActiveTo,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Spec{}, ErrNotFound
		}
		return Spec{}, err
	}
	spec.Kind = pricingKind(kind)
	spec.Scope = Scope(scope)

	products, err := s.LoadChildKeys(ctx, spec.ID.String(), productTarget)
	if err != nil {
		return Spec{}, err
	}
	if spec.ProductIDs, err = parseUUIDs(products); err != nil {
		return Spec{}, err
	}
	categories, err := s.LoadChildKeys(ctx, spec.ID.String(), categoryTarget)
	if err != nil {
		return Spec{}, err
	}
	if spec.CategoryIDs, err = parseUUIDs(categories); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// CodeExists reports whether a coupon other than excludeID uses code.
func (s *PGStore) CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupons WHERE lower(code) = lower($1) AND id <> $2)`,
		code, excludeID).Scan(&exists)
	return exists, err
}

// Insert persists a new coupon row. Targets are written separately.
func (s *PGStore) Insert(ctx context.Context, spec Spec) error {
	_, err := s.db.Exec(ctx, `INSERT INTO coupons (`+couponColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		spec.ID, spec.Code, string(spec.Kind), spec.Value, string(spec.Scope), countries(spec.Countries),
		spec.UsageLimit, spec.CouponLimit, spec.UsedCount, spec.ActiveFrom, spec.ActiveTo)
	if db.IsUniqueViolation(err) {
		return ErrCodeTaken
	}
	return err
}

// Update rewrites the coupon row identified by spec.ID.
func (s *PGStore) Update(ctx context.Context, spec Spec) error {
	tag, err := s.db.Exec(ctx, `UPDATE coupons SET code = $2, kind = $3, value = $4, scope = $5, countries = $6,
usage_limit = $7, coupon_limit = $8, active_from = $9, active_to = $10, updated_at = now()
WHERE id = $1`,
		spec.ID, spec.Code, string(spec.Kind), spec.Value, string(spec.Scope), countries(spec.Countries),
		spec.UsageLimit, spec.CouponLimit, spec.ActiveFrom, spec.ActiveTo)
	if db.IsUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementUsage bumps the used counter.
func (s *PGStore) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ProductCategories returns the category memberships of the given products.
func (s *PGStore) ProductCategories(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := s.db.Query(ctx, `SELECT product_id, category_id FROM product_categories
WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, category_id`, uuidStrings(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var product, category uuid.UUID
		if err := rows.Scan(&product, &category); err != nil {
			return nil, err
		}
		out[product] = append(out[product], category)
	}
	return out, rows.Err()
}

// PGTxRunner opens a transaction per InTx call.
type PGTxRunner struct {
	DB db.TxBeginner
}

// InTx implements TxRunner.
func (r PGTxRunner) InTx(ctx context.Context, fn func(Repository) error) error {
	return db.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(NewPGStore(tx))
	})
}

func countries(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func pricingKind(value string) pricing.DiscountKind {
	kind, _ := pricing.ParseDiscountKind(value)
	return kind
}
