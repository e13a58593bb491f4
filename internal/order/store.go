package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-commerce/internal/db"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

// ErrOrderNotFound is returned when no order matches the requested id.
var ErrOrderNotFound = errors.New("order not found")

var lineTarget = pivot.Target{Table: "order_items", ParentColumn: "order_id", ParentType: "uuid", KeyColumn: "line_key"}

// Order is the header data that feeds the summary alongside the lines.
type Order struct {
	ID           uuid.UUID
	CouponCode   string
	Country      string
	Discount     pricing.DiscountSpec
	ShippingCost pricing.Money
	RefundAmount pricing.Money
}

// Line is a stored order line keyed by product and variant.
type Line struct {
	Key string
	pricing.OrderLine
}

// LineKey identifies a line within its order. A product appears once per variant.
func LineKey(l pricing.OrderLine) string {
	if l.VariantID == nil {
		return l.ProductID.String()
	}
	return l.ProductID.String() + ":" + l.VariantID.String()
}

// Store captures the order persistence used by Service.
type Store interface {
	pivot.Store
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListLines(ctx context.Context, orderID uuid.UUID) ([]Line, error)
	UpsertLines(ctx context.Context, orderID uuid.UUID, lines []Line) error
	SaveTotals(ctx context.Context, orderID uuid.UUID, summary pricing.OrderSummary) error
}

// TxRunner runs fn against a Store bound to a single transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	*pivot.PGStore
	db DBTX
}

// NewPGStore constructs a PGStore.
func NewPGStore(conn DBTX) *PGStore {
	return &PGStore{PGStore: pivot.NewPGStore(conn), db: conn}
}

// GetOrder loads the order header.
func (s *PGStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	var (
		o      Order
		coupon *string
		kind   string
		value  decimal.Decimal
	)
	err := s.db.QueryRow(ctx, `SELECT id, coupon_code, country, order_discount_kind, order_discount_value,
shipping_cost, refund_amount FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &coupon, &o.Country, &kind, &value, &o.ShippingCost, &o.RefundAmount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if coupon != nil {
		o.CouponCode = *coupon
	}
	parsed, err := pricing.ParseDiscountKind(kind)
	if err != nil {
		return Order{}, fmt.Errorf("order %s: %w", id, err)
	}
	o.Discount = pricing.DiscountSpec{Kind: parsed, Value: value}
	return o, nil
}

// ListLines returns the order lines ordered by key.
func (s *PGStore) ListLines(ctx context.Context, orderID uuid.UUID) ([]Line, error) {
	rows, err := s.db.Query(ctx, `SELECT line_key, product_id, variant_id, unit_price, quantity,
discount_kind, discount_value
FROM order_items
WHERE order_id = $1
ORDER BY line_key`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var (
			l     Line
			kind  string
			value decimal.Decimal
		)
		if err := row.Scan(&l.Key, &l.ProductID, &l.VariantID, &l.UnitPrice, &l.Quantity, &kind, &value); err != nil {
			return Line{}, err
		}
		parsed, err := pricing.ParseDiscountKind(kind)
		if err != nil {
			return Line{}, fmt.Errorf("line %s: %w", l.Key, err)
		}
		l.Discount = pricing.DiscountSpec{Kind: parsed, Value: value}
		return l, nil
	})
}

const upsertLineSQL = `INSERT INTO order_items
(order_id, line_key, product_id, variant_id, unit_price, quantity, discount_kind, discount_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (order_id, line_key) DO UPDATE SET
unit_price = EXCLUDED.unit_price,
quantity = EXCLUDED.quantity,
discount_kind = EXCLUDED.discount_kind,
discount_value = EXCLUDED.discount_value`

// UpsertLines writes every line in one batch, updating rows whose key already exists.
func (s *PGStore) UpsertLines(ctx context.Context, orderID uuid.UUID, lines []Line) error {
	if len(lines) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(upsertLineSQL, orderID, l.Key, l.ProductID, l.VariantID, l.UnitPrice,
			l.Quantity, string(l.Discount.Kind), l.Discount.Value)
	}
	br := s.db.SendBatch(ctx, batch)
	for i := range lines {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert line %s: %w", strings.TrimSpace(lines[i].Key), err)
		}
	}
	return br.Close()
}

// SaveTotals stores the recomputed amounts on the order header.
func (s *PGStore) SaveTotals(ctx context.Context, orderID uuid.UUID, summary pricing.OrderSummary) error {
	tag, err := s.db.Exec(ctx, `UPDATE orders SET sub_total = $2, tax_amount = $3, coupon_amount = $4,
discount_amount = $5, net_amount = $6, updated_at = now() WHERE id = $1`,
		orderID, summary.SubTotal, summary.TaxAmount, summary.CouponAmount, summary.OrderDiscount, summary.NetAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
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
