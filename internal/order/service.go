package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/coupon"
	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
	"github.com/noah-isme/toko-commerce/internal/settings"
)

// SettingsSource resolves the store-wide pricing settings.
type SettingsSource interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// CouponEvaluator computes the coupon contribution of an order.
type CouponEvaluator interface {
	Contribution(ctx context.Context, in coupon.EvalInput) (coupon.Contribution, error)
}

// Service computes order summaries for stored orders and cart previews.
type Service struct {
	Store    Store
	Tx       TxRunner
	Settings SettingsSource
	Coupons  CouponEvaluator
	Logger   zerolog.Logger
	Now      func() time.Time
}

// Result is a computed summary with its currency rendering and coupon outcome.
type Result struct {
	Summary   pricing.OrderSummary     `json:"summary"`
	Formatted pricing.FormattedSummary `json:"formatted"`
	Currency  string                   `json:"currency"`
	Coupon    coupon.Contribution      `json:"coupon"`
}

// PreviewInput is a cart that has not been stored. A nil Shipping falls back
// to the configured shipping rate.
type PreviewInput struct {
	Lines         []pricing.OrderLine
	CouponCode    string
	Country       string
	OrderDiscount pricing.DiscountSpec
	Shipping      *pricing.Money
}

// ReplaceResult reports the recomputed totals and the line delta.
type ReplaceResult struct {
	Result
	Removed []string `json:"removed"`
	Added   []string `json:"added"`
}

type quote struct {
	lines      []pricing.OrderLine
	couponCode string
	country    string
	discount   pricing.DiscountSpec
	shipping   *pricing.Money
	refund     pricing.Money
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Summary recomputes the summary of a stored order without writing anything.
func (s *Service) Summary(ctx context.Context, orderID uuid.UUID) (res Result, err error) {
	defer func() { obs.RecordOrderSummary("order", err) }()
	if s == nil || s.Store == nil {
		return Result{}, errors.New("order service not configured")
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, err
	}
	lines, err := s.Store.ListLines(ctx, orderID)
	if err != nil {
		return Result{}, fmt.Errorf("list lines: %w", err)
	}
	return s.compute(ctx, orderQuote(o, orderLines(lines)))
}

// Preview computes the summary of an unsaved cart.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (res Result, err error) {
	defer func() { obs.RecordOrderSummary("preview", err) }()
	return s.compute(ctx, quote{
		lines:      in.Lines,
		couponCode: in.CouponCode,
		country:    in.Country,
		discount:   in.OrderDiscount,
		shipping:   in.Shipping,
		refund:     pricing.Zero(),
	})
}

// ReplaceLines rewrites the lines of an order and persists the recomputed
// totals in one transaction. Lines whose key is no longer submitted are
// deleted; the others are upserted.
func (s *Service) ReplaceLines(ctx context.Context, orderID uuid.UUID, submitted []pricing.OrderLine) (res ReplaceResult, err error) {
	defer func() { obs.RecordOrderSummary("recalculate", err) }()
	if s == nil || s.Tx == nil {
		return ReplaceResult{}, errors.New("order service not configured")
	}
	lines, keys, err := keyLines(submitted)
	if err != nil {
		return ReplaceResult{}, err
	}
	err = s.Tx.InTx(ctx, func(store Store) error {
		o, err := store.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		computed, err := s.compute(ctx, orderQuote(o, submitted))
		if err != nil {
			return err
		}
		sync := pivot.Synchronizer{Store: store, Logger: s.Logger}
		changes, err := sync.Synchronize(ctx, orderID.String(), lineTarget, keys)
		if err != nil {
			return err
		}
		if err := store.UpsertLines(ctx, orderID, lines); err != nil {
			return err
		}
		if err := store.SaveTotals(ctx, orderID, computed.Summary); err != nil {
			return fmt.Errorf("save totals: %w", err)
		}
		res = ReplaceResult{Result: computed, Removed: nonNil(changes.Removable), Added: nonNil(changes.NewEntries)}
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}
	s.Logger.Info().
		Str("order_id", orderID.String()).
		Int("lines", len(lines)).
		Int("removed", len(res.Removed)).
		Str("net_amount", res.Summary.NetAmount.String()).
		Msg("order_lines_replaced")
	return res, nil
}

func (s *Service) compute(ctx context.Context, q quote) (Result, error) {
	if s == nil || s.Settings == nil {
		return Result{}, errors.New("order service not configured")
	}
	cfg, err := s.Settings.Get(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load settings: %w", err)
	}
	policy := cfg.Policy()
	subTotal, err := pricing.SubTotal(q.lines, policy)
	if err != nil {
		return Result{}, err
	}

	contribution := coupon.Contribution{Amount: pricing.Zero(), Reason: coupon.ReasonNoCoupon}
	if code := strings.TrimSpace(q.couponCode); code != "" && s.Coupons != nil {
		contribution, err = s.Coupons.Contribution(ctx, coupon.EvalInput{
			Code:     code,
			Lines:    q.lines,
			SubTotal: subTotal,
			Country:  q.country,
			Now:      s.now(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("evaluate coupon: %w", err)
		}
	}

	shipping := cfg.ShippingRate
	if q.shipping != nil {
		shipping = *q.shipping
	}
	summary, err := pricing.ComputeOrderSummary(pricing.OrderInput{
		Lines:         q.lines,
		OrderDiscount: q.discount,
		Coupon:        contribution.Pricing(),
		Tax:           cfg.Tax,
		Shipping:      shipping,
		Refund:        q.refund,
		Policy:        policy,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Summary:   summary,
		Formatted: summary.Format(cfg.Currency),
		Currency:  cfg.Currency.Code,
		Coupon:    contribution,
	}, nil
}

func orderQuote(o Order, lines []pricing.OrderLine) quote {
	shipping := o.ShippingCost
	return quote{
		lines:      lines,
		couponCode: o.CouponCode,
		country:    o.Country,
		discount:   o.Discount,
		shipping:   &shipping,
		refund:     o.RefundAmount,
	}
}

func orderLines(lines []Line) []pricing.OrderLine {
	out := make([]pricing.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.OrderLine)
	}
	return out
}

// keyLines assigns line keys and rejects a product/variant submitted twice.
func keyLines(submitted []pricing.OrderLine) ([]Line, []string, error) {
	lines := make([]Line, 0, len(submitted))
	keys := make([]string, 0, len(submitted))
	seen := make(map[string]int, len(submitted))
	for i, l := range submitted {
		key := LineKey(l)
		if prev, dup := seen[key]; dup {
			return nil, nil, pricing.Invalid(fmt.Sprintf("lines[%d]", i), fmt.Sprintf("duplicates lines[%d]", prev))
		}
		seen[key] = i
		lines = append(lines, Line{Key: key, OrderLine: l})
		keys = append(keys, key)
	}
	return lines, keys, nil
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
