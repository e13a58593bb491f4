package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-commerce/internal/obs"
	"github.com/noah-isme/toko-commerce/internal/pivot"
	"github.com/noah-isme/toko-commerce/internal/pricing"
)

var (
	productTarget = pivot.Target{
		Table: "coupon_products", ParentColumn: "coupon_id", ParentType: "uuid", KeyColumn: "product_id", KeyType: "uuid",
	}
	categoryTarget = pivot.Target{
		Table: "coupon_categories", ParentColumn: "coupon_id", ParentType: "uuid", KeyColumn: "category_id", KeyType: "uuid",
	}
)

// Repository captures the storage operations required by the coupon service.
// GetByCode returns ErrNotFound for unknown codes and fills the product and
// category memberships.
type Repository interface {
	pivot.Store
	GetByCode(ctx context.Context, code string) (Spec, error)
	CodeExists(ctx context.Context, code string, excludeID uuid.UUID) (bool, error)
	Insert(ctx context.Context, spec Spec) error
	Update(ctx context.Context, spec Spec) error
	InsertChildren(ctx context.Context, parentID string, target pivot.Target, keys []string) error
	IncrementUsage(ctx context.Context, id uuid.UUID) error
	ProductCategories(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// TxRunner runs fn against a Repository bound to a single transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Service manages coupons and evaluates them for orders.
type Service struct {
	Repo   Repository
	Tx     TxRunner
	Logger zerolog.Logger
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Get loads a coupon by code.
func (s *Service) Get(ctx context.Context, code string) (Spec, error) {
	if s == nil || s.Repo == nil {
		return Spec{}, errors.New("coupon service not configured")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Spec{}, ErrNotFound
	}
	return s.Repo.GetByCode(ctx, code)
}

// Create validates and persists a new coupon together with its targets.
func (s *Service) Create(ctx context.Context, spec Spec) (Spec, error) {
	if s == nil || s.Tx == nil {
		return Spec{}, errors.New("coupon service not configured")
	}
	spec.Normalize()
	if spec.ActiveFrom.IsZero() {
		spec.ActiveFrom = s.now()
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	spec.ID = uuid.New()
	spec.UsedCount = 0

	err := s.Tx.InTx(ctx, func(repo Repository) error {
		taken, err := repo.CodeExists(ctx, spec.Code, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrCodeTaken
		}
		if err := repo.Insert(ctx, spec); err != nil {
			return err
		}
		return s.syncTargets(ctx, repo, spec)
	})
	if err != nil {
		return Spec{}, err
	}
	s.Logger.Info().Str("coupon_code", spec.Code).Str("coupon_id", spec.ID.String()).Msg("coupon_created")
	return spec, nil
}

// Update replaces the definition of the coupon currently stored under code.
// The usage counter is preserved.
func (s *Service) Update(ctx context.Context, code string, spec Spec) (Spec, error) {
	if s == nil || s.Tx == nil {
		return Spec{}, errors.New("coupon service not configured")
	}
	spec.Normalize()
	code = strings.TrimSpace(code)
	if spec.Code == "" {
		spec.Code = code
	}

	err := s.Tx.InTx(ctx, func(repo Repository) error {
		existing, err := repo.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		spec.ID = existing.ID
		spec.UsedCount = existing.UsedCount
		if spec.ActiveFrom.IsZero() {
			spec.ActiveFrom = existing.ActiveFrom
		}
		if err := spec.Validate(); err != nil {
			return err
		}
		if !strings.EqualFold(existing.Code, spec.Code) {
			taken, err := repo.CodeExists(ctx, spec.Code, existing.ID)
			if err != nil {
				return err
			}
			if taken {
				return ErrCodeTaken
			}
		}
		if err := repo.Update(ctx, spec); err != nil {
			return err
		}
		return s.syncTargets(ctx, repo, spec)
	})
	if err != nil {
		return Spec{}, err
	}
	s.Logger.Info().Str("coupon_code", spec.Code).Str("coupon_id", spec.ID.String()).Msg("coupon_updated")
	return spec, nil
}

// syncTargets reconciles coupon_products and coupon_categories with the spec.
// Lists that do not belong to the scope are cleared.
func (s *Service) syncTargets(ctx context.Context, repo Repository, spec Spec) error {
	products, categories := spec.ProductIDs, spec.CategoryIDs
	if spec.Scope != ScopeProducts {
		products = nil
	}
	if spec.Scope != ScopeCategories {
		categories = nil
	}
	sync := pivot.Synchronizer{Store: repo, Logger: s.Logger}
	parent := spec.ID.String()
	for _, t := range []struct {
		target pivot.Target
		ids    []uuid.UUID
	}{
		{productTarget, products},
		{categoryTarget, categories},
	} {
		changes, err := sync.Synchronize(ctx, parent, t.target, uuidStrings(t.ids))
		if err != nil {
			return err
		}
		if len(changes.NewEntries) == 0 {
			continue
		}
		if err := repo.InsertChildren(ctx, parent, t.target, changes.NewEntries); err != nil {
			return fmt.Errorf("insert %s: %w", t.target.Table, err)
		}
	}
	return nil
}

// Contribution evaluates in.Code for an order. Unknown codes yield a zero
// contribution; only storage failures are returned.
func (s *Service) Contribution(ctx context.Context, in EvalInput) (Contribution, error) {
	if strings.TrimSpace(in.Code) == "" {
		return skipped("", ReasonNoCoupon), nil
	}
	if s == nil || s.Repo == nil {
		return Contribution{}, errors.New("coupon service not configured")
	}
	if in.Now.IsZero() {
		in.Now = s.now()
	}
	var spec *Spec
	loaded, err := s.Repo.GetByCode(ctx, strings.TrimSpace(in.Code))
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return Contribution{}, err
	default:
		spec = &loaded
		if in.Lines, err = s.withCategories(ctx, loaded, in.Lines); err != nil {
			return Contribution{}, err
		}
	}
	result := Evaluate(spec, in)
	obs.RecordCouponEvaluation(result.Reason)
	s.Logger.Debug().
		Str("coupon_code", result.Code).
		Str("reason", result.Reason).
		Str("amount", result.Amount.String()).
		Msg("coupon_evaluated")
	return result, nil
}

// Preview evaluates a coupon for the admin preview, rejecting codes that are
// unknown or not usable instead of returning a zero contribution.
func (s *Service) Preview(ctx context.Context, in EvalInput, usage Usage) (Contribution, error) {
	spec, err := s.Get(ctx, in.Code)
	if err != nil {
		return Contribution{}, err
	}
	if in.Now.IsZero() {
		in.Now = s.now()
	}
	if err := spec.CheckUsable(in.Now, usage); err != nil {
		return Contribution{}, err
	}
	if in.Lines, err = s.withCategories(ctx, spec, in.Lines); err != nil {
		return Contribution{}, err
	}
	result := Evaluate(&spec, in)
	obs.RecordCouponEvaluation(result.Reason)
	return result, nil
}

// withCategories replaces the category memberships of lines with the stored
// product_categories rows. Only category-scoped coupons read them.
func (s *Service) withCategories(ctx context.Context, spec Spec, lines []pricing.OrderLine) ([]pricing.OrderLine, error) {
	if spec.Scope != ScopeCategories || len(lines) == 0 {
		return lines, nil
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	memberships, err := s.Repo.ProductCategories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load product categories: %w", err)
	}
	out := make([]pricing.OrderLine, len(lines))
	for i, l := range lines {
		l.CategoryIDs = memberships[l.ProductID]
		out[i] = l
	}
	return out, nil
}

// RecordUsage increments the usage counter once an order using code is placed.
func (s *Service) RecordUsage(ctx context.Context, code string) error {
	if s == nil || s.Tx == nil {
		return errors.New("coupon service not configured")
	}
	return s.Tx.InTx(ctx, func(repo Repository) error {
		spec, err := repo.GetByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if spec.UsageLimit != nil && *spec.UsageLimit > 0 && spec.UsedCount >= *spec.UsageLimit {
			return ErrUsageLimitReached
		}
		return repo.IncrementUsage(ctx, spec.ID)
	})
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(values))
	for _, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		id, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid uuid %q: %w", trimmed, err)
		}
		out = append(out, id)
	}
	return out, nil
}
