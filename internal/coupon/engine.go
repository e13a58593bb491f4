package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-commerce/internal/pricing"
)

var (
	// ErrNotFound is returned by repositories when no coupon has the requested code.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeTaken is returned when another coupon already uses the code.
	ErrCodeTaken = errors.New("coupon code already exists")
	// ErrNotStarted is returned when the coupon window has not opened yet.
	ErrNotStarted = errors.New("coupon not active yet")
	// ErrExpired is returned when the coupon window has closed.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached indicates the coupon exhausted its global quota.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCouponLimitReached indicates the customer exhausted their allowance.
	ErrCouponLimitReached = errors.New("coupon per-customer limit reached")
)

// Scope restricts which order lines make a coupon applicable.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeProducts   Scope = "products"
	ScopeCategories Scope = "categories"
)

// ParseScope accepts the stored spellings; blank means ScopeAll.
func ParseScope(value string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "all", "all_products":
		return ScopeAll, nil
	case "products", "product", "specific_products":
		return ScopeProducts, nil
	case "categories", "category", "specific_categories":
		return ScopeCategories, nil
	default:
		return "", pricing.Invalid("scope", "unknown scope "+value)
	}
}

// Spec is the read-only definition of a coupon.
type Spec struct {
	ID          uuid.UUID            `json:"id"`
	Code        string               `json:"code"`
	Kind        pricing.DiscountKind `json:"kind"`
	Value       decimal.Decimal      `json:"value"`
	Scope       Scope                `json:"scope"`
	ProductIDs  []uuid.UUID          `json:"productIds,omitempty"`
	CategoryIDs []uuid.UUID          `json:"categoryIds,omitempty"`
	Countries   []string             `json:"countries,omitempty"`
	UsageLimit  *int                 `json:"usageLimit,omitempty"`
	CouponLimit *int                 `json:"couponLimit,omitempty"`
	UsedCount   int                  `json:"usedCount"`
	ActiveFrom  time.Time            `json:"activeFrom"`
	ActiveTo    *time.Time           `json:"activeTo,omitempty"`
}

// Discount returns the pricing view of the coupon value.
func (s Spec) Discount() pricing.DiscountSpec {
	return pricing.DiscountSpec{Kind: s.Kind, Value: s.Value}
}

// Normalize trims the code and upper-cases country codes in place.
func (s *Spec) Normalize() {
	s.Code = strings.TrimSpace(s.Code)
	if s.Scope == "" {
		s.Scope = ScopeAll
	}
	if s.Countries == nil {
		return
	}
	countries := make([]string, 0, len(s.Countries))
	for _, c := range s.Countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			countries = append(countries, c)
		}
	}
	s.Countries = countries
}

// Validate checks the definition before it is persisted.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Code) == "" {
		return pricing.Invalid("code", "is required")
	}
	if len(s.Code) > 64 {
		return pricing.Invalid("code", "must be at most 64 characters")
	}
	switch s.Kind {
	case pricing.DiscountPercentage:
		if s.Value.GreaterThan(decimal.NewFromInt(100)) {
			return pricing.Invalid("value", "percentage must not exceed 100")
		}
	case pricing.DiscountFixedAmount:
	default:
		return pricing.Invalid("kind", "must be percentage or fixed_amount")
	}
	if s.Value.IsNegative() {
		return pricing.Invalid("value", "must not be negative")
	}
	switch s.Scope {
	case ScopeAll, ScopeProducts, ScopeCategories:
	default:
		return pricing.Invalid("scope", "unknown scope "+string(s.Scope))
	}
	if s.ActiveTo != nil && s.ActiveTo.Before(s.ActiveFrom) {
		return pricing.Invalid("activeTo", "must not be before activeFrom")
	}
	if s.UsageLimit != nil && *s.UsageLimit < 0 {
		return pricing.Invalid("usageLimit", "must not be negative")
	}
	if s.CouponLimit != nil && *s.CouponLimit < 0 {
		return pricing.Invalid("couponLimit", "must not be negative")
	}
	return nil
}

// ActiveAt reports whether now falls inside the coupon window. Both bounds are inclusive.
func (s Spec) ActiveAt(now time.Time) bool {
	if now.Before(s.ActiveFrom) {
		return false
	}
	return s.ActiveTo == nil || !now.After(*s.ActiveTo)
}

// Usage counts prior redemptions.
type Usage struct {
	Total    int
	Customer int
}

// CheckUsable is the hard acceptance check run before an order is placed.
// Evaluate never fails; callers that must reject an unusable coupon use this.
// A nil or zero limit means unlimited.
func (s Spec) CheckUsable(now time.Time, u Usage) error {
	if now.Before(s.ActiveFrom) {
		return ErrNotStarted
	}
	if s.ActiveTo != nil && now.After(*s.ActiveTo) {
		return ErrExpired
	}
	total := u.Total
	if s.UsedCount > total {
		total = s.UsedCount
	}
	if s.UsageLimit != nil && *s.UsageLimit > 0 && total >= *s.UsageLimit {
		return ErrUsageLimitReached
	}
	if s.CouponLimit != nil && *s.CouponLimit > 0 && u.Customer >= *s.CouponLimit {
		return ErrCouponLimitReached
	}
	return nil
}

// Reasons reported with a Contribution.
const (
	ReasonApplied           = "applied"
	ReasonNoCoupon          = "no_coupon"
	ReasonNotFound          = "not_found"
	ReasonOutOfScope        = "out_of_scope"
	ReasonInactive          = "inactive"
	ReasonCountryRestricted = "country_restricted"
)

// EvalInput is the order context a coupon is evaluated against.
type EvalInput struct {
	Code     string
	Lines    []pricing.OrderLine
	SubTotal pricing.Money
	Country  string
	Now      time.Time
}

// Contribution is the outcome of one evaluation.
type Contribution struct {
	Code    string        `json:"code,omitempty"`
	Amount  pricing.Money `json:"amount"`
	Applied bool          `json:"applied"`
	Reason  string        `json:"reason"`
}

// Pricing converts the contribution for pricing.ComputeOrderSummary.
func (c Contribution) Pricing() pricing.CouponContribution {
	return pricing.CouponContribution{Code: c.Code, Amount: c.Amount}
}

func skipped(code, reason string) Contribution {
	return Contribution{Code: code, Amount: pricing.Zero(), Reason: reason}
}

// Evaluate computes the coupon amount for an order. Every failed condition
// yields a zero contribution; it never returns an error. A zero in.Now is
// outside every window.
func Evaluate(spec *Spec, in EvalInput) Contribution {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return skipped("", ReasonNoCoupon)
	}
	if spec == nil || !strings.EqualFold(spec.Code, code) {
		return skipped(code, ReasonNotFound)
	}
	if !spec.MatchesLines(in.Lines) {
		return skipped(spec.Code, ReasonOutOfScope)
	}
	if in.Now.IsZero() || !spec.ActiveAt(in.Now) {
		return skipped(spec.Code, ReasonInactive)
	}
	if !spec.AllowsCountry(in.Country) {
		return skipped(spec.Code, ReasonCountryRestricted)
	}
	return Contribution{
		Code:    spec.Code,
		Amount:  pricing.DiscountAmount(in.SubTotal, spec.Discount()),
		Applied: true,
		Reason:  ReasonApplied,
	}
}

// MatchesLines reports whether the scope is satisfied by at least one line.
func (s Spec) MatchesLines(lines []pricing.OrderLine) bool {
	switch s.Scope {
	case ScopeProducts:
		targets := idSet(s.ProductIDs)
		for _, line := range lines {
			if _, ok := targets[line.ProductID]; ok {
				return true
			}
		}
		return false
	case ScopeCategories:
		targets := idSet(s.CategoryIDs)
		for _, line := range lines {
			for _, id := range line.CategoryIDs {
				if _, ok := targets[id]; ok {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}

// AllowsCountry is true when the coupon has no country restriction or lists country.
func (s Spec) AllowsCountry(country string) bool {
	if len(s.Countries) == 0 {
		return true
	}
	country = strings.TrimSpace(country)
	for _, c := range s.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
