package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountKind tags the variant of a DiscountSpec.
type DiscountKind string

const (
	// DiscountNone is the zero value and applies no discount.
	DiscountNone DiscountKind = ""
	// DiscountPercentage takes Value percent off the base price.
	DiscountPercentage DiscountKind = "percentage"
	// DiscountFixedAmount takes Value off each unit.
	DiscountFixedAmount DiscountKind = "fixed_amount"
)

// ParseDiscountKind normalises the spellings found in stored data and request payloads.
func ParseDiscountKind(value string) (DiscountKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return DiscountNone, nil
	case "percentage", "percent", "percentage_discount":
		return DiscountPercentage, nil
	case "fixed_amount", "fixed", "fixed_price", "amount":
		return DiscountFixedAmount, nil
	default:
		return DiscountNone, Invalid("discount.kind", "unknown discount kind "+value)
	}
}

// DiscountSpec describes a discount to apply to a base price.
type DiscountSpec struct {
	Kind  DiscountKind    `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// Percentage builds a percentage discount from a decimal literal.
func Percentage(value string) DiscountSpec {
	return DiscountSpec{Kind: DiscountPercentage, Value: decimal.RequireFromString(value)}
}

// FixedAmount builds a fixed-amount discount from a decimal literal.
func FixedAmount(value string) DiscountSpec {
	return DiscountSpec{Kind: DiscountFixedAmount, Value: decimal.RequireFromString(value)}
}

// Validate rejects unknown kinds and negative values.
func (s DiscountSpec) Validate() error {
	switch s.Kind {
	case DiscountNone, DiscountPercentage, DiscountFixedAmount:
	default:
		return Invalid("discount.kind", "unknown discount kind "+string(s.Kind))
	}
	if s.Value.IsNegative() {
		return Invalid("discount.value", "must not be negative")
	}
	return nil
}

// DiscountPolicy carries behaviour switches for discount arithmetic.
type DiscountPolicy struct {
	// ClampNegativePrice floors discounted unit prices at zero. When false a
	// fixed discount larger than the price yields a negative price.
	ClampNegativePrice bool
}

// DiscountedUnitPrice applies spec to base using the default policy (negative prices allowed).
func DiscountedUnitPrice(base Money, spec DiscountSpec) Money {
	return DiscountPolicy{}.DiscountedUnitPrice(base, spec)
}

// DiscountedUnitPrice applies spec to base.
func (p DiscountPolicy) DiscountedUnitPrice(base Money, spec DiscountSpec) Money {
	var price Money
	switch spec.Kind {
	case DiscountPercentage:
		off := base.Decimal().Mul(spec.Value).Div(hundred)
		price = Truncate2(base.Decimal().Sub(off))
	case DiscountFixedAmount:
		price = Truncate2(base.Decimal().Sub(spec.Value))
	default:
		price = base
	}
	if p.ClampNegativePrice && price.IsNegative() {
		return Zero()
	}
	return price
}

// DiscountAmount returns how much spec takes off base.
//
// A percentage discount is per unit and ignores quantity. A fixed discount is
// multiplied by quantity when one is supplied; otherwise it is returned once.
func DiscountAmount(base Money, spec DiscountSpec, quantity ...int) Money {
	switch spec.Kind {
	case DiscountPercentage:
		return base.Percent(spec.Value)
	case DiscountFixedAmount:
		if len(quantity) > 0 {
			return Truncate2(spec.Value.Mul(decimal.NewFromInt(int64(quantity[0]))))
		}
		return Truncate2(spec.Value)
	default:
		return Zero()
	}
}
