package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTruncate2DoesNotRound(t *testing.T) {
	require.Equal(t, "19.99", Truncate2(decimal.RequireFromString("19.995")).String())
	require.Equal(t, "0.01", Truncate2(decimal.RequireFromString("0.019")).String())
	require.Equal(t, "-5.00", Truncate2(decimal.RequireFromString("-5.009")).String())
}

func TestParseMoneyOrZero(t *testing.T) {
	cases := map[string]string{
		"":        "0.00",
		"   ":     "0.00",
		"null":    "0.00",
		"abc":     "0.00",
		"12.345":  "12.34",
		" 7.5 ":   "7.50",
		"-3.999":  "-3.99",
		"1000000": "1000000.00",
	}
	for in, want := range cases {
		require.Equal(t, want, ParseMoneyOrZero(in).String(), "input %q", in)
	}
}

func TestPercentageDiscount(t *testing.T) {
	base := MustMoney("100.00")
	spec := Percentage("10")
	require.Equal(t, "90.00", DiscountedUnitPrice(base, spec).String())
	require.Equal(t, "10.00", DiscountAmount(base, spec).String())
	require.Equal(t, "10.00", DiscountAmount(base, spec, 3).String(), "percentage ignores quantity")
}

func TestPercentageTruncatesFinalPrice(t *testing.T) {
	base := MustMoney("10.00")
	spec := Percentage("33.33")
	require.Equal(t, "6.66", DiscountedUnitPrice(base, spec).String())
	require.Equal(t, "3.33", DiscountAmount(base, spec).String())
}

func TestFixedDiscountScaling(t *testing.T) {
	base := MustMoney("100.00")
	spec := FixedAmount("5")
	require.Equal(t, "15.00", DiscountAmount(base, spec, 3).String())
	require.Equal(t, "5.00", DiscountAmount(base, spec).String())
	require.Equal(t, "95.00", DiscountedUnitPrice(base, spec).String())
}

func TestFixedDiscountAllowsNegativePrice(t *testing.T) {
	price := DiscountedUnitPrice(MustMoney("10.00"), FixedAmount("15"))
	require.Equal(t, "-5.00", price.String())
}

func TestDiscountPolicyClampsWhenEnabled(t *testing.T) {
	policy := DiscountPolicy{ClampNegativePrice: true}
	require.Equal(t, "0.00", policy.DiscountedUnitPrice(MustMoney("10.00"), FixedAmount("15")).String())
	require.Equal(t, "4.00", policy.DiscountedUnitPrice(MustMoney("10.00"), FixedAmount("6")).String())
}

func TestNoDiscountLeavesPrice(t *testing.T) {
	base := MustMoney("42.42")
	require.Equal(t, "42.42", DiscountedUnitPrice(base, DiscountSpec{}).String())
	require.True(t, DiscountAmount(base, DiscountSpec{}, 4).IsZero())
}

func TestDiscountSpecValidate(t *testing.T) {
	require.NoError(t, Percentage("0").Validate())
	require.NoError(t, DiscountSpec{}.Validate())

	err := DiscountSpec{Kind: DiscountFixedAmount, Value: decimal.NewFromInt(-1)}.Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "discount.value", ve.Field)

	err = DiscountSpec{Kind: "bogus", Value: decimal.NewFromInt(1)}.Validate()
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "discount.kind", ve.Field)
}

func TestParseDiscountKind(t *testing.T) {
	kind, err := ParseDiscountKind("Percent")
	require.NoError(t, err)
	require.Equal(t, DiscountPercentage, kind)

	kind, err = ParseDiscountKind("fixed")
	require.NoError(t, err)
	require.Equal(t, DiscountFixedAmount, kind)

	kind, err = ParseDiscountKind("")
	require.NoError(t, err)
	require.Equal(t, DiscountNone, kind)

	_, err = ParseDiscountKind("bogo")
	require.Error(t, err)
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	require.NoError(t, m.UnmarshalJSON([]byte(`"12.349"`)))
	require.Equal(t, "12.34", m.String())
	require.NoError(t, m.UnmarshalJSON([]byte(`7`)))
	require.Equal(t, "7.00", m.String())
	require.NoError(t, m.UnmarshalJSON([]byte(`null`)))
	require.True(t, m.IsZero())

	out, err := MustMoney("3.10").MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"3.10"`, string(out))
}
