package pricing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func moneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -MoneyScale)}
}

func TestComputeOrderSummaryScenario(t *testing.T) {
	in := OrderInput{
		Lines: []OrderLine{
			{ProductID: uuid.New(), UnitPrice: MustMoney("50.00"), Quantity: 2},
			{ProductID: uuid.New(), UnitPrice: MustMoney("20.00"), Quantity: 1, Discount: Percentage("50")},
		},
		OrderDiscount: FixedAmount("5"),
		Tax:           TaxSettings{Rate: decimal.NewFromInt(10)},
		Shipping:      MustMoney("7.50"),
	}
	summary, err := ComputeOrderSummary(in)
	require.NoError(t, err)
	require.Equal(t, "110.00", summary.SubTotal.String())
	require.Equal(t, "5.00", summary.OrderDiscount.String())
	require.Equal(t, "11.00", summary.TaxAmount.String())
	require.Equal(t, "121.00", summary.SubTotalAfterTax.String())
	require.Equal(t, "0.00", summary.CouponAmount.String())
	require.Equal(t, "123.50", summary.NetAmount.String())

	formatted := summary.Format(DefaultCurrencySettings())
	require.Equal(t, "$123.50", formatted.NetAmount)
	require.Equal(t, "$7.50", formatted.ShippingCost)
}

func TestComputeOrderSummaryTaxOnShipping(t *testing.T) {
	in := OrderInput{
		Lines:    []OrderLine{{UnitPrice: MustMoney("100.00"), Quantity: 1}},
		Tax:      TaxSettings{Rate: decimal.RequireFromString("7.5"), AppliesToShipping: true},
		Shipping: MustMoney("10.00"),
	}
	summary, err := ComputeOrderSummary(in)
	require.NoError(t, err)
	require.Equal(t, "8.25", summary.TaxAmount.String())
	require.Equal(t, "118.25", summary.NetAmount.String())
}

func TestComputeOrderSummaryCouponAndRefund(t *testing.T) {
	in := OrderInput{
		Lines:    []OrderLine{{UnitPrice: MustMoney("19.99"), Quantity: 3}},
		Coupon:   CouponContribution{Code: "SAVE", Amount: MustMoney("6.00")},
		Tax:      TaxSettings{Rate: decimal.RequireFromString("11")},
		Refund:   MustMoney("2.50"),
		Shipping: MustMoney("4.00"),
	}
	summary, err := ComputeOrderSummary(in)
	require.NoError(t, err)
	require.Equal(t, "59.97", summary.SubTotal.String())
	// 59.97 * 11% = 6.5967 -> 6.59
	require.Equal(t, "6.59", summary.TaxAmount.String())
	require.Equal(t, "6.00", summary.CouponAmount.String())
	require.Equal(t, "2.50", summary.RefundAmount.String())
	require.Equal(t, "62.06", summary.NetAmount.String())
}

func TestComputeOrderSummaryDoesNotMutateInput(t *testing.T) {
	lines := []OrderLine{{UnitPrice: MustMoney("10.00"), Quantity: 2, Discount: FixedAmount("1")}}
	in := OrderInput{Lines: lines}
	_, err := ComputeOrderSummary(in)
	require.NoError(t, err)
	require.Equal(t, "10.00", lines[0].UnitPrice.String())
	require.Equal(t, 2, lines[0].Quantity)

	first, _ := ComputeOrderSummary(in)
	second, _ := ComputeOrderSummary(in)
	require.Equal(t, first, second)
}

func TestComputeOrderSummaryValidation(t *testing.T) {
	_, err := ComputeOrderSummary(OrderInput{Lines: []OrderLine{{UnitPrice: MustMoney("1"), Quantity: 0}}})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "lines[0].quantity", ve.Field)

	_, err = ComputeOrderSummary(OrderInput{
		Lines: []OrderLine{{UnitPrice: MustMoney("1"), Quantity: 1, Discount: DiscountSpec{Kind: "weird"}}},
	})
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "lines[0].discount.kind", ve.Field)

	_, err = ComputeOrderSummary(OrderInput{Tax: TaxSettings{Rate: decimal.NewFromInt(-1)}})
	require.True(t, errors.As(err, &ve))

	_, err = ComputeOrderSummary(OrderInput{OrderDiscount: DiscountSpec{Kind: DiscountPercentage, Value: decimal.NewFromInt(-3)}})
	require.True(t, errors.As(err, &ve))
}

func TestNetAmountInvariantHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	randMoney := func(maxCents int64) Money { return moneyFromCents(rng.Int63n(maxCents)) }

	for i := 0; i < 500; i++ {
		lines := make([]OrderLine, rng.Intn(5)+1)
		for j := range lines {
			lines[j] = OrderLine{UnitPrice: randMoney(100_000), Quantity: rng.Intn(9) + 1}
			switch rng.Intn(3) {
			case 1:
				lines[j].Discount = DiscountSpec{Kind: DiscountPercentage, Value: decimal.New(rng.Int63n(10_000), -2)}
			case 2:
				lines[j].Discount = DiscountSpec{Kind: DiscountFixedAmount, Value: decimal.New(rng.Int63n(5_000), -2)}
			}
		}
		in := OrderInput{
			Lines:         lines,
			OrderDiscount: DiscountSpec{Kind: DiscountPercentage, Value: decimal.New(rng.Int63n(3_000), -2)},
			Coupon:        CouponContribution{Amount: randMoney(5_000)},
			Tax:           TaxSettings{Rate: decimal.New(rng.Int63n(2_500), -2), AppliesToShipping: rng.Intn(2) == 0},
			Shipping:      randMoney(3_000),
			Refund:        randMoney(2_000),
		}
		s, err := ComputeOrderSummary(in)
		require.NoError(t, err)

		expected := s.SubTotal.Decimal().
			Add(s.TaxAmount.Decimal()).
			Sub(s.CouponAmount.Decimal()).
			Sub(s.OrderDiscount.Decimal()).
			Add(s.ShippingCost.Decimal()).
			Sub(s.RefundAmount.Decimal())
		require.True(t, expected.Equal(s.NetAmount.Decimal()), "iteration %d: %s != %s", i, expected, s.NetAmount)
		require.True(t, s.NetAmount.Decimal().Equal(s.NetAmount.Decimal().Truncate(MoneyScale)))
	}
}
