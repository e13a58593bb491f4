package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine describes one product or variant entry of an order.
type OrderLine struct {
	ProductID   uuid.UUID    `json:"productId"`
	VariantID   *uuid.UUID   `json:"variantId,omitempty"`
	CategoryIDs []uuid.UUID  `json:"categoryIds,omitempty"`
	UnitPrice   Money        `json:"unitPrice"`
	Quantity    int          `json:"quantity"`
	Discount    DiscountSpec `json:"discount"`
}

// DiscountedUnitPrice is the unit price after the line discount.
func (l OrderLine) DiscountedUnitPrice(p DiscountPolicy) Money {
	return p.DiscountedUnitPrice(l.UnitPrice, l.Discount)
}

// Total is the discounted unit price times quantity.
func (l OrderLine) Total(p DiscountPolicy) Money {
	return l.DiscountedUnitPrice(p).Mul(l.Quantity)
}

func (l OrderLine) validate(idx int) error {
	if l.Quantity <= 0 {
		return Invalid(fmt.Sprintf("lines[%d].quantity", idx), "must be greater than zero")
	}
	if err := l.Discount.Validate(); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Field = fmt.Sprintf("lines[%d].%s", idx, ve.Field)
		}
		return err
	}
	return nil
}

// CouponContribution is the evaluated monetary effect of the order's coupon.
type CouponContribution struct {
	Code   string `json:"code,omitempty"`
	Amount Money  `json:"amount"`
}

// TaxSettings configures tax for one computation.
type TaxSettings struct {
	Rate              decimal.Decimal `json:"rate"`
	AppliesToShipping bool            `json:"appliesToShipping"`
}

// OrderInput gathers everything ComputeOrderSummary needs. Callers load it; the
// computation itself performs no I/O.
type OrderInput struct {
	Lines         []OrderLine
	OrderDiscount DiscountSpec
	Coupon        CouponContribution
	Tax           TaxSettings
	Shipping      Money
	Refund        Money
	Policy        DiscountPolicy
}

// OrderSummary is the monetary breakdown of an order.
type OrderSummary struct {
	SubTotal         Money `json:"subTotal"`
	TaxAmount        Money `json:"taxAmount"`
	SubTotalAfterTax Money `json:"subTotalAfterTax"`
	CouponAmount     Money `json:"couponAmount"`
	OrderDiscount    Money `json:"orderDiscount"`
	ShippingCost     Money `json:"shippingCost"`
	RefundAmount     Money `json:"refundAmount"`
	NetAmount        Money `json:"netAmount"`
}

// FormattedSummary pairs each summary field with its currency rendering.
type FormattedSummary struct {
	SubTotal         string `json:"subTotal"`
	TaxAmount        string `json:"taxAmount"`
	SubTotalAfterTax string `json:"subTotalAfterTax"`
	CouponAmount     string `json:"couponAmount"`
	OrderDiscount    string `json:"orderDiscount"`
	ShippingCost     string `json:"shippingCost"`
	RefundAmount     string `json:"refundAmount"`
	NetAmount        string `json:"netAmount"`
}

// SubTotal sums the discounted line totals.
func SubTotal(lines []OrderLine, p DiscountPolicy) (Money, error) {
	total := Zero()
	for i, line := range lines {
		if err := line.validate(i); err != nil {
			return Zero(), err
		}
		total = total.Add(line.Total(p))
	}
	return total, nil
}

// ComputeOrderSummary folds line totals, the order discount, the coupon, tax,
// shipping and refunds into an OrderSummary. The input is never modified.
func ComputeOrderSummary(in OrderInput) (OrderSummary, error) {
	if err := in.OrderDiscount.Validate(); err != nil {
		return OrderSummary{}, err
	}
	if in.Tax.Rate.IsNegative() {
		return OrderSummary{}, Invalid("tax.rate", "must not be negative")
	}
	subTotal, err := SubTotal(in.Lines, in.Policy)
	if err != nil {
		return OrderSummary{}, err
	}

	orderDiscount := DiscountAmount(subTotal, in.OrderDiscount)

	taxable := subTotal
	if in.Tax.AppliesToShipping {
		taxable = taxable.Add(in.Shipping)
	}
	tax := taxable.Percent(in.Tax.Rate)

	net := subTotal.
		Add(tax).
		Sub(in.Coupon.Amount).
		Sub(orderDiscount).
		Add(in.Shipping).
		Sub(in.Refund)

	return OrderSummary{
		SubTotal:         subTotal,
		TaxAmount:        tax,
		SubTotalAfterTax: subTotal.Add(tax),
		CouponAmount:     in.Coupon.Amount,
		OrderDiscount:    orderDiscount,
		ShippingCost:     in.Shipping,
		RefundAmount:     in.Refund,
		NetAmount:        net,
	}, nil
}

// Format renders every field with cs.
func (s OrderSummary) Format(cs CurrencySettings) FormattedSummary {
	return FormattedSummary{
		SubTotal:         FormatMoney(s.SubTotal, cs),
		TaxAmount:        FormatMoney(s.TaxAmount, cs),
		SubTotalAfterTax: FormatMoney(s.SubTotalAfterTax, cs),
		CouponAmount:     FormatMoney(s.CouponAmount, cs),
		OrderDiscount:    FormatMoney(s.OrderDiscount, cs),
		ShippingCost:     FormatMoney(s.ShippingCost, cs),
		RefundAmount:     FormatMoney(s.RefundAmount, cs),
		NetAmount:        FormatMoney(s.NetAmount, cs),
	}
}
