package pricing

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineRequest is the wire form of an order line. Prices arrive as strings and
// are parsed with ParseMoneyOrZero. Category memberships are never taken from
// the client; coupon evaluation reads them from the catalog.
type LineRequest struct {
	ProductID     string `json:"productId" validate:"required,uuid"`
	VariantID     string `json:"variantId,omitempty" validate:"omitempty,uuid"`
	UnitPrice     string `json:"unitPrice"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	DiscountKind  string `json:"discountKind,omitempty"`
	DiscountValue string `json:"discountValue,omitempty"`
}

// DiscountRequest is the wire form of a DiscountSpec.
type DiscountRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Spec parses the request. A blank request means no discount.
func (r DiscountRequest) Spec(field string) (DiscountSpec, error) {
	kind, err := ParseDiscountKind(r.Kind)
	if err != nil {
		return DiscountSpec{}, Invalid(field+".kind", err.(*ValidationError).Reason)
	}
	value := decimal.Zero
	if raw := strings.TrimSpace(r.Value); raw != "" {
		value, err = decimal.NewFromString(raw)
		if err != nil {
			return DiscountSpec{}, Invalid(field+".value", "must be a decimal number")
		}
	}
	spec := DiscountSpec{Kind: kind, Value: value}
	if err := spec.Validate(); err != nil {
		ve := err.(*ValidationError)
		return DiscountSpec{}, Invalid(field+strings.TrimPrefix(ve.Field, "discount"), ve.Reason)
	}
	return spec, nil
}

// OrderLine converts the request at position idx.
func (r LineRequest) OrderLine(idx int) (OrderLine, error) {
	field := fmt.Sprintf("lines[%d]", idx)
	productID, err := uuid.Parse(strings.TrimSpace(r.ProductID))
	if err != nil {
		return OrderLine{}, Invalid(field+".productId", "must be a UUID")
	}
	line := OrderLine{
		ProductID: productID,
		UnitPrice: ParseMoneyOrZero(r.UnitPrice),
		Quantity:  r.Quantity,
	}
	if v := strings.TrimSpace(r.VariantID); v != "" {
		variantID, err := uuid.Parse(v)
		if err != nil {
			return OrderLine{}, Invalid(field+".variantId", "must be a UUID")
		}
		line.VariantID = &variantID
	}
	line.Discount, err = DiscountRequest{Kind: r.DiscountKind, Value: r.DiscountValue}.Spec(field + ".discount")
	if err != nil {
		return OrderLine{}, err
	}
	if err := line.validate(idx); err != nil {
		return OrderLine{}, err
	}
	return line, nil
}

// LinesFromRequest converts every line, stopping at the first invalid one.
func LinesFromRequest(reqs []LineRequest) ([]OrderLine, error) {
	out := make([]OrderLine, 0, len(reqs))
	for i, r := range reqs {
		line, err := r.OrderLine(i)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, nil
}
