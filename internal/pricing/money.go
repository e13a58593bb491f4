package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept by every monetary value.
const MoneyScale int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is a fixed-point amount with two fractional digits. Values are always
// truncated toward zero at construction, never rounded.
type Money struct {
	amount decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money { return Money{} }

// Truncate2 drops every digit past the second fractional digit.
func Truncate2(d decimal.Decimal) Money {
	return Money{amount: d.Truncate(MoneyScale)}
}

// NewMoney parses a decimal string such as "19.99".
func NewMoney(value string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return Truncate2(d), nil
}

// MustMoney is NewMoney for literals; it panics on malformed input.
func MustMoney(value string) Money {
	m, err := NewMoney(value)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMoneyOrZero converts loosely typed boundary input (form fields, settings
// rows, CSV cells) into Money. Blank, null-like and malformed input all become 0.00.
func ParseMoneyOrZero(value string) Money {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", "null", "nil":
		return Zero()
	}
	m, err := NewMoney(trimmed)
	if err != nil {
		return Zero()
	}
	return m
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.amount }

// Add returns m + o.
func (m Money) Add(o Money) Money { return Truncate2(m.amount.Add(o.amount)) }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Truncate2(m.amount.Sub(o.amount)) }

// Mul multiplies by an integer quantity.
func (m Money) Mul(qty int) Money {
	return Truncate2(m.amount.Mul(decimal.NewFromInt(int64(qty))))
}

// Percent returns m * pct / 100, truncated.
func (m Money) Percent(pct decimal.Decimal) Money {
	return Truncate2(m.amount.Mul(pct).Div(hundred))
}

// Equal compares numerically, so 1.5 and 1.50 are equal.
func (m Money) Equal(o Money) bool { return m.amount.Equal(o.amount) }

// IsZero reports whether the value is 0.00.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsNegative reports whether the value is below zero.
func (m Money) IsNegative() bool { return m.amount.IsNegative() }

// UnmarshalJSON accepts quoted or bare numbers; null and "" decode to zero.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*m = Zero()
		return nil
	}
	raw = strings.Trim(raw, `"`)
	parsed, err := NewMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner so NUMERIC columns can be read directly.
func (m *Money) Scan(value any) error {
	if value == nil {
		*m = Zero()
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = Truncate2(d)
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
