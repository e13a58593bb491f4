package pricing

import (
	"strings"

	"golang.org/x/text/currency"
)

// CurrencyPosition controls where the currency label is placed.
type CurrencyPosition string

const (
	PositionBefore      CurrencyPosition = "before"
	PositionAfter       CurrencyPosition = "after"
	PositionBeforeSpace CurrencyPosition = "before_space"
	PositionAfterSpace  CurrencyPosition = "after_space"
)

// CurrencyFormat selects the short symbol or the long ISO code as label.
type CurrencyFormat string

const (
	FormatSymbol CurrencyFormat = "symbol"
	FormatCode   CurrencyFormat = "code"
)

// CurrencySettings is the explicit formatting configuration passed to FormatMoney.
type CurrencySettings struct {
	Code              string           `json:"code"`
	Symbol            string           `json:"symbol"`
	Position          CurrencyPosition `json:"position"`
	Format            CurrencyFormat   `json:"format"`
	DecimalSeparator  string           `json:"decimalSeparator"`
	ThousandSeparator string           `json:"thousandSeparator"`
}

// DefaultCurrencySettings mirrors the store defaults used when nothing is configured.
func DefaultCurrencySettings() CurrencySettings {
	return CurrencySettings{
		Code:              "USD",
		Symbol:            "$",
		Position:          PositionBefore,
		Format:            FormatSymbol,
		DecimalSeparator:  ".",
		ThousandSeparator: ",",
	}
}

// Validate checks the ISO code and the enumerated options.
func (cs CurrencySettings) Validate() error {
	if _, err := currency.ParseISO(strings.TrimSpace(cs.Code)); err != nil {
		return Invalid("currency.code", "not an ISO 4217 code: "+cs.Code)
	}
	switch cs.Position {
	case "", PositionBefore, PositionAfter, PositionBeforeSpace, PositionAfterSpace:
	default:
		return Invalid("currency.position", "unknown position "+string(cs.Position))
	}
	switch cs.Format {
	case "", FormatSymbol, FormatCode:
	default:
		return Invalid("currency.format", "unknown format "+string(cs.Format))
	}
	return nil
}

// FormatOptionalMoney formats m, treating nil as 0.00.
func FormatOptionalMoney(m *Money, cs CurrencySettings) string {
	if m == nil {
		return FormatMoney(Zero(), cs)
	}
	return FormatMoney(*m, cs)
}

// FormatMoney renders m with the configured separators and currency label.
func FormatMoney(m Money, cs CurrencySettings) string {
	raw := m.String()
	neg := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")

	intPart, frac, _ := strings.Cut(raw, ".")
	decSep := cs.DecimalSeparator
	if decSep == "" {
		decSep = "."
	}
	number := groupThousands(intPart, cs.ThousandSeparator) + decSep + frac

	label := cs.label()
	var out string
	switch cs.Position {
	case PositionAfter:
		out = number + label
	case PositionAfterSpace:
		out = number + " " + label
	case PositionBeforeSpace:
		out = label + " " + number
	default:
		out = label + number
	}
	out = strings.TrimSpace(out)
	if neg {
		return "-" + out
	}
	return out
}

func (cs CurrencySettings) label() string {
	if cs.Format == FormatCode {
		return strings.ToUpper(strings.TrimSpace(cs.Code))
	}
	if cs.Symbol != "" {
		return cs.Symbol
	}
	return strings.ToUpper(strings.TrimSpace(cs.Code))
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sep)
		}
		b.WriteRune(c)
	}
	return b.String()
}
