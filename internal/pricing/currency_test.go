package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMoneyDefaults(t *testing.T) {
	cs := DefaultCurrencySettings()
	require.Equal(t, "$1,234,567.89", FormatMoney(MustMoney("1234567.891"), cs))
	require.Equal(t, "$0.50", FormatMoney(MustMoney("0.5"), cs))
	require.Equal(t, "-$1,000.00", FormatMoney(MustMoney("-1000"), cs))
}

func TestFormatMoneyPositionAndSeparators(t *testing.T) {
	cs := CurrencySettings{
		Code:              "EUR",
		Symbol:            "€",
		Position:          PositionAfterSpace,
		Format:            FormatSymbol,
		DecimalSeparator:  ",",
		ThousandSeparator: ".",
	}
	require.Equal(t, "12.345,60 €", FormatMoney(MustMoney("12345.6"), cs))

	cs.Format = FormatCode
	cs.Position = PositionBeforeSpace
	require.Equal(t, "EUR 12.345,60", FormatMoney(MustMoney("12345.6"), cs))

	cs.Position = PositionAfter
	cs.ThousandSeparator = ""
	require.Equal(t, "12345,60EUR", FormatMoney(MustMoney("12345.6"), cs))
}

func TestFormatOptionalMoneyNil(t *testing.T) {
	require.Equal(t, "$0.00", FormatOptionalMoney(nil, DefaultCurrencySettings()))
}

func TestFormatFallsBackToCodeWithoutSymbol(t *testing.T) {
	cs := CurrencySettings{Code: "idr", Position: PositionBeforeSpace}
	require.Equal(t, "IDR 15,000.00", FormatMoney(MustMoney("15000"), cs))
}

func TestCurrencySettingsValidate(t *testing.T) {
	require.NoError(t, DefaultCurrencySettings().Validate())
	require.Error(t, CurrencySettings{Code: "XXQ"}.Validate())
	require.Error(t, CurrencySettings{Code: "USD", Position: "middle"}.Validate())
	require.Error(t, CurrencySettings{Code: "USD", Format: "long"}.Validate())
}
