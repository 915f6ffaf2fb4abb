package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// DefaultCurrency is used when neither caller nor configuration name one.
const DefaultCurrency = "HNL"

// Round2 rounds a monetary or quantity value half away from zero to two decimals
// for presentation. Internal math keeps full precision.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// NormalizeCurrency validates an ISO-4217 code, falling back to fallback when empty.
func NormalizeCurrency(code, fallback string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = fallback
	}
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: currency %q", ErrInvalidInput, code)
	}
	return unit.String(), nil
}
