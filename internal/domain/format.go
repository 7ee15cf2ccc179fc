package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayDigits number of significant digits used for prices and amounts.
const DisplayDigits = 6

// FormatSignificant renders v with the given number of significant digits,
// keeping trailing zeros ("2.5" with 6 digits is "2.50000").
func FormatSignificant(v decimal.Decimal, digits int) string {
	if digits <= 0 {
		digits = DisplayDigits
	}
	if v.IsZero() {
		return decimal.Zero.StringFixed(int32(digits - 1))
	}

	places := int32(digits) - 1 - magnitude(v)
	rounded := v.Round(places)
	// rounding may carry into a new leading digit (9.999995 -> 10.0000)
	if magnitude(rounded) != magnitude(v) {
		places = int32(digits) - 1 - magnitude(rounded)
		rounded = v.Round(places)
	}
	if places < 0 {
		return rounded.StringFixed(0)
	}
	return rounded.StringFixed(places)
}

// FormatDisplay is FormatSignificant with DisplayDigits.
func FormatDisplay(v decimal.Decimal) string {
	return FormatSignificant(v, DisplayDigits)
}

// magnitude returns floor(log10(|v|)) for non-zero v.
func magnitude(v decimal.Decimal) int32 {
	coef := strings.TrimPrefix(v.Coefficient().String(), "-")
	return int32(len(coef)) - 1 + v.Exponent()
}
