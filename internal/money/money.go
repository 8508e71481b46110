// Package money converts between the decimal-string amounts used on the wire
// and the integer minor units used for storage and arithmetic. Balances never
// pass through a binary floating-point type.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minor-unit exponents per currency; currencies not listed use two.
var exponents = map[string]int32{
	"XAF": 0,
	"XOF": 0,
	"JPY": 0,
	"USD": 2,
	"EUR": 2,
	"GBP": 2,
}

const defaultExponent int32 = 2

// Exponent returns the number of minor-unit digits for a currency.
func Exponent(currency string) int32 {
	if exp, ok := exponents[currency]; ok {
		return exp
	}
	return defaultExponent
}

// ParseMinor parses a decimal amount string like "1000.00" into minor units
// of the given currency. Amounts with more precision than the currency carries
// are rejected rather than rounded.
func ParseMinor(amount, currency string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	shifted := d.Shift(Exponent(currency))
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("amount %q has more precision than %s allows", amount, currency)
	}
	big := shifted.BigInt()
	if !big.IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", amount)
	}
	return big.Int64(), nil
}

// FormatMinor renders minor units back into the currency's decimal form.
func FormatMinor(v int64, currency string) string {
	exp := Exponent(currency)
	return decimal.New(v, -exp).StringFixed(exp)
}
