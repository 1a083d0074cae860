// Package core provides money parsing and formatting utilities.
//
// Amounts and budgets are decimal values; they are parsed from form input
// and rendered with the symbol and code of the selected currency.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrencyCode is used when a user has no stored preference.
const DefaultCurrencyCode = "USD"

// DefaultCurrency is the fallback row when the currency table cannot be read.
var DefaultCurrency = Currency{Code: "USD", Symbol: "$", Name: "US Dollar"}

// maxIntegerDigits matches the NUMERIC(14, 2) amount columns.
const maxIntegerDigits = 12

// ParseAmount converts a form value to a non-negative decimal with two
// fractional digits.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted and the
// third decimal place is rounded half-up. Only plain digits are allowed, so
// signs and exponents are rejected. Empty, negative, non-numeric or
// oversized input yields ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,5")   -> 12.5, nil
//	ParseAmount("12.345") -> 12.35, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
//	ParseAmount("1e9")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if !isDigits(intPart) || !isDigits(fracPart) {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(strings.TrimLeft(intPart, "0")) > maxIntegerDigits {
		return decimal.Zero, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	// Digits past the third place cannot change the half-up result.
	if len(fracPart) > 3 {
		fracPart = fracPart[:3]
	}
	if fracPart != "" {
		intPart += "." + fracPart
	}
	d, err := decimal.NewFromString(intPart)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatAmount renders an amount with exactly two decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// FormatMoney renders symbol, two-decimal amount and code, e.g. "€19.75 EUR".
func FormatMoney(c Currency, amount decimal.Decimal) string {
	return c.Symbol + FormatAmount(amount) + " " + c.Code
}

// ResolveCurrency picks code out of the loaded currency rows, falling back to
// DefaultCurrency when the code is unknown.
func ResolveCurrency(currencies []Currency, code string) Currency {
	for _, c := range currencies {
		if c.Code == code {
			return c
		}
	}
	return DefaultCurrency
}
