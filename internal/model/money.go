package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a currency amount to minor units, rounding half away from zero.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts minor units to a currency amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// FormatCents renders minor units with two decimals, e.g. 22320 -> "223.20".
func FormatCents(c int64) string {
	return FromCents(c).StringFixed(2)
}

// ParseAmount parses a user-supplied amount into minor units. A comma is
// accepted as the decimal separator. More than two decimals is an error.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if !d.Mul(hundred).Equal(d.Mul(hundred).Floor()) {
		return 0, fmt.Errorf("amount %s has more than 2 decimal places", s)
	}
	return ToCents(d), nil
}

// AbsCents returns the absolute value of c.
func AbsCents(c int64) int64 {
	if c < 0 {
		return -c
	}
	return c
}
