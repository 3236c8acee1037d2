package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered amount into whole currency units.
// Thousands separators are accepted and fractions are rounded half away from zero.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ValidationError{Field: "amount", Reason: "required"}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "must be a number"}
	}
	if d.IsNegative() {
		return 0, &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	rounded := d.Round(0)
	if !rounded.LessThan(decimal.NewFromInt(1 << 53)) {
		return 0, &ValidationError{Field: "amount", Reason: "too large"}
	}
	return rounded.IntPart(), nil
}
