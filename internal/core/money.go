// Package core provides the fueling domain model and the pure computations
// over it: the tri-field solver, the derived statistics recompute and the
// vehicle aggregator.
//
// This file contains the decimal helpers shared by the solver and the
// interchange codec.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Round rounds v to the given number of decimal places, half away from zero.
//
// The value is converted through its shortest decimal representation, so
// 36.3195 rounds to 36.32 even though its binary form is slightly below.
//
// Examples:
//
//	Round(36.3195, 2) -> 36.32
//	Round(2.5, 0)     -> 3
//	Round(-2.5, 0)    -> -3
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ParseAmount parses a canonical decimal string (dot separator, no thousands
// separators). Empty input yields 0 and ok=false so callers can treat the
// field as absent.
func ParseAmount(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, ErrInvalidAmount
	}
	if d.IsNegative() {
		return 0, false, ErrInvalidAmount
	}
	return d.InexactFloat64(), true, nil
}

// FormatAmount renders v as a canonical decimal with no exponent and no
// trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
