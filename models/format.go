package models

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatNumber renders a value for user-facing output. Large magnitudes
// (>10,000) get thousands separators and no decimals, small magnitudes (<1)
// get four decimals, everything else gets thousands separators and two
// decimals. Rounding is half-away-from-zero. Every number surfaced as text
// anywhere in the service goes through this.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	d := decimal.NewFromFloat(v)
	abs := d.Abs()

	switch {
	case abs.GreaterThan(decimal.NewFromInt(10000)):
		return groupThousands(d.StringFixed(0))
	case abs.LessThan(decimal.NewFromInt(1)):
		return d.StringFixed(4)
	default:
		return groupThousands(d.StringFixed(2))
	}
}

// FormatNumberPtr is FormatNumber for optional values; nil stays nil.
func FormatNumberPtr(v *float64) *string {
	if v == nil {
		return nil
	}
	s := FormatNumber(*v)
	return &s
}

// groupThousands inserts comma separators into the integer part of a
// fixed-point decimal string, preserving sign and fraction.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i:]
	}

	if len(intPart) <= 3 {
		return sign + intPart + fracPart
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + fracPart
}
