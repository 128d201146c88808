// Package numeric provides bounded-value helpers shared by the sizing and
// compliance code: exact decimal truncation, clamping and optional limits.
package numeric

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Truncate cuts value to the given number of decimal digits without rounding.
// The math goes through a fixed-decimal representation so the result is the
// exact truncated value rather than the nearest binary float of a
// multiply/divide round trip.
func Truncate(value float64, digits int32) float64 {
	if digits < 0 {
		digits = 0
	}
	truncated := decimal.NewFromFloat(value).Truncate(digits)
	out, err := strconv.ParseFloat(truncated.StringFixed(digits), 64)
	if err != nil {
		f, _ := truncated.Float64()
		return f
	}
	return out
}

// Clamp bounds value into [minVal, maxVal].
func Clamp(minVal, maxVal, value float64) float64 {
	if value > maxVal {
		return maxVal
	}
	if value < minVal {
		return minVal
	}
	return value
}

// Limit is an optional numeric field. Exchanges omit limit values they do not
// enforce; the zero value of Limit models "absent" so absent never leaks into
// comparisons as zero or NaN.
type Limit struct {
	value   float64
	present bool
}

// LimitOf returns a present Limit holding v.
func LimitOf(v float64) Limit {
	return Limit{value: v, present: true}
}

func (l Limit) Present() bool {
	return l.present
}

// Get returns the held value and whether it is present.
func (l Limit) Get() (float64, bool) {
	return l.value, l.present
}

// Or returns the held value, or def when absent.
func (l Limit) Or(def float64) float64 {
	if l.present {
		return l.value
	}
	return def
}

// Positive reports whether the limit is present with a value greater than
// zero, the validity rule exchanges imply for min/max bounds.
func (l Limit) Positive() bool {
	return l.present && l.value > 0
}
