package calculator

import "errors"

var (
	// ErrInsufficientData is returned when the input is shorter than the indicator needs.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidWindow is returned for a non-positive window.
	ErrInvalidWindow = errors.New("window must be positive")
)

// Value is one slot of a derived series. Valid is false until the
// indicator has seen enough history to produce a number.
type Value struct {
	V     float64
	Valid bool
}

func defined(v float64) Value { return Value{V: v, Valid: true} }

// Series is a derived indicator series aligned 1:1 with its input.
type Series []Value

// At returns the value at index i and whether it is defined.
// Out-of-range indexes are reported as undefined.
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i].V, s[i].Valid
}

// Last returns the most recent value and whether it is defined.
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}
