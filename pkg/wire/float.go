package wire

import (
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// The exchange accepts at most 8 fractional digits and tolerates no
// rounding drift beyond 1e-12 between the wire string and the source value.
const (
	wireDecimals  = 8
	wireTolerance = 1e-12
)

// PrecisionError reports a value that has no exchange-exact decimal
// representation at wire precision. An order carrying such a value must
// never be submitted.
type PrecisionError struct {
	Value float64
}

func (e *PrecisionError) Error() string {
	return fmt.Sprintf("wire: value %v not representable within %g at %d decimals", e.Value, wireTolerance, wireDecimals)
}

// FloatToWire converts a price or size to the exchange's wire string.
// The result has no trailing zeros and at most 8 fractional digits;
// negative zero normalizes to "0". Returns *PrecisionError if the fixed
// 8-decimal rendering drifts from x by 1e-12 or more.
//
// Every numeric field that crosses the wire goes through this function.
func FloatToWire(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", &PrecisionError{Value: x}
	}

	rounded := strconv.FormatFloat(x, 'f', wireDecimals, 64)
	back, err := strconv.ParseFloat(rounded, 64)
	if err != nil {
		return "", &PrecisionError{Value: x}
	}
	if math.Abs(back-x) >= wireTolerance {
		return "", &PrecisionError{Value: x}
	}

	// Exact decimal normalization strips trailing zeros and folds -0 to 0.
	d, err := decimal.NewFromString(rounded)
	if err != nil {
		return "", fmt.Errorf("wire: normalize %q: %w", rounded, err)
	}
	return d.String(), nil
}

// WireToFloat parses an exchange decimal string back to a float64.
func WireToFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: parse %q: %w", s, err)
	}
	return v, nil
}
