package order

import (
	"math"
	"strconv"
)

// Perp prices carry at most 6 decimal places before the size-decimals
// deduction; the exchange additionally caps prices at 5 significant figures.
const (
	perpPxDecimals = 6
	pxSigfigs      = 5
)

// RoundToSigfigs rounds x to the given number of significant figures.
func RoundToSigfigs(x float64, figs int) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	s := strconv.FormatFloat(x, 'g', figs, 64)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return x
	}
	return v
}

// RoundToDecimals rounds x to the given number of fractional digits.
// Negative decimals round to powers of ten left of the point.
func RoundToDecimals(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if decimals >= 0 {
		p := math.Pow10(decimals)
		return math.Round(x*p) / p
	}
	p := math.Pow10(-decimals)
	return math.Round(x/p) * p
}

// RoundPrice snaps a computed perp price onto the exchange's tick grid:
// 5 significant figures, then 6-szDecimals fractional digits. The result
// always survives wire conversion exactly, so offset and bracket prices
// derived from floating-point mids can be fed straight into the builder.
func RoundPrice(px float64, szDecimals int) float64 {
	px = RoundToSigfigs(px, pxSigfigs)
	return RoundToDecimals(px, perpPxDecimals-szDecimals)
}

// RoundSize snaps an order size onto the asset's lot grid.
func RoundSize(sz float64, szDecimals int) float64 {
	return RoundToDecimals(sz, szDecimals)
}
