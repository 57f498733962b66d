package market

import "github.com/shopspring/decimal"

// PointsToPrice converts a distance expressed in points to price units.
func PointsToPrice(points float64, info SymbolInfo) float64 {
	return points * info.Point
}

// PriceToPoints converts a price distance to points.
func PriceToPoints(price float64, info SymbolInfo) float64 {
	if info.Point <= 0 {
		return 0
	}
	return price / info.Point
}

// PipSize returns the pip size for the symbol. On 5- and 3-digit quotes
// a pip is ten points; otherwise pip and point coincide.
func PipSize(info SymbolInfo) float64 {
	if info.Digits == 5 || info.Digits == 3 {
		return info.Point * 10
	}
	return info.Point
}

// NormalizeLots rounds a raw lot size down to the broker's lot step and
// clamps it to the min/max lot bounds. Decimal arithmetic avoids the
// float drift that makes 0.07000000001-style volumes rejected by MT5.
func NormalizeLots(lots float64, info SymbolInfo) float64 {
	if lots <= 0 {
		return 0
	}
	step := info.LotStep
	if step <= 0 {
		step = 0.01
	}
	d := decimal.NewFromFloat(lots)
	ds := decimal.NewFromFloat(step)
	normalized, _ := d.Div(ds).Floor().Mul(ds).Float64()

	if info.MinLot > 0 && normalized < info.MinLot {
		return info.MinLot
	}
	if info.MaxLot > 0 && normalized > info.MaxLot {
		return info.MaxLot
	}
	return normalized
}
