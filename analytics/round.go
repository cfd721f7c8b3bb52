package analytics

import "github.com/shopspring/decimal"

// ratio divides num by den and rounds half away from zero to places
// decimals. A zero denominator yields 0.
func ratio(num, den int64, places int32) float64 {
	if den == 0 {
		return 0
	}
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)).Round(places).InexactFloat64()
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
