package indicators

import (
	"math"

	"fortuneBot/internal/domain"
)

// PctChange returns the fractional change from the previous value. Row 0 is undefined.
func PctChange(values []float64) []float64 {
	out := undefinedSeries(len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 || !domain.Defined(prev, values[i]) {
			continue
		}
		out[i] = (values[i] - prev) / prev
	}
	return out
}

// RollingStd returns the sample standard deviation over period values.
func RollingStd(values []float64, period int) []float64 {
	out := undefinedSeries(len(values))
	if period < 2 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if !domain.Defined(window...) {
			continue
		}
		out[i] = sampleStd(window)
	}
	return out
}

// Volatility is the rolling standard deviation of close-to-close returns.
func Volatility(closes []float64, period int) []float64 {
	return RollingStd(PctChange(closes), period)
}

func sampleStd(values []float64) float64 {
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
