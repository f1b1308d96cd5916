package indicators

import "fortuneBot/internal/domain"

// SMA returns the simple moving average over period values.
// Row i is defined once period defined values ending at i exist.
func SMA(values []float64, period int) []float64 {
	out := undefinedSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		if !domain.Defined(window...) {
			continue
		}
		out[i] = mean(window)
	}
	return out
}

// EMA returns the adjusted exponential moving average with alpha = 2/(span+1).
// Leading undefined values are skipped; a row is defined once span observations have been seen.
func EMA(values []float64, span int) []float64 {
	out := undefinedSeries(len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1 - alpha

	var num, den float64
	count := 0
	for i, v := range values {
		if !domain.Defined(v) {
			continue
		}
		num = v + decay*num
		den = 1 + decay*den
		count++
		if count >= span {
			out[i] = num / den
		}
	}
	return out
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = domain.Undefined
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return domain.Undefined
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
