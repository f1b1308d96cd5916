package strategies

import (
	"time"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/strategy/indicators"
)

var (
	testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nopLogger = logger.Nop{}
)

// flatFrame builds a frame of n bars closing at price with constant volume.
func flatFrame(n int, price float64, step time.Duration) *domain.Frame {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return frameFromCloses(closes, step)
}

func frameFromCloses(closes []float64, step time.Duration) *domain.Frame {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Timestamp: testStart.Add(time.Duration(i) * step),
			Symbol:    "BTCUSDT",
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return indicators.Calculate(bars, indicators.DefaultConfig())
}

// inject seeds a derived series so strategies read a controlled value.
func inject(frame *domain.Frame, key string, value float64) {
	frame.Derived(key, func(f *domain.Frame) []float64 {
		out := make([]float64, f.Len())
		for i := range out {
			out[i] = value
		}
		return out
	})
}
