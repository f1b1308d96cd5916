package indicators

import (
	"testing"
	"time"

	"fortuneBot/internal/domain"
)

func TestRSI(t *testing.T) {
	rising := make([]float64, 16)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}

	tests := []struct {
		name   string
		closes []float64
		period int
		want   []float64
	}{
		{
			name:   "mixed gains and losses",
			closes: []float64{10, 11, 10, 12},
			period: 2,
			want:   []float64{nan, nan, 50, 66.666667},
		},
		{
			name:   "no losses yields 100",
			closes: rising,
			period: 14,
			want:   append(undefinedSeries(14), 100, 100),
		},
		{
			name:   "all losses yields 0",
			closes: []float64{5, 4, 3},
			period: 2,
			want:   []float64{nan, nan, 0},
		},
		{
			name:   "not enough history",
			closes: []float64{1, 2, 3},
			period: 14,
			want:   []float64{nan, nan, nan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSeries(t, tt.want, RSI(tt.closes, tt.period))
		})
	}
}

func TestATR(t *testing.T) {
	now := time.Now()
	bars := []domain.Bar{
		{Timestamp: now, High: 11, Low: 9, Close: 10},
		{Timestamp: now.Add(time.Minute), High: 13, Low: 10, Close: 12},    // max(3, 3, 0) = 3
		{Timestamp: now.Add(2 * time.Minute), High: 12, Low: 8, Close: 9}, // max(4, 0, 4) = 4
	}

	assertSeries(t, []float64{2, 3, 4}, TrueRange(bars))
	assertSeries(t, []float64{nan, 2.5, 3.5}, ATR(bars, 2))
}

func TestVolatility(t *testing.T) {
	closes := []float64{100, 110, 99, 108.9}
	// returns: 0.1, -0.1, 0.1
	got := Volatility(closes, 2)
	assertSeries(t, []float64{nan, nan, 0.141421, 0.141421}, got)

	assertSeries(t, []float64{nan, nan}, PctChange([]float64{0, 1}))
}
