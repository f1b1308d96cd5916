package strategies

import (
	"context"
	"testing"
	"time"

	"fortuneBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDCA_ScheduleFollowsBarTime(t *testing.T) {
	ctx := context.Background()
	s, err := NewDCA(nil, nopLogger)
	require.NoError(t, err)

	frame := flatFrame(80, 100, time.Hour)
	inject(frame, "volatility_20", 0.005)

	first := s.Analyze(ctx, frame.Prefix(50))
	require.Len(t, first, 1)
	assert.Equal(t, domain.Buy, first[0].Side)
	assert.Equal(t, 0.7, first[0].Confidence)
	assert.InDelta(t, 37.5, first[0].Amount, 1e-9)

	assert.Equal(t, first, s.Analyze(ctx, frame.Prefix(50)))
	assert.Empty(t, s.Analyze(ctx, frame.Prefix(51)))
	assert.Empty(t, s.Analyze(ctx, frame.Prefix(73)))
	assert.Len(t, s.Analyze(ctx, frame.Prefix(74)), 1)
}

func TestDCA_AmountScalesWithVolatility(t *testing.T) {
	tests := []struct {
		name       string
		volatility float64
		want       float64
	}{
		{"calm market floors at half", 0.001, 25},
		{"scaled", 0.005, 37.5},
		{"volatile market caps at double", 0.02, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewDCA(nil, nopLogger)
			require.NoError(t, err)
			frame := flatFrame(50, 100, time.Hour)
			inject(frame, "volatility_20", tt.volatility)

			signals := s.Analyze(context.Background(), frame)
			require.Len(t, signals, 1)
			assert.InDelta(t, tt.want, signals[0].Amount, 1e-9)
		})
	}
}

func TestDCA_TrendFilterBlocksDowntrend(t *testing.T) {
	s, err := NewDCA(nil, nopLogger)
	require.NoError(t, err)
	frame := flatFrame(50, 100, time.Hour)
	frame.SMA20[49] = 99

	assert.Empty(t, s.Analyze(context.Background(), frame))

	unfiltered, err := NewDCA(domain.Params{"trend_filter": 0}, nopLogger)
	require.NoError(t, err)
	assert.Len(t, unfiltered.Analyze(context.Background(), frame), 1)
}

func TestDCA_DrawdownStop(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100
		if i >= 50 {
			closes[i] = 70
		}
	}

	tests := []struct {
		name     string
		stop     float64
		wantBuys int
	}{
		{"stop hit", 0.20, 0},
		{"stop not hit", 0.50, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := NewDCA(domain.Params{"trend_filter": 0, "max_drawdown_stop": tt.stop}, nopLogger)
			require.NoError(t, err)
			frame := frameFromCloses(closes, time.Hour)
			inject(frame, "volatility_20", 0.005)

			require.Len(t, s.Analyze(ctx, frame.Prefix(50)), 1)
			assert.Len(t, s.Analyze(ctx, frame), tt.wantBuys)
		})
	}
}
