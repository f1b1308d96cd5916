package strategies

import (
	"context"
	"testing"
	"time"

	"fortuneBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridCloses() []float64 {
	closes := make([]float64, 0, 22)
	for i := 0; i < 21; i++ {
		closes = append(closes, 100)
	}
	return append(closes, 99)
}

func TestGrid_TradesEachLevelOnce(t *testing.T) {
	ctx := context.Background()
	s, err := NewGrid(nil, nopLogger)
	require.NoError(t, err)

	frame := frameFromCloses(gridCloses(), time.Minute)
	inject(frame, "volatility_20", 0.03)

	first := s.Analyze(ctx, frame.Prefix(20))
	require.Len(t, first, 1)
	assert.Equal(t, domain.Sell, first[0].Side)
	assert.Equal(t, domain.Limit, first[0].OrderType)
	assert.InDelta(t, 100.0, first[0].Price, 1e-9)
	assert.Equal(t, 100.0, first[0].Amount)
	assert.Equal(t, 0.8, first[0].Confidence)

	levels := s.Levels("BTCUSDT")
	require.Len(t, levels, 11)
	assert.InDelta(t, 95.0, levels[0].Price, 1e-9)
	assert.Equal(t, domain.Buy, levels[0].Side)
	assert.InDelta(t, 105.0, levels[10].Price, 1e-9)
	assert.Equal(t, domain.Sell, levels[10].Side)
	assert.True(t, levels[5].Filled)

	// same tail bar replays the cached result
	assert.Equal(t, first, s.Analyze(ctx, frame.Prefix(20)))

	// filled level does not fire again
	assert.Empty(t, s.Analyze(ctx, frame.Prefix(21)))

	next := s.Analyze(ctx, frame)
	require.Len(t, next, 1)
	assert.Equal(t, domain.Buy, next[0].Side)
	assert.InDelta(t, 99.0, next[0].Price, 1e-9)
}

func TestGrid_CalmMarketIsIgnored(t *testing.T) {
	s, err := NewGrid(nil, nopLogger)
	require.NoError(t, err)

	frame := frameFromCloses(gridCloses(), time.Minute)
	inject(frame, "volatility_20", 0.01)

	assert.Empty(t, s.Analyze(context.Background(), frame))
	assert.Nil(t, s.Levels("BTCUSDT"))
}

func TestGrid_LaddersArePerSymbol(t *testing.T) {
	ctx := context.Background()
	s, err := NewGrid(nil, nopLogger)
	require.NoError(t, err)

	btc := frameFromCloses(gridCloses(), time.Minute)
	inject(btc, "volatility_20", 0.03)
	eth := flatFrame(20, 3000, time.Minute)
	eth.Symbol = "ETHUSDT"
	inject(eth, "volatility_20", 0.03)

	require.Len(t, s.Analyze(ctx, btc.Prefix(20)), 1)
	ethSignals := s.Analyze(ctx, eth)
	require.Len(t, ethSignals, 1)
	assert.Equal(t, "ETHUSDT", ethSignals[0].Symbol)
	assert.InDelta(t, 3000.0, ethSignals[0].Price, 1e-9)
}
