package optimization

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/strategy/indicators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu     sync.Mutex
	params map[string]domain.Params
}

func (m *memoryStore) GetStrategyParams(_ context.Context, name string) (domain.Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.params[name]; ok {
		return p, nil
	}
	return domain.Params{}, nil
}

func (m *memoryStore) SaveStrategyParams(_ context.Context, name string, params domain.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.params == nil {
		m.params = make(map[string]domain.Params)
	}
	m.params[name] = params
	return nil
}

func testFrame(n int, seed int64) *domain.Frame {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, n)
	price := 45000.0
	for i := range bars {
		open := price
		// mean reverting swings so oscillators fire
		price = 45000 + 2000*math.Sin(float64(i)/25) + rng.NormFloat64()*150
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Symbol:    "BTCUSDT",
			Open:      open,
			High:      max(open, price) * 1.001,
			Low:       min(open, price) * 0.999,
			Close:     price,
			Volume:    1000 + rng.Float64()*9000,
		}
	}
	return indicators.Calculate(bars, indicators.DefaultConfig())
}

func TestGenerateParameterCombinations(t *testing.T) {
	assert.Len(t, generateParameterCombinations(RSIRanges()), 36)
	assert.Len(t, generateParameterCombinations(MACDRanges()), 27)

	got := generateParameterCombinations([]ParameterRange{
		{Name: "a", Min: 1, Max: 2, Step: 0.5},
		{Name: "b", Min: 9.6, Max: 10.4, Step: 10, IsInt: true},
	})
	require.Len(t, got, 3)
	assert.Equal(t, domain.Params{"a": 1, "b": 10}, got[0])
	assert.Equal(t, domain.Params{"a": 1.5, "b": 10}, got[1])
	assert.Equal(t, domain.Params{"a": 2, "b": 10}, got[2])
}

func TestDefaultScoreFunction(t *testing.T) {
	score := DefaultScoreFunction(analytics.Report{TotalReturn: 0.1, SharpeRatio: 2, MaxDrawdown: 0.25})
	assert.InDelta(t, 0.15, score, 1e-12)
}

func TestSortResultsByScore(t *testing.T) {
	results := []OptimizationResult{
		{Score: 1, Parameters: domain.Params{"id": 1}},
		{Score: 3, Parameters: domain.Params{"id": 2}},
		{Score: 3, Parameters: domain.Params{"id": 3}},
	}
	sortResultsByScore(results)
	assert.Equal(t, 2.0, results[0].Parameters["id"])
	assert.Equal(t, 3.0, results[1].Parameters["id"])
	assert.Equal(t, 1.0, results[2].Parameters["id"])
}

func TestOptimize(t *testing.T) {
	frame := testFrame(400, 7)
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "rsi_period", Values: []float64{10, 14}, IsInt: true},
			{Name: "oversold_threshold", Values: []float64{35}},
			{Name: "overbought_threshold", Values: []float64{65}},
			{Name: "min_volume_ratio", Values: []float64{0}},
		},
		ScoreFunction: func(r analytics.Report) float64 { return r.TotalReturn },
		Workers:       2,
	}, nil, logger.Nop{})
	require.NoError(t, err)

	first, err := opt.Optimize(context.Background(), "rsi", frame)
	require.NoError(t, err)
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Score, first[i].Score)
	}
	for _, r := range first {
		assert.False(t, r.Report.NoData)
		assert.Equal(t, r.Report.TotalReturn, r.Score)
	}

	second, err := opt.Optimize(context.Background(), "rsi", frame)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Parameters, second[i].Parameters)
		assert.Equal(t, first[i].Score, second[i].Score)
	}
}

func TestOptimize_InvalidCombinationsSkipped(t *testing.T) {
	frame := testFrame(120, 3)
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{
			{Name: "fast_period", Values: []float64{30}, IsInt: true},
			{Name: "slow_period", Values: []float64{26}, IsInt: true},
		},
	}, nil, logger.Nop{})
	require.NoError(t, err)

	results, err := opt.Optimize(context.Background(), "macd", frame)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOptimize_Errors(t *testing.T) {
	opt, err := NewOptimizer(OptimizerConfig{}, nil, logger.Nop{})
	require.NoError(t, err)

	_, err = opt.Optimize(context.Background(), "grid", testFrame(60, 1))
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = opt.Optimize(ctx, "rsi", testFrame(60, 1))
	assert.ErrorIs(t, err, ports.ErrContextCanceled)

	_, err = NewOptimizer(OptimizerConfig{AutoTune: true}, nil, logger.Nop{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestTune(t *testing.T) {
	store := &memoryStore{}
	frame := testFrame(400, 7)
	ranges := []ParameterRange{
		{Name: "rsi_period", Values: []float64{10, 14}, IsInt: true},
		{Name: "oversold_threshold", Values: []float64{35}},
		{Name: "overbought_threshold", Values: []float64{65}},
		{Name: "min_volume_ratio", Values: []float64{0}},
	}
	opt, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: ranges,
		ScoreFunction:   func(r analytics.Report) float64 { return float64(r.TotalTrades) },
		AutoTune:        true,
	}, store, logger.Nop{})
	require.NoError(t, err)

	best, err := opt.Tune(context.Background(), "rsi", frame)
	require.NoError(t, err)
	saved, err := store.GetStrategyParams(context.Background(), "rsi")
	require.NoError(t, err)
	assert.Equal(t, best.Parameters, saved)

	quiet, err := NewOptimizer(OptimizerConfig{
		ParameterRanges: []ParameterRange{{Name: "rsi_period", Values: []float64{14}}},
		AutoTune:        true,
	}, &memoryStore{}, logger.Nop{})
	require.NoError(t, err)
	_, err = quiet.Tune(context.Background(), "rsi", testFrame(30, 1))
	assert.ErrorIs(t, err, ports.ErrNoTrades)
}
