package risk

import (
	"context"
	"testing"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, mutate func(*RiskConfig)) *RiskManager {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewRiskManager(cfg, logger.Nop{})
	require.NoError(t, err)
	return m
}

func positions(symbols ...string) map[string]*domain.Position {
	out := make(map[string]*domain.Position, len(symbols))
	for _, s := range symbols {
		out[s] = &domain.Position{Symbol: s, Quantity: 1, AvgPrice: 100}
	}
	return out
}

func TestFilter(t *testing.T) {
	buy := domain.Signal{Strategy: "rsi", Symbol: "BTCUSDT", Side: domain.Buy, Confidence: 0.7}
	sell := domain.Signal{Strategy: "rsi", Symbol: "BTCUSDT", Side: domain.Sell, Confidence: 0.7}
	weak := domain.Signal{Strategy: "rsi", Symbol: "BTCUSDT", Side: domain.Buy, Confidence: 0.49}

	tests := []struct {
		name      string
		signal    domain.Signal
		positions map[string]*domain.Position
		dailyPnL  float64
		accepted  bool
	}{
		{"accepted", buy, nil, 0, true},
		{"confidence at minimum", domain.Signal{Symbol: "BTCUSDT", Side: domain.Buy, Confidence: 0.5}, nil, 0, true},
		{"low confidence", weak, nil, 0, false},
		{"daily loss reached", buy, nil, -0.06, false},
		{"daily loss at limit", buy, nil, -0.05, true},
		{"too many positions", buy, positions("A", "B", "C", "D", "E"), 0, false},
		{"four positions", buy, positions("A", "B", "C", "D"), 0, true},
		{"same side adds", buy, positions("BTCUSDT"), 0, true},
		{"opposite side", sell, positions("BTCUSDT"), 0, false},
		{"sell without position", sell, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, nil)
			if tt.dailyPnL != 0 {
				m.RecordTrade(TradeResult{Strategy: "other", Profit: tt.dailyPnL})
			}
			got := m.Filter(context.Background(), []domain.Signal{tt.signal}, tt.positions)
			if tt.accepted {
				assert.Equal(t, []domain.Signal{tt.signal}, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	m := newManager(t, nil)
	in := []domain.Signal{
		{Symbol: "ETHUSDT", Side: domain.Buy, Confidence: 0.9},
		{Symbol: "ADAUSDT", Side: domain.Buy, Confidence: 0.1},
		{Symbol: "BTCUSDT", Side: domain.Buy, Confidence: 0.6},
	}
	got := m.Filter(context.Background(), in, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.Equal(t, "BTCUSDT", got[1].Symbol)
}

func TestFilter_CountsNewEntriesTowardsCap(t *testing.T) {
	held := positions("A", "B", "C", "D")
	in := []domain.Signal{
		{Symbol: "E", Side: domain.Buy, Confidence: 0.9},
		{Symbol: "A", Side: domain.Buy, Confidence: 0.9},
		{Symbol: "F", Side: domain.Buy, Confidence: 0.9},
		{Symbol: "G", Side: domain.Buy, Confidence: 0.9},
	}

	tests := []struct {
		name   string
		screen func(*RiskManager) []domain.Signal
	}{
		{"filter", func(m *RiskManager) []domain.Signal { return m.Filter(context.Background(), in, held) }},
		{"screen", func(m *RiskManager) []domain.Signal { return m.Screen(context.Background(), in, held) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.screen(newManager(t, nil))
			require.Len(t, got, 1, "the fifth position fills the cap")
			assert.Equal(t, "E", got[0].Symbol)
		})
	}

	exit := domain.Signal{Symbol: "A", Side: domain.Sell, Confidence: 0.9}
	got := newManager(t, nil).Screen(context.Background(), append([]domain.Signal{in[0], exit}, in[2:]...), held)
	assert.Equal(t, []domain.Signal{in[0], exit}, got, "exits pass once the cap is full")
}

func TestScreen_ExitsBypassExposureRules(t *testing.T) {
	sell := domain.Signal{Symbol: "BTCUSDT", Side: domain.Sell, Confidence: 0.7}
	weakSell := domain.Signal{Symbol: "BTCUSDT", Side: domain.Sell, Confidence: 0.3}
	buy := domain.Signal{Symbol: "ETHUSDT", Side: domain.Buy, Confidence: 0.7}
	held := positions("BTCUSDT", "A", "B", "C", "D")

	m := newManager(t, nil)
	m.RecordTrade(TradeResult{Profit: -100})

	assert.Empty(t, m.Filter(context.Background(), []domain.Signal{sell}, held))
	got := m.Screen(context.Background(), []domain.Signal{buy, weakSell, sell}, held)
	assert.Equal(t, []domain.Signal{sell}, got, "entries blocked by loss limit and cap, confident exit passes")

	fresh := newManager(t, nil)
	got = fresh.Screen(context.Background(), []domain.Signal{buy, sell}, positions("BTCUSDT"))
	assert.Equal(t, []domain.Signal{buy, sell}, got)
}

func TestPositionSize(t *testing.T) {
	sig := domain.Signal{Strategy: "rsi", Confidence: 0.8}

	tests := []struct {
		name    string
		method  string
		balance float64
		history []float64
		want    float64
	}{
		{"fixed capped at 100", SizingFixed, 10000, nil, 100},
		{"fixed ten percent", SizingFixed, 500, nil, 50},
		{"percentage", SizingPercentage, 10000, nil, 200},
		{"volatility scales with confidence", SizingVolatility, 10000, nil, 200 * 1.3},
		{"kelly without history falls back", SizingKelly, 10000, nil, 200},
		{"kelly without wins falls back", SizingKelly, 10000, []float64{-10, -20}, 200},
		{"kelly without losses falls back", SizingKelly, 10000, []float64{10, 20}, 200},
		{"kelly capped at quarter", SizingKelly, 10000, []float64{100, 100, 100, -50, -50}, 2500},
		{"kelly negative edge is zero", SizingKelly, 10000, []float64{10, -50, -50, -50}, 0},
		{"empty balance", SizingPercentage, 0, nil, 0},
		{"negative balance", SizingFixed, -10, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, func(c *RiskConfig) { c.SizingMethod = tt.method })
			for _, p := range tt.history {
				m.RecordTrade(TradeResult{Strategy: "rsi", Profit: p})
			}
			got := m.PositionSize(sig, tt.balance)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			if tt.balance > 0 {
				assert.LessOrEqual(t, got, tt.balance)
			}
		})
	}
}

func TestPositionSize_KellyUsesOnlyOwnStrategy(t *testing.T) {
	m := newManager(t, nil)
	for _, p := range []float64{100, 100, 100, -50, -50} {
		m.RecordTrade(TradeResult{Strategy: "macd", Profit: p})
	}
	assert.InDelta(t, 200.0, m.PositionSize(domain.Signal{Strategy: "rsi"}, 10000), 1e-9)
	assert.InDelta(t, 2500.0, m.PositionSize(domain.Signal{Strategy: "macd"}, 10000), 1e-9)
}

func TestNewRiskManager_Validation(t *testing.T) {
	_, err := NewRiskManager(RiskConfig{MaxOpenPositions: 5, SizingMethod: "martingale"}, logger.Nop{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewRiskManager(RiskConfig{}, logger.Nop{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewRiskManager(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestStatsAndReset(t *testing.T) {
	m := newManager(t, nil)
	m.RecordTrade(TradeResult{Strategy: "rsi", Profit: 30})
	m.RecordTrade(TradeResult{Strategy: "rsi", Profit: -10})

	stats := m.GetStats()
	assert.InDelta(t, 20.0, stats.DailyPnL, 1e-9)
	assert.Equal(t, 2, stats.DailyTrades)

	m.ResetDailyStats(context.Background())
	stats = m.GetStats()
	assert.Zero(t, stats.DailyPnL)
	assert.Zero(t, stats.DailyTrades)

	metrics, ok := m.Metrics()
	require.True(t, ok)
	assert.Equal(t, 2, metrics.TotalTrades, "history survives the daily reset")
}

func TestMetrics(t *testing.T) {
	m := newManager(t, nil)
	_, ok := m.Metrics()
	assert.False(t, ok)

	for _, p := range []float64{100, -50, 50} {
		m.RecordTrade(TradeResult{Strategy: "rsi", Profit: p})
	}
	metrics, ok := m.Metrics()
	require.True(t, ok)
	assert.Equal(t, 3, metrics.TotalTrades)
	assert.InDelta(t, 2.0/3.0, metrics.WinRate, 1e-9)
	assert.InDelta(t, 100.0/3.0, metrics.AvgProfit, 1e-9)
	assert.Equal(t, 100.0, metrics.MaxProfit)
	assert.Equal(t, -50.0, metrics.MaxLoss)
	assert.InDelta(t, 0.5, metrics.MaxDrawdown, 1e-9)
	assert.Greater(t, metrics.SharpeRatio, 0.0)
}

func TestRecordTrade_KeepsLastThousand(t *testing.T) {
	m := newManager(t, nil)
	for i := 0; i < 1005; i++ {
		m.RecordTrade(TradeResult{Strategy: "rsi", Profit: 1})
	}
	metrics, ok := m.Metrics()
	require.True(t, ok)
	assert.Equal(t, 1000, metrics.TotalTrades)
	assert.Equal(t, 1005, metrics.DailyTrades)
}
