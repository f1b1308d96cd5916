package analytics

import (
	"testing"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/strategy/indicators"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func journal(profits ...float64) []*domain.JournalEntry {
	entries := make([]*domain.JournalEntry, len(profits))
	for i, p := range profits {
		entries[i] = &domain.JournalEntry{
			Timestamp:  t0.Add(time.Duration(i) * time.Hour),
			Strategy:   "rsi",
			Side:       domain.Sell,
			Profit:     p,
			Conditions: domain.MarketConditions{Volatility: "low", Trend: "bullish"},
		}
	}
	return entries
}

func TestJournalInsights(t *testing.T) {
	entries := journal(10, -5, 20, 0)
	entries = append(entries, &domain.JournalEntry{Side: domain.Buy, Timestamp: t0})

	ins, ok := JournalInsights(entries)
	require.True(t, ok)
	assert.Equal(t, 4, ins.TotalTrades)
	assert.InDelta(t, 0.5, ins.WinRate, 1e-12)
	assert.InDelta(t, 6.25, ins.AvgProfit, 1e-12)
	assert.Equal(t, map[int]float64{2: 20, 0: 10, 3: 0}, ins.BestHours)
	assert.Equal(t, "low", ins.BestVolatility)
	assert.Equal(t, "bullish", ins.BestTrend)
	assert.Equal(t, TrendInsufficientData, ins.RecentTrend)
	assert.False(t, ShouldAdjustStrategy(ins, ok))
}

func TestJournalInsights_RecentTrend(t *testing.T) {
	tests := []struct {
		name       string
		profits    []float64
		wantTrend  string
		wantAdjust bool
	}{
		{
			name:      "improving",
			profits:   []float64{-1, 5, 5, 5, 5, 5, -1, -1, -1, -1, 1},
			wantTrend: TrendImproving,
		},
		{
			name:       "declining",
			profits:    []float64{50, 5, 5, 5, 5, 5, -10, -10, -10, -10, 1},
			wantTrend:  TrendDeclining,
			wantAdjust: true,
		},
		{
			name:       "low win rate",
			profits:    []float64{-1, -1, 3},
			wantTrend:  TrendInsufficientData,
			wantAdjust: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins, ok := JournalInsights(journal(tt.profits...))
			require.True(t, ok)
			assert.Equal(t, tt.wantTrend, ins.RecentTrend)
			assert.Equal(t, tt.wantAdjust, ShouldAdjustStrategy(ins, ok))
		})
	}
}

func TestJournalInsights_NoSells(t *testing.T) {
	ins, ok := JournalInsights([]*domain.JournalEntry{{Side: domain.Buy}})
	assert.False(t, ok)
	assert.Equal(t, TrendInsufficientData, ins.RecentTrend)
	assert.False(t, ShouldAdjustStrategy(ins, ok))
}

func TestSession(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "asian"},
		{7, "asian"},
		{8, "european"},
		{15, "european"},
		{16, "american"},
		{23, "american"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Session(time.Date(2024, 1, 1, tt.hour, 30, 0, 0, time.UTC)), "hour %d", tt.hour)
	}
}

func TestConditions(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, domain.MarketConditions{Volatility: "unknown", Trend: "unknown", Session: "european"}, Conditions(nil, ts))

	rising := make([]domain.Bar, 60)
	swinging := make([]domain.Bar, 60)
	for i := range rising {
		at := t0.Add(time.Duration(i) * time.Minute)
		rising[i] = domain.Bar{Timestamp: at, Close: 100 + float64(i)*0.1, Volume: 1}
		price := 100.0
		if i%2 == 1 {
			price = 90
		}
		swinging[i] = domain.Bar{Timestamp: at, Close: price, Volume: 1}
	}

	calm := Conditions(indicators.Calculate(rising, indicators.DefaultConfig()), ts)
	assert.Equal(t, "low", calm.Volatility)
	assert.Equal(t, "bullish", calm.Trend)

	wild := Conditions(indicators.Calculate(swinging, indicators.DefaultConfig()), ts)
	assert.Equal(t, "high", wild.Volatility)
}

func TestFavoredConditions(t *testing.T) {
	patterns := domain.LearnedPatterns{
		Strategy: "rsi",
		Successful: []domain.MarketConditions{
			{Volatility: "high", Trend: "bullish", Session: "asian"},
			{Volatility: "low", Trend: "bullish", Session: "american"},
			{Volatility: "high", Trend: "bearish", Session: "american"},
		},
		Failed: []domain.MarketConditions{{Volatility: "low", Trend: "bearish", Session: "asian"}},
	}

	got, ok := FavoredConditions(patterns)
	require.True(t, ok)
	assert.Equal(t, domain.MarketConditions{Volatility: "high", Trend: "bullish", Session: "american"}, got)

	got, ok = FavoredConditions(domain.LearnedPatterns{Failed: patterns.Failed})
	assert.False(t, ok)
	assert.Equal(t, "unknown", got.Trend)
}
