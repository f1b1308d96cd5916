package ledger

import (
	"testing"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newLedger(t *testing.T, cash float64, opts ...Option) *Ledger {
	t.Helper()
	l, err := New(cash, opts...)
	require.NoError(t, err)
	return l
}

func TestBuy_WeightedAverage(t *testing.T) {
	l := newLedger(t, 10000)

	_, err := l.Buy("BTCUSDT", 1000, 100, t0, "rsi")
	require.NoError(t, err)
	_, err = l.Buy("BTCUSDT", 1000, 200, t0.Add(time.Minute), "macd")
	require.NoError(t, err)

	pos, ok := l.Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 15.0, pos.Quantity, 1e-9)
	assert.InDelta(t, 2000.0/15.0, pos.AvgPrice, 1e-9)
	assert.Equal(t, t0, pos.EntryTime)
	assert.Equal(t, "rsi", pos.Strategy)
	assert.InDelta(t, 8000.0, l.Cash(), 1e-9)
	assert.Empty(t, l.Trades(), "buys are not recorded by default")
}

func TestBuy_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		cost    float64
		price   float64
		wantErr error
	}{
		{"insufficient funds", 1000.01, 100, ports.ErrInsufficientFunds},
		{"zero price", 10, 0, ports.ErrInvalidPrice},
		{"zero cost", 0, 100, ports.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, 1000)
			_, err := l.Buy("BTCUSDT", tt.cost, tt.price, t0, "rsi")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 1000.0, l.Cash(), "state untouched")
			assert.Empty(t, l.Positions())
		})
	}
}

func TestSell(t *testing.T) {
	tests := []struct {
		name       string
		qty        float64
		price      float64
		wantSold   float64
		wantProfit float64
		wantOpen   bool
	}{
		{"partial", 4, 120, 4, 80, true},
		{"capped at holdings", 50, 90, 10, -100, false},
		{"leaves dust", 9.9995, 100, 9.9995, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t, 1000)
			_, err := l.Buy("BTCUSDT", 1000, 100, t0, "rsi")
			require.NoError(t, err)

			trade, err := l.Sell("BTCUSDT", tt.qty, tt.price, t0.Add(time.Hour), "rsi")
			require.NoError(t, err)
			assert.Equal(t, domain.Sell, trade.Side)
			assert.InDelta(t, tt.wantSold, trade.Quantity, 1e-9)
			assert.InDelta(t, tt.wantProfit, trade.Profit, 1e-9)
			assert.NotEmpty(t, trade.ID)
			assert.InDelta(t, tt.wantSold*tt.price, l.Cash(), 1e-9)

			_, open := l.Position("BTCUSDT")
			assert.Equal(t, tt.wantOpen, open)
			require.Len(t, l.Trades(), 1, "each sell records exactly one trade")
		})
	}
}

func TestSell_NoPosition(t *testing.T) {
	l := newLedger(t, 1000)
	_, err := l.Sell("BTCUSDT", 1, 100, t0, "rsi")
	assert.ErrorIs(t, err, ports.ErrNoPosition)
	assert.Empty(t, l.Trades())
}

func TestWithBuyRecords(t *testing.T) {
	l := newLedger(t, 1000, WithBuyRecords())
	_, err := l.Buy("ETHUSDT", 300, 3000, t0, "dca")
	require.NoError(t, err)
	_, err = l.Sell("ETHUSDT", 0.1, 3300, t0.Add(time.Hour), "dca")
	require.NoError(t, err)

	trades := l.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Buy, trades[0].Side)
	assert.Zero(t, trades[0].Profit)
	assert.InDelta(t, 30.0, trades[1].Profit, 1e-9)
	assert.Less(t, trades[0].ID, trades[1].ID, "ids sort by time")
}

func TestMark(t *testing.T) {
	l := newLedger(t, 1000)
	_, err := l.Buy("BTCUSDT", 500, 100, t0, "rsi")
	require.NoError(t, err)

	p := l.Mark(t0, map[string]float64{"BTCUSDT": 110})
	assert.InDelta(t, 1050.0, p.Equity, 1e-9)
	assert.InDelta(t, 500.0, p.Cash, 1e-9)

	p = l.Mark(t0.Add(time.Minute), nil)
	assert.InDelta(t, 1000.0, p.Equity, 1e-9, "unmarked positions use their average price")
	assert.Len(t, l.Equity(), 2)
}

func TestHoldLimit(t *testing.T) {
	l := newLedger(t, 1000)
	_, err := l.Buy("BTCUSDT", 500, 100, t0, "scalping")
	require.NoError(t, err)
	l.SetHoldLimit("BTCUSDT", 5*time.Minute)

	pos, _ := l.Position("BTCUSDT")
	assert.False(t, pos.HoldExpired(t0.Add(4*time.Minute)))
	assert.True(t, pos.HoldExpired(t0.Add(5*time.Minute)))
}

func TestRestore(t *testing.T) {
	l := newLedger(t, 1000)
	l.Restore(750, map[string]*domain.Position{
		"BTCUSDT": {Symbol: "BTCUSDT", Quantity: 2.5, AvgPrice: 100},
		"ADAUSDT": {Symbol: "ADAUSDT", Quantity: 0.0001, AvgPrice: 0.5},
	}, []domain.Trade{{ID: "x", Symbol: "BTCUSDT", Side: domain.Buy}})

	assert.Equal(t, 750.0, l.Cash())
	assert.Equal(t, []string{"BTCUSDT"}, l.Symbols())
	assert.Len(t, l.Trades(), 1)

	positions := l.Positions()
	positions["BTCUSDT"].Quantity = 0
	pos, _ := l.Position("BTCUSDT")
	assert.Equal(t, 2.5, pos.Quantity, "Positions returns copies")
}
