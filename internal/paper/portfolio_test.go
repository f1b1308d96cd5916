package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySnapshots struct {
	mu    sync.Mutex
	snap  *domain.Snapshot
	saves int
	err   error
}

func (m *memorySnapshots) Load(context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.snap == nil {
		return nil, ports.ErrNotFound
	}
	return m.snap, nil
}

func (m *memorySnapshots) Save(_ context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.snap = snap
	return nil
}

func newTestPortfolio(t *testing.T, store ports.SnapshotStore) *Portfolio {
	t.Helper()
	p, err := NewPortfolio(context.Background(), 10000, store, logger.Nop{})
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return p
}

func TestPlaceOrder_BuyThenSell(t *testing.T) {
	ctx := context.Background()
	store := &memorySnapshots{}
	p := newTestPortfolio(t, store)

	buy, err := p.PlaceOrder(ctx, "BTCUSDT", domain.Buy, 1000, 50000, "rsi")
	require.NoError(t, err)
	assert.InDelta(t, 0.02, buy.Quantity, 1e-12)
	assert.Zero(t, buy.Profit)
	assert.Contains(t, buy.ID, "paper_")
	assert.InDelta(t, 9000, p.Balance(), 1e-9)
	assert.Equal(t, 1, store.saves)

	// asks for more than held, sells what is there
	sell, err := p.PlaceOrder(ctx, "BTCUSDT", domain.Sell, 5000, 55000, "rsi")
	require.NoError(t, err)
	assert.InDelta(t, 0.02, sell.Quantity, 1e-12)
	assert.InDelta(t, 100, sell.Profit, 1e-6)
	assert.InDelta(t, 10100, p.Balance(), 1e-6)
	assert.Empty(t, p.Positions())
	assert.Equal(t, 2, store.saves)

	trades := p.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, domain.Buy, trades[0].Side)
	assert.Equal(t, domain.Sell, trades[1].Side)
	assert.InDelta(t, 10100, store.snap.Balance, 1e-6)
	assert.Len(t, store.snap.TradeHistory, 2)
}

func TestPlaceOrder_Errors(t *testing.T) {
	ctx := context.Background()
	p := newTestPortfolio(t, nil)

	tests := []struct {
		name    string
		side    domain.Side
		amount  float64
		price   float64
		wantErr error
	}{
		{name: "no price and no mark", side: domain.Buy, amount: 100, wantErr: ports.ErrInvalidPrice},
		{name: "insufficient funds", side: domain.Buy, amount: 20000, price: 10, wantErr: ports.ErrInsufficientFunds},
		{name: "sell without position", side: domain.Sell, amount: 100, price: 10, wantErr: ports.ErrNoPosition},
		{name: "unknown side", side: domain.Side("hold"), amount: 100, price: 10, wantErr: ports.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.PlaceOrder(ctx, "ETHUSDT", tt.side, tt.amount, tt.price, "macd")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.InDelta(t, 10000, p.Balance(), 1e-9)
	assert.Empty(t, p.Trades())
}

func TestPlaceOrder_UsesLastMark(t *testing.T) {
	p := newTestPortfolio(t, nil)
	p.UpdatePrices(map[string]float64{"ETHUSDT": 2500, "BAD": -1})

	order, err := p.PlaceOrder(context.Background(), "ETHUSDT", domain.Buy, 500, 0, "dca")
	require.NoError(t, err)
	assert.Equal(t, 2500.0, order.Price)
	assert.InDelta(t, 0.2, order.Quantity, 1e-12)

	_, err = p.PlaceOrder(context.Background(), "BAD", domain.Buy, 10, 0, "dca")
	assert.ErrorIs(t, err, ports.ErrInvalidPrice)
}

func TestNewPortfolio_RestoresSnapshot(t *testing.T) {
	store := &memorySnapshots{snap: &domain.Snapshot{
		Balance: 4000,
		Positions: map[string]*domain.Position{
			"ETHUSDT": {Symbol: "ETHUSDT", Quantity: 2, AvgPrice: 3000},
		},
		TradeHistory: []domain.Trade{{ID: "x", Symbol: "ETHUSDT", Side: domain.Buy, Quantity: 2, Price: 3000}},
	}}
	p := newTestPortfolio(t, store)
	p.UpdatePrices(map[string]float64{"ETHUSDT": 3500})

	assert.Equal(t, 4000.0, p.Balance())
	assert.InDelta(t, 11000, p.Value(), 1e-9)

	s := p.Summary()
	assert.InDelta(t, 11000, s.TotalValue, 1e-9)
	assert.InDelta(t, 7000, s.PositionsValue, 1e-9)
	assert.InDelta(t, 1000, s.TotalPnL, 1e-9)
	assert.InDelta(t, 10, s.PnLPercentage, 1e-9)
	assert.Equal(t, 1, s.ActivePositions)
	assert.Equal(t, 1, s.TotalTrades)

	_, err := NewPortfolio(context.Background(), 10000, &memorySnapshots{err: errors.New("disk")}, logger.Nop{})
	assert.Error(t, err)
}

func TestExpired(t *testing.T) {
	p := newTestPortfolio(t, nil)
	_, err := p.PlaceOrder(context.Background(), "BTCUSDT", domain.Buy, 100, 100, "scalping")
	require.NoError(t, err)
	p.SetHoldLimit("BTCUSDT", 5*time.Minute)

	entry := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Empty(t, p.Expired(entry.Add(4*time.Minute)))
	expired := p.Expired(entry.Add(5 * time.Minute))
	require.Len(t, expired, 1)
	assert.Equal(t, "BTCUSDT", expired[0].Symbol)
}
