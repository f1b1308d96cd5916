// Package paper simulates order execution against a persisted virtual account.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ledger"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	quantityPrecision = 8
	cashPrecision     = 2
)

// Order is the outcome of a filled paper order.
type Order struct {
	ID        string
	Symbol    string
	Side      domain.Side
	Quantity  float64
	Price     float64
	Amount    float64 // Quote amount requested
	Profit    float64 // Realized profit, zero for buys
	Timestamp time.Time
	Strategy  string
}

// Summary is a point-in-time view of the account marked at the last known prices.
type Summary struct {
	TotalValue      float64
	CashBalance     float64
	PositionsValue  float64
	TotalPnL        float64 // Realized plus unrealized
	PnLPercentage   float64
	ActivePositions int
	TotalTrades     int
}

// Portfolio fills market and limit orders immediately at the requested or last
// marked price and saves a snapshot after every fill. It is safe for concurrent use.
type Portfolio struct {
	mu      sync.Mutex
	book    *ledger.Ledger
	store   ports.SnapshotStore
	logger  ports.Logger
	marks   map[string]float64
	initial float64
	now     func() time.Time
}

// NewPortfolio funds a portfolio with initialBalance, or resumes from the
// stored snapshot when one exists. store may be nil for an in-memory account.
func NewPortfolio(ctx context.Context, initialBalance float64, store ports.SnapshotStore, logger ports.Logger) (*Portfolio, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: paper portfolio needs a logger", ports.ErrConfigurationError)
	}
	book, err := ledger.New(initialBalance, ledger.WithBuyRecords())
	if err != nil {
		return nil, err
	}
	p := &Portfolio{
		book:    book,
		store:   store,
		logger:  logger,
		marks:   make(map[string]float64),
		initial: initialBalance,
		now:     time.Now,
	}
	if store == nil {
		return p, nil
	}

	snap, err := store.Load(ctx)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		logger.Info(ctx, "No portfolio snapshot found, starting fresh", map[string]interface{}{"balance": initialBalance})
	case err != nil:
		return nil, fmt.Errorf("load portfolio snapshot: %w", err)
	default:
		book.Restore(snap.Balance, snap.Positions, snap.TradeHistory)
		logger.Info(ctx, "Portfolio restored from snapshot", map[string]interface{}{
			"balance":     snap.Balance,
			"positions":   len(snap.Positions),
			"trades":      len(snap.TradeHistory),
			"lastUpdated": snap.LastUpdated,
		})
	}
	return p, nil
}

// UpdatePrices records the latest marks used for fills and valuation.
func (p *Portfolio) UpdatePrices(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for symbol, price := range prices {
		if price > 0 {
			p.marks[symbol] = price
		}
	}
}

// PlaceOrder fills a paper order. A buy spends amount of quote currency; a
// sell disposes of min(amount/price, held). A zero price fills at the last mark.
func (p *Portfolio) PlaceOrder(ctx context.Context, symbol string, side domain.Side, amount, price float64, strategy string) (Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if price <= 0 {
		mark, ok := p.marks[symbol]
		if !ok {
			return Order{}, fmt.Errorf("place %s order for %s without a known price: %w", side, symbol, ports.ErrInvalidPrice)
		}
		price = mark
	}
	ts := p.now().UTC()

	var (
		trade domain.Trade
		err   error
	)
	switch side {
	case domain.Buy:
		cost := decimal.NewFromFloat(amount).Round(cashPrecision).InexactFloat64()
		trade, err = p.book.Buy(symbol, cost, price, ts, strategy)
	case domain.Sell:
		qty := decimal.NewFromFloat(amount / price).Truncate(quantityPrecision).InexactFloat64()
		trade, err = p.book.Sell(symbol, qty, price, ts, strategy)
	default:
		err = fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidRequest, side)
	}
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:        "paper_" + utils.NewIDAt(ts),
		Symbol:    symbol,
		Side:      side,
		Quantity:  trade.Quantity,
		Price:     trade.Price,
		Amount:    amount,
		Profit:    trade.Profit,
		Timestamp: ts,
		Strategy:  strategy,
	}
	p.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"orderID":  order.ID,
		"symbol":   symbol,
		"side":     side,
		"quantity": order.Quantity,
		"price":    order.Price,
		"profit":   order.Profit,
	})

	if err := p.save(ctx); err != nil {
		// The fill stands; the next successful save catches up.
		p.logger.Error(ctx, err, "Failed to save portfolio snapshot", map[string]interface{}{"orderID": order.ID})
	}
	return order, nil
}

// SetHoldLimit attaches a forced exit deadline to the open position for symbol.
func (p *Portfolio) SetHoldLimit(symbol string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.book.SetHoldLimit(symbol, d)
}

// Expired returns the open positions whose max hold time has elapsed at now.
func (p *Portfolio) Expired(now time.Time) []domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Position
	for _, symbol := range p.book.Symbols() {
		pos, _ := p.book.Position(symbol)
		if pos.HoldExpired(now) {
			out = append(out, pos)
		}
	}
	return out
}

func (p *Portfolio) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Cash()
}

// Positions returns copies of the open positions.
func (p *Portfolio) Positions() map[string]*domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Positions()
}

func (p *Portfolio) Trades() []domain.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Trades()
}

// Value is cash plus open positions at the last marks.
func (p *Portfolio) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.book.Value(p.marks)
}

// Summary reports value and P&L relative to the configured initial balance.
func (p *Portfolio) Summary() Summary {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Summary{CashBalance: p.book.Cash()}
	trades := p.book.Trades()
	for _, t := range trades {
		s.TotalPnL += t.Profit
	}
	positions := p.book.Positions()
	for symbol, pos := range positions {
		mark, ok := p.marks[symbol]
		if !ok {
			mark = pos.AvgPrice
		}
		s.PositionsValue += pos.Value(mark)
		s.TotalPnL += (mark - pos.AvgPrice) * pos.Quantity
	}
	s.TotalValue = s.CashBalance + s.PositionsValue
	s.ActivePositions = len(positions)
	s.TotalTrades = len(trades)
	if p.initial > 0 {
		s.PnLPercentage = s.TotalPnL / p.initial * 100
	}
	return s
}

func (p *Portfolio) save(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Save(ctx, &domain.Snapshot{
		Balance:      p.book.Cash(),
		Positions:    p.book.Positions(),
		TradeHistory: p.book.Trades(),
		LastUpdated:  p.now().UTC(),
	})
}
