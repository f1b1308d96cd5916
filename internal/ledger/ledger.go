// Package ledger tracks cash, long positions, fills and the equity curve of a
// single simulated account.
package ledger

import (
	"fmt"
	"math"
	"sort"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/utils"
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithBuyRecords appends buy fills to the trade history with a zero profit.
// Without it only sells are recorded.
func WithBuyRecords() Option {
	return func(l *Ledger) { l.recordBuys = true }
}

// Ledger is a single-writer account. It is not safe for concurrent use.
type Ledger struct {
	cash       float64
	positions  map[string]*domain.Position
	trades     []domain.Trade
	equity     []domain.EquityPoint
	recordBuys bool
}

// New creates a ledger funded with initialCash.
func New(initialCash float64, opts ...Option) (*Ledger, error) {
	if initialCash < 0 || math.IsNaN(initialCash) {
		return nil, fmt.Errorf("%w: initial cash must not be negative", ports.ErrInvalidRequest)
	}
	l := &Ledger{
		cash:      initialCash,
		positions: make(map[string]*domain.Position),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Buy spends cost at price. The position average price is the
// quantity-weighted mean of all fills.
func (l *Ledger) Buy(symbol string, cost, price float64, ts time.Time, strategy string) (domain.Trade, error) {
	if !(price > 0) {
		return domain.Trade{}, fmt.Errorf("buy %s: %w", symbol, ports.ErrInvalidPrice)
	}
	if !(cost > 0) {
		return domain.Trade{}, fmt.Errorf("%w: buy %s: cost must be positive", ports.ErrInvalidRequest, symbol)
	}
	if cost > l.cash {
		return domain.Trade{}, fmt.Errorf("buy %s for %.2f with %.2f available: %w", symbol, cost, l.cash, ports.ErrInsufficientFunds)
	}

	qty := cost / price
	pos, ok := l.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol, EntryTime: ts, Strategy: strategy}
		l.positions[symbol] = pos
	}
	total := pos.Quantity + qty
	pos.AvgPrice = (pos.Quantity*pos.AvgPrice + qty*price) / total
	pos.Quantity = total
	l.cash -= cost

	trade := domain.Trade{
		ID:        utils.NewIDAt(ts),
		Timestamp: ts,
		Symbol:    symbol,
		Side:      domain.Buy,
		Quantity:  qty,
		Price:     price,
		Strategy:  strategy,
	}
	if l.recordBuys {
		l.trades = append(l.trades, trade)
	}
	return trade, nil
}

// Sell disposes of min(qty, held) at price and records one trade carrying the
// realized profit against the average price. Dust left behind closes the position.
func (l *Ledger) Sell(symbol string, qty, price float64, ts time.Time, strategy string) (domain.Trade, error) {
	if !(price > 0) {
		return domain.Trade{}, fmt.Errorf("sell %s: %w", symbol, ports.ErrInvalidPrice)
	}
	if !(qty > 0) {
		return domain.Trade{}, fmt.Errorf("%w: sell %s: quantity must be positive", ports.ErrInvalidRequest, symbol)
	}
	pos, ok := l.positions[symbol]
	if !ok || pos.Quantity <= 0 {
		return domain.Trade{}, fmt.Errorf("sell %s: %w", symbol, ports.ErrNoPosition)
	}

	sold := math.Min(qty, pos.Quantity)
	profit := (price - pos.AvgPrice) * sold
	l.cash += sold * price
	pos.Quantity -= sold
	if pos.Quantity < domain.DustThreshold {
		delete(l.positions, symbol)
	}

	trade := domain.Trade{
		ID:        utils.NewIDAt(ts),
		Timestamp: ts,
		Symbol:    symbol,
		Side:      domain.Sell,
		Quantity:  sold,
		Price:     price,
		Profit:    profit,
		Strategy:  strategy,
	}
	l.trades = append(l.trades, trade)
	return trade, nil
}

// SetHoldLimit attaches a forced exit deadline to an open position.
func (l *Ledger) SetHoldLimit(symbol string, d time.Duration) {
	if pos, ok := l.positions[symbol]; ok && d > 0 {
		pos.MaxHoldTime = d
	}
}

// Mark appends an equity point valuing each position at prices[symbol],
// or at its average price when no mark is given.
func (l *Ledger) Mark(ts time.Time, prices map[string]float64) domain.EquityPoint {
	point := domain.EquityPoint{Timestamp: ts, Equity: l.Value(prices), Cash: l.cash}
	l.equity = append(l.equity, point)
	return point
}

// Value is cash plus every position marked at prices.
func (l *Ledger) Value(prices map[string]float64) float64 {
	value := l.cash
	for symbol, pos := range l.positions {
		price, ok := prices[symbol]
		if !ok || !(price > 0) {
			price = pos.AvgPrice
		}
		value += pos.Value(price)
	}
	return value
}

// Restore replaces the account state, used when resuming from a snapshot.
func (l *Ledger) Restore(cash float64, positions map[string]*domain.Position, trades []domain.Trade) {
	l.cash = cash
	l.positions = make(map[string]*domain.Position, len(positions))
	for symbol, pos := range positions {
		if pos == nil || pos.Quantity < domain.DustThreshold {
			continue
		}
		p := *pos
		l.positions[symbol] = &p
	}
	l.trades = append([]domain.Trade(nil), trades...)
}

// Position returns a copy of the open position for symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of the open positions keyed by symbol.
func (l *Ledger) Positions() map[string]*domain.Position {
	out := make(map[string]*domain.Position, len(l.positions))
	for symbol, pos := range l.positions {
		p := *pos
		out[symbol] = &p
	}
	return out
}

// Symbols lists symbols with an open position in sorted order.
func (l *Ledger) Symbols() []string {
	out := make([]string, 0, len(l.positions))
	for symbol := range l.positions {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) Trades() []domain.Trade {
	return append([]domain.Trade(nil), l.trades...)
}

func (l *Ledger) Equity() []domain.EquityPoint {
	return append([]domain.EquityPoint(nil), l.equity...)
}

func (l *Ledger) Cash() float64 { return l.cash }
