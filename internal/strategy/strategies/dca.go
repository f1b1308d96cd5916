package strategies

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/indicators"
)

const dcaLookback = 50

// DCAConfig holds configuration for the dollar cost averaging strategy
type DCAConfig struct {
	Interval             time.Duration
	BaseAmount           float64
	VolatilityMultiplier float64
	TrendFilter          bool
	MaxDrawdownStop      float64
}

// DCADefaults returns the default parameter set of the DCA strategy.
func DCADefaults() domain.Params {
	return domain.Params{
		"interval_hours":        24,
		"base_amount":           50,
		"volatility_multiplier": 1.5,
		"trend_filter":          1,
		"max_drawdown_stop":     0.20,
	}
}

type dcaPurchase struct {
	amount   float64
	quantity float64
}

type dcaState struct {
	lastPurchase time.Time
	purchases    []dcaPurchase
	lastBar      time.Time
	lastSignals  []domain.Signal
}

// DCA buys on a fixed schedule, sizing each purchase by recent volatility.
// The schedule runs on bar timestamps so backtests and live runs behave alike.
type DCA struct {
	*BaseStrategy
	config DCAConfig

	mu     sync.Mutex
	states map[string]*dcaState // per symbol
}

// NewDCA creates a new DCA strategy instance
func NewDCA(overrides domain.Params, logger ports.Logger) (*DCA, error) {
	base, err := NewBaseStrategy(NameDCA, DCADefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := DCAConfig{
		Interval:             time.Duration(p["interval_hours"] * float64(time.Hour)),
		BaseAmount:           p["base_amount"],
		VolatilityMultiplier: p["volatility_multiplier"],
		TrendFilter:          p.Bool("trend_filter"),
		MaxDrawdownStop:      p["max_drawdown_stop"],
	}
	if cfg.Interval <= 0 || cfg.BaseAmount <= 0 {
		return nil, fmt.Errorf("%w: interval_hours and base_amount must be positive", ports.ErrInvalidRequest)
	}
	return &DCA{BaseStrategy: base, config: cfg, states: make(map[string]*dcaState)}, nil
}

// Analyze implements ports.Strategy.
func (s *DCA) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < dcaLookback {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := frame.Last()
	bar := frame.Bars[i]
	state := s.state(frame.Symbol)
	if !state.lastBar.IsZero() && bar.Timestamp.Equal(state.lastBar) {
		return copySignals(state.lastSignals)
	}
	state.lastBar = bar.Timestamp
	state.lastSignals = nil

	if !s.shouldPurchase(state, frame) {
		return nil
	}

	amount := s.purchaseAmount(frame)
	sig := s.newSignal(frame, domain.Buy, 0.7, fmt.Sprintf("DCA scheduled buy: %.2f", amount))
	sig.Amount = amount

	state.lastPurchase = bar.Timestamp
	state.purchases = append(state.purchases, dcaPurchase{amount: amount, quantity: amount / bar.Close})
	state.lastSignals = []domain.Signal{sig}
	return copySignals(state.lastSignals)
}

func (s *DCA) shouldPurchase(state *dcaState, frame *domain.Frame) bool {
	i := frame.Last()
	bar := frame.Bars[i]

	if !state.lastPurchase.IsZero() && bar.Timestamp.Sub(state.lastPurchase) < s.config.Interval {
		return false
	}
	if s.config.TrendFilter && frame.SMA20[i] < frame.SMA50[i] {
		return false
	}
	if s.drawdown(state, bar.Close) > s.config.MaxDrawdownStop {
		s.logger.Warn(context.Background(), "DCA halted by drawdown stop", map[string]interface{}{"symbol": frame.Symbol})
		return false
	}
	return true
}

// drawdown of the purchase history marked at price, 0 without purchases.
func (s *DCA) drawdown(state *dcaState, price float64) float64 {
	var invested, quantity float64
	for _, p := range state.purchases {
		invested += p.amount
		quantity += p.quantity
	}
	value := quantity * price
	if invested <= 0 || value <= 0 {
		return 0
	}
	return (invested - value) / invested
}

func (s *DCA) purchaseAmount(frame *domain.Frame) float64 {
	base := s.config.BaseAmount
	volatility := frame.Derived("volatility_20", func(f *domain.Frame) []float64 {
		return indicators.Volatility(f.Closes(), 20)
	})[frame.Last()]
	if !domain.Defined(volatility) {
		return base
	}
	factor := math.Min(2.0, volatility*s.config.VolatilityMultiplier*100)
	return clamp(base*factor, base*0.5, base*2)
}

func (s *DCA) state(symbol string) *dcaState {
	st, ok := s.states[symbol]
	if !ok {
		st = &dcaState{}
		s.states[symbol] = st
	}
	return st
}
