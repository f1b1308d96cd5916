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

const (
	gridLookback       = 20
	gridTouchTolerance = 0.001
)

// GridConfig holds configuration for the grid strategy
type GridConfig struct {
	GridSize            float64 // Spacing between levels as a fraction of the center price
	NumLevels           int
	BaseAmount          float64
	VolatilityThreshold float64
}

// GridDefaults returns the default parameter set of the grid strategy.
func GridDefaults() domain.Params {
	return domain.Params{
		"grid_size":            0.01,
		"num_levels":           10,
		"base_amount":          100,
		"volatility_threshold": 0.02,
	}
}

// GridLevel is one rung of a price ladder.
type GridLevel struct {
	Price  float64
	Side   domain.Side
	Active bool
	Filled bool
}

type gridState struct {
	levels      []GridLevel
	lastBar     time.Time
	lastSignals []domain.Signal
}

// Grid lays a symmetric ladder around the price and trades each level once when touched.
type Grid struct {
	*BaseStrategy
	config GridConfig

	mu     sync.Mutex
	states map[string]*gridState // per symbol
}

// NewGrid creates a new grid strategy instance
func NewGrid(overrides domain.Params, logger ports.Logger) (*Grid, error) {
	base, err := NewBaseStrategy(NameGrid, GridDefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := GridConfig{
		GridSize:            p["grid_size"],
		NumLevels:           p.Int("num_levels"),
		BaseAmount:          p["base_amount"],
		VolatilityThreshold: p["volatility_threshold"],
	}
	if cfg.GridSize <= 0 || cfg.NumLevels <= 0 || cfg.BaseAmount <= 0 {
		return nil, fmt.Errorf("%w: grid_size, num_levels and base_amount must be positive", ports.ErrInvalidRequest)
	}
	return &Grid{BaseStrategy: base, config: cfg, states: make(map[string]*gridState)}, nil
}

// Analyze implements ports.Strategy.
func (s *Grid) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < gridLookback {
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

	volatility := frame.Derived("volatility_20", func(f *domain.Frame) []float64 {
		return indicators.Volatility(f.Closes(), gridLookback)
	})[i]
	if !domain.Defined(volatility) || volatility < s.config.VolatilityThreshold {
		return nil
	}

	if len(state.levels) == 0 {
		state.levels = s.buildLevels(bar.Close)
		s.logger.Debug(ctx, "Grid initialized", map[string]interface{}{"symbol": frame.Symbol, "center": bar.Close, "levels": len(state.levels)})
	}

	var signals []domain.Signal
	for n := range state.levels {
		level := &state.levels[n]
		if !level.Active || level.Filled {
			continue
		}
		if math.Abs(bar.Close-level.Price)/level.Price >= gridTouchTolerance {
			continue
		}
		sig := s.newSignal(frame, level.Side, 0.8, fmt.Sprintf("Grid level %s at %.4f", level.Side, level.Price))
		sig.OrderType = domain.Limit
		sig.Price = level.Price
		sig.Amount = s.config.BaseAmount
		signals = append(signals, sig)
		level.Filled = true
	}

	state.lastSignals = signals
	return copySignals(signals)
}

// Levels returns a copy of the ladder for a symbol, nil if none was built yet.
func (s *Grid) Levels(symbol string) []GridLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[symbol]
	if !ok || len(st.levels) == 0 {
		return nil
	}
	out := make([]GridLevel, len(st.levels))
	copy(out, st.levels)
	return out
}

func (s *Grid) buildLevels(center float64) []GridLevel {
	half := s.config.NumLevels / 2
	levels := make([]GridLevel, 0, 2*half+1)
	for i := -half; i <= half; i++ {
		side := domain.Sell
		if i < 0 {
			side = domain.Buy
		}
		levels = append(levels, GridLevel{
			Price:  center * (1 + float64(i)*s.config.GridSize),
			Side:   side,
			Active: true,
		})
	}
	return levels
}

func (s *Grid) state(symbol string) *gridState {
	st, ok := s.states[symbol]
	if !ok {
		st = &gridState{}
		s.states[symbol] = st
	}
	return st
}

func copySignals(in []domain.Signal) []domain.Signal {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Signal, len(in))
	copy(out, in)
	return out
}
