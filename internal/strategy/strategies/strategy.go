package strategies

import (
	"fmt"
	"math"
	"sort"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// Registry names of the strategy variants.
const (
	NameRSI            = "rsi"
	NameMACD           = "macd"
	NameGrid           = "grid"
	NameDCA            = "dca"
	NameScalping       = "scalping"
	NameTrendFollowing = "trend_following"
)

// Factory builds a fresh strategy instance from parameter overrides.
type Factory func(overrides domain.Params, logger ports.Logger) (ports.Strategy, error)

var registry = map[string]Factory{
	NameRSI:            func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewRSI(p, l) },
	NameMACD:           func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewMACD(p, l) },
	NameGrid:           func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewGrid(p, l) },
	NameDCA:            func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewDCA(p, l) },
	NameScalping:       func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewScalping(p, l) },
	NameTrendFollowing: func(p domain.Params, l ports.Logger) (ports.Strategy, error) { return NewTrendFollowing(p, l) },
}

// New creates the named strategy with overrides merged into its defaults.
func New(name string, overrides domain.Params, logger ports.Logger) (ports.Strategy, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrUnknownStrategy, name)
	}
	return factory(overrides, logger)
}

// Names lists every registered strategy in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	name     string
	defaults domain.Params
	params   domain.Params
	logger   ports.Logger
}

// NewBaseStrategy merges overrides into defaults. Unknown override keys are rejected.
func NewBaseStrategy(name string, defaults, overrides domain.Params, logger ports.Logger) (*BaseStrategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	for k := range overrides {
		if _, ok := defaults[k]; !ok {
			return nil, fmt.Errorf("%w: unknown parameter %q for strategy %s", ports.ErrInvalidRequest, k, name)
		}
	}
	return &BaseStrategy{
		name:     name,
		defaults: defaults,
		params:   defaults.Merge(overrides),
		logger:   logger,
	}, nil
}

// Name returns the registry name of the strategy.
func (b *BaseStrategy) Name() string { return b.name }

// DefaultParams returns a copy of the variant defaults.
func (b *BaseStrategy) DefaultParams() domain.Params { return b.defaults.Merge(nil) }

// Params returns a copy of the effective parameters.
func (b *BaseStrategy) Params() domain.Params { return b.params.Merge(nil) }

func (b *BaseStrategy) newSignal(frame *domain.Frame, side domain.Side, confidence float64, reason string) domain.Signal {
	last := frame.Bars[frame.Last()]
	return domain.Signal{
		Strategy:   b.name,
		Symbol:     frame.Symbol,
		Side:       side,
		OrderType:  domain.Market,
		Confidence: confidence,
		Reason:     reason,
		Time:       last.Timestamp,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
