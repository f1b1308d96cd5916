package strategies

import (
	"context"
	"fmt"
	"math"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/indicators"
)

// MACDConfig holds configuration for the MACD crossover strategy
type MACDConfig struct {
	FastPeriod         int
	SlowPeriod         int
	SignalPeriod       int
	MinHistogramChange float64
}

// MACDDefaults returns the default parameter set of the MACD strategy.
func MACDDefaults() domain.Params {
	return domain.Params{
		"fast_period":          12,
		"slow_period":          26,
		"signal_period":        9,
		"min_histogram_change": 0.001,
	}
}

// MACD trades crossings of the MACD line over its signal line.
type MACD struct {
	*BaseStrategy
	config MACDConfig
}

// NewMACD creates a new MACD strategy instance
func NewMACD(overrides domain.Params, logger ports.Logger) (*MACD, error) {
	base, err := NewBaseStrategy(NameMACD, MACDDefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := MACDConfig{
		FastPeriod:         p.Int("fast_period"),
		SlowPeriod:         p.Int("slow_period"),
		SignalPeriod:       p.Int("signal_period"),
		MinHistogramChange: p["min_histogram_change"],
	}
	if cfg.FastPeriod <= 0 || cfg.SlowPeriod <= 0 || cfg.SignalPeriod <= 0 {
		return nil, fmt.Errorf("%w: MACD periods must be positive", ports.ErrInvalidRequest)
	}
	if cfg.FastPeriod >= cfg.SlowPeriod {
		return nil, fmt.Errorf("%w: fast_period must be less than slow_period", ports.ErrInvalidRequest)
	}
	return &MACD{BaseStrategy: base, config: cfg}, nil
}

// Analyze implements ports.Strategy.
func (s *MACD) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < s.config.SlowPeriod+s.config.SignalPeriod {
		return nil
	}

	line, signal, hist := s.series(frame)
	i := frame.Last()
	if !domain.Defined(line[i-1], signal[i-1], line[i], signal[i], hist[i]) {
		return nil
	}
	bar := frame.Bars[i]

	switch {
	case line[i-1] <= signal[i-1] && line[i] > signal[i] && hist[i] > s.config.MinHistogramChange:
		sig := s.newSignal(frame, domain.Buy, s.confidence(domain.Buy, frame, hist[i]),
			fmt.Sprintf("MACD bullish crossover: %.4f", line[i]))
		sig.StopLoss = bar.Close * 0.97
		sig.TakeProfit = bar.Close * 1.05
		return []domain.Signal{sig}
	case line[i-1] >= signal[i-1] && line[i] < signal[i] && hist[i] < -s.config.MinHistogramChange:
		sig := s.newSignal(frame, domain.Sell, s.confidence(domain.Sell, frame, hist[i]),
			fmt.Sprintf("MACD bearish crossover: %.4f", line[i]))
		sig.StopLoss = bar.Close * 1.03
		sig.TakeProfit = bar.Close * 0.95
		return []domain.Signal{sig}
	}
	return nil
}

func (s *MACD) series(frame *domain.Frame) (line, signal, hist []float64) {
	if s.config.FastPeriod == frame.MACDFastSpan && s.config.SlowPeriod == frame.MACDSlowSpan && s.config.SignalPeriod == frame.MACDSignalSpan {
		return frame.MACD, frame.MACDSignal, frame.MACDHistogram
	}
	fast, slow, sig := s.config.FastPeriod, s.config.SlowPeriod, s.config.SignalPeriod
	key := fmt.Sprintf("macd_%d_%d_%d", fast, slow, sig)
	compute := func(part int) func(*domain.Frame) []float64 {
		return func(f *domain.Frame) []float64 {
			l, sg, h := indicators.MACD(f.Closes(), fast, slow, sig)
			return [][]float64{l, sg, h}[part]
		}
	}
	return frame.Derived(key+"_line", compute(0)), frame.Derived(key+"_signal", compute(1)), frame.Derived(key+"_hist", compute(2))
}

func (s *MACD) confidence(side domain.Side, frame *domain.Frame, hist float64) float64 {
	i := frame.Last()
	macdFactor := math.Min(0.3, math.Abs(hist)*100)

	trendFactor := 0.0
	sma20, sma50 := frame.SMA20[i], frame.SMA50[i]
	if side == domain.Buy && sma20 > sma50 {
		trendFactor = 0.1
	} else if side == domain.Sell && sma20 < sma50 {
		trendFactor = 0.1
	}
	return clamp(0.65+macdFactor+trendFactor, 0.1, 1)
}
