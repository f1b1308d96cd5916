package strategies

import (
	"context"
	"fmt"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/indicators"
)

const (
	scalpingLookback      = 10
	scalpingMinVolatility = 0.001
	scalpingMaxVolatility = 0.01
)

// ScalpingConfig holds configuration for the scalping strategy
type ScalpingConfig struct {
	SpreadThreshold   float64
	VolumeSpikeRatio  float64
	QuickProfitTarget float64
	TightStopLoss     float64
	MaxHoldTime       time.Duration
}

// ScalpingDefaults returns the default parameter set of the scalping strategy.
func ScalpingDefaults() domain.Params {
	return domain.Params{
		"spread_threshold":    0.001,
		"volume_spike_ratio":  2.0,
		"quick_profit_target": 0.003,
		"tight_stop_loss":     0.002,
		"max_hold_time":       300, // seconds
	}
}

// Scalping takes quick trades on volume spikes in a calm but moving market.
type Scalping struct {
	*BaseStrategy
	config ScalpingConfig
}

// NewScalping creates a new scalping strategy instance
func NewScalping(overrides domain.Params, logger ports.Logger) (*Scalping, error) {
	base, err := NewBaseStrategy(NameScalping, ScalpingDefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := ScalpingConfig{
		SpreadThreshold:   p["spread_threshold"],
		VolumeSpikeRatio:  p["volume_spike_ratio"],
		QuickProfitTarget: p["quick_profit_target"],
		TightStopLoss:     p["tight_stop_loss"],
		MaxHoldTime:       time.Duration(p["max_hold_time"] * float64(time.Second)),
	}
	if cfg.QuickProfitTarget <= 0 || cfg.TightStopLoss <= 0 {
		return nil, fmt.Errorf("%w: quick_profit_target and tight_stop_loss must be positive", ports.ErrInvalidRequest)
	}
	return &Scalping{BaseStrategy: base, config: cfg}, nil
}

// Analyze implements ports.Strategy.
func (s *Scalping) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < scalpingLookback {
		return nil
	}
	if !s.goodConditions(frame) {
		return nil
	}

	price := frame.Bars[frame.Last()].Close
	var sig domain.Signal
	switch {
	case s.buySetup(frame):
		sig = s.newSignal(frame, domain.Buy, 0.75, "Scalping buy signal")
		sig.StopLoss = price * (1 - s.config.TightStopLoss)
		sig.TakeProfit = price * (1 + s.config.QuickProfitTarget)
	case s.sellSetup(frame):
		sig = s.newSignal(frame, domain.Sell, 0.75, "Scalping sell signal")
		sig.StopLoss = price * (1 + s.config.TightStopLoss)
		sig.TakeProfit = price * (1 - s.config.QuickProfitTarget)
	default:
		return nil
	}
	sig.MaxHoldTime = s.config.MaxHoldTime
	return []domain.Signal{sig}
}

func (s *Scalping) goodConditions(frame *domain.Frame) bool {
	i := frame.Last()
	volumeSMA := frame.VolumeSMA[i]
	if !domain.Defined(volumeSMA) || volumeSMA == 0 {
		return false
	}
	if frame.Bars[i].Volume/volumeSMA < s.config.VolumeSpikeRatio {
		return false
	}

	volatility := frame.Derived("volatility_5", func(f *domain.Frame) []float64 {
		return indicators.Volatility(f.Closes(), 5)
	})[i]
	return domain.Defined(volatility) && volatility >= scalpingMinVolatility && volatility <= scalpingMaxVolatility
}

func (s *Scalping) buySetup(frame *domain.Frame) bool {
	i := frame.Last()
	latest, prev := frame.Bars[i], frame.Bars[i-1]

	// rebound off the lower band
	if prev.Close <= frame.BBLower[i-1] && latest.Close > frame.BBLower[i-1] && frame.RSI[i] < 40 {
		return true
	}
	// fast upward momentum
	return latest.Close > prev.Close*1.002 && latest.Volume > frame.VolumeSMA[i]*1.5
}

func (s *Scalping) sellSetup(frame *domain.Frame) bool {
	i := frame.Last()
	latest, prev := frame.Bars[i], frame.Bars[i-1]

	if prev.Close >= frame.BBUpper[i-1] && latest.Close < frame.BBUpper[i-1] && frame.RSI[i] > 60 {
		return true
	}
	return latest.Close < prev.Close*0.998 && latest.Volume > frame.VolumeSMA[i]*1.5
}
