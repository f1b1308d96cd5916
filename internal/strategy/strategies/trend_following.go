package strategies

import (
	"context"
	"fmt"
	"math"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/indicators"
)

// TrendFollowingConfig holds configuration for the trend following strategy
type TrendFollowingConfig struct {
	FastMA              int
	SlowMA              int
	TrendStrengthPeriod int
	MinTrendStrength    float64
	TrailingStopPct     float64
	BreakoutThreshold   float64
}

// TrendFollowingDefaults returns the default parameter set of the trend following strategy.
func TrendFollowingDefaults() domain.Params {
	return domain.Params{
		"fast_ma":               20,
		"slow_ma":               50,
		"trend_strength_period": 14,
		"min_trend_strength":    0.6,
		"trailing_stop_pct":     0.05,
		"breakout_threshold":    0.02,
	}
}

// TrendFollowing enters at the start of a trend and protects the position with a trailing stop.
type TrendFollowing struct {
	*BaseStrategy
	config TrendFollowingConfig
}

// NewTrendFollowing creates a new trend following strategy instance
func NewTrendFollowing(overrides domain.Params, logger ports.Logger) (*TrendFollowing, error) {
	base, err := NewBaseStrategy(NameTrendFollowing, TrendFollowingDefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := TrendFollowingConfig{
		FastMA:              p.Int("fast_ma"),
		SlowMA:              p.Int("slow_ma"),
		TrendStrengthPeriod: p.Int("trend_strength_period"),
		MinTrendStrength:    p["min_trend_strength"],
		TrailingStopPct:     p["trailing_stop_pct"],
		BreakoutThreshold:   p["breakout_threshold"],
	}
	if cfg.FastMA <= 0 || cfg.SlowMA <= 0 || cfg.TrendStrengthPeriod <= 0 {
		return nil, fmt.Errorf("%w: moving average and ATR periods must be positive", ports.ErrInvalidRequest)
	}
	if cfg.FastMA >= cfg.SlowMA {
		return nil, fmt.Errorf("%w: fast_ma must be less than slow_ma", ports.ErrInvalidRequest)
	}
	return &TrendFollowing{BaseStrategy: base, config: cfg}, nil
}

// Analyze implements ports.Strategy.
func (s *TrendFollowing) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < s.config.SlowMA+10 {
		return nil
	}

	i := frame.Last()
	bar := frame.Bars[i]
	strength := s.trendStrength(frame)[i]
	atr := frame.Derived(fmt.Sprintf("atr_%d", s.config.TrendStrengthPeriod), func(f *domain.Frame) []float64 {
		return indicators.ATR(f.Bars, s.config.TrendStrengthPeriod)
	})[i]
	if !domain.Defined(strength) {
		return nil
	}

	var sig domain.Signal
	switch {
	case s.uptrendStart(frame, strength):
		sig = s.newSignal(frame, domain.Buy, s.confidence(frame, strength),
			fmt.Sprintf("Uptrend start, strength: %.2f, atr: %.4f", strength, atr))
		sig.StopLoss = bar.Close * (1 - s.config.TrailingStopPct)
	case s.downtrendStart(frame, strength):
		sig = s.newSignal(frame, domain.Sell, s.confidence(frame, strength),
			fmt.Sprintf("Downtrend start, strength: %.2f, atr: %.4f", strength, atr))
		sig.StopLoss = bar.Close * (1 + s.config.TrailingStopPct)
	default:
		return nil
	}
	sig.TrailingStop = true
	return []domain.Signal{sig}
}

// trendStrength is (MA fast - MA slow) / MA slow.
func (s *TrendFollowing) trendStrength(frame *domain.Frame) []float64 {
	fast, slow := s.config.FastMA, s.config.SlowMA
	return frame.Derived(fmt.Sprintf("trend_strength_%d_%d", fast, slow), func(f *domain.Frame) []float64 {
		closes := f.Closes()
		maFast, maSlow := indicators.SMA(closes, fast), indicators.SMA(closes, slow)
		out := make([]float64, len(closes))
		for i := range closes {
			out[i] = (maFast[i] - maSlow[i]) / maSlow[i]
		}
		return out
	})
}

func (s *TrendFollowing) uptrendStart(frame *domain.Frame, strength float64) bool {
	i := frame.Last()
	maCross := frame.SMA20[i-1] <= frame.SMA50[i-1] && frame.SMA20[i] > frame.SMA50[i]
	strong := strength > s.config.MinTrendStrength
	breakout := frame.Bars[i].Close > frame.BBUpper[i] && frame.Bars[i].Volume > frame.VolumeSMA[i]*1.2
	return maCross || (strong && breakout)
}

func (s *TrendFollowing) downtrendStart(frame *domain.Frame, strength float64) bool {
	i := frame.Last()
	maCross := frame.SMA20[i-1] >= frame.SMA50[i-1] && frame.SMA20[i] < frame.SMA50[i]
	strong := strength < -s.config.MinTrendStrength
	breakdown := frame.Bars[i].Close < frame.BBLower[i] && frame.Bars[i].Volume > frame.VolumeSMA[i]*1.2
	return maCross || (strong && breakdown)
}

func (s *TrendFollowing) confidence(frame *domain.Frame, strength float64) float64 {
	i := frame.Last()
	trendFactor := math.Min(0.2, math.Abs(strength)*2)
	volumeFactor := math.Min(0.1, (frame.Bars[i].Volume/frame.VolumeSMA[i]-1)*0.1)
	if !domain.Defined(volumeFactor) {
		volumeFactor = 0
	}
	return clamp(0.7+trendFactor+volumeFactor, 0.1, 1)
}
