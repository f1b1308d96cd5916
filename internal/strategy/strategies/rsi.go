package strategies

import (
	"context"
	"fmt"
	"math"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/indicators"
)

// RSIConfig holds configuration for the RSI reversal strategy
type RSIConfig struct {
	Period         int
	Oversold       float64
	Overbought     float64
	MinVolumeRatio float64
}

// RSIDefaults returns the default parameter set of the RSI strategy.
func RSIDefaults() domain.Params {
	return domain.Params{
		"rsi_period":           14,
		"oversold_threshold":   30,
		"overbought_threshold": 70,
		"min_volume_ratio":     1.2,
	}
}

// RSI trades RSI exits from the oversold and overbought zones on above-average volume.
type RSI struct {
	*BaseStrategy
	config RSIConfig
}

// NewRSI creates a new RSI strategy instance
func NewRSI(overrides domain.Params, logger ports.Logger) (*RSI, error) {
	base, err := NewBaseStrategy(NameRSI, RSIDefaults(), overrides, logger)
	if err != nil {
		return nil, err
	}
	p := base.params
	cfg := RSIConfig{
		Period:         p.Int("rsi_period"),
		Oversold:       p["oversold_threshold"],
		Overbought:     p["overbought_threshold"],
		MinVolumeRatio: p["min_volume_ratio"],
	}
	if cfg.Period <= 1 {
		return nil, fmt.Errorf("%w: rsi_period must be greater than 1", ports.ErrInvalidRequest)
	}
	if cfg.Oversold < 0 || cfg.Overbought > 100 || cfg.Oversold >= cfg.Overbought {
		return nil, fmt.Errorf("%w: invalid RSI thresholds (overbought must be > oversold, between 0-100)", ports.ErrInvalidRequest)
	}
	return &RSI{BaseStrategy: base, config: cfg}, nil
}

// Analyze implements ports.Strategy.
func (s *RSI) Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal {
	if frame.Len() < s.config.Period+1 {
		return nil
	}

	rsi := frame.RSI
	if s.config.Period != frame.RSIPeriod {
		period := s.config.Period
		rsi = frame.Derived(fmt.Sprintf("rsi_%d", period), func(f *domain.Frame) []float64 {
			return indicators.RSI(f.Closes(), period)
		})
	}

	i := frame.Last()
	prev, latest := rsi[i-1], rsi[i]
	bar := frame.Bars[i]
	volumeSMA := frame.VolumeSMA[i]
	if !domain.Defined(prev, latest, volumeSMA) {
		return nil
	}
	volumeOK := bar.Volume > volumeSMA*s.config.MinVolumeRatio

	switch {
	case prev <= s.config.Oversold && latest > s.config.Oversold && volumeOK:
		sig := s.newSignal(frame, domain.Buy, s.confidence(domain.Buy, latest, bar.Volume, volumeSMA),
			fmt.Sprintf("RSI leaving oversold: %.2f", latest))
		sig.StopLoss = bar.Close * 0.98
		sig.TakeProfit = bar.Close * 1.04
		return []domain.Signal{sig}
	case prev >= s.config.Overbought && latest < s.config.Overbought && volumeOK:
		sig := s.newSignal(frame, domain.Sell, s.confidence(domain.Sell, latest, bar.Volume, volumeSMA),
			fmt.Sprintf("RSI leaving overbought: %.2f", latest))
		sig.StopLoss = bar.Close * 1.02
		sig.TakeProfit = bar.Close * 0.96
		return []domain.Signal{sig}
	}
	return nil
}

func (s *RSI) confidence(side domain.Side, rsi, volume, volumeSMA float64) float64 {
	var rsiFactor float64
	if side == domain.Buy {
		rsiFactor = math.Min(1, (40-rsi)/10)
	} else {
		rsiFactor = math.Min(1, (rsi-60)/10)
	}
	volumeFactor := math.Min(1, volume/volumeSMA)
	return clamp(0.6+rsiFactor*0.2+volumeFactor*0.2, 0.1, 1)
}
