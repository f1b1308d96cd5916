package risk

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// Sizing methods understood by PositionSize.
const (
	SizingFixed      = "fixed"
	SizingPercentage = "percentage"
	SizingKelly      = "kelly"
	SizingVolatility = "volatility"
)

const (
	maxKellyFraction   = 0.25
	fixedSizeCap       = 100.0
	fixedSizeFraction  = 0.1
	tradeHistoryLength = 1000
)

// RiskConfig holds configuration for risk management
type RiskConfig struct {
	MaxDailyLoss     float64 // Absolute P&L floor for the day, in quote currency
	MaxOpenPositions int
	MinConfidence    float64
	RiskPerTrade     float64 // Fraction of balance used by percentage sizing
	SizingMethod     string
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() RiskConfig {
	return RiskConfig{
		MaxDailyLoss:     0.05,
		MaxOpenPositions: 5,
		MinConfidence:    0.5,
		RiskPerTrade:     0.02,
		SizingMethod:     SizingKelly,
	}
}

// TradeResult is a closed outcome fed back into the manager.
type TradeResult struct {
	Strategy  string
	Symbol    string
	Profit    float64
	Timestamp time.Time
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL      float64
	DailyTrades   int
	LastResetTime time.Time
}

// RiskMetrics summarizes the recorded trade history.
type RiskMetrics struct {
	TotalTrades int
	WinRate     float64
	AvgProfit   float64
	MaxProfit   float64
	MaxLoss     float64
	SharpeRatio float64
	MaxDrawdown float64
	DailyPnL    float64
	DailyTrades int
}

// RiskManager filters signals and sizes orders. Safe for concurrent use.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger

	mu      sync.Mutex
	stats   RiskStats
	history []TradeResult
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, logger ports.Logger) (*RiskManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for risk manager")
	}
	switch config.SizingMethod {
	case "":
		config.SizingMethod = SizingKelly
	case SizingFixed, SizingPercentage, SizingKelly, SizingVolatility:
	default:
		return nil, fmt.Errorf("%w: unknown position sizing method %q", ports.ErrConfigurationError, config.SizingMethod)
	}
	if config.MaxOpenPositions <= 0 {
		return nil, fmt.Errorf("%w: max open positions must be positive", ports.ErrConfigurationError)
	}
	if config.RiskPerTrade < 0 || config.RiskPerTrade > 1 {
		return nil, fmt.Errorf("%w: risk per trade must be within [0, 1]", ports.ErrConfigurationError)
	}
	return &RiskManager{
		config: config,
		logger: logger,
		stats:  RiskStats{LastResetTime: time.Now()},
	}, nil
}

// Filter keeps the signals that may open or add exposure, preserving order.
// positions maps symbol to the open position; every open position is long,
// so a sell on a held symbol counts as the opposite side. Buys for new symbols
// accepted earlier in the batch count towards the open position cap.
func (r *RiskManager) Filter(ctx context.Context, signals []domain.Signal, positions map[string]*domain.Position) []domain.Signal {
	return r.screen(ctx, signals, positions, false)
}

// Screen is the order gate used by the trading loops. Sells against a held long
// are exits and only need the minimum confidence; every other signal goes
// through the Filter rules. Order is preserved.
func (r *RiskManager) Screen(ctx context.Context, signals []domain.Signal, positions map[string]*domain.Position) []domain.Signal {
	return r.screen(ctx, signals, positions, true)
}

func (r *RiskManager) screen(ctx context.Context, signals []domain.Signal, positions map[string]*domain.Position, exitsBypass bool) []domain.Signal {
	r.mu.Lock()
	dailyPnL := r.stats.DailyPnL
	r.mu.Unlock()

	opened := make(map[string]bool)
	var accepted []domain.Signal
	for _, sig := range signals {
		reason := ""
		if exitsBypass && isExit(sig, positions) {
			if sig.Confidence < r.config.MinConfidence {
				reason = "confidence below minimum"
			}
		} else {
			reason = r.rejection(sig, positions, len(opened), dailyPnL)
		}
		if reason != "" {
			r.logger.Debug(ctx, "Signal rejected by risk filter", map[string]interface{}{
				"strategy": sig.Strategy,
				"symbol":   sig.Symbol,
				"side":     sig.Side,
				"reason":   reason,
			})
			continue
		}
		if _, held := positions[sig.Symbol]; sig.Side == domain.Buy && !held {
			opened[sig.Symbol] = true
		}
		accepted = append(accepted, sig)
	}
	return accepted
}

func isExit(sig domain.Signal, positions map[string]*domain.Position) bool {
	pos, ok := positions[sig.Symbol]
	return ok && pos != nil && sig.Side == domain.Sell
}

// rejection names the rule sig breaks, or "" when it passes. opened is the
// number of new symbols already accepted in the current batch.
func (r *RiskManager) rejection(sig domain.Signal, positions map[string]*domain.Position, opened int, dailyPnL float64) string {
	if dailyPnL < -r.config.MaxDailyLoss {
		return "daily loss limit reached"
	}
	if len(positions)+opened >= r.config.MaxOpenPositions {
		return "max open positions reached"
	}
	if pos, ok := positions[sig.Symbol]; ok && pos != nil && sig.Side != domain.Buy {
		return "opposite position open"
	}
	if sig.Confidence < r.config.MinConfidence {
		return "confidence below minimum"
	}
	return ""
}

// PositionSize returns the quote amount to commit for a signal, within [0, balance].
func (r *RiskManager) PositionSize(sig domain.Signal, balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	var size float64
	switch r.config.SizingMethod {
	case SizingPercentage:
		size = r.percentageSize(balance)
	case SizingKelly:
		size = r.kellySize(sig.Strategy, balance)
	case SizingVolatility:
		size = r.percentageSize(balance) * (0.5 + sig.Confidence)
	default:
		size = math.Min(fixedSizeCap, balance*fixedSizeFraction)
	}
	return math.Max(0, math.Min(balance, size))
}

func (r *RiskManager) percentageSize(balance float64) float64 {
	return balance * r.config.RiskPerTrade
}

func (r *RiskManager) kellySize(strategy string, balance float64) float64 {
	winRate, avgWin, avgLoss, ok := r.strategyStats(strategy)
	if !ok || winRate == 0 || avgLoss == 0 {
		return r.percentageSize(balance)
	}
	// f = (b*p - q) / b with b = avg win / avg loss
	b := avgWin / avgLoss
	fraction := (b*winRate - (1 - winRate)) / b
	return balance * math.Max(0, math.Min(maxKellyFraction, fraction))
}

// strategyStats reports win rate and mean win/loss magnitudes of a strategy.
// ok is false when the strategy has no recorded trades.
func (r *RiskManager) strategyStats(strategy string) (winRate, avgWin, avgLoss float64, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total, wins, losses int
	var sumWin, sumLoss float64
	for _, t := range r.history {
		if t.Strategy != strategy {
			continue
		}
		total++
		switch {
		case t.Profit > 0:
			wins++
			sumWin += t.Profit
		case t.Profit < 0:
			losses++
			sumLoss += -t.Profit
		}
	}
	if total == 0 {
		return 0, 0, 0, false
	}
	winRate = float64(wins) / float64(total)
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		avgLoss = sumLoss / float64(losses)
	}
	return winRate, avgWin, avgLoss, true
}

// RecordTrade adds a closed result to the daily counters and the sizing history.
func (r *RiskManager) RecordTrade(result TradeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.DailyPnL += result.Profit
	r.stats.DailyTrades++
	r.history = append(r.history, result)
	if len(r.history) > tradeHistoryLength {
		r.history = append([]TradeResult(nil), r.history[len(r.history)-tradeHistoryLength:]...)
	}
}

// ResetDailyStats resets daily statistics
func (r *RiskManager) ResetDailyStats(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.DailyPnL = 0
	r.stats.DailyTrades = 0
	r.stats.LastResetTime = time.Now()
	r.logger.Info(ctx, "Daily risk counters reset")
}

// GetStats returns a copy of the current risk management statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Metrics summarizes the recorded history. ok is false when nothing was recorded.
func (r *RiskManager) Metrics() (m RiskMetrics, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) == 0 {
		return RiskMetrics{}, false
	}
	profits := make([]float64, len(r.history))
	wins := 0
	m.MaxProfit, m.MaxLoss = math.Inf(-1), math.Inf(1)
	var sum float64
	for i, t := range r.history {
		profits[i] = t.Profit
		sum += t.Profit
		if t.Profit > 0 {
			wins++
		}
		m.MaxProfit = math.Max(m.MaxProfit, t.Profit)
		m.MaxLoss = math.Min(m.MaxLoss, t.Profit)
	}
	m.TotalTrades = len(profits)
	m.WinRate = float64(wins) / float64(len(profits))
	m.AvgProfit = sum / float64(len(profits))
	m.SharpeRatio = profitSharpe(profits, m.AvgProfit)
	m.MaxDrawdown = cumulativeDrawdown(profits)
	m.DailyPnL = r.stats.DailyPnL
	m.DailyTrades = r.stats.DailyTrades
	return m, true
}

// profitSharpe is mean over population std of per-trade profits, 0 when flat.
func profitSharpe(profits []float64, mean float64) float64 {
	var variance float64
	for _, p := range profits {
		variance += (p - mean) * (p - mean)
	}
	std := math.Sqrt(variance / float64(len(profits)))
	if std == 0 {
		return 0
	}
	return mean / std
}

// cumulativeDrawdown is the deepest fall of cumulative profit relative to its running peak.
// Points where the peak is not positive are skipped.
func cumulativeDrawdown(profits []float64) float64 {
	var cum, peak, worst float64
	peak = math.Inf(-1)
	for _, p := range profits {
		cum += p
		peak = math.Max(peak, cum)
		if peak <= 0 {
			continue
		}
		worst = math.Max(worst, (peak-cum)/peak)
	}
	return worst
}
