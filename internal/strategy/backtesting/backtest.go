package backtesting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ledger"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/risk"
	"fortuneBot/internal/strategy/aggregator"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/strategy/indicators"
	"fortuneBot/internal/strategy/strategies"
)

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	InitialFunds    float64
	MinLookback     int     // Bars required before strategies are evaluated
	TradeFraction   float64 // Fraction of cash committed per fill
	UseSignalAmount bool    // Buy the signal amount when one is set
	EnforceMaxHold  bool    // Force a market sell once a position outlives its MaxHoldTime
	StartTime       time.Time
	EndTime         time.Time
	Indicators      indicators.Config
	Risk            *risk.RiskConfig // Defaults to risk.DefaultConfig scaled to InitialFunds
}

// DefaultConfig returns the replay settings used by the runner tools.
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialFunds:  10000,
		MinLookback:   50,
		TradeFraction: 0.02,
		Indicators:    indicators.DefaultConfig(),
	}
}

func (c BacktestConfig) withDefaults() BacktestConfig {
	d := DefaultConfig()
	if c.InitialFunds <= 0 {
		c.InitialFunds = d.InitialFunds
	}
	if c.MinLookback <= 0 {
		c.MinLookback = d.MinLookback
	}
	if c.TradeFraction <= 0 {
		c.TradeFraction = d.TradeFraction
	}
	return c
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Symbol      string
	Strategies  []string
	Report      analytics.Report
	Trades      []domain.Trade
	Equity      []domain.EquityPoint
	NoTrades    bool
	Signals     int // Signals accepted by the risk screen
	Fills       int // Accepted signals that changed the ledger
	ForcedExits int // Sells forced by the hold time limit
}

// StrategySource builds a fresh set of strategies. It is called once per run so
// stateful strategies never carry state between runs.
type StrategySource func() ([]ports.Strategy, error)

// FromNames returns a source building the named strategies with optional per-strategy overrides.
func FromNames(names []string, overrides map[string]domain.Params, logger ports.Logger) StrategySource {
	return func() ([]ports.Strategy, error) {
		out := make([]ports.Strategy, 0, len(names))
		for _, name := range names {
			s, err := strategies.New(name, overrides[name], logger)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}
}

// Backtest replays bars of a single symbol through the strategies built by source.
func Backtest(ctx context.Context, bars []domain.Bar, source StrategySource, config BacktestConfig, logger ports.Logger) (*BacktestResult, error) {
	bars = window(bars, config.StartTime, config.EndTime)
	if len(bars) == 0 {
		return nil, fmt.Errorf("backtest: %w", ports.ErrInsufficientData)
	}
	return BacktestFrame(ctx, indicators.Calculate(bars, config.Indicators), source, config, logger)
}

// BacktestFrame replays a precomputed frame. The frame is only read, so one frame
// may back several concurrent runs.
func BacktestFrame(ctx context.Context, frame *domain.Frame, source StrategySource, config BacktestConfig, logger ports.Logger) (*BacktestResult, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for backtest")
	}
	if frame.Len() == 0 {
		return nil, fmt.Errorf("backtest: %w", ports.ErrInsufficientData)
	}
	config = config.withDefaults()

	strats, err := source()
	if err != nil {
		return nil, fmt.Errorf("backtest: build strategies: %w", err)
	}
	agg, err := aggregator.New(strats, logger)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	riskConfig := risk.DefaultConfig()
	riskConfig.MaxDailyLoss *= config.InitialFunds
	if config.Risk != nil {
		riskConfig = *config.Risk
	}
	riskManager, err := risk.NewRiskManager(riskConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}
	book, err := ledger.New(config.InitialFunds)
	if err != nil {
		return nil, fmt.Errorf("backtest: %w", err)
	}

	r := &run{
		config: config,
		symbol: frame.Symbol,
		book:   book,
		risk:   riskManager,
		logger: logger,
	}
	result := &BacktestResult{Symbol: frame.Symbol}
	for _, s := range strats {
		result.Strategies = append(result.Strategies, s.Name())
	}

	logger.Info(ctx, "Backtest started", map[string]interface{}{
		"symbol":     frame.Symbol,
		"bars":       frame.Len(),
		"strategies": result.Strategies,
	})

	var day time.Time
	for i, bar := range frame.Bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted at bar %d: %w", i, ports.ErrContextCanceled)
		}
		if d := bar.Timestamp.Truncate(24 * time.Hour); !d.Equal(day) {
			if !day.IsZero() {
				riskManager.ResetDailyStats(ctx)
			}
			day = d
		}

		if i+1 >= config.MinLookback {
			if config.EnforceMaxHold {
				result.ForcedExits += r.closeExpired(ctx, bar)
			}
			signals := agg.Analyze(ctx, []*domain.Frame{frame.Prefix(i + 1)})
			accepted := riskManager.Screen(ctx, signals, book.Positions())
			result.Signals += len(accepted)
			for _, sig := range accepted {
				if r.execute(ctx, sig, bar) {
					result.Fills++
				}
			}
		}
		book.Mark(bar.Timestamp, map[string]float64{frame.Symbol: bar.Close})
	}

	result.Trades = book.Trades()
	result.Equity = book.Equity()
	result.Report = analytics.Compute(config.InitialFunds, result.Trades, result.Equity)
	result.NoTrades = len(result.Trades) == 0

	logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"symbol":       frame.Symbol,
		"trades":       len(result.Trades),
		"fills":        result.Fills,
		"total_return": result.Report.TotalReturn,
		"final_equity": result.Report.FinalEquity,
	})
	return result, nil
}

type run struct {
	config BacktestConfig
	symbol string
	book   *ledger.Ledger
	risk   *risk.RiskManager
	logger ports.Logger
}

// execute fills sig at the bar close and reports whether anything was traded.
func (r *run) execute(ctx context.Context, sig domain.Signal, bar domain.Bar) bool {
	switch sig.Side {
	case domain.Buy:
		cost := r.config.TradeFraction * r.book.Cash()
		if r.config.UseSignalAmount && sig.Amount > 0 {
			cost = sig.Amount
		}
		if cost <= 0 {
			return false
		}
		if _, err := r.book.Buy(r.symbol, cost, bar.Close, bar.Timestamp, sig.Strategy); err != nil {
			r.logger.Debug(ctx, "Backtest buy skipped", map[string]interface{}{"strategy": sig.Strategy, "error": err.Error()})
			return false
		}
		if r.config.EnforceMaxHold && sig.MaxHoldTime > 0 {
			r.book.SetHoldLimit(r.symbol, sig.MaxHoldTime)
		}
		return true
	case domain.Sell:
		qty := r.config.TradeFraction * r.book.Cash() / bar.Close
		if qty <= 0 {
			return false
		}
		trade, err := r.book.Sell(r.symbol, qty, bar.Close, bar.Timestamp, sig.Strategy)
		if err != nil {
			if !errors.Is(err, ports.ErrNoPosition) {
				r.logger.Warn(ctx, "Backtest sell failed", map[string]interface{}{"strategy": sig.Strategy, "error": err.Error()})
			}
			return false
		}
		r.recordClose(trade)
		return true
	}
	return false
}

// closeExpired sells every position whose hold time elapsed at bar time.
func (r *run) closeExpired(ctx context.Context, bar domain.Bar) int {
	closed := 0
	for symbol, pos := range r.book.Positions() {
		if !pos.HoldExpired(bar.Timestamp) {
			continue
		}
		trade, err := r.book.Sell(symbol, pos.Quantity, bar.Close, bar.Timestamp, pos.Strategy)
		if err != nil {
			r.logger.Warn(ctx, "Forced exit failed", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			continue
		}
		r.logger.Debug(ctx, "Position closed", map[string]interface{}{
			"symbol": symbol,
			"reason": domain.CloseReasonTimeLimit,
			"profit": trade.Profit,
		})
		r.recordClose(trade)
		closed++
	}
	return closed
}

func (r *run) recordClose(trade domain.Trade) {
	r.risk.RecordTrade(risk.TradeResult{
		Strategy:  trade.Strategy,
		Symbol:    trade.Symbol,
		Profit:    trade.Profit,
		Timestamp: trade.Timestamp,
	})
}

// window keeps bars within [start, end]; zero bounds are open.
func window(bars []domain.Bar, start, end time.Time) []domain.Bar {
	if start.IsZero() && end.IsZero() {
		return bars
	}
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if !start.IsZero() && b.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
