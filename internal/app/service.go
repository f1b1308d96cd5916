package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/marketdata"
	"fortuneBot/internal/metrics"
	"fortuneBot/internal/paper"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/risk"
	"fortuneBot/internal/strategy/aggregator"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/strategy/indicators"

	"github.com/jpillora/backoff"
)

const (
	insightsWindow  = 100
	maxErrorBackoff = 5 * time.Minute
)

// MarketData supplies the latest bars and marks for the tracked symbols.
type MarketData interface {
	Symbols() []string
	Latest(ctx context.Context) []marketdata.Series
	Prices() map[string]float64
	Summary() marketdata.Summary
}

// Config controls the live polling cycle.
type Config struct {
	PollInterval   time.Duration
	ErrorBackoff   time.Duration // Minimum pause after a failed cycle
	StatusInterval time.Duration // Period of the status log line
	MinTradeAmount float64
	MaxTradeAmount float64 // Zero means no cap
	MaxDrawdown    float64 // Fraction of peak value; zero disables the entry kill switch
	StopLossPct    float64
	TakeProfitPct  float64
	Indicators     indicators.Config
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = time.Hour
	}
	return c
}

// CycleReport describes what one polling cycle did.
type CycleReport struct {
	Time     time.Time
	Symbols  int
	Signals  int // Signals accepted by the risk screen
	Orders   []paper.Order
	Exits    int // Protective and max-hold exits
	Halted   bool
	Drawdown float64
}

// Service runs the paper trading loop: fetch, analyze, screen, fill.
type Service struct {
	cfg        Config
	logger     ports.Logger
	market     MarketData
	aggregator *aggregator.Aggregator
	risk       *risk.RiskManager
	portfolio  *paper.Portfolio
	journal    ports.TradeJournal
	now        func() time.Time

	day  time.Time
	peak float64
}

// NewService wires the cycle dependencies. journal may be nil.
func NewService(
	cfg Config,
	logger ports.Logger,
	market MarketData,
	agg *aggregator.Aggregator,
	riskManager *risk.RiskManager,
	portfolio *paper.Portfolio,
	journal ports.TradeJournal,
) (*Service, error) {
	if logger == nil || market == nil || agg == nil || riskManager == nil || portfolio == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for trading service", ports.ErrConfigurationError)
	}
	if cfg.MinTradeAmount < 0 || cfg.MaxTradeAmount < 0 {
		return nil, fmt.Errorf("%w: trade amount limits must not be negative", ports.ErrConfigurationError)
	}
	if cfg.MaxTradeAmount > 0 && cfg.MinTradeAmount > cfg.MaxTradeAmount {
		return nil, fmt.Errorf("%w: min trade amount exceeds max trade amount", ports.ErrConfigurationError)
	}
	return &Service{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		market:     market,
		aggregator: agg,
		risk:       riskManager,
		portfolio:  portfolio,
		journal:    journal,
		now:        time.Now,
	}, nil
}

// Run polls until ctx is cancelled. A failed cycle pauses with an
// exponential backoff starting at the configured minimum.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Starting trading service", map[string]interface{}{
		"symbols":      s.market.Symbols(),
		"pollInterval": s.cfg.PollInterval.String(),
	})
	b := &backoff.Backoff{Min: s.cfg.ErrorBackoff, Max: maxErrorBackoff, Factor: 2}
	lastStatus := s.now()

	for {
		wait := s.cfg.PollInterval
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			metrics.CycleErrorsTotal.Inc()
			wait = b.Duration()
			s.logger.Error(ctx, err, "Trading cycle failed", map[string]interface{}{"retryIn": wait.String()})
		} else if err == nil {
			b.Reset()
		}
		if now := s.now(); now.Sub(lastStatus) >= s.cfg.StatusInterval {
			lastStatus = now
			s.logStatus(ctx, "Trading status")
		}

		select {
		case <-ctx.Done():
			s.logStatus(ctx, "Trading service stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// RunCycle performs one fetch-analyze-execute pass.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	now := s.now().UTC()
	report := CycleReport{Time: now}
	s.rollDay(ctx, now)

	series := s.market.Latest(ctx)
	s.countFetchFailures(series)
	if len(series) == 0 {
		return report, fmt.Errorf("%w: no market data for any symbol", ports.ErrInsufficientData)
	}
	report.Symbols = len(series)
	s.portfolio.UpdatePrices(s.market.Prices())

	frames := make([]*domain.Frame, 0, len(series))
	bySymbol := make(map[string]*domain.Frame, len(series))
	for _, ser := range series {
		frame := indicators.Calculate(ser.Bars, s.cfg.Indicators)
		frames = append(frames, frame)
		bySymbol[ser.Symbol] = frame
	}

	for _, exit := range s.exitSignals(now) {
		if order, ok := s.execute(ctx, exit, bySymbol); ok {
			report.Orders = append(report.Orders, order)
			report.Exits++
		}
	}

	signals := s.aggregator.Analyze(ctx, frames)
	report.Drawdown = s.drawdown()
	positions := s.portfolio.Positions()
	if s.cfg.MaxDrawdown > 0 && report.Drawdown >= s.cfg.MaxDrawdown {
		report.Halted = true
		signals = exitsOnly(signals, positions)
		s.logger.Warn(ctx, "Max drawdown reached, new entries halted", map[string]interface{}{
			"drawdown":    report.Drawdown,
			"maxDrawdown": s.cfg.MaxDrawdown,
		})
	}
	accepted := s.risk.Screen(ctx, signals, positions)
	report.Signals = len(accepted)

	for _, sig := range accepted {
		metrics.SignalsTotal.WithLabelValues(sig.Strategy, string(sig.Side)).Inc()
		if order, ok := s.execute(ctx, sig, bySymbol); ok {
			report.Orders = append(report.Orders, order)
		}
	}

	s.publish()
	metrics.CyclesTotal.Inc()
	if len(report.Orders) > 0 {
		s.logger.Info(ctx, "Trading cycle complete", map[string]interface{}{
			"symbols": report.Symbols,
			"signals": report.Signals,
			"orders":  len(report.Orders),
			"value":   s.portfolio.Value(),
		})
	}
	return report, nil
}

// rollDay resets the daily risk counters when the UTC date changes.
func (s *Service) rollDay(ctx context.Context, now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if s.day.IsZero() {
		s.day = day
		return
	}
	if day.After(s.day) {
		s.day = day
		s.risk.ResetDailyStats(ctx)
	}
}

func (s *Service) countFetchFailures(series []marketdata.Series) {
	got := make(map[string]bool, len(series))
	for _, ser := range series {
		got[ser.Symbol] = true
	}
	for _, symbol := range s.market.Symbols() {
		if !got[symbol] {
			metrics.FetchFailuresTotal.WithLabelValues(symbol).Inc()
		}
	}
}

// exitSignals closes positions past their hold limit or beyond the
// stop-loss and take-profit bands around the average price.
func (s *Service) exitSignals(now time.Time) []domain.Signal {
	var exits []domain.Signal
	expired := make(map[string]bool)
	for _, pos := range s.portfolio.Expired(now) {
		expired[pos.Symbol] = true
		exits = append(exits, exitSignal(pos, 0, domain.CloseReasonTimeLimit, now))
	}

	prices := s.market.Prices()
	positions := s.portfolio.Positions()
	symbols := make([]string, 0, len(positions))
	for symbol := range positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		pos := positions[symbol]
		price, ok := prices[symbol]
		if expired[symbol] || !ok || pos.AvgPrice <= 0 {
			continue
		}
		change := price/pos.AvgPrice - 1
		switch {
		case s.cfg.StopLossPct > 0 && change <= -s.cfg.StopLossPct:
			exits = append(exits, exitSignal(*pos, price, domain.CloseReasonStopLoss, now))
		case s.cfg.TakeProfitPct > 0 && change >= s.cfg.TakeProfitPct:
			exits = append(exits, exitSignal(*pos, price, domain.CloseReasonTakeProfit, now))
		}
	}
	return exits
}

func exitSignal(pos domain.Position, price float64, reason domain.CloseReason, now time.Time) domain.Signal {
	return domain.Signal{
		Strategy:   pos.Strategy,
		Symbol:     pos.Symbol,
		Side:       domain.Sell,
		OrderType:  domain.Market,
		Confidence: 1,
		Price:      price,
		Reason:     string(reason),
		Time:       now,
	}
}

// execute sizes and fills one signal. Sells close the whole position.
func (s *Service) execute(ctx context.Context, sig domain.Signal, frames map[string]*domain.Frame) (paper.Order, bool) {
	fields := map[string]interface{}{
		"strategy": sig.Strategy,
		"symbol":   sig.Symbol,
		"side":     sig.Side,
		"reason":   sig.Reason,
	}
	price := sig.Price
	if price <= 0 {
		price = s.market.Prices()[sig.Symbol]
	}

	var amount float64
	switch sig.Side {
	case domain.Buy:
		amount = s.risk.PositionSize(sig, s.portfolio.Balance())
		if s.cfg.MaxTradeAmount > 0 && amount > s.cfg.MaxTradeAmount {
			amount = s.cfg.MaxTradeAmount
		}
		if amount < s.cfg.MinTradeAmount || amount <= 0 {
			fields["amount"] = amount
			s.logger.Debug(ctx, "Order below minimum trade amount, skipped", fields)
			return paper.Order{}, false
		}
	case domain.Sell:
		pos, ok := s.portfolio.Positions()[sig.Symbol]
		if !ok || price <= 0 {
			return paper.Order{}, false
		}
		amount = pos.Quantity * price
	default:
		return paper.Order{}, false
	}

	order, err := s.portfolio.PlaceOrder(ctx, sig.Symbol, sig.Side, amount, price, sig.Strategy)
	if err != nil {
		if errors.Is(err, ports.ErrInsufficientFunds) || errors.Is(err, ports.ErrNoPosition) {
			s.logger.Warn(ctx, "Paper order rejected: "+err.Error(), fields)
		} else {
			s.logger.Error(ctx, err, "Paper order failed", fields)
		}
		return paper.Order{}, false
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()

	if sig.Side == domain.Buy && sig.MaxHoldTime > 0 {
		s.portfolio.SetHoldLimit(sig.Symbol, sig.MaxHoldTime)
	}
	if sig.Side == domain.Sell {
		s.risk.RecordTrade(risk.TradeResult{
			Strategy:  order.Strategy,
			Symbol:    order.Symbol,
			Profit:    order.Profit,
			Timestamp: order.Timestamp,
		})
	}
	s.record(ctx, sig, order, frames[sig.Symbol])
	return order, true
}

// record journals a fill and warns when the strategy's recent results call for review.
func (s *Service) record(ctx context.Context, sig domain.Signal, order paper.Order, frame *domain.Frame) {
	if s.journal == nil {
		return
	}
	entry := &domain.JournalEntry{
		Timestamp:  order.Timestamp,
		Strategy:   order.Strategy,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      order.Price,
		Quantity:   order.Quantity,
		Profit:     order.Profit,
		Confidence: sig.Confidence,
		Reason:     sig.Reason,
		Conditions: analytics.Conditions(frame, order.Timestamp),
	}
	if _, err := s.journal.RecordTrade(ctx, entry); err != nil {
		s.logger.Error(ctx, err, "Failed to journal trade", map[string]interface{}{"orderID": order.ID})
		return
	}
	if order.Side != domain.Sell || order.Strategy == "" {
		return
	}

	entries, err := s.journal.FindByStrategy(ctx, order.Strategy, insightsWindow)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read strategy journal", map[string]interface{}{"strategy": order.Strategy})
		return
	}
	ins, ok := analytics.JournalInsights(entries)
	if !analytics.ShouldAdjustStrategy(ins, ok) {
		return
	}
	fields := map[string]interface{}{
		"strategy":    order.Strategy,
		"winRate":     ins.WinRate,
		"recentTrend": ins.RecentTrend,
		"trades":      ins.TotalTrades,
	}
	patterns, err := s.journal.LearnedPatterns(ctx, order.Strategy)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to read learned patterns", map[string]interface{}{"strategy": order.Strategy})
	} else {
		fields["failedPatterns"] = len(patterns.Failed)
		if favored, ok := analytics.FavoredConditions(patterns); ok {
			fields["favoredTrend"] = favored.Trend
			fields["favoredVolatility"] = favored.Volatility
			fields["favoredSession"] = favored.Session
		}
	}
	s.logger.Warn(ctx, "Strategy performance degrading, consider re-tuning", fields)
}

// logStatus reports the portfolio, the cached market and the risk counters.
func (s *Service) logStatus(ctx context.Context, msg string) {
	summary := s.portfolio.Summary()
	market := s.market.Summary()
	stats := s.risk.GetStats()
	fields := map[string]interface{}{
		"totalValue":       summary.TotalValue,
		"pnlPct":           summary.PnLPercentage,
		"trades":           summary.TotalTrades,
		"symbolsTracked":   market.SymbolsTracked,
		"lastMarketUpdate": market.LastUpdate,
		"marketVolume":     market.TotalVolume,
		"marketVolatility": market.Volatility,
		"dailyPnL":         stats.DailyPnL,
		"dailyTrades":      stats.DailyTrades,
	}
	if m, ok := s.risk.Metrics(); ok {
		fields["riskTrades"] = m.TotalTrades
		fields["riskWinRate"] = m.WinRate
		fields["riskSharpe"] = m.SharpeRatio
		fields["riskMaxDrawdown"] = m.MaxDrawdown
	}
	s.logger.Info(ctx, msg, fields)
}

// drawdown is the fall of the current value from the highest value seen.
func (s *Service) drawdown() float64 {
	value := s.portfolio.Value()
	if value > s.peak {
		s.peak = value
	}
	if s.peak <= 0 {
		return 0
	}
	return (s.peak - value) / s.peak
}

func (s *Service) publish() {
	summary := s.portfolio.Summary()
	metrics.PortfolioValue.Set(summary.TotalValue)
	metrics.CashBalance.Set(summary.CashBalance)
	metrics.OpenPositions.Set(float64(summary.ActivePositions))
}

func exitsOnly(signals []domain.Signal, positions map[string]*domain.Position) []domain.Signal {
	var out []domain.Signal
	for _, sig := range signals {
		if _, held := positions[sig.Symbol]; held && sig.Side == domain.Sell {
			out = append(out, sig)
		}
	}
	return out
}
