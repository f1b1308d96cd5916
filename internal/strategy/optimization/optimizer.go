package optimization

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/strategy/backtesting"
	"fortuneBot/internal/strategy/strategies"
)

// ParameterRange defines the values tried for one parameter.
// Explicit Values win over the Min/Max/Step range.
type ParameterRange struct {
	Name   string
	Values []float64
	Min    float64
	Max    float64
	Step   float64
	IsInt  bool
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters domain.Params
	Report     analytics.Report
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange // Empty means the preset grid of the strategy
	Backtest        backtesting.BacktestConfig
	Workers         int
	ScoreFunction   func(analytics.Report) float64
	AutoTune        bool // Save the best set to the parameter store
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config OptimizerConfig
	store  ports.ParamStore
	logger ports.Logger
}

// NewOptimizer creates a new optimizer instance. store may be nil when AutoTune is off.
func NewOptimizer(config OptimizerConfig, store ports.ParamStore, logger ports.Logger) (*Optimizer, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for optimizer")
	}
	if config.AutoTune && store == nil {
		return nil, fmt.Errorf("%w: auto tune requires a parameter store", ports.ErrConfigurationError)
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{config: config, store: store, logger: logger}, nil
}

// RSIRanges is the grid searched for the RSI strategy.
func RSIRanges() []ParameterRange {
	return []ParameterRange{
		{Name: "rsi_period", Values: []float64{10, 14, 18, 21}, IsInt: true},
		{Name: "oversold_threshold", Values: []float64{25, 30, 35}},
		{Name: "overbought_threshold", Values: []float64{65, 70, 75}},
	}
}

// MACDRanges is the grid searched for the MACD strategy.
func MACDRanges() []ParameterRange {
	return []ParameterRange{
		{Name: "fast_period", Values: []float64{8, 12, 16}, IsInt: true},
		{Name: "slow_period", Values: []float64{21, 26, 30}, IsInt: true},
		{Name: "signal_period", Values: []float64{6, 9, 12}, IsInt: true},
	}
}

// PresetRanges returns the built-in grid for a strategy, if there is one.
func PresetRanges(name string) ([]ParameterRange, bool) {
	switch name {
	case strategies.NameRSI:
		return RSIRanges(), true
	case strategies.NameMACD:
		return MACDRanges(), true
	}
	return nil, false
}

// Optimize backtests every parameter combination of a strategy on frame and returns
// the scored results, best first. Combinations the strategy rejects and runs
// without trades are left out.
func (o *Optimizer) Optimize(ctx context.Context, name string, frame *domain.Frame) ([]OptimizationResult, error) {
	ranges := o.config.ParameterRanges
	if len(ranges) == 0 {
		preset, ok := PresetRanges(name)
		if !ok {
			return nil, fmt.Errorf("%w: no parameter grid for strategy %s", ports.ErrInvalidRequest, name)
		}
		ranges = preset
	}
	combinations := generateParameterCombinations(ranges)
	frame.Prepare()

	type scored struct {
		index  int
		result OptimizationResult
	}
	jobs := make(chan int)
	resultChan := make(chan scored, len(combinations))
	var wg sync.WaitGroup

	for w := 0; w < o.config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				params := combinations[i]
				source := func() ([]ports.Strategy, error) {
					s, err := strategies.New(name, params, o.logger)
					if err != nil {
						return nil, err
					}
					return []ports.Strategy{s}, nil
				}
				result, err := backtesting.BacktestFrame(ctx, frame, source, o.config.Backtest, o.logger)
				if err != nil {
					o.logger.Debug(ctx, "Optimization run skipped", map[string]interface{}{
						"strategy": name,
						"params":   params,
						"error":    err.Error(),
					})
					continue
				}
				if result.NoTrades {
					continue
				}
				resultChan <- scored{index: i, result: OptimizationResult{
					Parameters: params,
					Report:     result.Report,
					Score:      o.config.ScoreFunction(result.Report),
				}}
			}
		}()
	}

feed:
	for i := range combinations {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(resultChan)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimize %s: %w", name, ports.ErrContextCanceled)
	}

	var collected []scored
	for r := range resultChan {
		collected = append(collected, r)
	}
	// Deterministic order regardless of worker scheduling
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })
	results := make([]OptimizationResult, len(collected))
	for i, c := range collected {
		results[i] = c.result
	}
	sortResultsByScore(results)

	o.logger.Info(ctx, "Optimization finished", map[string]interface{}{
		"strategy":     name,
		"combinations": len(combinations),
		"scored":       len(results),
	})
	return results, nil
}

// Tune optimizes a strategy and, when auto tune is on, stores the best parameters.
func (o *Optimizer) Tune(ctx context.Context, name string, frame *domain.Frame) (*OptimizationResult, error) {
	results, err := o.Optimize(ctx, name, frame)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("tune %s: %w", name, ports.ErrNoTrades)
	}
	best := results[0]
	if o.config.AutoTune {
		if err := o.store.SaveStrategyParams(ctx, name, best.Parameters); err != nil {
			return nil, fmt.Errorf("tune %s: save params: %w", name, err)
		}
		o.logger.Info(ctx, "Strategy parameters tuned", map[string]interface{}{
			"strategy": name,
			"params":   best.Parameters,
			"score":    best.Score,
		})
	}
	return &best, nil
}

// generateParameterCombinations generates all possible parameter combinations
func generateParameterCombinations(ranges []ParameterRange) []domain.Params {
	var combinations []domain.Params
	current := make(domain.Params, len(ranges))

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(ranges) {
			combinations = append(combinations, current.Merge(nil))
			return
		}
		param := ranges[paramIndex]
		for _, value := range param.values() {
			if param.IsInt {
				value = math.Round(value)
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

func (p ParameterRange) values() []float64 {
	if len(p.Values) > 0 {
		return p.Values
	}
	if p.Step <= 0 {
		return []float64{p.Min}
	}
	var out []float64
	for value := p.Min; value <= p.Max+p.Step/2; value += p.Step { // half step absorbs float drift
		out = append(out, value)
	}
	return out
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction rewards return scaled by Sharpe ratio and penalized by drawdown.
func DefaultScoreFunction(report analytics.Report) float64 {
	return report.TotalReturn * report.SharpeRatio * (1 - report.MaxDrawdown)
}
