// Package aggregator runs a set of strategies over market frames and reduces
// their signals to at most one per symbol.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// Merge groups signals by symbol and keeps the most confident one of each group.
// Groups mixing buy and sell are dropped. Ties go to the earliest signal, and
// symbols keep the order in which they were first seen.
func Merge(signals []domain.Signal) []domain.Signal {
	if len(signals) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]domain.Signal)
	for _, sig := range signals {
		if _, ok := groups[sig.Symbol]; !ok {
			order = append(order, sig.Symbol)
		}
		groups[sig.Symbol] = append(groups[sig.Symbol], sig)
	}

	merged := make([]domain.Signal, 0, len(order))
	for _, symbol := range order {
		group := groups[symbol]
		if !coherent(group) {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Confidence > group[j].Confidence
		})
		merged = append(merged, group[0])
	}
	return merged
}

func coherent(group []domain.Signal) bool {
	for _, sig := range group[1:] {
		if sig.Side != group[0].Side {
			return false
		}
	}
	return true
}

// Aggregator fans strategies out over frames and merges what they emit.
type Aggregator struct {
	strategies []ports.Strategy
	logger     ports.Logger
}

// New creates an aggregator over the given strategies.
func New(strategies []ports.Strategy, logger ports.Logger) (*Aggregator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for aggregator")
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("%w: at least one strategy is required", ports.ErrInvalidRequest)
	}
	return &Aggregator{strategies: strategies, logger: logger}, nil
}

// Collect runs every strategy on every frame concurrently and returns the raw
// signals ordered by frame index, then strategy index.
func (a *Aggregator) Collect(ctx context.Context, frames []*domain.Frame) []domain.Signal {
	n := len(a.strategies)
	slots := make([][]domain.Signal, len(frames)*n)

	var wg sync.WaitGroup
	for fi, frame := range frames {
		if frame == nil {
			continue
		}
		frame.Prepare()
		for si, strategy := range a.strategies {
			wg.Add(1)
			go func(slot int, strategy ports.Strategy, frame *domain.Frame) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						a.logger.Error(ctx, fmt.Errorf("strategy panic: %v", r), "Strategy analysis failed",
							map[string]interface{}{"strategy": strategy.Name(), "symbol": frame.Symbol})
					}
				}()
				if ctx.Err() != nil {
					return
				}
				slots[slot] = strategy.Analyze(ctx, frame)
			}(fi*n+si, strategy, frame)
		}
	}
	wg.Wait()

	var signals []domain.Signal
	for _, s := range slots {
		signals = append(signals, s...)
	}
	return signals
}

// Analyze collects signals from all strategies and merges them per symbol.
func (a *Aggregator) Analyze(ctx context.Context, frames []*domain.Frame) []domain.Signal {
	raw := a.Collect(ctx, frames)
	merged := Merge(raw)
	if len(raw) > 0 {
		a.logger.Debug(ctx, "Signals aggregated", map[string]interface{}{
			"raw":    len(raw),
			"merged": len(merged),
		})
	}
	return merged
}
