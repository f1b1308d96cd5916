package analytics

import (
	"math"
	"sort"

	"fortuneBot/internal/domain"
)

// StrategySummary aggregates the realized trades of one strategy.
type StrategySummary struct {
	Strategy    string
	TotalTrades int
	WinRate     float64
	AvgProfit   float64
	MaxProfit   float64
	MaxLoss     float64
	TotalProfit float64
}

// SummarizeByStrategy groups sell trades by strategy, sorted by strategy name.
func SummarizeByStrategy(trades []domain.Trade) []StrategySummary {
	byName := make(map[string]*StrategySummary)
	wins := make(map[string]int)
	for _, t := range trades {
		if t.Side != domain.Sell {
			continue
		}
		s, ok := byName[t.Strategy]
		if !ok {
			s = &StrategySummary{Strategy: t.Strategy, MaxProfit: math.Inf(-1), MaxLoss: math.Inf(1)}
			byName[t.Strategy] = s
		}
		s.TotalTrades++
		s.TotalProfit += t.Profit
		s.MaxProfit = math.Max(s.MaxProfit, t.Profit)
		s.MaxLoss = math.Min(s.MaxLoss, t.Profit)
		if t.Profit > 0 {
			wins[t.Strategy]++
		}
	}

	out := make([]StrategySummary, 0, len(byName))
	for name, s := range byName {
		s.WinRate = float64(wins[name]) / float64(s.TotalTrades)
		s.AvgProfit = s.TotalProfit / float64(s.TotalTrades)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}
