package analytics

import (
	"sort"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/strategy/indicators"
)

// Recent performance trends.
const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendInsufficientData = "insufficient_data"
)

const (
	recentWindow       = 10
	bestHoursCount     = 3
	highVolatility     = 0.02
	adjustWinRateFloor = 0.4
)

// Insights summarizes a strategy's journaled closing trades.
type Insights struct {
	TotalTrades    int
	WinRate        float64
	AvgProfit      float64
	BestHours      map[int]float64 // UTC hour -> average profit, top three
	BestVolatility string
	BestTrend      string
	RecentTrend    string
}

// JournalInsights derives insights from journal entries in chronological order.
// Only sells carry a realized profit, so buys are ignored. ok is false when no
// sell is present.
func JournalInsights(entries []*domain.JournalEntry) (ins Insights, ok bool) {
	var closed []*domain.JournalEntry
	for _, e := range entries {
		if e != nil && e.Side == domain.Sell {
			closed = append(closed, e)
		}
	}
	if len(closed) == 0 {
		return Insights{RecentTrend: TrendInsufficientData}, false
	}

	wins := 0
	total := 0.0
	byHour := make(map[int][]float64)
	volCounts := make(map[string]int)
	trendCounts := make(map[string]int)
	for _, e := range closed {
		total += e.Profit
		byHour[e.Timestamp.UTC().Hour()] = append(byHour[e.Timestamp.UTC().Hour()], e.Profit)
		if e.Profit > 0 {
			wins++
			volCounts[orUnknown(e.Conditions.Volatility)]++
			trendCounts[orUnknown(e.Conditions.Trend)]++
		}
	}

	ins = Insights{
		TotalTrades:    len(closed),
		WinRate:        float64(wins) / float64(len(closed)),
		AvgProfit:      total / float64(len(closed)),
		BestHours:      bestHours(byHour),
		BestVolatility: mostCommon(volCounts),
		BestTrend:      mostCommon(trendCounts),
		RecentTrend:    recentTrend(closed),
	}
	return ins, true
}

// ShouldAdjustStrategy reports whether the win rate is below 40% or recent results are declining.
func ShouldAdjustStrategy(ins Insights, ok bool) bool {
	if !ok {
		return false
	}
	return ins.WinRate < adjustWinRateFloor || ins.RecentTrend == TrendDeclining
}

func bestHours(byHour map[int][]float64) map[int]float64 {
	type hourAvg struct {
		hour int
		avg  float64
	}
	avgs := make([]hourAvg, 0, len(byHour))
	for h, profits := range byHour {
		sum := 0.0
		for _, p := range profits {
			sum += p
		}
		avgs = append(avgs, hourAvg{h, sum / float64(len(profits))})
	}
	sort.Slice(avgs, func(i, j int) bool {
		if avgs[i].avg != avgs[j].avg {
			return avgs[i].avg > avgs[j].avg
		}
		return avgs[i].hour < avgs[j].hour
	})

	out := make(map[int]float64, bestHoursCount)
	for i := 0; i < len(avgs) && i < bestHoursCount; i++ {
		out[avgs[i].hour] = avgs[i].avg
	}
	return out
}

// FavoredConditions returns the most common regime among the winning
// patterns. ok is false when no winner was remembered.
func FavoredConditions(p domain.LearnedPatterns) (c domain.MarketConditions, ok bool) {
	if len(p.Successful) == 0 {
		return domain.MarketConditions{Volatility: "unknown", Trend: "unknown", Session: "unknown"}, false
	}
	vol, trend, session := make(map[string]int), make(map[string]int), make(map[string]int)
	for _, w := range p.Successful {
		vol[orUnknown(w.Volatility)]++
		trend[orUnknown(w.Trend)]++
		session[orUnknown(w.Session)]++
	}
	return domain.MarketConditions{
		Volatility: mostCommon(vol),
		Trend:      mostCommon(trend),
		Session:    mostCommon(session),
	}, true
}

func mostCommon(counts map[string]int) string {
	best, bestN := "unknown", 0
	for k, n := range counts {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best
}

func recentTrend(closed []*domain.JournalEntry) string {
	if len(closed) < recentWindow {
		return TrendInsufficientData
	}
	sum := 0.0
	for _, e := range closed[len(closed)-recentWindow:] {
		sum += e.Profit
	}
	if sum > 0 {
		return TrendImproving
	}
	return TrendDeclining
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Conditions classifies the market regime of frame at ts. Volatility is high
// when the standard deviation of close-to-close changes exceeds 2%; the trend
// compares the latest SMA20 and SMA50.
func Conditions(frame *domain.Frame, ts time.Time) domain.MarketConditions {
	c := domain.MarketConditions{Volatility: "unknown", Trend: "unknown", Session: Session(ts)}
	if frame == nil || frame.Len() < 2 {
		return c
	}

	changes := indicators.PctChange(frame.Closes())
	std := indicators.RollingStd(changes[1:], len(changes)-1)
	if v := std[len(std)-1]; domain.Defined(v) {
		c.Volatility = "low"
		if v > highVolatility {
			c.Volatility = "high"
		}
	}

	last := frame.Last()
	if fast, slow := frame.SMA20[last], frame.SMA50[last]; domain.Defined(fast, slow) {
		c.Trend = "bearish"
		if fast > slow {
			c.Trend = "bullish"
		}
	}
	return c
}

// Session names the trading session of the UTC hour: asian [0,8), european [8,16), american otherwise.
func Session(ts time.Time) string {
	switch h := ts.UTC().Hour(); {
	case h < 8:
		return "asian"
	case h < 16:
		return "european"
	default:
		return "american"
	}
}
