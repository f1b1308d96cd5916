package analytics

import (
	"math"
	"sort"
	"time"

	"fortuneBot/internal/domain"
)

// Report holds the performance metrics of a run
type Report struct {
	// NoData is set when the run produced no trades. No ratio is computed then.
	NoData bool

	// Basic Metrics
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	WinRate        float64
	TotalProfit    float64
	ProfitFactor   float64 // +Inf when no trade lost money
	SharpeRatio    float64
	MaxDrawdown    float64

	// Advanced Metrics
	AverageProfit        float64
	AverageWin           float64
	AverageLoss          float64 // Negative or zero
	MaxProfit            float64
	MaxLoss              float64
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	Expectancy           float64
	RecoveryFactor       float64
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
}

// Drawdown represents a drawdown period on the equity curve
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	Depth      float64
	Duration   time.Duration
	Recovered  bool
}

// MonthlyReturn represents the realized profit of one calendar month
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}

// Compute builds a report from the realized trades and the equity curve of a run.
// Trades must carry their realized Profit; buys recorded with zero profit are ignored.
func Compute(initial float64, trades []domain.Trade, equity []domain.EquityPoint) Report {
	closed := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Side == domain.Sell {
			closed = append(closed, t)
		}
	}

	report := Report{
		InitialCapital: initial,
		FinalEquity:    initial,
		MonthlyReturns: make(map[string]float64),
	}
	if len(equity) > 0 {
		report.FinalEquity = equity[len(equity)-1].Equity
	}
	if len(closed) == 0 {
		report.NoData = true
		return report
	}

	profits := make([]float64, len(closed))
	var grossWin, grossLoss float64
	var consecutiveWins, consecutiveLosses int
	report.MaxProfit, report.MaxLoss = math.Inf(-1), math.Inf(1)
	for i, t := range closed {
		profits[i] = t.Profit
		report.TotalProfit += t.Profit
		report.MaxProfit = math.Max(report.MaxProfit, t.Profit)
		report.MaxLoss = math.Min(report.MaxLoss, t.Profit)
		report.MonthlyReturns[t.Timestamp.Format("2006-01")] += t.Profit

		if t.Profit > 0 {
			report.WinningTrades++
			grossWin += t.Profit
			consecutiveWins++
			consecutiveLosses = 0
		} else {
			if t.Profit < 0 {
				grossLoss += -t.Profit
			}
			consecutiveLosses++
			consecutiveWins = 0
		}
		if consecutiveWins > report.MaxConsecutiveWins {
			report.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > report.MaxConsecutiveLosses {
			report.MaxConsecutiveLosses = consecutiveLosses
		}
	}

	n := float64(len(closed))
	report.TotalTrades = len(closed)
	report.LosingTrades = report.TotalTrades - report.WinningTrades
	report.WinRate = float64(report.WinningTrades) / n
	report.AverageProfit = report.TotalProfit / n
	report.ProfitFactor = ProfitFactor(profits)
	if report.WinningTrades > 0 {
		report.AverageWin = grossWin / float64(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = -grossLoss / float64(report.LosingTrades)
	}
	report.Expectancy = report.WinRate*report.AverageWin + (1-report.WinRate)*report.AverageLoss

	if len(equity) == 0 {
		report.FinalEquity = initial + report.TotalProfit
	}
	if initial > 0 {
		report.TotalReturn = (report.FinalEquity - initial) / initial
	}

	values := equityValues(equity)
	report.SharpeRatio = SharpeRatio(PeriodReturns(values))
	report.MaxDrawdown = MaxDrawdown(values)
	report.Drawdowns = drawdownPeriods(equity)
	if report.MaxDrawdown > 0 && initial > 0 {
		report.RecoveryFactor = report.TotalProfit / (initial * report.MaxDrawdown)
	}
	return report
}

// MaxDrawdown returns the largest peak-to-trough fall as a fraction of the peak.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	var maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// ProfitFactor is gross profit over gross loss, +Inf when nothing was lost.
func ProfitFactor(profits []float64) float64 {
	var gross, loss float64
	for _, p := range profits {
		if p > 0 {
			gross += p
		} else {
			loss -= p
		}
	}
	if loss == 0 {
		return math.Inf(1)
	}
	return gross / loss
}

// PeriodReturns returns the relative change between consecutive values.
// Steps starting from a non-positive value are skipped.
func PeriodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}

// SharpeRatio is mean over population standard deviation of returns, unannualized.
// Zero when the deviation is zero.
func SharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std
}

func equityValues(equity []domain.EquityPoint) []float64 {
	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Equity
	}
	return values
}

func drawdownPeriods(equity []domain.EquityPoint) []Drawdown {
	var (
		periods []Drawdown
		current *Drawdown
		peak    float64
	)
	for i, p := range equity {
		if i == 0 || p.Equity >= peak {
			if current != nil {
				current.EndTime = p.Timestamp
				current.Duration = current.EndTime.Sub(current.StartTime)
				current.Recovered = true
				periods = append(periods, *current)
				current = nil
			}
			peak = p.Equity
			continue
		}
		if peak <= 0 {
			continue
		}
		depth := (peak - p.Equity) / peak
		if current == nil {
			current = &Drawdown{StartTime: p.Timestamp, StartValue: peak}
		}
		current.Depth = math.Max(current.Depth, depth)
	}
	if current != nil {
		current.EndTime = equity[len(equity)-1].Timestamp
		current.Duration = current.EndTime.Sub(current.StartTime)
		periods = append(periods, *current)
	}
	return periods
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (r *Report) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(r.MonthlyReturns))
	for month, profit := range r.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{Month: date, Return: profit})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}
