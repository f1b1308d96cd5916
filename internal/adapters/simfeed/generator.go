// Package simfeed generates reproducible synthetic OHLCV bars for paper trading
// and backtests without exchange access.
package simfeed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

const (
	// DefaultSeed makes every series identical across runs.
	DefaultSeed = 42

	defaultBasePrice = 100.0
	returnStdDev     = 0.002
	minBarVol        = 0.001
	maxBarVol        = 0.005
	minVolume        = 1000.0
	maxVolume        = 10000.0
	barsPerDay       = 1440
)

// BasePrices are the starting levels per symbol. Unknown symbols start at 100.
var BasePrices = map[string]float64{
	"BTCUSDT":  45000,
	"ETHUSDT":  3000,
	"ADAUSDT":  0.5,
	"DOTUSDT":  8,
	"LINKUSDT": 15,
}

// Generator produces a geometric random walk per request.
type Generator struct {
	seed int64
	now  func() time.Time
}

var _ ports.MarketDataProvider = (*Generator)(nil)

// Option configures a Generator.
type Option func(*Generator)

// WithSeed overrides DefaultSeed.
func WithSeed(seed int64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithClock sets the time the generated series ends at.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func New(opts ...Option) *Generator {
	g := &Generator{seed: DefaultSeed, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchBars returns limit bars of the given interval, the last one starting at
// the current interval boundary.
func (g *Generator) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error) {
	step, ok := domain.IntervalDuration(interval)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, interval)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ports.ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrContextCanceled, err)
	}
	end := g.now().UTC().Truncate(step)
	return g.series(symbol, interval, step, end, limit), nil
}

// Historical returns days worth of one-minute bars.
func (g *Generator) Historical(ctx context.Context, symbol string, days int) ([]domain.Bar, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", ports.ErrInvalidRequest)
	}
	return g.FetchBars(ctx, symbol, "1m", days*barsPerDay)
}

func (g *Generator) series(symbol, interval string, step time.Duration, end time.Time, n int) []domain.Bar {
	rng := rand.New(rand.NewSource(g.seed))
	base, ok := BasePrices[symbol]
	if !ok {
		base = defaultBasePrice
	}

	// Returns are drawn up front so the close path depends on the seed alone.
	closes := make([]float64, n)
	cum := 0.0
	for i := range closes {
		r := rng.NormFloat64() * returnStdDev
		if i == 0 {
			r = 0
		}
		cum += r
		closes[i] = base * math.Exp(cum)
	}

	start := end.Add(-time.Duration(n-1) * step)
	bars := make([]domain.Bar, n)
	for i, last := range closes {
		vol := minBarVol + rng.Float64()*(maxBarVol-minBarVol)
		open := last * (1 + rng.NormFloat64()*vol/2)
		high := math.Max(open, last) * (1 + rng.Float64()*vol)
		low := math.Min(open, last) * (1 - rng.Float64()*vol)
		bars[i] = domain.Bar{
			Timestamp: start.Add(time.Duration(i) * step),
			Symbol:    symbol,
			Interval:  interval,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     last,
			Volume:    minVolume + rng.Float64()*(maxVolume-minVolume),
		}
	}
	return bars
}
