// Package marketdata caches recent bars per symbol in front of a MarketDataProvider.
package marketdata

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// DefaultSymbols are tracked when the configuration names none.
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "DOTUSDT", "LINKUSDT"}

// Config controls what is fetched and how long it stays fresh.
type Config struct {
	Symbols   []string
	Interval  string        // default "1m"
	Limit     int           // bars per symbol, default 100
	Freshness time.Duration // default one minute
}

func (c Config) withDefaults() Config {
	if len(c.Symbols) == 0 {
		c.Symbols = DefaultSymbols
	}
	if c.Interval == "" {
		c.Interval = "1m"
	}
	if c.Limit <= 0 {
		c.Limit = 100
	}
	if c.Freshness <= 0 {
		c.Freshness = time.Minute
	}
	return c
}

// Series is the bar history of one symbol, oldest first.
type Series struct {
	Symbol string
	Bars   []domain.Bar
}

// Summary describes the cached market state.
type Summary struct {
	SymbolsTracked int
	CacheSize      int
	LastUpdate     time.Time // Zero when nothing was fetched yet
	TotalVolume    float64   // Sum of each symbol's latest bar volume
	AvgPriceChange float64   // Mean of the latest close-to-close change
	Volatility     float64   // Population std of the latest close-to-close changes
}

type entry struct {
	bars    []domain.Bar
	fetched time.Time
}

// Manager fetches every tracked symbol concurrently and serves cached bars
// while they are younger than the freshness window. Safe for concurrent use.
type Manager struct {
	provider ports.MarketDataProvider
	logger   ports.Logger
	cfg      Config

	mu    sync.Mutex
	cache map[string]entry
	now   func() time.Time
}

// NewManager wraps provider with a per-symbol cache.
func NewManager(provider ports.MarketDataProvider, cfg Config, logger ports.Logger) (*Manager, error) {
	if provider == nil || logger == nil {
		return nil, fmt.Errorf("%w: market data manager needs a provider and a logger", ports.ErrConfigurationError)
	}
	cfg = cfg.withDefaults()
	if _, ok := domain.IntervalDuration(cfg.Interval); !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", ports.ErrConfigurationError, cfg.Interval)
	}
	return &Manager{
		provider: provider,
		logger:   logger,
		cfg:      cfg,
		cache:    make(map[string]entry),
		now:      time.Now,
	}, nil
}

func (m *Manager) Symbols() []string {
	return append([]string(nil), m.cfg.Symbols...)
}

// Latest returns the bars of every symbol that could be served, in
// configuration order. A symbol whose fetch fails is logged and left out.
func (m *Manager) Latest(ctx context.Context) []Series {
	results := make([][]domain.Bar, len(m.cfg.Symbols))
	var wg sync.WaitGroup
	for i, symbol := range m.cfg.Symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			bars, err := m.Fetch(ctx, symbol)
			if err != nil {
				m.logger.Warn(ctx, "Skipping symbol after fetch failure", map[string]interface{}{"symbol": symbol, "error": err.Error()})
				return
			}
			results[i] = bars
		}(i, symbol)
	}
	wg.Wait()

	out := make([]Series, 0, len(results))
	for i, bars := range results {
		if len(bars) > 0 {
			out = append(out, Series{Symbol: m.cfg.Symbols[i], Bars: bars})
		}
	}
	return out
}

// Fetch returns the cached bars for symbol, refreshing them from the provider when stale.
func (m *Manager) Fetch(ctx context.Context, symbol string) ([]domain.Bar, error) {
	m.mu.Lock()
	e, ok := m.cache[symbol]
	fresh := ok && m.now().Sub(e.fetched) < m.cfg.Freshness
	m.mu.Unlock()
	if fresh {
		return e.bars, nil
	}

	bars, err := m.provider.FetchBars(ctx, symbol, m.cfg.Interval, m.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", symbol, ports.ErrInsufficientData)
	}

	m.mu.Lock()
	m.cache[symbol] = entry{bars: bars, fetched: m.now()}
	m.mu.Unlock()
	m.logger.Debug(ctx, "Market data refreshed", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return bars, nil
}

// Prices returns the latest close of every symbol whose cached bars are still
// inside the freshness window. A symbol whose refresh failed is left out.
func (m *Manager) Prices() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make(map[string]float64, len(m.cache))
	for symbol, e := range m.cache {
		if now.Sub(e.fetched) >= m.cfg.Freshness {
			continue
		}
		out[symbol] = e.bars[len(e.bars)-1].Close
	}
	return out
}

// Summary reports cache statistics computed from the latest two bars of each symbol.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{SymbolsTracked: len(m.cfg.Symbols), CacheSize: len(m.cache)}
	var changes []float64
	for _, e := range m.cache {
		if e.fetched.After(s.LastUpdate) {
			s.LastUpdate = e.fetched
		}
		n := len(e.bars)
		if n < 2 || e.bars[n-2].Close == 0 {
			continue
		}
		s.TotalVolume += e.bars[n-1].Volume
		changes = append(changes, (e.bars[n-1].Close-e.bars[n-2].Close)/e.bars[n-2].Close)
	}
	if len(changes) == 0 {
		return s
	}
	for _, c := range changes {
		s.AvgPriceChange += c
	}
	s.AvgPriceChange /= float64(len(changes))
	var ss float64
	for _, c := range changes {
		ss += (c - s.AvgPriceChange) * (c - s.AvgPriceChange)
	}
	s.Volatility = math.Sqrt(ss / float64(len(changes)))
	return s
}
