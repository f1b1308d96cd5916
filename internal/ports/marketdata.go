package ports

import (
	"context"

	"fortuneBot/internal/domain"
)

// MarketDataProvider supplies historical bars for a symbol, oldest first.
// Both the exchange adapter and the synthetic generator implement it.
type MarketDataProvider interface {
	// FetchBars returns up to limit of the most recent bars for the symbol.
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Bar, error)
}
