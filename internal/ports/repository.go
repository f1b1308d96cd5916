package ports

import (
	"context"

	"fortuneBot/internal/domain"
)

// ParamStore persists strategy parameter overrides keyed by strategy name.
type ParamStore interface {
	// GetStrategyParams returns the stored overrides, or an empty set when none exist.
	GetStrategyParams(ctx context.Context, strategy string) (domain.Params, error)
	// SaveStrategyParams replaces the stored overrides for the strategy.
	SaveStrategyParams(ctx context.Context, strategy string, params domain.Params) error
}

// TradeJournal remembers executed trades for insights and learning.
type TradeJournal interface {
	// RecordTrade saves a journal entry and returns its assigned ID.
	RecordTrade(ctx context.Context, entry *domain.JournalEntry) (int64, error)
	// FindByStrategy returns the most recent entries, oldest first. An empty strategy matches all.
	FindByStrategy(ctx context.Context, strategy string, limit int) ([]*domain.JournalEntry, error)
	// LearnedPatterns returns the conditions remembered for the strategy's winning and losing sells.
	LearnedPatterns(ctx context.Context, strategy string) (domain.LearnedPatterns, error)
}

// SnapshotStore loads and saves the paper portfolio state.
type SnapshotStore interface {
	// Load returns ErrNotFound when no snapshot has been written yet.
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}
