package ports

import (
	"context"

	"fortuneBot/internal/domain"
)

// Strategy turns an indicator frame into zero or more trading signals.
type Strategy interface {
	// Name returns the registry name of the strategy (e.g. "rsi").
	Name() string

	// DefaultParams returns the variant defaults before any override.
	DefaultParams() domain.Params

	// Params returns the effective parameter set.
	Params() domain.Params

	// Analyze inspects the full history up to now and returns the signals for the latest bar.
	// It returns nil when the frame is shorter than the strategy lookback.
	Analyze(ctx context.Context, frame *domain.Frame) []domain.Signal
}
