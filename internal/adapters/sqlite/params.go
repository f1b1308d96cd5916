package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

// GetStrategyParams returns the stored overrides for strategy, or an empty set.
func (r *Repository) GetStrategyParams(ctx context.Context, strategy string) (domain.Params, error) {
	const query = `SELECT params FROM strategy_params WHERE name = ?`

	var raw string
	err := r.db.QueryRowContext(ctx, query, strategy).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Params{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load params for %s: %v", ports.ErrQueryFailed, strategy, err)
	}

	params := domain.Params{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("%w: decode params for %s: %v", ports.ErrQueryFailed, strategy, err)
	}
	return params, nil
}

// SaveStrategyParams replaces the stored overrides for strategy.
func (r *Repository) SaveStrategyParams(ctx context.Context, strategy string, params domain.Params) error {
	const query = `
	INSERT INTO strategy_params (name, params, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET params = excluded.params, updated_at = excluded.updated_at`

	if strategy == "" {
		return fmt.Errorf("%w: strategy name is empty", ports.ErrInvalidRequest)
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: encode params for %s: %v", ports.ErrInvalidRequest, strategy, err)
	}
	if _, err := r.db.ExecContext(ctx, query, strategy, string(raw), r.now().UTC()); err != nil {
		return fmt.Errorf("%w: save params for %s: %v", ports.ErrUpdateFailed, strategy, err)
	}
	r.logger.Debug(ctx, "Strategy params saved", map[string]interface{}{"strategy": strategy, "params": params})
	return nil
}

// AllStrategyParams returns every stored override set keyed by strategy name.
func (r *Repository) AllStrategyParams(ctx context.Context) (map[string]domain.Params, error) {
	const query = `SELECT name, params FROM strategy_params ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list params: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	out := make(map[string]domain.Params)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan params: %v", ports.ErrQueryFailed, err)
		}
		params := domain.Params{}
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return nil, fmt.Errorf("%w: decode params for %s: %v", ports.ErrQueryFailed, name, err)
		}
		out[name] = params
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate params: %v", ports.ErrQueryFailed, err)
	}
	return out, nil
}
