package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// RecordTrade journals entry and, for sells, remembers the market conditions
// as a success or failure pattern of its strategy.
func (r *Repository) RecordTrade(ctx context.Context, entry *domain.JournalEntry) (int64, error) {
	const insertEntry = `
	INSERT INTO trade_journal (timestamp, strategy, symbol, side, price, quantity, profit,
	                           confidence, reason, volatility, trend, session)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	const pruneJournal = `DELETE FROM trade_journal WHERE id <= ?`

	if entry == nil {
		return 0, fmt.Errorf("%w: nil journal entry", ports.ErrInvalidRequest)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	cond := normalizeConditions(entry.Conditions)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin journal tx: %v", ports.ErrDBConnection, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, insertEntry,
		entry.Timestamp.UTC(), entry.Strategy, entry.Symbol, string(entry.Side), entry.Price, entry.Quantity,
		entry.Profit, entry.Confidence, entry.Reason, cond.Volatility, cond.Trend, cond.Session)
	if err != nil {
		return 0, fmt.Errorf("%w: insert journal entry for %s: %v", ports.ErrUpdateFailed, entry.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: journal insert id for %s: %v", ports.ErrUpdateFailed, entry.Symbol, err)
	}
	if id > journalCap {
		if _, err := tx.ExecContext(ctx, pruneJournal, id-journalCap); err != nil {
			return 0, fmt.Errorf("%w: prune journal: %v", ports.ErrUpdateFailed, err)
		}
	}

	if entry.Strategy != "" && entry.Side == domain.Sell {
		if err := learn(ctx, tx, entry, cond); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit journal entry: %v", ports.ErrUpdateFailed, err)
	}

	entry.ID = id
	r.logger.Debug(ctx, "Trade journaled", map[string]interface{}{"id": id, "strategy": entry.Strategy, "symbol": entry.Symbol, "profit": entry.Profit})
	return id, nil
}

func learn(ctx context.Context, tx *sql.Tx, entry *domain.JournalEntry, cond domain.MarketConditions) error {
	const insertPattern = `
	INSERT INTO learned_patterns (strategy, outcome, volatility, trend, session, timestamp)
	VALUES (?, ?, ?, ?, ?, ?)`
	const prunePatterns = `
	DELETE FROM learned_patterns
	WHERE strategy = ? AND outcome = ? AND id NOT IN (
		SELECT id FROM learned_patterns WHERE strategy = ? AND outcome = ? ORDER BY id DESC LIMIT ?
	)`

	outcome := outcomeFailure
	if entry.Profit > 0 {
		outcome = outcomeSuccess
	}
	if _, err := tx.ExecContext(ctx, insertPattern,
		entry.Strategy, outcome, cond.Volatility, cond.Trend, cond.Session, entry.Timestamp.UTC()); err != nil {
		return fmt.Errorf("%w: insert pattern for %s: %v", ports.ErrUpdateFailed, entry.Strategy, err)
	}
	if _, err := tx.ExecContext(ctx, prunePatterns,
		entry.Strategy, outcome, entry.Strategy, outcome, patternCap); err != nil {
		return fmt.Errorf("%w: prune patterns for %s: %v", ports.ErrUpdateFailed, entry.Strategy, err)
	}
	return nil
}

// FindByStrategy returns up to limit of the most recent entries, oldest first.
// An empty strategy matches every entry; a non-positive limit means no limit.
func (r *Repository) FindByStrategy(ctx context.Context, strategy string, limit int) ([]*domain.JournalEntry, error) {
	const query = `
	SELECT id, timestamp, strategy, symbol, side, price, quantity, profit,
	       confidence, reason, volatility, trend, session
	FROM trade_journal
	WHERE (? = '' OR strategy = ?)
	ORDER BY id DESC LIMIT ?`

	if limit <= 0 {
		limit = journalCap
	}
	rows, err := r.db.QueryContext(ctx, query, strategy, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: query journal for %q: %v", ports.ErrQueryFailed, strategy, err)
	}
	defer rows.Close()

	entries := make([]*domain.JournalEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan journal entry: %v", ports.ErrQueryFailed, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate journal rows: %v", ports.ErrQueryFailed, err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// LearnedPatterns returns the remembered conditions of strategy's winning and losing sells.
func (r *Repository) LearnedPatterns(ctx context.Context, strategy string) (domain.LearnedPatterns, error) {
	const query = `
	SELECT outcome, volatility, trend, session, timestamp
	FROM learned_patterns WHERE strategy = ? ORDER BY id ASC`

	patterns := domain.LearnedPatterns{Strategy: strategy}
	rows, err := r.db.QueryContext(ctx, query, strategy)
	if err != nil {
		return patterns, fmt.Errorf("%w: query patterns for %s: %v", ports.ErrQueryFailed, strategy, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			cond    domain.MarketConditions
			ts      time.Time
		)
		if err := rows.Scan(&outcome, &cond.Volatility, &cond.Trend, &cond.Session, &ts); err != nil {
			return patterns, fmt.Errorf("%w: scan pattern: %v", ports.ErrQueryFailed, err)
		}
		if outcome == outcomeSuccess {
			patterns.Successful = append(patterns.Successful, cond)
			patterns.OptimalTimes = append(patterns.OptimalTimes, ts)
		} else {
			patterns.Failed = append(patterns.Failed, cond)
		}
	}
	if err := rows.Err(); err != nil {
		return patterns, fmt.Errorf("%w: iterate patterns: %v", ports.ErrQueryFailed, err)
	}
	return patterns, nil
}

func scanEntry(s scanner) (*domain.JournalEntry, error) {
	e := &domain.JournalEntry{}
	var side string
	err := s.Scan(&e.ID, &e.Timestamp, &e.Strategy, &e.Symbol, &side, &e.Price, &e.Quantity, &e.Profit,
		&e.Confidence, &e.Reason, &e.Conditions.Volatility, &e.Conditions.Trend, &e.Conditions.Session)
	if err != nil {
		return nil, err
	}
	e.Side = domain.Side(side)
	return e, nil
}

func normalizeConditions(c domain.MarketConditions) domain.MarketConditions {
	if c.Volatility == "" {
		c.Volatility = "unknown"
	}
	if c.Trend == "" {
		c.Trend = "unknown"
	}
	return c
}
