package domain

import "time"

// MarketConditions describes the market regime at the time of a trade.
type MarketConditions struct {
	Volatility string `json:"volatility"` // "high", "low" or "unknown"
	Trend      string `json:"trend"`      // "bullish", "bearish" or "unknown"
	Session    string `json:"session"`    // "asian", "european" or "american"
}

// JournalEntry is a trade remembered for learning and performance insights.
type JournalEntry struct {
	ID         int64
	Timestamp  time.Time
	Strategy   string
	Symbol     string
	Side       Side
	Price      float64
	Quantity   float64
	Profit     float64
	Confidence float64
	Reason     string
	Conditions MarketConditions
}

// Snapshot is the persisted state of a paper portfolio.
type Snapshot struct {
	Balance      float64              `json:"balance"`
	Positions    map[string]*Position `json:"positions"`
	TradeHistory []Trade              `json:"trade_history"`
	LastUpdated  time.Time            `json:"last_updated"`
}

// LearnedPatterns collects the market conditions under which a strategy's
// trades won or lost. Each list keeps only the most recent entries.
type LearnedPatterns struct {
	Strategy     string
	Successful   []MarketConditions
	Failed       []MarketConditions
	OptimalTimes []time.Time // Timestamps of winning trades
}
