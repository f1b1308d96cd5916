package domain

import "time"

// DustThreshold is the quantity below which a position is considered closed.
const DustThreshold = 0.001

// Position represents a long holding in a single symbol.
type Position struct {
	Symbol      string        `json:"symbol"`
	Quantity    float64       `json:"quantity"`
	AvgPrice    float64       `json:"avg_price"`
	EntryTime   time.Time     `json:"entry_time"`
	Strategy    string        `json:"strategy,omitempty"`     // Strategy that opened the position
	MaxHoldTime time.Duration `json:"max_hold_time,omitempty"` // Forced exit deadline relative to EntryTime, zero if none
}

// Value returns the mark-to-market value of the position.
func (p *Position) Value(price float64) float64 {
	return p.Quantity * price
}

// HoldExpired reports whether a max hold time was set and has elapsed at now.
func (p *Position) HoldExpired(now time.Time) bool {
	return p.MaxHoldTime > 0 && now.Sub(p.EntryTime) >= p.MaxHoldTime
}
