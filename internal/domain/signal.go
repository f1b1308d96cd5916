package domain

import "time"

// Signal is a proposed trade action produced by a strategy, not yet filtered or sized.
// Zero Price, StopLoss, TakeProfit and Amount mean "not set".
type Signal struct {
	Strategy     string
	Symbol       string
	Side         Side
	OrderType    OrderType
	Confidence   float64 // In [0,1]
	Price        float64 // Limit price, only meaningful for limit orders
	StopLoss     float64
	TakeProfit   float64
	Amount       float64 // Quote-currency amount requested by the strategy
	Reason       string
	TrailingStop bool          // StopLoss should trail the price instead of a fixed take-profit
	MaxHoldTime  time.Duration // Zero when the strategy sets no timed exit
	Time         time.Time     // Timestamp of the bar that produced the signal
}
