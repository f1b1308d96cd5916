package domain

// Side represents the side of a signal, order or trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is how a signal wants to be filled.
type OrderType string

const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// CloseReason indicates why a position was reduced or closed.
type CloseReason string

const (
	CloseReasonSignal     CloseReason = "SIGNAL"
	CloseReasonTimeLimit  CloseReason = "TIME_LIMIT" // Position closed because its max hold time elapsed
	CloseReasonManual     CloseReason = "MANUAL"
	CloseReasonStopLoss   CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit CloseReason = "TAKE_PROFIT"
)

// Params is a flat strategy parameter set keyed by parameter name.
type Params map[string]float64

// Merge returns a copy of p with every key of overrides applied on top.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Int returns the named parameter truncated to an int.
func (p Params) Int(name string) int {
	return int(p[name])
}

// Bool treats any non-zero value as true.
func (p Params) Bool(name string) bool {
	return p[name] != 0
}
