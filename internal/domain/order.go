package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"

	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	Stop      OrderType = "STOP"
	StopLimit OrderType = "STOP_LIMIT"

	Pending   OrderStatus = "PENDING"
	Filled    OrderStatus = "FILLED"
	Cancelled OrderStatus = "CANCELLED"
	Rejected  OrderStatus = "REJECTED"
)

// Order is a trade request submitted to a simulation session. Market orders
// fill immediately; all other types rest in the pending book until a tick
// satisfies their trigger condition.
type Order struct {
	ID         string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal // required for LIMIT and STOP_LIMIT
	StopPrice  decimal.Decimal // required for STOP and STOP_LIMIT

	// Optional protective exits, attached to the resulting position on fill.
	TakeProfit   decimal.Decimal
	StopLoss     decimal.Decimal
	TrailingStop decimal.Decimal // distance from the best seen price
	FixedProfit  decimal.Decimal // close once unrealized P&L reaches this amount

	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

func (t OrderType) Valid() bool {
	switch t {
	case Market, Limit, Stop, StopLimit:
		return true
	}
	return false
}

// Resting reports whether the order type rests in the pending book rather
// than executing immediately.
func (t OrderType) Resting() bool {
	return t != Market
}
