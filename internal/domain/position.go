package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the aggregate open exposure to one instrument on one side.
// BUY and SELL positions on the same symbol are independent records; the
// ledger never nets them against each other.
type Position struct {
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
	AvgPrice decimal.Decimal // volume-weighted average entry price

	// Derived, recomputed on every tick for the symbol.
	UnrealizedPnL decimal.Decimal
	MarginUsed    decimal.Decimal

	// Protective exits inherited from the opening order, zero when unset.
	TakeProfit   decimal.Decimal
	StopLoss     decimal.Decimal
	TrailingStop decimal.Decimal
	FixedProfit  decimal.Decimal

	OpenedAt  time.Time
	UpdatedAt time.Time
}

// Notional returns the entry-price notional value of the position.
func (p *Position) Notional() decimal.Decimal {
	return p.AvgPrice.Mul(p.Quantity)
}
