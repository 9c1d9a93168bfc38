package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot is the point-in-time financial state of one session.
// UnrealizedPnL is replaced on every tick; RealizedPnL accumulates as
// positions are closed.
type AccountSnapshot struct {
	SessionID     string
	Cash          decimal.Decimal
	Equity        decimal.Decimal // cash + unrealized P&L
	MarginUsed    decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Timestamp     time.Time
}

// SessionState is the persistable identity and balances of a session.
type SessionState struct {
	ID          string
	Cash        decimal.Decimal
	RealizedPnL decimal.Decimal
	MarginRate  decimal.Decimal
	CreatedAt   time.Time
}
