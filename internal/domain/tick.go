package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one price update for an instrument, the sole external trigger for
// pending-order evaluation and revaluation.
type Tick struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}
