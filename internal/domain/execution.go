package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution records one fill or position close at a specific price.
// OrderID is empty for closes; PnL is zero for opening fills.
type Execution struct {
	ID         string
	OrderID    string
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	PnL        decimal.Decimal
	ExecutedAt time.Time
}
