package core

import (
	"github.com/shopspring/decimal"

	"github.com/quantverse/papertrade/internal/domain"
)

// triggered reports whether a resting order fires against the tick price p.
//
// LIMIT orders fire when the market trades through their limit price, STOP
// orders when it trades through their stop price, and STOP_LIMIT orders when
// the price lands inside the window between the two.
func triggered(o *domain.Order, p decimal.Decimal) bool {
	switch o.Type {
	case domain.Limit:
		if o.Side == domain.Buy {
			return p.LessThanOrEqual(o.LimitPrice)
		}
		return p.GreaterThanOrEqual(o.LimitPrice)
	case domain.Stop:
		if o.Side == domain.Buy {
			return p.GreaterThanOrEqual(o.StopPrice)
		}
		return p.LessThanOrEqual(o.StopPrice)
	case domain.StopLimit:
		if o.Side == domain.Buy {
			return p.GreaterThanOrEqual(o.StopPrice) && p.LessThanOrEqual(o.LimitPrice)
		}
		return p.GreaterThanOrEqual(o.LimitPrice) && p.LessThanOrEqual(o.StopPrice)
	}
	return false
}

// fillPrice returns the price a fired order executes at: LIMIT orders fill at
// their own limit price, STOP and STOP_LIMIT at the tick price.
func fillPrice(o *domain.Order, tickPrice decimal.Decimal) decimal.Decimal {
	if o.Type == domain.Limit {
		return o.LimitPrice
	}
	return tickPrice
}
