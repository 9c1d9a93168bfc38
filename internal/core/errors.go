package core

import "errors"

var (
	ErrInvalidSymbol     = errors.New("symbol is required")
	ErrInvalidSide       = errors.New("invalid side")
	ErrInvalidOrderType  = errors.New("invalid order type")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrLimitPriceMissing = errors.New("limit price must be > 0 for LIMIT and STOP_LIMIT orders")
	ErrStopPriceMissing  = errors.New("stop price must be > 0 for STOP and STOP_LIMIT orders")
	ErrNoMarketPrice     = errors.New("no market price seen for symbol")
	ErrInsufficientFunds = errors.New("order notional exceeds cash balance")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrSessionNotFound   = errors.New("session not found")
)
