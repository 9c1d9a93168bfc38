package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Market    OrderType = "MARKET"
	Limit     OrderType = "LIMIT"
	Stop      OrderType = "STOP"
	StopLimit OrderType = "STOP_LIMIT"
)

type CreateSessionRequest struct {
	StartCash decimal.Decimal `json:"start_cash,omitempty"` // falls back to server default
}

type CreateSessionResponse struct {
	SessionID string          `json:"session_id"`
	Cash      decimal.Decimal `json:"cash"`
}

type SubmitOrderRequest struct {
	Symbol       string          `json:"symbol" binding:"required"`
	Side         Side            `json:"side" binding:"required"`
	Type         OrderType       `json:"type" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	LimitPrice   decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice    decimal.Decimal `json:"stop_price,omitempty"`
	TakeProfit   decimal.Decimal `json:"take_profit,omitempty"`
	StopLoss     decimal.Decimal `json:"stop_loss,omitempty"`
	TrailingStop decimal.Decimal `json:"trailing_stop,omitempty"`
	FixedProfit  decimal.Decimal `json:"fixed_profit,omitempty"`
}

type SubmitOrderResponse struct {
	OrderID   string     `json:"order_id"`
	Status    string     `json:"status"`
	Execution *Execution `json:"execution,omitempty"` // set when filled immediately
	Message   string     `json:"message,omitempty"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message,omitempty"`
}

type ClosePositionRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	Side   Side   `json:"side" binding:"required"`
}

type ClosePositionResponse struct {
	Execution Execution `json:"execution"`
}

type TickRequest struct {
	Symbol    string          `json:"symbol" binding:"required"`
	Price     decimal.Decimal `json:"price" binding:"required"`
	Timestamp int64           `json:"ts,omitempty"` // unix milliseconds
}

type TickResponse struct {
	Executions []Execution `json:"executions"`
}

type AccountResponse struct {
	SessionID     string          `json:"session_id"`
	Cash          decimal.Decimal `json:"cash"`
	Equity        decimal.Decimal `json:"equity"`
	MarginUsed    decimal.Decimal `json:"margin_used"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Timestamp     time.Time       `json:"timestamp"`
}

type PositionsResponse struct {
	Positions []Position `json:"positions"`
}

type OrdersResponse struct {
	Orders []Order `json:"orders"`
}

type ExecutionsResponse struct {
	Executions []Execution `json:"executions"`
}

type Order struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice  decimal.Decimal `json:"stop_price,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Position struct {
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	MarginUsed    decimal.Decimal `json:"margin_used"`
}

type Execution struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	PnL        decimal.Decimal `json:"pnl"`
	ExecutedAt time.Time       `json:"executed_at"`
}
