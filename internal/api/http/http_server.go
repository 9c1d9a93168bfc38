package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/api/dto"
	"github.com/quantverse/papertrade/internal/core"
	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/metrics"
	"github.com/quantverse/papertrade/internal/middleware"
)

type HTTPServer struct {
	mgr *core.Manager
	met *metrics.Metrics
	log *logrus.Logger
}

func NewHTTPServer(mgr *core.Manager, met *metrics.Metrics, log *logrus.Logger) *HTTPServer {
	if log == nil {
		log = logrus.New()
	}
	return &HTTPServer{mgr: mgr, met: met, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *HTTPServer) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.met != nil {
		r.GET("/metrics", gin.WrapH(s.met.Handler()))
	}

	rl := middleware.NewRateLimiter(time.Millisecond * 100)
	api := r.Group("/", rl.Middleware())

	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id/account", s.getAccount)
	api.GET("/sessions/:id/positions", s.getPositions)
	api.GET("/sessions/:id/orders", s.getOrders)
	api.GET("/sessions/:id/executions", s.getExecutions)
	api.POST("/sessions/:id/orders", s.submitOrder)
	api.POST("/sessions/:id/orders/cancel", s.cancelOrder)
	api.POST("/sessions/:id/positions/close", s.closePosition)
	api.POST("/sessions/:id/ticks", s.applyTick)

	return r
}

func (s *HTTPServer) Run(addr string) error {
	return s.Router().Run(addr)
}

func (s *HTTPServer) createSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.StartCash.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_cash must be >= 0"})
		return
	}

	sess := s.mgr.Create(req.StartCash)
	snap := sess.Account()
	c.JSON(http.StatusOK, dto.CreateSessionResponse{
		SessionID: sess.ID(),
		Cash:      snap.Cash,
	})
}

func (s *HTTPServer) submitOrder(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req dto.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ValidateOrder(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	o := &domain.Order{
		Symbol:       req.Symbol,
		Side:         domain.Side(req.Side),
		Type:         domain.OrderType(req.Type),
		Quantity:     req.Quantity,
		LimitPrice:   req.LimitPrice,
		StopPrice:    req.StopPrice,
		TakeProfit:   req.TakeProfit,
		StopLoss:     req.StopLoss,
		TrailingStop: req.TrailingStop,
		FixedProfit:  req.FixedProfit,
	}

	exec, err := sess.SubmitOrder(c.Request.Context(), o)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrInsufficientFunds) || errors.Is(err, core.ErrNoMarketPrice) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	resp := dto.SubmitOrderResponse{
		OrderID: o.ID,
		Status:  string(o.Status),
	}
	if exec != nil {
		e := convertExecution(*exec)
		resp.Execution = &e
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) cancelOrder(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := sess.CancelOrder(c.Request.Context(), req.OrderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{
		OrderID:   req.OrderID,
		Cancelled: true,
	})
}

func (s *HTTPServer) closePosition(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req dto.ClosePositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exec, err := sess.ClosePosition(c.Request.Context(), req.Symbol, domain.Side(req.Side))
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, core.ErrNoMarketPrice) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ClosePositionResponse{Execution: convertExecution(*exec)})
}

func (s *HTTPServer) applyTick(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	var req dto.TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Price.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must be > 0"})
		return
	}

	tick := domain.Tick{Symbol: req.Symbol, Price: req.Price}
	if req.Timestamp > 0 {
		tick.Timestamp = time.UnixMilli(req.Timestamp)
	}

	execs, err := sess.ApplyTick(c.Request.Context(), tick)
	if err != nil {
		s.log.WithError(err).WithField("session", sess.ID()).Error("tick processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.TickResponse{Executions: make([]dto.Execution, 0, len(execs))}
	for _, e := range execs {
		resp.Executions = append(resp.Executions, convertExecution(*e))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) getAccount(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	snap := sess.Account()
	c.JSON(http.StatusOK, dto.AccountResponse{
		SessionID:     snap.SessionID,
		Cash:          snap.Cash,
		Equity:        snap.Equity,
		MarginUsed:    snap.MarginUsed,
		RealizedPnL:   snap.RealizedPnL,
		UnrealizedPnL: snap.UnrealizedPnL,
		Timestamp:     snap.Timestamp,
	})
}

func (s *HTTPServer) getPositions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	positions := sess.Positions()
	resp := dto.PositionsResponse{Positions: make([]dto.Position, 0, len(positions))}
	for _, p := range positions {
		resp.Positions = append(resp.Positions, dto.Position{
			Symbol:        p.Symbol,
			Side:          dto.Side(p.Side),
			Quantity:      p.Quantity,
			AvgPrice:      p.AvgPrice,
			UnrealizedPnL: p.UnrealizedPnL,
			MarginUsed:    p.MarginUsed,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) getOrders(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	orders := sess.PendingOrders()
	resp := dto.OrdersResponse{Orders: make([]dto.Order, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, dto.Order{
			ID:         o.ID,
			Symbol:     o.Symbol,
			Side:       dto.Side(o.Side),
			Type:       dto.OrderType(o.Type),
			Quantity:   o.Quantity,
			LimitPrice: o.LimitPrice,
			StopPrice:  o.StopPrice,
			Status:     string(o.Status),
			CreatedAt:  o.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) getExecutions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	execs := sess.Executions()
	resp := dto.ExecutionsResponse{Executions: make([]dto.Execution, 0, len(execs))}
	for _, e := range execs {
		resp.Executions = append(resp.Executions, convertExecution(e))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) session(c *gin.Context) (*core.Session, bool) {
	sess, err := s.mgr.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func convertExecution(e domain.Execution) dto.Execution {
	return dto.Execution{
		ID:         e.ID,
		OrderID:    e.OrderID,
		Symbol:     e.Symbol,
		Side:       dto.Side(e.Side),
		Quantity:   e.Quantity,
		Price:      e.Price,
		PnL:        e.PnL,
		ExecutedAt: e.ExecutedAt,
	}
}

// ValidateOrder mirrors the engine's intake rules so obviously bad requests
// are rejected before they reach a session.
func ValidateOrder(req *dto.SubmitOrderRequest) error {
	switch req.Side {
	case dto.Buy, dto.Sell:
	default:
		return fmt.Errorf("invalid side: %s", req.Side)
	}
	switch req.Type {
	case dto.Market, dto.Limit, dto.Stop, dto.StopLimit:
	default:
		return fmt.Errorf("invalid order type: %s", req.Type)
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("quantity must be > 0")
	}
	if (req.Type == dto.Limit || req.Type == dto.StopLimit) && !req.LimitPrice.IsPositive() {
		return fmt.Errorf("limit price must be > 0 for %s orders", req.Type)
	}
	if (req.Type == dto.Stop || req.Type == dto.StopLimit) && !req.StopPrice.IsPositive() {
		return fmt.Errorf("stop price must be > 0 for %s orders", req.Type)
	}
	return nil
}
