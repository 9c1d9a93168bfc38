// Package core implements the paper-trading simulation: order intake, the
// pending order book, the position ledger, and per-tick valuation. One
// Session owns the whole state of one simulation; all operations are
// synchronous and mutex-guarded, so each tick is processed to completion
// before the next one is accepted.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/metrics"
	"github.com/quantverse/papertrade/internal/port"
)

// DefaultMarginRate is the fraction of entry notional reported as margin
// used. The figure is display-only: cash is debited at full notional on
// every fill and the margin amount is never reserved separately.
var DefaultMarginRate = decimal.NewFromFloat(0.20)

type positionKey struct {
	Symbol string
	Side   domain.Side
}

// Session is one independent paper-trading simulation.
type Session struct {
	mu sync.Mutex

	id         string
	cash       decimal.Decimal
	realized   decimal.Decimal
	marginRate decimal.Decimal
	createdAt  time.Time

	positions  map[positionKey]*domain.Position
	pending    []*domain.Order
	executions []*domain.Execution
	lastTick   map[string]domain.Tick

	repo  port.Repository
	cache port.Cache
	log   *logrus.Logger
	met   *metrics.Metrics
}

// NewSession creates a session with the given starting cash. Repository,
// cache and metrics may be nil; persistence and caching are then skipped.
func NewSession(startCash, marginRate decimal.Decimal, repo port.Repository, cache port.Cache, log *logrus.Logger, met *metrics.Metrics) *Session {
	if log == nil {
		log = logrus.New()
	}
	if marginRate.IsZero() {
		marginRate = DefaultMarginRate
	}
	s := &Session{
		id:         uuid.NewString(),
		cash:       startCash,
		realized:   decimal.Zero,
		marginRate: marginRate,
		createdAt:  time.Now(),
		positions:  make(map[positionKey]*domain.Position),
		lastTick:   make(map[string]domain.Tick),
		repo:       repo,
		cache:      cache,
		log:        log,
		met:        met,
	}
	if repo != nil {
		if err := repo.SaveSession(context.Background(), s.stateLocked()); err != nil {
			log.WithError(err).Warn("failed to persist new session")
		}
	}
	return s
}

// RestoreSession rebuilds a session from persisted state, reloading any
// resting orders from the repository. The cached account snapshot predates
// the restart and is dropped.
func RestoreSession(ctx context.Context, st *domain.SessionState, repo port.Repository, cache port.Cache, log *logrus.Logger, met *metrics.Metrics) (*Session, error) {
	if log == nil {
		log = logrus.New()
	}
	marginRate := st.MarginRate
	if marginRate.IsZero() {
		marginRate = DefaultMarginRate
	}
	s := &Session{
		id:         st.ID,
		cash:       st.Cash,
		realized:   st.RealizedPnL,
		marginRate: marginRate,
		createdAt:  st.CreatedAt,
		positions:  make(map[positionKey]*domain.Position),
		lastTick:   make(map[string]domain.Tick),
		repo:       repo,
		cache:      cache,
		log:        log,
		met:        met,
	}
	if repo != nil {
		pending, err := repo.LoadPendingOrders(ctx, s.id)
		if err != nil {
			return nil, err
		}
		s.pending = pending

		positions, err := repo.LoadPositions(ctx, s.id)
		if err != nil {
			return nil, err
		}
		for _, pos := range positions {
			s.positions[positionKey{Symbol: pos.Symbol, Side: pos.Side}] = pos
		}
	}
	if cache != nil {
		if err := cache.Invalidate(ctx, s.id); err != nil {
			log.WithError(err).Warn("failed to drop stale account cache")
		}
	}
	log.WithFields(logrus.Fields{
		"session":   s.id,
		"pending":   len(s.pending),
		"positions": len(s.positions),
	}).Info("session restored")
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SubmitOrder validates the order, executes it immediately when it is a
// market order, and otherwise parks it in the pending book. The order is
// mutated in place with its assigned ID and status. Validation and
// insufficient-funds failures leave the session state untouched.
func (s *Session) SubmitOrder(ctx context.Context, o *domain.Order) (*domain.Execution, error) {
	if err := validateOrder(o); err != nil {
		s.countRejected()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = uuid.NewString()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt

	if !o.Type.Resting() {
		tick, ok := s.lastTick[o.Symbol]
		if !ok {
			s.countRejected()
			return nil, ErrNoMarketPrice
		}
		exec, err := s.fillLocked(ctx, o, tick.Price)
		if err != nil {
			s.countRejected()
			return nil, err
		}
		s.countSubmitted()
		s.countFilled()
		s.refreshCache(ctx)
		return exec, nil
	}

	o.Status = domain.Pending
	s.pending = append(s.pending, o)
	s.persistOrder(ctx, o)
	s.countSubmitted()

	s.log.WithFields(logrus.Fields{
		"session": s.id,
		"order":   o.ID,
		"symbol":  o.Symbol,
		"type":    o.Type,
		"side":    o.Side,
	}).Debug("order resting in pending book")

	return nil, nil
}

// CancelOrder removes a pending order from the book before it fires.
func (s *Session) CancelOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, o := range s.pending {
		if o.ID == orderID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			o.Status = domain.Cancelled
			o.UpdatedAt = time.Now()
			s.persistOrder(ctx, o)
			return nil
		}
	}
	return ErrOrderNotFound
}

// ApplyTick processes one price update to completion: pending orders are
// evaluated (most-recently-added first), protective exits are checked, and
// every open position on the symbol is revalued. It returns the executions
// the tick produced.
func (s *Session) ApplyTick(ctx context.Context, tick domain.Tick) ([]*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tick.Timestamp.IsZero() {
		tick.Timestamp = time.Now()
	}
	s.lastTick[tick.Symbol] = tick
	s.countTick()

	var fired []*domain.Execution

	// Evaluate the book in reverse-insertion order. Survivors keep their
	// relative order.
	remaining := s.pending[:0]
	for i := len(s.pending) - 1; i >= 0; i-- {
		o := s.pending[i]
		if o.Symbol != tick.Symbol || !triggered(o, tick.Price) {
			continue
		}
		px := fillPrice(o, tick.Price)
		exec, err := s.fillLocked(ctx, o, px)
		if err != nil {
			o.Status = domain.Rejected
			o.UpdatedAt = time.Now()
			s.persistOrder(ctx, o)
			s.countRejected()
			s.log.WithError(err).WithFields(logrus.Fields{
				"session": s.id,
				"order":   o.ID,
			}).Warn("pending order rejected at trigger time")
			continue
		}
		s.countFilled()
		fired = append(fired, exec)
	}
	for _, o := range s.pending {
		if o.Status == domain.Pending {
			remaining = append(remaining, o)
		}
	}
	s.pending = remaining

	closed := s.checkProtectiveExits(ctx, tick)
	fired = append(fired, closed...)

	s.revalueLocked(tick.Symbol, tick.Price)
	s.refreshCache(ctx)

	return fired, nil
}

// ClosePosition closes the whole (symbol, side) position at the current
// market price, realizing its P&L and crediting cash with the exit notional.
func (s *Session) ClosePosition(ctx context.Context, symbol string, side domain.Side) (*domain.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick, ok := s.lastTick[symbol]
	if !ok {
		return nil, ErrNoMarketPrice
	}
	exec, err := s.closeLocked(ctx, symbol, side, tick.Price)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx)
	return exec, nil
}

// Account returns the current account snapshot: cash, margin in use,
// realized P&L, and the unrealized P&L summed over open positions.
func (s *Session) Account() *domain.AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Positions returns copies of all open positions.
func (s *Session) Positions() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, *p)
	}
	return out
}

// PendingOrders returns copies of resting orders in insertion order.
func (s *Session) PendingOrders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.pending))
	for _, o := range s.pending {
		out = append(out, *o)
	}
	return out
}

// Executions returns copies of all execution records, oldest first.
func (s *Session) Executions() []domain.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Execution, 0, len(s.executions))
	for _, e := range s.executions {
		out = append(out, *e)
	}
	return out
}

// ---------------------------------------------------------------------------
// internals (callers hold s.mu)
// ---------------------------------------------------------------------------

func validateOrder(o *domain.Order) error {
	if o.Symbol == "" {
		return ErrInvalidSymbol
	}
	if !o.Side.Valid() {
		return ErrInvalidSide
	}
	if !o.Type.Valid() {
		return ErrInvalidOrderType
	}
	if !o.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if (o.Type == domain.Limit || o.Type == domain.StopLimit) && !o.LimitPrice.IsPositive() {
		return ErrLimitPriceMissing
	}
	if (o.Type == domain.Stop || o.Type == domain.StopLimit) && !o.StopPrice.IsPositive() {
		return ErrStopPriceMissing
	}
	return nil
}

// fillLocked executes an order at px: debits cash by the full notional,
// merges the fill into the ledger and records the execution.
func (s *Session) fillLocked(ctx context.Context, o *domain.Order, px decimal.Decimal) (*domain.Execution, error) {
	notional := px.Mul(o.Quantity)
	if notional.GreaterThan(s.cash) {
		return nil, ErrInsufficientFunds
	}

	now := time.Now()
	o.Status = domain.Filled
	o.UpdatedAt = now

	s.cash = s.cash.Sub(notional)

	key := positionKey{Symbol: o.Symbol, Side: o.Side}
	pos, ok := s.positions[key]
	if !ok {
		pos = &domain.Position{
			Symbol:       o.Symbol,
			Side:         o.Side,
			Quantity:     o.Quantity,
			AvgPrice:     px,
			TakeProfit:   o.TakeProfit,
			StopLoss:     o.StopLoss,
			TrailingStop: o.TrailingStop,
			FixedProfit:  o.FixedProfit,
			OpenedAt:     now,
		}
		s.positions[key] = pos
	} else {
		// Volume-weighted average across all constituent fills.
		oldNotional := pos.Notional()
		newQty := pos.Quantity.Add(o.Quantity)
		pos.AvgPrice = oldNotional.Add(notional).Div(newQty)
		pos.Quantity = newQty
	}
	pos.UpdatedAt = now

	exec := &domain.Execution{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		Symbol:     o.Symbol,
		Side:       o.Side,
		Quantity:   o.Quantity,
		Price:      px,
		ExecutedAt: now,
	}
	s.executions = append(s.executions, exec)

	s.persistFill(ctx, o, exec, pos)

	s.log.WithFields(logrus.Fields{
		"session": s.id,
		"order":   o.ID,
		"symbol":  o.Symbol,
		"side":    o.Side,
		"price":   px.String(),
		"qty":     o.Quantity.String(),
	}).Info("order filled")

	return exec, nil
}

// closeLocked removes the position entirely and realizes its P&L.
func (s *Session) closeLocked(ctx context.Context, symbol string, side domain.Side, exitPx decimal.Decimal) (*domain.Execution, error) {
	key := positionKey{Symbol: symbol, Side: side}
	pos, ok := s.positions[key]
	if !ok {
		return nil, ErrPositionNotFound
	}

	pnl := exitPx.Sub(pos.AvgPrice).Mul(pos.Quantity)
	if side == domain.Sell {
		pnl = pnl.Neg()
	}
	s.realized = s.realized.Add(pnl)
	s.cash = s.cash.Add(exitPx.Mul(pos.Quantity))
	delete(s.positions, key)

	exec := &domain.Execution{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Quantity:   pos.Quantity,
		Price:      exitPx,
		PnL:        pnl,
		ExecutedAt: time.Now(),
	}
	s.executions = append(s.executions, exec)

	s.persistClose(ctx, exec, symbol, side)
	s.countClosed()

	s.log.WithFields(logrus.Fields{
		"session": s.id,
		"symbol":  symbol,
		"side":    side,
		"exit":    exitPx.String(),
		"pnl":     pnl.String(),
	}).Info("position closed")

	return exec, nil
}

// checkProtectiveExits updates trailing stops and closes positions whose
// take-profit, stop-loss or fixed-profit exit condition is met by the tick.
func (s *Session) checkProtectiveExits(ctx context.Context, tick domain.Tick) []*domain.Execution {
	var closed []*domain.Execution
	p := tick.Price

	for key, pos := range s.positions {
		if pos.Symbol != tick.Symbol {
			continue
		}

		if pos.TrailingStop.IsPositive() {
			if pos.Side == domain.Buy {
				candidate := p.Sub(pos.TrailingStop)
				if candidate.GreaterThan(pos.StopLoss) {
					pos.StopLoss = candidate
				}
			} else {
				candidate := p.Add(pos.TrailingStop)
				if pos.StopLoss.IsZero() || candidate.LessThan(pos.StopLoss) {
					pos.StopLoss = candidate
				}
			}
		}

		if !s.shouldExit(pos, p) {
			continue
		}
		exec, err := s.closeLocked(ctx, key.Symbol, key.Side, p)
		if err != nil {
			s.log.WithError(err).WithField("session", s.id).Warn("protective exit failed")
			continue
		}
		closed = append(closed, exec)
	}
	return closed
}

func (s *Session) shouldExit(pos *domain.Position, p decimal.Decimal) bool {
	if pos.FixedProfit.IsPositive() {
		pnl := p.Sub(pos.AvgPrice).Mul(pos.Quantity)
		if pos.Side == domain.Sell {
			pnl = pnl.Neg()
		}
		if pnl.GreaterThanOrEqual(pos.FixedProfit) {
			return true
		}
	}
	if pos.Side == domain.Buy {
		if pos.TakeProfit.IsPositive() && p.GreaterThanOrEqual(pos.TakeProfit) {
			return true
		}
		if pos.StopLoss.IsPositive() && p.LessThanOrEqual(pos.StopLoss) {
			return true
		}
		return false
	}
	if pos.TakeProfit.IsPositive() && p.LessThanOrEqual(pos.TakeProfit) {
		return true
	}
	if pos.StopLoss.IsPositive() && p.GreaterThanOrEqual(pos.StopLoss) {
		return true
	}
	return false
}

// revalueLocked recomputes unrealized P&L and margin used for every open
// position on the symbol. Values are replaced, never accumulated.
func (s *Session) revalueLocked(symbol string, p decimal.Decimal) {
	for _, pos := range s.positions {
		if pos.Symbol != symbol {
			continue
		}
		diff := p.Sub(pos.AvgPrice)
		if pos.Side == domain.Sell {
			diff = diff.Neg()
		}
		pos.UnrealizedPnL = diff.Mul(pos.Quantity)
		pos.MarginUsed = pos.Notional().Mul(s.marginRate)
	}
}

func (s *Session) snapshotLocked() *domain.AccountSnapshot {
	unrealized := decimal.Zero
	margin := decimal.Zero
	for _, pos := range s.positions {
		unrealized = unrealized.Add(pos.UnrealizedPnL)
		margin = margin.Add(pos.MarginUsed)
	}
	return &domain.AccountSnapshot{
		SessionID:     s.id,
		Cash:          s.cash,
		Equity:        s.cash.Add(unrealized),
		MarginUsed:    margin,
		RealizedPnL:   s.realized,
		UnrealizedPnL: unrealized,
		Timestamp:     time.Now(),
	}
}

func (s *Session) stateLocked() *domain.SessionState {
	return &domain.SessionState{
		ID:          s.id,
		Cash:        s.cash,
		RealizedPnL: s.realized,
		MarginRate:  s.marginRate,
		CreatedAt:   s.createdAt,
	}
}
