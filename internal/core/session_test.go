package core

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantverse/papertrade/internal/adapter/in_memory"
	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/metrics"
)

func newTestSession(t *testing.T, startCash string) (*Session, *in_memory.MemoryRepo) {
	t.Helper()
	repo := in_memory.NewMemoryRepo()
	s := NewSession(dec(startCash), decimal.Zero, repo, in_memory.NewCache(), nil, metrics.New())
	return s, repo
}

func tickAt(s *Session, t *testing.T, symbol, price string) []*domain.Execution {
	t.Helper()
	execs, err := s.ApplyTick(context.Background(), domain.Tick{Symbol: symbol, Price: dec(price)})
	require.NoError(t, err)
	return execs
}

func marketOrder(symbol string, side domain.Side, qty string) *domain.Order {
	return &domain.Order{Symbol: symbol, Side: side, Type: domain.Market, Quantity: dec(qty)}
}

func limitOrder(symbol string, side domain.Side, qty, limit string) *domain.Order {
	return &domain.Order{Symbol: symbol, Side: side, Type: domain.Limit, Quantity: dec(qty), LimitPrice: dec(limit)}
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s: %v", want, got, msgAndArgs)
}

func TestSubmitOrder_Validation(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tests := []struct {
		name  string
		order *domain.Order
		want  error
	}{
		{"empty symbol", &domain.Order{Side: domain.Buy, Type: domain.Market, Quantity: dec("1")}, ErrInvalidSymbol},
		{"bad side", &domain.Order{Symbol: "ETHUSD", Side: "LONG", Type: domain.Market, Quantity: dec("1")}, ErrInvalidSide},
		{"bad type", &domain.Order{Symbol: "ETHUSD", Side: domain.Buy, Type: "TRAILING", Quantity: dec("1")}, ErrInvalidOrderType},
		{"zero quantity", &domain.Order{Symbol: "ETHUSD", Side: domain.Buy, Type: domain.Market}, ErrInvalidQuantity},
		{"negative quantity", &domain.Order{Symbol: "ETHUSD", Side: domain.Buy, Type: domain.Market, Quantity: dec("-2")}, ErrInvalidQuantity},
		{"limit without limit price", &domain.Order{Symbol: "ETHUSD", Side: domain.Buy, Type: domain.Limit, Quantity: dec("1")}, ErrLimitPriceMissing},
		{"stop without stop price", &domain.Order{Symbol: "ETHUSD", Side: domain.Sell, Type: domain.Stop, Quantity: dec("1")}, ErrStopPriceMissing},
		{"stop limit without stop price", &domain.Order{Symbol: "ETHUSD", Side: domain.Buy, Type: domain.StopLimit, Quantity: dec("1"), LimitPrice: dec("100")}, ErrStopPriceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SubmitOrder(ctx, tt.order)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, s.PendingOrders())
	assertDec(t, "100000", s.Account().Cash, "rejected orders must not touch cash")
}

func TestSubmitOrder_MarketFill(t *testing.T) {
	s, repo := newTestSession(t, "100000")
	ctx := context.Background()

	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	assert.ErrorIs(t, err, ErrNoMarketPrice, "market order needs a last seen price")

	tickAt(s, t, "ETHUSD", "2500")

	exec, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	require.NoError(t, err)
	require.NotNil(t, exec)
	assertDec(t, "2500", exec.Price)
	assertDec(t, "10", exec.Quantity)

	snap := s.Account()
	assertDec(t, "75000", snap.Cash, "cash debited by full notional")

	positions := s.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "2500", positions[0].AvgPrice)
	assertDec(t, "10", positions[0].Quantity)
	assert.Equal(t, domain.Buy, positions[0].Side)

	stored, ok := repo.Session(s.ID())
	require.True(t, ok)
	assertDec(t, "75000", stored.Cash, "fill must be persisted")
	assert.Len(t, repo.Executions(s.ID()), 1)
}

func TestSubmitOrder_InsufficientFunds(t *testing.T) {
	s, _ := newTestSession(t, "1000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "2500")

	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "1"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertDec(t, "1000", s.Account().Cash)
	assert.Empty(t, s.Positions())
}

func TestVWAPMergeIsOrderIndependent(t *testing.T) {
	fills := func(t *testing.T, prices []string) decimal.Decimal {
		s, _ := newTestSession(t, "1000000")
		ctx := context.Background()
		for _, p := range prices {
			tickAt(s, t, "ETHUSD", p)
			_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
			require.NoError(t, err)
		}
		positions := s.Positions()
		require.Len(t, positions, 1)
		assertDec(t, "20", positions[0].Quantity)
		return positions[0].AvgPrice
	}

	a := fills(t, []string{"100", "110"})
	b := fills(t, []string{"110", "100"})
	assert.True(t, a.Equal(b), "avg %s vs %s", a, b)
	assertDec(t, "105", a)
}

func TestLimitBuyLifecycle(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "2600")

	exec, err := s.SubmitOrder(ctx, limitOrder("ETHUSD", domain.Buy, "5", "2500"))
	require.NoError(t, err)
	assert.Nil(t, exec, "limit order rests, nothing executes yet")
	require.Len(t, s.PendingOrders(), 1)

	execs := tickAt(s, t, "ETHUSD", "2550")
	assert.Empty(t, execs, "price still above the limit")
	assert.Len(t, s.PendingOrders(), 1)

	execs = tickAt(s, t, "ETHUSD", "2480")
	require.Len(t, execs, 1)
	assertDec(t, "2500", execs[0].Price, "limit orders fill at the limit price, not the tick")
	assert.Empty(t, s.PendingOrders())

	positions := s.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "5", positions[0].Quantity)
	assertDec(t, "2500", positions[0].AvgPrice)

	// A second fill at exactly the limit price leaves the average unchanged.
	_, err = s.SubmitOrder(ctx, limitOrder("ETHUSD", domain.Buy, "5", "2500"))
	require.NoError(t, err)
	execs = tickAt(s, t, "ETHUSD", "2500")
	require.Len(t, execs, 1)

	positions = s.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "10", positions[0].Quantity)
	assertDec(t, "2500", positions[0].AvgPrice)
}

func TestStopSellFiresOnThirdTick(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	stop := &domain.Order{
		Symbol:    "ETHUSD",
		Side:      domain.Sell,
		Type:      domain.Stop,
		Quantity:  dec("2"),
		StopPrice: dec("2500"),
	}
	_, err := s.SubmitOrder(ctx, stop)
	require.NoError(t, err)

	assert.Empty(t, tickAt(s, t, "ETHUSD", "2501"))
	assert.Empty(t, tickAt(s, t, "ETHUSD", "2501"))

	execs := tickAt(s, t, "ETHUSD", "2499")
	require.Len(t, execs, 1)
	assertDec(t, "2499", execs[0].Price, "stop orders fill at the tick price")
	assert.Equal(t, domain.Sell, execs[0].Side)
}

func TestPendingBookFiresMostRecentFirst(t *testing.T) {
	s, _ := newTestSession(t, "1000000")
	ctx := context.Background()

	first := limitOrder("ETHUSD", domain.Buy, "1", "100")
	second := limitOrder("ETHUSD", domain.Buy, "1", "105")
	_, err := s.SubmitOrder(ctx, first)
	require.NoError(t, err)
	_, err = s.SubmitOrder(ctx, second)
	require.NoError(t, err)

	execs := tickAt(s, t, "ETHUSD", "95")
	require.Len(t, execs, 2)
	assert.Equal(t, second.ID, execs[0].OrderID)
	assert.Equal(t, first.ID, execs[1].OrderID)
}

func TestPendingOrderRejectedAtTrigger(t *testing.T) {
	s, _ := newTestSession(t, "1000")
	ctx := context.Background()

	o := limitOrder("ETHUSD", domain.Buy, "1", "2000")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	execs := tickAt(s, t, "ETHUSD", "2000")
	assert.Empty(t, execs)
	assert.Empty(t, s.PendingOrders(), "unaffordable order is dropped from the book")
	assert.Equal(t, domain.Rejected, o.Status)
	assertDec(t, "1000", s.Account().Cash)
}

func TestCancelOrder(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	o := limitOrder("ETHUSD", domain.Buy, "1", "2000")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	require.NoError(t, s.CancelOrder(ctx, o.ID))
	assert.Empty(t, s.PendingOrders())
	assert.Equal(t, domain.Cancelled, o.Status)

	assert.ErrorIs(t, s.CancelOrder(ctx, o.ID), ErrOrderNotFound)

	execs := tickAt(s, t, "ETHUSD", "1500")
	assert.Empty(t, execs, "cancelled order must never fire")
}

func TestClosePositionRealizesPnL(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	require.NoError(t, err)
	assertDec(t, "99000", s.Account().Cash)

	tickAt(s, t, "ETHUSD", "110")

	exec, err := s.ClosePosition(ctx, "ETHUSD", domain.Buy)
	require.NoError(t, err)
	assertDec(t, "100", exec.PnL, "(110-100) x 10")
	assertDec(t, "110", exec.Price)

	snap := s.Account()
	assertDec(t, "100100", snap.Cash, "cash credited with exit notional")
	assertDec(t, "100", snap.RealizedPnL)
	assertDec(t, "0", snap.UnrealizedPnL)
	assert.Empty(t, s.Positions())

	_, err = s.ClosePosition(ctx, "ETHUSD", domain.Buy)
	assert.ErrorIs(t, err, ErrPositionNotFound)
}

func TestCloseSellPositionNegatesPnL(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Sell, "10"))
	require.NoError(t, err)

	tickAt(s, t, "ETHUSD", "90")

	exec, err := s.ClosePosition(ctx, "ETHUSD", domain.Sell)
	require.NoError(t, err)
	assertDec(t, "100", exec.PnL, "short profits when price falls")
	assertDec(t, "100", s.Account().RealizedPnL)
}

func TestOppositeSidesDoNotNet(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "5"))
	require.NoError(t, err)
	_, err = s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Sell, "5"))
	require.NoError(t, err)

	assert.Len(t, s.Positions(), 2, "BUY and SELL are independent ledger entries")
}

func TestRevalueReplacesUnrealized(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	require.NoError(t, err)

	tickAt(s, t, "ETHUSD", "105")
	assertDec(t, "50", s.Account().UnrealizedPnL)

	// Repeating the same price must not accumulate.
	tickAt(s, t, "ETHUSD", "105")
	tickAt(s, t, "ETHUSD", "105")
	snap := s.Account()
	assertDec(t, "50", snap.UnrealizedPnL)
	assertDec(t, "99050", snap.Equity, "equity = cash + unrealized")

	tickAt(s, t, "ETHUSD", "95")
	assertDec(t, "-50", s.Account().UnrealizedPnL)
}

func TestMarginUsedIsDisplayOnly(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	require.NoError(t, err)
	tickAt(s, t, "ETHUSD", "100")

	positions := s.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "200", positions[0].MarginUsed, "avg x qty x 0.20")
	assertDec(t, "200", s.Account().MarginUsed)
	assertDec(t, "99000", s.Account().Cash, "full notional debited regardless of margin rate")
}

func TestTakeProfitExit(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	o := marketOrder("ETHUSD", domain.Buy, "10")
	o.TakeProfit = dec("110")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	assert.Empty(t, tickAt(s, t, "ETHUSD", "109"))

	execs := tickAt(s, t, "ETHUSD", "110")
	require.Len(t, execs, 1)
	assertDec(t, "100", execs[0].PnL)
	assert.Empty(t, s.Positions())
}

func TestStopLossExit(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	o := marketOrder("ETHUSD", domain.Buy, "10")
	o.StopLoss = dec("95")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	assert.Empty(t, tickAt(s, t, "ETHUSD", "96"))

	execs := tickAt(s, t, "ETHUSD", "94")
	require.Len(t, execs, 1)
	assertDec(t, "-60", execs[0].PnL)
	assert.Empty(t, s.Positions())
}

func TestTrailingStopRatchets(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	o := marketOrder("ETHUSD", domain.Buy, "10")
	o.TrailingStop = dec("5")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	// Price runs up, dragging the stop to 105.
	assert.Empty(t, tickAt(s, t, "ETHUSD", "110"))
	// A dip that stays above the ratcheted stop keeps the position open.
	assert.Empty(t, tickAt(s, t, "ETHUSD", "106"))

	execs := tickAt(s, t, "ETHUSD", "104")
	require.Len(t, execs, 1)
	assertDec(t, "40", execs[0].PnL, "exited at 104 after entry at 100")
	assert.Empty(t, s.Positions())
}

func TestFixedProfitExit(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	o := marketOrder("ETHUSD", domain.Buy, "10")
	o.FixedProfit = dec("50")
	_, err := s.SubmitOrder(ctx, o)
	require.NoError(t, err)

	assert.Empty(t, tickAt(s, t, "ETHUSD", "104"), "pnl 40 below target")

	execs := tickAt(s, t, "ETHUSD", "106")
	require.Len(t, execs, 1)
	assertDec(t, "60", execs[0].PnL)
	assert.Empty(t, s.Positions())
}

func TestExecutionsRecordHistory(t *testing.T) {
	s, _ := newTestSession(t, "100000")
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "10"))
	require.NoError(t, err)
	tickAt(s, t, "ETHUSD", "110")
	_, err = s.ClosePosition(ctx, "ETHUSD", domain.Buy)
	require.NoError(t, err)

	execs := s.Executions()
	require.Len(t, execs, 2)
	assert.NotEmpty(t, execs[0].OrderID, "fills carry the order ID")
	assert.Empty(t, execs[1].OrderID, "closes are not tied to an order")
	assertDec(t, "100", execs[1].PnL)
}

func TestSessionWithoutPersistence(t *testing.T) {
	s := NewSession(dec("100000"), decimal.Zero, nil, nil, nil, nil)
	ctx := context.Background()

	tickAt(s, t, "ETHUSD", "100")
	_, err := s.SubmitOrder(ctx, marketOrder("ETHUSD", domain.Buy, "1"))
	require.NoError(t, err)
	assertDec(t, "99900", s.Account().Cash)
}
