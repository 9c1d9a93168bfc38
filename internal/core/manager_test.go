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

func TestManagerCreateAndGet(t *testing.T) {
	m := NewManager(dec("100000"), decimal.Zero, nil, nil, nil, nil)

	s := m.Create(decimal.Zero)
	require.NotNil(t, s)
	assertDec(t, "100000", s.Account().Cash, "zero start cash falls back to the default")

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	custom := m.Create(dec("5000"))
	assertDec(t, "5000", custom.Account().Cash)
	assert.NotEqual(t, s.ID(), custom.ID())
}

func TestManagerGetUnknown(t *testing.T) {
	m := NewManager(dec("100000"), decimal.Zero, nil, nil, nil, nil)
	_, err := m.Get("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRestore(t *testing.T) {
	ctx := context.Background()
	repo := in_memory.NewMemoryRepo()
	cache := in_memory.NewCache()
	m := NewManager(dec("100000"), decimal.Zero, repo, cache, nil, metrics.New())

	// Simulate a previous run: session state plus one resting order.
	st := &domain.SessionState{ID: "prev", Cash: dec("42000"), RealizedPnL: dec("150")}
	require.NoError(t, repo.SaveSession(ctx, st))
	require.NoError(t, repo.SaveOrder(ctx, "prev", &domain.Order{
		ID:         "o1",
		Symbol:     "ETHUSD",
		Side:       domain.Buy,
		Type:       domain.Limit,
		Quantity:   dec("1"),
		LimitPrice: dec("2500"),
		Status:     domain.Pending,
	}))
	require.NoError(t, repo.UpsertPosition(ctx, "prev", &domain.Position{
		Symbol:   "BTCUSD",
		Side:     domain.Buy,
		Quantity: dec("2"),
		AvgPrice: dec("60000"),
	}))
	require.NoError(t, cache.SetAccount(ctx, "prev", &domain.AccountSnapshot{SessionID: "prev"}))

	s, err := m.Restore(ctx, st)
	require.NoError(t, err)

	snap := s.Account()
	assertDec(t, "42000", snap.Cash)
	assertDec(t, "150", snap.RealizedPnL)
	require.Len(t, s.PendingOrders(), 1)

	positions := s.Positions()
	require.Len(t, positions, 1)
	assertDec(t, "60000", positions[0].AvgPrice)

	got, err := m.Get("prev")
	require.NoError(t, err)
	assert.Same(t, s, got)

	stale, err := cache.GetAccount(ctx, "prev")
	require.NoError(t, err)
	assert.Nil(t, stale, "restore drops the stale cached snapshot")

	// The reloaded order still fires.
	execs, err := s.ApplyTick(ctx, domain.Tick{Symbol: "ETHUSD", Price: dec("2480")})
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assertDec(t, "2500", execs[0].Price)
}

func TestManagerRestoreAll(t *testing.T) {
	ctx := context.Background()
	repo := in_memory.NewMemoryRepo()
	require.NoError(t, repo.SaveSession(ctx, &domain.SessionState{ID: "a", Cash: dec("1000")}))
	require.NoError(t, repo.SaveSession(ctx, &domain.SessionState{ID: "b", Cash: dec("2000")}))

	m := NewManager(dec("100000"), decimal.Zero, repo, nil, nil, nil)
	n, err := m.RestoreAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s, err := m.Get("b")
	require.NoError(t, err)
	assertDec(t, "2000", s.Account().Cash)
}
