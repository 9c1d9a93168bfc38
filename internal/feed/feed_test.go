package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantverse/papertrade/internal/domain"
)

type recordingSession struct {
	ticks []domain.Tick
	err   error
}

func (s *recordingSession) ApplyTick(_ context.Context, tick domain.Tick) ([]*domain.Execution, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.ticks = append(s.ticks, tick)
	return nil, nil
}

func TestPumpDrainsReplayFeeder(t *testing.T) {
	ticks := []domain.Tick{
		{Symbol: "ETHUSD", Price: decimal.NewFromInt(2500)},
		{Symbol: "ETHUSD", Price: decimal.NewFromInt(2510)},
		{Symbol: "BTCUSD", Price: decimal.NewFromInt(60000)},
	}
	sess := &recordingSession{}

	err := Pump(context.Background(), NewReplayFeeder(ticks), sess, nil)
	require.NoError(t, err)
	require.Len(t, sess.ticks, 3)
	assert.Equal(t, "BTCUSD", sess.ticks[2].Symbol)
}

func TestPumpStopsOnSessionError(t *testing.T) {
	boom := errors.New("session gone")
	sess := &recordingSession{err: boom}

	err := Pump(context.Background(), NewReplayFeeder([]domain.Tick{
		{Symbol: "ETHUSD", Price: decimal.NewFromInt(2500)},
	}), sess, nil)
	assert.ErrorIs(t, err, boom)
}

func TestReplayFeederHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewReplayFeeder([]domain.Tick{{Symbol: "ETHUSD", Price: decimal.NewFromInt(2500)}})
	err := f.Run(ctx, func(context.Context, domain.Tick) error {
		t.Fatal("handler must not run after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWSFeederDecodesTicks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		msgs := []string{
			`{"symbol":"ETHUSD","price":"2500.5","ts":1700000000000}`,
			`{"symbol":"","price":"10"}`, // malformed, must be skipped
			`{"symbol":"ETHUSD","price":"2501"}`,
		}
		for _, m := range msgs {
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := NewWSFeeder(url, nil)

	var got []domain.Tick
	err := f.Run(context.Background(), func(_ context.Context, tick domain.Tick) error {
		got = append(got, tick)
		if len(got) == 2 {
			return errors.New("done")
		}
		return nil
	})
	require.EqualError(t, err, "done")

	require.Len(t, got, 2)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("2500.5")))
	assert.Equal(t, int64(1700000000000), got[0].Timestamp.UnixMilli())
	assert.True(t, got[1].Price.Equal(decimal.NewFromInt(2501)))
	assert.False(t, got[1].Timestamp.IsZero(), "missing ts falls back to wall clock")
}

func TestWSFeederDialFailure(t *testing.T) {
	f := NewWSFeeder("ws://127.0.0.1:1/feed", nil)
	err := f.Run(context.Background(), func(context.Context, domain.Tick) error { return nil })
	assert.Error(t, err)
}
