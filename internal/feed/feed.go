// Package feed delivers price ticks into a simulation session. Ticks are
// handed to the session strictly in arrival order; the engine never sees
// two ticks concurrently.
package feed

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/domain"
)

// HandlerFunc consumes one tick. Returning an error stops the feeder.
type HandlerFunc func(ctx context.Context, tick domain.Tick) error

// Feeder produces a sequence of ticks and invokes the handler for each one,
// blocking until the source is exhausted or ctx is cancelled.
type Feeder interface {
	Run(ctx context.Context, handle HandlerFunc) error
}

// Session is the slice of core.Session the feed needs.
type Session interface {
	ApplyTick(ctx context.Context, tick domain.Tick) ([]*domain.Execution, error)
}

// Pump drains a feeder into a session until the feeder stops.
func Pump(ctx context.Context, f Feeder, s Session, log *logrus.Logger) error {
	if log == nil {
		log = logrus.New()
	}
	return f.Run(ctx, func(ctx context.Context, tick domain.Tick) error {
		execs, err := s.ApplyTick(ctx, tick)
		if err != nil {
			return err
		}
		if len(execs) > 0 {
			log.WithFields(logrus.Fields{
				"symbol":     tick.Symbol,
				"price":      tick.Price.String(),
				"executions": len(execs),
			}).Debug("tick produced executions")
		}
		return nil
	})
}

// ReplayFeeder replays a fixed tick sequence, used by tests and backtests.
type ReplayFeeder struct {
	Ticks []domain.Tick
}

func NewReplayFeeder(ticks []domain.Tick) *ReplayFeeder {
	return &ReplayFeeder{Ticks: ticks}
}

func (r *ReplayFeeder) Run(ctx context.Context, handle HandlerFunc) error {
	for _, t := range r.Ticks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := handle(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
