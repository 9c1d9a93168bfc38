package core

import (
	"context"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/port"
)

// Persistence and caching are best-effort: the simulation itself is
// in-memory and must keep working when Postgres or Redis are absent or
// failing, so errors are logged and never bubble up to the caller.

func (s *Session) persistOrder(ctx context.Context, o *domain.Order) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveOrder(ctx, s.id, o); err != nil {
		s.log.WithError(err).WithField("order", o.ID).Warn("failed to persist order")
	}
}

func (s *Session) persistFill(ctx context.Context, o *domain.Order, exec *domain.Execution, pos *domain.Position) {
	if s.repo == nil {
		return
	}
	err := withTx(ctx, s.repo, func(tx port.Tx) error {
		if err := tx.SaveOrder(ctx, s.id, o); err != nil {
			return err
		}
		if err := tx.SaveExecution(ctx, s.id, exec); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, s.id, pos); err != nil {
			return err
		}
		return tx.SaveSession(ctx, s.stateLocked())
	})
	if err != nil {
		s.log.WithError(err).WithField("order", o.ID).Warn("failed to persist fill")
	}
}

func (s *Session) persistClose(ctx context.Context, exec *domain.Execution, symbol string, side domain.Side) {
	if s.repo == nil {
		return
	}
	err := withTx(ctx, s.repo, func(tx port.Tx) error {
		if err := tx.SaveExecution(ctx, s.id, exec); err != nil {
			return err
		}
		if err := tx.DeletePosition(ctx, s.id, symbol, side); err != nil {
			return err
		}
		return tx.SaveSession(ctx, s.stateLocked())
	})
	if err != nil {
		s.log.WithError(err).WithField("symbol", symbol).Warn("failed to persist close")
	}
}

func (s *Session) refreshCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetAccount(ctx, s.id, s.snapshotLocked()); err != nil {
		s.log.WithError(err).Warn("failed to refresh account cache")
	}
}

func (s *Session) countSubmitted() {
	if s.met != nil {
		s.met.OrdersSubmitted.Inc()
	}
}

func (s *Session) countRejected() {
	if s.met != nil {
		s.met.OrdersRejected.Inc()
	}
}

func (s *Session) countFilled() {
	if s.met != nil {
		s.met.OrdersFilled.Inc()
	}
}

func (s *Session) countClosed() {
	if s.met != nil {
		s.met.PositionsClosed.Inc()
	}
}

func (s *Session) countTick() {
	if s.met != nil {
		s.met.Ticks.Inc()
	}
}
