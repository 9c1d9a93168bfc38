package port

import (
	"context"

	"github.com/quantverse/papertrade/internal/domain"
)

// Repository persists session state. All implementations must tolerate being
// absent: the engine treats a nil Repository as "no persistence".
type Repository interface {
	SaveSession(ctx context.Context, s *domain.SessionState) error
	SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error
	SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error
	UpsertPosition(ctx context.Context, sessionID string, p *domain.Position) error
	DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error
	LoadPendingOrders(ctx context.Context, sessionID string) ([]*domain.Order, error)
	LoadPositions(ctx context.Context, sessionID string) ([]*domain.Position, error)
	ListSessions(ctx context.Context) ([]*domain.SessionState, error)
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx groups the writes of one fill or close so they land atomically.
type Tx interface {
	SaveSession(ctx context.Context, s *domain.SessionState) error
	SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error
	SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error
	UpsertPosition(ctx context.Context, sessionID string, p *domain.Position) error
	DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
