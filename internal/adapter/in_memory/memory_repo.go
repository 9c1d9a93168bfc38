package in_memory

import (
	"context"
	"sync"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/port"
)

var _ port.Repository = (*MemoryRepo)(nil)

type positionKey struct {
	SessionID string
	Symbol    string
	Side      domain.Side
}

// MemoryRepo is the in-process Repository used by tests and by deployments
// that run without Postgres.
type MemoryRepo struct {
	mu         sync.Mutex
	sessions   map[string]domain.SessionState
	orders     map[string][]*domain.Order // keyed by session ID, insertion order
	executions map[string][]*domain.Execution
	positions  map[positionKey]domain.Position
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		sessions:   make(map[string]domain.SessionState),
		orders:     make(map[string][]*domain.Order),
		executions: make(map[string][]*domain.Execution),
		positions:  make(map[positionKey]domain.Position),
	}
}

func (r *MemoryRepo) SaveSession(ctx context.Context, s *domain.SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = *s
	return nil
}

func (r *MemoryRepo) SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	for i, existing := range r.orders[sessionID] {
		if existing.ID == o.ID {
			r.orders[sessionID][i] = &cp
			return nil
		}
	}
	r.orders[sessionID] = append(r.orders[sessionID], &cp)
	return nil
}

func (r *MemoryRepo) SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.executions[sessionID] = append(r.executions[sessionID], &cp)
	return nil
}

func (r *MemoryRepo) UpsertPosition(ctx context.Context, sessionID string, p *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions[positionKey{sessionID, p.Symbol, p.Side}] = *p
	return nil
}

func (r *MemoryRepo) DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, positionKey{sessionID, symbol, side})
	return nil
}

func (r *MemoryRepo) LoadPendingOrders(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders[sessionID] {
		if o.Status == domain.Pending {
			cp := *o
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *MemoryRepo) LoadPositions(ctx context.Context, sessionID string) ([]*domain.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Position
	for key, p := range r.positions {
		if key.SessionID == sessionID {
			cp := p
			res = append(res, &cp)
		}
	}
	return res, nil
}

func (r *MemoryRepo) ListSessions(ctx context.Context) ([]*domain.SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*domain.SessionState, 0, len(r.sessions))
	for _, s := range r.sessions {
		cp := s
		res = append(res, &cp)
	}
	return res, nil
}

// BeginTx returns a transaction that applies its writes directly; the
// in-memory store offers no rollback and exists to satisfy the port in
// tests.
func (r *MemoryRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	return &memTx{repo: r}, nil
}

type memTx struct {
	repo *MemoryRepo
}

func (t *memTx) SaveSession(ctx context.Context, s *domain.SessionState) error {
	return t.repo.SaveSession(ctx, s)
}

func (t *memTx) SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error {
	return t.repo.SaveOrder(ctx, sessionID, o)
}

func (t *memTx) SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error {
	return t.repo.SaveExecution(ctx, sessionID, e)
}

func (t *memTx) UpsertPosition(ctx context.Context, sessionID string, p *domain.Position) error {
	return t.repo.UpsertPosition(ctx, sessionID, p)
}

func (t *memTx) DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error {
	return t.repo.DeletePosition(ctx, sessionID, symbol, side)
}

func (t *memTx) Commit(ctx context.Context) error   { return nil }
func (t *memTx) Rollback(ctx context.Context) error { return nil }

// Executions returns stored execution records for a session (test helper).
func (r *MemoryRepo) Executions(sessionID string) []domain.Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Execution, 0, len(r.executions[sessionID]))
	for _, e := range r.executions[sessionID] {
		out = append(out, *e)
	}
	return out
}

// Session returns the stored session state, if any (test helper).
func (r *MemoryRepo) Session(sessionID string) (domain.SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}
