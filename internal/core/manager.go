package core

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/metrics"
	"github.com/quantverse/papertrade/internal/port"
)

// Manager owns the live sessions of one server process. Sessions are fully
// independent of one another; the manager only creates and resolves them.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	startCash  decimal.Decimal
	marginRate decimal.Decimal

	repo  port.Repository
	cache port.Cache
	log   *logrus.Logger
	met   *metrics.Metrics
}

func NewManager(startCash, marginRate decimal.Decimal, repo port.Repository, cache port.Cache, log *logrus.Logger, met *metrics.Metrics) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		startCash:  startCash,
		marginRate: marginRate,
		repo:       repo,
		cache:      cache,
		log:        log,
		met:        met,
	}
}

// Create starts a new session. A zero startCash falls back to the manager's
// configured default.
func (m *Manager) Create(startCash decimal.Decimal) *Session {
	if startCash.IsZero() {
		startCash = m.startCash
	}
	s := NewSession(startCash, m.marginRate, m.repo, m.cache, m.log, m.met)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"session": s.ID(),
		"cash":    startCash.String(),
	}).Info("session created")

	return s
}

// Restore re-registers a session from persisted state, typically after a
// restart. Resting orders are reloaded from the repository.
func (m *Manager) Restore(ctx context.Context, st *domain.SessionState) (*Session, error) {
	s, err := RestoreSession(ctx, st, m.repo, m.cache, m.log, m.met)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

// RestoreAll brings back every persisted session, returning how many were
// restored.
func (m *Manager) RestoreAll(ctx context.Context) (int, error) {
	if m.repo == nil {
		return 0, nil
	}
	states, err := m.repo.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	for _, st := range states {
		if _, err := m.Restore(ctx, st); err != nil {
			return 0, err
		}
	}
	return len(states), nil
}

// Get resolves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
