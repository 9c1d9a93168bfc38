package in_memory

import (
	"context"
	"sync"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/port"
)

var _ port.Cache = (*Cache)(nil)

type Cache struct {
	mu    sync.Mutex
	store map[string]*domain.AccountSnapshot
}

func NewCache() *Cache {
	return &Cache{store: make(map[string]*domain.AccountSnapshot)}
}

func (c *Cache) SetAccount(ctx context.Context, sessionID string, snap *domain.AccountSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *snap
	c.store[sessionID] = &cp
	return nil
}

func (c *Cache) GetAccount(ctx context.Context, sessionID string) (*domain.AccountSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.store[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *snap
	return &cp, nil
}

func (c *Cache) Invalidate(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, sessionID)
	return nil
}
