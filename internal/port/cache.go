package port

import (
	"context"

	"github.com/quantverse/papertrade/internal/domain"
)

type Cache interface {
	SetAccount(ctx context.Context, sessionID string, snap *domain.AccountSnapshot) error
	GetAccount(ctx context.Context, sessionID string) (*domain.AccountSnapshot, error)
	Invalidate(ctx context.Context, sessionID string) error
}
