package core

import (
	"context"

	"github.com/quantverse/papertrade/internal/port"
)

// withTx runs fn inside a repository transaction, rolling back when fn or
// the commit fails.
func withTx(ctx context.Context, repo port.Repository, fn func(port.Tx) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
