package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantverse/papertrade/internal/domain"
	"github.com/quantverse/papertrade/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool *pgxpool.Pool
}

// NewPgRepo connects a pool to the given DSN. Call Close when finished.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func NewPgRepoWithPool(pool *pgxpool.Pool) *PgRepo {
	return &PgRepo{pool: pool}
}

func (p *PgRepo) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) SaveSession(ctx context.Context, s *domain.SessionState) error {
	if s == nil {
		return errors.New("nil session")
	}
	_, err := p.pool.Exec(ctx, saveSessionSQL,
		s.ID, s.Cash, s.RealizedPnL, s.MarginRate, s.CreatedAt)
	return err
}

func (p *PgRepo) SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error {
	if o == nil {
		return errors.New("nil order")
	}
	_, err := p.pool.Exec(ctx, saveOrderSQL, orderArgs(sessionID, o)...)
	return err
}

func (p *PgRepo) SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error {
	if e == nil {
		return errors.New("nil execution")
	}
	_, err := p.pool.Exec(ctx, saveExecutionSQL, executionArgs(sessionID, e)...)
	return err
}

func (p *PgRepo) UpsertPosition(ctx context.Context, sessionID string, pos *domain.Position) error {
	if pos == nil {
		return errors.New("nil position")
	}
	_, err := p.pool.Exec(ctx, upsertPositionSQL, positionArgs(sessionID, pos)...)
	return err
}

func (p *PgRepo) DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error {
	_, err := p.pool.Exec(ctx, deletePositionSQL, sessionID, symbol, string(side))
	return err
}

// LoadPendingOrders returns resting orders for a session ordered by
// created_at ASC, matching the in-memory book's insertion order.
func (p *PgRepo) LoadPendingOrders(ctx context.Context, sessionID string) ([]*domain.Order, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, symbol, side, type, quantity, limit_price, stop_price,
       take_profit, stop_loss, trailing_stop, fixed_profit, status, created_at, updated_at
FROM orders
WHERE session_id = $1 AND status = 'PENDING'
ORDER BY created_at ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, typ, status string
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &typ, &o.Quantity,
			&o.LimitPrice, &o.StopPrice, &o.TakeProfit, &o.StopLoss,
			&o.TrailingStop, &o.FixedProfit, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.OrderStatus(status)
		res = append(res, &o)
	}
	return res, rows.Err()
}

func (p *PgRepo) LoadPositions(ctx context.Context, sessionID string) ([]*domain.Position, error) {
	rows, err := p.pool.Query(ctx, `
SELECT symbol, side, quantity, avg_price, opened_at, updated_at
FROM positions
WHERE session_id = $1
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Position
	for rows.Next() {
		var pos domain.Position
		var side string
		if err := rows.Scan(&pos.Symbol, &side, &pos.Quantity, &pos.AvgPrice,
			&pos.OpenedAt, &pos.UpdatedAt); err != nil {
			return nil, err
		}
		pos.Side = domain.Side(side)
		res = append(res, &pos)
	}
	return res, rows.Err()
}

func (p *PgRepo) ListSessions(ctx context.Context) ([]*domain.SessionState, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, cash, realized_pnl, margin_rate, created_at
FROM sessions
ORDER BY created_at ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.SessionState
	for rows.Next() {
		var s domain.SessionState
		if err := rows.Scan(&s.ID, &s.Cash, &s.RealizedPnL, &s.MarginRate, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &s)
	}
	return res, rows.Err()
}

func (p *PgRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pg: begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) SaveSession(ctx context.Context, s *domain.SessionState) error {
	_, err := t.tx.Exec(ctx, saveSessionSQL,
		s.ID, s.Cash, s.RealizedPnL, s.MarginRate, s.CreatedAt)
	return err
}

func (t *pgTx) SaveOrder(ctx context.Context, sessionID string, o *domain.Order) error {
	_, err := t.tx.Exec(ctx, saveOrderSQL, orderArgs(sessionID, o)...)
	return err
}

func (t *pgTx) SaveExecution(ctx context.Context, sessionID string, e *domain.Execution) error {
	_, err := t.tx.Exec(ctx, saveExecutionSQL, executionArgs(sessionID, e)...)
	return err
}

func (t *pgTx) UpsertPosition(ctx context.Context, sessionID string, pos *domain.Position) error {
	_, err := t.tx.Exec(ctx, upsertPositionSQL, positionArgs(sessionID, pos)...)
	return err
}

func (t *pgTx) DeletePosition(ctx context.Context, sessionID, symbol string, side domain.Side) error {
	_, err := t.tx.Exec(ctx, deletePositionSQL, sessionID, symbol, string(side))
	return err
}

func (t *pgTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

const saveSessionSQL = `
INSERT INTO sessions(id, cash, realized_pnl, margin_rate, created_at)
VALUES($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET
  cash = EXCLUDED.cash,
  realized_pnl = EXCLUDED.realized_pnl,
  margin_rate = EXCLUDED.margin_rate
`

const saveOrderSQL = `
INSERT INTO orders(id, session_id, symbol, side, type, quantity, limit_price, stop_price,
                   take_profit, stop_loss, trailing_stop, fixed_profit, status, created_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`

const saveExecutionSQL = `
INSERT INTO executions(id, session_id, order_id, symbol, side, quantity, price, pnl, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO NOTHING
`

const upsertPositionSQL = `
INSERT INTO positions(session_id, symbol, side, quantity, avg_price, opened_at, updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (session_id, symbol, side) DO UPDATE SET
  quantity = EXCLUDED.quantity,
  avg_price = EXCLUDED.avg_price,
  updated_at = EXCLUDED.updated_at
`

const deletePositionSQL = `
DELETE FROM positions WHERE session_id = $1 AND symbol = $2 AND side = $3
`

func orderArgs(sessionID string, o *domain.Order) []any {
	return []any{
		o.ID, sessionID, o.Symbol, string(o.Side), string(o.Type),
		o.Quantity, o.LimitPrice, o.StopPrice,
		o.TakeProfit, o.StopLoss, o.TrailingStop, o.FixedProfit,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	}
}

func executionArgs(sessionID string, e *domain.Execution) []any {
	return []any{
		e.ID, sessionID, e.OrderID, e.Symbol, string(e.Side),
		e.Quantity, e.Price, e.PnL, e.ExecutedAt,
	}
}

func positionArgs(sessionID string, p *domain.Position) []any {
	return []any{
		sessionID, p.Symbol, string(p.Side), p.Quantity, p.AvgPrice,
		p.OpenedAt, p.UpdatedAt,
	}
}
