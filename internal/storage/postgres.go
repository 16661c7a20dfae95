package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"social_bots/internal/model"
)

// PostgresLocks implements LockStore on Postgres so that several engine
// replicas share one lock table.
type PostgresLocks struct {
	pool *pgxpool.Pool
}

// NewPostgresLocks connects to databaseURL and creates the lock table if needed.
func NewPostgresLocks(ctx context.Context, databaseURL string) (*PostgresLocks, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS bot_locks (
		action_type TEXT PRIMARY KEY,
		locked_at   TIMESTAMPTZ,
		last_run_at TIMESTAMPTZ
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create bot_locks: %w", err)
	}

	return &PostgresLocks{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresLocks) Close() {
	p.pool.Close()
}

// AcquireLock implements LockStore.
func (p *PostgresLocks) AcquireLock(ctx context.Context, action model.BotType, now time.Time, staleAfter, cooldown time.Duration) (bool, error) {
	if _, err := p.pool.Exec(ctx,
		`INSERT INTO bot_locks (action_type) VALUES ($1) ON CONFLICT (action_type) DO NOTHING`,
		string(action),
	); err != nil {
		return false, fmt.Errorf("ensure lock row: %w", err)
	}

	now = now.UTC()
	tag, err := p.pool.Exec(ctx,
		`UPDATE bot_locks SET locked_at = $2, last_run_at = $2
		 WHERE action_type = $1
		   AND (locked_at IS NULL OR locked_at < $3)
		   AND (last_run_at IS NULL OR last_run_at < $4)`,
		string(action), now, now.Add(-staleAfter), now.Add(-cooldown),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLock implements LockStore.
func (p *PostgresLocks) ReleaseLock(ctx context.Context, action model.BotType) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE bot_locks SET locked_at = NULL WHERE action_type = $1`, string(action),
	); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// ListLocks implements LockStore.
func (p *PostgresLocks) ListLocks(ctx context.Context) ([]model.BotLock, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT action_type, locked_at, last_run_at FROM bot_locks ORDER BY action_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer rows.Close()

	var locks []model.BotLock
	for rows.Next() {
		var action string
		var l model.BotLock
		if err := rows.Scan(&action, &l.LockedAt, &l.LastRunAt); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		l.ActionType = model.BotType(action)
		locks = append(locks, l)
	}
	return locks, rows.Err()
}
