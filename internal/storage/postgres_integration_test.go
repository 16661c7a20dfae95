//go:build integration

package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"social_bots/internal/model"
)

func newTestPostgres(t *testing.T) *PostgresLocks {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	p, err := NewPostgresLocks(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := p.pool.Exec(ctx, `TRUNCATE bot_locks`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestPostgresLocksLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestPostgres(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	ok, err := p.AcquireLock(ctx, model.BotPost, now, staleAfter, cooldown)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("first acquire = false, want true")
	}

	ok, err = p.AcquireLock(ctx, model.BotPost, now.Add(time.Minute), staleAfter, cooldown)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second acquire on fresh lock = true, want false")
	}

	if err := p.ReleaseLock(ctx, model.BotPost); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := p.ReleaseLock(ctx, model.BotLike); err != nil {
		t.Fatalf("release missing row: %v", err)
	}

	// Past the cooldown the released lock is available again.
	ok, err = p.AcquireLock(ctx, model.BotPost, now.Add(13*time.Hour), staleAfter, cooldown)
	if err != nil {
		t.Fatalf("acquire after cooldown: %v", err)
	}
	if !ok {
		t.Error("acquire after cooldown = false, want true")
	}

	locks, err := p.ListLocks(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(1, len(locks)); diff != "" {
		t.Errorf("lock row count mismatch (-want +got):\n%s", diff)
	}
}
