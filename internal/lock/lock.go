// Package lock provides scoped, persisted per-action-type cycle locks.
package lock

import (
	"context"
	"fmt"
	"time"

	"social_bots/internal/model"
)

// Default thresholds.
const (
	DefaultStaleAfter = 6 * time.Hour
	DefaultCooldown   = 12 * time.Hour
)

// Store is the persistence the Locker needs.
type Store interface {
	AcquireLock(ctx context.Context, action model.BotType, now time.Time, staleAfter, cooldown time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, action model.BotType) error
}

// Locker applies the staleness and cooldown rules on top of a Store.
type Locker struct {
	store      Store
	staleAfter time.Duration
	cooldown   time.Duration
	now        func() time.Time
}

// New creates a Locker. Zero durations fall back to the defaults.
func New(store Store, staleAfter, cooldown time.Duration) *Locker {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Locker{
		store:      store,
		staleAfter: staleAfter,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (l *Locker) SetClock(now func() time.Time) {
	l.now = now
}

// Acquire reports whether the caller now holds the lock for action.
// A successful acquire starts a new cooldown window.
func (l *Locker) Acquire(ctx context.Context, action model.BotType) (bool, error) {
	ok, err := l.store.AcquireLock(ctx, action, l.now(), l.staleAfter, l.cooldown)
	if err != nil {
		return false, fmt.Errorf("acquire %s lock: %w", action, err)
	}
	return ok, nil
}

// Release frees the lock for action. It is safe to call on a free lock.
func (l *Locker) Release(ctx context.Context, action model.BotType) error {
	if err := l.store.ReleaseLock(ctx, action); err != nil {
		return fmt.Errorf("release %s lock: %w", action, err)
	}
	return nil
}

// Do runs fn while holding the lock for action. It returns acquired=false
// without calling fn when the lock is held or cooling down. The lock is
// released on every exit path, including a panic in fn, and the release
// ignores cancellation of ctx.
func (l *Locker) Do(ctx context.Context, action model.BotType, fn func(ctx context.Context) error) (acquired bool, err error) {
	ok, err := l.Acquire(ctx, action)
	if err != nil || !ok {
		return false, err
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if rerr := l.Release(releaseCtx, action); rerr != nil && err == nil {
			err = rerr
		}
	}()

	return true, fn(ctx)
}
