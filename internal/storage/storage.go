// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"social_bots/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateUser(ctx context.Context, u *model.BotAccount) error
	GetUserByKey(ctx context.Context, botKey string) (*model.BotAccount, error)
	ListBots(ctx context.Context, botType model.BotType) ([]model.BotAccount, error)
	CountBots(ctx context.Context) (map[model.BotType]int, error)

	InsertPost(ctx context.Context, p *model.Post) error
	InsertComment(ctx context.Context, c *model.Comment) error
	InsertLike(ctx context.Context, l *model.Like) error
	SampleItem(ctx context.Context, category model.Category, excludeAuthorID string) (*model.Post, error)
	ListComments(ctx context.Context, postID string) ([]model.Comment, error)
	CountLikes(ctx context.Context, postID string) (int, error)

	LockStore

	Close() error
}

// LockStore persists one cycle lock per action type.
type LockStore interface {
	// AcquireLock atomically takes the lock for action when it is free or stale
	// and the cooldown since the last run has elapsed. It reports whether the
	// caller now holds the lock.
	AcquireLock(ctx context.Context, action model.BotType, now time.Time, staleAfter, cooldown time.Duration) (bool, error)
	// ReleaseLock clears locked_at. Releasing a missing or free lock is not an error.
	ReleaseLock(ctx context.Context, action model.BotType) error
	ListLocks(ctx context.Context) ([]model.BotLock, error)
}
