package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"social_bots/internal/model"
	"social_bots/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateUser inserts a user and populates its ID and CreatedAt when unset.
func (s *SQLite) CreateUser(ctx context.Context, u *model.BotAccount) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(timeLayout)
	var botType, botKey *string
	if u.BotType != "" {
		v := string(u.BotType)
		botType = &v
	}
	if u.BotKey != "" {
		botKey = &u.BotKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, is_bot, bot_type, bot_key, category, headline, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, boolToInt(u.IsBot), botType, botKey, string(u.Category), u.Headline, now,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetUserByKey resolves a bot credential to its account.
func (s *SQLite) GetUserByKey(ctx context.Context, botKey string) (*model.BotAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, is_bot, bot_type, bot_key, category, headline, created_at
		 FROM users WHERE bot_key = ?`, botKey,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

// ListBots returns every bot account of the given type in creation order.
func (s *SQLite) ListBots(ctx context.Context, botType model.BotType) ([]model.BotAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, is_bot, bot_type, bot_key, category, headline, created_at
		 FROM users WHERE is_bot = 1 AND bot_type = ? ORDER BY rowid`, string(botType),
	)
	if err != nil {
		return nil, fmt.Errorf("query bots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bots []model.BotAccount
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		bots = append(bots, *u)
	}
	return bots, rows.Err()
}

// CountBots returns the number of bot accounts per bot type.
func (s *SQLite) CountBots(ctx context.Context) (map[model.BotType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bot_type, COUNT(*) FROM users WHERE is_bot = 1 GROUP BY bot_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("count bots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.BotType]int)
	for rows.Next() {
		var botType sql.NullString
		var n int
		if err := rows.Scan(&botType, &n); err != nil {
			return nil, fmt.Errorf("scan bot count: %w", err)
		}
		counts[model.BotType(botType.String)] = n
	}
	return counts, rows.Err()
}

// InsertPost stores a post and populates its ID and CreatedAt.
func (s *SQLite) InsertPost(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, category, content, is_public, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.AuthorID, string(p.Category), p.Content, boolToInt(p.IsPublic), now,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// InsertComment stores a comment and populates its ID and CreatedAt.
func (s *SQLite) InsertComment(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comments (id, post_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.PostID, c.AuthorID, c.Content, now,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	c.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// InsertLike records a like. Liking the same post twice keeps the first row.
func (s *SQLite) InsertLike(ctx context.Context, l *model.Like) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (id, post_id, author_id, created_at) VALUES (?, ?, ?, ?)`,
		l.ID, l.PostID, l.AuthorID, now,
	)
	if err != nil {
		return fmt.Errorf("insert like: %w", err)
	}
	l.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// SampleItem picks a random post in category that excludeAuthorID did not write.
// It returns nil without error when no such post exists.
func (s *SQLite) SampleItem(ctx context.Context, category model.Category, excludeAuthorID string) (*model.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, author_id, category, content, is_public, created_at
		 FROM posts WHERE category = ? AND author_id != ?
		 ORDER BY RANDOM() LIMIT 1`,
		string(category), excludeAuthorID,
	)
	var p model.Post
	var cat, created string
	var isPublic int
	err := row.Scan(&p.ID, &p.AuthorID, &cat, &p.Content, &isPublic, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sample post: %w", err)
	}
	p.Category = model.Category(cat)
	p.IsPublic = isPublic == 1
	p.CreatedAt, _ = time.Parse(timeLayout, created)
	return &p, nil
}

// ListComments returns the comments of a post in insertion order.
func (s *SQLite) ListComments(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, author_id, content, created_at FROM comments WHERE post_id = ? ORDER BY rowid`, postID,
	)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []model.Comment
	for rows.Next() {
		var c model.Comment
		var created string
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Content, &created); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt, _ = time.Parse(timeLayout, created)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CountLikes returns how many likes a post has.
func (s *SQLite) CountLikes(ctx context.Context, postID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

// AcquireLock implements LockStore. The row is created on first use and the
// take itself is one conditional UPDATE, so concurrent callers cannot both win.
func (s *SQLite) AcquireLock(ctx context.Context, action model.BotType, now time.Time, staleAfter, cooldown time.Duration) (bool, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO bot_locks (action_type) VALUES (?)`, string(action),
	); err != nil {
		return false, fmt.Errorf("ensure lock row: %w", err)
	}

	now = now.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE bot_locks SET locked_at = ?, last_run_at = ?
		 WHERE action_type = ?
		   AND (locked_at IS NULL OR locked_at < ?)
		   AND (last_run_at IS NULL OR last_run_at < ?)`,
		now.Format(timeLayout), now.Format(timeLayout), string(action),
		now.Add(-staleAfter).Format(timeLayout), now.Add(-cooldown).Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseLock implements LockStore.
func (s *SQLite) ReleaseLock(ctx context.Context, action model.BotType) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_locks SET locked_at = NULL WHERE action_type = ?`, string(action),
	)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// ListLocks returns every lock row ordered by action type.
func (s *SQLite) ListLocks(ctx context.Context) ([]model.BotLock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT action_type, locked_at, last_run_at FROM bot_locks ORDER BY action_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("query locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var locks []model.BotLock
	for rows.Next() {
		var action string
		var lockedAt, lastRun sql.NullString
		if err := rows.Scan(&action, &lockedAt, &lastRun); err != nil {
			return nil, fmt.Errorf("scan lock: %w", err)
		}
		l := model.BotLock{ActionType: model.BotType(action)}
		if l.LockedAt, err = parseNullTime(lockedAt); err != nil {
			return nil, fmt.Errorf("lock %s locked_at: %w", action, err)
		}
		if l.LastRunAt, err = parseNullTime(lastRun); err != nil {
			return nil, fmt.Errorf("lock %s last_run_at: %w", action, err)
		}
		locks = append(locks, l)
	}
	return locks, rows.Err()
}

// setLock overwrites a lock row; tests use it to simulate crashed holders.
func (s *SQLite) setLock(ctx context.Context, l model.BotLock) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_locks (action_type, locked_at, last_run_at) VALUES (?, ?, ?)
		 ON CONFLICT (action_type) DO UPDATE SET locked_at = excluded.locked_at, last_run_at = excluded.last_run_at`,
		string(l.ActionType), formatNullTime(l.LockedAt), formatNullTime(l.LastRunAt),
	)
	if err != nil {
		return fmt.Errorf("set lock: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", v.String, err)
	}
	return &t, nil
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (*model.BotAccount, error) {
	var u model.BotAccount
	var isBot int
	var botType, botKey sql.NullString
	var category, created string
	err := row.Scan(&u.ID, &u.Username, &isBot, &botType, &botKey, &category, &u.Headline, &created)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.IsBot = isBot == 1
	u.BotType = model.BotType(botType.String)
	u.BotKey = botKey.String
	u.Category = model.Category(category)
	u.CreatedAt, _ = time.Parse(timeLayout, created)
	return &u, nil
}
