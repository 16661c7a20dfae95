package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"social_bots/internal/config"
	"social_bots/internal/model"
	"social_bots/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID  int64
	Text    string
	Buttons []string
}

type mockAPI struct {
	mu   sync.Mutex
	sent []sentMsg
	acks int
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch msg := c.(type) {
	case tgbotapi.MessageConfig:
		s := sentMsg{ChatID: msg.ChatID, Text: msg.Text}
		if kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			for _, row := range kb.InlineKeyboard {
				for _, btn := range row {
					if btn.CallbackData != nil {
						s.Buttons = append(s.Buttons, *btn.CallbackData)
					}
				}
			}
		}
		m.sent = append(m.sent, s)
	case tgbotapi.CallbackConfig:
		m.acks++
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (m *mockAPI) StopReceivingUpdates() {}

func (m *mockAPI) last() sentMsg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentMsg{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *mockAPI) lastText() string {
	return m.last().Text
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type fakeHeartbeats int

func (f fakeHeartbeats) HeartbeatCount() int { return int(f) }

type failingLocks struct{}

func (failingLocks) ListLocks(context.Context) ([]model.BotLock, error) {
	return nil, errors.New("db down")
}

func (failingLocks) ReleaseLock(context.Context, model.BotType) error {
	return errors.New("db down")
}

// --- helpers ---

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	api := &mockAPI{}
	b := &Bot{
		api:        api,
		locks:      store,
		bots:       store,
		heartbeats: fakeHeartbeats(3),
		cfg: &config.Config{
			LockStaleAfter: 6 * time.Hour,
			LockCooldown:   12 * time.Hour,
			AllowedUsers:   []int64{7},
		},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now: func() time.Time { return testNow },
	}
	return b, api, store
}

func seedRunningLock(t *testing.T, store *storage.SQLite, action model.BotType, at time.Time) {
	t.Helper()
	ok, err := store.AcquireLock(context.Background(), action, at, 6*time.Hour, 12*time.Hour)
	if err != nil || !ok {
		t.Fatalf("seed lock: %v, %v", ok, err)
	}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleStart(100)
	requireContains(t, api.lastText(), "Bot engine console")
}

func TestHandleHelp(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHelp(100)
	requireContains(t, api.lastText(), "/status")
	requireContains(t, api.lastText(), "/release")
}

func TestHandleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("no locks", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleStatus(ctx, 100)
		requireContains(t, api.lastText(), "No cycle has run yet")
		if got := api.last().Buttons; len(got) != 0 {
			t.Errorf("expected no buttons, got %v", got)
		}
	})

	t.Run("running and cooling", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedRunningLock(t, store, model.BotPost, testNow.Add(-time.Hour))
		seedRunningLock(t, store, model.BotLike, testNow.Add(-2*time.Hour))
		if err := store.ReleaseLock(ctx, model.BotLike); err != nil {
			t.Fatalf("release: %v", err)
		}

		b.handleStatus(ctx, 100)
		reply := api.last()
		requireContains(t, reply.Text, "POST [running]")
		requireContains(t, reply.Text, "LIKE [cooling down]")
		requireContains(t, reply.Text, "next run after 2025-03-01 22:00 UTC")
		if diff := cmp.Diff([]string{"release_confirm:POST"}, reply.Buttons); diff != "" {
			t.Errorf("buttons mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("store error", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.locks = failingLocks{}
		b.handleStatus(ctx, 100)
		requireContains(t, api.lastText(), "Error: db down")
	})
}

func TestHandleBots(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleBots(ctx, 100)
		requireContains(t, api.lastText(), "No bot accounts")
	})

	t.Run("counts", func(t *testing.T) {
		b, api, store := newTestBot(t)
		for i, bt := range []model.BotType{model.BotPost, model.BotPost, model.BotLike} {
			u := &model.BotAccount{Username: "u" + string(rune('a'+i)), IsBot: true, BotType: bt, BotKey: "k" + string(rune('a'+i))}
			if err := store.CreateUser(ctx, u); err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
		}
		b.handleBots(ctx, 100)
		reply := api.lastText()
		requireContains(t, reply, "Bot accounts: 3")
		requireContains(t, reply, "POST: 2")
		requireContains(t, reply, "LIKE: 1")
		requireContains(t, reply, "COMMENT: 0")
	})
}

func TestHandleHeartbeats(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.handleHeartbeats(100)
	requireContains(t, api.lastText(), "3 bots have a live heartbeat")

	b.heartbeats = fakeHeartbeats(0)
	b.handleHeartbeats(100)
	requireContains(t, api.lastText(), "No heartbeats yet")
}

func TestHandleReleaseConfirm(t *testing.T) {
	t.Run("bad args", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleReleaseConfirm(100, "")
		requireContains(t, api.lastText(), "Usage: /release")

		b.handleReleaseConfirm(100, "party")
		requireContains(t, api.lastText(), "Usage: /release")
	})

	t.Run("asks for confirmation", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedRunningLock(t, store, model.BotComment, testNow)

		b.handleReleaseConfirm(100, "comment")
		reply := api.last()
		requireContains(t, reply.Text, "Release the COMMENT lock?")
		if diff := cmp.Diff([]string{"release:COMMENT", "noop:"}, reply.Buttons); diff != "" {
			t.Errorf("buttons mismatch (-want +got):\n%s", diff)
		}

		locks, _ := store.ListLocks(context.Background())
		if locks[0].LockedAt == nil {
			t.Error("confirmation alone must not release the lock")
		}
	})
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()

	makeMsg := func(cmd, args string) *tgbotapi.Message {
		text := "/" + cmd
		if args != "" {
			text += " " + args
		}
		return &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 100},
			Text: text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len("/" + cmd)},
			},
		}
	}

	b, api, _ := newTestBot(t)
	cmds := []struct {
		cmd      string
		args     string
		contains string
	}{
		{"start", "", "console"},
		{"help", "", "/heartbeats"},
		{"status", "", "No cycle has run yet"},
		{"bots", "", "No bot accounts"},
		{"heartbeats", "", "3 bots"},
		{"release", "like", "Release the LIKE lock?"},
		{"unknown_cmd", "", "Unknown command"},
	}

	for _, tc := range cmds {
		t.Run(tc.cmd, func(t *testing.T) {
			api.reset()
			b.handleCommand(ctx, makeMsg(tc.cmd, tc.args))
			requireContains(t, api.lastText(), tc.contains)
		})
	}
}

func TestHandleCallback(t *testing.T) {
	ctx := context.Background()
	admin := &tgbotapi.User{ID: 7, UserName: "admin"}

	makeCB := func(data string, from *tgbotapi.User) *tgbotapi.CallbackQuery {
		return &tgbotapi.CallbackQuery{
			ID:      "cb",
			Data:    data,
			From:    from,
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		}
	}

	t.Run("invalid data format", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, makeCB("nocolon", admin))
		if diff := cmp.Diff(0, len(api.allTexts())); diff != "" {
			t.Errorf("expected no text messages (-want +got):\n%s", diff)
		}
		if api.acks != 1 {
			t.Errorf("acks = %d, want 1", api.acks)
		}
	})

	t.Run("stranger is denied", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedRunningLock(t, store, model.BotPost, testNow)

		b.handleCallback(ctx, makeCB("release:POST", &tgbotapi.User{ID: 99}))
		requireContains(t, api.lastText(), "Access denied")

		locks, _ := store.ListLocks(ctx)
		if locks[0].LockedAt == nil {
			t.Error("stranger released the lock")
		}
	})

	t.Run("release confirm", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, makeCB("release_confirm:POST", admin))
		requireContains(t, api.lastText(), "Release the POST lock?")
	})

	t.Run("release", func(t *testing.T) {
		b, api, store := newTestBot(t)
		seedRunningLock(t, store, model.BotPost, testNow)

		b.handleCallback(ctx, makeCB("release:POST", admin))
		requireContains(t, api.lastText(), "POST lock released")

		locks, err := store.ListLocks(ctx)
		if err != nil {
			t.Fatalf("ListLocks: %v", err)
		}
		if locks[0].LockedAt != nil {
			t.Error("lock still held")
		}
		if locks[0].LastRunAt == nil {
			t.Error("release must keep last_run_at for the cooldown")
		}
	})

	t.Run("release failure", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.locks = failingLocks{}
		b.handleCallback(ctx, makeCB("release:LIKE", admin))
		requireContains(t, api.lastText(), "Failed to release LIKE lock")
	})

	t.Run("noop", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, makeCB("noop:", admin))
		if got := api.allTexts(); len(got) != 0 {
			t.Errorf("expected no messages, got %v", got)
		}
	})

	t.Run("status", func(t *testing.T) {
		b, api, _ := newTestBot(t)
		b.handleCallback(ctx, makeCB("status:", admin))
		requireContains(t, api.lastText(), "No cycle has run yet")
	})
}

func TestSendMessage(t *testing.T) {
	b, api, _ := newTestBot(t)
	b.SendMessage(42, "[POST cycle]")
	if diff := cmp.Diff(sentMsg{ChatID: 42, Text: "[POST cycle]"}, api.last()); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
}
