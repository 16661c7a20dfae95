// Package bot is the Telegram operator console of the engine.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"social_bots/internal/config"
	"social_bots/internal/model"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// LockStore is the lock table as the console sees it.
type LockStore interface {
	ListLocks(ctx context.Context) ([]model.BotLock, error)
	ReleaseLock(ctx context.Context, action model.BotType) error
}

// BotCounter reports how many bot accounts exist per type.
type BotCounter interface {
	CountBots(ctx context.Context) (map[model.BotType]int, error)
}

// Heartbeats exposes the supervisor's heartbeat registry.
type Heartbeats interface {
	HeartbeatCount() int
}

// Bot handles operator commands and delivers cycle reports.
type Bot struct {
	api        telegramAPI
	locks      LockStore
	bots       BotCounter
	heartbeats Heartbeats
	cfg        *config.Config
	log        *slog.Logger
	now        func() time.Time
}

// New creates a Bot with the given Telegram token.
func New(token string, locks LockStore, bots BotCounter, heartbeats Heartbeats, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:        api,
		locks:      locks,
		bots:       bots,
		heartbeats: heartbeats,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdStatus:
		b.handleStatus(ctx, chatID)
	case "bots":
		b.handleBots(ctx, chatID)
	case "heartbeats":
		b.handleHeartbeats(chatID)
	case "release":
		b.handleReleaseConfirm(chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
