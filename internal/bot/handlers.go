package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Bot engine console.

Watch the simulated accounts and their cycle locks.

Quick start:
1. /status — lock table per action type
2. /bots — bot accounts per type
3. /release <post|comment|like> — free a stuck lock

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/status — cycle locks: running, cooling down or idle
/bots — number of bot accounts per type
/heartbeats — bots with a live heartbeat
/release <type> — release the lock of post, comment, like or category

Releasing a lock lets a crashed cycle's action type run again without
waiting for the stale threshold. The cooldown still applies.`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	locks, err := b.locks.ListLocks(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatLocks(locks, b.now(), b.cfg.LockStaleAfter, b.cfg.LockCooldown))
	msg.DisableWebPagePreview = true

	var buttons []tgbotapi.InlineKeyboardButton
	for _, l := range locks {
		if l.LockedAt != nil {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(
				"Release "+string(l.ActionType), cbReleaseConfirm+":"+string(l.ActionType)))
		}
	}
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "error", err)
	}
}

func (b *Bot) handleBots(ctx context.Context, chatID int64) {
	counts, err := b.bots.CountBots(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatBotCounts(counts))
}

func (b *Bot) handleHeartbeats(chatID int64) {
	n := b.heartbeats.HeartbeatCount()
	if n == 0 {
		b.reply(chatID, "No heartbeats yet. Bots get one on their first cycle.")
		return
	}
	b.reply(chatID, fmt.Sprintf("%d bots have a live heartbeat.", n))
}

func (b *Bot) handleReleaseConfirm(chatID int64, args string) {
	action, err := ParseActionArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /release <post|comment|like|category>")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Release the %s lock? A running cycle may then overlap with a new one.", action))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, release", cbRelease+":"+string(action)),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop+":"),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send release confirmation", "error", err)
	}
}

func (b *Bot) handleRelease(ctx context.Context, chatID int64, args string) {
	action, err := ParseActionArg(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if err := b.locks.ReleaseLock(ctx, action); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to release %s lock: %v", action, err))
		return
	}
	b.log.Info("lock released by operator", "action", action, "chat_id", chatID)
	b.reply(chatID, fmt.Sprintf("%s lock released.", action))
}
