// Package scheduler runs bot cycles: one lock-guarded pass over every bot of
// an action type, in paced batches.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"social_bots/internal/metrics"
	"social_bots/internal/model"
	"social_bots/internal/pipeline"
)

// BotSource lists bot accounts of one type in a stable order.
type BotSource interface {
	ListBots(ctx context.Context, botType model.BotType) ([]model.BotAccount, error)
}

// Locker guards a cycle with the persisted per-action-type lock.
type Locker interface {
	Do(ctx context.Context, action model.BotType, fn func(ctx context.Context) error) (acquired bool, err error)
}

// Runner executes one bot.
type Runner interface {
	RunBot(ctx context.Context, bot model.BotAccount) error
}

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Options tune a Scheduler. Zero values fall back to the defaults.
type Options struct {
	Enabled       bool
	BatchSize     int
	BatchCooldown time.Duration
	Tick          time.Duration
	// Sender and ChatID receive a report after every cycle that ran.
	Sender Sender
	ChatID int64
}

// Defaults.
const (
	DefaultBatchSize     = 5
	DefaultBatchCooldown = 12 * time.Hour
	DefaultTick          = 5 * time.Minute
)

// CycleReport summarizes one cycle.
type CycleReport struct {
	Action   model.BotType
	Acquired bool
	Bots     int
	Batches  int
	OK       int
	Failed   int
	Busy     int
	Duration time.Duration
}

// Scheduler runs cycles for action types.
type Scheduler struct {
	bots   BotSource
	locker Locker
	runner Runner
	log    *slog.Logger
	opts   Options
	wait   func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// New creates a Scheduler.
func New(bots BotSource, locker Locker, runner Runner, log *slog.Logger, opts Options) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchCooldown <= 0 {
		opts.BatchCooldown = DefaultBatchCooldown
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Scheduler{
		bots:   bots,
		locker: locker,
		runner: runner,
		log:    log,
		opts:   opts,
		wait:   sleep,
		now:    time.Now,
	}
}

// SetWaitFunc overrides how the scheduler waits between batches.
func (s *Scheduler) SetWaitFunc(wait func(ctx context.Context, d time.Duration) error) {
	s.wait = wait
}

// Run starts the trigger loop for action, blocking until ctx is cancelled.
// Each trigger attempts a cycle; the lock decides whether it actually runs.
func (s *Scheduler) Run(ctx context.Context, action model.BotType) {
	s.trigger(ctx, action)

	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx, action)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context, action model.BotType) {
	report, err := s.RunCycle(ctx, action)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		s.log.Info("bot cycle interrupted by shutdown", "action", action, "error", err)
		return
	}
	if err != nil {
		s.log.Error("bot cycle failed", "action", action, "error", err)
		s.report(formatFailure(action, err))
		return
	}
	if report.Acquired {
		s.report(FormatReport(report))
	}
}

// RunCycle runs one cycle for action. Contention on the lock is not an
// error: the report has Acquired=false. Failures of single bots are
// counted, never returned. Store failures abort the cycle; the lock is
// released in every case.
func (s *Scheduler) RunCycle(ctx context.Context, action model.BotType) (CycleReport, error) {
	report := CycleReport{Action: action}
	if !s.opts.Enabled {
		metrics.RecordCycle(string(action), metrics.CycleDisabled)
		return report, nil
	}

	start := s.now()
	acquired, err := s.locker.Do(ctx, action, func(ctx context.Context) error {
		bots, err := s.bots.ListBots(ctx, action)
		if err != nil {
			return fmt.Errorf("list %s bots: %w", action, err)
		}
		report.Bots = len(bots)
		s.log.Info("bot cycle started", "action", action, "bots", len(bots))

		for i, batch := range Batches(bots, s.opts.BatchSize) {
			if i > 0 {
				s.log.Info("waiting before next batch", "action", action, "cooldown", s.opts.BatchCooldown)
				if err := s.wait(ctx, s.opts.BatchCooldown); err != nil {
					return fmt.Errorf("wait for batch %d: %w", i+1, err)
				}
			}
			report.Batches++
			metrics.RecordBatch(string(action))
			s.runBatch(ctx, batch, &report)
		}
		return nil
	})
	report.Acquired = acquired
	report.Duration = s.now().Sub(start)

	if err == nil && acquired && ctx.Err() != nil {
		err = fmt.Errorf("%s cycle interrupted: %w", action, ctx.Err())
	}

	switch {
	case err != nil && errors.Is(err, context.Canceled):
		metrics.RecordCycle(string(action), metrics.CycleInterrupted)
		return report, err
	case err != nil:
		metrics.RecordCycle(string(action), metrics.CycleFailed)
		return report, err
	case !acquired:
		metrics.RecordCycle(string(action), metrics.CycleContended)
		s.log.Info("bot cycle skipped, lock held or cooling down", "action", action)
		return report, nil
	}

	metrics.RecordCycle(string(action), metrics.CycleCompleted)
	s.log.Info("bot cycle finished",
		"action", action, "bots", report.Bots, "batches", report.Batches,
		"ok", report.OK, "failed", report.Failed, "busy", report.Busy,
	)
	return report, nil
}

func (s *Scheduler) runBatch(ctx context.Context, batch []model.BotAccount, report *CycleReport) {
	for _, bot := range batch {
		if ctx.Err() != nil {
			return
		}
		err := s.runBot(ctx, bot)
		switch {
		case err == nil:
			report.OK++
		case errors.Is(err, pipeline.ErrBusy):
			report.Busy++
			s.log.Debug("bot busy, skipped", "bot_id", bot.ID)
		default:
			report.Failed++
			s.log.Error("bot run failed", "bot_id", bot.ID, "bot_type", bot.BotType, "error", err)
		}
	}
}

func (s *Scheduler) runBot(ctx context.Context, bot model.BotAccount) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bot panic: %v", r)
		}
	}()
	return s.runner.RunBot(ctx, bot)
}

func (s *Scheduler) report(text string) {
	if s.opts.Sender == nil || s.opts.ChatID == 0 {
		return
	}
	s.opts.Sender.SendMessage(s.opts.ChatID, text)
}

// Batches splits bots into consecutive groups of at most size.
func Batches(bots []model.BotAccount, size int) [][]model.BotAccount {
	var out [][]model.BotAccount
	for start := 0; start < len(bots); start += size {
		end := min(start+size, len(bots))
		out = append(out, bots[start:end])
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
