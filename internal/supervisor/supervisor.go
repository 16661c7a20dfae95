// Package supervisor owns the long-running work of the engine: one trigger
// loop per action type and one heartbeat per bot.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"social_bots/internal/metrics"
	"social_bots/internal/model"
	"social_bots/internal/pipeline"
)

// BotRunner runs one pipeline pass for a bot.
type BotRunner interface {
	Run(ctx context.Context, bot model.BotAccount) error
}

// CycleRunner is the per-action trigger loop.
type CycleRunner interface {
	Run(ctx context.Context, action model.BotType)
}

// heartbeatTask is the handle of one running heartbeat.
type heartbeatTask struct {
	cancel context.CancelFunc
}

// Supervisor starts cycles and keeps bot heartbeats alive until stopped.
type Supervisor struct {
	pipeline BotRunner
	log      *slog.Logger
	minDelay time.Duration
	maxDelay time.Duration
	delay    func(lo, hi time.Duration) time.Duration

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	cycles     *errgroup.Group
	heartbeats map[string]*heartbeatTask
	wg         sync.WaitGroup
	stopped    bool
}

// New creates a Supervisor. Heartbeat delays are uniform in [minDelay, maxDelay].
func New(p BotRunner, log *slog.Logger, minDelay, maxDelay time.Duration) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		pipeline:   p,
		log:        log,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		delay:      jitter,
		ctx:        ctx,
		cancel:     cancel,
		cycles:     &errgroup.Group{},
		heartbeats: make(map[string]*heartbeatTask),
	}
}

// Start launches a trigger loop for every action concurrently and returns
// immediately. The loops end when ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context, cycles CycleRunner, actions []model.BotType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	context.AfterFunc(s.ctx, cancel)

	for _, action := range actions {
		s.cycles.Go(func() error {
			s.log.Info("cycle loop started", "action", action)
			cycles.Run(loopCtx, action)
			s.log.Info("cycle loop stopped", "action", action)
			return nil
		})
	}
}

// RunBot runs one pass for bot and makes sure the bot has a heartbeat,
// whatever the outcome of the pass. It is the scheduler's Runner.
func (s *Supervisor) RunBot(ctx context.Context, bot model.BotAccount) error {
	err := s.pipeline.Run(ctx, bot)
	s.ensureHeartbeat(bot)
	return err
}

// ensureHeartbeat registers and starts a heartbeat for bot unless one exists.
func (s *Supervisor) ensureHeartbeat(bot model.BotAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if _, ok := s.heartbeats[bot.ID]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	task := &heartbeatTask{cancel: cancel}
	s.heartbeats[bot.ID] = task
	metrics.SetHeartbeats(len(s.heartbeats))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.dropHeartbeat(bot.ID, task)
		s.heartbeat(ctx, bot)
	}()
}

// dropHeartbeat unregisters task unless the bot has been re-seeded since.
func (s *Supervisor) dropHeartbeat(botID string, task *heartbeatTask) {
	task.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.heartbeats[botID] == task {
		delete(s.heartbeats, botID)
	}
	metrics.SetHeartbeats(len(s.heartbeats))
}

// heartbeat re-runs the bot after a random delay until ctx is cancelled.
// Failures are logged and never end the loop.
func (s *Supervisor) heartbeat(ctx context.Context, bot model.BotAccount) {
	for {
		d := s.delay(s.minDelay, s.maxDelay)
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if ctx.Err() != nil {
			return
		}

		err := s.runSafely(ctx, bot)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrBusy):
			s.log.Debug("heartbeat skipped, bot busy", "bot_id", bot.ID)
		default:
			s.log.Error("heartbeat run failed", "bot_id", bot.ID, "error", err)
		}
	}
}

func (s *Supervisor) runSafely(ctx context.Context, bot model.BotAccount) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("heartbeat panic")
			s.log.Error("heartbeat panic", "bot_id", bot.ID, "panic", r)
		}
	}()
	return s.pipeline.Run(ctx, bot)
}

// CancelHeartbeat stops the heartbeat of one bot. It reports whether one was running.
func (s *Supervisor) CancelHeartbeat(botID string) bool {
	s.mu.Lock()
	task, ok := s.heartbeats[botID]
	if ok {
		delete(s.heartbeats, botID)
		metrics.SetHeartbeats(len(s.heartbeats))
	}
	s.mu.Unlock()
	if ok {
		task.cancel()
	}
	return ok
}

// HeartbeatCount returns the number of bots with a live heartbeat.
func (s *Supervisor) HeartbeatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heartbeats)
}

// Stop cancels every cycle loop and heartbeat. It does not wait; use Wait.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
}

// Wait blocks until every cycle loop and heartbeat has returned.
func (s *Supervisor) Wait() {
	_ = s.cycles.Wait()
	s.wg.Wait()
}

func jitter(minDelay, maxDelay time.Duration) time.Duration {
	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + rand.N(maxDelay-minDelay+1)
}
