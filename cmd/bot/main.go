package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"social_bots/internal/bot"
	"social_bots/internal/config"
	"social_bots/internal/fetcher"
	"social_bots/internal/filter"
	"social_bots/internal/lock"
	"social_bots/internal/pipeline"
	"social_bots/internal/scheduler"
	"social_bots/internal/social"
	"social_bots/internal/storage"
	"social_bots/internal/supervisor"
	"social_bots/internal/textgen"
	"social_bots/internal/topics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("bot engine failed", "error", err)
		os.Exit(1)
	}
	log.Info("bot engine stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var locks storage.LockStore = store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresLocks(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		locks = pg
		log.Info("using postgres lock store")
	}

	var gen textgen.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := textgen.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.TextGenRPM)
		if err != nil {
			return err
		}
		defer func() { _ = g.Close() }()
		gen = g
	}

	var actions social.Actions = social.NewStoreActions(store)
	if cfg.SocialAPIURL != "" {
		actions = social.NewAPIClient(&http.Client{Timeout: cfg.SocialTimeout}, cfg.SocialAPIURL)
		log.Info("posting through the social API", "url", cfg.SocialAPIURL)
	}

	rules, err := filter.ExcludeRules(cfg.TopicExclude)
	if err != nil {
		return err
	}
	catalog := topics.NewCatalog(
		topics.FetcherSource{Fetcher: fetcher.New(&http.Client{Timeout: 30 * time.Second}), Rules: rules},
		cfg.TopicFeeds, log,
	)

	pipe := pipeline.New(gen, actions, store, catalog, log, cfg.TextGenTimeout, cfg.SocialTimeout)
	sup := supervisor.New(pipe, log, cfg.MinDelay, cfg.MaxDelay)

	opts := scheduler.Options{
		Enabled:       cfg.BotsEnabled,
		BatchSize:     cfg.BatchSize,
		BatchCooldown: cfg.BatchCooldown,
		Tick:          cfg.TriggerInterval,
		ChatID:        cfg.AdminChatID,
	}

	var console *bot.Bot
	if cfg.TelegramBotToken != "" {
		console, err = bot.New(cfg.TelegramBotToken, locks, store, sup, cfg, log)
		if err != nil {
			return err
		}
		opts.Sender = console
	}

	sched := scheduler.New(store, lock.New(locks, cfg.LockStaleAfter, cfg.LockCooldown), sup, log, opts)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, log)
	}

	go catalog.Run(ctx, cfg.TopicRefresh)

	if cfg.BotsEnabled {
		log.Info("starting bot engine", "actions", cfg.ActionTypes(), "batch_size", cfg.BatchSize)
		sup.Start(ctx, sched, cfg.ActionTypes())
	} else {
		log.Info("bots disabled, running console only")
	}

	if console != nil {
		console.Run(ctx)
	} else {
		<-ctx.Done()
	}

	sup.Stop()
	sup.Wait()
	return nil
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
