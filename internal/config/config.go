// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"social_bots/internal/model"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	// DatabaseURL points the lock store at Postgres so several replicas share it.
	DatabaseURL string
	LogLevel    string
	MetricsAddr string

	BotsEnabled     bool
	BotCount        int
	MinDelay        time.Duration
	MaxDelay        time.Duration
	BatchSize       int
	BatchCooldown   time.Duration
	LockStaleAfter  time.Duration
	LockCooldown    time.Duration
	TriggerInterval time.Duration
	CategoryCycle   bool

	GeminiAPIKey   string
	GeminiModel    string
	TextGenRPM     int
	TextGenTimeout time.Duration

	SocialAPIURL  string
	SocialTimeout time.Duration

	TelegramBotToken string
	AdminChatID      int64
	AllowedUsers     []int64

	TopicFeeds   map[model.Category]string
	TopicExclude []string
	TopicRefresh time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath: envString("DATABASE_PATH", "./data/bots.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     envString("LOG_LEVEL", "info"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envString("GEMINI_MODEL", "gemini-2.5-flash"),
		SocialAPIURL: strings.TrimRight(os.Getenv("SOCIAL_API_URL"), "/"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	var err error
	if cfg.BotsEnabled, err = envBool("BOTS_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.CategoryCycle, err = envBool("BOTS_CATEGORY_CYCLE", false); err != nil {
		return nil, err
	}
	if cfg.BotCount, err = envInt("BOT_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = envInt("BOT_BATCH_SIZE", 5); err != nil {
		return nil, err
	}
	if cfg.TextGenRPM, err = envInt("TEXTGEN_RPM", 10); err != nil {
		return nil, err
	}
	if cfg.MinDelay, err = envMillis("BOT_MIN_DELAY_MS", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxDelay, err = envMillis("BOT_MAX_DELAY_MS", 20*time.Minute); err != nil {
		return nil, err
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"BOT_BATCH_COOLDOWN", 12 * time.Hour, &cfg.BatchCooldown},
		{"BOT_LOCK_STALE_AFTER", 6 * time.Hour, &cfg.LockStaleAfter},
		{"BOT_LOCK_COOLDOWN", 12 * time.Hour, &cfg.LockCooldown},
		{"BOT_TRIGGER_INTERVAL", 5 * time.Minute, &cfg.TriggerInterval},
		{"TEXTGEN_TIMEOUT", 60 * time.Second, &cfg.TextGenTimeout},
		{"SOCIAL_TIMEOUT", 15 * time.Second, &cfg.SocialTimeout},
		{"TOPIC_REFRESH", time.Hour, &cfg.TopicRefresh},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if raw := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		cfg.AdminChatID, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID %q: %w", raw, err)
		}
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	if cfg.TopicFeeds, err = parseTopicFeeds(os.Getenv("TOPIC_FEEDS")); err != nil {
		return nil, err
	}
	for _, s := range strings.Split(os.Getenv("TOPIC_EXCLUDE"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.TopicExclude = append(cfg.TopicExclude, s)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("BOT_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.MinDelay <= 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("bot delay range [%s, %s] is invalid", c.MinDelay, c.MaxDelay)
	}
	if c.TriggerInterval <= 0 {
		return fmt.Errorf("BOT_TRIGGER_INTERVAL must be positive")
	}
	if len(c.TopicFeeds) > 0 && c.TopicRefresh <= 0 {
		return fmt.Errorf("TOPIC_REFRESH must be positive when TOPIC_FEEDS is set")
	}
	if c.BotsEnabled && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when BOTS_ENABLED is set")
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// ActionTypes returns the bot types that get their own cycle.
func (c *Config) ActionTypes() []model.BotType {
	types := append([]model.BotType(nil), model.ActionTypes...)
	if c.CategoryCycle {
		types = append(types, model.BotCategory)
	}
	return types
}

// parseTopicFeeds parses "technology=https://a/rss,sports=https://b/rss".
func parseTopicFeeds(raw string) (map[model.Category]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	feeds := make(map[model.Category]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		cat, url, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(cat) == "" || strings.TrimSpace(url) == "" {
			return nil, fmt.Errorf("invalid TOPIC_FEEDS entry %q, want category=url", pair)
		}
		feeds[model.Category(strings.ToLower(strings.TrimSpace(cat)))] = strings.TrimSpace(url)
	}
	return feeds, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envMillis(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
