package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"social_bots/internal/model"
	"social_bots/internal/storage"
)

var roles = []string{
	"Senior engineer",
	"Product manager",
	"Startup founder",
	"Consultant",
	"Researcher",
	"Freelance writer",
	"Team lead",
	"Analyst",
}

func main() {
	_ = godotenv.Load()

	dbPath := flag.String("db", envOrDefault("DATABASE_PATH", "./data/bots.db"), "path to sqlite database")
	defaultCount, err := envInt("BOT_COUNT", 10)
	if err != nil {
		log.Fatalf("read BOT_COUNT: %v", err)
	}
	count := flag.Int("count", defaultCount, "number of bot accounts to create")
	types := flag.String("types", "post,comment,like", "comma-separated bot types to cycle through")
	dryRun := flag.Bool("dry-run", false, "print the accounts without creating them")
	flag.Parse()

	if err := checkCount(*count); err != nil {
		log.Fatalf("invalid count: %v", err)
	}

	botTypes, err := parseTypes(*types)
	if err != nil {
		log.Fatalf("parse types: %v", err)
	}

	accounts := plan(*count, botTypes, uuid.NewString)
	if *dryRun {
		for _, a := range accounts {
			fmt.Printf("%s\t%s\t%s\t%s\n", a.Username, a.BotType, a.Category, a.Headline)
		}
		return
	}

	if dir := filepath.Dir(*dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Fatalf("create data dir: %v", err)
		}
	}

	store, err := storage.NewSQLite(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for i := range accounts {
		if err := store.CreateUser(ctx, &accounts[i]); err != nil {
			log.Fatalf("create %s: %v", accounts[i].Username, err)
		}
	}
	fmt.Printf("created %d bot accounts\n", len(accounts))
}

// plan builds n bot accounts, cycling bot types and categories so every
// category gets every type once enough bots exist.
func plan(n int, types []model.BotType, newID func() string) []model.BotAccount {
	accounts := make([]model.BotAccount, 0, n)
	for i := range n {
		category := model.Categories[i%len(model.Categories)]
		botType := types[(i/len(model.Categories))%len(types)]
		id := newID()
		accounts = append(accounts, model.BotAccount{
			Username: fmt.Sprintf("%s_%s_%s", category, strings.ToLower(string(botType)), id[:8]),
			IsBot:    true,
			BotType:  botType,
			BotKey:   newID(),
			Category: category,
			Headline: fmt.Sprintf("%s in %s", roles[i%len(roles)], category),
		})
	}
	return accounts
}

func parseTypes(raw string) ([]model.BotType, error) {
	var types []model.BotType
	for _, s := range strings.Split(raw, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := model.ParseBotType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("at least one bot type is required")
	}
	return types, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an integer", key, v)
	}
	return n, nil
}

func checkCount(n int) error {
	if n < 0 {
		return fmt.Errorf("count must not be negative, got %d", n)
	}
	return nil
}
