// Package topics chooses what a bot writes about.
package topics

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"social_bots/internal/fetcher"
	"social_bots/internal/model"
)

// maxHeadlines caps how many feed headlines are kept per category.
const maxHeadlines = 20

// Pool returns the built-in topics for a category. Unknown categories get
// the default pool.
func Pool(c model.Category) []string {
	switch c {
	case model.CategoryTechnology:
		return []string{
			"the rise of AI coding assistants",
			"lessons from migrating to the cloud",
			"why observability beats monitoring",
			"open source maintainers and burnout",
			"practical cybersecurity habits for small teams",
		}
	case model.CategoryBusiness:
		return []string{
			"building a remote-first company culture",
			"pricing strategy for early-stage startups",
			"what makes a good quarterly review",
			"negotiating with enterprise customers",
			"hiring your first ten employees",
		}
	case model.CategoryHealth:
		return []string{
			"sleep habits that actually stick",
			"mental health at work",
			"simple ways to move more during the day",
			"the basics of balanced nutrition",
			"preventive checkups people skip",
		}
	case model.CategorySports:
		return []string{
			"training for a first marathon",
			"what data analytics changed in football",
			"recovery days and why athletes need them",
			"the growth of women's sports",
			"coaching youth teams",
		}
	case model.CategoryEntertainment:
		return []string{
			"the series everyone is binge-watching",
			"how streaming changed the music industry",
			"indie games worth your time",
			"what makes a movie soundtrack memorable",
			"live concerts after the pandemic",
		}
	case model.CategoryScience:
		return []string{
			"the latest news from space exploration",
			"how climate models are built",
			"CRISPR and the future of medicine",
			"why basic research matters",
			"quantum computing explained simply",
		}
	case model.CategoryTravel:
		return []string{
			"traveling on a budget in Europe",
			"working remotely from abroad",
			"underrated cities to visit this year",
			"packing light for long trips",
			"sustainable tourism",
		}
	case model.CategoryFood:
		return []string{
			"meal prep for busy weeks",
			"the comeback of home baking",
			"street food worth traveling for",
			"plant-based cooking for beginners",
			"running a small restaurant",
		}
	default:
		return []string{
			"a lesson learned this week",
			"productivity tips that work",
			"a book that changed my perspective",
			"the value of mentorship",
			"staying curious in your career",
		}
	}
}

// FeedSource fetches headlines for one feed URL.
type FeedSource interface {
	Headlines(ctx context.Context, url string) ([]string, error)
}

// Catalog merges the built-in pools with headlines from topic feeds.
type Catalog struct {
	source FeedSource
	feeds  map[model.Category]string
	log    *slog.Logger
	intn   func(n int) int

	mu        sync.RWMutex
	headlines map[model.Category][]string
}

// NewCatalog creates a Catalog. source may be nil when no feeds are configured.
func NewCatalog(source FeedSource, feeds map[model.Category]string, log *slog.Logger) *Catalog {
	return &Catalog{
		source:    source,
		feeds:     feeds,
		log:       log,
		intn:      rand.IntN,
		headlines: make(map[model.Category][]string),
	}
}

// Pick returns a random topic for the category.
func (c *Catalog) Pick(category model.Category) string {
	c.mu.RLock()
	candidates := slices.Concat(Pool(category), c.headlines[category])
	c.mu.RUnlock()

	return candidates[c.intn(len(candidates))]
}

// Refresh re-reads every configured feed. A failing feed keeps its previous headlines.
func (c *Catalog) Refresh(ctx context.Context) {
	if c.source == nil {
		return
	}
	for category, url := range c.feeds {
		if ctx.Err() != nil {
			return
		}
		titles, err := c.source.Headlines(ctx, url)
		if err != nil {
			c.log.Warn("refresh topic feed", "category", category, "url", url, "error", err)
			continue
		}
		if len(titles) > maxHeadlines {
			titles = titles[:maxHeadlines]
		}

		c.mu.Lock()
		c.headlines[category] = titles
		c.mu.Unlock()
		c.log.Debug("topic feed refreshed", "category", category, "headlines", len(titles))
	}
}

// Run refreshes immediately and then every interval, blocking until ctx is cancelled.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if c.source == nil || len(c.feeds) == 0 {
		return
	}
	c.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}

// FetcherSource adapts a fetcher.Fetcher to FeedSource, applying filter rules.
type FetcherSource struct {
	Fetcher *fetcher.Fetcher
	Rules   []model.Filter
}

// Headlines implements FeedSource.
func (s FetcherSource) Headlines(ctx context.Context, url string) ([]string, error) {
	feed, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return fetcher.Headlines(feed.Items, s.Rules, maxHeadlines), nil
}
