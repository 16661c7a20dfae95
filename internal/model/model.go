// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// BotType is the configured behavior of a bot account.
type BotType string

// Supported bot types. BotCategory performs every action on each run.
const (
	BotPost     BotType = "POST"
	BotComment  BotType = "COMMENT"
	BotLike     BotType = "LIKE"
	BotCategory BotType = "CATEGORY"
)

// ActionTypes are the bot types that own a cycle lock by default.
var ActionTypes = []BotType{BotPost, BotComment, BotLike}

// ParseBotType converts user input such as "post" into a BotType.
func ParseBotType(s string) (BotType, error) {
	t := BotType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case BotPost, BotComment, BotLike, BotCategory:
		return t, nil
	}
	return "", fmt.Errorf("unknown bot type %q", s)
}

// Action is what a single pipeline pass decided to do.
type Action string

// Pipeline actions.
const (
	ActionPost    Action = "POST"
	ActionComment Action = "COMMENT"
	ActionLike    Action = "LIKE"
	ActionAll     Action = "ALL"
	ActionSkip    Action = "SKIP"
)

// Category is the topic domain of a bot and of the content it targets.
type Category string

// Known categories. Anything else falls back to the default topic pool.
const (
	CategoryTechnology    Category = "technology"
	CategoryBusiness      Category = "business"
	CategoryHealth        Category = "health"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryScience       Category = "science"
	CategoryTravel        Category = "travel"
	CategoryFood          Category = "food"
)

// Categories lists the known categories in a stable order.
var Categories = []Category{
	CategoryTechnology,
	CategoryBusiness,
	CategoryHealth,
	CategorySports,
	CategoryEntertainment,
	CategoryScience,
	CategoryTravel,
	CategoryFood,
}

// BotAccount is a user record driven by the bot engine instead of a human.
type BotAccount struct {
	ID        string
	Username  string
	IsBot     bool
	BotType   BotType
	BotKey    string
	Category  Category
	Headline  string
	CreatedAt time.Time
}

// BotLock is the persisted cycle lock of one action type.
type BotLock struct {
	ActionType BotType
	LockedAt   *time.Time
	LastRunAt  *time.Time
}

// Post is a piece of content on the network.
type Post struct {
	ID        string
	AuthorID  string
	Category  Category
	Content   string
	IsPublic  bool
	CreatedAt time.Time
}

// Comment is a reply to a post.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Like records that a user liked a post.
type Like struct {
	ID        string
	PostID    string
	AuthorID  string
	CreatedAt time.Time
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// Filter is a single rule applied to feed headlines before they become topics.
type Filter struct {
	Kind  FilterKind
	Value string
}
