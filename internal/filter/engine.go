// Package filter decides which feed headlines may become post topics.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"social_bots/internal/model"
)

const regexPrefix = "re:"

// Match checks whether text passes the given set of filters.
// If no filters are provided, the text always passes.
// Include filters use OR logic (at least one must match).
// Exclude filters use AND logic (none must match).
func Match(text string, filters []model.Filter) bool {
	if len(filters) == 0 {
		return true
	}

	text = strings.ToLower(text)
	hasIncludes := false
	anyIncludeMatched := false

	for _, f := range filters {
		switch f.Kind {
		case model.FilterInclude, model.FilterIncludeRe:
			hasIncludes = true
			if matchesFilter(text, f) {
				anyIncludeMatched = true
			}
		case model.FilterExclude, model.FilterExcludeRe:
			if matchesFilter(text, f) {
				return false
			}
		}
	}

	return !hasIncludes || anyIncludeMatched
}

func matchesFilter(text string, f model.Filter) bool {
	switch f.Kind {
	case model.FilterInclude, model.FilterExclude:
		return strings.Contains(text, strings.ToLower(f.Value))
	case model.FilterIncludeRe, model.FilterExcludeRe:
		re, err := regexp.Compile("(?i)" + f.Value)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return false
}

// ExcludeRules turns TOPIC_EXCLUDE values into exclude filters.
// A value prefixed with "re:" is a case-insensitive regular expression.
func ExcludeRules(values []string) ([]model.Filter, error) {
	var rules []model.Filter
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(v, regexPrefix); ok {
			if err := ValidateRegex(pattern); err != nil {
				return nil, fmt.Errorf("exclude rule %q: %w", v, err)
			}
			rules = append(rules, model.Filter{Kind: model.FilterExcludeRe, Value: pattern})
			continue
		}
		rules = append(rules, model.Filter{Kind: model.FilterExclude, Value: v})
	}
	return rules, nil
}

// ValidateRegex checks whether a pattern is a valid regular expression.
func ValidateRegex(pattern string) error {
	_, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	return nil
}
