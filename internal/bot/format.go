package bot

import (
	"fmt"
	"strings"
	"time"

	"social_bots/internal/model"
)

const timeFormat = "2006-01-02 15:04 UTC"

// Lock states shown by /status.
const (
	stateRunning = "running"
	stateStale   = "stale"
	stateCooling = "cooling down"
	stateIdle    = "idle"
)

// LockState classifies a lock at now.
func LockState(l model.BotLock, now time.Time, staleAfter, cooldown time.Duration) string {
	if l.LockedAt != nil {
		if now.Sub(*l.LockedAt) > staleAfter {
			return stateStale
		}
		return stateRunning
	}
	if l.LastRunAt != nil && now.Sub(*l.LastRunAt) < cooldown {
		return stateCooling
	}
	return stateIdle
}

// FormatLocks formats the lock table for display.
func FormatLocks(locks []model.BotLock, now time.Time, staleAfter, cooldown time.Duration) string {
	if len(locks) == 0 {
		return "No cycle has run yet."
	}
	var b strings.Builder
	b.WriteString("Cycle locks:\n")
	for _, l := range locks {
		state := LockState(l, now, staleAfter, cooldown)
		fmt.Fprintf(&b, "\n%s [%s]\n", l.ActionType, state)
		if l.LockedAt != nil {
			fmt.Fprintf(&b, "   locked at %s\n", l.LockedAt.UTC().Format(timeFormat))
		}
		if l.LastRunAt != nil {
			fmt.Fprintf(&b, "   last run %s\n", l.LastRunAt.UTC().Format(timeFormat))
			if state == stateCooling {
				fmt.Fprintf(&b, "   next run after %s\n", l.LastRunAt.Add(cooldown).UTC().Format(timeFormat))
			}
		}
	}
	return b.String()
}

// FormatBotCounts formats bot account counts per type.
func FormatBotCounts(counts map[model.BotType]int) string {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return "No bot accounts. Run the provisioning command to create some."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bot accounts: %d\n", total)
	for _, t := range []model.BotType{model.BotPost, model.BotComment, model.BotLike, model.BotCategory} {
		fmt.Fprintf(&b, "\n%s: %d", t, counts[t])
	}
	return b.String()
}
