package scheduler

import (
	"fmt"
	"strings"
	"time"

	"social_bots/internal/model"
)

// FormatReport renders a finished cycle for the admin chat.
func FormatReport(r CycleReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s cycle]\n\n", r.Action)
	if r.Bots == 0 {
		b.WriteString("No bots of this type.\n")
	} else {
		fmt.Fprintf(&b, "Bots: %d in %d batches\n", r.Bots, r.Batches)
		fmt.Fprintf(&b, "OK: %d, failed: %d, busy: %d\n", r.OK, r.Failed, r.Busy)
	}
	fmt.Fprintf(&b, "Took: %s", r.Duration.Round(time.Second))
	return b.String()
}

func formatFailure(action model.BotType, err error) string {
	return fmt.Sprintf("[%s cycle]\n\nFailed: %v", action, err)
}
