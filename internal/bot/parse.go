package bot

import (
	"fmt"
	"strings"

	"social_bots/internal/model"
)

// ParseActionArg extracts a lockable action type from a command argument string.
func ParseActionArg(args string) (model.BotType, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("action type is required")
	}
	return model.ParseBotType(fields[0])
}
