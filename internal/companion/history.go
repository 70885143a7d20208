package companion

import (
	"strings"

	"github.com/sereno-app/sereno/internal/upstream"
)

// ShapeHistory keeps the most recent maxTurns entries in their original
// relative order, maps senders onto upstream roles, and truncates each turn to
// charLimit runes so payload size stays bounded. Blank turns are dropped.
func ShapeHistory(history []ChatTurn, maxTurns, charLimit int) []upstream.Message {
	if maxTurns <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	out := make([]upstream.Message, 0, len(history))
	for _, turn := range history {
		text := strings.TrimSpace(turn.Text)
		if text == "" {
			continue
		}
		if charLimit > 0 {
			if runes := []rune(text); len(runes) > charLimit {
				text = string(runes[:charLimit])
			}
		}
		role := upstream.RoleAssistant
		if strings.EqualFold(strings.TrimSpace(turn.Sender), "user") {
			role = upstream.RoleUser
		}
		out = append(out, upstream.Message{Role: role, Content: text})
	}
	return out
}
