package companion

import "strings"

const (
	memoryUserPrefix      = "User: "
	memoryAssistantPrefix = "Sereno: "
)

// AppendExchange appends the latest exchange to the rolling memory transcript
// and trims to the byte cap by suffix retention: when the result exceeds the
// cap, only the trailing cap bytes survive. No summarization happens here.
func AppendExchange(memory, userMessage, reply string, byteLimit int) string {
	var sb strings.Builder
	if m := strings.TrimSpace(memory); m != "" {
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	sb.WriteString(memoryUserPrefix)
	sb.WriteString(strings.TrimSpace(userMessage))
	sb.WriteString("\n")
	sb.WriteString(memoryAssistantPrefix)
	sb.WriteString(strings.TrimSpace(reply))

	out := sb.String()
	if byteLimit > 0 && len(out) > byteLimit {
		out = out[len(out)-byteLimit:]
	}
	return out
}
