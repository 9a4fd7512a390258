package notifier

import (
	"strings"
	"time"

	"pricewatch/internal/pkg/text"
)

// Telegram rejects bodies over 4096 characters.
const maxChatMessageLen = 3800

// chatMessage is the Markdown layout chat channels render for an alert: a
// header line, a fenced block of figures and the observation time.
type chatMessage struct {
	Header  string
	Details []string
	At      time.Time
}

func (m chatMessage) Markdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Header); header != "" {
		b.WriteString(sanitize(header) + "\n\n")
	}
	if lines := nonEmpty(m.Details); len(lines) > 0 {
		b.WriteString("```\n")
		for _, line := range lines {
			b.WriteString("- " + sanitize(line) + "\n")
		}
		b.WriteString("```\n\n")
	}
	if !m.At.IsZero() {
		b.WriteString("Time: " + m.At.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return text.Truncate(strings.TrimSpace(b.String()), maxChatMessageLen)
}

func nonEmpty(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// sanitize keeps user text from closing the fenced block early.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}
