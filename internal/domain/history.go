package domain

import (
	"regexp"
	"strings"
)

// DefaultHistoryLimit bounds the conversation ring when none is configured.
const DefaultHistoryLimit = 2000

// Exchange is one user/companion turn. User carries the speaker marker for
// non-chat entries ("AUTO", "ai:<activity>", "❤️ (like)").
type Exchange struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

// History is a bounded conversation log. The oldest exchanges are dropped
// first once Limit is exceeded.
type History struct {
	Limit     int        `json:"limit"`
	Exchanges []Exchange `json:"exchanges"`
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{Limit: limit}
}

func (h *History) Push(user, ai string) {
	if h.Limit <= 0 {
		h.Limit = DefaultHistoryLimit
	}
	h.Exchanges = append(h.Exchanges, Exchange{User: user, AI: ai})
	if over := len(h.Exchanges) - h.Limit; over > 0 {
		h.Exchanges = append([]Exchange(nil), h.Exchanges[over:]...)
	}
}

// Last returns a copy of the most recent n exchanges, oldest first.
func (h *History) Last(n int) []Exchange {
	if n <= 0 || len(h.Exchanges) == 0 {
		return nil
	}
	start := max(0, len(h.Exchanges)-n)
	return append([]Exchange(nil), h.Exchanges[start:]...)
}

func (h *History) Len() int {
	return len(h.Exchanges)
}

var emotionAnnotation = regexp.MustCompile(`\(emotion:[^)]+\)`)

// DedupedContext renders the last window exchanges, skipping exchanges that
// repeat the previous one, and keeps only the final keep entries.
func (h *History) DedupedContext(window, keep int, persona string) string {
	var (
		lines            []string
		lastUser, lastAI string
	)
	for _, ex := range h.Last(window) {
		ai := strings.TrimSpace(emotionAnnotation.ReplaceAllString(ex.AI, ""))
		if ex.User == lastUser && ai == lastAI {
			continue
		}
		lines = append(lines, ex.User+"\n"+persona+": "+ai)
		lastUser, lastAI = ex.User, ai
	}
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n\n")
}

// Trail renders the last exchanges as labelled speaker lines, capped at
// maxLines lines.
func (h *History) Trail(maxLines int, persona string) string {
	var lines []string
	for _, ex := range h.Last(maxLines) {
		if ex.User != "" {
			lines = append(lines, "User: "+ex.User)
		}
		if ex.AI != "" {
			lines = append(lines, persona+": "+ex.AI)
		}
	}
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return "--- Conversation Trail (most recent exchanges, latest last) ---\n" +
		strings.Join(lines, "\n") + "\n--- End Trail ---"
}
