package domain

import (
	"fmt"
	"strings"
)

type NeedEvent string

const (
	NeedPositiveInteraction NeedEvent = "positive_interaction"
	NeedTaughtSomething     NeedEvent = "taught_something"
	NeedRested              NeedEvent = "rested"
)

// NeedsVector tracks how much the companion wants company, learning and rest.
// Social and learning drift upward and rest drifts downward until reinforced.
type NeedsVector struct {
	Social   float64 `json:"social"`
	Learning float64 `json:"learning"`
	Rest     float64 `json:"rest"`
}

func NewNeedsVector() NeedsVector {
	return NeedsVector{Social: 0.5, Learning: 0.5, Rest: 0.5}
}

func (n *NeedsVector) Tick() {
	n.Social = Clamp01(n.Social + 0.01)
	n.Learning = Clamp01(n.Learning + 0.005)
	n.Rest = Clamp01(n.Rest - 0.003)
}

func (n *NeedsVector) Reinforce(event NeedEvent) error {
	switch event {
	case NeedPositiveInteraction:
		n.Social = Clamp01(n.Social - 0.1)
	case NeedTaughtSomething:
		n.Learning = Clamp01(n.Learning - 0.1)
	case NeedRested:
		n.Rest = Clamp01(n.Rest + 0.2)
	default:
		return fmt.Errorf("unknown need event: %s", event)
	}
	return nil
}

// SummaryLine describes pressing needs, or returns "" when none are pressing.
func (n NeedsVector) SummaryLine() string {
	var wants []string
	if n.Social > 0.7 {
		wants = append(wants, "wants to connect")
	}
	if n.Learning > 0.7 {
		wants = append(wants, "wants to learn")
	}
	if n.Rest < 0.3 {
		wants = append(wants, "is getting tired")
	}
	if len(wants) == 0 {
		return ""
	}
	return "Right now, the AI " + strings.Join(wants, ", ") + "."
}

// Normalize clamps restored values.
func (n *NeedsVector) Normalize() {
	n.Social = Clamp01(n.Social)
	n.Learning = Clamp01(n.Learning)
	n.Rest = Clamp01(n.Rest)
}
