package domain

import (
	"fmt"
	"strings"
)

const (
	MoodUpset             = "upset, moody"
	MoodNeutral           = "neutral"
	MoodSlightlyIrritable = "slightly irritable"

	DefaultMoodNoise = 0.05
)

// Mood is the classifier output: a semicolon-joined label string plus an
// explanation that embeds every channel level.
type Mood struct {
	Dominant    string `json:"dominant"`
	Explanation string `json:"explanation"`
}

// Primary returns the first label of the dominant string.
func (m Mood) Primary() string {
	primary, _, _ := strings.Cut(m.Dominant, ";")
	return strings.TrimSpace(primary)
}

// MoodClassifier maps an affect vector to a mood. The only nondeterminism is
// the noise descriptor, drawn from rnd with probability noise.
type MoodClassifier struct {
	rnd   RandSource
	noise float64
}

// NewMoodClassifier returns a classifier. A nil rnd or zero noise disables
// the random descriptor.
func NewMoodClassifier(rnd RandSource, noise float64) *MoodClassifier {
	return &MoodClassifier{rnd: rnd, noise: Clamp01(noise)}
}

type moodRule struct {
	label string
	when  func(v AffectVector) bool
}

var primaryMoodRules = []moodRule{
	{"happy, content", func(v AffectVector) bool {
		return v.Get(ChannelDopamine) > 0.7 && v.Get(ChannelSerotonin) > 0.7
	}},
	{"energized, excitable", func(v AffectVector) bool {
		return v.Get(ChannelDopamine) > 0.7 && v.Get(ChannelNorepinephrine) > 0.7
	}},
	{"anxious, restless", func(v AffectVector) bool {
		return v.Get(ChannelDopamine) < 0.3 && v.Get(ChannelNorepinephrine) > 0.7
	}},
}

// secondaryMoodRules are grouped: within a group the first match wins, groups
// are evaluated independently in order.
var secondaryMoodRules = [][]moodRule{
	{
		{"stressed, tense", func(v AffectVector) bool { return v.Get(ChannelCortisol) > 0.7 }},
		{"relaxed", func(v AffectVector) bool { return v.Get(ChannelCortisol) < 0.3 }},
	},
	{
		{"playful, flirty", func(v AffectVector) bool {
			return v.Get(ChannelValence) > 0.7 && v.Get(ChannelArousal) > 0.7
		}},
		{"withdrawn, numb", func(v AffectVector) bool {
			return v.Get(ChannelValence) < 0.3 && v.Get(ChannelArousal) < 0.3
		}},
	},
	{
		{"trusting, affectionate", func(v AffectVector) bool { return v.Get(ChannelTrust) > 0.7 }},
	},
	{
		{"lonely, seeking closeness", func(v AffectVector) bool { return v.Get(ChannelLoneliness) > 0.7 }},
	},
	{
		{"confident, bold", func(v AffectVector) bool { return v.Get(ChannelConfidence) > 0.7 }},
		{"insecure, hesitant", func(v AffectVector) bool { return v.Get(ChannelConfidence) < 0.3 }},
	},
	{
		{"inquisitive, eager to explore", func(v AffectVector) bool { return v.Get(ChannelCuriosity) > 0.7 }},
	},
	{
		{"irritable, frustrated", func(v AffectVector) bool {
			return v.Get(ChannelCortisol) > 0.7 && v.Get(ChannelDopamine) < 0.5
		}},
	},
}

func (m *MoodClassifier) Classify(v AffectVector) Mood {
	labels := []string{m.primary(v)}
	if labels[0] != MoodUpset {
		for _, group := range secondaryMoodRules {
			for _, rule := range group {
				if rule.when(v) {
					labels = append(labels, rule.label)
					break
				}
			}
		}
	}

	if m.rnd != nil && m.noise > 0 && m.rnd.Float64() < m.noise {
		labels = append(labels, MoodSlightlyIrritable)
	}

	return Mood{
		Dominant:    strings.Join(labels, "; "),
		Explanation: explainMood(v),
	}
}

func (m *MoodClassifier) primary(v AffectVector) string {
	if v.Get(ChannelDopamine) < 0.2 && v.Get(ChannelSerotonin) < 0.2 {
		return MoodUpset
	}
	for _, rule := range primaryMoodRules {
		if rule.when(v) {
			return rule.label
		}
	}
	return MoodNeutral
}

func explainMood(v AffectVector) string {
	return fmt.Sprintf("This mood is derived from analyzing virtual neurochemicals: "+
		"dopamine=%.2f, serotonin=%.2f, norepinephrine=%.2f, cortisol=%.2f, valence=%.2f, "+
		"arousal=%.2f, trust=%.2f, curiosity=%.2f, loneliness=%.2f, confidence=%.2f",
		v.Get(ChannelDopamine), v.Get(ChannelSerotonin), v.Get(ChannelNorepinephrine),
		v.Get(ChannelCortisol), v.Get(ChannelValence), v.Get(ChannelArousal),
		v.Get(ChannelTrust), v.Get(ChannelCuriosity), v.Get(ChannelLoneliness),
		v.Get(ChannelConfidence))
}
