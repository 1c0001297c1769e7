package domain

import (
	"strings"
	"testing"
)

func moodVector(levels map[Channel]float64) AffectVector {
	v := NewAffectVector()
	for c, l := range levels {
		v[c] = l
	}
	return v
}

func TestMoodClassifier_Classify(t *testing.T) {
	tests := []struct {
		name   string
		levels map[Channel]float64
		want   string
	}{
		{"baseline is neutral", nil, "neutral"},
		{"happy", map[Channel]float64{ChannelDopamine: 0.8, ChannelSerotonin: 0.8}, "happy, content"},
		{"energized", map[Channel]float64{ChannelDopamine: 0.8, ChannelNorepinephrine: 0.8}, "energized, excitable"},
		{"anxious", map[Channel]float64{ChannelDopamine: 0.25, ChannelNorepinephrine: 0.8}, "anxious, restless"},
		{"upset overrides secondaries", map[Channel]float64{
			ChannelDopamine: 0.1, ChannelSerotonin: 0.1, ChannelCortisol: 0.9, ChannelTrust: 0.9,
		}, "upset, moody"},
		{"stressed and irritable", map[Channel]float64{ChannelCortisol: 0.8, ChannelDopamine: 0.4},
			"neutral; stressed, tense; irritable, frustrated"},
		{"relaxed trusting", map[Channel]float64{ChannelCortisol: 0.2, ChannelTrust: 0.8},
			"neutral; relaxed; trusting, affectionate"},
		{"playful", map[Channel]float64{ChannelValence: 0.8, ChannelArousal: 0.8}, "neutral; playful, flirty"},
		{"withdrawn", map[Channel]float64{ChannelValence: 0.2, ChannelArousal: 0.2}, "neutral; withdrawn, numb"},
		{"every secondary group in order", map[Channel]float64{
			ChannelCortisol: 0.9, ChannelDopamine: 0.45, ChannelValence: 0.9, ChannelArousal: 0.9,
			ChannelTrust: 0.9, ChannelLoneliness: 0.9, ChannelConfidence: 0.1, ChannelCuriosity: 0.9,
		}, "neutral; stressed, tense; playful, flirty; trusting, affectionate; lonely, seeking closeness; " +
			"insecure, hesitant; inquisitive, eager to explore; irritable, frustrated"},
	}

	c := NewMoodClassifier(nil, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(moodVector(tt.levels))
			if got.Dominant != tt.want {
				t.Errorf("Dominant = %q, want %q", got.Dominant, tt.want)
			}
		})
	}
}

func TestMoodClassifier_Noise(t *testing.T) {
	t.Run("noise fires below threshold", func(t *testing.T) {
		c := NewMoodClassifier(&seqRand{floats: []float64{0.01}}, DefaultMoodNoise)
		got := c.Classify(NewAffectVector())
		if got.Dominant != "neutral; "+MoodSlightlyIrritable {
			t.Errorf("Dominant = %q", got.Dominant)
		}
	})

	t.Run("noise skipped above threshold", func(t *testing.T) {
		c := NewMoodClassifier(&seqRand{floats: []float64{0.5}}, DefaultMoodNoise)
		if got := c.Classify(NewAffectVector()); got.Dominant != "neutral" {
			t.Errorf("Dominant = %q", got.Dominant)
		}
	})

	t.Run("noise applies even when upset", func(t *testing.T) {
		c := NewMoodClassifier(&seqRand{floats: []float64{0}}, DefaultMoodNoise)
		got := c.Classify(moodVector(map[Channel]float64{ChannelDopamine: 0, ChannelSerotonin: 0}))
		if got.Dominant != MoodUpset+"; "+MoodSlightlyIrritable {
			t.Errorf("Dominant = %q", got.Dominant)
		}
		if got.Primary() != MoodUpset {
			t.Errorf("Primary() = %q", got.Primary())
		}
	})
}

func TestMoodExplanationListsChannels(t *testing.T) {
	got := NewMoodClassifier(nil, 0).Classify(moodVector(map[Channel]float64{ChannelCuriosity: 0.123}))
	for _, want := range []string{"dopamine=0.50", "curiosity=0.12", "confidence=0.50"} {
		if !strings.Contains(got.Explanation, want) {
			t.Errorf("explanation %q missing %q", got.Explanation, want)
		}
	}
}
