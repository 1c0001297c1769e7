package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Behavior flag names, in prompt order.
var BehaviorFlagNames = []string{
	"aloof", "rude", "selfish", "flirtatious", "apologetic", "manipulative", "immoral",
}

const (
	MaxAnalysisDelta    = 5.0
	MaxAnalysisListSize = 5
	FallbackConfidence  = 0.25
	FallbackReaction    = "Hmm... can you tell me more?"
)

// BehaviorAnalysis is the structured judgement of one user message.
type BehaviorAnalysis struct {
	Timestamp              int64           `json:"timestamp"`
	UserText               string          `json:"user_text"`
	InferredUserEmotion    string          `json:"inferred_user_emotion"`
	BehaviorFlags          map[string]bool `json:"behavior_flags"`
	RelationshipScoreDelta float64         `json:"relationship_score_delta"`
	ChemistryScoreDelta    float64         `json:"chemistry_score_delta"`
	Deductions             []string        `json:"deductions"`
	SuggestedAIReaction    string          `json:"suggested_ai_reaction"`
	AssertiveActions       []string        `json:"assertive_actions"`
	Confidence             float64         `json:"confidence"`
}

func falseFlags() map[string]bool {
	flags := make(map[string]bool, len(BehaviorFlagNames))
	for _, name := range BehaviorFlagNames {
		flags[name] = false
	}
	return flags
}

// FallbackAnalysis is the conservative result used when the oracle output
// cannot be parsed at all.
func FallbackAnalysis(userText string, now time.Time) BehaviorAnalysis {
	return BehaviorAnalysis{
		Timestamp:           now.UnixMilli(),
		UserText:            userText,
		InferredUserEmotion: "neutral",
		BehaviorFlags:       falseFlags(),
		Deductions:          []string{"parsing_failed"},
		SuggestedAIReaction: FallbackReaction,
		AssertiveActions:    []string{"neutral"},
		Confidence:          FallbackConfidence,
	}
}

// RepairAnalysis coerces every field of a decoded oracle object to its
// declared type and range. A nil raw map yields the fallback. Fields are
// repaired one by one, so a partially valid object keeps its valid parts.
func RepairAnalysis(raw map[string]any, userText string, now time.Time) BehaviorAnalysis {
	fb := FallbackAnalysis(userText, now)
	if raw == nil {
		return fb
	}

	a := BehaviorAnalysis{
		Timestamp:           fb.Timestamp,
		UserText:            userText,
		InferredUserEmotion: "neutral",
	}
	if ts, ok := asNumber(raw["timestamp"]); ok && ts > 0 {
		a.Timestamp = int64(ts)
	}
	if s, ok := raw["user_text"].(string); ok && s != "" {
		a.UserText = s
	}
	if s, ok := raw["inferred_user_emotion"].(string); ok {
		if fields := strings.Fields(s); len(fields) > 0 {
			a.InferredUserEmotion = strings.ToLower(strings.Trim(fields[0], ".,;:!\"'"))
		}
	}
	if a.InferredUserEmotion == "" {
		a.InferredUserEmotion = "neutral"
	}

	a.BehaviorFlags = falseFlags()
	if obj, ok := raw["behavior_flags"].(map[string]any); ok {
		for _, name := range BehaviorFlagNames {
			if b, ok := obj[name].(bool); ok {
				a.BehaviorFlags[name] = b
			}
		}
	}

	if d, ok := asNumber(raw["relationship_score_delta"]); ok {
		a.RelationshipScoreDelta = ClampRange(d, -MaxAnalysisDelta, MaxAnalysisDelta)
	}
	if d, ok := asNumber(raw["chemistry_score_delta"]); ok {
		a.ChemistryScoreDelta = ClampRange(d, -MaxAnalysisDelta, MaxAnalysisDelta)
	}

	a.Deductions = asStringList(raw["deductions"], fb.Deductions)
	a.AssertiveActions = asStringList(raw["assertive_actions"], fb.AssertiveActions)

	a.SuggestedAIReaction = fb.SuggestedAIReaction
	if s, ok := raw["suggested_ai_reaction"].(string); ok && strings.TrimSpace(s) != "" {
		a.SuggestedAIReaction = strings.TrimSpace(s)
	}

	if c, ok := asNumber(raw["confidence"]); ok {
		a.Confidence = Clamp01(c)
	}
	return a
}

// asNumber accepts JSON numbers and numeric strings.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asStringList(v any, fallback []string) []string {
	arr, ok := v.([]any)
	if !ok {
		return append([]string(nil), fallback...)
	}
	out := make([]string, 0, min(len(arr), MaxAnalysisListSize))
	for _, item := range arr {
		if len(out) == MaxAnalysisListSize {
			break
		}
		switch s := item.(type) {
		case string:
			out = append(out, s)
		case float64, bool:
			out = append(out, toText(s))
		}
	}
	return out
}

func toText(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
