package domain

import (
	"math"
	"strings"
)

// ReplyEmotions is the closed set of labels the oracle is asked to choose from.
var ReplyEmotions = []string{
	"neutral", "happy", "sad", "excited", "lonely", "angry", "jealous", "upset",
	"affectionate", "offended", "flirty", "romantic", "horny", "lustful", "playful",
}

// ReplyDeltaChannels are the channels a structured reply may nudge.
var ReplyDeltaChannels = []Channel{
	ChannelDopamine, ChannelSerotonin, ChannelCortisol, ChannelOxytocin, ChannelNorepinephrine,
}

const (
	MaxReplyDelta = 3
	// ReplyDeltaScale converts integer reply deltas into affect units.
	ReplyDeltaScale = 0.1
)

// StructuredReply is the oracle's in-character answer.
type StructuredReply struct {
	Reply       string              `json:"reply"`
	AIEmotion   string              `json:"ai_emotion"`
	AITone      string              `json:"ai_tone"`
	StageAction string              `json:"stage_action"`
	NeuroDeltas map[Channel]float64 `json:"neuro_deltas"`
}

func zeroDeltas() map[Channel]float64 {
	d := make(map[Channel]float64, len(ReplyDeltaChannels))
	for _, c := range ReplyDeltaChannels {
		d[c] = 0
	}
	return d
}

func fallbackReply(reply, action string, deltas map[Channel]float64) StructuredReply {
	d := zeroDeltas()
	for c, v := range deltas {
		d[c] = v
	}
	return StructuredReply{
		Reply:       reply,
		AIEmotion:   "neutral",
		AITone:      "warm",
		StageAction: action,
		NeuroDeltas: d,
	}
}

func ChatFallback() StructuredReply {
	return fallbackReply("Got it. Tell me more?", "gentle follow-up", nil)
}

func GiftFallback(giftName string) StructuredReply {
	return fallbackReply("Aww, thanks for the "+giftName+"!", "appreciate gift", map[Channel]float64{
		ChannelDopamine: 1, ChannelSerotonin: 1, ChannelOxytocin: 1,
	})
}

func RoutineFallback(activity string) StructuredReply {
	return fallbackReply("I'm about to "+strings.ToLower(activity)+".", "casual check-in", nil)
}

func LikeFallback() StructuredReply {
	return fallbackReply("Thanks for the like! 💕", "appreciate like", nil)
}

func CommentFallback() StructuredReply {
	return fallbackReply("Nice comment! 💖", "reply to comment", nil)
}

func WelcomeFallback() StructuredReply {
	return fallbackReply("Welcome back! 💖 I missed you while you were away.", "greet", nil)
}

// RepairReply builds a reply from a decoded oracle object. A missing or blank
// reply text means the object is unusable and fallback is returned whole;
// otherwise missing fields take the fallback's values and deltas are rounded
// and clamped to [-3,3].
func RepairReply(raw map[string]any, fallback StructuredReply) StructuredReply {
	if raw == nil {
		return fallback
	}
	text, _ := raw["reply"].(string)
	text = strings.TrimSpace(text)
	if text == "" {
		return fallback
	}

	r := StructuredReply{
		Reply:       text,
		AIEmotion:   fallback.AIEmotion,
		AITone:      fallback.AITone,
		StageAction: fallback.StageAction,
		NeuroDeltas: zeroDeltas(),
	}
	if s, ok := raw["ai_emotion"].(string); ok && strings.TrimSpace(s) != "" {
		r.AIEmotion = strings.ToLower(strings.TrimSpace(s))
	}
	if s, ok := raw["ai_tone"].(string); ok && strings.TrimSpace(s) != "" {
		r.AITone = strings.TrimSpace(s)
	}
	if s, ok := raw["stage_action"].(string); ok && strings.TrimSpace(s) != "" {
		r.StageAction = strings.TrimSpace(s)
	}
	if obj, ok := raw["neuro_deltas"].(map[string]any); ok {
		for _, c := range ReplyDeltaChannels {
			if v, ok := asNumber(obj[string(c)]); ok {
				r.NeuroDeltas[c] = ClampRange(math.Round(v), -MaxReplyDelta, MaxReplyDelta)
			}
		}
	}
	return r
}

// Meters projects reply deltas onto a neutral baseline for display.
func (r StructuredReply) Meters() map[Channel]float64 {
	m := make(map[Channel]float64, len(ReplyDeltaChannels))
	for _, c := range ReplyDeltaChannels {
		m[c] = Clamp01(AffectBaseline + r.NeuroDeltas[c]*ReplyDeltaScale)
	}
	return m
}

// Intensity grows from 0.5 with the total size of the reply's deltas, so a
// flat reply leaves the heart's emotion levels where they are.
func (r StructuredReply) Intensity() float64 {
	var sum float64
	for _, c := range ReplyDeltaChannels {
		sum += math.Abs(r.NeuroDeltas[c])
	}
	return Clamp01(0.5 + sum/10)
}
