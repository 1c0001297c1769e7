package domain

import (
	"math"
	"strings"
)

// Channel names one scalar of the synthetic neurochemical vector.
type Channel string

const (
	ChannelDopamine       Channel = "dopamine"
	ChannelSerotonin      Channel = "serotonin"
	ChannelNorepinephrine Channel = "norepinephrine"
	ChannelCortisol       Channel = "cortisol"
	ChannelOxytocin       Channel = "oxytocin"
	ChannelValence        Channel = "valence"
	ChannelArousal        Channel = "arousal"
	ChannelTrust          Channel = "trust"
	ChannelCuriosity      Channel = "curiosity"
	ChannelLoneliness     Channel = "loneliness"
	ChannelConfidence     Channel = "confidence"
)

// AffectBaseline is the resting level every channel starts at and decays toward.
const AffectBaseline = 0.5

// Channels lists every tracked channel in a stable order.
var Channels = []Channel{
	ChannelDopamine,
	ChannelSerotonin,
	ChannelNorepinephrine,
	ChannelCortisol,
	ChannelOxytocin,
	ChannelValence,
	ChannelArousal,
	ChannelTrust,
	ChannelCuriosity,
	ChannelLoneliness,
	ChannelConfidence,
}

func ValidChannel(c Channel) bool {
	for _, known := range Channels {
		if known == c {
			return true
		}
	}
	return false
}

// AffectVector maps each channel to a level in [0,1].
// All mutation goes through additive deltas followed by clamping.
type AffectVector map[Channel]float64

func NewAffectVector() AffectVector {
	v := make(AffectVector, len(Channels))
	for _, c := range Channels {
		v[c] = AffectBaseline
	}
	return v
}

// RestoreAffectVector rebuilds a vector from a persisted snapshot. Missing
// channels start at the baseline, unknown names are dropped.
func RestoreAffectVector(snapshot map[string]float64) AffectVector {
	v := NewAffectVector()
	for name, level := range snapshot {
		c := Channel(name)
		if !ValidChannel(c) {
			continue
		}
		v[c] = Clamp01(level)
	}
	return v
}

func (v AffectVector) Get(c Channel) float64 {
	level, ok := v[c]
	if !ok {
		return AffectBaseline
	}
	return level
}

// Add applies delta to a known channel and clamps. Unknown channels are
// ignored and reported with false.
func (v AffectVector) Add(c Channel, delta float64) bool {
	if !ValidChannel(c) {
		return false
	}
	v[c] = Clamp01(v.Get(c) + delta)
	return true
}

// Apply adds every delta scaled by factor. Names that are not affect
// channels (for example a "hearts" reward) are skipped.
func (v AffectVector) Apply(deltas map[Channel]float64, factor float64) {
	for c, d := range deltas {
		v.Add(c, d*factor)
	}
}

// Decay pulls every channel toward the baseline by rate of its distance.
func (v AffectVector) Decay(rate float64) {
	rate = Clamp01(rate)
	for _, c := range Channels {
		cur := v.Get(c)
		v[c] = Clamp01(cur + (AffectBaseline-cur)*rate)
	}
}

// Temperature maps the current state to a sampling temperature in [0.35, 2.2].
func (v AffectVector) Temperature() float64 {
	t := 1.0 +
		0.9*(v.Get(ChannelCortisol)-0.5) +
		0.7*(v.Get(ChannelNorepinephrine)-0.5) -
		0.6*(v.Get(ChannelSerotonin)-0.5) -
		0.3*(v.Get(ChannelValence)-0.5)
	return ClampRange(t, 0.35, 2.2)
}

// StylePrefix returns a short adverb hinting at how the companion speaks.
func (v AffectVector) StylePrefix() string {
	switch {
	case v.Get(ChannelValence) > 0.65 && v.Get(ChannelArousal) < 0.6:
		return "cheerfully"
	case v.Get(ChannelCortisol) > 0.65:
		return "anxiously"
	case v.Get(ChannelLoneliness) > 0.6:
		return "softly"
	case v.Get(ChannelCuriosity) > 0.6:
		return "curiously"
	case v.Get(ChannelTrust) < 0.35:
		return "shortly"
	case v.Get(ChannelConfidence) > 0.7:
		return "confidently"
	default:
		return ""
	}
}

func (v AffectVector) Clone() AffectVector {
	out := make(AffectVector, len(v))
	for c, level := range v {
		out[c] = level
	}
	return out
}

// Snapshot returns a plain map suitable for persistence.
func (v AffectVector) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(Channels))
	for _, c := range Channels {
		out[string(c)] = v.Get(c)
	}
	return out
}

// KeywordBucket is one row of the text adjustment table: if any keyword is a
// substring of the lower-cased text, every delta is applied once.
type KeywordBucket struct {
	Name     string
	Keywords []string
	Deltas   map[Channel]float64
}

const (
	BucketPositive   = "positive"
	BucketNegative   = "negative"
	BucketExcitement = "excitement"
	BucketUrgency    = "urgency"
	BucketCuriosity  = "curiosity"
	BucketLoneliness = "loneliness"
)

// KeywordBuckets are evaluated independently, so one message can fire several.
var KeywordBuckets = []KeywordBucket{
	{
		Name:     BucketPositive,
		Keywords: []string{"thanks", "thank you", "love", "nice", "good", "cool", "amazing", "great", "yay", "happy", "awesome"},
		Deltas: map[Channel]float64{
			ChannelDopamine:   0.06,
			ChannelSerotonin:  0.04,
			ChannelValence:    0.05,
			ChannelLoneliness: -0.05,
			ChannelTrust:      0.03,
		},
	},
	{
		Name:     BucketNegative,
		Keywords: []string{"hate", "stupid", "dumb", "shut up", "idiot", "sucks", "no ", "wrong", "angry", "terrible", "sad", "upset"},
		Deltas: map[Channel]float64{
			ChannelCortisol: 0.07,
			ChannelValence:  -0.06,
			ChannelTrust:    -0.03,
		},
	},
	{
		Name:     BucketExcitement,
		Keywords: []string{"wow", "amazing", "excited", "hyped", "so excited", "yay"},
		Deltas: map[Channel]float64{
			ChannelNorepinephrine: 0.06,
			ChannelArousal:        0.06,
			ChannelDopamine:       0.04,
		},
	},
	{
		Name:     BucketUrgency,
		Keywords: []string{"urgent", "hurry", "now!", "! ", " angry", "stressed", "anxious", "worried", "problem"},
		Deltas: map[Channel]float64{
			ChannelCortisol:       0.08,
			ChannelNorepinephrine: 0.05,
			ChannelArousal:        0.03,
		},
	},
	{
		Name:     BucketCuriosity,
		Keywords: []string{"why", "how", "tell me", "teach me", "what do you think", "do you know"},
		Deltas: map[Channel]float64{
			ChannelCuriosity:  0.07,
			ChannelConfidence: -0.02,
		},
	},
	{
		Name:     BucketLoneliness,
		Keywords: []string{"alone", "lonely", "i miss", "nobody", "no one", "i'm lonely"},
		Deltas: map[Channel]float64{
			ChannelLoneliness: 0.08,
			ChannelTrust:      -0.03,
		},
	},
}

// AdjustFromText applies every bucket whose keywords appear in text and
// returns the names of the buckets that fired, in table order.
func (v AffectVector) AdjustFromText(text string) []string {
	lower := strings.ToLower(text)
	var fired []string
	for _, b := range KeywordBuckets {
		if !containsAny(lower, b.Keywords) {
			continue
		}
		for c, d := range b.Deltas {
			v.Add(c, d)
		}
		fired = append(fired, b.Name)
	}
	return fired
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

func Clamp01(x float64) float64 {
	return ClampRange(x, 0, 1)
}

// ClampRange bounds x to [lo, hi]. NaN collapses to lo.
func ClampRange(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return lo
	}
	return math.Max(lo, math.Min(hi, x))
}
