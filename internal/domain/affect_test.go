package domain

import (
	"math"
	"testing"
)

// seqRand replays fixed values. When a sequence runs out it repeats its last value.
type seqRand struct {
	floats []float64
	ints   []int
}

func (r *seqRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0
	}
	v := r.floats[0]
	if len(r.floats) > 1 {
		r.floats = r.floats[1:]
	}
	return v
}

func (r *seqRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	if len(r.ints) > 1 {
		r.ints = r.ints[1:]
	}
	return v % n
}

func assertInRange(t *testing.T, v AffectVector) {
	t.Helper()
	for _, c := range Channels {
		if l := v.Get(c); l < 0 || l > 1 {
			t.Errorf("channel %s = %v, outside [0,1]", c, l)
		}
	}
}

func TestNewAffectVector(t *testing.T) {
	v := NewAffectVector()
	if len(v) != len(Channels) {
		t.Fatalf("expected %d channels, got %d", len(Channels), len(v))
	}
	for _, c := range Channels {
		if v.Get(c) != AffectBaseline {
			t.Errorf("channel %s = %v, want %v", c, v.Get(c), AffectBaseline)
		}
	}
}

func TestAdjustFromText_PositiveScenario(t *testing.T) {
	v := NewAffectVector()
	fired := v.AdjustFromText("thank you so much, you're amazing!")

	want := map[string]bool{BucketPositive: true, BucketExcitement: true}
	if len(fired) != len(want) {
		t.Fatalf("fired buckets = %v, want %v", fired, want)
	}
	for _, b := range fired {
		if !want[b] {
			t.Errorf("unexpected bucket %q fired", b)
		}
	}

	if v.Get(ChannelDopamine) <= AffectBaseline {
		t.Error("dopamine should increase")
	}
	if v.Get(ChannelSerotonin) <= AffectBaseline {
		t.Error("serotonin should increase")
	}
	if v.Get(ChannelValence) <= AffectBaseline {
		t.Error("valence should increase")
	}
	if v.Get(ChannelTrust) <= AffectBaseline {
		t.Error("trust should increase")
	}
	if v.Get(ChannelLoneliness) >= AffectBaseline {
		t.Error("loneliness should decrease")
	}

	mood := NewMoodClassifier(nil, 0).Classify(v)
	if mood.Dominant == MoodUpset {
		t.Errorf("mood = %q, should not be upset", mood.Dominant)
	}
}

func TestAdjustFromText_BucketsStack(t *testing.T) {
	v := NewAffectVector()
	fired := v.AdjustFromText("I'm so lonely and worried, why does nobody care")

	got := map[string]bool{}
	for _, b := range fired {
		got[b] = true
	}
	for _, b := range []string{BucketUrgency, BucketCuriosity, BucketLoneliness} {
		if !got[b] {
			t.Errorf("bucket %q should fire, fired = %v", b, fired)
		}
	}
	if math.Abs(v.Get(ChannelLoneliness)-0.58) > 1e-9 {
		t.Errorf("loneliness = %v, want 0.58", v.Get(ChannelLoneliness))
	}
}

func TestAdjustFromText_NoMatch(t *testing.T) {
	v := NewAffectVector()
	if fired := v.AdjustFromText("the weather is mild"); len(fired) != 0 {
		t.Errorf("expected no buckets, got %v", fired)
	}
	for _, c := range Channels {
		if v.Get(c) != AffectBaseline {
			t.Errorf("channel %s changed to %v", c, v.Get(c))
		}
	}
}

func TestAffectStaysInRange(t *testing.T) {
	v := NewAffectVector()
	for range 200 {
		v.AdjustFromText("hate stupid urgent problem, so lonely, no one cares!! ")
	}
	assertInRange(t, v)
	if v.Get(ChannelCortisol) != 1 {
		t.Errorf("cortisol should saturate at 1, got %v", v.Get(ChannelCortisol))
	}

	for range 200 {
		v.Apply(map[Channel]float64{ChannelTrust: -0.3, ChannelDopamine: 0.7}, 1)
	}
	assertInRange(t, v)

	v.Add(ChannelSerotonin, math.NaN())
	assertInRange(t, v)
}

func TestDecayConvergesToBaseline(t *testing.T) {
	v := NewAffectVector()
	v[ChannelCortisol] = 1
	v[ChannelDopamine] = 0
	v[ChannelTrust] = 0.9

	for range 5000 {
		v.Decay(0.01)
	}
	for _, c := range Channels {
		if math.Abs(v.Get(c)-AffectBaseline) > 1e-9 {
			t.Errorf("channel %s = %v after decay, want ~0.5", c, v.Get(c))
		}
	}
}

func TestDecaySingleStep(t *testing.T) {
	v := NewAffectVector()
	v[ChannelCortisol] = 0.9
	v.Decay(0.5)
	if math.Abs(v.Get(ChannelCortisol)-0.7) > 1e-9 {
		t.Errorf("cortisol = %v, want 0.7", v.Get(ChannelCortisol))
	}
}

func TestTemperature(t *testing.T) {
	tests := []struct {
		name   string
		levels map[Channel]float64
		want   float64
	}{
		{"baseline", nil, 1.0},
		{"max stress clamps high", map[Channel]float64{
			ChannelCortisol: 1, ChannelNorepinephrine: 1, ChannelSerotonin: 0, ChannelValence: 0,
		}, 2.2},
		{"calm clamps low", map[Channel]float64{
			ChannelCortisol: 0, ChannelNorepinephrine: 0, ChannelSerotonin: 1, ChannelValence: 1,
		}, 0.35},
		{"cortisol only", map[Channel]float64{ChannelCortisol: 0.7}, 1.18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewAffectVector()
			for c, l := range tt.levels {
				v[c] = l
			}
			if got := v.Temperature(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Temperature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestoreAffectVector(t *testing.T) {
	v := RestoreAffectVector(map[string]float64{
		"dopamine": 0.9,
		"cortisol": 4,
		"mystery":  0.1,
	})
	if v.Get(ChannelDopamine) != 0.9 {
		t.Errorf("dopamine = %v, want 0.9", v.Get(ChannelDopamine))
	}
	if v.Get(ChannelCortisol) != 1 {
		t.Errorf("cortisol = %v, want clamped 1", v.Get(ChannelCortisol))
	}
	if v.Get(ChannelOxytocin) != AffectBaseline {
		t.Errorf("missing oxytocin = %v, want baseline", v.Get(ChannelOxytocin))
	}
	if _, ok := v["mystery"]; ok {
		t.Error("unknown channel should be dropped")
	}
}

func TestAddUnknownChannel(t *testing.T) {
	v := NewAffectVector()
	if v.Add("hearts", 5) {
		t.Error("Add should reject unknown channel")
	}
	if _, ok := v["hearts"]; ok {
		t.Error("unknown channel should not be stored")
	}
}

func TestStylePrefix(t *testing.T) {
	tests := []struct {
		name   string
		levels map[Channel]float64
		want   string
	}{
		{"neutral", nil, ""},
		{"cheerful", map[Channel]float64{ChannelValence: 0.8, ChannelArousal: 0.4}, "cheerfully"},
		{"anxious", map[Channel]float64{ChannelCortisol: 0.7}, "anxiously"},
		{"soft", map[Channel]float64{ChannelLoneliness: 0.7}, "softly"},
		{"short", map[Channel]float64{ChannelTrust: 0.2}, "shortly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewAffectVector()
			for c, l := range tt.levels {
				v[c] = l
			}
			if got := v.StylePrefix(); got != tt.want {
				t.Errorf("StylePrefix() = %q, want %q", got, tt.want)
			}
		})
	}
}
