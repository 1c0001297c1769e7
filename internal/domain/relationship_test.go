package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Stage
	}{
		{0, StageGettingToKnow},
		{5.5, StageGettingToKnow},
		{6, StageAloof},
		{20.5, StageAloof},
		{21, StageWarming},
		{40.99, StageWarming},
		{41, StageAttached},
		{56, StageInfatuated},
		{66, StageIntimate},
		{76, StageObsessed},
		{86, StageBonded},
		{95.5, StageBonded},
		{96, StageInLove},
		{100, StageInLove},
		{100.5, StageGettingToKnow},
		{150, StageGettingToKnow},
		{-3, StageGettingToKnow},
		{math.NaN(), StageGettingToKnow},
	}
	for _, tt := range tests {
		if got := StageFor(tt.score).Stage; got != tt.want {
			t.Errorf("StageFor(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestStageBandsPartitionRange(t *testing.T) {
	require.Len(t, StageBands, 9)
	assert.Equal(t, 0.0, StageBands[0].Min)
	assert.Equal(t, MaxRelationshipScore, StageBands[len(StageBands)-1].Max)

	for i := 1; i < len(StageBands); i++ {
		prev, cur := StageBands[i-1], StageBands[i]
		assert.Greater(t, cur.Min, prev.Min, "bands must be ordered")
		assert.Equal(t, prev.Max+1, cur.Min, "band %s must start right after %s", cur.Stage, prev.Stage)
	}

	// every hundredth of a point resolves to exactly the band whose range holds it
	for s := 0.0; s <= 100; s += 0.01 {
		band := StageFor(s)
		assert.GreaterOrEqual(t, s, band.Min)
	}
}

func TestStageProgress(t *testing.T) {
	p := ProgressFor(30.5)
	assert.Equal(t, StageWarming, p.Stage)
	assert.Equal(t, "warming", p.Label)
	assert.Equal(t, 50, p.Progress)
	assert.Equal(t, StageAttached, p.NextStage)

	last := ProgressFor(100)
	assert.Equal(t, StageInLove, last.Stage)
	assert.Equal(t, 100, last.Progress)
	assert.Empty(t, last.NextStage)
}

func TestClassifyEmotion(t *testing.T) {
	tests := []struct {
		label string
		want  EmotionCategory
	}{
		{"happy", CategoryPositive},
		{"Playful", CategoryFlirty},
		{"horny", CategoryHorny},
		{"horny, playful", CategoryFlirty},
		{"sad|happy", CategoryPositive},
		{"lonely", CategorySad},
		{"envious", CategoryJealous},
		{"offended", CategoryNegative},
		{"neutral", CategoryNone},
		{"", CategoryNone},
		{"gift:Rose", CategoryNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyEmotion(tt.label), "label %q", tt.label)
	}
}

func TestRelationshipUpdate(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("negative in entry regime", func(t *testing.T) {
		r := RelationshipState{Score: 3}
		u := r.Update("whatever", "angry", now)
		assert.InDelta(t, 1.1, r.Score, 1e-9)
		assert.Equal(t, CategoryNegative, u.Category)
		assert.Equal(t, now, r.LastUpdate)
	})

	t.Run("entry regime caps at six", func(t *testing.T) {
		r := RelationshipState{Score: 4.9}
		r.Update("", "happy", now)
		assert.Equal(t, EntryRegimeCap, r.Score)
	})

	t.Run("open regime from five", func(t *testing.T) {
		r := RelationshipState{Score: 5}
		r.Update("", "happy", now)
		assert.InDelta(t, 7.1, r.Score, 1e-9)
	})

	t.Run("baseline applies without match", func(t *testing.T) {
		r := RelationshipState{Score: 10}
		u := r.Update("ok", "neutral", now)
		assert.InDelta(t, 10.1, r.Score, 1e-9)
		assert.Equal(t, CategoryNone, u.Category)
	})

	t.Run("score never below zero", func(t *testing.T) {
		r := RelationshipState{Score: 0.5}
		r.Update("", "upset", now)
		assert.Equal(t, 0.0, r.Score)
	})

	t.Run("flirty boosts chemistry and keywords stack", func(t *testing.T) {
		r := RelationshipState{Score: 30}
		u := r.Update("you're so cute", "flirty", now)
		assert.InDelta(t, 33.1, r.Score, 1e-9)
		assert.Equal(t, 7.0, r.Chemistry)
		assert.True(t, u.KeywordBoost)
		assert.Equal(t, 7.0, u.ChemistryDelta)
	})

	t.Run("horny boosts chemistry", func(t *testing.T) {
		r := RelationshipState{Score: 30, Chemistry: 95}
		r.Update("", "lustful", now)
		assert.Equal(t, MaxChemistry, r.Chemistry)
	})

	t.Run("keyword boost independent of emotion", func(t *testing.T) {
		r := RelationshipState{Score: 30}
		r.Update("Send me a KISS", "sad", now)
		assert.Equal(t, 2.0, r.Chemistry)
		assert.InDelta(t, 29.1, r.Score, 1e-9)
	})
}

func TestAwardStageTokens(t *testing.T) {
	now := time.Now()
	r := RelationshipState{}

	u := r.Update("", "neutral", now)
	assert.Equal(t, 2, u.TokensAwarded, "first observed stage is credited")
	assert.Equal(t, 2, r.Tokens)

	u = r.Update("", "neutral", now)
	assert.Zero(t, u.TokensAwarded, "same stage is not credited twice")

	r.Score = 5.5
	u = r.Update("", "happy", now)
	assert.Equal(t, StageAloof, u.Stage)
	assert.True(t, u.StageChanged())
	assert.Equal(t, 3, u.TokensAwarded)
	assert.Equal(t, 5, r.Tokens)
}

func TestRelationshipNormalize(t *testing.T) {
	r := RelationshipState{Score: 140, Chemistry: -4, Tokens: -1}
	r.Normalize()
	assert.Equal(t, 100.0, r.Score)
	assert.Equal(t, 0.0, r.Chemistry)
	assert.Equal(t, 0, r.Tokens)
}
