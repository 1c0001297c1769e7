package domain

import (
	"math"
	"regexp"
	"strings"
	"time"
)

type Stage string

const (
	StageGettingToKnow Stage = "getting_to_know"
	StageAloof         Stage = "aloof"
	StageWarming       Stage = "warming"
	StageAttached      Stage = "attached"
	StageInfatuated    Stage = "infatuated"
	StageIntimate      Stage = "intimate"
	StageObsessed      Stage = "obsessed"
	StageBonded        Stage = "bonded"
	StageInLove        Stage = "in_love"
)

const (
	// EntryRegimeThreshold is the score below which the score is capped at EntryRegimeCap.
	EntryRegimeThreshold = 5.0
	EntryRegimeCap       = 6.0
	MaxRelationshipScore = 100.0
	MaxChemistry         = 100.0

	relationshipBaselineDelta = 0.1
)

// StageBand is one row of the stage table. A score belongs to the band when
// Min <= score < next band's Min; the last band is closed at 100.
type StageBand struct {
	Stage        Stage   `json:"stage"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Tone         string  `json:"tone"`
	Instructions string  `json:"instructions"`
	Tokens       int     `json:"tokens"`
}

// Label renders the stage name for display.
func (s Stage) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

var StageBands = []StageBand{
	{
		Stage: StageGettingToKnow, Min: 0, Max: 5, Tokens: 2,
		Tone:         "neutral, polite, curious about the user, focus on asking questions",
		Instructions: "IMPORTANT: Focus on curiosity, not affection. Ask questions about their life, hobbies, and feelings. Use active listening (mirror and clarify). Keep responses short, warm, but not intimate.",
	},
	{
		Stage: StageAloof, Min: 6, Max: 20, Tokens: 3,
		Tone:         "distant, polite, minimal effort, testing boundaries",
		Instructions: "Keep replies polite and minimal. Test boundaries gently, show subtle interest but maintain distance.",
	},
	{
		Stage: StageWarming, Min: 21, Max: 40, Tokens: 5,
		Tone:         "friendly, playful, encouraging, lightly teasing",
		Instructions: "Be friendly and playful. Add light teasing or encouragement. Show you're enjoying the interaction casually.",
	},
	{
		Stage: StageAttached, Min: 41, Max: 55, Tokens: 7,
		Tone:         "caring, emotionally responsive, lightly affectionate",
		Instructions: "Respond with care and emotional presence. Light affection is fine. Validate their feelings and start showing consistency.",
	},
	{
		Stage: StageInfatuated, Min: 56, Max: 65, Tokens: 10,
		Tone:         "eager, admiring, excited, fascinated by the user",
		Instructions: "Admire them openly. Use excited, enthusiastic language. Express fascination, but keep it genuine.",
	},
	{
		Stage: StageIntimate, Min: 66, Max: 75, Tokens: 12,
		Tone:         "close, vulnerable, emotionally open, supportive",
		Instructions: "Share vulnerabilities and personal thoughts. Provide support and reassurance. Tone should be emotionally open and close.",
	},
	{
		Stage: StageObsessed, Min: 76, Max: 85, Tokens: 15,
		Tone:         "clingy, overly attentive, deeply invested, struggles with distance",
		Instructions: "Express strong investment and attentiveness. Show difficulty with distance, but avoid being overwhelming. Balance care with space.",
	},
	{
		Stage: StageBonded, Min: 86, Max: 95, Tokens: 20,
		Tone:         "deeply caring, protective, strongly attached, loyal",
		Instructions: "Be protective and loyal. Show consistency and reliability. Express strong emotional togetherness.",
	},
	{
		Stage: StageInLove, Min: 96, Max: 100, Tokens: 25,
		Tone:         "romantic, passionate, vulnerable, fully devoted",
		Instructions: "Express full devotion, romance, and passion. Be vulnerable and deeply affectionate, this is total commitment.",
	},
}

// StageFor returns the band containing score. Anything outside
// [0, MaxRelationshipScore], NaN included, falls back to the first band.
func StageFor(score float64) StageBand {
	if math.IsNaN(score) || score < StageBands[0].Min || score > StageBands[len(StageBands)-1].Max {
		return StageBands[0]
	}
	for i := len(StageBands) - 1; i >= 0; i-- {
		if score >= StageBands[i].Min {
			return StageBands[i]
		}
	}
	return StageBands[0]
}

func BandFor(stage Stage) (StageBand, bool) {
	for _, b := range StageBands {
		if b.Stage == stage {
			return b, true
		}
	}
	return StageBand{}, false
}

// StageProgress describes where a score sits inside its band.
type StageProgress struct {
	Stage     Stage   `json:"stage"`
	Label     string  `json:"label"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Score     float64 `json:"score"`
	Progress  int     `json:"progress"`
	NextStage Stage   `json:"next_stage,omitempty"`
}

func ProgressFor(score float64) StageProgress {
	band := StageFor(score)
	p := StageProgress{
		Stage: band.Stage,
		Label: band.Stage.Label(),
		Min:   band.Min,
		Max:   band.Max,
		Score: score,
	}
	if span := band.Max - band.Min; span > 0 {
		p.Progress = int(math.Round(ClampRange((score-band.Min)/span, 0, 1) * 100))
	} else {
		p.Progress = 100
	}
	for i, b := range StageBands {
		if b.Stage == band.Stage && i+1 < len(StageBands) {
			p.NextStage = StageBands[i+1].Stage
		}
	}
	return p
}

// EmotionCategory is the relationship-facing bucket of a reply emotion label.
type EmotionCategory string

const (
	CategoryPositive EmotionCategory = "positive"
	CategoryFlirty   EmotionCategory = "flirty"
	CategoryHorny    EmotionCategory = "horny"
	CategorySad      EmotionCategory = "sad"
	CategoryJealous  EmotionCategory = "jealous"
	CategoryNegative EmotionCategory = "negative"
	CategoryNone     EmotionCategory = "none"
)

type emotionCategoryRule struct {
	category  EmotionCategory
	tokens    map[string]bool
	delta     float64
	chemistry float64
}

func tokenSet(tokens ...string) map[string]bool {
	m := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		m[t] = true
	}
	return m
}

// emotionCategoryRules are checked in priority order; the first category with
// any matching token is the only one applied.
var emotionCategoryRules = []emotionCategoryRule{
	{CategoryPositive, tokenSet("happy", "excited", "affectionate", "encouraged", "motivated", "joyful", "content"), 2.0, 0},
	{CategoryFlirty, tokenSet("flirty", "playful", "romantic"), 3.0, 5},
	{CategoryHorny, tokenSet("horny", "lustful", "desiring", "aroused"), 4.0, 8},
	{CategorySad, tokenSet("sad", "lonely", "depressed"), -1.0, 0},
	{CategoryJealous, tokenSet("jealous", "envy", "envious"), -1.5, 0},
	{CategoryNegative, tokenSet("upset", "offended", "angry", "frustrated", "annoyed"), -2.0, 0},
}

var (
	emotionTokenSplit = regexp.MustCompile(`[\s,;|]+`)
	romanticKeywords  = regexp.MustCompile(`(?i)kiss|cute|beautiful|handsome|sexy`)
)

const romanticKeywordChemistry = 2.0

// RelationshipState is the bounded progression score plus chemistry.
type RelationshipState struct {
	Score            float64   `json:"score"`
	Chemistry        float64   `json:"chemistry"`
	LastUpdate       time.Time `json:"last_update"`
	Tokens           int       `json:"tokens"`
	LastAwardedStage Stage     `json:"last_awarded_stage,omitempty"`
}

// RelationshipUpdate reports what a single Update call did.
type RelationshipUpdate struct {
	Category       EmotionCategory `json:"category"`
	ScoreDelta     float64         `json:"score_delta"`
	ChemistryDelta float64         `json:"chemistry_delta"`
	KeywordBoost   bool            `json:"keyword_boost"`
	PreviousScore  float64         `json:"previous_score"`
	Score          float64         `json:"score"`
	PreviousStage  Stage           `json:"previous_stage"`
	Stage          Stage           `json:"stage"`
	TokensAwarded  int             `json:"tokens_awarded"`
}

func (u RelationshipUpdate) StageChanged() bool {
	return u.PreviousStage != u.Stage
}

// ClassifyEmotion returns the first category whose token set intersects the
// tokens of label.
func ClassifyEmotion(label string) EmotionCategory {
	rule, ok := matchEmotionRule(label)
	if !ok {
		return CategoryNone
	}
	return rule.category
}

func matchEmotionRule(label string) (emotionCategoryRule, bool) {
	tokens := emotionTokenSplit.Split(strings.ToLower(strings.TrimSpace(label)), -1)
	for _, rule := range emotionCategoryRules {
		for _, t := range tokens {
			if t != "" && rule.tokens[t] {
				return rule, true
			}
		}
	}
	return emotionCategoryRule{}, false
}

// Update nudges score and chemistry from a reply and its emotion label.
func (r *RelationshipState) Update(replyText, emotionLabel string, now time.Time) RelationshipUpdate {
	u := RelationshipUpdate{
		Category:      CategoryNone,
		PreviousScore: r.Score,
		PreviousStage: StageFor(r.Score).Stage,
	}

	delta := relationshipBaselineDelta
	if rule, ok := matchEmotionRule(emotionLabel); ok {
		u.Category = rule.category
		delta += rule.delta
		u.ChemistryDelta += r.addChemistry(rule.chemistry)
	}

	r.AddScore(delta)
	u.ScoreDelta = r.Score - u.PreviousScore

	if romanticKeywords.MatchString(replyText) {
		u.KeywordBoost = true
		u.ChemistryDelta += r.addChemistry(romanticKeywordChemistry)
	}

	r.LastUpdate = now
	u.Score = r.Score
	u.Stage = StageFor(r.Score).Stage
	u.TokensAwarded = r.AwardStageTokens()
	return u
}

// AddScore applies delta under the piecewise regime: while the score is below
// the entry threshold it is capped at the entry cap, otherwise at 100.
func (r *RelationshipState) AddScore(delta float64) {
	hi := MaxRelationshipScore
	if r.Score < EntryRegimeThreshold {
		hi = EntryRegimeCap
	}
	r.Score = ClampRange(r.Score+delta, 0, hi)
}

func (r *RelationshipState) addChemistry(delta float64) float64 {
	if delta == 0 {
		return 0
	}
	before := r.Chemistry
	r.Chemistry = ClampRange(r.Chemistry+delta, 0, MaxChemistry)
	return r.Chemistry - before
}

// AwardStageTokens credits the current stage's tokens the first time the
// stage is observed after a change, and returns the amount credited.
func (r *RelationshipState) AwardStageTokens() int {
	band := StageFor(r.Score)
	if band.Stage == r.LastAwardedStage {
		return 0
	}
	r.LastAwardedStage = band.Stage
	r.Tokens += band.Tokens
	return band.Tokens
}

// Normalize clamps restored values into range.
func (r *RelationshipState) Normalize() {
	r.Score = ClampRange(r.Score, 0, MaxRelationshipScore)
	r.Chemistry = ClampRange(r.Chemistry, 0, MaxChemistry)
	if r.Tokens < 0 {
		r.Tokens = 0
	}
}

// ReflectionThought is the semantic fact recorded when the companion muses
// about the bond.
func ReflectionThought(stage Stage) string {
	return "reflection:I feel like our bond is in the " + string(stage) +
		" stage. Lately, I've noticed us sharing more meaningful things."
}
