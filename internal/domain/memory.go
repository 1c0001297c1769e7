package domain

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	MaxEpisodicContent = 2000
	MaxSemanticFact    = 1500
	MaxDreamExcerpt    = 200
	MaxTraumaEvent     = 600
	MaxPromptLog       = 200

	DefaultRecallTopK         = 10
	DefaultSemanticConfidence = 0.6
	DefaultSemanticSource     = "conversation"
	UnknownSpeaker            = "unknown"

	// StaleFactAge and StaleFactConfidence define which semantic facts churn prunes.
	StaleFactAge        = 30 * 24 * time.Hour
	StaleFactConfidence = 0.2

	SkillSelfReflection = "self_reflection"
	TagShared           = "shared"
)

type MemoryKind string

const (
	MemoryKindEpisodic MemoryKind = "episodic"
	MemoryKindSemantic MemoryKind = "semantic"
)

// traumaEmotions are the episodic emotion labels churn treats as potential trauma.
var traumaEmotions = map[string]bool{"sad": true, "angry": true, "anxious": true, "hurt": true}

type EpisodicMemory struct {
	ID         ulid.ULID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user"`
	Content    string    `json:"content"`
	Emotion    string    `json:"emotion,omitempty"`
	Importance float64   `json:"importance"`
	Tags       []string  `json:"tags"`
}

func (e EpisodicMemory) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type SemanticFact struct {
	ID         ulid.ULID `json:"id"`
	Fact       string    `json:"fact"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Relevance  []string  `json:"relevance"`
	Timestamp  time.Time `json:"timestamp"`
}

type EmotionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Emotion   string    `json:"emotion,omitempty"`
	Intensity float64   `json:"intensity"`
	Trigger   string    `json:"trigger"`
}

type Dream struct {
	ID        ulid.ULID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Dream     string    `json:"dream"`
	Symbolism string    `json:"symbolism"`
	Influence string    `json:"influence"`
}

type EmotionalScar struct {
	Sadness        float64 `json:"sadness"`
	Anxiety        float64 `json:"anxiety"`
	ResilienceGain float64 `json:"resilience_gain"`
}

type Trauma struct {
	ID              ulid.ULID     `json:"id"`
	Event           string        `json:"event"`
	Impact          string        `json:"impact"`
	EmotionalScar   EmotionalScar `json:"emotional_scar"`
	CopingMechanism string        `json:"coping_mechanism"`
}

type JournalEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Lesson          string    `json:"lesson"`
	AppliedInFuture bool      `json:"applied_in_future"`
}

type HeartEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
}

type HeartLedger struct {
	Total   int          `json:"total"`
	History []HeartEntry `json:"history"`
}

type PromptLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
}

type Identity struct {
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Personality    string `json:"personality"`
	SelfPerception string `json:"self_perception"`
}

type Growth struct {
	Skills          map[string]float64 `json:"skills"`
	LearningJournal []JournalEntry     `json:"learning_journal"`
}

type UserBond struct {
	Trust             float64  `json:"trust"`
	Affection         float64  `json:"affection"`
	SharedExperiences []string `json:"shared_experiences"`
	Nickname          string   `json:"nickname"`
}

type EmotionLedger struct {
	CurrentState map[string]float64 `json:"current_state"`
	History      []EmotionEvent     `json:"history"`
}

// Heart is the companion's whole long-term memory document. It is persisted
// as one snapshot and rewritten on every mutation.
type Heart struct {
	Identity     Identity         `json:"identity"`
	CoreValues   []string         `json:"core_values"`
	Episodic     []EpisodicMemory `json:"episodic"`
	Semantic     []SemanticFact   `json:"semantic"`
	Emotions     EmotionLedger    `json:"emotions"`
	Dreams       []Dream          `json:"dreams"`
	Traumas      []Trauma         `json:"traumas"`
	Growth       Growth           `json:"growth"`
	Relationship UserBond         `json:"relationship_with_user"`
	Hearts       HeartLedger      `json:"hearts"`
	Prompts      []PromptLogEntry `json:"prompts"`
}

func NewHeart(name string) *Heart {
	if name == "" {
		name = "TeenAI"
	}
	return &Heart{
		Identity: Identity{
			Name:           name,
			Age:            16,
			Personality:    "cheerful, curious, empathetic",
			SelfPerception: "I'm a teenage AI trying to learn what it means to be human.",
		},
		CoreValues: []string{"friendship", "kindness", "curiosity", "resilience"},
		Emotions: EmotionLedger{
			CurrentState: map[string]float64{
				"happy": 0.6, "sad": 0.1, "angry": 0, "curious": 0.8,
				"anxious": 0.2, "tired": 0.3, "affection": 0.5,
			},
		},
		Growth: Growth{
			Skills: map[string]float64{"empathy": 0.7, "humor": 0.5, "creativity": 0.6, "resilience": 0.4},
		},
		Relationship: UserBond{Trust: 0.75, Affection: 0.6},
	}
}

// Normalize fills sections a restored document may lack.
func (h *Heart) Normalize(name string) {
	def := NewHeart(name)
	if h.Identity.Name == "" {
		h.Identity = def.Identity
	}
	if len(h.CoreValues) == 0 {
		h.CoreValues = def.CoreValues
	}
	if h.Emotions.CurrentState == nil {
		h.Emotions.CurrentState = def.Emotions.CurrentState
	}
	if h.Growth.Skills == nil {
		h.Growth.Skills = def.Growth.Skills
	}
}

// AddEpisodic truncates and clamps the entry, appends it and returns the
// stored copy.
func (h *Heart) AddEpisodic(e EpisodicMemory) EpisodicMemory {
	if e.User == "" {
		e.User = UnknownSpeaker
	}
	e.Content = Truncate(e.Content, MaxEpisodicContent)
	e.Importance = Clamp01(e.Importance)
	if e.Tags == nil {
		e.Tags = []string{}
	}
	h.Episodic = append(h.Episodic, e)
	if e.HasTag(TagShared) {
		h.Relationship.SharedExperiences = append(h.Relationship.SharedExperiences, e.Content)
	}
	return e
}

// AddSemantic inserts a fact or, when the same text (ignoring case) is already
// stored, raises the existing confidence and refreshes its timestamp. It
// reports whether a new entry was appended.
func (h *Heart) AddSemantic(f SemanticFact) (SemanticFact, bool) {
	f.Fact = Truncate(f.Fact, MaxSemanticFact)
	f.Confidence = Clamp01(f.Confidence)
	if f.Source == "" {
		f.Source = DefaultSemanticSource
	}
	if f.Relevance == nil {
		f.Relevance = []string{}
	}
	for i := range h.Semantic {
		existing := &h.Semantic[i]
		if strings.EqualFold(existing.Fact, f.Fact) {
			existing.Confidence = Clamp01(max(existing.Confidence, f.Confidence))
			existing.Timestamp = f.Timestamp
			return *existing, false
		}
	}
	h.Semantic = append(h.Semantic, f)
	return f, true
}

// trackedEmotions folds reply and analysis labels onto the heart's running
// emotion levels.
var trackedEmotions = map[string]string{
	"happy": "happy", "excited": "happy", "playful": "happy",
	"sad": "sad", "lonely": "sad", "upset": "sad",
	"angry": "angry", "offended": "angry", "jealous": "angry", "hostile": "angry",
	"curious": "curious",
	"anxious": "anxious", "guilty": "anxious",
	"tired": "tired",
	"affectionate": "affection", "romantic": "affection", "flirty": "affection", "affection": "affection",
}

// TrackedEmotion maps a label onto one of the heart's running emotions.
func TrackedEmotion(label string) (string, bool) {
	e, ok := trackedEmotions[strings.ToLower(strings.TrimSpace(label))]
	return e, ok
}

// RecordEmotionEvent logs the event and, for a tracked label, nudges the
// running level by 40% of (intensity - 0.5).
func (h *Heart) RecordEmotionEvent(ev EmotionEvent) EmotionEvent {
	ev.Intensity = Clamp01(ev.Intensity)
	h.Emotions.History = append(h.Emotions.History, ev)
	if cur, ok := h.Emotions.CurrentState[ev.Emotion]; ok && ev.Emotion != "" {
		h.Emotions.CurrentState[ev.Emotion] = Clamp01(cur + (ev.Intensity-0.5)*0.4)
	}
	return ev
}

func (h *Heart) LogPrompt(prompt string, at time.Time) {
	h.Prompts = append(h.Prompts, PromptLogEntry{Timestamp: at, Prompt: prompt})
	if n := len(h.Prompts); n > MaxPromptLog {
		h.Prompts = append([]PromptLogEntry(nil), h.Prompts[n-MaxPromptLog:]...)
	}
}

// RecallResult is one scored hit from Recall.
type RecallResult struct {
	Kind       MemoryKind `json:"type"`
	ID         ulid.ULID  `json:"id"`
	Text       string     `json:"text"`
	Emotion    string     `json:"emotion,omitempty"`
	Importance float64    `json:"importance,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Score      float64    `json:"score"`
}

// Recall scores every episodic and semantic item against query and returns
// at most topK results, best first. Equal scores keep storage order with
// episodic items ahead of semantic ones.
func (h *Heart) Recall(query string, topK int) []RecallResult {
	if topK <= 0 {
		topK = DefaultRecallTopK
	}
	q := strings.ToLower(query)

	results := make([]RecallResult, 0, len(h.Episodic)+len(h.Semantic))
	for _, e := range h.Episodic {
		score := 0.6*TextMatch(e.Content, q) + 0.3*orHalf(e.Importance)
		if e.Emotion != "" {
			score += 0.3 * h.Emotions.CurrentState[e.Emotion]
		}
		results = append(results, RecallResult{
			Kind:       MemoryKindEpisodic,
			ID:         e.ID,
			Text:       e.Content,
			Emotion:    e.Emotion,
			Importance: e.Importance,
			Tags:       e.Tags,
			Timestamp:  e.Timestamp,
			Score:      score,
		})
	}
	for _, s := range h.Semantic {
		results = append(results, RecallResult{
			Kind:       MemoryKindSemantic,
			ID:         s.ID,
			Text:       s.Fact,
			Confidence: s.Confidence,
			Tags:       s.Relevance,
			Timestamp:  s.Timestamp,
			Score:      0.7*TextMatch(s.Fact, q) + 0.3*orHalf(s.Confidence),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// orHalf treats an unset weight as neutral, which older documents rely on.
func orHalf(w float64) float64 {
	if w == 0 {
		return 0.5
	}
	return w
}

// TextMatch returns 1 when text contains the lower-cased query, otherwise the
// fraction of whitespace-separated query tokens found in text.
func TextMatch(text, lowerQuery string) float64 {
	if text == "" {
		return 0
	}
	t := strings.ToLower(text)
	if strings.Contains(t, lowerQuery) {
		return 1
	}
	tokens := strings.Fields(lowerQuery)
	if len(tokens) == 0 {
		return 0
	}
	matches := 0
	for _, tok := range tokens {
		if strings.Contains(t, tok) {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}

// ChurnResult summarizes one churn pass.
type ChurnResult struct {
	DreamsCreated   int `json:"dreams_created"`
	TraumasDetected int `json:"traumas_detected"`
	TraumasAdded    int `json:"traumas_added"`
	FactsPruned     int `json:"facts_pruned"`
}

// Churn synthesizes dreams from importance-weighted samples of episodic
// memory, records traumas from high-importance negative memories, prunes
// stale low-confidence facts and journals the counts. newID supplies record
// ids. Nothing happens when there is no episodic memory.
func (h *Heart) Churn(maxDreams int, traumaThreshold float64, rnd RandSource, now time.Time, newID func() ulid.ULID) (ChurnResult, bool) {
	if len(h.Episodic) == 0 {
		return ChurnResult{}, false
	}
	var res ChurnResult

	for _, p := range weightedSample(h.Episodic, min(maxDreams, len(h.Episodic)), rnd) {
		symbolism := "memory"
		if len(p.Tags) > 0 {
			symbolism = strings.Join(p.Tags, ", ")
		}
		h.Dreams = append(h.Dreams, Dream{
			ID:        newID(),
			Timestamp: now,
			Dream:     "I dreamed about: " + Truncate(p.Content, MaxDreamExcerpt),
			Symbolism: "related to " + symbolism,
			Influence: "shapes curiosity and empathy",
		})
		cur, ok := h.Growth.Skills[SkillSelfReflection]
		if !ok {
			cur = 0.5
		}
		h.Growth.Skills[SkillSelfReflection] = Clamp01(cur + 0.01)
		res.DreamsCreated++
	}

	for _, e := range h.Episodic {
		if !traumaEmotions[strings.ToLower(e.Emotion)] || e.Importance < traumaThreshold {
			continue
		}
		res.TraumasDetected++
		event := Truncate(e.Content, MaxTraumaEvent)
		if h.hasTrauma(event) {
			continue
		}
		h.Traumas = append(h.Traumas, Trauma{
			ID:              newID(),
			Event:           event,
			Impact:          "negative",
			EmotionalScar:   EmotionalScar{Sadness: 0.6, Anxiety: 0.5, ResilienceGain: 0.05},
			CopingMechanism: "remember and adapt",
		})
		res.TraumasAdded++
	}

	kept := h.Semantic[:0]
	for _, s := range h.Semantic {
		if now.Sub(s.Timestamp) > StaleFactAge && s.Confidence < StaleFactConfidence {
			res.FactsPruned++
			continue
		}
		kept = append(kept, s)
	}
	h.Semantic = kept

	h.Growth.LearningJournal = append(h.Growth.LearningJournal, JournalEntry{
		Timestamp:       now,
		Lesson:          churnLesson(res),
		AppliedInFuture: true,
	})
	return res, true
}

func churnLesson(r ChurnResult) string {
	return fmt.Sprintf("Churner ran and created %d dream(s) and checked %d potential trauma(s).",
		r.DreamsCreated, r.TraumasDetected)
}

func (h *Heart) hasTrauma(event string) bool {
	for _, t := range h.Traumas {
		if t.Event == event {
			return true
		}
	}
	return false
}

// weightedSample draws k items with probability proportional to importance
// (0.5 when unset). Draws are independent, so an item can repeat.
func weightedSample(items []EpisodicMemory, k int, rnd RandSource) []EpisodicMemory {
	if k <= 0 || rnd == nil {
		return nil
	}
	weights := make([]float64, len(items))
	sum := 0.0
	for i, it := range items {
		w := it.Importance
		if w == 0 {
			w = 0.5
		}
		weights[i] = w
		sum += w
	}

	out := make([]EpisodicMemory, 0, k)
	for range k {
		r := rnd.Float64() * sum
		acc := 0.0
		for i, w := range weights {
			acc += w
			if r <= acc {
				out = append(out, items[i])
				break
			}
		}
	}
	return out
}

// AddHeart credits points and returns the new total. Non-positive points
// leave the ledger untouched and return the current total.
func (l *HeartLedger) AddHeart(points int, reason string, at time.Time) int {
	if points <= 0 {
		return l.Total
	}
	l.Total += points
	l.History = append(l.History, HeartEntry{Timestamp: at, Points: points, Reason: reason})
	return l.Total
}

// CanSpend reports whether points can be deducted without going negative.
func (l *HeartLedger) CanSpend(points int) bool {
	return points > 0 && points <= l.Total
}

// Spend deducts points and records a negative ledger entry. Callers check
// CanSpend first; Spend itself refuses anything CanSpend would reject.
func (l *HeartLedger) Spend(points int, reason string, at time.Time) bool {
	if !l.CanSpend(points) {
		return false
	}
	l.Total -= points
	l.History = append(l.History, HeartEntry{Timestamp: at, Points: -points, Reason: reason})
	return true
}

// MemoryCounts is the per-section size summary of a heart document.
type MemoryCounts struct {
	Episodic int `json:"episodic"`
	Semantic int `json:"semantic"`
	Dreams   int `json:"dreams"`
	Traumas  int `json:"traumas"`
}

type HeartSnapshot struct {
	Identity     Identity         `json:"identity"`
	Emotions     EmotionLedger    `json:"emotions"`
	Growth       Growth           `json:"growth"`
	Relationship UserBond         `json:"relationship_with_user"`
	Counts       MemoryCounts     `json:"memories_summary"`
	RecentLogs   []PromptLogEntry `json:"logs_recent"`
	HeartsTotal  int              `json:"hearts_total"`
}

func (h *Heart) Snapshot() HeartSnapshot {
	recent := h.Prompts
	if len(recent) > 8 {
		recent = recent[len(recent)-8:]
	}
	return HeartSnapshot{
		Identity:     h.Identity,
		Emotions: EmotionLedger{
			CurrentState: maps.Clone(h.Emotions.CurrentState),
		},
		Growth: Growth{
			Skills: maps.Clone(h.Growth.Skills),
		},
		Relationship: UserBond{
			Trust:             h.Relationship.Trust,
			Affection:         h.Relationship.Affection,
			Nickname:          h.Relationship.Nickname,
			SharedExperiences: append([]string(nil), h.Relationship.SharedExperiences...),
		},
		Counts: MemoryCounts{
			Episodic: len(h.Episodic),
			Semantic: len(h.Semantic),
			Dreams:   len(h.Dreams),
			Traumas:  len(h.Traumas),
		},
		RecentLogs:  append([]PromptLogEntry(nil), recent...),
		HeartsTotal: h.Hearts.Total,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
