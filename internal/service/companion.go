package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/llm"
	"github.com/Harshitk-cp/kindred/internal/store"
)

const (
	// UserOnlineMessage is the chat text a client sends when the user comes
	// back online; it gets a greeting instead of a normal turn.
	UserOnlineMessage = "__USER_ONLINE__"

	turnDecayRate         = 0.01
	heartRecallCandidates = 15
	heartRecallKeep       = 5
	contextWindow         = 15
	contextKeep           = 6
	trailLines            = 6
	replyTemperature      = 0.6
	reflectionMinScore    = 20
	reflectionChance      = 0.2
	surpriseChance        = 0.03
	surpriseDescription   = "Something completely unexpected happened! 🤯"
	diaryFallback         = "I'll always treasure that with you."

	DefaultChurnEvery       = 30
	DefaultSpawnProbability = 1.0
	DefaultProactiveMin     = 3 * time.Minute
)

// Config tunes a Companion.
type Config struct {
	Persona          string
	Background       string
	HistoryLimit     int
	ChurnEvery       int
	SpawnProbability float64
	ProactiveMin     time.Duration
	MoodNoise        float64
}

// Deps are the collaborators a Companion is built from. Associative and
// Clock are optional.
type Deps struct {
	Catalog     *catalog.Catalog
	Store       domain.SnapshotStore
	Oracle      domain.Oracle
	Publisher   domain.Publisher
	Associative *AssociativeMemory
	Clock       *RoutineClock
	Rand        domain.RandSource
	Logger      *zap.Logger
}

// Companion is the single context object that owns every piece of mutable
// companion state. All operations serialize on mu; the lock is dropped
// while the oracle is consulted and re-taken to commit the result.
type Companion struct {
	mu              sync.Mutex
	affect          domain.AffectVector
	needs           domain.NeedsVector
	relationship    domain.RelationshipState
	history         *domain.History
	analysis        *domain.BehaviorAnalysis
	giftLocks       domain.GiftLocks
	lastInteraction time.Time
	interactions    int

	cfg      Config
	catalog  *catalog.Catalog
	heart    *HeartStore
	events   *LifeEventScheduler
	clock    *RoutineClock
	analyzer *BehaviorAnalyzer
	assoc    *AssociativeMemory
	mood     *domain.MoodClassifier
	oracle   domain.Oracle
	store    domain.SnapshotStore
	pub      domain.Publisher
	rnd      domain.RandSource
	logger   *zap.Logger
	now      func() time.Time

	analyses sync.WaitGroup
}

func NewCompanion(d Deps, cfg Config) *Companion {
	if cfg.Persona == "" {
		cfg.Persona = "TeenAI"
	}
	if cfg.ChurnEvery <= 0 {
		cfg.ChurnEvery = DefaultChurnEvery
	}
	if cfg.ProactiveMin <= 0 {
		cfg.ProactiveMin = DefaultProactiveMin
	}
	clock := d.Clock
	if clock == nil {
		clock = NewRoutineClock(d.Catalog.Routine, domain.RoutineSynced, d.Logger)
	}
	assoc := d.Associative
	if assoc == nil {
		assoc = NewAssociativeMemory(nil, nil, d.Logger)
	}
	// Workers, handlers and detached analyses all reach the shared source.
	rnd := domain.NewLockedRand(d.Rand)

	return &Companion{
		affect:    domain.NewAffectVector(),
		needs:     domain.NewNeedsVector(),
		history:   domain.NewHistory(cfg.HistoryLimit),
		giftLocks: make(domain.GiftLocks),
		cfg:       cfg,
		catalog:   d.Catalog,
		heart:     NewHeartStore(d.Store, cfg.Persona, rnd, d.Logger),
		events:    NewLifeEventScheduler(d.Catalog, d.Store, d.Publisher, rnd, d.Logger),
		clock:     clock,
		analyzer:  NewBehaviorAnalyzer(d.Oracle, d.Store, d.Publisher, d.Logger),
		assoc:     assoc,
		mood:      domain.NewMoodClassifier(rnd, cfg.MoodNoise),
		oracle:    d.Oracle,
		store:     d.Store,
		pub:       d.Publisher,
		rnd:       rnd,
		logger:    d.Logger,
		now:       time.Now,

		lastInteraction: time.Now(),
	}
}

// SetClock replaces the time source of the companion and its components.
// The last interaction restarts at the new clock's current time.
func (c *Companion) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	c.lastInteraction = now()
	c.heart.now = now
	c.events.now = now
	c.analyzer.now = now
}

func (c *Companion) Heart() *HeartStore              { return c.heart }
func (c *Companion) Events() *LifeEventScheduler     { return c.events }
func (c *Companion) Clock() *RoutineClock            { return c.clock }
func (c *Companion) Associative() *AssociativeMemory { return c.assoc }
func (c *Companion) Catalog() *catalog.Catalog       { return c.catalog }
func (c *Companion) Persona() string                 { return c.cfg.Persona }

// Restore loads every snapshot. Missing snapshots keep their defaults.
func (c *Companion) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var affect map[string]float64
	if err := c.load(ctx, domain.KeyAffect, &affect); err != nil {
		return err
	} else if affect != nil {
		c.affect = domain.RestoreAffectVector(affect)
	}

	needs := domain.NewNeedsVector()
	if err := c.load(ctx, domain.KeyNeeds, &needs); err != nil {
		return err
	}
	needs.Normalize()
	c.needs = needs

	if err := c.load(ctx, domain.KeyRelationship, &c.relationship); err != nil {
		return err
	}
	c.relationship.Normalize()

	history := domain.NewHistory(c.cfg.HistoryLimit)
	if err := c.load(ctx, domain.KeyHistory, history); err != nil {
		return err
	}
	history.Limit = c.history.Limit
	if over := len(history.Exchanges) - history.Limit; over > 0 {
		history.Exchanges = history.Exchanges[over:]
	}
	c.history = history

	locks := make(domain.GiftLocks)
	if err := c.load(ctx, domain.KeyGiftLocks, &locks); err != nil {
		return err
	}
	locks.Prune(c.now())
	c.giftLocks = locks

	if latest, ok, err := c.analyzer.Latest(ctx); err != nil {
		return err
	} else if ok {
		c.analysis = &latest
	}

	if err := c.heart.Restore(ctx); err != nil {
		return err
	}
	if err := c.events.Restore(ctx); err != nil {
		return err
	}

	c.logger.Info("companion state restored",
		zap.Float64("score", c.relationship.Score),
		zap.String("stage", string(domain.StageFor(c.relationship.Score).Stage)),
		zap.Int("history", c.history.Len()))
	return nil
}

func (c *Companion) load(ctx context.Context, key string, v any) error {
	if err := c.store.Load(ctx, key, v); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("restore %s: %w", key, err)
	}
	return nil
}

// persistLocked writes every companion-owned snapshot. Failures are logged;
// the in-memory state stays authoritative.
func (c *Companion) persistLocked(ctx context.Context) {
	docs := []struct {
		key string
		v   any
	}{
		{domain.KeyAffect, c.affect.Snapshot()},
		{domain.KeyNeeds, c.needs},
		{domain.KeyRelationship, c.relationship},
		{domain.KeyHistory, c.history},
		{domain.KeyGiftLocks, c.giftLocks},
	}
	for _, d := range docs {
		if err := c.store.Save(ctx, d.key, d.v); err != nil {
			c.logger.Warn("failed to persist state", zap.String("key", d.key), zap.Error(err))
		}
	}
	if err := c.events.Save(ctx); err != nil {
		c.logger.Warn("failed to persist life events", zap.Error(err))
	}
}

// TurnResult is what one interactive turn produced.
type TurnResult struct {
	Reply        domain.StructuredReply     `json:"reply"`
	Fallback     bool                       `json:"fallback"`
	Meters       map[domain.Channel]float64 `json:"meters"`
	Mood         domain.Mood                `json:"mood"`
	Stage        domain.StageProgress       `json:"stage"`
	Relationship *domain.RelationshipUpdate `json:"relationship,omitempty"`
	HeartsTotal  int                        `json:"hearts_total"`
	HeartsDelta  int                        `json:"hearts_delta"`
	Completed    []string                   `json:"completed_quests,omitempty"`
}

// Chat runs one user turn.
func (c *Companion) Chat(ctx context.Context, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if text == UserOnlineMessage {
		return c.Welcome(ctx)
	}

	assocText := c.associativeContext(ctx, text)

	c.mu.Lock()
	c.lastInteraction = c.now()
	fired := c.affect.AdjustFromText(text)
	c.affect.Decay(turnDecayRate)
	c.needs.Tick()
	for _, b := range fired {
		if b == domain.BucketPositive {
			c.reinforceNeed(domain.NeedPositiveInteraction)
		}
	}
	mood := c.mood.Classify(c.affect)

	recalled := c.heartContext(text)
	if assocText != "" {
		recalled = strings.TrimSpace(recalled + "\n" + assocText)
	}
	dedup := c.history.DedupedContext(contextWindow, contextKeep, c.cfg.Persona)

	completed := c.events.ApplyGoal(domain.GoalChat, GoalPayload{})
	c.grantRewardsLocked(ctx, completed)
	c.events.ApplyEffects(c.affect)

	in := c.promptInputLocked(mood, text)
	in.Memories = recalled
	in.ContextSummary = dedup
	if dedup == "" {
		in.ContextSummary = c.history.Trail(trailLines, c.cfg.Persona)
	}
	temperature := domain.ClampRange(c.affect.Temperature(), 0.1, 0.9)
	stage := domain.StageFor(c.relationship.Score).Stage
	score, chem := c.relationship.Score, c.relationship.Chemistry
	c.mu.Unlock()

	prompt := llm.ChatPrompt(in)
	reply, fallback := c.generateReply(ctx, prompt, temperature, domain.ChatFallback())

	c.mu.Lock()
	defer c.mu.Unlock()

	upd := c.relationship.Update(reply.Reply, reply.AIEmotion, c.now())
	c.afterRelationshipUpdateLocked(ctx, upd)

	valence := c.affect.Get(domain.ChannelValence)
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       text,
		Content:    "User: " + text + "\nAI: " + reply.Reply,
		Emotion:    mood.Primary(),
		Importance: min(1, 0.3+valence),
		Tags:       []string{"chat"},
	})
	c.history.Push(text, reply.Reply)

	total := c.addHeart(ctx, 1, "chatted with "+c.cfg.Persona)
	c.affect.Apply(reply.NeuroDeltas, domain.ReplyDeltaScale)
	c.recordEmotion(ctx, reply.AIEmotion, reply.Intensity(), "chat reply")

	c.persistLocked(ctx)
	c.logPrompt(ctx, prompt)
	c.publishStateLocked()

	c.interactions++
	if c.interactions%c.cfg.ChurnEvery == 0 {
		if _, err := c.heart.Churn(ctx, DefaultMaxDreams, DefaultTraumaThreshold); err != nil {
			c.logger.Warn("scheduled churn failed", zap.Error(err))
		}
	}

	c.startAnalysis(llm.AnalysisPromptInput{
		Stage:          stage,
		Score:          score,
		Chemistry:      chem,
		ContextSummary: in.ContextSummary,
		Recalled:       recalled,
		UserText:       text,
	})

	return TurnResult{
		Reply:        reply,
		Fallback:     fallback,
		Meters:       reply.Meters(),
		Mood:         mood,
		Stage:        domain.ProgressFor(c.relationship.Score),
		Relationship: &upd,
		HeartsTotal:  total,
		HeartsDelta:  1,
		Completed:    eventNames(completed),
	}, nil
}

// Welcome greets a returning user. Only the state broadcast happens; no
// state is mutated.
func (c *Companion) Welcome(ctx context.Context) (TurnResult, error) {
	c.mu.Lock()
	c.lastInteraction = c.now()
	c.mu.Unlock()

	reply, fallback := c.generateReply(ctx, llm.WelcomePrompt, replyTemperature, domain.WelcomeFallback())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishStateLocked()
	return TurnResult{
		Reply:       reply,
		Fallback:    fallback,
		Meters:      reply.Meters(),
		Mood:        c.mood.Classify(c.affect),
		Stage:       domain.ProgressFor(c.relationship.Score),
		HeartsTotal: c.heart.Hearts().Total,
	}, nil
}

// Gift sends a catalog gift to the companion, paid for in hearts.
func (c *Companion) Gift(ctx context.Context, giftID string) (TurnResult, error) {
	gift, ok := c.catalog.Gift(giftID)
	if !ok {
		return TurnResult{}, fmt.Errorf("%w: %s", ErrGiftNotFound, giftID)
	}

	c.mu.Lock()
	now := c.now()
	if c.giftLocks.Locked(gift.ID, now) {
		c.mu.Unlock()
		return TurnResult{}, ErrGiftLocked
	}
	total, err := c.heart.SpendHearts(ctx, gift.Cost, "Sent gift: "+gift.Name)
	if err != nil && (errors.Is(err, ErrInsufficientHearts) || errors.Is(err, ErrInvalidPoints)) {
		c.mu.Unlock()
		return TurnResult{}, err
	}
	if err != nil {
		c.logger.Warn("failed to persist heart spend", zap.Error(err))
	}
	c.giftLocks[gift.ID] = now.Add(domain.GiftLockDuration)
	c.lastInteraction = now

	completed := c.events.ApplyGoal(domain.GoalGift, GoalPayload{})
	c.grantRewardsLocked(ctx, completed)
	c.affect.Apply(gift.Effects, 1)

	mood := domain.Mood{Dominant: domain.MoodNeutral, Explanation: "Gift received: " + gift.Name}
	in := c.promptInputLocked(mood, llm.GiftUserText(gift))
	in.ContextSummary = c.history.Trail(trailLines, c.cfg.Persona)
	c.mu.Unlock()

	prompt := llm.ChatPrompt(in)
	reply, fallback := c.generateReply(ctx, prompt, replyTemperature, domain.GiftFallback(gift.Name))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       "gift",
		Content:    fmt.Sprintf("User sent gift: %s %s\nAI: %s", gift.Name, gift.Icon, reply.Reply),
		Emotion:    reply.AIEmotion,
		Importance: 0.7,
		Tags:       []string{"gift"},
	})
	upd := c.relationship.Update("gift:"+gift.Name, reply.AIEmotion, c.now())
	c.afterRelationshipUpdateLocked(ctx, upd)

	c.persistLocked(ctx)
	c.publishStateLocked()
	c.logger.Info("gift received", zap.String("gift", gift.ID), zap.Int("cost", gift.Cost), zap.Int("hearts_left", total))

	return TurnResult{
		Reply:        reply,
		Fallback:     fallback,
		Meters:       reply.Meters(),
		Mood:         mood,
		Stage:        domain.ProgressFor(c.relationship.Score),
		Relationship: &upd,
		HeartsTotal:  total,
		HeartsDelta:  -gift.Cost,
		Completed:    eventNames(completed),
	}, nil
}

// Like reacts to the user liking one of the companion's posts.
func (c *Companion) Like(ctx context.Context, post string) (TurnResult, error) {
	post = strings.TrimSpace(post)
	if post == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	return c.socialTurn(ctx, socialAction{
		goal:       domain.GoalLikePost,
		adjustText: "like ❤️",
		userText:   llm.LikeUserText(post),
		fallback:   domain.LikeFallback(),
		speaker:    "❤️ (like)",
		content:    func(reply string) string { return fmt.Sprintf("User liked post %q\nAI: %s", post, reply) },
		tag:        "like",
		reason:     "liked post",
	})
}

// Comment reacts to the user commenting on one of the companion's posts.
func (c *Companion) Comment(ctx context.Context, post, comment string) (TurnResult, error) {
	post, comment = strings.TrimSpace(post), strings.TrimSpace(comment)
	if comment == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	return c.socialTurn(ctx, socialAction{
		goal:       domain.GoalComment,
		adjustText: comment,
		userText:   llm.CommentUserText(post, comment),
		fallback:   domain.CommentFallback(),
		speaker:    comment,
		content: func(reply string) string {
			return fmt.Sprintf("User commented %q on post %q\nAI: %s", comment, post, reply)
		},
		tag:    "comment",
		reason: "commented",
	})
}

type socialAction struct {
	goal       domain.GoalType
	adjustText string
	userText   string
	fallback   domain.StructuredReply
	speaker    string
	content    func(reply string) string
	tag        string
	reason     string
}

func (c *Companion) socialTurn(ctx context.Context, t socialAction) (TurnResult, error) {
	c.mu.Lock()
	completed := c.events.ApplyGoal(t.goal, GoalPayload{})
	c.grantRewardsLocked(ctx, completed)
	c.lastInteraction = c.now()
	c.affect.AdjustFromText(t.adjustText)
	c.needs.Tick()
	mood := c.mood.Classify(c.affect)
	in := c.promptInputLocked(mood, t.userText)
	c.mu.Unlock()

	reply, fallback := c.generateReply(ctx, llm.ChatPrompt(in), replyTemperature, t.fallback)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       t.speaker,
		Content:    t.content(reply.Reply),
		Emotion:    mood.Primary(),
		Importance: 0.5,
		Tags:       []string{t.tag},
	})
	c.history.Push(t.speaker, reply.Reply)
	total := c.addHeart(ctx, 1, t.reason)
	c.persistLocked(ctx)
	c.publishStateLocked()

	return TurnResult{
		Reply:       reply,
		Fallback:    fallback,
		Meters:      reply.Meters(),
		Mood:        mood,
		Stage:       domain.ProgressFor(c.relationship.Score),
		HeartsTotal: total,
		HeartsDelta: 1,
		Completed:   eventNames(completed),
	}, nil
}

// CollectHeart credits hearts and advances heart-collecting quests.
func (c *Companion) CollectHeart(ctx context.Context, points int, reason string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.heart.AddHeart(ctx, points, reason)
	if err != nil {
		c.logger.Warn("failed to persist heart collect", zap.Error(err))
	}
	completed := c.events.ApplyGoal(domain.GoalHeartCollect, GoalPayload{})
	c.grantRewardsLocked(ctx, completed)
	if len(completed) > 0 {
		total = c.heart.Hearts().Total
		c.persistLocked(ctx)
	}
	c.publishStateLocked()
	return total, nil
}

func (c *Companion) SpendHearts(ctx context.Context, points int, reason string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.heart.SpendHearts(ctx, points, reason)
	if err != nil {
		if errors.Is(err, ErrInsufficientHearts) || errors.Is(err, ErrInvalidPoints) {
			return total, err
		}
		c.logger.Warn("failed to persist heart spend", zap.Error(err))
	}
	c.publishStateLocked()
	return total, nil
}

// DiaryResult is a stored diary memory with the companion's continuation.
type DiaryResult struct {
	Stored   string `json:"stored"`
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// AddDiaryMemory stores a user-written memory together with the companion's
// in-character response to it.
func (c *Companion) AddDiaryMemory(ctx context.Context, text string) (DiaryResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return DiaryResult{}, ErrEmptyMessage
	}

	recalled := "None"
	if hits, err := c.assoc.Search(ctx, text, DefaultAssociativeTopK); err != nil {
		c.logger.Warn("associative recall failed", zap.Error(err))
	} else if len(hits) > 0 {
		lines := make([]string, len(hits))
		for i, h := range hits {
			lines[i] = fmt.Sprintf("- %s (emotion:%s)", h.Text, orDefault(h.Meta["emotion"], "neutral"))
		}
		recalled = strings.Join(lines, "\n")
	}

	c.mu.Lock()
	stage := domain.StageFor(c.relationship.Score)
	in := llm.DiaryPromptInput{
		Stage:    stage.Stage,
		Tone:     c.events.OverrideTone(stage.Tone),
		Mood:     c.mood.Classify(c.affect).Dominant,
		History:  c.history.Trail(trailLines, c.cfg.Persona),
		Recalled: recalled,
		Memory:   text,
	}
	c.mu.Unlock()

	res := DiaryResult{Reply: diaryFallback, Fallback: true}
	out, err := c.oracle.Generate(ctx, llm.DiaryPrompt(in), domain.GenerateOptions{Temperature: replyTemperature})
	if err != nil {
		c.logger.Warn("diary oracle call failed, using fallback", zap.Error(err))
	} else if s := strings.TrimSpace(out); s != "" {
		res.Reply, res.Fallback = s, false
	}
	res.Stored = text + "\n\n" + c.cfg.Persona + ": " + res.Reply

	c.mu.Lock()
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       "memory",
		Content:    res.Stored,
		Emotion:    "sentimental",
		Importance: 0.7,
		Tags:       []string{"userMemory", "companionNote"},
	})
	c.mu.Unlock()

	if _, err := c.assoc.Add(ctx, res.Stored, map[string]string{"kind": "diary", "emotion": "sentimental"}); err != nil {
		c.logger.Warn("failed to index diary memory", zap.Error(err))
	}
	return res, nil
}

// PostRoutineActivity announces a new routine activity: it may spawn a life
// event, asks the oracle for a short check-in and publishes it.
func (c *Companion) PostRoutineActivity(ctx context.Context, activity string, hm domain.ClockTime) (domain.StructuredReply, error) {
	if activity == "" {
		return domain.StructuredReply{}, nil
	}

	c.mu.Lock()
	if ev, ok := c.events.MaybeSpawn(c.cfg.SpawnProbability, hm); ok {
		c.logger.Debug("routine spawned life event", zap.String("event", ev.Name), zap.String("time", hm.String()))
	}
	mood := c.mood.Classify(c.affect)
	in := c.promptInputLocked(mood, llm.RoutineUserText(activity))
	in.ContextSummary = c.history.Trail(trailLines, c.cfg.Persona)
	c.mu.Unlock()

	reply, _ := c.generateReply(ctx, llm.ChatPrompt(in), replyTemperature, domain.RoutineFallback(activity))

	c.mu.Lock()
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       "routine",
		Content:    "AI activity: " + activity + "\nAI said: " + reply.Reply,
		Emotion:    reply.AIEmotion,
		Importance: 0.4,
		Tags:       []string{"routine", "ai_activity"},
	})
	c.history.Push("ai:"+activity, reply.Reply)
	c.affect.Apply(reply.NeuroDeltas, domain.ReplyDeltaScale)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.publish(domain.NotifyChatMessage, domain.ChatMessage{Who: c.cfg.Persona, Text: reply.Reply, Kind: "ai"})
	c.publish(domain.NotifyUpdateBackground, map[string]string{"activity": activity})
	c.Sweep(ctx)
	return reply, nil
}

// Proactive sends an unprompted message from a random mood bank unless the
// user interacted recently. It reports whether a message went out.
func (c *Companion) Proactive(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(c.lastInteraction) < c.cfg.ProactiveMin {
		return "", false
	}
	moods := c.catalog.Moods()
	if len(moods) == 0 {
		return "", false
	}
	mood := moods[c.rnd.IntN(len(moods))]
	bank := c.catalog.Proactive[mood]
	if len(bank) == 0 {
		return "", false
	}
	msg := bank[c.rnd.IntN(len(bank))]

	c.history.Push("AUTO", msg)
	c.addEpisodic(ctx, domain.EpisodicMemory{
		User:       "AUTO",
		Content:    fmt.Sprintf("AI (proactive - %s): %s", mood, msg),
		Emotion:    mood,
		Importance: 0.5,
		Tags:       []string{"auto_chat"},
	})
	c.persistLocked(ctx)
	c.publish(domain.NotifyChatMessage, domain.ChatMessage{Who: c.cfg.Persona, Text: msg, Kind: "ai"})
	c.logger.Debug("proactive message sent", zap.String("mood", mood))
	return msg, true
}

// Sweep prunes expired events, applies the ambient effects of the rest and
// announces events that have not been shown yet as quest cards and feed
// posts.
func (c *Companion) Sweep(ctx context.Context) {
	c.mu.Lock()
	c.events.Prune()
	c.events.ApplyEffects(c.affect)
	quests, posts := c.events.TakeUnannounced()
	draws := make([]feedDraw, len(posts))
	for i := range posts {
		draws[i] = feedDraw{
			surprise: c.rnd.Float64() < surpriseChance,
			likes:    c.rnd.IntN(15) + 1,
		}
	}
	c.persistLocked(ctx)
	c.mu.Unlock()

	for _, ev := range quests {
		c.publish(domain.NotifyLifeEventQuest, QuestCardFor(ev))
	}
	for i, ev := range posts {
		c.publish(domain.NotifyFeedPost, c.feedPost(ctx, ev, draws[i]))
	}
}

// feedDraw holds the random choices for one feed post, taken under c.mu.
type feedDraw struct {
	surprise bool
	likes    int
}

func (c *Companion) feedPost(ctx context.Context, ev domain.ActiveLifeEvent, d feedDraw) domain.FeedPost {
	desc := ev.Description
	if desc == "" {
		desc = domain.HumanizeEventName(ev.Name)
	}
	if d.surprise {
		desc = surpriseDescription
	}

	post := domain.FeedPost{
		EventID:  ev.ID,
		Author:   "Amazing " + c.cfg.Persona,
		Text:     "Ugh... " + desc + " 😅",
		Likes:    d.likes,
		Comments: []string{},
		PostedAt: c.now(),
	}

	raw, err := c.oracle.Generate(ctx, llm.FeedPostPrompt(c.cfg.Persona, desc), domain.GenerateOptions{JSON: true, Temperature: replyTemperature})
	if err != nil {
		c.logger.Warn("feed post oracle call failed, using fallback", zap.String("event", ev.Name), zap.Error(err))
		return post
	}
	var out struct {
		Post     string   `json:"post"`
		Likes    *float64 `json:"likes"`
		Comments []string `json:"comments"`
	}
	if err := llm.DecodeJSON(raw, &out); err != nil {
		c.logger.Warn("feed post output unparseable, using fallback", zap.String("event", ev.Name), zap.Error(err))
		return post
	}
	if s := strings.Trim(strings.TrimSpace(out.Post), `"'`); s != "" {
		post.Text = s
	}
	if out.Likes != nil {
		post.Likes = int(domain.ClampRange(*out.Likes, 1, 1000))
	}
	if out.Comments != nil {
		post.Comments = out.Comments
	}
	return post
}

// ForceLifeEvent spawns name, or a random defined event when name is empty.
func (c *Companion) ForceLifeEvent(ctx context.Context, name string) (domain.ActiveLifeEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, err := c.events.Force(name)
	if err != nil {
		return ev, err
	}
	c.persistLocked(ctx)
	return ev, nil
}

func (c *Companion) Churn(ctx context.Context, maxDreams int, threshold float64) (domain.ChurnResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heart.Churn(ctx, maxDreams, threshold)
}

// RecallResult joins heart recall with associative recall.
type RecallResult struct {
	Heart       []domain.RecallResult    `json:"heart"`
	Associative []domain.VectorWithScore `json:"associative"`
}

func (c *Companion) Recall(ctx context.Context, query string, k int) (RecallResult, error) {
	res := RecallResult{Heart: c.heart.Recall(query, k)}
	hits, err := c.assoc.Search(ctx, query, k)
	if err != nil {
		return res, err
	}
	res.Associative = hits
	return res, nil
}

// State is a read-only view of the whole companion.
type State struct {
	Persona        string                   `json:"persona"`
	Affect         map[string]float64       `json:"affect"`
	Needs          domain.NeedsVector       `json:"needs"`
	NeedsSummary   string                   `json:"needs_summary,omitempty"`
	Relationship   domain.RelationshipState `json:"relationship"`
	Stage          domain.StageProgress     `json:"stage"`
	Tone           string                   `json:"tone"`
	Mood           domain.Mood              `json:"mood"`
	Style          string                   `json:"style,omitempty"`
	Temperature    float64                  `json:"temperature"`
	Hearts         int                      `json:"hearts"`
	Heart          domain.HeartSnapshot     `json:"heart"`
	ActiveEvents   []domain.ActiveLifeEvent `json:"active_events"`
	Activity       string                   `json:"activity,omitempty"`
	LatestAnalysis *domain.BehaviorAnalysis `json:"latest_analysis,omitempty"`
	Interactions   int                      `json:"interactions"`
}

func (c *Companion) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Companion) stateLocked() State {
	band := domain.StageFor(c.relationship.Score)
	snap := c.heart.Snapshot()
	s := State{
		Persona:      c.cfg.Persona,
		Affect:       c.affect.Snapshot(),
		Needs:        c.needs,
		NeedsSummary: c.needs.SummaryLine(),
		Relationship: c.relationship,
		Stage:        domain.ProgressFor(c.relationship.Score),
		Tone:         c.events.OverrideTone(band.Tone),
		Mood:         c.mood.Classify(c.affect),
		Style:        c.affect.StylePrefix(),
		Temperature:  c.affect.Temperature(),
		Hearts:       snap.HeartsTotal,
		Heart:        snap,
		ActiveEvents: c.events.Active(),
		Activity:     c.clock.CurrentActivity(),
		Interactions: c.interactions,
	}
	if c.analysis != nil {
		a := *c.analysis
		s.LatestAnalysis = &a
	}
	return s
}

func (c *Companion) Stage() domain.StageProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ProgressFor(c.relationship.Score)
}

// Relationship returns the relationship state and its stage-token total.
func (c *Companion) Relationship() domain.RelationshipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relationship
}

// LastInteraction is the time of the latest user-initiated operation.
func (c *Companion) LastInteraction() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInteraction
}

// GiftStatus is a catalog gift plus when it can be sent again.
type GiftStatus struct {
	domain.Gift
	Locked     bool       `json:"locked"`
	UnlocksAt  *time.Time `json:"unlocks_at,omitempty"`
	Affordable bool       `json:"affordable"`
}

func (c *Companion) Gifts() []GiftStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	hearts := c.heart.Hearts().Total
	out := make([]GiftStatus, 0, len(c.catalog.Gifts))
	for _, g := range c.catalog.Gifts {
		st := GiftStatus{Gift: g, Affordable: hearts >= g.Cost}
		if c.giftLocks.Locked(g.ID, now) {
			until := c.giftLocks[g.ID]
			st.Locked = true
			st.UnlocksAt = &until
		}
		out = append(out, st)
	}
	return out
}

// Close waits for detached analyses to finish.
func (c *Companion) Close() {
	c.analyses.Wait()
}

// startAnalysis runs the behavior analyzer detached from the turn. The
// result only becomes visible to later turns.
func (c *Companion) startAnalysis(in llm.AnalysisPromptInput) {
	c.analyses.Add(1)
	go func() {
		defer c.analyses.Done()
		ctx, cancel := context.WithTimeout(context.Background(), AnalysisTimeout)
		defer cancel()
		result := c.analyzer.Analyze(ctx, in)

		c.mu.Lock()
		c.analysis = &result
		c.mu.Unlock()
		c.recordEmotion(ctx, result.InferredUserEmotion, 0.5+0.5*result.Confidence, "user: "+in.UserText)
	}()
}

// generateReply asks the oracle for a structured reply. Any failure yields
// fallback; the second return value reports that.
func (c *Companion) generateReply(ctx context.Context, prompt string, temperature float64, fallback domain.StructuredReply) (domain.StructuredReply, bool) {
	raw, err := c.oracle.Generate(ctx, prompt, domain.GenerateOptions{JSON: true, Temperature: temperature})
	if err != nil {
		c.logger.Warn("oracle call failed, using fallback reply", zap.Error(err))
		return fallback, true
	}
	obj := llm.DecodeObject(raw)
	if text, _ := obj["reply"].(string); strings.TrimSpace(text) == "" {
		c.logger.Warn("oracle reply unusable, using fallback", zap.Int("raw_len", len(raw)))
		return fallback, true
	}
	return domain.RepairReply(obj, fallback), false
}

// promptInputLocked collects the shared structured-reply prompt fields.
func (c *Companion) promptInputLocked(mood domain.Mood, userText string) llm.ChatPromptInput {
	band := domain.StageFor(c.relationship.Score)
	in := llm.ChatPromptInput{
		Persona:         c.cfg.Persona,
		Background:      c.cfg.Background,
		Stage:           band.Stage,
		Instructions:    c.events.OverrideTone(band.Tone) + "\n" + band.Instructions,
		Score:           c.relationship.Score,
		Chemistry:       c.relationship.Chemistry,
		Mood:            mood.Dominant,
		MoodExplanation: mood.Explanation,
		Needs:           c.needs.SummaryLine(),
		Style:           c.affect.StylePrefix(),
		UserText:        userText,
	}
	for _, ev := range c.events.Active() {
		in.LifeEvents = append(in.LifeEvents, llm.EventContext{
			Name:        ev.Name,
			Description: ev.Description,
			Tone:        ev.OverrideTone,
		})
	}
	if c.analysis != nil {
		if b, err := json.MarshalIndent(c.analysis, "", "  "); err == nil {
			in.LatestAnalysis = string(b)
		}
	}
	return in
}

// heartContext renders the best heart memories for text, reweighted toward
// importance.
func (c *Companion) heartContext(text string) string {
	hits := c.heart.Recall(text, heartRecallCandidates)
	type weighted struct {
		r domain.RecallResult
		w float64
	}
	ws := make([]weighted, len(hits))
	for i, h := range hits {
		imp := h.Importance
		if h.Kind != domain.MemoryKindEpisodic {
			imp = 0.5
		}
		ws[i] = weighted{h, 0.6*h.Score + 0.4*imp}
	}
	sort.SliceStable(ws, func(i, j int) bool { return ws[i].w > ws[j].w })
	if len(ws) > heartRecallKeep {
		ws = ws[:heartRecallKeep]
	}
	lines := make([]string, len(ws))
	for i, w := range ws {
		imp := w.r.Importance
		if w.r.Kind != domain.MemoryKindEpisodic {
			imp = 0.5
		}
		lines[i] = fmt.Sprintf("- %s (emotion:%s, imp:%.2f)", w.r.Text, orDefault(w.r.Emotion, "neutral"), imp)
	}
	return strings.Join(lines, "\n")
}

func (c *Companion) associativeContext(ctx context.Context, text string) string {
	hits, err := c.assoc.Search(ctx, text, DefaultAssociativeTopK)
	if err != nil {
		c.logger.Warn("associative recall failed", zap.Error(err))
		return ""
	}
	lines := make([]string, len(hits))
	for i, h := range hits {
		lines[i] = "- " + h.Text
	}
	return strings.Join(lines, "\n")
}

// afterRelationshipUpdateLocked runs the side effects of a relationship
// update: score quests, reflection and stage-change logging.
func (c *Companion) afterRelationshipUpdateLocked(ctx context.Context, upd domain.RelationshipUpdate) {
	if upd.StageChanged() {
		c.logger.Info("relationship stage changed",
			zap.String("from", string(upd.PreviousStage)),
			zap.String("to", string(upd.Stage)),
			zap.Int("tokens_awarded", upd.TokensAwarded))
	}
	completed := c.events.ApplyGoal(domain.GoalScore, GoalPayload{Score: c.relationship.Score})
	c.grantRewardsLocked(ctx, completed)

	if c.relationship.Score > reflectionMinScore && c.rnd.Float64() < reflectionChance {
		stage := domain.StageFor(c.relationship.Score).Stage
		if _, err := c.heart.AddSemantic(ctx, domain.SemanticFact{
			Fact:       domain.ReflectionThought(stage),
			Confidence: 0.8,
			Source:     "relationship",
		}); err != nil {
			c.logger.Warn("failed to persist reflection", zap.Error(err))
		}
	}
}

// grantRewardsLocked applies quest rewards: affect deltas, hearts, and one
// relationship point for chat quests.
func (c *Companion) grantRewardsLocked(ctx context.Context, completed []domain.ActiveLifeEvent) {
	for _, ev := range completed {
		c.affect.Apply(ev.Reward.Channels, 1)
		if ev.Reward.Hearts > 0 {
			c.addHeart(ctx, ev.Reward.Hearts, "quest completed: "+ev.Name)
		}
		if ev.Goal != nil && ev.Goal.Type == domain.GoalChat {
			c.relationship.AddScore(1)
			c.relationship.AwardStageTokens()
		}
	}
	if len(completed) > 0 {
		c.publishStateLocked()
	}
}

func (c *Companion) addEpisodic(ctx context.Context, e domain.EpisodicMemory) {
	if _, err := c.heart.AddEpisodic(ctx, e); err != nil {
		c.logger.Warn("failed to persist episodic memory", zap.Error(err))
	}
}

// recordEmotion feeds a reply or analysis label into the heart's running
// emotion levels. Labels the heart does not track are ignored.
// reinforceNeed must be called with c.mu held.
func (c *Companion) reinforceNeed(event domain.NeedEvent) {
	if err := c.needs.Reinforce(event); err != nil {
		c.logger.Warn("failed to reinforce need", zap.String("event", string(event)), zap.Error(err))
	}
}

func (c *Companion) recordEmotion(ctx context.Context, label string, intensity float64, trigger string) {
	emotion, ok := domain.TrackedEmotion(label)
	if !ok {
		return
	}
	ev := domain.EmotionEvent{Emotion: emotion, Intensity: intensity, Trigger: trigger}
	if _, err := c.heart.RecordEmotionEvent(ctx, ev); err != nil {
		c.logger.Warn("failed to persist emotion event", zap.String("emotion", emotion), zap.Error(err))
	}
}

func (c *Companion) addHeart(ctx context.Context, points int, reason string) int {
	total, err := c.heart.AddHeart(ctx, points, reason)
	if err != nil {
		c.logger.Warn("failed to persist hearts", zap.Error(err))
	}
	return total
}

func (c *Companion) logPrompt(ctx context.Context, prompt string) {
	if err := c.heart.LogPrompt(ctx, prompt); err != nil {
		c.logger.Warn("failed to persist prompt log", zap.Error(err))
	}
}

func (c *Companion) publishStateLocked() {
	c.publish(domain.NotifyStateUpdate, c.stateLocked())
}

func (c *Companion) publish(t domain.NotificationType, payload any) {
	c.pub.Publish(domain.Notification{Type: t, Timestamp: c.now(), Payload: payload})
}

func eventNames(evs []domain.ActiveLifeEvent) []string {
	if len(evs) == 0 {
		return nil
	}
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = ev.Name
	}
	return names
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
