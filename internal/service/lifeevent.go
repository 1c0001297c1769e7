package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/catalog"
	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/store"
)

// GoalPayload carries action details a goal handler may need.
type GoalPayload struct {
	Score float64
}

// GoalHandler advances one matching event and reports whether this call
// completed it.
type GoalHandler func(ev *domain.ActiveLifeEvent, p GoalPayload) bool

func incrementGoal(ev *domain.ActiveLifeEvent, _ GoalPayload) bool {
	return ev.Advance()
}

func scoreGoal(ev *domain.ActiveLifeEvent, p GoalPayload) bool {
	return ev.SetProgress(int(math.Floor(p.Score)))
}

// LifeEventScheduler walks the catalog's life paths stage by stage, spawns
// events into the active set and tracks quest goals on them.
type LifeEventScheduler struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	state   domain.LifeEventState
	goals   map[domain.GoalType]GoalHandler

	store  domain.SnapshotStore
	pub    domain.Publisher
	rnd    domain.RandSource
	logger *zap.Logger
	now    func() time.Time
}

func NewLifeEventScheduler(cat *catalog.Catalog, s domain.SnapshotStore, pub domain.Publisher, rnd domain.RandSource, logger *zap.Logger) *LifeEventScheduler {
	sch := &LifeEventScheduler{
		catalog: cat,
		state: domain.LifeEventState{
			Position: domain.SchedulerPosition{Used: make(map[string]bool)},
		},
		goals:  make(map[domain.GoalType]GoalHandler),
		store:  s,
		pub:    pub,
		rnd:    rnd,
		logger: logger,
		now:    time.Now,
	}
	for _, t := range []domain.GoalType{
		domain.GoalChat, domain.GoalLikePost, domain.GoalComment, domain.GoalHeartCollect, domain.GoalGift,
	} {
		sch.goals[t] = incrementGoal
	}
	sch.goals[domain.GoalScore] = scoreGoal
	return sch
}

// RegisterGoal installs or replaces the handler for a goal type.
func (s *LifeEventScheduler) RegisterGoal(t domain.GoalType, h GoalHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[t] = h
}

func (s *LifeEventScheduler) Restore(ctx context.Context) error {
	var st domain.LifeEventState
	if err := s.store.Load(ctx, domain.KeyLifeEvents, &st); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore life events: %w", err)
	}
	if st.Position.Used == nil {
		st.Position.Used = make(map[string]bool)
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return nil
}

func (s *LifeEventScheduler) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ctx, domain.KeyLifeEvents, s.state); err != nil {
		return fmt.Errorf("save life events: %w", err)
	}
	return nil
}

// MaybeSpawn spawns at most one unused event of the current stage whose
// window contains hm, with the given probability. When the stage has no
// unused events left it advances the stage, or the path, instead of
// spawning; once every path is done it does nothing.
func (s *LifeEventScheduler) MaybeSpawn(probability float64, hm domain.ClockTime) (domain.ActiveLifeEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := &s.state.Position
	if pos.Exhausted {
		return domain.ActiveLifeEvent{}, false
	}
	if s.rnd.Float64() >= probability {
		return domain.ActiveLifeEvent{}, false
	}
	if pos.PathIndex >= len(s.catalog.Paths) {
		pos.Exhausted = true
		return domain.ActiveLifeEvent{}, false
	}
	path := s.catalog.Paths[pos.PathIndex]
	if pos.StageIndex >= len(path.Stages) {
		s.advance()
		return domain.ActiveLifeEvent{}, false
	}
	stage := path.Stages[pos.StageIndex]

	var unused, eligible []string
	for _, name := range stage.Events {
		if pos.Used[name] {
			continue
		}
		unused = append(unused, name)
		def, _ := s.catalog.Definition(name)
		if def.Window == nil || def.Window.Contains(hm) {
			eligible = append(eligible, name)
		}
	}

	if len(eligible) > 0 {
		name := eligible[s.rnd.IntN(len(eligible))]
		pos.Used[name] = true
		def, _ := s.catalog.Definition(name)
		ev := s.trigger(def)
		s.logger.Info("life event spawned",
			zap.String("event", name),
			zap.String("path", path.Name),
			zap.String("stage", stage.Name),
			zap.Time("expires_at", ev.ExpiresAt))
		return *ev, true
	}
	if len(unused) == 0 {
		s.advance()
	}
	return domain.ActiveLifeEvent{}, false
}

// advance moves to the next stage, then the next path. Must hold s.mu.
func (s *LifeEventScheduler) advance() {
	pos := &s.state.Position
	pos.StageIndex++
	pos.Used = make(map[string]bool)

	if pos.StageIndex < len(s.catalog.Paths[pos.PathIndex].Stages) {
		s.logger.Info("life stage advanced",
			zap.String("path", s.catalog.Paths[pos.PathIndex].Name),
			zap.String("stage", s.catalog.Paths[pos.PathIndex].Stages[pos.StageIndex].Name))
		return
	}
	if pos.PathIndex+1 < len(s.catalog.Paths) {
		from := s.catalog.Paths[pos.PathIndex].Name
		pos.PathIndex++
		pos.StageIndex = 0
		s.logger.Info("life path transitioned",
			zap.String("from", from),
			zap.String("to", s.catalog.Paths[pos.PathIndex].Name))
		return
	}
	pos.Exhausted = true
	s.logger.Info("all life paths exhausted, no more events")
}

// trigger instantiates def into the active set, replacing an active event of
// the same name in place. Must hold s.mu.
func (s *LifeEventScheduler) trigger(def domain.LifeEventDefinition) *domain.ActiveLifeEvent {
	dur := def.Duration
	if dur <= 0 {
		dur = domain.DefaultEventDuration
	}
	now := s.now()
	ev := &domain.ActiveLifeEvent{
		ID:                  uuid.New(),
		LifeEventDefinition: def,
		StartedAt:           now,
		ExpiresAt:           now.Add(dur),
		Status:              domain.EventActive,
	}
	for i, cur := range s.state.Active {
		if cur.Name == def.Name {
			s.state.Active[i] = ev
			return ev
		}
	}
	s.state.Active = append(s.state.Active, ev)
	return ev
}

// Force spawns name regardless of eligibility. An empty name picks a random
// defined event.
func (s *LifeEventScheduler) Force(name string) (domain.ActiveLifeEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		names := s.catalog.DefinitionNames()
		if len(names) == 0 {
			return domain.ActiveLifeEvent{}, ErrUnknownLifeEvent
		}
		name = names[s.rnd.IntN(len(names))]
	}
	def, ok := s.catalog.Definition(name)
	if !ok {
		return domain.ActiveLifeEvent{}, fmt.Errorf("%w: %s", ErrUnknownLifeEvent, name)
	}
	ev := s.trigger(def)
	s.logger.Info("life event forced", zap.String("event", name))
	return *ev, nil
}

// Prune drops every event past its expiry, completed or not, and returns
// the dropped names.
func (s *LifeEventScheduler) Prune() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var removed []string
	kept := s.state.Active[:0]
	for _, ev := range s.state.Active {
		if ev.Expired(now) {
			removed = append(removed, ev.Name)
			continue
		}
		kept = append(kept, ev)
	}
	s.state.Active = kept
	if len(removed) > 0 {
		s.logger.Debug("life events expired", zap.Strings("events", removed))
	}
	return removed
}

// ApplyEffects adds every active event's effects to v, unscaled. It runs on
// every chat turn and every sweep for as long as the event stays active.
func (s *LifeEventScheduler) ApplyEffects(v domain.AffectVector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.state.Active {
		v.Apply(ev.Effects, 1)
	}
}

// OverrideTone returns the override of the most recently inserted active
// event, or base when nothing is active.
func (s *LifeEventScheduler) OverrideTone(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.Active) == 0 {
		return base
	}
	return "[OVERRIDE: " + s.state.Active[len(s.state.Active)-1].OverrideTone + "]"
}

// Active returns copies of the active events in insertion order.
func (s *LifeEventScheduler) Active() []domain.ActiveLifeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ActiveLifeEvent, len(s.state.Active))
	for i, ev := range s.state.Active {
		out[i] = *ev
	}
	return out
}

func (s *LifeEventScheduler) Position() domain.SchedulerPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.state.Position
	pos.Used = make(map[string]bool, len(s.state.Position.Used))
	for k, v := range s.state.Position.Used {
		pos.Used[k] = v
	}
	return pos
}

// ApplyGoal runs the handler for t against every active event whose goal
// has that type. Progress and completion are published as they happen. The
// returned events completed during this call and have not been rewarded
// before; the caller grants their rewards.
func (s *LifeEventScheduler) ApplyGoal(t domain.GoalType, p GoalPayload) []domain.ActiveLifeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completed []domain.ActiveLifeEvent
	for _, ev := range s.state.Active {
		if ev.Status != domain.EventActive || ev.Goal == nil || ev.Goal.Type != t {
			continue
		}
		handler, ok := s.goals[t]
		if !ok {
			s.logger.Warn("no goal handler for action", zap.String("goal", string(t)), zap.String("event", ev.Name))
			continue
		}
		done := handler(ev, p)
		s.logger.Debug("quest progress",
			zap.String("event", ev.Name),
			zap.Int("progress", ev.Progress),
			zap.Int("amount", ev.Goal.Amount))
		s.publish(domain.NotifyQuestProgress, questProgress(ev))

		if !done || ev.Rewarded {
			continue
		}
		ev.Rewarded = true
		s.logger.Info("quest completed", zap.String("event", ev.Name), zap.String("goal", string(t)))
		qp := questProgress(ev)
		reward := ev.Reward
		qp.Reward = &reward
		s.publish(domain.NotifyQuestCompleted, qp)
		completed = append(completed, *ev)
	}
	return completed
}

// TakeUnannounced marks every active event that has not yet been shown as a
// quest card or feed post and returns them. Each event is returned at most
// once per kind.
func (s *LifeEventScheduler) TakeUnannounced() (quests, posts []domain.ActiveLifeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.state.Active {
		if !ev.AlreadyQuested {
			ev.AlreadyQuested = true
			quests = append(quests, *ev)
		}
		if !ev.AlreadyPosted {
			ev.AlreadyPosted = true
			posts = append(posts, *ev)
		}
	}
	return quests, posts
}

func (s *LifeEventScheduler) publish(t domain.NotificationType, payload any) {
	s.pub.Publish(domain.Notification{Type: t, Timestamp: s.now(), Payload: payload})
}

func questProgress(ev *domain.ActiveLifeEvent) domain.QuestProgress {
	return domain.QuestProgress{
		EventID:   ev.ID,
		Event:     ev.Name,
		Title:     domain.HumanizeEventName(ev.Name),
		Goal:      *ev.Goal,
		Progress:  ev.Progress,
		Status:    ev.Status,
		Completed: ev.Status == domain.EventCompleted,
	}
}

// QuestCardFor renders the quest announcement of an active event.
func QuestCardFor(ev domain.ActiveLifeEvent) domain.QuestCard {
	card := domain.QuestCard{
		ID:           ev.ID,
		Event:        ev.Name,
		Title:        domain.HumanizeEventName(ev.Name),
		Description:  ev.Description,
		Progress:     ev.Progress,
		Status:       ev.Status,
		Reward:       ev.Reward,
		Timeout:      ev.Timeout,
		Effects:      ev.Effects,
		OverrideTone: ev.OverrideTone,
	}
	if ev.Goal != nil {
		card.Goal = *ev.Goal
	}
	return card
}
