package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

const (
	DefaultRoutineInterval = 60 * time.Second
	DefaultSweepInterval   = 30 * time.Second
	DefaultProactiveDelay  = 3 * time.Minute
	DefaultProactiveJitter = 4 * time.Minute

	workerRunTimeout = 90 * time.Second
)

// RoutinePoster announces routine activity changes.
type RoutinePoster interface {
	PostRoutineActivity(ctx context.Context, activity string, hm domain.ClockTime) (domain.StructuredReply, error)
}

// Sweeper prunes and announces life events.
type Sweeper interface {
	Sweep(ctx context.Context)
}

// ProactiveSender sends unprompted messages.
type ProactiveSender interface {
	Proactive(ctx context.Context) (string, bool)
}

// RoutineWorker ticks the routine clock and posts activity changes. The
// first tick runs as soon as the worker starts.
type RoutineWorker struct {
	clock  *RoutineClock
	poster RoutinePoster
	logger *zap.Logger
	now    func() time.Time

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRoutineWorker(clock *RoutineClock, poster RoutinePoster, logger *zap.Logger) *RoutineWorker {
	return &RoutineWorker{
		clock:    clock,
		poster:   poster,
		logger:   logger,
		now:      time.Now,
		interval: DefaultRoutineInterval,
		stopCh:   make(chan struct{}),
	}
}

func (w *RoutineWorker) SetInterval(d time.Duration) {
	w.interval = d
}

func (w *RoutineWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.logger.Info("routine worker started",
			zap.Duration("interval", w.interval),
			zap.String("mode", string(w.clock.Mode())))

		w.run()
		for {
			select {
			case <-ticker.C:
				w.run()
			case <-w.stopCh:
				w.logger.Info("routine worker stopped")
				return
			}
		}
	}()
}

func (w *RoutineWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *RoutineWorker) run() {
	activity, hm, changed := w.clock.Tick(w.now())
	if !changed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), workerRunTimeout)
	defer cancel()
	if _, err := w.poster.PostRoutineActivity(ctx, activity, hm); err != nil {
		w.logger.Error("failed to post routine activity", zap.String("activity", activity), zap.Error(err))
	}
}

// EventSweeper periodically prunes expired life events and announces new
// ones.
type EventSweeper struct {
	sweeper Sweeper
	logger  *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewEventSweeper(sweeper Sweeper, logger *zap.Logger) *EventSweeper {
	return &EventSweeper{
		sweeper:  sweeper,
		logger:   logger,
		interval: DefaultSweepInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *EventSweeper) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *EventSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("life event sweeper started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), workerRunTimeout)
				s.sweeper.Sweep(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("life event sweeper stopped")
				return
			}
		}
	}()
}

func (s *EventSweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// ProactiveWorker fires after a random delay in [delay, delay+jitter) and
// re-arms after every run.
type ProactiveWorker struct {
	sender ProactiveSender
	rnd    domain.RandSource
	logger *zap.Logger

	delay  time.Duration
	jitter time.Duration
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewProactiveWorker(sender ProactiveSender, rnd domain.RandSource, logger *zap.Logger) *ProactiveWorker {
	return &ProactiveWorker{
		sender: sender,
		rnd:    rnd,
		logger: logger,
		delay:  DefaultProactiveDelay,
		jitter: DefaultProactiveJitter,
		stopCh: make(chan struct{}),
	}
}

// SetInterval sets the minimum delay and the random spread above it.
func (w *ProactiveWorker) SetInterval(delay, jitter time.Duration) {
	w.delay = delay
	w.jitter = jitter
}

func (w *ProactiveWorker) next() time.Duration {
	if w.jitter <= 0 {
		return w.delay
	}
	return w.delay + time.Duration(w.rnd.Float64()*float64(w.jitter))
}

func (w *ProactiveWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		timer := time.NewTimer(w.next())
		defer timer.Stop()

		w.logger.Info("proactive worker started",
			zap.Duration("delay", w.delay),
			zap.Duration("jitter", w.jitter))

		for {
			select {
			case <-timer.C:
				ctx, cancel := context.WithTimeout(context.Background(), workerRunTimeout)
				if _, sent := w.sender.Proactive(ctx); sent {
					w.logger.Debug("proactive message delivered")
				}
				cancel()
				timer.Reset(w.next())
			case <-w.stopCh:
				w.logger.Info("proactive worker stopped")
				return
			}
		}
	}()
}

func (w *ProactiveWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}
