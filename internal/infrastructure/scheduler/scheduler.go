package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability"
	"github.com/Asmitha-Reddy2/Perfume-Kiosk-Prototype/internal/observability/logctx"
)

const componentScheduler = "dispense_scheduler"

// TimerScheduler runs each job on its own time.AfterFunc timer. Jobs live
// only in memory: Stop cancels whatever is still pending and logs it.
type TimerScheduler struct {
	mu      sync.Mutex
	pending map[uint64]job
	nextID  uint64
	stopped bool
	running sync.WaitGroup
	log     observability.Logger
}

type job struct {
	key   string
	due   time.Time
	timer *time.Timer
}

func New(logger observability.Logger) *TimerScheduler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &TimerScheduler{
		pending: make(map[uint64]job),
		log:     logger.With(observability.F("component", componentScheduler)),
	}
}

func (s *TimerScheduler) Schedule(ctx context.Context, key string, delay time.Duration, fn func(ctx context.Context)) {
	runCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		logctx.FromOr(ctx, s.log).Warn("dispense_completion_dropped",
			observability.F("key", key),
			observability.F("reason", "scheduler_stopped"),
		)
		return
	}

	s.nextID++
	id := s.nextID
	s.running.Add(1)
	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		defer s.running.Done()
		if !ok {
			return
		}
		fn(runCtx)
	})
	s.pending[id] = job{key: key, due: time.Now().Add(delay), timer: timer}
}

// Pending reports how many jobs have not fired yet.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels pending jobs and waits, until ctx expires, for running ones.
// It returns the keys of the cancelled jobs.
func (s *TimerScheduler) Stop(ctx context.Context) []string {
	s.mu.Lock()
	s.stopped = true
	dropped := make([]string, 0, len(s.pending))
	for id, j := range s.pending {
		if j.timer.Stop() {
			s.running.Done()
		}
		delete(s.pending, id)
		dropped = append(dropped, j.key)
		s.log.Warn("dispense_completion_dropped",
			observability.F("key", j.key),
			observability.F("due_in_ms", time.Until(j.due).Milliseconds()),
			observability.F("reason", "shutdown"),
		)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("dispense_scheduler_stop_timeout")
	}
	return dropped
}
