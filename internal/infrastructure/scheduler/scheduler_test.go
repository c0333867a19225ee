package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxKey struct{}

func TestScheduleRunsOnceWithDetachedContext(t *testing.T) {
	s := New(nil)
	var calls atomic.Int32
	var value atomic.Value

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "request"))
	s.Schedule(ctx, "o-1", 5*time.Millisecond, func(ctx context.Context) {
		calls.Add(1)
		value.Store(ctx.Value(ctxKey{}))
		assert.NoError(t, ctx.Err())
	})
	cancel()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "request", value.Load())
	assert.Equal(t, 0, s.Pending())
	assert.Empty(t, s.Stop(context.Background()))
}

func TestStopDropsPendingJobs(t *testing.T) {
	s := New(nil)
	var calls atomic.Int32
	s.Schedule(context.Background(), "o-1", time.Hour, func(context.Context) { calls.Add(1) })
	s.Schedule(context.Background(), "o-2", time.Hour, func(context.Context) { calls.Add(1) })
	assert.Equal(t, 2, s.Pending())

	dropped := s.Stop(context.Background())
	assert.ElementsMatch(t, []string{"o-1", "o-2"}, dropped)
	assert.Equal(t, 0, s.Pending())

	s.Schedule(context.Background(), "o-3", time.Millisecond, func(context.Context) { calls.Add(1) })
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStopWaitsForRunningJob(t *testing.T) {
	s := New(nil)
	started := make(chan struct{})
	var finished atomic.Bool
	s.Schedule(context.Background(), "o-1", 0, func(context.Context) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})
	<-started
	s.Stop(context.Background())
	assert.True(t, finished.Load())
}
