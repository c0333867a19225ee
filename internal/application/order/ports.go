package order

import (
	"context"
	"time"
)

type IDGenerator interface {
	NewID() string
}

// Clock is injected so expiry and timestamps are testable.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time.
func SystemClock() Clock { return ClockFunc(time.Now) }

// Scheduler runs fn once after delay. key identifies the pending job (the
// order id) for logging on shutdown. fn receives a context detached from the
// caller's cancellation but carrying its values.
type Scheduler interface {
	Schedule(ctx context.Context, key string, delay time.Duration, fn func(ctx context.Context))
}
