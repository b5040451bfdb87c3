package orm

import (
	"context"
	"time"
)

// Clock provides the current time. Implementations can return fixed
// times for deterministic testing.
type Clock interface {
	Now() time.Time
}

type clockKey struct{}

// WithClock returns a child context carrying the given Clock.
// Create and Update read it when touching Timestamp fields.
func WithClock(ctx context.Context, c Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, c)
}

func now(ctx context.Context) time.Time {
	if c, ok := ctx.Value(clockKey{}).(Clock); ok {
		return c.Now()
	}
	return time.Now()
}

// TimestampTrigger selects when a Timestamp is set automatically.
type TimestampTrigger int

const (
	// TimestampCreate sets the field on insert unless it already holds a
	// value.
	TimestampCreate TimestampTrigger = iota + 1
	// TimestampUpdate sets the field on insert and on every update.
	TimestampUpdate
)

// Timestamp is a time field maintained by Create and Update.
type Timestamp struct {
	Field[time.Time]
	trigger TimestampTrigger
}

func NewTimestamp(key string, trigger TimestampTrigger) Timestamp {
	return Timestamp{Field: NewField[time.Time](key), trigger: trigger}
}

// Touch sets the field to now if its trigger applies to the write. A create
// timestamp the caller already set is kept.
func (ts *Timestamp) Touch(now time.Time, creating bool) {
	switch ts.trigger {
	case TimestampUpdate:
		ts.Set(now)
	case TimestampCreate:
		if _, ok := ts.Lookup(); creating && !ok {
			ts.Set(now)
		}
	}
}

type toucher interface {
	Touch(now time.Time, creating bool)
}

var _ toucher = (*Timestamp)(nil)
