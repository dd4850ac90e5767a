package agent

import (
	"context"
	"time"
)

// CheckpointStore persists session state per thread. Load returns (nil, nil)
// when the thread has no checkpoint.
type CheckpointStore interface {
	Load(ctx context.Context, threadID string) (*SessionState, error)
	Save(ctx context.Context, threadID string, state *SessionState) error
}

// Locker serializes runs on the same thread.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

const (
	EventSessionStart           = "session_start"
	EventSessionEnd             = "session_end"
	EventError                  = "error"
	EventUsageThresholdExceeded = "usage_threshold_exceeded"
)

// EventSink receives session lifecycle events. Emit must not block the run
// on delivery failures.
type EventSink interface {
	Emit(ctx context.Context, eventType string, details map[string]interface{})
}
