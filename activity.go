package social

import (
	"context"
	"time"
)

// ActivityEventType enumerates account lifecycle events.
type ActivityEventType string

const (
	ActivityEventAccountConnected     ActivityEventType = "social.account.connected"
	ActivityEventAccountRefreshed     ActivityEventType = "social.account.refreshed"
	ActivityEventAccountRefreshFailed ActivityEventType = "social.account.refresh_failed"
	ActivityEventAccountDisconnected  ActivityEventType = "social.account.disconnected"
	ActivityEventAuthFailed           ActivityEventType = "social.auth.failed"
)

// ActivityEvent captures audit friendly information about an account action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Platform   Platform
	AccountID  string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing purposes.
// Sinks are best effort, a failing sink never fails the operation.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
