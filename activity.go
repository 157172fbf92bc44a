package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup                   ActivityEventType = "account.signup"
	ActivityEventLoginSuccess             ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure             ActivityEventType = "auth.login.failure"
	ActivityEventPasswordChanged          ActivityEventType = "account.password.changed"
	ActivityEventPasswordRecovered        ActivityEventType = "account.password.recovered"
	ActivityEventPrimaryEmailChanged      ActivityEventType = "account.email.changed"
	ActivityEventPrimaryEmailConfirmed    ActivityEventType = "account.email.confirmed"
	ActivityEventOrganizationCreated      ActivityEventType = "organization.created"
	ActivityEventOrganizationDeleted      ActivityEventType = "organization.deleted"
	ActivityEventOrganizationMemberJoined ActivityEventType = "organization.member.joined"
	ActivityEventOrganizationRolesChanged ActivityEventType = "organization.member.roles"
	ActivityEventProjectCreated           ActivityEventType = "project.created"
	ActivityEventProjectMemberAdded       ActivityEventType = "project.member.added"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    string
	UserID     string
	EntityID   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
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

// LoggingActivitySink writes every event at info level.
func LoggingActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Info("activity %s actor=%s user=%s entity=%s", event.EventType, event.ActorID, event.UserID, event.EntityID)
		return nil
	})
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

// recordActivity stamps and records event. Sink failures are logged and
// never fail the operation.
func (d Deps) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = d.Now().UTC()
	}
	if err := d.Activity.Record(ctx, event); err != nil {
		d.Logger.Warn("failed to record activity %s: %v", event.EventType, err)
	}
}
