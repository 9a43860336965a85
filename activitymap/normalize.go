// Package activitymap turns social account activity into a flat record for
// audit logs and feeds.
package activitymap

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-social"
)

const (
	// MetadataKeyPlatform stores the platform the event relates to.
	MetadataKeyPlatform = "platform"
	// MetadataKeyPlatformName stores the display name of the platform.
	MetadataKeyPlatformName = "platform_name"
)

const (
	defaultChannel    = "social"
	defaultObjectType = "social_account"
	defaultActorID    = "system"
)

// Normalized is a transport agnostic activity shape.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(social.ActivityEvent) string
	now              func() time.Time
}

// Normalize converts a social.ActivityEvent. The account ID becomes the
// object ID; events without one (failed auth) fall back to the platform.
func Normalize(event social.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// Sink adapts fn into a social.ActivitySink that receives normalized records.
func Sink(fn func(ctx context.Context, record Normalized) error, opts ...Option) social.ActivitySink {
	return social.ActivitySinkFunc(func(ctx context.Context, event social.ActivityEvent) error {
		return fn(ctx, Normalize(event, opts...))
	})
}

func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object ID extraction.
func WithObjectIDResolver(resolver func(social.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor ID used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if actorID = strings.TrimSpace(actorID); actorID != "" {
			opts.actorFallback = actorID
		}
	}
}

// WithClock sets the clock used for events without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func resolveObjectID(event social.ActivityEvent, resolver func(social.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if id := strings.TrimSpace(event.AccountID); id != "" {
		return id
	}
	return string(event.Platform)
}

func normalizeMetadata(event social.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if event.Platform != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyPlatform]; !exists {
			metadata[MetadataKeyPlatform] = string(event.Platform)
		}
		metadata[MetadataKeyPlatformName] = event.Platform.DisplayName()
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
