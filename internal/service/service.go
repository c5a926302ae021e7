// Package service runs the record operations behind the HTTP API: authorization,
// validation, persistence, eager loading and event publishing.
package service

import (
	"context"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/events"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/metrics"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
)

// Entity names with bespoke behaviour.
const (
	entityUser       = "User"
	entityTimeEntry  = "TimeEntry"
	entitySubscriber = "NewsletterSubscriber"
)

type Options struct {
	Pagination    query.Options
	ExportMaxRows int
}

// Deps are the collaborators of a Service. Issuer and Revoker may be nil, which
// disables login and makes logout a no-op.
type Deps struct {
	Registry  *model.Registry
	Repo      Repository
	Authz     Authorizer
	Validator RecordValidator
	Relations RelationLoader
	Blobs     BlobStore
	Events    events.Publisher
	Issuer    TokenIssuer
	Revoker   TokenRevoker
}

type Service struct {
	reg       *model.Registry
	repo      Repository
	authz     Authorizer
	validator RecordValidator
	relations RelationLoader
	blobs     BlobStore
	events    events.Publisher
	issuer    TokenIssuer
	revoker   TokenRevoker
	opts      Options
	now       func() time.Time
}

func New(d Deps, opts Options) *Service {
	pub := d.Events
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	return &Service{
		reg:       d.Registry,
		repo:      d.Repo,
		authz:     d.Authz,
		validator: d.Validator,
		relations: d.Relations,
		blobs:     d.Blobs,
		events:    pub,
		issuer:    d.Issuer,
		revoker:   d.Revoker,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source; tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Registry() *model.Registry { return s.reg }

// LoginEnabled reports whether tokens can be issued.
func (s *Service) LoginEnabled() bool { return s.issuer != nil }

func (s *Service) entity(name string) *model.Entity {
	return s.reg.MustGet(name)
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.events.Publish(ctx, topic, event); err != nil {
		metrics.EventPublishFailed(topic)
		logger.WarnCtx(ctx, "event_publish_error", map[string]any{
			"topic": topic,
			"error": err.Error(),
		})
	}
}

func (s *Service) created(ctx context.Context, ac auth.AuthContext, e *model.Entity, rec model.Record) {
	metrics.RecordWrite(e.Name, events.ActionCreated)
	s.publish(ctx, events.Topic(e.Name, events.ActionCreated), events.RecordCreated{
		Entity: e.Name, Record: rec, UserID: ac.UserID, At: s.now(),
	})
}

func (s *Service) updated(ctx context.Context, ac auth.AuthContext, e *model.Entity, rec model.Record, changes model.Record) {
	metrics.RecordWrite(e.Name, events.ActionUpdated)
	diff := make(map[string]any, len(changes))
	for k, v := range changes {
		if f := e.Field(k); f != nil && f.Hidden {
			continue
		}
		diff[k] = v
	}
	s.publish(ctx, events.Topic(e.Name, events.ActionUpdated), events.RecordUpdated{
		Entity: e.Name, Record: rec, Changes: diff, UserID: ac.UserID, At: s.now(),
	})
}

func (s *Service) deleted(ctx context.Context, ac auth.AuthContext, e *model.Entity, id int64) {
	metrics.RecordWrite(e.Name, events.ActionDeleted)
	s.publish(ctx, events.Topic(e.Name, events.ActionDeleted), events.RecordDeleted{
		Entity: e.Name, ID: id, UserID: ac.UserID, At: s.now(),
	})
}

func copyPayload(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func recordID(rec model.Record) int64 {
	switch v := rec["id"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
