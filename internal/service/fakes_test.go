package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"CrmAPI/entities"
	"CrmAPI/internal/auth"
	"CrmAPI/internal/authz"
	"CrmAPI/internal/config"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
	"CrmAPI/internal/service/servicetest"
	"CrmAPI/internal/validation"
)

type nopLoader struct{ paths []string }

func (l *nopLoader) Load(_ context.Context, _ *model.Entity, _ []model.Record, paths []string) error {
	l.paths = paths
	return nil
}

type memBlobs struct {
	stored  map[string][]byte
	deleted []string
}

func (b *memBlobs) Put(_ context.Context, folder, filename string, body io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	p := folder + "/" + filename
	b.stored[p] = data
	return p, nil
}

func (b *memBlobs) Delete(_ context.Context, p string) error {
	b.deleted = append(b.deleted, p)
	delete(b.stored, p)
	return nil
}

type capturedEvent struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []capturedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{topic: topic, event: event})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.topic
	}
	return out
}

type memRevoker struct{ revoked []string }

func (r *memRevoker) Revoke(_ context.Context, ac auth.AuthContext) error {
	r.revoked = append(r.revoked, ac.TokenID)
	return nil
}

type harness struct {
	svc     *Service
	reg     *model.Registry
	repo    *servicetest.Repo
	blobs   *memBlobs
	pub     *recordingPublisher
	loader  *nopLoader
	revoker *memRevoker
	now     time.Time
}

var (
	admin   = auth.AuthContext{UserID: 1, Roles: []string{auth.RoleAdmin}, TokenID: "t-admin"}
	manager = auth.AuthContext{UserID: 2, Roles: []string{auth.RoleManager}}
	member  = auth.AuthContext{UserID: 5, Roles: []string{auth.RoleMember}, TokenID: "t-member"}
	anon    = auth.AuthContext{}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	reg, err := model.NewRegistry(entities.FS)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	enforcer, err := authz.NewEnforcer(authz.Config{})
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	issuer, err := auth.NewIssuer(config.JWTConfig{
		ValidationType: "HS256",
		HMACSecret:     "test-secret",
		Issuer:         "crm-api",
		Audience:       "crm-api",
	}, time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}

	h := &harness{
		reg:     reg,
		repo:    servicetest.NewRepo(),
		blobs:   &memBlobs{stored: map[string][]byte{}},
		pub:     &recordingPublisher{},
		loader:  &nopLoader{},
		revoker: &memRevoker{},
		now:     time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
	}
	h.svc = New(Deps{
		Registry:  reg,
		Repo:      h.repo,
		Authz:     enforcer,
		Validator: validation.New(reg, h.repo),
		Relations: h.loader,
		Blobs:     h.blobs,
		Events:    h.pub,
		Issuer:    issuer,
		Revoker:   h.revoker,
	}, Options{Pagination: query.Options{DefaultPerPage: 15, MaxPerPage: 100}, ExportMaxRows: 1000})
	h.svc.SetClock(func() time.Time { return h.now })

	users := reg.MustGet("User")
	for _, u := range []struct {
		id   int64
		role string
	}{{1, "admin"}, {2, "manager"}, {5, "member"}, {6, "member"}} {
		h.repo.Seed(users, model.Record{"id": u.id, "name": "user", "email": "u" + string(rune('0'+u.id)) + "@example.com", "role": u.role})
	}
	return h
}

func (h *harness) entity(name string) *model.Entity {
	return h.reg.MustGet(name)
}

func wantErr(t *testing.T, err, target error, message string) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
	if message != "" && err.Error() != message {
		t.Fatalf("message = %q, want %q", err.Error(), message)
	}
}
