package service

import (
	"context"
	"io"
	"time"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/model"
	"CrmAPI/internal/query"
	"CrmAPI/internal/validation"

	"github.com/Masterminds/squirrel"
)

// Repository is the record store. *store.Store satisfies it.
type Repository interface {
	List(ctx context.Context, d query.Descriptor) ([]model.Record, int64, error)
	Select(ctx context.Context, e *model.Entity, sb squirrel.SelectBuilder) ([]model.Record, error)
	Find(ctx context.Context, e *model.Entity, id int64) (model.Record, error)
	FindFull(ctx context.Context, e *model.Entity, id int64) (model.Record, error)
	FirstBy(ctx context.Context, e *model.Entity, match map[string]any) (model.Record, error)
	Exists(ctx context.Context, e *model.Entity, match map[string]any, exceptID int64) (bool, error)
	Insert(ctx context.Context, e *model.Entity, rec model.Record) (model.Record, error)
	Update(ctx context.Context, e *model.Entity, id int64, rec model.Record) (model.Record, error)
	Delete(ctx context.Context, e *model.Entity, id int64) error
	Statistics(ctx context.Context, d query.Descriptor, cfg *model.StatisticsConfig) (map[string]any, error)
}

// Authorizer checks a (role, entity, action) triple. *authz.Enforcer satisfies it.
type Authorizer interface {
	Authorize(ctx context.Context, ac auth.AuthContext, entity, action string) error
}

// RecordValidator converts a payload into a storable record. *validation.Validator satisfies it.
type RecordValidator interface {
	Validate(ctx context.Context, e *model.Entity, payload map[string]any, id int64, mode validation.Mode) (model.Record, error)
}

// RelationLoader attaches eager-loaded relations. *resolver.Resolver satisfies it.
type RelationLoader interface {
	Load(ctx context.Context, e *model.Entity, items []model.Record, paths []string) error
}

// BlobStore persists uploaded files. blob.Store satisfies it.
type BlobStore interface {
	Put(ctx context.Context, folder, filename string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}

// TokenIssuer signs access tokens. *auth.Issuer satisfies it.
type TokenIssuer interface {
	Issue(userID int64, roles []string) (string, error)
	TTL() time.Duration
}

// TokenRevoker invalidates the caller's token. *auth.Authenticator satisfies it.
type TokenRevoker interface {
	Revoke(ctx context.Context, ac auth.AuthContext) error
}
