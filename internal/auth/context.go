// Package auth validates bearer tokens and carries the caller identity.
package auth

import (
	"context"
	"slices"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// AuthContext is the authenticated caller. The zero value is anonymous.
type AuthContext struct {
	UserID    int64
	Roles     []string
	TokenID   string
	ExpiresAt time.Time
}

func (a AuthContext) Authenticated() bool { return a.UserID > 0 }

func (a AuthContext) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

func (a AuthContext) IsAdmin() bool { return a.HasRole(RoleAdmin) }

// Owns reports whether ownerID (as stored on a record) is the caller.
func (a AuthContext) Owns(ownerID any) bool {
	switch v := ownerID.(type) {
	case int64:
		return a.Authenticated() && v == a.UserID
	case int:
		return a.Authenticated() && int64(v) == a.UserID
	}
	return false
}

type contextKey string

const authContextKey contextKey = "auth_context"

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext returns the anonymous AuthContext when none was attached.
func FromContext(ctx context.Context) AuthContext {
	ac, _ := ctx.Value(authContextKey).(AuthContext)
	return ac
}
