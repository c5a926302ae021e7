package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"CrmAPI/internal/domain"
)

// ErrNoToken means the request carried no bearer token.
var ErrNoToken = errors.New("no bearer token")

// Authenticator resolves the bearer token of a request into an AuthContext.
type Authenticator struct {
	validator *JWTValidator
	denylist  Denylist
}

func NewAuthenticator(v *JWTValidator, d Denylist) *Authenticator {
	if d == nil {
		d = noopDenylist{}
	}
	return &Authenticator{validator: v, denylist: d}
}

// Authenticate returns ErrNoToken when no token is present and an error wrapping
// domain.ErrUnauthenticated when the token is invalid or revoked.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (AuthContext, error) {
	token := BearerToken(r)
	if token == "" {
		return AuthContext{}, ErrNoToken
	}
	claims, err := a.validator.ValidateToken(token)
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	ac, err := claims.Identity()
	if err != nil {
		return AuthContext{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	revoked, err := a.denylist.IsRevoked(ctx, ac.TokenID)
	if err != nil {
		return AuthContext{}, err
	}
	if revoked {
		return AuthContext{}, fmt.Errorf("%w: token revoked", domain.ErrUnauthenticated)
	}
	return ac, nil
}

// Revoke adds the caller's token to the denylist.
func (a *Authenticator) Revoke(ctx context.Context, ac AuthContext) error {
	return a.denylist.Revoke(ctx, ac.TokenID, ac.ExpiresAt)
}

func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
