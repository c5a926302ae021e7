package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/logger"
	"CrmAPI/internal/model"
)

const msgInvalidCredentials = "Invalid credentials."

// Me returns the caller's user record.
func (s *Service) Me(ctx context.Context, ac auth.AuthContext) (model.Record, error) {
	if !ac.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	return s.repo.Find(ctx, s.entity(entityUser), ac.UserID)
}

// Login checks email and password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (map[string]any, error) {
	if s.issuer == nil {
		return nil, errors.New("login is disabled: no token issuer configured")
	}
	email = strings.TrimSpace(email)
	verr := domain.NewValidationError()
	if email == "" {
		verr.Add("email", "The email field is required.")
	}
	if password == "" {
		verr.Add("password", "The password field is required.")
	}
	if !verr.Empty() {
		return nil, verr
	}

	e := s.entity(entityUser)
	user, err := s.repo.FirstBy(ctx, e, map[string]any{"email": email})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	hash, _ := user["password"].(string)
	if !auth.CheckPassword(hash, password) {
		logger.WarnCtx(ctx, "login_failed", map[string]any{"user_id": user["id"]})
		return nil, domain.Unauthenticated(msgInvalidCredentials)
	}

	role, _ := user["role"].(string)
	if role == "" {
		role = auth.RoleMember
	}
	token, err := s.issuer.Issue(recordID(user), []string{role})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	for _, f := range e.Fields {
		if f.Hidden {
			delete(user, f.Name)
		}
	}
	logger.InfoCtx(ctx, "login", map[string]any{"user_id": user["id"]})
	return map[string]any{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int64(s.issuer.TTL().Seconds()),
		"user":       user,
	}, nil
}

// Logout revokes the caller's token until it expires.
func (s *Service) Logout(ctx context.Context, ac auth.AuthContext) error {
	if !ac.Authenticated() {
		return domain.ErrUnauthenticated
	}
	if s.revoker == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, ac); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
