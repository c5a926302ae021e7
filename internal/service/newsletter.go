package service

import (
	"context"
	"errors"
	"strings"

	"CrmAPI/internal/auth"
	"CrmAPI/internal/domain"
	"CrmAPI/internal/events"
	"CrmAPI/internal/idgen"
	"CrmAPI/internal/model"
	"CrmAPI/internal/validation"
)

const (
	msgInvalidToken     = "Invalid or expired token"
	msgAlreadyConfirmed = "Subscription is already confirmed."
)

// Subscribe registers an unconfirmed subscriber with a fresh confirmation token.
func (s *Service) Subscribe(ctx context.Context, payload map[string]any) (model.Record, error) {
	e := s.entity(entitySubscriber)
	payload = copyPayload(payload)
	delete(payload, "confirmed")

	rec, err := s.validator.Validate(ctx, e, payload, 0, validation.Create)
	if err != nil {
		return nil, err
	}
	token, err := idgen.Token()
	if err != nil {
		return nil, err
	}
	rec["token"] = token
	rec["confirmed"] = false

	stored, err := s.repo.Insert(ctx, e, rec)
	if err != nil {
		return nil, s.writeError(e, err)
	}
	s.created(ctx, auth.AuthContext{}, e, stored)

	email, _ := stored["email"].(string)
	s.publish(ctx, events.TopicNewsletterSubscribed, events.NewsletterSubscribed{
		ID: recordID(stored), Email: email, Token: token, At: s.now(),
	})
	return stored, nil
}

// Confirm marks the subscriber holding token as confirmed.
func (s *Service) Confirm(ctx context.Context, token string) (model.Record, error) {
	e := s.entity(entitySubscriber)
	token = strings.TrimSpace(token)
	if token == "" {
		verr := domain.NewValidationError()
		verr.Add("token", "The token field is required.")
		return nil, verr
	}
	sub, err := s.repo.FirstBy(ctx, e, map[string]any{"token": token})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundMessage(msgInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	// 404 is only for tokens that match no subscriber. A token that matches an
	// already confirmed subscriber reports the state clash as 409.
	if confirmed, _ := sub["confirmed"].(bool); confirmed {
		return nil, domain.Conflict(msgAlreadyConfirmed)
	}

	rec := model.Record{"confirmed": true, "confirmed_at": s.now()}
	stored, err := s.repo.Update(ctx, e, recordID(sub), rec)
	if err != nil {
		return nil, err
	}
	s.updated(ctx, auth.AuthContext{}, e, stored, rec)
	return stored, nil
}

// Unsubscribe deletes a subscriber. An admin may delete any subscriber; anyone else
// must present the subscriber's token.
func (s *Service) Unsubscribe(ctx context.Context, ac auth.AuthContext, id int64, token string) error {
	e := s.entity(entitySubscriber)
	if ac.IsAdmin() {
		return s.destroy(ctx, ac, e, id)
	}
	if token == "" {
		if !ac.Authenticated() {
			return domain.ErrUnauthenticated
		}
		return domain.Forbidden("")
	}
	sub, err := s.repo.FindFull(ctx, e, id)
	if err != nil {
		return err
	}
	if stored, _ := sub["token"].(string); stored == "" || stored != token {
		if !ac.Authenticated() {
			return domain.ErrUnauthenticated
		}
		return domain.Forbidden("")
	}
	return s.destroy(ctx, ac, e, id)
}
