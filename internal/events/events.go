// Package events publishes domain events for record writes.
package events

import (
	"context"
	"strings"
	"time"

	"CrmAPI/internal/model"
)

// Topic actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

const TopicNewsletterSubscribed = "crm.newsletter.subscribed"

// Topic returns the subject for a write on entity, e.g. "crm.time_entry.created".
func Topic(entity, action string) string {
	return "crm." + snake(entity) + "." + action
}

// RecordCreated is published after a successful insert.
type RecordCreated struct {
	Entity string       `json:"entity"`
	Record model.Record `json:"record"`
	UserID int64        `json:"user_id,omitempty"`
	At     time.Time    `json:"at"`
}

type RecordUpdated struct {
	Entity  string         `json:"entity"`
	Record  model.Record   `json:"record"`
	Changes map[string]any `json:"changes"`
	UserID  int64          `json:"user_id,omitempty"`
	At      time.Time      `json:"at"`
}

type RecordDeleted struct {
	Entity string    `json:"entity"`
	ID     int64     `json:"id"`
	UserID int64     `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

type NewsletterSubscribed struct {
	ID    int64     `json:"id"`
	Email string    `json:"email"`
	Token string    `json:"token"`
	At    time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
