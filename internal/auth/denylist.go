package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the token would have expired anyway.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// NewDenylist returns a Redis backed denylist, or one that never revokes when client is nil.
func NewDenylist(client *redis.Client) Denylist {
	if client == nil {
		return noopDenylist{}
	}
	return &redisDenylist{client: client, now: time.Now}
}

const revokedPrefix = "crm:revoked:"

type redisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

func (d *redisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, revokedPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (d *redisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	err := d.client.Get(ctx, revokedPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return true, nil
}

type noopDenylist struct{}

func (noopDenylist) Revoke(context.Context, string, time.Time) error  { return nil }
func (noopDenylist) IsRevoked(context.Context, string) (bool, error) { return false, nil }
