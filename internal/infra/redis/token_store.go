package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore keeps revoked token ids in Redis so every instance rejects them.
// Keys expire together with the token they block.
type TokenStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client, clock: time.Now}
}

func (s *TokenStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(tokenID), "1", ttl).Err()
}

func (s *TokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *TokenStore) key(tokenID string) string {
	return "auth:revoked:" + tokenID
}
