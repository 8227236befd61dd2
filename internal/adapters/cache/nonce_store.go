package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brickbid/brickbid/internal/domain/accounts"
)

const nonceKeyPrefix = "auth:nonce:"

// RedisNonceStore implements accounts.NonceStore on Redis. Nonces expire
// with the key TTL and are consumed with GETDEL, so each challenge can be
// answered at most once.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore creates a new Redis-backed nonce store
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Save stores the nonce for a wallet address, replacing any previous one
func (s *RedisNonceStore) Save(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error {
	if err := s.client.Set(ctx, nonceKeyPrefix+walletAddress, nonce, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store nonce: %w", err)
	}
	return nil
}

// Consume retrieves and deletes the nonce for a wallet address
func (s *RedisNonceStore) Consume(ctx context.Context, walletAddress string) (string, error) {
	nonce, err := s.client.GetDel(ctx, nonceKeyPrefix+walletAddress).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", accounts.ErrNonceNotFound
		}
		return "", fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nonce, nil
}
