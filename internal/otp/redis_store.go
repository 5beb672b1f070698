package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:v1:"

// verifyScript compares the stored digest and deletes it on match in one step.
// Returns 0 for missing, 1 for mismatch, 2 for success.
var verifyScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if not v then return 0 end
if v ~= ARGV[1] then return 1 end
redis.call('DEL', KEYS[1])
return 2
`)

// RedisStore keeps code digests in Redis with a key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed store. A non-positive ttl falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Issue stores the digest of a fresh code under recipient with the store TTL.
func (s *RedisStore) Issue(ctx context.Context, recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+recipient, digest(code), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify compares and deletes in one script so a code cannot be used twice.
func (s *RedisStore) Verify(ctx context.Context, recipient, candidate string) (Result, error) {
	n, err := verifyScript.Run(ctx, s.client, []string{redisKeyPrefix + recipient}, digest(candidate)).Int()
	if err != nil {
		return ResultNotFound, fmt.Errorf("verify otp: %w", err)
	}
	switch n {
	case 2:
		return ResultSuccess, nil
	case 1:
		return ResultMismatch, nil
	default:
		return ResultNotFound, nil
	}
}
