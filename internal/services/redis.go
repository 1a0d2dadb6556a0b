package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	reconcileLockTTL   = 30 * time.Second
	processedMarkerTTL = 7 * 24 * time.Hour
)

// releaseLock deletes the lock only if we still own it.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache provides caching and locking on top of Redis.
// It implements IdempotencyGuard for the reconciler.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache client
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Println("Redis connection established")
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

func processedKey(externalID string) string {
	return "coursepay:processed:" + externalID
}

func lockKey(externalID string) string {
	return "coursepay:lock:" + externalID
}

// IsProcessed reports whether the payment was already reconciled by any instance.
func (c *RedisCache) IsProcessed(ctx context.Context, externalID string) (bool, error) {
	return c.Exists(ctx, processedKey(externalID))
}

func (c *RedisCache) MarkProcessed(ctx context.Context, externalID string) error {
	return c.client.Set(ctx, processedKey(externalID), time.Now().UTC().Format(time.RFC3339), processedMarkerTTL).Err()
}

// Acquire takes a short-lived per-payment lock. The returned release func is safe to call
// after the lock expired.
func (c *RedisCache) Acquire(ctx context.Context, externalID string) (func(), bool, error) {
	token := uuid.NewString()
	key := lockKey(externalID)

	ok, err := c.client.SetNX(ctx, key, token, reconcileLockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLock.Run(ctx, c.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Printf("Failed to release lock %s: %v", key, err)
		}
	}
	return release, true, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
