package credentials

import (
	"context"
	"errors"
	"time"

	"srvpanel/internal/utils"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// RedisStore shares secrets between panels through a redis instance. Keys are
// "<prefix><purpose>". Read failures are logged and treated as absence.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *utils.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string, logger *utils.Logger) *RedisStore {
	if prefix == "" {
		prefix = "srvpanel:credential:"
	}
	return &RedisStore{client: client, prefix: prefix, logger: logger}
}

// NewRedisClient opens a client for addr, as the node agents in this
// deployment do.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func (s *RedisStore) key(purpose Purpose) string {
	return s.prefix + string(purpose)
}

func (s *RedisStore) Get(purpose Purpose) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	secret, err := s.client.Get(ctx, s.key(purpose)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		s.logger.Writef("credential lookup for %s failed: %v", purpose, err)
		return "", false
	}
	return secret, true
}

func (s *RedisStore) Set(purpose Purpose, secret string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Set(ctx, s.key(purpose), secret, 0).Err()
}

func (s *RedisStore) Clear(purpose Purpose) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return s.client.Del(ctx, s.key(purpose)).Err()
}
