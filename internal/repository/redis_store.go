package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"jertine-site/internal/domain"
)

const redisKeyPrefix = "ratelimit:"

// incrScript bumps the count while the window is open (ARGV[1] <= resetAt)
// and otherwise starts a new window ending at ARGV[2]. Both are unix ms.
var incrScript = redis.NewScript(`
local reset = redis.call('HGET', KEYS[1], 'resetAt')
if reset and tonumber(ARGV[1]) <= tonumber(reset) then
	local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
	return {count, reset}
end
redis.call('HSET', KEYS[1], 'count', 1, 'resetAt', ARGV[2])
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return {1, ARGV[2]}
`)

// RedisStore keeps one hash per client key and lets Redis expire it at the
// end of its window.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisStore{client: client}, nil
}

// RedisConfig holds connection settings for NewRedisClient.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient dials Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("repository: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("repository: redis ping: %w", err)
	}
	return client, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + key
}

func (s *RedisStore) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (domain.RateRecord, error) {
	reset := now.Add(window)
	vals, err := incrScript.Run(ctx, s.client, []string{redisKey(key)}, now.UnixMilli(), reset.UnixMilli()).Slice()
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("repository: redis incr %q: %w", key, err)
	}
	if len(vals) != 2 {
		return domain.RateRecord{}, fmt.Errorf("repository: redis incr %q: unexpected reply %v", key, vals)
	}
	count, err := strconv.Atoi(fmt.Sprint(vals[0]))
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("repository: redis decode count: %w", err)
	}
	resetMs, err := strconv.ParseInt(fmt.Sprint(vals[1]), 10, 64)
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("repository: redis decode resetAt: %w", err)
	}
	return domain.RateRecord{Count: count, ResetAt: time.UnixMilli(resetMs)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (domain.RateRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: redis get %q: %w", key, err)
	}
	if len(fields) == 0 {
		return domain.RateRecord{}, false, nil
	}
	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: redis decode count: %w", err)
	}
	resetMs, err := strconv.ParseInt(fields["resetAt"], 10, 64)
	if err != nil {
		return domain.RateRecord{}, false, fmt.Errorf("repository: redis decode resetAt: %w", err)
	}
	return domain.RateRecord{Count: count, ResetAt: time.UnixMilli(resetMs)}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, rec domain.RateRecord) error {
	k := redisKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, "count", rec.Count, "resetAt", rec.ResetAt.UnixMilli())
		pipe.PExpireAt(ctx, k, rec.ResetAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: redis set %q: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("repository: redis delete %q: %w", key, err)
	}
	return nil
}
