package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "hermandad:session:"
	defaultRedisTTL    = 12 * time.Hour
)

// redisCmds is the subset of redis.Cmdable the store needs.
type redisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores sessions as JSON values that expire with the token.
type Redis struct {
	rdb    redisCmds
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type RedisOption func(*Redis)

func WithRedisPrefix(p string) RedisOption {
	return func(r *Redis) {
		if p != "" {
			r.prefix = p
		}
	}
}

// WithRedisTTL sets the expiry used for tokens that carry no exp claim.
func WithRedisTTL(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func NewRedis(rdb redis.Cmdable, opts ...RedisOption) *Redis {
	return newRedis(rdb, opts...)
}

func newRedis(rdb redisCmds, opts ...RedisOption) *Redis {
	r := &Redis{rdb: rdb, prefix: defaultRedisPrefix, ttl: defaultRedisTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Load(ctx context.Context, key string) (Session, error) {
	if err := validKey(key); err != nil {
		return Session{}, err
	}
	raw, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session: decode %s: %w", key, err)
	}
	return s, nil
}

func (r *Redis) Save(ctx context.Context, key string, s Session) error {
	if err := validKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(key), raw, ttl(s, r.now(), r.ttl)).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}
