package config

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"hermandad.org/internal/session"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenSessionStore builds the configured session backend. The closer
// releases its connection and is never nil.
func (c Config) OpenSessionStore(ctx context.Context) (session.Store, io.Closer, error) {
	switch c.Session.Store {
	case StoreFile:
		dir := c.Session.Dir
		if dir == "" {
			d, err := session.DefaultDir()
			if err != nil {
				return nil, nil, err
			}
			dir = d
		}
		st, err := session.NewFile(dir)
		if err != nil {
			return nil, nil, err
		}
		return st, nopCloser{}, nil
	case StoreRedis:
		rdb, err := c.NewRedisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		st := session.NewRedis(rdb, session.WithRedisPrefix(c.Redis.Prefix), session.WithRedisTTL(c.Session.TTL))
		return st, rdb, nil
	case StorePostgres:
		st, err := session.OpenPostgres(c.Session.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	default:
		return session.NewMemory(), nopCloser{}, nil
	}
}

// NewRedisClient connects to Redis and pings it with a short timeout.
func (c Config) NewRedisClient(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", c.Redis.Addr, err)
	}
	return rdb, nil
}
