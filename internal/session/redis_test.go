package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore(t *testing.T) {
	exerciseStore(t, newRedis(newFakeRedis()))
}

func TestRedisStoreTTLFollowsToken(t *testing.T) {
	fake := newFakeRedis()
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	st := newRedis(fake, WithRedisPrefix("t:"), WithRedisTTL(time.Hour))
	st.now = func() time.Time { return now }

	exp := now.Add(30 * time.Minute)
	require.NoError(t, st.Save(context.Background(), "a", Session{Token: signedToken(t, &exp)}))
	assert.Equal(t, 30*time.Minute, fake.ttls["t:a"])

	require.NoError(t, st.Save(context.Background(), "b", Session{Token: signedToken(t, nil)}))
	assert.Equal(t, time.Hour, fake.ttls["t:b"])
}
