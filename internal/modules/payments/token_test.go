package payments

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSource_CachesUntilSkew(t *testing.T) {
	var calls atomic.Int32
	now := time.Unix(1_760_000_000, 0)
	src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		n := calls.Add(1)
		return "tok-" + string(rune('0'+n)), time.Hour, nil
	}, time.Minute)
	src.now = func() time.Time { return now }

	tok, err := src.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	now = now.Add(58 * time.Minute)
	tok, _ = src.ValidToken(context.Background())
	assert.Equal(t, "tok-1", tok)

	now = now.Add(time.Minute) // inside the skew window
	tok, _ = src.ValidToken(context.Background())
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenSource_ConcurrentCallersShareRefresh(t *testing.T) {
	var calls atomic.Int32
	src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "shared", time.Hour, nil
	}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := src.ValidToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "shared", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenSource_FetchErrorIsReturned(t *testing.T) {
	boom := transient("token", errors.New("connection refused"))
	src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) { return "", 0, boom }, 0)

	_, err := src.ValidToken(context.Background())
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestTokenSource_InvalidateForcesRefresh(t *testing.T) {
	var calls atomic.Int32
	src := NewTokenSource(func(ctx context.Context) (string, time.Duration, error) {
		calls.Add(1)
		return "t", time.Hour, nil
	}, 0)

	_, _ = src.ValidToken(context.Background())
	src.Invalidate()
	_, _ = src.ValidToken(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

type memCache struct {
	mu    sync.Mutex
	token string
	ttl   time.Duration
	sets  int
}

func (m *memCache) Get(ctx context.Context) (string, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.ttl, nil
}

func (m *memCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.ttl = token, ttl
	m.sets++
	return nil
}

func TestTokenSource_SharedCache(t *testing.T) {
	cache := &memCache{}
	var calls atomic.Int32
	fetch := func(ctx context.Context) (string, time.Duration, error) {
		calls.Add(1)
		return "from-provider", time.Hour, nil
	}

	a := NewTokenSource(fetch, time.Minute).WithCache(cache)
	b := NewTokenSource(fetch, time.Minute).WithCache(cache)

	tok, err := a.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-provider", tok)

	tok, err = b.ValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-provider", tok)

	assert.Equal(t, int32(1), calls.Load(), "second instance reuses the cached token")
	assert.Equal(t, 1, cache.sets)
}

func TestRedisTokenCache(t *testing.T) {
	var (
		mu      sync.Mutex
		store   = map[string]string{}
		expires = map[string]int64{}
	)
	stub := radix.Stub("tcp", "127.0.0.1:6379", func(args []string) interface{} {
		mu.Lock()
		defer mu.Unlock()
		switch args[0] {
		case "GET":
			v, ok := store[args[1]]
			if !ok {
				return nil
			}
			return v
		case "PTTL":
			if _, ok := store[args[1]]; !ok {
				return int64(-2)
			}
			return expires[args[1]]
		case "PSETEX":
			store[args[1]] = args[3]
			var ms int64
			for _, c := range args[2] {
				ms = ms*10 + int64(c-'0')
			}
			expires[args[1]] = ms
			return "OK"
		}
		return errors.New("unexpected command " + args[0])
	})

	c := NewRedisTokenCache(stub, "")
	tok, ttl, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Zero(t, ttl)

	require.NoError(t, c.Set(context.Background(), "abc", 30*time.Minute))

	tok, ttl, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)
	assert.Equal(t, 30*time.Minute, ttl)
}
