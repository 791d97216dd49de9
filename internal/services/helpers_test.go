package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"twod-ledger-backend/internal/config"
	"twod-ledger-backend/internal/services"
)

var yangon = time.FixedZone("MMT", 6*3600+30*60)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// mondayAt is 2026-10-19, a Monday, at hh:mm market time.
func mondayAt(hour, minute int) time.Time {
	return time.Date(2026, 10, 19, hour, minute, 0, 0, yangon)
}

func testConfig() *config.Config {
	return &config.Config{
		Env:              "memory",
		AdminHandle:      "admin",
		AdminSeedBalance: 1000000,
		Timezone:         "Asia/Yangon",
		MinStake:         100,
		MaxStake:         100000,
		PayoutMultiplier: 80,
		BetRateLimit:     1000,
		BetRateWindow:    time.Minute,
		AdminRateLimit:   1000,
		AdminRateWindow:  time.Minute,
		RetryAttempts:    10,
		RetryMinInterval: time.Millisecond,
		RetryMaxInterval: 5 * time.Millisecond,
	}
}

func newRedisStore(t *testing.T) (*services.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := services.NewRedisStoreFromClient(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

// forEachStore runs fn against the in-memory store and against a
// miniredis-backed RedisStore.
func forEachStore(t *testing.T, fn func(t *testing.T, store services.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, services.NewMemoryStore())
	})
	t.Run("redis", func(t *testing.T) {
		store, _ := newRedisStore(t)
		fn(t, store)
	})
}

type harness struct {
	store  services.Store
	clock  *stubClock
	engine *services.Engine
}

func newHarness(t *testing.T, store services.Store) *harness {
	t.Helper()
	return newHarnessWithConfig(t, store, testConfig())
}

func newHarnessWithConfig(t *testing.T, store services.Store, cfg *config.Config) *harness {
	t.Helper()
	clock := &stubClock{now: mondayAt(10, 0)}
	return &harness{
		store:  store,
		clock:  clock,
		engine: services.NewEngine(cfg, store, clock, nil, nil, nil),
	}
}

// fund registers handle and tops it up to balance.
func (h *harness) fund(t *testing.T, handle string, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := h.engine.Accounts.Register(ctx, handle)
	require.NoError(t, err)
	if balance > 0 {
		_, err = h.engine.Accounts.TopUp(ctx, handle, balance, "test", "")
		require.NoError(t, err)
	}
}

func (h *harness) balance(t *testing.T, handle string) int64 {
	t.Helper()
	acct, err := h.engine.Accounts.Get(context.Background(), handle)
	require.NoError(t, err)
	return acct.Balance
}
