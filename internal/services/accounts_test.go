package services_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

func TestRegister(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		ctx := context.Background()

		acct, err := h.engine.Accounts.Register(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", acct.Handle)
		assert.Zero(t, acct.Balance)
		assert.Equal(t, models.RoleUser, acct.Role)

		_, err = h.engine.Accounts.Register(ctx, "alice")
		assert.ErrorIs(t, err, services.ErrAccountExists)

		_, err = h.engine.Accounts.Register(ctx, "admin")
		assert.ErrorIs(t, err, services.ErrAccountExists)

		_, err = h.engine.Accounts.Register(ctx, "Bad Handle")
		assert.ErrorIs(t, err, services.ErrInvalidRequest)

		_, err = h.engine.Accounts.Get(ctx, "nobody")
		assert.ErrorIs(t, err, services.ErrAccountNotFound)
	})
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	ctx := context.Background()

	admin, err := h.engine.Accounts.EnsureAdmin(ctx, 1000000)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, int64(1000000), admin.Balance)

	_, err = h.engine.Accounts.TopUp(ctx, "admin", 5, "test", "")
	require.NoError(t, err)

	// a restart does not reseed
	admin, err = h.engine.Accounts.EnsureAdmin(ctx, 1000000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000005), admin.Balance)
}

func TestTopUp(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 0)
		ctx := context.Background()

		acct, err := h.engine.Accounts.TopUp(ctx, "alice", 2500, "cash-in #1", "")
		require.NoError(t, err)
		assert.Equal(t, int64(2500), acct.Balance)

		_, err = h.engine.Accounts.TopUp(ctx, "alice", 0, "", "")
		assert.ErrorIs(t, err, services.ErrInvalidAmount)
		_, err = h.engine.Accounts.TopUp(ctx, "alice", -5, "", "")
		assert.ErrorIs(t, err, services.ErrInvalidAmount)
		_, err = h.engine.Accounts.TopUp(ctx, "nobody", 5, "", "")
		assert.ErrorIs(t, err, services.ErrAccountNotFound)

		txs, err := h.engine.Accounts.Transactions(ctx, "alice", 0)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, models.TransactionTypeAdminTopUp, txs[0].Type)
		assert.Equal(t, int64(2500), txs[0].Amount)
		assert.Equal(t, "cash-in #1", txs[0].Reference)
	})
}

func TestTopUpIdempotencyKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 0)
		ctx := context.Background()

		first, err := h.engine.Accounts.TopUp(ctx, "alice", 500, "cash-in", "deposit-7")
		require.NoError(t, err)
		assert.Equal(t, int64(500), first.Balance)

		// a retry after an unknown outcome does not credit again
		again, err := h.engine.Accounts.TopUp(ctx, "alice", 500, "cash-in", "deposit-7")
		require.NoError(t, err)
		assert.Equal(t, int64(500), again.Balance)
		assert.Equal(t, int64(500), h.balance(t, "alice"))

		_, err = h.engine.Accounts.TopUp(ctx, "alice", 500, "cash-in", "deposit-8")
		require.NoError(t, err)
		assert.Equal(t, int64(1000), h.balance(t, "alice"))

		// keys are scoped to the credited account
		h.fund(t, "bob", 0)
		_, err = h.engine.Accounts.TopUp(ctx, "bob", 300, "cash-in", "deposit-7")
		require.NoError(t, err)
		assert.Equal(t, int64(300), h.balance(t, "bob"))

		txs, err := h.engine.Accounts.Transactions(ctx, "alice", 0)
		require.NoError(t, err)
		assert.Len(t, txs, 2)

		_, err = h.engine.Accounts.TopUp(ctx, "alice", 500, "", strings.Repeat("k", 129))
		assert.ErrorIs(t, err, services.ErrInvalidRequest)
		assert.Equal(t, int64(1000), h.balance(t, "alice"))
	})
}

func TestTopUpIdempotencyKeyConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 0)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				acct, err := h.engine.Accounts.TopUp(ctx, "alice", 250, "cash-in", "deposit-9")
				if assert.NoError(t, err) {
					assert.Equal(t, int64(250), acct.Balance)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(250), h.balance(t, "alice"))
	})
}

func TestCleanupSettledKeepsPending(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	h.fund(t, "alice", 1000)
	ctx := context.Background()

	_, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "01", "02"))
	require.NoError(t, err)
	h.clock.Set(mondayAt(13, 30))
	_, err = h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "03"))
	require.NoError(t, err)

	h.clock.Set(mondayAt(12, 30))
	_, err = h.engine.Settlement.Settle(ctx, "01", models.SessionMorning, 80)
	require.NoError(t, err)

	removed, err := h.engine.Accounts.CleanupSettled(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err := h.engine.Accounts.Wagers(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "03", records[0].Number)
	assert.True(t, records[0].IsPending())
}

func TestJWTService(t *testing.T) {
	svc, err := services.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := svc.Issue("alice", models.RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Handle)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	other, err := services.NewJWTService("other-secret", time.Hour)
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = svc.Validate("not-a-token")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	_, err = services.NewJWTService("", time.Hour)
	assert.Error(t, err)
}

func TestJWTServiceRejectsExpiredTokens(t *testing.T) {
	svc, err := services.NewJWTService("test-secret", -time.Hour)
	require.NoError(t, err)
	// a non-positive ttl falls back to a day
	token, err := svc.Issue("bob", models.RoleUser)
	require.NoError(t, err)
	_, err = svc.Validate(token)
	require.NoError(t, err)

	short, err := services.NewJWTService("test-secret", time.Nanosecond)
	require.NoError(t, err)
	token, err = short.Issue("bob", models.RoleUser)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = short.Validate(token)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
