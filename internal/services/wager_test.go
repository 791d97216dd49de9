package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twod-ledger-backend/internal/models"
	"twod-ledger-backend/internal/services"
)

func wager(owner string, stake int64, numbers ...string) models.WagerRequest {
	return models.WagerRequest{Owner: owner, Numbers: numbers, StakePerNumber: stake}
}

func TestPlaceWagerCommitsDebitAndRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 1000)
		ctx := context.Background()

		receipt, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "05", "50"))
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.BatchID)
		assert.Equal(t, int64(200), receipt.Total)
		assert.Equal(t, int64(800), receipt.Balance)
		assert.Equal(t, models.SessionMorning, receipt.Session)
		assert.Equal(t, []string{"05", "50"}, receipt.Numbers)
		assert.False(t, receipt.Replayed)

		assert.Equal(t, int64(800), h.balance(t, "alice"))

		records, err := h.engine.Accounts.Wagers(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, records, 2)
		for i, rec := range records {
			assert.Equal(t, receipt.BatchID, rec.BatchID)
			assert.Equal(t, models.WagerStatusPending, rec.Status)
			assert.Equal(t, int64(100), rec.Stake)
			assert.Equal(t, 600, rec.PlacedAtMinutesOfDay)
			assert.Equal(t, receipt.Numbers[i], rec.Number)
		}

		txs, err := h.engine.Accounts.Transactions(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, models.TransactionTypeWagerDebit, txs[0].Type)
		assert.Equal(t, int64(-200), txs[0].Amount)
		assert.Equal(t, int64(1000), txs[0].BalanceBefore)
		assert.Equal(t, int64(800), txs[0].BalanceAfter)
		assert.Equal(t, receipt.BatchID, txs[0].Reference)
		assert.Equal(t, models.TransactionTypeAdminTopUp, txs[1].Type)
	})
}

func TestPlaceWagerDuplicateNumbersAreSeparateStakes(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	h.fund(t, "alice", 1000)

	receipt, err := h.engine.Wagers.PlaceWager(context.Background(), wager("alice", 100, "07", "07", "07"))
	require.NoError(t, err)
	assert.Equal(t, int64(300), receipt.Total)

	records, err := h.engine.Accounts.Wagers(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestPlaceWagerRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		req   models.WagerRequest
		want  error
	}{
		{
			name:  "morning settling gap",
			setup: func(h *harness) { h.clock.Set(mondayAt(12, 30)) },
			req:   wager("alice", 100, "12"),
			want:  services.ErrMarketClosed,
		},
		{
			name:  "overnight",
			setup: func(h *harness) { h.clock.Set(mondayAt(7, 59)) },
			req:   wager("alice", 100, "12"),
			want:  services.ErrMarketClosed,
		},
		{
			name:  "weekend",
			setup: func(h *harness) { h.clock.Set(mondayAt(10, 0).AddDate(0, 0, 5)) },
			req:   wager("alice", 100, "12"),
			want:  services.ErrMarketClosed,
		},
		{
			name: "closed market wins over bad stake",
			setup: func(h *harness) {
				h.clock.Set(mondayAt(16, 30))
			},
			req:  wager("alice", 1, "12"),
			want: services.ErrMarketClosed,
		},
		{
			name: "no numbers",
			req:  wager("alice", 100),
			want: services.ErrInvalidAmount,
		},
		{
			name: "stake below minimum",
			req:  wager("alice", 99, "12"),
			want: services.ErrInvalidAmount,
		},
		{
			name: "stake above maximum",
			req:  wager("alice", 100001, "12"),
			want: services.ErrInvalidAmount,
		},
		{
			name: "negative stake",
			req:  wager("alice", -100, "12"),
			want: services.ErrInvalidAmount,
		},
		{
			name: "malformed number",
			req:  wager("alice", 100, "12", "7"),
			want: services.ErrInvalidNumber,
		},
		{
			name:  "blocked number",
			setup: func(h *harness) { h.engine.Blocks.Add(context.Background(), "99") },
			req:   wager("alice", 100, "12", "99"),
			want:  services.ErrNumberBlocked,
		},
		{
			name: "insufficient balance",
			req:  wager("alice", 600, "12", "34"),
			want: services.ErrInsufficientBalance,
		},
		{
			name:  "bad stake wins over blocked number",
			setup: func(h *harness) { h.engine.Blocks.Add(context.Background(), "99") },
			req:   wager("alice", 50, "99"),
			want:  services.ErrInvalidAmount,
		},
		{
			name: "unknown owner",
			req:  wager("nobody", 100, "12"),
			want: services.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, services.NewMemoryStore())
			h.fund(t, "alice", 1000)
			if tt.setup != nil {
				tt.setup(h)
			}

			receipt, err := h.engine.Wagers.PlaceWager(context.Background(), tt.req)
			assert.Nil(t, receipt)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			assert.Equal(t, int64(1000), h.balance(t, "alice"))
			records, err := h.engine.Accounts.Wagers(context.Background(), "alice")
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestPlaceWagerBlockedNamesFirstBlockedNumber(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 1000)
		ctx := context.Background()
		require.NoError(t, h.engine.Blocks.Add(ctx, "99"))

		_, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12", "99"))

		var re *services.RejectError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, services.CodeNumberBlocked, re.Code)
		assert.Equal(t, "99", re.Number)
		assert.Equal(t, "NUMBER_BLOCKED(99)", err.Error())

		assert.Equal(t, int64(1000), h.balance(t, "alice"))
	})
}

func TestPlaceWagerMinimumStakeBoundary(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	h.fund(t, "alice", 1000)
	ctx := context.Background()

	_, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 99, "12"))
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	receipt, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12"))
	require.NoError(t, err)
	assert.Equal(t, int64(900), receipt.Balance)
}

func TestPlaceWagerRateLimitComesFirst(t *testing.T) {
	cfg := testConfig()
	cfg.BetRateLimit = 1
	h := newHarnessWithConfig(t, services.NewMemoryStore(), cfg)
	h.fund(t, "alice", 1000)
	ctx := context.Background()

	_, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12"))
	require.NoError(t, err)

	// market closed too, but the limiter answers first
	h.clock.Set(mondayAt(12, 30))
	_, err = h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12"))
	assert.ErrorIs(t, err, services.ErrSlowDown)

	// bob is counted separately
	h.fund(t, "bob", 1000)
	h.clock.Set(mondayAt(13, 30))
	_, err = h.engine.Wagers.PlaceWager(ctx, wager("bob", 100, "12"))
	assert.NoError(t, err)
}

func TestPlaceWagerSessionTagging(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	h.fund(t, "alice", 1000)
	ctx := context.Background()

	h.clock.Set(mondayAt(12, 14))
	receipt, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionMorning, receipt.Session)

	h.clock.Set(mondayAt(13, 0))
	receipt, err = h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "12"))
	require.NoError(t, err)
	assert.Equal(t, models.SessionEvening, receipt.Session)
}

func TestPlaceWagerIdempotencyKeyReplays(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		h.fund(t, "alice", 1000)
		ctx := context.Background()

		req := wager("alice", 100, "05", "50")
		req.IdempotencyKey = "retry-me"

		first, err := h.engine.Wagers.PlaceWager(ctx, req)
		require.NoError(t, err)

		// replays even after the market closes
		h.clock.Set(mondayAt(12, 30))
		second, err := h.engine.Wagers.PlaceWager(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.BatchID, second.BatchID)
		assert.Equal(t, first.Balance, second.Balance)

		assert.Equal(t, int64(800), h.balance(t, "alice"))
		records, err := h.engine.Accounts.Wagers(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, records, 2)

		// keys are per owner
		h.fund(t, "bob", 1000)
		h.clock.Set(mondayAt(10, 0))
		req.Owner = "bob"
		third, err := h.engine.Wagers.PlaceWager(ctx, req)
		require.NoError(t, err)
		assert.False(t, third.Replayed)
		assert.NotEqual(t, first.BatchID, third.BatchID)
	})
}

func TestPlaceWagerRejectsOversizedRequests(t *testing.T) {
	h := newHarness(t, services.NewMemoryStore())
	h.fund(t, "alice", 1000000)

	numbers := make([]string, services.MaxNumbersPerWager+1)
	for i := range numbers {
		numbers[i] = "11"
	}
	_, err := h.engine.Wagers.PlaceWager(context.Background(), wager("alice", 100, numbers...))
	assert.ErrorIs(t, err, services.ErrInvalidAmount)

	req := wager("alice", 100, "11")
	req.IdempotencyKey = string(make([]byte, 129))
	_, err = h.engine.Wagers.PlaceWager(context.Background(), req)
	assert.ErrorIs(t, err, services.ErrInvalidRequest)
}

func TestPlaceWagerConcurrentBalanceInvariant(t *testing.T) {
	forEachStore(t, func(t *testing.T, store services.Store) {
		h := newHarness(t, store)
		const initial = 5000
		h.fund(t, "alice", initial)
		ctx := context.Background()

		const workers = 40
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			committed int64
			batches   int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				receipt, err := h.engine.Wagers.PlaceWager(ctx, wager("alice", 100, "05", "50"))
				if err != nil {
					if !errors.Is(err, services.ErrInsufficientBalance) && !errors.Is(err, services.ErrConflict) {
						t.Errorf("unexpected error: %v", err)
					}
					return
				}
				mu.Lock()
				committed += receipt.Total
				batches++
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(initial)-committed, h.balance(t, "alice"))
		assert.GreaterOrEqual(t, h.balance(t, "alice"), int64(0))
		assert.LessOrEqual(t, committed, int64(initial))

		records, err := h.engine.Accounts.Wagers(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, records, 2*batches)
	})
}
