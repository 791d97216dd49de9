package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
)

type AccountService struct {
	store       Store
	retry       RetryPolicy
	clock       Clock
	adminHandle string
	notifier    Notifier
	log         *zap.Logger
}

func NewAccountService(store Store, retry RetryPolicy, clock Clock, adminHandle string, notifier Notifier, log *zap.Logger) *AccountService {
	if clock == nil {
		clock = SystemClock{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		store:       store,
		retry:       retry,
		clock:       clock,
		adminHandle: adminHandle,
		notifier:    notifier,
		log:         log,
	}
}

// loadAccount reads an account and the version later commits condition on.
func loadAccount(ctx context.Context, store Store, handle string) (*models.Account, int64, error) {
	var acct models.Account
	ver, err := getJSON(ctx, store, fmt.Sprintf(KeyAccount, handle), &acct)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, &RejectError{Code: CodeAccountNotFound, Detail: handle}
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get account %s: %w", handle, err)
	}
	return &acct, ver, nil
}

// balanceChange moves acct's balance by delta and returns the account and
// transaction writes that must commit together.
func balanceChange(acct *models.Account, txType models.TransactionType, delta int64, reference, description string, now time.Time) ([]Mutation, *models.Transaction, error) {
	before := acct.Balance
	after := before + delta
	if after < 0 {
		return nil, nil, &RejectError{Code: CodeInsufficientBalance, Detail: fmt.Sprintf("have %d, need %d", before, -delta)}
	}

	acct.Balance = after
	acct.UpdatedAt = now

	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(),
		Handle:        acct.Handle,
		Type:          txType,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     reference,
		Description:   description,
		CreatedAt:     now,
	}

	acctMut, err := putJSON(fmt.Sprintf(KeyAccount, acct.Handle), acct, 0)
	if err != nil {
		return nil, nil, err
	}
	txMut, err := putJSON(fmt.Sprintf(KeyTransaction, acct.Handle, tx.ID), tx, TTLTransaction)
	if err != nil {
		return nil, nil, err
	}
	return []Mutation{acctMut, txMut}, tx, nil
}

func (s *AccountService) Get(ctx context.Context, handle string) (*models.Account, error) {
	acct, _, err := loadAccount(ctx, s.store, handle)
	return acct, err
}

// Register creates a zero-balance account. The admin handle is reserved.
func (s *AccountService) Register(ctx context.Context, handle string) (*models.Account, error) {
	if err := models.ValidateHandle(handle); err != nil {
		return nil, &RejectError{Code: CodeInvalidRequest, Detail: err.Error()}
	}
	if handle == s.adminHandle {
		return nil, reject(CodeAccountExists, "%s is reserved", handle)
	}
	return s.create(ctx, handle, models.RoleUser, 0)
}

// EnsureAdmin seeds the admin account once; an existing account is left as is.
func (s *AccountService) EnsureAdmin(ctx context.Context, seedBalance int64) (*models.Account, error) {
	acct, err := s.create(ctx, s.adminHandle, models.RoleAdmin, seedBalance)
	if errors.Is(err, ErrAccountExists) {
		return s.Get(ctx, s.adminHandle)
	}
	return acct, err
}

func (s *AccountService) create(ctx context.Context, handle string, role models.Role, balance int64) (*models.Account, error) {
	now := s.clock.Now()
	acct := &models.Account{
		Handle:    handle,
		Balance:   balance,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m, err := putJSON(fmt.Sprintf(KeyAccount, handle), acct, 0)
	if err != nil {
		return nil, err
	}

	err = s.store.Commit(ctx, []Check{{Key: m.Key, Version: 0}}, []Mutation{m})
	if errors.Is(err, ErrVersionConflict) {
		return nil, reject(CodeAccountExists, "%s", handle)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", handle, err)
	}

	s.log.Info("account created", zap.String("handle", handle), zap.String("role", string(role)), zap.Int64("balance", balance))
	return acct, nil
}

// TopUp credits an account on behalf of an admin. A non-empty
// idempotencyKey makes the credit apply once; a repeat returns the account
// as it stood right after the first credit.
func (s *AccountService) TopUp(ctx context.Context, handle string, amount int64, reference, idempotencyKey string) (*models.Account, error) {
	if amount <= 0 {
		return nil, reject(CodeInvalidAmount, "top-up amount must be positive, got %d", amount)
	}
	if len(idempotencyKey) > maxIdempotencyKeyLen {
		return nil, reject(CodeInvalidRequest, "idempotency key longer than %d", maxIdempotencyKeyLen)
	}

	idemKey := ""
	if idempotencyKey != "" {
		idemKey = fmt.Sprintf(KeyTopUpIdem, handle, idempotencyKey)
	}

	var (
		result   *models.Account
		replayed bool
	)
	err := s.retry.Do(ctx, "topup", func(ctx context.Context) error {
		if idemKey != "" {
			var prior models.Account
			_, err := getJSON(ctx, s.store, idemKey, &prior)
			if err == nil {
				result, replayed = &prior, true
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return fmt.Errorf("failed to read top-up receipt: %w", err)
			}
		}

		acct, ver, err := loadAccount(ctx, s.store, handle)
		if err != nil {
			return err
		}
		muts, _, err := balanceChange(acct, models.TransactionTypeAdminTopUp, amount, reference, "admin top-up", s.clock.Now())
		if err != nil {
			return err
		}
		checks := []Check{{Key: fmt.Sprintf(KeyAccount, handle), Version: ver}}
		if idemKey != "" {
			m, err := putJSON(idemKey, acct, TTLIdempotency)
			if err != nil {
				return err
			}
			muts = append(muts, m)
			checks = append(checks, Check{Key: idemKey, Version: 0})
		}
		if err := s.store.Commit(ctx, checks, muts); err != nil {
			return err
		}
		result = acct
		return nil
	})
	if errors.Is(err, ErrVersionConflict) {
		return nil, reject(CodeConflict, "top-up for %s lost repeated races", handle)
	}
	if err != nil {
		return nil, err
	}
	if replayed {
		s.log.Info("top-up replayed", zap.String("handle", handle), zap.String("idempotency_key", idempotencyKey))
		return result, nil
	}

	s.log.Info("account topped up", zap.String("handle", handle), zap.Int64("amount", amount), zap.Int64("balance", result.Balance))
	s.notifier.NotifyBalance(handle, result.Balance)
	return result, nil
}

// Transactions returns up to limit of the account's transactions, newest first.
func (s *AccountService) Transactions(ctx context.Context, handle string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, err := s.store.List(ctx, fmt.Sprintf(KeyOwnerTxns, handle))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]models.Transaction, 0, len(entries))
	for _, e := range entries {
		var tx models.Transaction
		if err := json.Unmarshal(e.Value, &tx); err != nil {
			continue
		}
		txs = append(txs, tx)
	}

	// ids are time-ordered, so they break ties within one clock reading
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Wagers returns the owner's wager records in placement order.
func (s *AccountService) Wagers(ctx context.Context, owner string) ([]models.WagerRecord, error) {
	entries, err := s.store.List(ctx, fmt.Sprintf(KeyOwnerWagers, owner))
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}

	wagers := make([]models.WagerRecord, 0, len(entries))
	for _, e := range entries {
		var w models.WagerRecord
		if err := json.Unmarshal(e.Value, &w); err != nil {
			continue
		}
		wagers = append(wagers, w)
	}
	return wagers, nil
}

// CleanupSettled deletes the owner's WIN and LOSE records. A record is only
// removed if it is unchanged since it was read, so nothing PENDING goes.
func (s *AccountService) CleanupSettled(ctx context.Context, owner string) (int, error) {
	entries, err := s.store.List(ctx, fmt.Sprintf(KeyOwnerWagers, owner))
	if err != nil {
		return 0, fmt.Errorf("failed to list wagers: %w", err)
	}

	removed := 0
	for _, e := range entries {
		var w models.WagerRecord
		if err := json.Unmarshal(e.Value, &w); err != nil || w.IsPending() {
			continue
		}
		err := s.store.Commit(ctx, []Check{{Key: e.Key, Version: e.Version}}, []Mutation{{Key: e.Key, Delete: true}})
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", e.Key, err)
		}
		removed++
	}
	return removed, nil
}
