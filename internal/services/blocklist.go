package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"twod-ledger-backend/internal/models"
)

type BlockPosition string

const (
	BlockHead BlockPosition = "head"
	BlockTail BlockPosition = "tail"
)

var ErrUnknownBlockOp = errors.New("unknown block list operation")

// BlockList is the admin-maintained set of numbers that cannot be bet on.
// Mutations are independent writes; a failed batch may be partially applied.
type BlockList struct {
	store Store
	log   *zap.Logger
}

func NewBlockList(store Store, log *zap.Logger) *BlockList {
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockList{store: store, log: log}
}

func (b *BlockList) IsBlocked(ctx context.Context, number string) (bool, error) {
	_, err := b.store.Get(ctx, fmt.Sprintf(KeyBlock, number))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FirstBlocked returns the first of numbers on the block list, or "".
func (b *BlockList) FirstBlocked(ctx context.Context, numbers []string) (string, error) {
	for _, n := range numbers {
		blocked, err := b.IsBlocked(ctx, n)
		if err != nil {
			return "", err
		}
		if blocked {
			return n, nil
		}
	}
	return "", nil
}

func (b *BlockList) Add(ctx context.Context, number string) error {
	if err := models.ValidateNumber(number); err != nil {
		return &RejectError{Code: CodeInvalidNumber, Number: number, Detail: err.Error()}
	}
	if err := b.store.Put(ctx, fmt.Sprintf(KeyBlock, number), []byte("1"), 0); err != nil {
		return fmt.Errorf("failed to block %s: %w", number, err)
	}
	b.log.Info("number blocked", zap.String("number", number))
	return nil
}

// AddRange blocks the ten numbers that carry digit in the head (tens) or
// tail (units) position.
func (b *BlockList) AddRange(ctx context.Context, digit string, pos BlockPosition) ([]string, error) {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return nil, reject(CodeInvalidNumber, "range digit %q must be 0-9", digit)
	}

	numbers := make([]string, 0, 10)
	for d := '0'; d <= '9'; d++ {
		switch pos {
		case BlockHead:
			numbers = append(numbers, digit+string(d))
		case BlockTail:
			numbers = append(numbers, string(d)+digit)
		default:
			return nil, fmt.Errorf("%w: position %q", ErrUnknownBlockOp, pos)
		}
	}

	for i, n := range numbers {
		if err := b.Add(ctx, n); err != nil {
			return numbers[:i], err
		}
	}
	return numbers, nil
}

func (b *BlockList) Remove(ctx context.Context, number string) error {
	if err := models.ValidateNumber(number); err != nil {
		return &RejectError{Code: CodeInvalidNumber, Number: number, Detail: err.Error()}
	}
	if err := b.store.Delete(ctx, fmt.Sprintf(KeyBlock, number)); err != nil {
		return fmt.Errorf("failed to unblock %s: %w", number, err)
	}
	b.log.Info("number unblocked", zap.String("number", number))
	return nil
}

func (b *BlockList) Clear(ctx context.Context) error {
	numbers, err := b.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range numbers {
		if err := b.store.Delete(ctx, fmt.Sprintf(KeyBlock, n)); err != nil {
			return fmt.Errorf("failed to unblock %s: %w", n, err)
		}
	}
	b.log.Info("block list cleared", zap.Int("count", len(numbers)))
	return nil
}

// List returns the blocked numbers in ascending order.
func (b *BlockList) List(ctx context.Context) ([]string, error) {
	entries, err := b.store.List(ctx, KeyBlockPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list block list: %w", err)
	}
	numbers := make([]string, 0, len(entries))
	for _, e := range entries {
		numbers = append(numbers, strings.TrimPrefix(e.Key, KeyBlockPrefix))
	}
	return numbers, nil
}

// Mutate applies one admin operation: add, remove, range-head, range-tail
// or clear.
func (b *BlockList) Mutate(ctx context.Context, op, value string) error {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "add":
		return b.Add(ctx, value)
	case "remove":
		return b.Remove(ctx, value)
	case "range-head":
		_, err := b.AddRange(ctx, value, BlockHead)
		return err
	case "range-tail":
		_, err := b.AddRange(ctx, value, BlockTail)
		return err
	case "clear":
		return b.Clear(ctx)
	}
	return fmt.Errorf("%w: %q", ErrUnknownBlockOp, op)
}
