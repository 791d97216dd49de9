package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"twod-ledger-backend/internal/events"
	"twod-ledger-backend/internal/metrics"
	"twod-ledger-backend/internal/models"
)

const (
	ActionBet   = "bet"
	ActionAdmin = "admin"

	// MaxNumbersPerWager keeps record keys at two index digits.
	MaxNumbersPerWager = 100

	maxIdempotencyKeyLen = 128
)

type WagerConfig struct {
	MinStake   int64
	MaxStake   int64
	RateLimit  int
	RateWindow time.Duration
	Retry      RetryPolicy
}

// WagerProcessor validates a multi-number wager and commits the debit and
// its records in one transaction.
type WagerProcessor struct {
	store     Store
	market    *MarketClock
	blocks    *BlockList
	limiter   *RateLimiter
	cfg       WagerConfig
	publisher events.Publisher
	notifier  Notifier
	log       *zap.Logger
}

func NewWagerProcessor(store Store, market *MarketClock, blocks *BlockList, limiter *RateLimiter, cfg WagerConfig, publisher events.Publisher, notifier Notifier, log *zap.Logger) *WagerProcessor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WagerProcessor{
		store:     store,
		market:    market,
		blocks:    blocks,
		limiter:   limiter,
		cfg:       cfg,
		publisher: publisher,
		notifier:  notifier,
		log:       log,
	}
}

// PlaceWager debits len(Numbers)*StakePerNumber from the owner and creates
// one PENDING record per number, all or nothing. A request carrying an
// idempotency key that already committed replays the stored receipt.
func (p *WagerProcessor) PlaceWager(ctx context.Context, req models.WagerRequest) (*models.WagerReceipt, error) {
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, p.rejected(reject(CodeInvalidRequest, "idempotency key longer than %d", maxIdempotencyKeyLen))
	}

	idemKey := ""
	if req.IdempotencyKey != "" {
		idemKey = fmt.Sprintf(KeyIdempotency, req.Owner, req.IdempotencyKey)
		receipt, err := p.replay(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
	}

	status, err := p.precheck(ctx, req)
	if err != nil {
		return nil, err
	}

	total := int64(len(req.Numbers)) * req.StakePerNumber
	batchID := models.GenerateBatchID()
	placedAt := status.Time
	numbers := append([]string(nil), req.Numbers...)

	var receipt *models.WagerReceipt
	err = p.cfg.Retry.Do(ctx, "wager", func(ctx context.Context) error {
		if idemKey != "" {
			prior, err := p.replay(ctx, idemKey)
			if err != nil {
				return err
			}
			if prior != nil {
				receipt = prior
				return nil
			}
		}

		acct, ver, err := loadAccount(ctx, p.store, req.Owner)
		if err != nil {
			return err
		}
		muts, _, err := balanceChange(acct, models.TransactionTypeWagerDebit, -total, batchID,
			fmt.Sprintf("wager %s on %d numbers", models.FormatAmount(total), len(numbers)), placedAt)
		if err != nil {
			return err
		}

		for i, n := range numbers {
			rec := models.WagerRecord{
				ID:                   fmt.Sprintf("%s-%02d", batchID, i),
				Owner:                req.Owner,
				Number:               n,
				Stake:                req.StakePerNumber,
				Status:               models.WagerStatusPending,
				PlacedAtMinutesOfDay: status.MinutesOfDay,
				PlacedAt:             placedAt,
				BatchID:              batchID,
			}
			m, err := putJSON(fmt.Sprintf(KeyWager, req.Owner, batchID, i), rec, 0)
			if err != nil {
				return err
			}
			muts = append(muts, m)
		}

		r := &models.WagerReceipt{
			BatchID:        batchID,
			Owner:          req.Owner,
			Numbers:        numbers,
			StakePerNumber: req.StakePerNumber,
			Total:          total,
			Balance:        acct.Balance,
			Session:        status.Session,
			PlacedAt:       placedAt,
		}

		checks := []Check{{Key: fmt.Sprintf(KeyAccount, req.Owner), Version: ver}}
		if idemKey != "" {
			m, err := putJSON(idemKey, r, TTLIdempotency)
			if err != nil {
				return err
			}
			muts = append(muts, m)
			checks = append(checks, Check{Key: idemKey, Version: 0})
		}

		if err := p.store.Commit(ctx, checks, muts); err != nil {
			return err
		}
		receipt = r
		return nil
	})

	var re *RejectError
	switch {
	case errors.Is(err, ErrVersionConflict):
		return nil, p.rejected(reject(CodeConflict, "balance of %s changed concurrently, retry the wager", req.Owner))
	case errors.As(err, &re):
		return nil, p.rejected(err)
	case err != nil:
		p.log.Error("wager commit failed", zap.String("owner", req.Owner), zap.String("batch_id", batchID), zap.Error(err))
		return nil, err
	}

	if receipt.Replayed {
		return receipt, nil
	}

	metrics.WagersPlaced.Inc()
	metrics.WagerRecords.Add(float64(len(numbers)))
	metrics.StakeDebited.Add(float64(total))

	p.log.Info("wager placed",
		zap.String("owner", req.Owner),
		zap.String("batch_id", batchID),
		zap.Strings("numbers", numbers),
		zap.Int64("total", total),
		zap.String("session", string(status.Session)),
	)

	if err := p.publisher.PublishWagerPlaced(ctx, events.WagerPlaced{
		BatchID:        batchID,
		Owner:          req.Owner,
		Numbers:        numbers,
		StakePerNumber: req.StakePerNumber,
		Total:          total,
		Session:        string(status.Session),
	}); err != nil {
		p.log.Warn("failed to publish wager event", zap.String("batch_id", batchID), zap.Error(err))
	}
	p.notifier.NotifyBalance(req.Owner, receipt.Balance)

	return receipt, nil
}

// precheck runs the synchronous rejections in order: rate limit, market,
// amounts, number format, block list, balance.
func (p *WagerProcessor) precheck(ctx context.Context, req models.WagerRequest) (MarketStatus, error) {
	allowed, err := p.limiter.CheckAndIncrement(ctx, req.Owner, ActionBet, p.cfg.RateLimit, p.cfg.RateWindow)
	if err != nil {
		return MarketStatus{}, err
	}
	if !allowed {
		return MarketStatus{}, p.rejected(reject(CodeSlowDown, "more than %d wagers in %s", p.cfg.RateLimit, p.cfg.RateWindow))
	}

	status := p.market.Now()
	if !status.Open() {
		return status, p.rejected(reject(CodeMarketClosed, "market is %s", strings.ToLower(string(status.Phase))))
	}
	settled, err := p.sessionSettled(ctx, status)
	if err != nil {
		return status, err
	}
	if settled {
		return status, p.rejected(reject(CodeMarketClosed, "%s session of %s is already settled", status.Session, status.Date))
	}

	if len(req.Numbers) == 0 {
		return status, p.rejected(reject(CodeInvalidAmount, "no numbers selected"))
	}
	if len(req.Numbers) > MaxNumbersPerWager {
		return status, p.rejected(reject(CodeInvalidAmount, "at most %d numbers per wager", MaxNumbersPerWager))
	}
	if req.StakePerNumber < p.cfg.MinStake || req.StakePerNumber > p.cfg.MaxStake {
		return status, p.rejected(reject(CodeInvalidAmount, "stake %d outside %d-%d", req.StakePerNumber, p.cfg.MinStake, p.cfg.MaxStake))
	}
	for _, n := range req.Numbers {
		if err := models.ValidateNumber(n); err != nil {
			return status, p.rejected(&RejectError{Code: CodeInvalidNumber, Number: n, Detail: err.Error()})
		}
	}

	blocked, err := p.blocks.FirstBlocked(ctx, req.Numbers)
	if err != nil {
		return status, fmt.Errorf("failed to check block list: %w", err)
	}
	if blocked != "" {
		return status, p.rejected(&RejectError{Code: CodeNumberBlocked, Number: blocked})
	}

	acct, _, err := loadAccount(ctx, p.store, req.Owner)
	if err != nil {
		return status, err
	}
	if total := int64(len(req.Numbers)) * req.StakePerNumber; acct.Balance < total {
		return status, p.rejected(reject(CodeInsufficientBalance, "have %d, need %d", acct.Balance, total))
	}
	return status, nil
}

func (p *WagerProcessor) sessionSettled(ctx context.Context, status MarketStatus) (bool, error) {
	_, err := p.store.Get(ctx, fmt.Sprintf(KeySettled, status.Date, status.Session))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check settlement marker: %w", err)
	}
	return true, nil
}

// replay returns the stored receipt for idemKey, or nil if none exists.
func (p *WagerProcessor) replay(ctx context.Context, idemKey string) (*models.WagerReceipt, error) {
	var receipt models.WagerReceipt
	_, err := getJSON(ctx, p.store, idemKey, &receipt)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency receipt: %w", err)
	}
	receipt.Replayed = true
	return &receipt, nil
}

func (p *WagerProcessor) rejected(err error) error {
	var re *RejectError
	if errors.As(err, &re) {
		metrics.WagerRejections.WithLabelValues(string(re.Code)).Inc()
	}
	return err
}
