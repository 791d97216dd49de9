package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"twod-ledger-backend/internal/events"
	"twod-ledger-backend/internal/metrics"
	"twod-ledger-backend/internal/models"
)

type settleOutcome int

const (
	outcomeSkipped settleOutcome = iota
	outcomeWin
	outcomeLose
)

// SettlementProcessor resolves the pending wagers of one session against a
// winning number. Every record is its own transaction; one record failing
// leaves it PENDING and the run carries on.
type SettlementProcessor struct {
	store             Store
	market            *MarketClock
	retry             RetryPolicy
	defaultMultiplier int64
	publisher         events.Publisher
	notifier          Notifier
	log               *zap.Logger
}

func NewSettlementProcessor(store Store, market *MarketClock, retry RetryPolicy, defaultMultiplier int64, publisher events.Publisher, notifier Notifier, log *zap.Logger) *SettlementProcessor {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementProcessor{
		store:             store,
		market:            market,
		retry:             retry,
		defaultMultiplier: defaultMultiplier,
		publisher:         publisher,
		notifier:          notifier,
		log:               log,
	}
}

// Settle pays stake*multiplier on every pending record of session whose
// number is winningNumber and marks the rest LOSE. A multiplier of 0 uses
// the configured default. Running it again for the same session pays nothing.
func (p *SettlementProcessor) Settle(ctx context.Context, winningNumber string, session models.Session, multiplier int64) (*models.SettlementReport, error) {
	if err := models.ValidateNumber(winningNumber); err != nil {
		return nil, &RejectError{Code: CodeInvalidNumber, Number: winningNumber, Detail: err.Error()}
	}
	if session != models.SessionMorning && session != models.SessionEvening {
		return nil, reject(CodeInvalidRequest, "invalid session %q", session)
	}
	if multiplier < 0 {
		return nil, reject(CodeInvalidAmount, "payout multiplier must be positive, got %d", multiplier)
	}
	if multiplier == 0 {
		multiplier = p.defaultMultiplier
	}

	start := time.Now()
	status := p.market.Now()
	schedule := p.market.Schedule()

	entries, err := p.store.List(ctx, KeyWagerPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list wagers: %w", err)
	}

	report := &models.SettlementReport{
		Date:          status.Date,
		WinningNumber: winningNumber,
		Session:       session,
		Multiplier:    multiplier,
		Winners:       []models.Payout{},
	}
	balances := make(map[string]int64)

	for _, e := range entries {
		var rec models.WagerRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			p.log.Warn("skipping undecodable wager record", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		if !rec.IsPending() || schedule.SessionOf(rec.PlacedAtMinutesOfDay) != session {
			continue
		}

		outcome, settled, balance, err := p.settleRecord(ctx, e.Key, winningNumber, multiplier, status.Time)
		if err != nil {
			p.log.Error("failed to settle wager",
				zap.String("wager_id", rec.ID),
				zap.String("owner", rec.Owner),
				zap.Error(err),
			)
			metrics.SettlementFailures.Inc()
			report.Failures = append(report.Failures, models.SettlementFailure{
				WagerID: rec.ID,
				Owner:   rec.Owner,
				Number:  rec.Number,
				Error:   err.Error(),
			})
			continue
		}

		switch outcome {
		case outcomeSkipped:
			report.Skipped++
			continue
		case outcomeWin:
			report.Winners = append(report.Winners, models.Payout{
				Owner:   settled.Owner,
				Amount:  settled.WinAmount,
				WagerID: settled.ID,
				Number:  settled.Number,
			})
			balances[settled.Owner] = balance
			metrics.SettledRecords.WithLabelValues(string(session), "win").Inc()
			metrics.PayoutCredited.Add(float64(settled.WinAmount))
		case outcomeLose:
			report.Losers++
			metrics.SettledRecords.WithLabelValues(string(session), "lose").Inc()
		}

		if err := p.publisher.PublishWagerSettled(ctx, events.WagerSettled{
			WagerID:       settled.ID,
			BatchID:       settled.BatchID,
			Owner:         settled.Owner,
			Number:        settled.Number,
			Stake:         settled.Stake,
			Status:        string(settled.Status),
			WinAmount:     settled.WinAmount,
			WinningNumber: winningNumber,
			Session:       string(session),
		}); err != nil {
			p.log.Warn("failed to publish settled event", zap.String("wager_id", settled.ID), zap.Error(err))
		}
	}

	// a run before the session opened today resolves an earlier day's records
	// and must not close today's session
	if status.MinutesOfDay >= schedule.OpensAt(session) {
		if err := p.store.Put(ctx, fmt.Sprintf(KeySettled, status.Date, session), []byte(winningNumber), TTLSettled); err != nil {
			p.log.Error("failed to write settlement marker", zap.String("date", status.Date), zap.Error(err))
		}
	} else {
		p.log.Info("session not yet open on settlement date, leaving it open",
			zap.String("date", status.Date),
			zap.String("session", string(session)),
		)
	}

	metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	p.log.Info("settlement completed",
		zap.String("date", report.Date),
		zap.String("session", string(session)),
		zap.String("winning_number", winningNumber),
		zap.Int("winners", len(report.Winners)),
		zap.Int("losers", report.Losers),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", len(report.Failures)),
		zap.Int64("total_paid", report.TotalPaid()),
	)

	if err := p.publisher.PublishSettlementCompleted(ctx, events.SettlementCompleted{
		Date:          report.Date,
		WinningNumber: winningNumber,
		Session:       string(session),
		Multiplier:    multiplier,
		Winners:       len(report.Winners),
		Losers:        report.Losers,
		Failures:      len(report.Failures),
		TotalPaid:     report.TotalPaid(),
	}); err != nil {
		p.log.Warn("failed to publish settlement event", zap.Error(err))
	}

	for owner, balance := range balances {
		p.notifier.NotifyBalance(owner, balance)
	}
	p.notifier.NotifySettlement(report)

	return report, nil
}

// settleRecord moves the record at key out of PENDING. The record write is
// conditioned on its version, and a win also on the owner's account version,
// so a concurrent run can neither double pay nor lose the credit.
func (p *SettlementProcessor) settleRecord(ctx context.Context, key, winningNumber string, multiplier int64, settledAt time.Time) (settleOutcome, *models.WagerRecord, int64, error) {
	var (
		outcome settleOutcome
		settled *models.WagerRecord
		balance int64
	)

	err := p.retry.Do(ctx, "settle", func(ctx context.Context) error {
		var rec models.WagerRecord
		ver, err := getJSON(ctx, p.store, key, &rec)
		if errors.Is(err, ErrNotFound) {
			outcome = outcomeSkipped
			return nil
		}
		if err != nil {
			return err
		}
		if !rec.IsPending() {
			outcome = outcomeSkipped
			return nil
		}

		at := settledAt
		rec.WinningNumber = winningNumber
		rec.SettledAt = &at

		checks := []Check{{Key: key, Version: ver}}
		var muts []Mutation

		if rec.Number == winningNumber {
			rec.Status = models.WagerStatusWin
			rec.WinAmount = rec.Stake * multiplier

			acct, acctVer, err := loadAccount(ctx, p.store, rec.Owner)
			if err != nil {
				return err
			}
			credit, _, err := balanceChange(acct, models.TransactionTypeSettlementCredit, rec.WinAmount, rec.ID,
				fmt.Sprintf("%s win on %s", models.FormatAmount(rec.WinAmount), rec.Number), settledAt)
			if err != nil {
				return err
			}
			checks = append(checks, Check{Key: fmt.Sprintf(KeyAccount, rec.Owner), Version: acctVer})
			muts = append(muts, credit...)
			balance = acct.Balance
		} else {
			rec.Status = models.WagerStatusLose
		}

		m, err := putJSON(key, rec, TTLResolvedWager)
		if err != nil {
			return err
		}
		muts = append(muts, m)

		if err := p.store.Commit(ctx, checks, muts); err != nil {
			return err
		}

		outcome = outcomeLose
		if rec.Status == models.WagerStatusWin {
			outcome = outcomeWin
		}
		settled = &rec
		return nil
	})
	if err != nil {
		return outcomeSkipped, nil, 0, err
	}
	return outcome, settled, balance, nil
}
