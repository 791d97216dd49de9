package services

import (
	"go.uber.org/zap"

	"twod-ledger-backend/internal/config"
	"twod-ledger-backend/internal/events"
)

// Engine bundles the ledger components that share one store and one market
// clock.
type Engine struct {
	Store      Store
	Market     *MarketClock
	Accounts   *AccountService
	Blocks     *BlockList
	Limiter    *RateLimiter
	Wagers     *WagerProcessor
	Settlement *SettlementProcessor
}

func NewEngine(cfg *config.Config, store Store, clock Clock, publisher events.Publisher, notifier Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}

	retry := RetryPolicy{
		Attempts:    cfg.RetryAttempts,
		MinInterval: cfg.RetryMinInterval,
		MaxInterval: cfg.RetryMaxInterval,
	}
	market := NewMarketClock(clock, cfg.Location(), DefaultSchedule)
	blocks := NewBlockList(store, log.Named("blocklist"))
	limiter := NewRateLimiter(store)

	wagers := NewWagerProcessor(store, market, blocks, limiter, WagerConfig{
		MinStake:   cfg.MinStake,
		MaxStake:   cfg.MaxStake,
		RateLimit:  cfg.BetRateLimit,
		RateWindow: cfg.BetRateWindow,
		Retry:      retry,
	}, publisher, notifier, log.Named("wagers"))

	return &Engine{
		Store:      store,
		Market:     market,
		Accounts:   NewAccountService(store, retry, clock, cfg.AdminHandle, notifier, log.Named("accounts")),
		Blocks:     blocks,
		Limiter:    limiter,
		Wagers:     wagers,
		Settlement: NewSettlementProcessor(store, market, retry, cfg.PayoutMultiplier, publisher, notifier, log.Named("settlement")),
	}
}
