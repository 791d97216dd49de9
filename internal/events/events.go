package events

import "context"

const (
	TypeWagerPlaced         = "wager.placed"
	TypeWagerSettled        = "wager.settled"
	TypeSettlementCompleted = "settlement.completed"
)

type WagerPlaced struct {
	Type           string   `json:"type"`
	BatchID        string   `json:"batch_id"`
	Owner          string   `json:"owner"`
	Numbers        []string `json:"numbers"`
	StakePerNumber int64    `json:"stake_per_number"`
	Total          int64    `json:"total"`
	Session        string   `json:"session"`
	TsUnixMs       int64    `json:"ts_unix_ms"`
}

type WagerSettled struct {
	Type          string `json:"type"`
	WagerID       string `json:"wager_id"`
	BatchID       string `json:"batch_id"`
	Owner         string `json:"owner"`
	Number        string `json:"number"`
	Stake         int64  `json:"stake"`
	Status        string `json:"status"`
	WinAmount     int64  `json:"win_amount,omitempty"`
	WinningNumber string `json:"winning_number"`
	Session       string `json:"session"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}

type SettlementCompleted struct {
	Type          string `json:"type"`
	Date          string `json:"date"`
	WinningNumber string `json:"winning_number"`
	Session       string `json:"session"`
	Multiplier    int64  `json:"multiplier"`
	Winners       int    `json:"winners"`
	Losers        int    `json:"losers"`
	Failures      int    `json:"failures"`
	TotalPaid     int64  `json:"total_paid"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}

// Publisher fans ledger events out to downstream consumers. Publishing is
// best effort: the ledger has already committed when an event is emitted.
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e WagerPlaced) error
	PublishWagerSettled(ctx context.Context, e WagerSettled) error
	PublishSettlementCompleted(ctx context.Context, e SettlementCompleted) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishWagerPlaced(context.Context, WagerPlaced) error { return nil }

func (NopPublisher) PublishWagerSettled(context.Context, WagerSettled) error { return nil }

func (NopPublisher) PublishSettlementCompleted(context.Context, SettlementCompleted) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
