package models

import "time"

type WagerStatus string

const (
	WagerStatusPending WagerStatus = "PENDING"
	WagerStatusWin     WagerStatus = "WIN"
	WagerStatusLose    WagerStatus = "LOSE"
)

// Session is one of the two daily market runs.
type Session string

const (
	SessionMorning Session = "MORNING"
	SessionEvening Session = "EVENING"
)

// WagerRecord is one number of a submitted batch. Status leaves PENDING
// exactly once.
type WagerRecord struct {
	ID                   string      `json:"id"`
	Owner                string      `json:"owner"`
	Number               string      `json:"number"`
	Stake                int64       `json:"stake"`
	Status               WagerStatus `json:"status"`
	PlacedAtMinutesOfDay int         `json:"placed_at_minutes_of_day"`
	PlacedAt             time.Time   `json:"placed_at"`
	BatchID              string      `json:"batch_id"`
	WinAmount            int64       `json:"win_amount,omitempty"`
	WinningNumber        string      `json:"winning_number,omitempty"`
	SettledAt            *time.Time  `json:"settled_at,omitempty"`
}

func (w *WagerRecord) IsPending() bool {
	return w.Status == WagerStatusPending
}

type WagerRequest struct {
	Owner          string   `json:"-"`
	Numbers        []string `json:"numbers"`
	StakePerNumber int64    `json:"stake_per_number"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`
}

// WagerReceipt is what a committed batch echoes back for display. It is also
// stored under the idempotency key so a retried submission replays it.
type WagerReceipt struct {
	BatchID        string    `json:"batch_id"`
	Owner          string    `json:"owner"`
	Numbers        []string  `json:"numbers"`
	StakePerNumber int64     `json:"stake_per_number"`
	Total          int64     `json:"total"`
	Balance        int64     `json:"balance"`
	Session        Session   `json:"session"`
	PlacedAt       time.Time `json:"placed_at"`
	Replayed       bool      `json:"replayed,omitempty"`
}

type SettleRequest struct {
	WinningNumber    string  `json:"winning_number" binding:"required"`
	Session          Session `json:"session"`
	PayoutMultiplier int64   `json:"payout_multiplier"`
}

type Payout struct {
	Owner   string `json:"owner"`
	Amount  int64  `json:"amount"`
	WagerID string `json:"wager_id"`
	Number  string `json:"number"`
}

// SettlementFailure names a record settlement could not commit. The record
// is still PENDING and a rerun will pick it up.
type SettlementFailure struct {
	WagerID string `json:"wager_id"`
	Owner   string `json:"owner"`
	Number  string `json:"number"`
	Error   string `json:"error"`
}

type SettlementReport struct {
	Date          string              `json:"date"`
	WinningNumber string              `json:"winning_number"`
	Session       Session             `json:"session"`
	Multiplier    int64               `json:"multiplier"`
	Winners       []Payout            `json:"winners"`
	Losers        int                 `json:"losers"`
	Skipped       int                 `json:"skipped"`
	Failures      []SettlementFailure `json:"failures,omitempty"`
}

func (r *SettlementReport) TotalPaid() int64 {
	var total int64
	for _, w := range r.Winners {
		total += w.Amount
	}
	return total
}

type BlockListRequest struct {
	Op    string `json:"op" binding:"required"`
	Value string `json:"value"`
}
