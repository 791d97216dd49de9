package models

import "time"

type TransactionType string

const (
	TransactionTypeWagerDebit       TransactionType = "wager_debit"
	TransactionTypeSettlementCredit TransactionType = "settlement_credit"
	TransactionTypeAdminTopUp       TransactionType = "admin_topup"
)

// Transaction records why a balance changed. It is committed together with
// the balance mutation it describes.
type Transaction struct {
	ID            string          `json:"id" redis:"id"`
	Handle        string          `json:"handle" redis:"handle"`
	Type          TransactionType `json:"type" redis:"type"`
	Amount        int64           `json:"amount" redis:"amount"`
	BalanceBefore int64           `json:"balance_before" redis:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" redis:"balance_after"`
	Reference     string          `json:"reference,omitempty" redis:"reference,omitempty"`
	Description   string          `json:"description" redis:"description"`
	CreatedAt     time.Time       `json:"created_at" redis:"created_at"`
}
