package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Account balances are integers in the smallest currency unit (kyat).
type Account struct {
	Handle    string    `json:"handle" redis:"handle"`
	Balance   int64     `json:"balance" redis:"balance"`
	Role      Role      `json:"role" redis:"role"`
	CreatedAt time.Time `json:"created_at" redis:"created_at"`
	UpdatedAt time.Time `json:"updated_at" redis:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type RegisterRequest struct {
	Handle string `json:"handle" binding:"required"`
}

type TopUpRequest struct {
	Handle string `json:"handle" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

type BalanceResponse struct {
	Handle  string `json:"handle"`
	Balance int64  `json:"balance"`
}
