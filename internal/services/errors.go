package services

import "fmt"

type RejectCode string

const (
	CodeInvalidRequest      RejectCode = "INVALID_REQUEST"
	CodeSlowDown            RejectCode = "SLOW_DOWN"
	CodeMarketClosed        RejectCode = "MARKET_CLOSED"
	CodeInvalidAmount       RejectCode = "INVALID_AMOUNT"
	CodeInvalidNumber       RejectCode = "INVALID_NUMBER"
	CodeNumberBlocked       RejectCode = "NUMBER_BLOCKED"
	CodeInsufficientBalance RejectCode = "INSUFFICIENT_BALANCE"
	CodeConflict            RejectCode = "CONFLICT"
	CodeAccountNotFound     RejectCode = "ACCOUNT_NOT_FOUND"
	CodeAccountExists       RejectCode = "ACCOUNT_EXISTS"
)

// RejectError is a synchronous rejection with a machine-readable code.
// errors.Is matches on Code alone, so the sentinels below work as targets.
type RejectError struct {
	Code   RejectCode
	Number string
	Detail string
}

func (e *RejectError) Error() string {
	switch {
	case e.Number != "" && e.Detail != "":
		return fmt.Sprintf("%s(%s): %s", e.Code, e.Number, e.Detail)
	case e.Number != "":
		return fmt.Sprintf("%s(%s)", e.Code, e.Number)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Detail)
	}
	return string(e.Code)
}

func (e *RejectError) Is(target error) bool {
	t, ok := target.(*RejectError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidRequest      = &RejectError{Code: CodeInvalidRequest}
	ErrSlowDown            = &RejectError{Code: CodeSlowDown}
	ErrMarketClosed        = &RejectError{Code: CodeMarketClosed}
	ErrInvalidAmount       = &RejectError{Code: CodeInvalidAmount}
	ErrInvalidNumber       = &RejectError{Code: CodeInvalidNumber}
	ErrNumberBlocked       = &RejectError{Code: CodeNumberBlocked}
	ErrInsufficientBalance = &RejectError{Code: CodeInsufficientBalance}
	ErrConflict            = &RejectError{Code: CodeConflict}
	ErrAccountNotFound     = &RejectError{Code: CodeAccountNotFound}
	ErrAccountExists       = &RejectError{Code: CodeAccountExists}
)

func reject(code RejectCode, format string, args ...any) *RejectError {
	return &RejectError{Code: code, Detail: fmt.Sprintf(format, args...)}
}
