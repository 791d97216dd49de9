package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	minHandleLen = 3
	maxHandleLen = 32
)

// GenerateBatchID returns a time-ordered id so an owner's wager keys list in
// placement order.
func GenerateBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func GenerateTransactionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return "tx_" + id.String()
}

// ValidateNumber accepts exactly two ASCII digits, "00" through "99".
func ValidateNumber(n string) error {
	if len(n) != 2 || n[0] < '0' || n[0] > '9' || n[1] < '0' || n[1] > '9' {
		return fmt.Errorf("invalid number %q: want two digits 00-99", n)
	}
	return nil
}

// ValidateHandle restricts handles to characters that are safe inside
// store keys and key patterns.
func ValidateHandle(h string) error {
	if len(h) < minHandleLen || len(h) > maxHandleLen {
		return fmt.Errorf("handle must be %d-%d characters", minHandleLen, maxHandleLen)
	}
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return fmt.Errorf("handle %q contains %q: use a-z, 0-9, '_', '-' or '.'", h, r)
		}
	}
	return nil
}

func ParseSession(s string) (Session, error) {
	switch Session(strings.ToUpper(strings.TrimSpace(s))) {
	case SessionMorning:
		return SessionMorning, nil
	case SessionEvening:
		return SessionEvening, nil
	}
	return "", fmt.Errorf("invalid session %q: want MORNING or EVENING", s)
}

// FormatAmount renders an amount with thousands separators, e.g. "8,800 Ks".
func FormatAmount(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	out := b.String() + " Ks"
	if neg {
		return "-" + out
	}
	return out
}
