package services

import "time"

const (
	KeyAccount       = "account:%s"
	KeyAccountPrefix = "account:"
	KeyWager         = "wager:%s:%s:%02d" // owner, batch, index
	KeyWagerPrefix   = "wager:"
	KeyOwnerWagers   = "wager:%s:"
	KeyTransaction   = "txn:%s:%s"
	KeyOwnerTxns     = "txn:%s:"
	KeyBlock         = "block:%s"
	KeyBlockPrefix   = "block:"
	KeyIdempotency   = "idem:%s:%s"
	KeyTopUpIdem     = "idem-topup:%s:%s" // handle, key
	KeySettled       = "settled:%s:%s"    // civil date, session
	KeyRateLimit     = "ratelimit:%s:%s"

	TTLTransaction   = 30 * 24 * time.Hour // 30 days
	TTLResolvedWager = 30 * 24 * time.Hour
	TTLIdempotency   = 24 * time.Hour
	TTLSettled       = 36 * time.Hour
)
