package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceCacheEntry last successfully fetched claimed amount.
type BalanceCacheEntry struct {
	ClaimedAmount decimal.Decimal
	FetchedAt     time.Time
}

// FetchedAtEpochMillis returns the fetch time in unix milliseconds, 0 if never fetched.
func (e BalanceCacheEntry) FetchedAtEpochMillis() int64 {
	if e.FetchedAt.IsZero() {
		return 0
	}
	return e.FetchedAt.UnixMilli()
}

// ClaimedAmount is the claimed-amount figure served to callers.
type ClaimedAmount struct {
	Amount    decimal.Decimal
	FetchedAt time.Time
	Status    Status
}
