package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote spot price of a pair from one source.
type Quote struct {
	Pair      Pair
	Price     decimal.Decimal
	Source    string
	FetchedAt time.Time
	Status    Status
}

// RaiseValue native raise valued in the quote currency.
type RaiseValue struct {
	Quote         Quote
	TotalReceived decimal.Decimal
	TotalValue    decimal.Decimal
	Status        Status
}
