package domain

import "github.com/shopspring/decimal"

// ContributorEntry is one sender's credited total.
type ContributorEntry struct {
	Address    string
	Alias      string
	Amount     decimal.Decimal
	Percentage decimal.Decimal
}

// ContributionSummary per-sender totals for one raise.
type ContributionSummary struct {
	TotalCollected decimal.Decimal
	Goal           decimal.Decimal
	Contributions  []ContributorEntry
	// Malformed counts records skipped because required fields were missing or invalid.
	Malformed int
}

// EmptySummary is the zero-total summary served when upstream data is unavailable.
func EmptySummary(goal decimal.Decimal) ContributionSummary {
	return ContributionSummary{
		TotalCollected: decimal.Zero,
		Goal:           goal,
		Contributions:  []ContributorEntry{},
	}
}

// Progress returns collected/goal as a percentage clamped to [0, 100].
func (s ContributionSummary) Progress() decimal.Decimal {
	if !s.Goal.IsPositive() {
		return decimal.Zero
	}
	p := s.TotalCollected.Div(s.Goal).Mul(decimal.NewFromInt(100))
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// Contribution is a summary tagged with how it was obtained.
type Contribution struct {
	Kind    AssetKind
	Summary ContributionSummary
	Status  Status
}
