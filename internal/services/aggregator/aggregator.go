// Package aggregator turns raw transfer records into per-contributor summaries.
package aggregator

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/fundboard/internal/domain"
)

const (
	nativeDecimals = 18

	nativePrecision     = 4
	tokenPrecision      = 2
	percentagePrecision = 2
)

var hundred = decimal.NewFromInt(100)

// errFiltered marks a well-formed record that does not count toward the raise.
var errFiltered = errors.New("record filtered")

// Policy selects unit conversion and rounding for one asset kind.
type Policy struct {
	Kind domain.AssetKind
	// Precision number of decimal places amounts are rounded to.
	Precision int32
}

// NativePolicy native currency: value / 10^18, amounts rounded to 4 places.
func NativePolicy() Policy {
	return Policy{Kind: domain.AssetNative, Precision: nativePrecision}
}

// TokenPolicy token transfers: value / 10^tokenDecimal, amounts rounded to 2 places.
func TokenPolicy() Policy {
	return Policy{Kind: domain.AssetToken, Precision: tokenPrecision}
}

// PolicyFor returns the default policy for kind.
func PolicyFor(kind domain.AssetKind) Policy {
	if kind == domain.AssetToken {
		return TokenPolicy()
	}
	return NativePolicy()
}

// Aggregate credits every record sent to target to its sender and returns the
// per-sender summary. Contributions keep the order in which senders first appear.
// Malformed records are skipped and counted. A goal <= 0 yields zero percentages.
func Aggregate(records []domain.TransferRecord, target string, goal decimal.Decimal, policy Policy) domain.ContributionSummary {
	target = domain.NormalizeAddress(target)

	totals := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	malformed := 0

	for _, rec := range records {
		amount, err := convert(rec, target, policy.Kind)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedRecord) {
				malformed++
			}
			continue
		}

		from := domain.NormalizeAddress(rec.From)
		sum, seen := totals[from]
		if !seen {
			order = append(order, from)
		}
		totals[from] = sum.Add(amount)
	}

	summary := domain.ContributionSummary{
		TotalCollected: decimal.Zero,
		Goal:           goal,
		Contributions:  make([]domain.ContributorEntry, 0, len(order)),
		Malformed:      malformed,
	}

	for _, addr := range order {
		amount := totals[addr]
		summary.TotalCollected = summary.TotalCollected.Add(amount)
		summary.Contributions = append(summary.Contributions, domain.ContributorEntry{
			Address:    addr,
			Amount:     amount.Round(policy.Precision),
			Percentage: percentage(amount, goal),
		})
	}

	return summary
}

// convert validates rec and returns its value in whole units.
// Records that do not count toward the raise return errFiltered.
func convert(rec domain.TransferRecord, target string, kind domain.AssetKind) (decimal.Decimal, error) {
	if strings.TrimSpace(rec.To) == "" || strings.TrimSpace(rec.Value) == "" || strings.TrimSpace(rec.From) == "" {
		return decimal.Zero, errors.Wrap(domain.ErrMalformedRecord, "missing from, to or value")
	}
	if domain.NormalizeAddress(rec.To) != target {
		return decimal.Zero, errFiltered
	}

	var decimals int32
	switch kind {
	case domain.AssetNative:
		if rec.IsError {
			return decimal.Zero, errFiltered
		}
		decimals = nativeDecimals
	case domain.AssetToken:
		if rec.InvalidDecimal {
			return decimal.Zero, errors.Wrap(domain.ErrMalformedRecord, "token decimals are not an integer")
		}
		if rec.TokenDecimal == nil {
			return decimal.Zero, errFiltered
		}
		decimals = *rec.TokenDecimal
		if decimals < 0 {
			return decimal.Zero, errors.Wrapf(domain.ErrMalformedRecord, "negative token decimals %d", decimals)
		}
	default:
		return decimal.Zero, errors.Errorf("unsupported asset kind %d", kind)
	}

	value, err := decimal.NewFromString(strings.TrimSpace(rec.Value))
	if err != nil {
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedRecord, "value %q", rec.Value)
	}
	if value.IsNegative() || !value.Equal(value.Truncate(0)) {
		return decimal.Zero, errors.Wrapf(domain.ErrMalformedRecord, "value %q is not a non-negative integer", rec.Value)
	}

	return value.Shift(-decimals), nil
}

func percentage(amount, goal decimal.Decimal) decimal.Decimal {
	if !goal.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(goal).Mul(hundred).Round(percentagePrecision)
}

// Rank returns a copy of entries ordered by amount, largest first, ties broken by address.
// limit <= 0 returns every entry.
func Rank(entries []domain.ContributorEntry, limit int) []domain.ContributorEntry {
	ranked := make([]domain.ContributorEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if c := ranked[i].Amount.Cmp(ranked[j].Amount); c != 0 {
			return c > 0
		}
		return ranked[i].Address < ranked[j].Address
	})

	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}
