package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetKind(t *testing.T) {
	tests := []struct {
		input    string
		expected AssetKind
		ok       bool
	}{
		{input: "native", expected: AssetNative, ok: true},
		{input: "ETH", expected: AssetNative, ok: true},
		{input: "", expected: AssetNative, ok: true},
		{input: " Token ", expected: AssetToken, ok: true},
		{input: "nft", expected: AssetNative, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, ok := ParseAssetKind(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xABCdef", "0xabcDEF"))
	assert.True(t, SameAddress(" 0xabc", "0xABC "))
	assert.False(t, SameAddress("0xabc", "0xabd"))
}

func TestParsePair(t *testing.T) {
	pair, err := ParsePair("eth_usdt")
	require.NoError(t, err)
	assert.Equal(t, Pair{From: "ETH", To: "USDT"}, pair)
	assert.Equal(t, "ETHUSDT", pair.Symbol())
	assert.Equal(t, "ETH_USDT", pair.String())

	for _, bad := range []string{"", "ETHUSDT", "ETH_", "_USDT", "A_B_C"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestContributionSummary_Progress(t *testing.T) {
	tests := []struct {
		name     string
		total    decimal.Decimal
		goal     decimal.Decimal
		expected decimal.Decimal
	}{
		{name: "half way", total: decimal.NewFromInt(1), goal: decimal.NewFromInt(2), expected: decimal.NewFromInt(50)},
		{name: "over goal is clamped", total: decimal.NewFromInt(3), goal: decimal.NewFromInt(2), expected: decimal.NewFromInt(100)},
		{name: "zero goal", total: decimal.NewFromInt(3), goal: decimal.Zero, expected: decimal.Zero},
		{name: "negative goal", total: decimal.NewFromInt(3), goal: decimal.NewFromInt(-1), expected: decimal.Zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ContributionSummary{TotalCollected: tt.total, Goal: tt.goal}
			assert.True(t, tt.expected.Equal(s.Progress()), "got %s", s.Progress())
		})
	}
}

func TestStatus(t *testing.T) {
	assert.False(t, Fresh().IsDegraded())
	assert.False(t, Cached().IsDegraded())

	s := Degraded(errors.Wrap(ErrUpstreamUnavailable, "txlist"))
	assert.True(t, s.IsDegraded())
	assert.True(t, errors.Is(s.Reason, ErrUpstreamUnavailable))
	assert.Equal(t, "degraded", s.Freshness.String())
}

func TestBalanceCacheEntry_FetchedAtEpochMillis(t *testing.T) {
	assert.Equal(t, int64(0), BalanceCacheEntry{}.FetchedAtEpochMillis())
}

func TestEmptySummary(t *testing.T) {
	s := EmptySummary(decimal.NewFromInt(5))
	assert.True(t, s.TotalCollected.IsZero())
	assert.NotNil(t, s.Contributions)
	assert.Empty(t, s.Contributions)
}
