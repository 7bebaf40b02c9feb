package mining

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundboard/internal/domain"
)

type fakeSource struct {
	hashrate, total, perBlock, pending *big.Int
	pendingErr                         error
	calls                              int32
}

func (f *fakeSource) PlayerHashrate(context.Context, common.Address, common.Address) (*big.Int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.hashrate, nil
}

func (f *fakeSource) TotalHashrate(context.Context, common.Address) (*big.Int, error) {
	return f.total, nil
}

func (f *fakeSource) PlayerPerBlock(context.Context, common.Address, common.Address) (*big.Int, error) {
	return f.perBlock, nil
}

func (f *fakeSource) PendingRewards(context.Context, common.Address, common.Address) (*big.Int, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return f.pending, nil
}

func wei(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestMerge(t *testing.T) {
	perDay := decimal.NewFromInt(DefaultBlocksPerDay)

	tests := []struct {
		name     string
		prev     domain.MiningStats
		hashrate *big.Int
		total    *big.Int
		perBlock *big.Int
		pending  *big.Int
		expected domain.MiningStats
	}{
		{
			name:     "all readings",
			prev:     domain.DefaultMiningStats(),
			hashrate: big.NewInt(50),
			total:    big.NewInt(3000),
			perBlock: wei("500000000000000000"),
			pending:  wei("12345678900000000000"),
			expected: domain.MiningStats{Hashrate: "50", PowerPercent: "1.6667", MinedPerDay: "14400", CurrentlyMined: "12.34"},
		},
		{
			name:     "pending is floored",
			prev:     domain.DefaultMiningStats(),
			pending:  wei("999999999999999999"),
			expected: domain.MiningStats{Hashrate: "0", PowerPercent: "0.0000", MinedPerDay: "0", CurrentlyMined: "0.99"},
		},
		{
			name:     "failed reads keep previous values",
			prev:     domain.MiningStats{Hashrate: "7", PowerPercent: "0.7000", MinedPerDay: "3", CurrentlyMined: "1.50"},
			hashrate: big.NewInt(8),
			expected: domain.MiningStats{Hashrate: "8", PowerPercent: "0.7000", MinedPerDay: "3", CurrentlyMined: "1.50"},
		},
		{
			name:     "zero total keeps previous share",
			prev:     domain.MiningStats{Hashrate: "7", PowerPercent: "0.7000", MinedPerDay: "3", CurrentlyMined: "1.50"},
			hashrate: big.NewInt(8),
			total:    big.NewInt(0),
			expected: domain.MiningStats{Hashrate: "8", PowerPercent: "0.7000", MinedPerDay: "3", CurrentlyMined: "1.50"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.prev, tt.hashrate, tt.total, tt.perBlock, tt.pending, perDay)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReader_Stats(t *testing.T) {
	src := &fakeSource{
		hashrate: big.NewInt(1),
		total:    big.NewInt(4),
		perBlock: wei("1000000000000000000"),
		pending:  wei("2000000000000000000"),
	}
	r := NewReader(src, common.Address{}, common.Address{}, 0, 0, zap.NewNop(), nil)
	start := time.Unix(100, 0)

	s := r.Stats(context.Background(), start)
	assert.Equal(t, domain.FreshnessFresh, s.Status.Freshness)
	assert.Equal(t, "25.0000", s.PowerPercent)
	assert.Equal(t, "28800", s.MinedPerDay)
	assert.Equal(t, "2.00", s.CurrentlyMined)

	s = r.Stats(context.Background(), start.Add(4*time.Second))
	assert.Equal(t, domain.FreshnessCached, s.Status.Freshness)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	r.Stats(context.Background(), start.Add(5*time.Second))
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestReader_PartialFailure(t *testing.T) {
	src := &fakeSource{
		hashrate: big.NewInt(1),
		total:    big.NewInt(4),
		perBlock: wei("1000000000000000000"),
		pending:  wei("2000000000000000000"),
	}
	r := NewReader(src, common.Address{}, common.Address{}, 0, 0, zap.NewNop(), nil)
	start := time.Unix(100, 0)
	r.Stats(context.Background(), start)

	src.pendingErr = errors.Wrap(domain.ErrRemoteReadFailed, "execution reverted")
	src.hashrate = big.NewInt(2)

	s := r.Stats(context.Background(), start.Add(time.Minute))
	require.True(t, s.Status.IsDegraded())
	assert.True(t, errors.Is(s.Status.Reason, domain.ErrRemoteReadFailed))
	assert.Equal(t, "2", s.Hashrate)
	assert.Equal(t, "2.00", s.CurrentlyMined)

	// degraded results are not served from cache
	r.Stats(context.Background(), start.Add(time.Minute+time.Second))
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.calls))
}

func TestReader_DefaultsBeforeFirstSuccess(t *testing.T) {
	src := &fakeSource{pendingErr: errors.New("dial tcp: connection refused")}
	r := NewReader(src, common.Address{}, common.Address{}, 0, 0, nil, nil)

	s := r.Stats(context.Background(), time.Unix(1, 0))
	require.True(t, s.Status.IsDegraded())
	expected := domain.DefaultMiningStats()
	expected.Status = s.Status
	assert.Equal(t, expected, s)
}

func TestReader_FetchReusesStatsStoredByEarlierFlight(t *testing.T) {
	src := &fakeSource{hashrate: big.NewInt(1), total: big.NewInt(2), perBlock: big.NewInt(0), pending: big.NewInt(0)}
	r := NewReader(src, common.Address{}, common.Address{}, 0, 0, zap.NewNop(), nil)
	start := time.Unix(100, 0)

	r.Stats(context.Background(), start)
	require.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	s := r.fetch(context.Background(), start.Add(time.Second))
	assert.Equal(t, domain.FreshnessCached, s.Status.Freshness)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	s = r.fetch(context.Background(), start.Add(10*time.Second))
	assert.Equal(t, domain.FreshnessFresh, s.Status.Freshness)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}
