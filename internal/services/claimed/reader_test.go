package claimed

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/pkg/retrier"
)

var (
	token  = common.HexToAddress("0x18c389e739676dcd15386d131e22e1cea5b84ad8")
	holder = common.HexToAddress("0x1b69ec2F03c21CF7f9a791Be9c01EfBd01F49Ef5")
)

type fakeSource struct {
	mu          sync.Mutex
	balance     *big.Int
	decimals    uint8
	balanceErr  error
	decimalsErr error
	delay       time.Duration

	balanceCalls  int32
	decimalsCalls int32
}

func (f *fakeSource) BalanceOf(ctx context.Context, _, _ common.Address) (*big.Int, error) {
	atomic.AddInt32(&f.balanceCalls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, errors.Wrap(domain.ErrRemoteReadFailed, ctx.Err().Error())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeSource) Decimals(_ context.Context, _ common.Address) (uint8, error) {
	atomic.AddInt32(&f.decimalsCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decimalsErr != nil {
		return 0, f.decimalsErr
	}
	return f.decimals, nil
}

func (f *fakeSource) fail(balanceErr, decimalsErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceErr = balanceErr
	f.decimalsErr = decimalsErr
}

func newFastReader(src BalanceSource, opts ...Option) *Reader {
	opts = append([]Option{WithRetrierOptions(retrier.WithInitialInterval(time.Millisecond))}, opts...)
	return NewReader(src, token, holder, zap.NewNop(), opts...)
}

func tokens(s string) *big.Int {
	v, _ := new(big.Int).SetString(s, 10)
	return v
}

func TestReader_ComputesClaimedAmount(t *testing.T) {
	src := &fakeSource{balance: tokens("1234500000000000000000"), decimals: 18}
	r := newFastReader(src)
	now := time.UnixMilli(1_700_000_000_000)

	res := r.ClaimedAmount(context.Background(), now)
	assert.Equal(t, "1234.5", res.Amount.String())
	assert.Equal(t, domain.FreshnessFresh, res.Status.Freshness)
	assert.Equal(t, now, res.FetchedAt)
	assert.Equal(t, int64(1_700_000_000_000), r.Entry().FetchedAtEpochMillis())
}

func TestReader_UsesReportedDecimals(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(2500000), decimals: 6}
	r := newFastReader(src)

	res := r.ClaimedAmount(context.Background(), time.Unix(1, 0))
	assert.Equal(t, "2.5", res.Amount.String())
}

func TestReader_FreshnessWindow(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(1e18), decimals: 18}
	r := newFastReader(src)
	start := time.Unix(1000, 0)

	r.ClaimedAmount(context.Background(), start)
	res := r.ClaimedAmount(context.Background(), start.Add(9999*time.Millisecond))

	assert.Equal(t, domain.FreshnessCached, res.Status.Freshness)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.balanceCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.decimalsCalls))

	res = r.ClaimedAmount(context.Background(), start.Add(10*time.Second))
	assert.Equal(t, domain.FreshnessFresh, res.Status.Freshness)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.balanceCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.decimalsCalls))
}

func TestReader_RateLimitRetryBudget(t *testing.T) {
	src := &fakeSource{decimals: 18, balanceErr: errors.Wrap(domain.ErrRateLimited, "429")}

	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	r := newFastReader(src, WithRetrierOptions(retrier.WithOnRetry(func(_ int, d time.Duration, _ error) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	})))

	res := r.ClaimedAmount(context.Background(), time.Unix(1, 0))

	assert.Equal(t, int32(3), atomic.LoadInt32(&src.balanceCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.decimalsCalls))
	require.Len(t, delays, 2)
	assert.GreaterOrEqual(t, delays[1], 2*delays[0])

	require.True(t, res.Status.IsDegraded())
	assert.True(t, errors.Is(res.Status.Reason, domain.ErrRateLimited))
	assert.True(t, res.Amount.IsZero())
}

func TestReader_DefaultBackoffStartsAtHalfSecond(t *testing.T) {
	src := &fakeSource{decimals: 18, balanceErr: domain.ErrRateLimited}

	var delays []time.Duration
	// the hook runs before each sleep; cancelling there keeps the test fast
	ctx, cancel := context.WithCancel(context.Background())
	r := NewReader(src, token, holder, nil, WithRetrierOptions(retrier.WithOnRetry(func(_ int, d time.Duration, _ error) {
		delays = append(delays, d)
		cancel()
	})))

	// exercise the retrier directly so the cancellation reaches the sleep
	_, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (*big.Int, error) {
		return src.BalanceOf(ctx, token, holder)
	})
	require.Error(t, err)
	require.Len(t, delays, 1)
	assert.Equal(t, 500*time.Millisecond, delays[0])
}

func TestReader_NonRateLimitErrorNotRetried(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(5), decimalsErr: errors.Wrap(domain.ErrRemoteReadFailed, "execution reverted")}
	r := newFastReader(src)

	res := r.ClaimedAmount(context.Background(), time.Unix(1, 0))

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.decimalsCalls))
	require.True(t, res.Status.IsDegraded())
	assert.True(t, errors.Is(res.Status.Reason, domain.ErrRemoteReadFailed))
	// balance 5 with fallback decimals 18
	assert.Equal(t, "0.000000000000000005", res.Amount.String())
}

func TestReader_DegradedKeepsLastValue(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(3e18), decimals: 18}
	r := newFastReader(src)
	start := time.Unix(1000, 0)

	first := r.ClaimedAmount(context.Background(), start)
	require.Equal(t, "3", first.Amount.String())

	src.fail(errors.New("connection refused"), nil)
	res := r.ClaimedAmount(context.Background(), start.Add(time.Minute))

	require.True(t, res.Status.IsDegraded())
	assert.Equal(t, "3", res.Amount.String())
	assert.Equal(t, start, res.FetchedAt)
	assert.Equal(t, start, r.Entry().FetchedAt, "cache must not be overwritten by a degraded read")

	// still stale, so the next call tries again
	r.ClaimedAmount(context.Background(), start.Add(time.Minute+time.Second))
	assert.Equal(t, int32(3), atomic.LoadInt32(&src.balanceCalls))
}

func TestReader_SingleFlight(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(1e18), decimals: 18, delay: 50 * time.Millisecond}
	r := newFastReader(src)
	now := time.Unix(1000, 0)

	const callers = 16
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	results := make([]domain.ClaimedAmount, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = r.ClaimedAmount(context.Background(), now)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.balanceCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.decimalsCalls))
	for _, res := range results {
		assert.Equal(t, "1", res.Amount.String())
		assert.False(t, res.Status.IsDegraded())
	}
}

func TestReader_AttemptTimeout(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(1), decimals: 18, delay: time.Second}
	r := newFastReader(src, WithAttemptTimeout(10*time.Millisecond))

	started := time.Now()
	res := r.ClaimedAmount(context.Background(), time.Unix(1, 0))

	assert.Less(t, time.Since(started), 500*time.Millisecond)
	assert.True(t, res.Status.IsDegraded())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.balanceCalls))
}

func TestReader_CallerCancellationDoesNotAbortFetch(t *testing.T) {
	src := &fakeSource{balance: big.NewInt(1e18), decimals: 18, delay: 20 * time.Millisecond}
	r := newFastReader(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := r.ClaimedAmount(ctx, time.Unix(1, 0))
	assert.False(t, res.Status.IsDegraded())
	assert.Equal(t, "1", res.Amount.String())
}
