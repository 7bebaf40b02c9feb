// Package claimed serves the claimed amount: the token balance of one fixed wallet,
// read from chain with rate-limit retries and a short freshness window.
package claimed

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/fundboard/internal/cache"
	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/observability"
	"github.com/vadiminshakov/fundboard/pkg/retrier"
)

const (
	DefaultFreshness      = 10 * time.Second
	DefaultAttemptTimeout = 5 * time.Second

	maxAttempts      = 3
	retryInterval    = 500 * time.Millisecond
	retryMultiplier  = 2.0
	fallbackDecimals = 18

	slotName    = "claimed"
	flightKey   = "claimed"
	readBalance = "balanceOf"
	readDecimal = "decimals"
)

// BalanceSource reads ERC-20 state. *clients.ChainClient satisfies it.
type BalanceSource interface {
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Reader produces the claimed amount for a single wallet.
type Reader struct {
	source BalanceSource
	token  common.Address
	holder common.Address

	slot    *cache.Slot[domain.BalanceCacheEntry]
	group   singleflight.Group
	retrier *retrier.Retrier

	logger  *zap.Logger
	metrics *observability.Metrics
}

type options struct {
	freshness      time.Duration
	attemptTimeout time.Duration
	retrierOpts    []retrier.Option
	metrics        *observability.Metrics
}

// Option configures a Reader.
type Option func(*options)

// WithFreshness overrides the cache freshness window.
func WithFreshness(d time.Duration) Option {
	return func(o *options) {
		o.freshness = d
	}
}

// WithAttemptTimeout overrides the deadline of a single remote call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *options) {
		o.attemptTimeout = d
	}
}

// WithRetrierOptions appends options to the default backoff policy.
func WithRetrierOptions(opts ...retrier.Option) Option {
	return func(o *options) {
		o.retrierOpts = append(o.retrierOpts, opts...)
	}
}

// WithMetrics attaches metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewReader creates a reader of holder's balance of token.
func NewReader(source BalanceSource, token, holder common.Address, logger *zap.Logger, opts ...Option) *Reader {
	o := options{
		freshness:      DefaultFreshness,
		attemptTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Reader{
		source:  source,
		token:   token,
		holder:  holder,
		slot:    cache.NewSlot[domain.BalanceCacheEntry](o.freshness),
		logger:  logger,
		metrics: o.metrics,
	}

	base := []retrier.Option{
		retrier.WithMaxAttempts(maxAttempts),
		retrier.WithInitialInterval(retryInterval),
		retrier.WithMultiplier(retryMultiplier),
		retrier.WithJitter(0),
		retrier.WithAttemptTimeout(o.attemptTimeout),
		retrier.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrRateLimited) }),
		retrier.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			logger.Warn("balance read rate limited, backing off",
				zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		}),
	}
	r.retrier = retrier.New(append(base, o.retrierOpts...)...)

	return r
}

// ClaimedAmount returns the claimed amount as of now. It never fails: when the chain
// cannot be read the last cached value, or the fallback computation, is returned
// with a degraded status.
func (r *Reader) ClaimedAmount(ctx context.Context, now time.Time) domain.ClaimedAmount {
	if res, ok := r.cached(now); ok {
		return res
	}
	r.metrics.RecordCacheLookup(slotName, false)

	// the shared fetch must not be aborted by whichever caller started it
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(flightKey, func() (interface{}, error) {
		if res, ok := r.cached(now); ok {
			return res, nil
		}
		return r.refresh(flightCtx, now), nil
	})

	return v.(domain.ClaimedAmount)
}

// Entry returns the last cached entry, zero if nothing was fetched yet.
func (r *Reader) Entry() domain.BalanceCacheEntry {
	entry, _, _ := r.slot.Last()
	return entry
}

func (r *Reader) cached(now time.Time) (domain.ClaimedAmount, bool) {
	entry, _, ok := r.slot.Fresh(now)
	if !ok {
		return domain.ClaimedAmount{}, false
	}
	r.metrics.RecordCacheLookup(slotName, true)

	return domain.ClaimedAmount{
		Amount:    entry.ClaimedAmount,
		FetchedAt: entry.FetchedAt,
		Status:    domain.Cached(),
	}, true
}

func (r *Reader) refresh(ctx context.Context, now time.Time) domain.ClaimedAmount {
	var (
		balance  = new(big.Int)
		decimals = uint8(fallbackDecimals)
		g        errgroup.Group
	)

	g.Go(func() error {
		v, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (*big.Int, error) {
			return r.source.BalanceOf(ctx, r.token, r.holder)
		})
		r.recordOutcome(readBalance, err)
		if err != nil {
			return errors.Wrap(err, "read balance")
		}
		balance = v
		return nil
	})
	g.Go(func() error {
		v, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) (uint8, error) {
			return r.source.Decimals(ctx, r.token)
		})
		r.recordOutcome(readDecimal, err)
		if err != nil {
			return errors.Wrap(err, "read decimals")
		}
		decimals = v
		return nil
	})
	err := g.Wait()

	amount := decimal.NewFromBigInt(balance, -int32(decimals))

	if err != nil {
		r.logger.Warn("claimed amount degraded", zap.Error(err))
		if last, fetchedAt, ok := r.slot.Last(); ok {
			return domain.ClaimedAmount{Amount: last.ClaimedAmount, FetchedAt: fetchedAt, Status: domain.Degraded(err)}
		}
		return domain.ClaimedAmount{Amount: amount, Status: domain.Degraded(err)}
	}

	r.slot.Store(domain.BalanceCacheEntry{ClaimedAmount: amount, FetchedAt: now}, now)
	r.logger.Debug("claimed amount refreshed", zap.String("amount", amount.String()))

	return domain.ClaimedAmount{Amount: amount, FetchedAt: now, Status: domain.Fresh()}
}

func (r *Reader) recordOutcome(read string, err error) {
	switch {
	case err == nil:
		r.metrics.RecordReadOutcome(read, "ok")
	case errors.Is(err, domain.ErrRateLimited):
		r.metrics.RecordReadOutcome(read, "rate_limited")
	default:
		r.metrics.RecordReadOutcome(read, "failed")
	}
}
