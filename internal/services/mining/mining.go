// Package mining reads the on-chain mining figures of one wallet.
package mining

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
	DefaultFreshness    = 5 * time.Second
	DefaultBlocksPerDay = 28800

	attemptTimeout = 5 * time.Second
	retryInterval  = 250 * time.Millisecond
	slotName       = "mining"
	weiDecimals    = 18
)

// Source reads the mining contract. *clients.ChainClient satisfies it.
type Source interface {
	PlayerHashrate(ctx context.Context, contract, player common.Address) (*big.Int, error)
	TotalHashrate(ctx context.Context, contract common.Address) (*big.Int, error)
	PlayerPerBlock(ctx context.Context, contract, player common.Address) (*big.Int, error)
	PendingRewards(ctx context.Context, contract, player common.Address) (*big.Int, error)
}

// Reader serves MiningStats, refreshing them at most once per freshness window.
type Reader struct {
	source       Source
	contract     common.Address
	wallet       common.Address
	blocksPerDay decimal.Decimal

	slot    *cache.Slot[domain.MiningStats]
	group   singleflight.Group
	retrier *retrier.Retrier
	logger  *zap.Logger
	metrics *observability.Metrics
}

func NewReader(source Source, contract, wallet common.Address, blocksPerDay int64, freshness time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Reader {
	if blocksPerDay <= 0 {
		blocksPerDay = DefaultBlocksPerDay
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reader{
		source:       source,
		contract:     contract,
		wallet:       wallet,
		blocksPerDay: decimal.NewFromInt(blocksPerDay),
		slot:         cache.NewSlot[domain.MiningStats](freshness),
		retrier: retrier.New(
			retrier.WithMaxAttempts(2),
			retrier.WithInitialInterval(retryInterval),
			retrier.WithJitter(0),
			retrier.WithAttemptTimeout(attemptTimeout),
			retrier.WithRetryIf(func(err error) bool { return errors.Is(err, domain.ErrRateLimited) }),
		),
		logger:  logger,
		metrics: metrics,
	}
}

// Stats returns the mining figures as of now. Fields whose read failed keep
// their last known value and the result is marked degraded.
func (r *Reader) Stats(ctx context.Context, now time.Time) domain.MiningStats {
	if s, ok := r.cached(now); ok {
		r.metrics.RecordCacheLookup(slotName, true)
		return s
	}
	r.metrics.RecordCacheLookup(slotName, false)

	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := r.group.Do(slotName, func() (interface{}, error) {
		return r.fetch(flightCtx, now), nil
	})

	return v.(domain.MiningStats)
}

// fetch runs inside the flight. A flight that finished after the caller's
// cache check may already have stored a fresh value.
func (r *Reader) fetch(ctx context.Context, now time.Time) domain.MiningStats {
	if s, ok := r.cached(now); ok {
		return s
	}
	return r.refresh(ctx, now)
}

func (r *Reader) cached(now time.Time) (domain.MiningStats, bool) {
	s, _, ok := r.slot.Fresh(now)
	if !ok || s.Status.IsDegraded() {
		return domain.MiningStats{}, false
	}
	s.Status = domain.Cached()
	return s, true
}

type readings struct {
	hashrate *big.Int
	total    *big.Int
	perBlock *big.Int
	pending  *big.Int
}

func (r *Reader) refresh(ctx context.Context, now time.Time) domain.MiningStats {
	prev, _, ok := r.slot.Last()
	if !ok {
		prev = domain.DefaultMiningStats()
	}

	var (
		rd readings
		g  errgroup.Group
	)
	g.Go(r.read(ctx, "playerHashrate", &rd.hashrate, func(ctx context.Context) (*big.Int, error) {
		return r.source.PlayerHashrate(ctx, r.contract, r.wallet)
	}))
	g.Go(r.read(ctx, "totalHashrate", &rd.total, func(ctx context.Context) (*big.Int, error) {
		return r.source.TotalHashrate(ctx, r.contract)
	}))
	g.Go(r.read(ctx, "playerEthermaxPerBlock", &rd.perBlock, func(ctx context.Context) (*big.Int, error) {
		return r.source.PlayerPerBlock(ctx, r.contract, r.wallet)
	}))
	g.Go(r.read(ctx, "pendingRewards", &rd.pending, func(ctx context.Context) (*big.Int, error) {
		return r.source.PendingRewards(ctx, r.contract, r.wallet)
	}))
	err := g.Wait()

	stats := Merge(prev, rd.hashrate, rd.total, rd.perBlock, rd.pending, r.blocksPerDay)
	if err != nil {
		r.logger.Warn("mining stats degraded", zap.Error(err))
		stats.Status = domain.Degraded(err)
	} else {
		stats.Status = domain.Fresh()
	}
	r.slot.Store(stats, now)

	return stats
}

func (r *Reader) read(ctx context.Context, name string, dst **big.Int, call func(ctx context.Context) (*big.Int, error)) func() error {
	return func() error {
		v, err := retrier.DoWithData(r.retrier, ctx, call)
		if err != nil {
			r.metrics.RecordReadOutcome(name, "failed")
			return errors.Wrap(err, name)
		}
		r.metrics.RecordReadOutcome(name, "ok")
		*dst = v
		return nil
	}
}

// Merge formats fresh readings over prev. A nil reading keeps the field(s) it feeds.
func Merge(prev domain.MiningStats, hashrate, total, perBlock, pending *big.Int, blocksPerDay decimal.Decimal) domain.MiningStats {
	out := prev

	if hashrate != nil {
		out.Hashrate = hashrate.String()
	}
	if hashrate != nil && total != nil && total.Sign() > 0 {
		out.PowerPercent = decimal.NewFromBigInt(hashrate, 0).
			Mul(decimal.NewFromInt(100)).
			DivRound(decimal.NewFromBigInt(total, 0), 4).
			StringFixed(4)
	}
	if perBlock != nil {
		out.MinedPerDay = decimal.NewFromBigInt(perBlock, -weiDecimals).Mul(blocksPerDay).StringFixed(0)
	}
	if pending != nil {
		out.CurrentlyMined = decimal.NewFromBigInt(pending, -weiDecimals).RoundFloor(2).StringFixed(2)
	}

	return out
}
