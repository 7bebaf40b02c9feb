package pricer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/fundboard/internal/cache"
	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/observability"
)

const (
	DefaultFreshness     = 30 * time.Second
	DefaultSourceTimeout = 5 * time.Second
	cacheSlotName        = "price"
)

// Pricer returns the spot price of a pair.
type Pricer interface {
	Name() string
	GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error)
}

// FallbackPricer asks each source in order and caches the first answer.
type FallbackPricer struct {
	// SourceTimeout bounds a single source call. Zero selects DefaultSourceTimeout.
	SourceTimeout time.Duration

	sources []Pricer
	slot    *cache.Slot[domain.Quote]
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewFallbackPricer creates a pricer over sources. freshness <= 0 selects DefaultFreshness.
func NewFallbackPricer(logger *zap.Logger, metrics *observability.Metrics, freshness time.Duration, sources ...Pricer) *FallbackPricer {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackPricer{
		sources: sources,
		slot:    cache.NewSlot[domain.Quote](freshness),
		logger:  logger,
		metrics: metrics,
	}
}

// Quote returns the price of pair. When every source fails the last known quote
// (or a zero price) is returned with a degraded status.
func (p *FallbackPricer) Quote(ctx context.Context, pair domain.Pair, now time.Time) domain.Quote {
	if q, ok := p.cached(pair, now); ok {
		p.metrics.RecordCacheLookup(cacheSlotName, true)
		return q
	}
	p.metrics.RecordCacheLookup(cacheSlotName, false)

	// the shared fetch must not be aborted by whichever caller started it
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := p.group.Do(pair.String(), func() (interface{}, error) {
		return p.fetch(flightCtx, pair, now), nil
	})
	return v.(domain.Quote)
}

// fetch runs inside the flight and skips the sources when an earlier flight
// already stored a fresh quote.
func (p *FallbackPricer) fetch(ctx context.Context, pair domain.Pair, now time.Time) domain.Quote {
	if q, ok := p.cached(pair, now); ok {
		return q
	}
	return p.refresh(ctx, pair, now)
}

func (p *FallbackPricer) cached(pair domain.Pair, now time.Time) (domain.Quote, bool) {
	q, _, ok := p.slot.Fresh(now)
	if !ok || q.Pair != pair {
		return domain.Quote{}, false
	}
	q.Status = domain.Cached()
	return q, true
}

func (p *FallbackPricer) refresh(ctx context.Context, pair domain.Pair, now time.Time) domain.Quote {
	var lastErr error = errors.New("no price sources configured")

	for _, src := range p.sources {
		price, err := p.ask(ctx, src, pair)
		if err == nil && !price.IsPositive() {
			err = errors.Errorf("non-positive price %s", price.String())
		}
		if err != nil {
			lastErr = errors.Wrapf(err, "%s", src.Name())
			p.logger.Warn("price source failed", zap.String("source", src.Name()), zap.String("pair", pair.String()), zap.Error(err))
			continue
		}

		q := domain.Quote{Pair: pair, Price: price, Source: src.Name(), FetchedAt: now, Status: domain.Fresh()}
		p.slot.Store(q, now)
		return q
	}

	reason := errors.Wrap(domain.ErrRemoteReadFailed, lastErr.Error())
	if last, _, ok := p.slot.Last(); ok && last.Pair == pair {
		last.Status = domain.Degraded(reason)
		return last
	}
	return domain.Quote{Pair: pair, Price: decimal.Zero, Status: domain.Degraded(reason)}
}

func (p *FallbackPricer) ask(ctx context.Context, src Pricer, pair domain.Pair) (decimal.Decimal, error) {
	timeout := p.SourceTimeout
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		price decimal.Decimal
		err   error
	}
	// some SDKs ignore ctx, so the deadline is enforced here too
	done := make(chan result, 1)
	go func() {
		price, err := src.GetPrice(ctx, pair)
		done <- result{price, err}
	}()

	select {
	case res := <-done:
		return res.price, res.err
	case <-ctx.Done():
		return decimal.Decimal{}, errors.Wrap(ctx.Err(), "price source timed out")
	}
}
