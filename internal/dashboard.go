package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vadiminshakov/fundboard/internal/domain"
	"github.com/vadiminshakov/fundboard/internal/observability"
	"github.com/vadiminshakov/fundboard/internal/services/aggregator"
)

type transferSource interface {
	TxList(ctx context.Context, address string) ([]domain.TransferRecord, error)
	TokenTransfers(ctx context.Context, contract, address string) ([]domain.TransferRecord, error)
}

type claimedService interface {
	ClaimedAmount(ctx context.Context, now time.Time) domain.ClaimedAmount
}

type miningService interface {
	Stats(ctx context.Context, now time.Time) domain.MiningStats
}

type quoteService interface {
	Quote(ctx context.Context, pair domain.Pair, now time.Time) domain.Quote
}

// DashboardConfig identifies the raise being tracked.
type DashboardConfig struct {
	TargetWallet  string
	NativeGoal    decimal.Decimal
	TokenContract string
	TokenGoal     decimal.Decimal
	PricePair     domain.Pair
	// Aliases display names keyed by contributor address.
	Aliases map[string]string
}

// Dashboard answers every read the frontend polls for. None of its methods fail:
// upstream problems are reported through the Status of the returned value.
type Dashboard struct {
	conf     DashboardConfig
	aliases  map[string]string
	explorer transferSource
	claimed  claimedService
	mining   miningService
	prices   quoteService

	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewDashboard creates a dashboard over its data sources.
func NewDashboard(
	conf DashboardConfig,
	explorer transferSource,
	claimed claimedService,
	mining miningService,
	prices quoteService,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	aliases := make(map[string]string, len(conf.Aliases))
	for addr, name := range conf.Aliases {
		aliases[domain.NormalizeAddress(addr)] = name
	}

	return &Dashboard{
		conf:     conf,
		aliases:  aliases,
		explorer: explorer,
		claimed:  claimed,
		mining:   mining,
		prices:   prices,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Goal returns the configured goal for kind.
func (d *Dashboard) Goal(kind domain.AssetKind) decimal.Decimal {
	if kind == domain.AssetToken {
		return d.conf.TokenGoal
	}
	return d.conf.NativeGoal
}

// Contributions aggregates the current transfer history of kind. When the explorer
// is unavailable an empty summary is returned with a degraded status.
func (d *Dashboard) Contributions(ctx context.Context, kind domain.AssetKind) domain.Contribution {
	flightCtx := context.WithoutCancel(ctx)
	v, _, _ := d.group.Do(kind.String(), func() (interface{}, error) {
		return d.contributions(flightCtx, kind), nil
	})

	c := v.(domain.Contribution)
	// callers sharing a flight must not share the entries slice
	c.Summary.Contributions = append([]domain.ContributorEntry(nil), c.Summary.Contributions...)
	if c.Summary.Contributions == nil {
		c.Summary.Contributions = []domain.ContributorEntry{}
	}
	return c
}

func (d *Dashboard) contributions(ctx context.Context, kind domain.AssetKind) domain.Contribution {
	goal := d.Goal(kind)

	records, err := d.fetch(ctx, kind)
	if err != nil {
		d.logger.Warn("transfer history unavailable, serving empty summary",
			zap.String("asset", kind.String()), zap.Error(err))
		return domain.Contribution{Kind: kind, Summary: domain.EmptySummary(goal), Status: domain.Degraded(err)}
	}

	summary := aggregator.Aggregate(records, d.conf.TargetWallet, goal, aggregator.PolicyFor(kind))
	if summary.Malformed > 0 {
		d.metrics.RecordMalformed(kind.String(), summary.Malformed)
		d.logger.Warn("skipped malformed transfer records",
			zap.String("asset", kind.String()), zap.Int("count", summary.Malformed))
	}
	for i := range summary.Contributions {
		summary.Contributions[i].Alias = d.aliases[summary.Contributions[i].Address]
	}

	return domain.Contribution{Kind: kind, Summary: summary, Status: domain.Fresh()}
}

func (d *Dashboard) fetch(ctx context.Context, kind domain.AssetKind) ([]domain.TransferRecord, error) {
	switch kind {
	case domain.AssetNative:
		return d.explorer.TxList(ctx, d.conf.TargetWallet)
	case domain.AssetToken:
		return d.explorer.TokenTransfers(ctx, d.conf.TokenContract, d.conf.TargetWallet)
	default:
		return nil, errors.Errorf("unknown asset kind %d", kind)
	}
}

// Leaderboard returns the top limit contributors of kind by amount. limit <= 0 returns all.
func (d *Dashboard) Leaderboard(ctx context.Context, kind domain.AssetKind, limit int) domain.Contribution {
	c := d.Contributions(ctx, kind)
	c.Summary.Contributions = aggregator.Rank(c.Summary.Contributions, limit)
	return c
}

// ClaimedAmount returns the claimed amount.
func (d *Dashboard) ClaimedAmount(ctx context.Context) domain.ClaimedAmount {
	return d.claimed.ClaimedAmount(ctx, d.now())
}

// MiningStats returns the mining figures.
func (d *Dashboard) MiningStats(ctx context.Context) domain.MiningStats {
	return d.mining.Stats(ctx, d.now())
}

// RaiseValue values the native raise at the current spot price.
func (d *Dashboard) RaiseValue(ctx context.Context) domain.RaiseValue {
	c := d.Contributions(ctx, domain.AssetNative)
	q := d.prices.Quote(ctx, d.conf.PricePair, d.now())

	rv := domain.RaiseValue{
		Quote:         q,
		TotalReceived: c.Summary.TotalCollected,
		TotalValue:    c.Summary.TotalCollected.Mul(q.Price).Round(2),
		Status:        domain.Fresh(),
	}
	switch {
	case c.Status.IsDegraded():
		rv.Status = c.Status
	case q.Status.IsDegraded():
		rv.Status = q.Status
	}
	return rv
}
