// Package aggregate fans out to the four category providers, merges
// their results into one snapshot, derives the liveness flag and caches
// the merged snapshot so a polling UI is served without re-invoking any
// provider inside the TTL window.
package aggregate

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"marketdata/internal/market"
	"marketdata/internal/market/cache"
)

//go:generate mockgen -package=aggregate_test -destination=mock_provider_test.go marketdata/internal/market Provider

const snapshotKey = "all_market_data"

type Config struct {
	Stocks     market.Provider
	Crypto     market.Provider
	Metals     market.Provider
	Currencies market.Provider
	// SnapshotTTL is the freshness window of the merged snapshot. It is
	// deliberately coarser than the per-provider caches sitting below.
	SnapshotTTL time.Duration
}

type Aggregator struct {
	cfg       Config
	snapshots *cache.Store[market.Snapshot]
}

func New(cfg Config) *Aggregator {
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = time.Minute
	}
	return &Aggregator{
		cfg:       cfg,
		snapshots: cache.New[market.Snapshot](cfg.SnapshotTTL),
	}
}

// Snapshot is the sole consumer entry point. It is total: total failure
// of every provider yields empty categories and Live=false, never an
// error. Repeated calls within the TTL window return the cached merge.
func (a *Aggregator) Snapshot(ctx context.Context) market.Snapshot {
	if snap, ok := a.snapshots.Get(snapshotKey); ok {
		return snap
	}

	var stocks, crypto, metals, currencies market.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { stocks = a.fetch(gctx, a.cfg.Stocks); return nil })
	g.Go(func() error { crypto = a.fetch(gctx, a.cfg.Crypto); return nil })
	g.Go(func() error { metals = a.fetch(gctx, a.cfg.Metals); return nil })
	g.Go(func() error { currencies = a.fetch(gctx, a.cfg.Currencies); return nil })
	_ = g.Wait()

	snap := market.Snapshot{
		Stocks:      orEmpty(stocks.Quotes),
		Crypto:      orEmpty(crypto.Quotes),
		Metals:      orEmpty(metals.Quotes),
		Currencies:  orEmpty(currencies.Quotes),
		GeneratedAt: time.Now().UTC(),
		Live:        isLiveResult(stocks) && isLiveResult(crypto),
	}
	a.snapshots.Set(snapshotKey, snap)
	return snap
}

// Category fetches one category through its provider (and that
// provider's own cache), without touching the merged snapshot.
func (a *Aggregator) Category(ctx context.Context, cat market.Category) []market.Quote {
	var p market.Provider
	switch cat {
	case market.CategoryStocks:
		p = a.cfg.Stocks
	case market.CategoryCrypto:
		p = a.cfg.Crypto
	case market.CategoryMetals:
		p = a.cfg.Metals
	case market.CategoryCurrencies:
		p = a.cfg.Currencies
	}
	res := a.fetch(ctx, p)
	return orEmpty(res.Quotes)
}

// fetch degrades a provider failure to an unavailable result: one
// provider's outage must never abort the merge.
func (a *Aggregator) fetch(ctx context.Context, p market.Provider) market.Result {
	if p == nil {
		return market.Result{Status: market.StatusUnavailable}
	}
	res, err := p.Fetch(ctx)
	if err != nil {
		log.Printf("%s: %v", p.Name(), err)
		return market.Result{Status: market.StatusUnavailable}
	}
	return res
}

func isLiveResult(r market.Result) bool {
	return r.Status == market.StatusLive && len(r.Quotes) > 0
}

func orEmpty(qs []market.Quote) []market.Quote {
	if qs == nil {
		return []market.Quote{}
	}
	return qs
}
