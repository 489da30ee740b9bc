package cache

import (
	"context"
	"time"

	"marketdata/internal/market"
)

// Provider caches the wrapped provider's last Result for a TTL.
// Errors are never cached; a failed refresh surfaces to the caller and
// is retried naturally on the next poll cycle. Two callers racing past
// an expired entry may both hit the upstream; that duplication is
// accepted since the calls are idempotent reads.
type Provider struct {
	P   market.Provider
	TTL time.Duration

	store *Store[market.Result]
}

// Wrap decorates p with a Result-level TTL cache.
func Wrap(p market.Provider, ttl time.Duration) *Provider {
	return &Provider{P: p, TTL: ttl, store: New[market.Result](ttl)}
}

func (c *Provider) Name() string              { return c.P.Name() }
func (c *Provider) Category() market.Category { return c.P.Category() }

func (c *Provider) Fetch(ctx context.Context) (market.Result, error) {
	if c.store == nil || c.TTL <= 0 {
		return c.P.Fetch(ctx)
	}
	key := string(c.P.Category())
	if res, ok := c.store.Get(key); ok {
		return res, nil
	}
	res, err := c.P.Fetch(ctx)
	if err != nil {
		return market.Result{}, err
	}
	c.store.Set(key, res)
	return res, nil
}
