// Package openerapi fetches fiat exchange rates against the local base
// currency from an open rate API. The upstream reports rates with the
// local currency as base (KZT -> X), so each rate is inverted to get the
// consumer-facing price of one foreign unit in local currency.
package openerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/market/delta"
)

// Pair is one fiat pair quoted against the local base currency.
type Pair struct {
	Symbol string // e.g. USD/KZT
	Name   string
	Base   string // foreign currency code in the upstream rates map
	Flag   string
}

// DefaultFallbackRates is the static table served on total upstream
// failure, with zero change fields.
var DefaultFallbackRates = map[string]float64{
	"USD/KZT": 501.24,
	"EUR/KZT": 528.50,
	"RUB/KZT": 5.12,
	"GBP/KZT": 632.80,
	"CNY/KZT": 68.95,
	"TRY/KZT": 14.20,
	"UZS/KZT": 0.038,
	"KGS/KZT": 5.72,
}

type Config struct {
	Name            string
	Endpoint        string // full URL, e.g. https://open.er-api.com/v6/latest/KZT
	Pairs           []Pair
	MaxPercentSwing float64 // |percent| above this is zeroed as implausible
	FallbackRates   map[string]float64
}

type Provider struct {
	cfg     Config
	client  *httpx.Client
	tracker *delta.Tracker
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "OpenERAPI"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://open.er-api.com/v6/latest/KZT"
	}
	if cfg.MaxPercentSwing <= 0 {
		cfg.MaxPercentSwing = 10
	}
	if cfg.FallbackRates == nil {
		cfg.FallbackRates = DefaultFallbackRates
	}
	return &Provider{cfg: cfg, client: hc, tracker: delta.NewTracker()}
}

func (p *Provider) Name() string              { return p.cfg.Name }
func (p *Provider) Category() market.Category { return market.CategoryCurrencies }

// LastRate returns the most recent live rate observed for a pair
// symbol. The metals provider uses USD/KZT for its per-gram quotes.
func (p *Provider) LastRate(symbol string) (float64, bool) {
	return p.tracker.Last(symbol)
}

// Fetch publishes inverted rates for the configured pairs. Total
// failure degrades to the static fallback table; Fetch never errors.
func (p *Provider) Fetch(ctx context.Context) (market.Result, error) {
	rates, err := p.fetchRates(ctx)
	if err != nil {
		log.Printf("%s: %v, serving fallback rates", p.cfg.Name, err)
		return p.fallback(), nil
	}

	quotes := make([]market.Quote, 0, len(p.cfg.Pairs))
	for _, pair := range p.cfg.Pairs {
		kztRate, ok := rates[pair.Base]
		if !ok || kztRate == 0 {
			continue
		}
		// upstream: 1 KZT = kztRate X; published: 1 X = 1/kztRate KZT
		rate := 1 / kztRate

		prev, had := p.tracker.Observe(pair.Symbol, rate)
		var change, pct float64
		if had {
			change, pct = delta.Change(prev, rate, p.cfg.MaxPercentSwing)
		}

		quotes = append(quotes, market.Quote{
			Symbol:        pair.Symbol,
			Name:          pair.Name,
			Price:         round2(rate),
			Change:        round2(change),
			ChangePercent: round2(pct),
			Currency:      "₸",
			Flag:          pair.Flag,
		})
	}
	if len(quotes) == 0 {
		return p.fallback(), nil
	}
	return market.Result{Status: market.StatusLive, Quotes: quotes}, nil
}

func (p *Provider) fetchRates(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Endpoint, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s -> %d", p.cfg.Endpoint, resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("openerapi: response carries no rates")
	}
	return body.Rates, nil
}

func (p *Provider) fallback() market.Result {
	quotes := make([]market.Quote, 0, len(p.cfg.Pairs))
	for _, pair := range p.cfg.Pairs {
		quotes = append(quotes, market.Quote{
			Symbol:   pair.Symbol,
			Name:     pair.Name,
			Price:    p.cfg.FallbackRates[pair.Symbol],
			Currency: "₸",
			Flag:     pair.Flag,
		})
	}
	return market.Result{Status: market.StatusFallback, Quotes: quotes}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
