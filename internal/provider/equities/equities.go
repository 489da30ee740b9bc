// Package equities obtains stock quotes from two sources: a quote API
// for foreign large-caps (price and delta supplied per symbol) and a
// scrape of the local exchange's rendered page for symbols that have no
// low-latency official API.
package equities

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/ratelimit"
)

// Symbol is one watch-list entry.
type Symbol struct {
	Symbol string
	Name   string
}

type Config struct {
	Name     string
	Endpoint string // quote API base URL, e.g. https://finnhub.io/api/v1
	APIKey   string // empty means the foreign-market source is unconfigured
	Symbols  []Symbol
	Pace     time.Duration // delay between successive symbol lookups
	Kase     KaseConfig
}

type Provider struct {
	cfg    Config
	client *httpx.Client
	gate   *ratelimit.Gate
	kase   *kaseScraper
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Finnhub"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://finnhub.io/api/v1"
	}
	if cfg.Pace <= 0 {
		cfg.Pace = 100 * time.Millisecond
	}
	return &Provider{
		cfg:    cfg,
		client: hc,
		gate:   &ratelimit.Gate{Interval: cfg.Pace},
		kase:   newKaseScraper(cfg.Kase, hc),
	}
}

func (p *Provider) Name() string              { return p.cfg.Name }
func (p *Provider) Category() market.Category { return market.CategoryStocks }

// Fetch collects foreign quotes one symbol at a time (paced to respect
// the upstream rate limit) and appends the local-market list. A single
// symbol's failure never aborts the batch.
func (p *Provider) Fetch(ctx context.Context) (market.Result, error) {
	quotes := make([]market.Quote, 0, len(p.cfg.Symbols)+8)
	live := false

	if p.cfg.APIKey != "" {
		for _, s := range p.cfg.Symbols {
			if err := p.gate.Wait(ctx); err != nil {
				break
			}
			q, err := p.fetchQuote(ctx, s)
			if err != nil {
				log.Printf("%s: %s: %v", p.cfg.Name, s.Symbol, err)
				continue
			}
			if q == nil {
				// zero/invalid price: symbol unavailable this cycle
				continue
			}
			quotes = append(quotes, *q)
			live = true
		}
	}

	kaseQuotes, kaseLive := p.kase.fetch(ctx)
	quotes = append(quotes, kaseQuotes...)
	live = live || kaseLive

	status := market.StatusFallback
	if live {
		status = market.StatusLive
	} else if len(quotes) == 0 {
		status = market.StatusUnavailable
	}
	return market.Result{Status: status, Quotes: quotes}, nil
}

// KaseQuotes returns the most recent local-market list (seed values
// until the first successful scrape).
func (p *Provider) KaseQuotes() []market.Quote {
	return p.kase.lastKnown()
}

func (p *Provider) fetchQuote(ctx context.Context, s Symbol) (*market.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", p.cfg.Endpoint, s.Symbol, p.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
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
		return nil, fmt.Errorf("GET %s/quote?symbol=%s -> %d", p.cfg.Endpoint, s.Symbol, resp.StatusCode)
	}

	// c = current price, d = change, dp = percent change
	var body struct {
		C  float64 `json:"c"`
		D  float64 `json:"d"`
		DP float64 `json:"dp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if body.C <= 0 {
		return nil, nil
	}
	name := s.Name
	if name == "" {
		name = s.Symbol
	}
	return &market.Quote{
		Symbol:        s.Symbol,
		Name:          name,
		Price:         body.C,
		Change:        body.D,
		ChangePercent: body.DP,
	}, nil
}
