// Package binance fetches 24h ticker statistics for a fixed list of
// trading pairs in one batched call. The upstream reports absolute and
// percent change directly, so no local delta tracking is needed.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
)

type Config struct {
	Name     string
	Endpoint string // base URL, e.g. https://api.binance.com/api/v3
	Pairs    []Pair
}

// Pair maps an exchange trading pair to its display symbol and name.
type Pair struct {
	Pair   string // e.g. BTCUSDT
	Symbol string // e.g. BTC
	Name   string // e.g. Bitcoin
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.binance.com/api/v3"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string              { return p.cfg.Name }
func (p *Provider) Category() market.Category { return market.CategoryCrypto }

// Fetch returns 24h quotes for the configured pairs. On any network or
// parse failure it returns an error and no quotes: callers must treat
// that as "crypto temporarily unavailable", never fabricate fallback
// crypto data here.
func (p *Provider) Fetch(ctx context.Context) (market.Result, error) {
	if len(p.cfg.Pairs) == 0 {
		return market.Result{Status: market.StatusUnavailable}, fmt.Errorf("binance: no pairs configured")
	}

	names := make([]string, 0, len(p.cfg.Pairs))
	for _, pr := range p.cfg.Pairs {
		names = append(names, strconv.Quote(pr.Pair))
	}
	list := "[" + strings.Join(names, ",") + "]"
	u := fmt.Sprintf("%s/ticker/24hr?symbols=%s", p.cfg.Endpoint, url.QueryEscape(list))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return market.Result{Status: market.StatusUnavailable}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return market.Result{Status: market.StatusUnavailable}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return market.Result{Status: market.StatusUnavailable}, fmt.Errorf("GET %s -> %d", u, resp.StatusCode)
	}

	var tickers []ticker
	if err := json.NewDecoder(resp.Body).Decode(&tickers); err != nil {
		return market.Result{Status: market.StatusUnavailable}, fmt.Errorf("decode: %w", err)
	}

	byPair := make(map[string]ticker, len(tickers))
	for _, t := range tickers {
		byPair[t.Symbol] = t
	}

	// One bad or missing symbol must not sink its batch siblings.
	quotes := make([]market.Quote, 0, len(p.cfg.Pairs))
	for _, pr := range p.cfg.Pairs {
		t, ok := byPair[pr.Pair]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(t.LastPrice, 64)
		if err != nil || price <= 0 {
			continue
		}
		change, _ := strconv.ParseFloat(t.PriceChange, 64)
		pct, _ := strconv.ParseFloat(t.PriceChangePercent, 64)
		sym := pr.Symbol
		if sym == "" {
			sym = strings.TrimSuffix(pr.Pair, "USDT")
		}
		name := pr.Name
		if name == "" {
			name = pr.Pair
		}
		quotes = append(quotes, market.Quote{
			Symbol:        sym,
			Name:          name,
			Price:         price,
			Change:        change,
			ChangePercent: pct,
		})
	}
	if len(quotes) == 0 {
		return market.Result{Status: market.StatusUnavailable}, fmt.Errorf("binance: no usable tickers in response")
	}
	return market.Result{Status: market.StatusLive, Quotes: quotes}, nil
}

type ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
}
