// Package metalprice converts a currency-style exchange-rate API into
// precious-metal spot prices in USD per troy ounce, plus derived local
// currency per-gram quotes for gold and silver.
package metalprice

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"strings"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/market/delta"
	"marketdata/internal/ratelimit"
)

const (
	gramsPerTroyOunce = 31.1035
	fallbackUSDToKZT  = 501.24
)

// Symbol is one metal watch-list entry.
type Symbol struct {
	Symbol string
	Name   string
}

// SeedPrice is a plausible demo price served when the upstream cannot
// be reached.
type SeedPrice struct {
	Symbol string
	Name   string
	Price  float64
}

// DefaultSeeds are the fallback spot prices, perturbed by jitter on
// each fallback cycle so the UI shows movement instead of frozen values.
var DefaultSeeds = []SeedPrice{
	{Symbol: "XAU", Name: "Золото", Price: 2045},
	{Symbol: "XAG", Name: "Серебро", Price: 23.15},
	{Symbol: "XPT", Name: "Платина", Price: 925},
	{Symbol: "XPD", Name: "Палладий", Price: 985},
}

type Config struct {
	Name            string
	Endpoint        string // base URL, e.g. https://api.metalpriceapi.com/v1
	APIKey          string // empty means unconfigured: fall back without calling out
	Metals          []Symbol
	MaxPercentSwing float64 // |percent| above this is zeroed as implausible
	// USDToKZT supplies the conversion rate for the per-gram quotes,
	// typically wired to the currency provider's last observed rate.
	// The fallback constant is used when nil or unavailable.
	USDToKZT             func() (float64, bool)
	Seeds                []SeedPrice
	MaxRequestsPerMinute int
	Burst                int
}

type Provider struct {
	cfg     Config
	client  *httpx.Client
	tracker *delta.Tracker
	bucket  *ratelimit.TokenBucket
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "Metalprice"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.metalpriceapi.com/v1"
	}
	if cfg.MaxPercentSwing <= 0 {
		cfg.MaxPercentSwing = 15
	}
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = DefaultSeeds
	}
	p := &Provider{cfg: cfg, client: hc, tracker: delta.NewTracker()}
	if cfg.MaxRequestsPerMinute > 0 {
		p.bucket = ratelimit.NewTokenBucket(float64(cfg.MaxRequestsPerMinute)/60.0, cfg.Burst)
	}
	return p
}

func (p *Provider) Name() string              { return p.cfg.Name }
func (p *Provider) Category() market.Category { return market.CategoryMetals }

// Fetch returns per-ounce USD quotes for the configured metals, plus a
// synthetic per-gram local-currency quote for gold and silver. All
// failure modes degrade to jittered seed prices; Fetch never errors.
func (p *Provider) Fetch(ctx context.Context) (market.Result, error) {
	if p.cfg.APIKey == "" {
		return p.fallback(), nil
	}
	if p.bucket != nil {
		if err := p.bucket.Wait(ctx); err != nil {
			return p.fallback(), nil
		}
	}

	rates, err := p.fetchRates(ctx)
	if err != nil {
		log.Printf("%s: %v, serving fallback prices", p.cfg.Name, err)
		return p.fallback(), nil
	}

	quotes := make([]market.Quote, 0, len(p.cfg.Metals)+2)
	for _, m := range p.cfg.Metals {
		raw, ok := rates[m.Symbol]
		if !ok || raw <= 0 {
			continue
		}
		pricePerOz := normalizeUSDPerOunce(raw)

		prev, had := p.tracker.Observe(m.Symbol, pricePerOz)
		var change, pct float64
		if had {
			change, pct = delta.Change(prev, pricePerOz, p.cfg.MaxPercentSwing)
		}

		quotes = append(quotes, market.Quote{
			Symbol:        m.Symbol,
			Name:          m.Name,
			Price:         round2(pricePerOz),
			Change:        round2(change),
			ChangePercent: round2(pct),
			Unit:          "$/oz",
		})

		if m.Symbol == "XAU" || m.Symbol == "XAG" {
			quotes = append(quotes, p.perGramQuote(m, pricePerOz, prev, had, pct))
		}
	}
	if len(quotes) == 0 {
		return p.fallback(), nil
	}
	return market.Result{Status: market.StatusLive, Quotes: quotes}, nil
}

func (p *Provider) fetchRates(ctx context.Context) (map[string]float64, error) {
	currencies := make([]string, 0, len(p.cfg.Metals))
	for _, m := range p.cfg.Metals {
		currencies = append(currencies, m.Symbol)
	}
	u := fmt.Sprintf("%s/latest?api_key=%s&base=USD&currencies=%s",
		p.cfg.Endpoint, p.cfg.APIKey, strings.Join(currencies, ","))

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
		return nil, fmt.Errorf("GET %s/latest -> %d", p.cfg.Endpoint, resp.StatusCode)
	}

	var body struct {
		Success bool               `json:"success"`
		Rates   map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if !body.Success || len(body.Rates) == 0 {
		return nil, fmt.Errorf("metalprice: unusable response (success=%v, %d rates)", body.Success, len(body.Rates))
	}

	// The API labels rates inconsistently: both "XAU" and "USDXAU" occur.
	// Normalize to the bare metal symbol, first occurrence wins.
	out := make(map[string]float64, len(body.Rates))
	for key, v := range body.Rates {
		sym := strings.ReplaceAll(key, "USD", "")
		if sym == "" {
			continue
		}
		if _, dup := out[sym]; dup {
			continue
		}
		out[sym] = v
	}
	return out, nil
}

// normalizeUSDPerOunce resolves the upstream's unit ambiguity: the rate
// may arrive as ounces-per-dollar (< 1) or dollars-per-ounce (> 1) and
// does not self-identify which. Every tradeable precious metal costs
// more than $1/oz, so whichever of {raw, 1/raw} exceeds 1 is the price.
// Documented heuristic about this upstream, not a contract; keep it
// behind this function so it can be swapped without touching the rest
// of the provider.
func normalizeUSDPerOunce(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	if inv := 1 / raw; inv > 1 {
		return inv
	}
	return raw
}

func (p *Provider) perGramQuote(m Symbol, pricePerOz, prev float64, had bool, pct float64) market.Quote {
	rate := fallbackUSDToKZT
	if p.cfg.USDToKZT != nil {
		if r, ok := p.cfg.USDToKZT(); ok && r > 0 {
			rate = r
		}
	}
	perGram := pricePerOz / gramsPerTroyOunce * rate
	var changeKZT float64
	if had && pct != 0 {
		prevPerGram := prev / gramsPerTroyOunce * rate
		changeKZT = math.Round(perGram - prevPerGram)
	}
	return market.Quote{
		Symbol:        m.Symbol + "/KZT",
		Name:          m.Name + " (₸)",
		Price:         math.Round(perGram),
		Change:        changeKZT,
		ChangePercent: round2(pct),
		Unit:          "₸/г",
	}
}

// fallback serves the seed prices with a bounded ±1% jitter. The
// tracker is left untouched: demo prices must not become the baseline
// for the next live cycle's delta.
func (p *Provider) fallback() market.Result {
	quotes := make([]market.Quote, 0, len(p.cfg.Seeds)+2)
	for _, seed := range p.cfg.Seeds {
		jitter := (rand.Float64() - 0.5) * 0.02
		price := seed.Price * (1 + jitter)
		quotes = append(quotes, market.Quote{
			Symbol:        seed.Symbol,
			Name:          seed.Name,
			Price:         round2(price),
			Change:        round2(price - seed.Price),
			ChangePercent: round2(jitter * 100),
			Unit:          "$/oz",
		})
		if seed.Symbol == "XAU" || seed.Symbol == "XAG" {
			rate := fallbackUSDToKZT
			if p.cfg.USDToKZT != nil {
				if r, ok := p.cfg.USDToKZT(); ok && r > 0 {
					rate = r
				}
			}
			perGram := price / gramsPerTroyOunce * rate
			seedPerGram := seed.Price / gramsPerTroyOunce * rate
			quotes = append(quotes, market.Quote{
				Symbol:        seed.Symbol + "/KZT",
				Name:          seed.Name + " (₸)",
				Price:         math.Round(perGram),
				Change:        math.Round(perGram - seedPerGram),
				ChangePercent: round2(jitter * 100),
				Unit:          "₸/г",
			})
		}
	}
	return market.Result{Status: market.StatusFallback, Quotes: quotes}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
