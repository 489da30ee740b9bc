package equities

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
)

// KaseConfig controls the local-market scrape. The exchange publishes
// no free API, so the rendered shares page is fetched through a generic
// CORS relay and scanned for known symbols.
type KaseConfig struct {
	ProxyURL string // relay prefix, the page URL is appended encoded
	PageURL  string
	Symbols  []Symbol
	Timeout  time.Duration // hard deadline for the whole scrape
	Seed     []market.Quote
}

// DefaultSeed is the bootstrap local-market list served until the first
// successful scrape of the current process.
var DefaultSeed = []market.Quote{
	{Symbol: "HSBK", Name: "Halyk Bank", Price: 401.88, Change: 0.80, ChangePercent: 0.20, Currency: "₸"},
	{Symbol: "KZTO", Name: "КазТрансОйл", Price: 966.00, Change: 2.22, ChangePercent: 0.23, Currency: "₸"},
	{Symbol: "KEGC", Name: "KEGOC", Price: 1471.95, Change: 0, ChangePercent: 0, Currency: "₸"},
	{Symbol: "KMGZ", Name: "КазМунайГаз", Price: 23999.99, Change: 873.99, ChangePercent: 3.78, Currency: "₸"},
	{Symbol: "KSPI", Name: "Kaspi.kz", Price: 39901.00, Change: -897.00, ChangePercent: -2.20, Currency: "₸"},
	{Symbol: "KZAP", Name: "Казатомпром", Price: 41950.00, Change: -2340.00, ChangePercent: -5.28, Currency: "₸"},
	{Symbol: "AIRA", Name: "Air Astana", Price: 870.78, Change: -1.22, ChangePercent: -0.14, Currency: "₸"},
	{Symbol: "CCBN", Name: "ЦентрКредит", Price: 4730.51, Change: -31.49, ChangePercent: -0.66, Currency: "₸"},
}

const maxScrapeBody = 4 << 20

var (
	priceRe   = regexp.MustCompile(`\d[\d\s]*[,.]?\d*`)
	percentRe = regexp.MustCompile(`([+-]?\d+[,.]?\d*)\s*%`)
)

type kaseScraper struct {
	cfg    KaseConfig
	client *httpx.Client

	mu       sync.Mutex
	lastGood []market.Quote
}

func newKaseScraper(cfg KaseConfig, hc *httpx.Client) *kaseScraper {
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = "https://api.allorigins.win/raw?url="
	}
	if cfg.PageURL == "" {
		cfg.PageURL = "https://kase.kz/ru/shares/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	seed := cfg.Seed
	if seed == nil {
		seed = DefaultSeed
	}
	return &kaseScraper{cfg: cfg, client: hc, lastGood: append([]market.Quote(nil), seed...)}
}

// fetch returns the current local-market list and whether it came from
// a live scrape. Timeouts and parse failures fall through to the last
// successfully scraped list (the seed on first run); it never errors.
func (k *kaseScraper) fetch(ctx context.Context) ([]market.Quote, bool) {
	html, err := k.fetchPage(ctx)
	if err != nil {
		log.Printf("kase: scrape failed, serving cached list: %v", err)
		return k.lastKnown(), false
	}

	parsed := parseKasePage(html, k.cfg.Symbols)
	if len(parsed) == 0 {
		log.Printf("kase: no symbols extracted, serving cached list")
		return k.lastKnown(), false
	}

	// Symbols that failed extraction keep their previous value rather
	// than dropping out of the list.
	k.mu.Lock()
	prevBySym := make(map[string]market.Quote, len(k.lastGood))
	for _, q := range k.lastGood {
		prevBySym[q.Symbol] = q
	}
	merged := make([]market.Quote, 0, len(k.cfg.Symbols))
	for _, s := range k.cfg.Symbols {
		if q, ok := parsed[s.Symbol]; ok {
			merged = append(merged, q)
		} else if q, ok := prevBySym[s.Symbol]; ok {
			merged = append(merged, q)
		}
	}
	k.lastGood = merged
	k.mu.Unlock()
	return append([]market.Quote(nil), merged...), true
}

func (k *kaseScraper) lastKnown() []market.Quote {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]market.Quote(nil), k.lastGood...)
}

func (k *kaseScraper) fetchPage(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()

	u := k.cfg.ProxyURL + url.QueryEscape(k.cfg.PageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := k.client.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s -> %d", u, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// parseKasePage scans the page line by line for each known symbol token
// and extracts the first price-like token plus an optional percent token
// on the same line. Prices use comma decimal separators and spaces as
// thousands separators.
func parseKasePage(html string, symbols []Symbol) map[string]market.Quote {
	out := make(map[string]market.Quote, len(symbols))
	for _, line := range strings.Split(html, "\n") {
		for _, s := range symbols {
			if _, done := out[s.Symbol]; done {
				continue
			}
			if !strings.Contains(line, s.Symbol) {
				continue
			}
			m := priceRe.FindString(line)
			if m == "" {
				continue
			}
			priceStr := strings.ReplaceAll(m, " ", "")
			priceStr = strings.ReplaceAll(priceStr, ",", ".")
			price, err := strconv.ParseFloat(priceStr, 64)
			if err != nil || price <= 0 {
				continue
			}
			var pct float64
			if pm := percentRe.FindStringSubmatch(line); pm != nil {
				pct, _ = strconv.ParseFloat(strings.ReplaceAll(pm[1], ",", "."), 64)
			}
			out[s.Symbol] = market.Quote{
				Symbol:        s.Symbol,
				Name:          s.Name,
				Price:         price,
				Change:        round2(price * pct / 100),
				ChangePercent: pct,
				Currency:      "₸",
			}
		}
	}
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
