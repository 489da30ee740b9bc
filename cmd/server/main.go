package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"marketdata/internal/aggregate"
	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/market/cache"
	"marketdata/internal/provider/binance"
	"marketdata/internal/provider/equities"
	"marketdata/internal/provider/metalprice"
	"marketdata/internal/provider/openerapi"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if !cfg.FinnhubConfigured() {
		log.Println("warning: FINNHUB_API_KEY not set; foreign equities run in fallback mode")
	}
	if !cfg.MetalAPIConfigured() {
		log.Println("warning: METALPRICE_API_KEY not set; metals run in fallback mode")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	agg := buildAggregator(cfg, httpClient)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeSnapshot(w, r.Context(), agg)
	})
	mux.HandleFunc("/api/markets", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeCategory(w, r.Context(), agg, r.URL.Query().Get("category"))
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			FinnhubConfigured:  cfg.FinnhubConfigured(),
			MetalAPIConfigured: cfg.MetalAPIConfigured(),
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildAggregator wires the four providers behind their caches. The
// currency provider is built first so the metals provider can source
// its USD/KZT conversion from the currency tracker.
func buildAggregator(cfg config.Config, hc *httpx.Client) *aggregate.Aggregator {
	// Placeholder keys from a template config count as unconfigured and
	// must never reach the upstream.
	finnhubKey := ""
	if cfg.FinnhubConfigured() {
		finnhubKey = cfg.Finnhub.APIKey
	}
	metalKey := ""
	if cfg.MetalAPIConfigured() {
		metalKey = cfg.Metalprice.APIKey
	}

	cur := openerapi.New(openerapi.Config{
		Endpoint:        cfg.Currency.Endpoint,
		Pairs:           currencyPairs(cfg.Currency.Pairs),
		MaxPercentSwing: cfg.Currency.MaxPercentSwing,
	}, hc)

	eq := equities.New(equities.Config{
		Endpoint: cfg.Finnhub.Endpoint,
		APIKey:   finnhubKey,
		Symbols:  symbols(cfg.Finnhub.Symbols),
		Pace:     time.Duration(cfg.Finnhub.PaceMs) * time.Millisecond,
		Kase: equities.KaseConfig{
			ProxyURL: cfg.Kase.ProxyURL,
			PageURL:  cfg.Kase.PageURL,
			Symbols:  symbols(cfg.Kase.Symbols),
			Timeout:  time.Duration(cfg.Kase.TimeoutSec) * time.Second,
		},
	}, hc)

	cr := binance.New(binance.Config{
		Endpoint: cfg.Binance.Endpoint,
		Pairs:    cryptoPairs(cfg.Binance.Pairs),
	}, hc)

	mt := metalprice.New(metalprice.Config{
		Endpoint:             cfg.Metalprice.Endpoint,
		APIKey:               metalKey,
		Metals:               metalSymbols(cfg.Metalprice.Metals),
		MaxPercentSwing:      cfg.Metalprice.MaxPercentSwing,
		MaxRequestsPerMinute: cfg.Metalprice.MaxRequestsPerMinute,
		Burst:                cfg.Metalprice.Burst,
		USDToKZT:             func() (float64, bool) { return cur.LastRate("USD/KZT") },
	}, hc)

	return aggregate.New(aggregate.Config{
		Stocks:      wrap(eq, cfg.Finnhub.CacheTTLSeconds),
		Crypto:      wrap(cr, cfg.Binance.CacheTTLSeconds),
		Metals:      wrap(mt, cfg.Metalprice.CacheTTLSeconds),
		Currencies:  wrap(cur, cfg.Currency.CacheTTLSeconds),
		SnapshotTTL: time.Duration(cfg.Snapshot.CacheTTLSeconds) * time.Second,
	})
}

func wrap(p market.Provider, ttlSec int) market.Provider {
	if ttlSec <= 0 {
		return p
	}
	return cache.Wrap(p, time.Duration(ttlSec)*time.Second)
}

func symbols(in []config.Symbol) []equities.Symbol {
	out := make([]equities.Symbol, 0, len(in))
	for _, s := range in {
		out = append(out, equities.Symbol{Symbol: s.Symbol, Name: s.Name})
	}
	return out
}

func cryptoPairs(in []config.Pair) []binance.Pair {
	out := make([]binance.Pair, 0, len(in))
	for _, p := range in {
		out = append(out, binance.Pair{Pair: p.Pair, Symbol: p.Symbol, Name: p.Name})
	}
	return out
}

func metalSymbols(in []config.Symbol) []metalprice.Symbol {
	out := make([]metalprice.Symbol, 0, len(in))
	for _, s := range in {
		out = append(out, metalprice.Symbol{Symbol: s.Symbol, Name: s.Name})
	}
	return out
}

func currencyPairs(in []config.CurrencyPair) []openerapi.Pair {
	out := make([]openerapi.Pair, 0, len(in))
	for _, p := range in {
		out = append(out, openerapi.Pair{Symbol: p.Symbol, Name: p.Name, Base: p.Base, Flag: p.Flag})
	}
	return out
}

type statusResponse struct {
	FinnhubConfigured  bool `json:"finnhub_configured"`
	MetalAPIConfigured bool `json:"metal_api_configured"`
}

func writeSnapshot(w http.ResponseWriter, ctx context.Context, agg *aggregate.Aggregator) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	snap := agg.Snapshot(ctx)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(snap)
}

func writeCategory(w http.ResponseWriter, ctx context.Context, agg *aggregate.Aggregator, category string) {
	cat := market.Category(strings.ToLower(strings.TrimSpace(category)))
	switch cat {
	case market.CategoryStocks, market.CategoryCrypto, market.CategoryMetals, market.CategoryCurrencies:
	default:
		http.Error(w, "unknown category", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	quotes := agg.Category(ctx, cat)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(quotesResponse{Quotes: quotes})
}

type quotesResponse struct {
	Quotes []market.Quote `json:"quotes"`
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for the mobile/web UI; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
