// Command fetch runs one refresh cycle and prints the merged snapshot
// (or a single category) as JSON. Useful for smoke-testing API keys and
// watch-list config without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"marketdata/internal/aggregate"
	"marketdata/internal/config"
	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/provider/binance"
	"marketdata/internal/provider/equities"
	"marketdata/internal/provider/metalprice"
	"marketdata/internal/provider/openerapi"
)

func main() {
	var configPath string
	var category string
	var timeout int

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.StringVar(&category, "category", "", "fetch only one category: stocks, crypto, metals, currencies")
	flag.IntVar(&timeout, "timeout", 30, "overall fetch timeout seconds")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hc := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

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

	agg := aggregate.New(aggregate.Config{
		Stocks:      eq,
		Crypto:      cr,
		Metals:      mt,
		Currencies:  cur,
		SnapshotTTL: time.Duration(cfg.Snapshot.CacheTTLSeconds) * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if category != "" {
		quotes := agg.Category(ctx, market.Category(category))
		if err := enc.Encode(quotes); err != nil {
			log.Fatalf("encode: %v", err)
		}
		return
	}
	snap := agg.Snapshot(ctx)
	if err := enc.Encode(snap); err != nil {
		log.Fatalf("encode: %v", err)
	}
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
