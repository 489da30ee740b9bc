package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

// Symbol is one watch-list entry with its display name.
type Symbol struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Pair is one crypto trading pair with its display symbol and name.
type Pair struct {
	Pair   string `json:"pair"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// CurrencyPair is one fiat pair quoted against the local base currency.
type CurrencyPair struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Base   string `json:"base"`
	Flag   string `json:"flag"`
}

type Finnhub struct {
	APIKey          string   `json:"api_key"`
	Endpoint        string   `json:"endpoint"`
	Symbols         []Symbol `json:"symbols"`
	PaceMs          int      `json:"pace_ms"`
	CacheTTLSeconds int      `json:"cache_ttl_sec"`
}

type Kase struct {
	ProxyURL   string   `json:"proxy_url"`
	PageURL    string   `json:"page_url"`
	Symbols    []Symbol `json:"symbols"`
	TimeoutSec int      `json:"timeout_sec"`
}

type Binance struct {
	Endpoint        string `json:"endpoint"`
	Pairs           []Pair `json:"pairs"`
	CacheTTLSeconds int    `json:"cache_ttl_sec"`
}

type Metalprice struct {
	APIKey               string   `json:"api_key"`
	Endpoint             string   `json:"endpoint"`
	Metals               []Symbol `json:"metals"`
	MaxPercentSwing      float64  `json:"max_percent_swing"`
	MaxRequestsPerMinute int      `json:"max_requests_per_minute"`
	Burst                int      `json:"burst"`
	CacheTTLSeconds      int      `json:"cache_ttl_sec"`
}

type Currency struct {
	Endpoint        string         `json:"endpoint"`
	Pairs           []CurrencyPair `json:"pairs"`
	MaxPercentSwing float64        `json:"max_percent_swing"`
	CacheTTLSeconds int            `json:"cache_ttl_sec"`
}

type Snapshot struct {
	CacheTTLSeconds int `json:"cache_ttl_sec"`
}

type Config struct {
	Server     Server     `json:"server"`
	Finnhub    Finnhub    `json:"finnhub"`
	Kase       Kase       `json:"kase"`
	Binance    Binance    `json:"binance"`
	Metalprice Metalprice `json:"metalprice"`
	Currency   Currency   `json:"currency"`
	Snapshot   Snapshot   `json:"snapshot"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Finnhub: Finnhub{
			Endpoint: "https://finnhub.io/api/v1",
			Symbols: []Symbol{
				{Symbol: "AAPL", Name: "Apple Inc."},
				{Symbol: "MSFT", Name: "Microsoft"},
				{Symbol: "GOOGL", Name: "Alphabet"},
				{Symbol: "AMZN", Name: "Amazon"},
				{Symbol: "NVDA", Name: "NVIDIA"},
				{Symbol: "TSLA", Name: "Tesla"},
				{Symbol: "META", Name: "Meta Platforms"},
			},
			PaceMs:          100,
			CacheTTLSeconds: 30,
		},
		Kase: Kase{
			ProxyURL: "https://api.allorigins.win/raw?url=",
			PageURL:  "https://kase.kz/ru/shares/",
			Symbols: []Symbol{
				{Symbol: "HSBK", Name: "Halyk Bank"},
				{Symbol: "KZTO", Name: "КазТрансОйл"},
				{Symbol: "KEGC", Name: "KEGOC"},
				{Symbol: "KMGZ", Name: "КазМунайГаз"},
				{Symbol: "KSPI", Name: "Kaspi.kz"},
				{Symbol: "KZAP", Name: "Казатомпром"},
				{Symbol: "AIRA", Name: "Air Astana"},
				{Symbol: "CCBN", Name: "ЦентрКредит"},
			},
			TimeoutSec: 15,
		},
		Binance: Binance{
			Endpoint: "https://api.binance.com/api/v3",
			Pairs: []Pair{
				{Pair: "BTCUSDT", Symbol: "BTC", Name: "Bitcoin"},
				{Pair: "ETHUSDT", Symbol: "ETH", Name: "Ethereum"},
				{Pair: "BNBUSDT", Symbol: "BNB", Name: "BNB"},
				{Pair: "SOLUSDT", Symbol: "SOL", Name: "Solana"},
				{Pair: "XRPUSDT", Symbol: "XRP", Name: "Ripple"},
				{Pair: "ADAUSDT", Symbol: "ADA", Name: "Cardano"},
				{Pair: "DOGEUSDT", Symbol: "DOGE", Name: "Dogecoin"},
				{Pair: "TONUSDT", Symbol: "TON", Name: "Toncoin"},
			},
			CacheTTLSeconds: 30,
		},
		Metalprice: Metalprice{
			Endpoint: "https://api.metalpriceapi.com/v1",
			Metals: []Symbol{
				{Symbol: "XAU", Name: "Золото"},
				{Symbol: "XAG", Name: "Серебро"},
				{Symbol: "XPT", Name: "Платина"},
				{Symbol: "XPD", Name: "Палладий"},
			},
			MaxPercentSwing:      15,
			MaxRequestsPerMinute: 2,
			Burst:                1,
			CacheTTLSeconds:      30,
		},
		Currency: Currency{
			Endpoint: "https://open.er-api.com/v6/latest/KZT",
			Pairs: []CurrencyPair{
				{Symbol: "USD/KZT", Name: "Доллар США", Base: "USD", Flag: "🇺🇸"},
				{Symbol: "EUR/KZT", Name: "Евро", Base: "EUR", Flag: "🇪🇺"},
				{Symbol: "RUB/KZT", Name: "Российский рубль", Base: "RUB", Flag: "🇷🇺"},
				{Symbol: "GBP/KZT", Name: "Фунт стерлингов", Base: "GBP", Flag: "🇬🇧"},
				{Symbol: "CNY/KZT", Name: "Китайский юань", Base: "CNY", Flag: "🇨🇳"},
				{Symbol: "TRY/KZT", Name: "Турецкая лира", Base: "TRY", Flag: "🇹🇷"},
				{Symbol: "UZS/KZT", Name: "Узбекский сум", Base: "UZS", Flag: "🇺🇿"},
				{Symbol: "KGS/KZT", Name: "Кыргызский сом", Base: "KGS", Flag: "🇰🇬"},
			},
			MaxPercentSwing: 10,
			CacheTTLSeconds: 30,
		},
		Snapshot: Snapshot{CacheTTLSeconds: 60},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// FinnhubConfigured reports whether live equity quotes can be fetched.
// A placeholder key counts as unconfigured.
func (c Config) FinnhubConfigured() bool {
	return c.Finnhub.APIKey != "" && c.Finnhub.APIKey != "your_finnhub_api_key_here"
}

// MetalAPIConfigured reports whether live metal prices can be fetched.
func (c Config) MetalAPIConfigured() bool {
	return c.Metalprice.APIKey != "" && c.Metalprice.APIKey != "your_metalprice_api_key_here"
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Finnhub.APIKey = v
	}
	if v := os.Getenv("FINNHUB_ENDPOINT"); v != "" {
		cfg.Finnhub.Endpoint = v
	}
	if v := os.Getenv("FINNHUB_PACE_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Finnhub.PaceMs = x
		}
	}
	if v := os.Getenv("FINNHUB_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Finnhub.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("KASE_PROXY_URL"); v != "" {
		cfg.Kase.ProxyURL = v
	}
	if v := os.Getenv("KASE_PAGE_URL"); v != "" {
		cfg.Kase.PageURL = v
	}
	if v := os.Getenv("KASE_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Kase.TimeoutSec = x
		}
	}
	if v := os.Getenv("BINANCE_ENDPOINT"); v != "" {
		cfg.Binance.Endpoint = v
	}
	if v := os.Getenv("BINANCE_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Binance.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("METALPRICE_API_KEY"); v != "" {
		cfg.Metalprice.APIKey = v
	}
	if v := os.Getenv("METALPRICE_ENDPOINT"); v != "" {
		cfg.Metalprice.Endpoint = v
	}
	if v := os.Getenv("METALPRICE_MAX_RPM"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Metalprice.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("METALPRICE_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Metalprice.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("CURRENCY_ENDPOINT"); v != "" {
		cfg.Currency.Endpoint = v
	}
	if v := os.Getenv("CURRENCY_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Currency.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("SNAPSHOT_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.Snapshot.CacheTTLSeconds = x
		}
	}
}
