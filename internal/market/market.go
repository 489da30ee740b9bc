package market

import (
	"context"
	"time"
)

// Quote is the normalized shape returned by all providers.
// Change and ChangePercent are measured against a prior observation;
// both are zero when no prior observation exists.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Unit          string  `json:"unit,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Flag          string  `json:"flag,omitempty"`
}

// Category identifies one of the four provider buckets.
type Category string

const (
	CategoryStocks     Category = "stocks"
	CategoryCrypto     Category = "crypto"
	CategoryMetals     Category = "metals"
	CategoryCurrencies Category = "currencies"
)

// Status says where a fetch cycle's quotes came from, so callers can
// tell "no data this cycle" apart from "demo data" and from real zeros.
type Status int

const (
	// StatusUnavailable means the upstream could not be reached or parsed
	// and the provider has nothing to offer for this cycle.
	StatusUnavailable Status = iota
	// StatusFallback means the quotes are seeded/demo values, not live data.
	StatusFallback
	// StatusLive means the quotes reflect a successful upstream fetch
	// (possibly served from the provider's own fresh cache).
	StatusLive
)

func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusFallback:
		return "fallback"
	default:
		return "unavailable"
	}
}

// Result is one provider's output for one fetch cycle.
type Result struct {
	Status Status
	Quotes []Quote
}

// Provider fetches and normalizes quotes for one category.
// Fetch never panics; upstream failures surface either as an error
// (crypto-style: nothing to offer) or as a fallback Result.
type Provider interface {
	Name() string
	Category() Category
	Fetch(ctx context.Context) (Result, error)
}

// Snapshot is the merged output of all four providers for one refresh
// cycle. It is immutable once built and superseded wholesale by the next
// cycle; a snapshot with some categories empty is valid output.
type Snapshot struct {
	Stocks      []Quote   `json:"stocks"`
	Crypto      []Quote   `json:"crypto"`
	Metals      []Quote   `json:"metals"`
	Currencies  []Quote   `json:"currencies"`
	GeneratedAt time.Time `json:"generated_at"`
	Live        bool      `json:"is_live"`
}

// IsLive reports whether the snapshot carries genuine upstream data.
func IsLive(s Snapshot) bool { return s.Live }
