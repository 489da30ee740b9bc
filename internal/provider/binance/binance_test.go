package binance_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketdata/internal/httpx"
	"marketdata/internal/market"
	"marketdata/internal/provider/binance"
)

var testPairs = []binance.Pair{
	{Pair: "BTCUSDT", Symbol: "BTC", Name: "Bitcoin"},
	{Pair: "ETHUSDT", Symbol: "ETH", Name: "Ethereum"},
	{Pair: "SOLUSDT", Symbol: "SOL", Name: "Solana"},
}

func newProvider(t *testing.T, handler http.HandlerFunc, pairs []binance.Pair) *binance.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return binance.New(binance.Config{Endpoint: srv.URL, Pairs: pairs}, httpx.New(2*time.Second))
}

func ticker(pair, last, change, pct string) map[string]string {
	return map[string]string{
		"symbol":             pair,
		"lastPrice":          last,
		"priceChange":        change,
		"priceChangePercent": pct,
	}
}

func TestFetch_BatchedTickers(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ticker/24hr", r.URL.Path)
		require.Contains(t, r.URL.Query().Get("symbols"), "BTCUSDT")
		_ = json.NewEncoder(w).Encode([]map[string]string{
			ticker("BTCUSDT", "64250.10", "1250.10", "1.98"),
			ticker("ETHUSDT", "3150.55", "-42.05", "-1.32"),
			ticker("SOLUSDT", "148.20", "3.10", "2.14"),
		})
	}, testPairs)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, market.StatusLive, res.Status)
	require.Len(t, res.Quotes, 3)

	btc := res.Quotes[0]
	require.Equal(t, "BTC", btc.Symbol)
	require.Equal(t, "Bitcoin", btc.Name)
	require.Equal(t, 64250.10, btc.Price)
	require.Equal(t, 1250.10, btc.Change)
	require.Equal(t, 1.98, btc.ChangePercent)
}

func TestFetch_MissingSymbolDoesNotSinkBatch(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		// ETHUSDT absent from the response
		_ = json.NewEncoder(w).Encode([]map[string]string{
			ticker("BTCUSDT", "64250.10", "1250.10", "1.98"),
			ticker("SOLUSDT", "148.20", "3.10", "2.14"),
		})
	}, testPairs)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Quotes, 2)
	require.Equal(t, "BTC", res.Quotes[0].Symbol)
	require.Equal(t, "SOL", res.Quotes[1].Symbol)
}

func TestFetch_UnparsablePriceDropsOnlyThatSymbol(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			ticker("BTCUSDT", "not-a-number", "0", "0"),
			ticker("ETHUSDT", "3150.55", "-42.05", "-1.32"),
			ticker("SOLUSDT", "148.20", "3.10", "2.14"),
		})
	}, testPairs)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Quotes, 2)
	require.Equal(t, "ETH", res.Quotes[0].Symbol)
}

func TestFetch_HTTPErrorMeansUnavailable(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}, testPairs)

	res, err := p.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, market.StatusUnavailable, res.Status)
	require.Empty(t, res.Quotes)
}

func TestFetch_MalformedBodyMeansUnavailable(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"oops": true}`))
	}, testPairs)

	res, err := p.Fetch(context.Background())
	require.Error(t, err)
	require.Equal(t, market.StatusUnavailable, res.Status)
	require.Empty(t, res.Quotes)
}
