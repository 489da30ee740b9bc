package openerapi_test

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
	"marketdata/internal/provider/openerapi"
)

var testPairs = []openerapi.Pair{
	{Symbol: "USD/KZT", Name: "Доллар США", Base: "USD", Flag: "🇺🇸"},
	{Symbol: "EUR/KZT", Name: "Евро", Base: "EUR", Flag: "🇪🇺"},
}

func newTestProvider(t *testing.T, rates *map[string]float64, status *int) *openerapi.Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != nil && *status != 0 {
			http.Error(w, "unavailable", *status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"rates": *rates})
	}))
	t.Cleanup(srv.Close)
	return openerapi.New(openerapi.Config{Endpoint: srv.URL, Pairs: testPairs}, httpx.New(2*time.Second))
}

func TestFetch_InvertsBaseIsLocalRates(t *testing.T) {
	// upstream: 1 KZT = 0.002 USD, so 1 USD = 500 KZT
	rates := map[string]float64{"USD": 0.002, "EUR": 0.0019}
	p := newTestProvider(t, &rates, nil)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, market.StatusLive, res.Status)
	require.Len(t, res.Quotes, 2)

	usd := res.Quotes[0]
	require.Equal(t, "USD/KZT", usd.Symbol)
	require.Equal(t, 500.0, usd.Price)
	require.Equal(t, "₸", usd.Currency)
	require.Equal(t, "🇺🇸", usd.Flag)
}

func TestFetch_ZeroOrMissingRateSkipsPair(t *testing.T) {
	rates := map[string]float64{"USD": 0.002, "EUR": 0}
	p := newTestProvider(t, &rates, nil)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Quotes, 1)
	require.Equal(t, "USD/KZT", res.Quotes[0].Symbol)
}

func TestFetch_DeltaAgainstPreviousCycle(t *testing.T) {
	rates := map[string]float64{"USD": 0.002}
	p := newTestProvider(t, &rates, nil)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Quotes[0].Change)

	rates["USD"] = 1.0 / 525 // 500 -> 525, +5%
	res, err = p.Fetch(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 25.0, res.Quotes[0].Change, 0.01)
	require.InDelta(t, 5.0, res.Quotes[0].ChangePercent, 0.01)
}

func TestFetch_SwingOverTenPercentIsZeroed(t *testing.T) {
	rates := map[string]float64{"USD": 0.002}
	p := newTestProvider(t, &rates, nil)

	_, err := p.Fetch(context.Background())
	require.NoError(t, err)

	rates["USD"] = 1.0 / 600 // 500 -> 600, +20%
	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Quotes[0].Change)
	require.Zero(t, res.Quotes[0].ChangePercent)
}

func TestFetch_TotalFailureServesStaticTable(t *testing.T) {
	status := http.StatusBadGateway
	p := newTestProvider(t, nil, &status)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, market.StatusFallback, res.Status)
	require.Len(t, res.Quotes, 2)

	usd := res.Quotes[0]
	require.Equal(t, openerapi.DefaultFallbackRates["USD/KZT"], usd.Price)
	require.Zero(t, usd.Change)
	require.Zero(t, usd.ChangePercent)
}

func TestFetch_EmptyRatesServesStaticTable(t *testing.T) {
	rates := map[string]float64{}
	p := newTestProvider(t, &rates, nil)

	res, err := p.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, market.StatusFallback, res.Status)
}

func TestLastRate_TracksLiveObservations(t *testing.T) {
	rates := map[string]float64{"USD": 0.002}
	p := newTestProvider(t, &rates, nil)

	_, ok := p.LastRate("USD/KZT")
	require.False(t, ok)

	_, err := p.Fetch(context.Background())
	require.NoError(t, err)

	v, ok := p.LastRate("USD/KZT")
	require.True(t, ok)
	require.InDelta(t, 500.0, v, 1e-9)
}
