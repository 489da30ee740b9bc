package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"marketdata/internal/aggregate"
	"marketdata/internal/market"
)

type fakeProvider struct {
	name string
	cat  market.Category
	res  market.Result
}

func (f fakeProvider) Name() string                                 { return f.name }
func (f fakeProvider) Category() market.Category                    { return f.cat }
func (f fakeProvider) Fetch(context.Context) (market.Result, error) { return f.res, nil }

func testAggregator() *aggregate.Aggregator {
	return aggregate.New(aggregate.Config{
		Stocks: fakeProvider{"finnhub", market.CategoryStocks, market.Result{
			Status: market.StatusLive,
			Quotes: []market.Quote{{Symbol: "AAPL", Name: "Apple Inc.", Price: 228.5, Change: 1.2, ChangePercent: 0.53}},
		}},
		Crypto: fakeProvider{"binance", market.CategoryCrypto, market.Result{
			Status: market.StatusLive,
			Quotes: []market.Quote{{Symbol: "BTC", Name: "Bitcoin", Price: 64250.1}},
		}},
		Metals: fakeProvider{"metalprice", market.CategoryMetals, market.Result{
			Status: market.StatusFallback,
			Quotes: []market.Quote{{Symbol: "XAU", Name: "Золото", Price: 2045, Unit: "$/oz"}},
		}},
		Currencies: fakeProvider{"openerapi", market.CategoryCurrencies, market.Result{
			Status: market.StatusLive,
			Quotes: []market.Quote{{Symbol: "USD/KZT", Name: "Доллар США", Price: 501.24, Currency: "₸"}},
		}},
		SnapshotTTL: time.Minute,
	})
}

func TestWriteSnapshot_MergedAndLive(t *testing.T) {
	agg := testAggregator()

	rr := httptest.NewRecorder()
	writeSnapshot(rr, context.Background(), agg)
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var snap market.Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Stocks) != 1 || len(snap.Crypto) != 1 || len(snap.Metals) != 1 || len(snap.Currencies) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.Live {
		t.Fatalf("want live snapshot, got %+v", snap)
	}
	if snap.Stocks[0].Symbol != "AAPL" || snap.Stocks[0].Price != 228.5 {
		t.Fatalf("unexpected stocks row: %+v", snap.Stocks[0])
	}
}

func TestWriteCategory_SingleCategory(t *testing.T) {
	agg := testAggregator()

	rr := httptest.NewRecorder()
	writeCategory(rr, context.Background(), agg, "crypto")
	if rr.Code != 200 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var resp quotesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Quotes) != 1 || resp.Quotes[0].Symbol != "BTC" {
		t.Fatalf("unexpected quotes: %+v", resp.Quotes)
	}
}

func TestWriteCategory_UnknownCategoryRejected(t *testing.T) {
	agg := testAggregator()

	rr := httptest.NewRecorder()
	writeCategory(rr, context.Background(), agg, "bonds")
	if rr.Code != 400 {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}
