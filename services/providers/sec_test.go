package providers

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const secFixture = `{
	"0": {"cik_str": 320193, "ticker": "aapl", "title": "Apple Inc."},
	"1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
	"2": {"cik_str": 1018724, "ticker": "", "title": "Missing Ticker Co"},
	"3": {"cik_str": 1045810, "ticker": "NVDA", "title": "  "}
}`

func TestParseSECSymbols(t *testing.T) {
	symbols := parseSECSymbols(map[string]secEntry{
		"0": {Ticker: "aapl", Title: "Apple Inc."},
		"1": {Ticker: "MSFT", Title: "MICROSOFT CORP"},
		"2": {Ticker: "", Title: "Missing Ticker Co"},
		"3": {Ticker: "NVDA", Title: "  "},
	})

	if len(symbols) != 2 {
		t.Fatalf("expected 2 valid symbols, got %d", len(symbols))
	}
	// Sorted for deterministic imports, tickers uppercased.
	if symbols[0].Symbol != "AAPL" || symbols[1].Symbol != "MSFT" {
		t.Errorf("expected sorted [AAPL MSFT], got [%s %s]", symbols[0].Symbol, symbols[1].Symbol)
	}
	if symbols[0].YahooSymbol != "AAPL" {
		t.Errorf("expected yahoo symbol AAPL, got %s", symbols[0].YahooSymbol)
	}
}

func TestSECGetSymbols(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte(secFixture))
	}))
	defer server.Close()

	provider := NewSECProvider(server.URL, "QuantPulse admin@quantpulse.local", 5*time.Second, 1)

	symbols, err := provider.GetSymbols()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("expected 2 symbols, got %d", len(symbols))
	}
	if gotUserAgent != "QuantPulse admin@quantpulse.local" {
		t.Errorf("expected contact User-Agent header, got %q", gotUserAgent)
	}
}

func TestSECRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(secFixture))
	}))
	defer server.Close()

	provider := NewSECProvider(server.URL, "test test@test.com", 5*time.Second, 2)

	symbols, err := provider.GetSymbols()
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("expected 2 symbols, got %d", len(symbols))
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSECGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	provider := NewSECProvider(server.URL, "test test@test.com", 5*time.Second, 2)

	if _, err := provider.GetSymbols(); err == nil {
		t.Error("expected error after exhausting retries")
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", calls.Load())
	}
}
