package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// Three trading days; the middle bar has a null close and must be dropped.
const yahooFixture = `{
	"chart": {
		"result": [{
			"timestamp": [1756166400, 1756252800, 1756339200],
			"indicators": {
				"quote": [{
					"open":   [100.5, 101.0, 102.25],
					"high":   [102.0, 103.0, 104.5],
					"low":    [99.75, 100.5, 101.0],
					"close":  [101.25, null, 103.75],
					"volume": [1200000, 900000, 1500000]
				}]
			}
		}],
		"error": null
	}
}`

const yahooErrorFixture = `{
	"chart": {
		"result": null,
		"error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
	}
}`

func TestYahooGetDailyBars(t *testing.T) {
	var gotPath, gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRange = r.URL.Query().Get("range")
		w.Write([]byte(yahooFixture))
	}))
	defer server.Close()

	provider := NewYahooProvider(server.URL, 5*time.Second, 1)

	bars, err := provider.GetDailyBars("AAPL", "3mo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/AAPL" {
		t.Errorf("expected request path /AAPL, got %s", gotPath)
	}
	if gotRange != "3mo" {
		t.Errorf("expected range 3mo, got %s", gotRange)
	}

	if len(bars) != 2 {
		t.Fatalf("expected 2 bars after dropping the null close, got %d", len(bars))
	}
	if !bars[0].Close.Equal(decimal.NewFromFloat(101.25)) {
		t.Errorf("expected first close 101.25, got %s", bars[0].Close)
	}
	if bars[1].Volume != 1500000 {
		t.Errorf("expected second volume 1500000, got %d", bars[1].Volume)
	}
	if !bars[0].Date.Equal(time.Unix(1756166400, 0).UTC().Truncate(24 * time.Hour)) {
		t.Errorf("unexpected first bar date %s", bars[0].Date)
	}
}

func TestYahooChartError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(yahooErrorFixture))
	}))
	defer server.Close()

	provider := NewYahooProvider(server.URL, 5*time.Second, 1)

	if _, err := provider.GetDailyBars("DELISTED", "1y"); err == nil {
		t.Error("expected error when the chart API reports a symbol error")
	}
}

func TestYahooEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [], "error": null}}`))
	}))
	defer server.Close()

	provider := NewYahooProvider(server.URL, 5*time.Second, 1)

	if _, err := provider.GetDailyBars("AAPL", "3mo"); err == nil {
		t.Error("expected error for a response without quote data")
	}
}
