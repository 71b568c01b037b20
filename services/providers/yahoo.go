package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"quantpulse/logger"
)

// Bar is one daily OHLCV bar from the chart API
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}

// ChartClient fetches daily history bars for a symbol. Implemented by
// YahooProvider; faked in tests.
type ChartClient interface {
	GetDailyBars(yahooSymbol string, lookback string) ([]Bar, error)
}

// YahooProvider fetches price history from the Yahoo Finance chart API
type YahooProvider struct {
	baseURL    string
	retries    int
	httpClient *http.Client
}

// NewYahooProvider creates a Yahoo Finance chart client
func NewYahooProvider(baseURL string, timeout time.Duration, retries int) *YahooProvider {
	if retries <= 0 {
		retries = 3
	}
	return &YahooProvider{
		baseURL:    baseURL,
		retries:    retries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetDailyBars fetches daily bars for the given lookback range
// (e.g. "3mo", "1y")
func (p *YahooProvider) GetDailyBars(yahooSymbol string, lookback string) ([]Bar, error) {
	log := logger.Get()

	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		bars, err := p.fetchOnce(yahooSymbol, lookback)
		if err == nil {
			return bars, nil
		}
		lastErr = err
		if attempt < p.retries {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			log.Warnw("Yahoo chart fetch attempt failed, retrying",
				"symbol", yahooSymbol, "attempt", attempt, "wait", wait, "error", err)
			time.Sleep(wait)
		}
	}

	return nil, fmt.Errorf("failed to fetch Yahoo chart for %s after %d retries: %w", yahooSymbol, p.retries, lastErr)
}

func (p *YahooProvider) fetchOnce(yahooSymbol, lookback string) ([]Bar, error) {
	endpoint := fmt.Sprintf("%s/%s?range=%s&interval=1d",
		p.baseURL, url.PathEscape(yahooSymbol), url.QueryEscape(lookback))

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; quantpulse/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Yahoo returned status %d: %s", resp.StatusCode, string(body))
	}

	var chart yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode Yahoo chart response: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("Yahoo chart error: %s (%s)",
			chart.Chart.Error.Code, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("Yahoo chart response has no quote data")
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Bars with missing fields (halts, partial sessions) are skipped.
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			continue
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}

		bars = append(bars, Bar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   decimal.NewFromFloat(*quote.Open[i]),
			High:   decimal.NewFromFloat(*quote.High[i]),
			Low:    decimal.NewFromFloat(*quote.Low[i]),
			Close:  decimal.NewFromFloat(*quote.Close[i]),
			Volume: *quote.Volume[i],
		})
	}

	return bars, nil
}
