// Package providers contains the HTTP clients for the external market
// data sources: the SEC ticker directory, the NASDAQ symbol directory,
// and the Yahoo Finance chart API. All fetches retry with exponential
// backoff before giving up.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"quantpulse/logger"
)

// ProviderSymbol is a normalized symbol ready for registry import
type ProviderSymbol struct {
	Symbol      string
	CompanyName string
	YahooSymbol string
}

// SECProvider fetches the official SEC company tickers file
type SECProvider struct {
	url        string
	userAgent  string
	retries    int
	httpClient *http.Client
}

// NewSECProvider creates an SEC ticker directory client
func NewSECProvider(url, userAgent string, timeout time.Duration, retries int) *SECProvider {
	if retries <= 0 {
		retries = 3
	}
	return &SECProvider{
		url:        url,
		userAgent:  userAgent,
		retries:    retries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type secEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// GetSymbols fetches the SEC ticker directory and returns the
// normalized symbol list
func (p *SECProvider) GetSymbols() ([]ProviderSymbol, error) {
	raw, err := p.fetch()
	if err != nil {
		return nil, err
	}
	return parseSECSymbols(raw), nil
}

// fetch downloads and decodes the ticker JSON, retrying with
// 1s, 2s, 4s backoff
func (p *SECProvider) fetch() (map[string]secEntry, error) {
	log := logger.Get()
	log.Infow("fetching SEC ticker directory", "url", p.url)

	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		data, err := p.fetchOnce()
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < p.retries {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			log.Warnw("SEC fetch attempt failed, retrying",
				"attempt", attempt, "retries", p.retries, "wait", wait, "error", err)
			time.Sleep(wait)
		}
	}

	return nil, fmt.Errorf("failed to fetch SEC ticker directory after %d retries: %w", p.retries, lastErr)
}

func (p *SECProvider) fetchOnce() (map[string]secEntry, error) {
	req, err := http.NewRequest(http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}

	// SEC EDGAR requires a "Name contact@email" User-Agent; browser
	// agents get 403.
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("SEC returned status %d: %s", resp.StatusCode, string(body))
	}

	var data map[string]secEntry
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode SEC ticker file: %w", err)
	}
	return data, nil
}

// parseSECSymbols normalizes the raw directory entries, skipping
// records without a ticker or company title
func parseSECSymbols(raw map[string]secEntry) []ProviderSymbol {
	symbols := make([]ProviderSymbol, 0, len(raw))
	skipped := 0

	for _, entry := range raw {
		ticker := strings.ToUpper(strings.TrimSpace(entry.Ticker))
		title := strings.TrimSpace(entry.Title)
		if ticker == "" || title == "" {
			skipped++
			continue
		}
		symbols = append(symbols, ProviderSymbol{
			Symbol:      ticker,
			CompanyName: title,
			YahooSymbol: ticker, // same as ticker for SEC-listed equities
		})
	}

	// Map iteration order is random; keep the import deterministic.
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })

	logger.Get().Infow("parsed SEC ticker directory",
		"valid", len(symbols), "skipped", skipped)
	return symbols
}
