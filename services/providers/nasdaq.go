package providers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quantpulse/logger"
)

// NasdaqProvider fetches the official NASDAQ symbol directory, a
// pipe-delimited text file.
type NasdaqProvider struct {
	url        string
	retries    int
	httpClient *http.Client
}

// NewNasdaqProvider creates a NASDAQ symbol directory client
func NewNasdaqProvider(url string, timeout time.Duration, retries int) *NasdaqProvider {
	if retries <= 0 {
		retries = 3
	}
	return &NasdaqProvider{
		url:        url,
		retries:    retries,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetSymbols fetches the directory and returns the normalized symbol
// list. Test issues flagged by NASDAQ are skipped.
func (p *NasdaqProvider) GetSymbols() ([]ProviderSymbol, error) {
	log := logger.Get()
	log.Infow("fetching NASDAQ symbol directory", "url", p.url)

	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		body, err := p.fetchOnce()
		if err == nil {
			return parseNasdaqSymbols(body)
		}
		lastErr = err
		if attempt < p.retries {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			log.Warnw("NASDAQ fetch attempt failed, retrying",
				"attempt", attempt, "retries", p.retries, "wait", wait, "error", err)
			time.Sleep(wait)
		}
	}

	return nil, fmt.Errorf("failed to fetch NASDAQ symbol directory after %d retries: %w", p.retries, lastErr)
}

func (p *NasdaqProvider) fetchOnce() (string, error) {
	resp, err := p.httpClient.Get(p.url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("NASDAQ returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// parseNasdaqSymbols parses the pipe-delimited directory. Expected
// columns: Symbol | Security Name | Market Category | Test Issue |
// Financial Status | ... | ETF | ...
func parseNasdaqSymbols(body string) ([]ProviderSymbol, error) {
	reader := csv.NewReader(strings.NewReader(body))
	reader.Comma = '|'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse NASDAQ file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("NASDAQ file has no header row")
	}

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	symbolIdx := col("Symbol")
	nameIdx := col("Security Name")
	testIdx := col("Test Issue")
	if symbolIdx < 0 || nameIdx < 0 {
		return nil, fmt.Errorf("NASDAQ file missing expected columns: %v", header)
	}

	var symbols []ProviderSymbol
	skipped := 0
	for _, row := range records[1:] {
		if symbolIdx >= len(row) || nameIdx >= len(row) {
			continue
		}

		symbol := strings.ToUpper(strings.TrimSpace(row[symbolIdx]))
		name := strings.TrimSpace(row[nameIdx])
		if symbol == "" || name == "" {
			continue
		}
		// The trailer line starts with "File Creation Time".
		if strings.HasPrefix(symbol, "FILE CREATION") {
			continue
		}

		if testIdx >= 0 && testIdx < len(row) && strings.EqualFold(strings.TrimSpace(row[testIdx]), "Y") {
			skipped++
			continue
		}

		symbols = append(symbols, ProviderSymbol{
			Symbol:      symbol,
			CompanyName: name,
			YahooSymbol: symbol,
		})
	}

	logger.Get().Infow("parsed NASDAQ symbol directory",
		"included", len(symbols), "skipped_test_issues", skipped)
	return symbols, nil
}
