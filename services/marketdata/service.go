// Package marketdata maintains the historical OHLCV store. Ingestion
// is idempotent: re-fetching a date updates the existing bar in place.
package marketdata

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"quantpulse/apperrors"
	"quantpulse/events"
	"quantpulse/logger"
	"quantpulse/models"
	"quantpulse/services/providers"
)

// DefaultHistoryLimit is the number of bars returned by History
const DefaultHistoryLimit = 90

// DefaultLookback is the chart range requested from the provider
const DefaultLookback = "1y"

// FetchResult reports the outcome of a fetch for one symbol
type FetchResult struct {
	Symbol   string `json:"symbol"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Service handles market data retrieval and storage
type Service struct {
	db       *gorm.DB
	bus      *events.Bus
	chart    providers.ChartClient
	lookback string
}

// NewService creates a new market data service
func NewService(db *gorm.DB, bus *events.Bus, chart providers.ChartClient) *Service {
	return &Service{
		db:       db,
		bus:      bus,
		chart:    chart,
		lookback: DefaultLookback,
	}
}

// History returns the most recent bars for a symbol, newest first
func (s *Service) History(symbol string, limit int) ([]models.MarketData, error) {
	if limit <= 0 || limit > 1000 {
		limit = DefaultHistoryLimit
	}

	var bars []models.MarketData
	err := s.db.Where("symbol = ?", symbol).
		Order("date DESC").
		Limit(limit).
		Find(&bars).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(bars) == 0 {
		return nil, apperrors.ErrNoMarketData
	}
	return bars, nil
}

// HistoryAscending returns up to limit bars in chronological order,
// the shape the indicator math expects.
func (s *Service) HistoryAscending(symbol string, limit int) ([]models.MarketData, error) {
	bars, err := s.History(symbol, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// FetchSymbol fetches daily bars from the chart provider for a
// selected symbol and upserts them
func (s *Service) FetchSymbol(ctx context.Context, symbol string) (*FetchResult, error) {
	var selected int64
	if err := s.db.Model(&models.SelectedSymbol{}).
		Where("symbol = ?", symbol).Count(&selected).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if selected == 0 {
		return nil, apperrors.ErrSymbolNotSelected
	}

	var record models.Symbol
	if err := s.db.Where("symbol = ?", symbol).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrSymbolNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	yahooSymbol := record.YahooSymbol
	if yahooSymbol == "" {
		yahooSymbol = record.Symbol
	}

	bars, err := s.chart.GetDailyBars(yahooSymbol, s.lookback)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderDown, err)
	}

	result := &FetchResult{Symbol: symbol, Status: "fetched"}
	for _, bar := range bars {
		inserted, err := s.upsertBar(symbol, bar)
		if err != nil {
			return nil, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	s.bus.Publish(ctx, events.NewEvent(events.MarketDataUpdated, map[string]interface{}{
		"symbol":   symbol,
		"inserted": result.Inserted,
		"updated":  result.Updated,
	}))

	logger.Get().Infow("market data fetched",
		"symbol", symbol, "inserted", result.Inserted, "updated", result.Updated)
	return result, nil
}

// upsertBar writes one bar, keyed by symbol and date. Returns true
// when a new row was inserted.
func (s *Service) upsertBar(symbol string, bar providers.Bar) (bool, error) {
	id := models.MarketDataID(symbol, bar.Date)

	var existing models.MarketData
	err := s.db.Where("id = ?", id).First(&existing).Error

	switch {
	case err == nil:
		updates := map[string]interface{}{
			"open":   bar.Open,
			"high":   bar.High,
			"low":    bar.Low,
			"close":  bar.Close,
			"volume": bar.Volume,
		}
		if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		record := models.MarketData{
			ID:     id,
			Symbol: symbol,
			Date:   bar.Date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
		if err := s.db.Create(&record).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return true, nil

	default:
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
}

// FetchAll fetches market data for every selected symbol. Per-symbol
// failures are recorded in the results, not propagated.
func (s *Service) FetchAll(ctx context.Context) ([]FetchResult, error) {
	var selected []models.SelectedSymbol
	if err := s.db.Order("symbol").Find(&selected).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	log := logger.Get()
	log.Infow("fetching market data for selected symbols", "count", len(selected))

	results := make([]FetchResult, 0, len(selected))
	for _, sel := range selected {
		result, err := s.FetchSymbol(ctx, sel.Symbol)
		if err != nil {
			log.Warnw("fetch failed", "symbol", sel.Symbol, "error", err)
			results = append(results, FetchResult{
				Symbol: sel.Symbol,
				Status: "failed",
				Error:  err.Error(),
			})
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}
