// Package symbols manages the instrument registry and the per-user
// selection of symbols for analysis.
package symbols

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quantpulse/apperrors"
	"quantpulse/events"
	"quantpulse/logger"
	"quantpulse/models"
	"quantpulse/services/providers"
)

// SymbolProvider is a source of importable symbols (SEC, NASDAQ)
type SymbolProvider interface {
	GetSymbols() ([]providers.ProviderSymbol, error)
}

// ImportSummary reports the result of a provider import
type ImportSummary struct {
	Exchange  string    `json:"exchange"`
	Processed int       `json:"processed"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Skipped   int       `json:"skipped"`
	Timestamp time.Time `json:"timestamp"`
}

// Service handles symbol registry business logic
type Service struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewService creates a new symbol service
func NewService(db *gorm.DB, bus *events.Bus) *Service {
	return &Service{db: db, bus: bus}
}

// List returns active symbols with optional search and pagination.
// Search results rank exact ticker matches first, then ticker
// prefixes, then company-name matches.
func (s *Service) List(search string, limit, offset int) ([]models.Symbol, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.Symbol{}).Where("is_active = ?", true)

	if search != "" {
		upper := strings.ToUpper(strings.TrimSpace(search))
		pattern := "%" + upper + "%"
		query = query.Where("UPPER(symbol) LIKE ? OR UPPER(company_name) LIKE ?", pattern, pattern)
		query = query.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN UPPER(symbol) = ? THEN 0 WHEN UPPER(symbol) LIKE ? THEN 1 ELSE 2 END, symbol",
			Vars:               []interface{}{upper, upper + "%"},
			WithoutParentheses: true,
		}})
	} else {
		query = query.Order("symbol")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var results []models.Symbol
	if err := query.Offset(offset).Limit(limit).Find(&results).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return results, total, nil
}

// Selected returns the tickers currently selected for analysis
func (s *Service) Selected() ([]string, error) {
	var selected []models.SelectedSymbol
	if err := s.db.Order("symbol").Find(&selected).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	tickers := make([]string, 0, len(selected))
	for _, sel := range selected {
		tickers = append(tickers, sel.Symbol)
	}
	return tickers, nil
}

// IsSelected reports whether the symbol is in the selection set
func (s *Service) IsSelected(symbol string) (bool, error) {
	var count int64
	if err := s.db.Model(&models.SelectedSymbol{}).
		Where("symbol = ?", symbol).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// Select adds or removes a symbol from the selection set. Selecting an
// already selected symbol is a no-op.
func (s *Service) Select(ctx context.Context, symbol string, selected bool) error {
	var existing models.Symbol
	if err := s.db.Where("symbol = ?", symbol).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrSymbolNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if selected {
		already, err := s.IsSelected(symbol)
		if err != nil {
			return err
		}
		if already {
			return nil
		}

		if err := s.db.Create(&models.SelectedSymbol{Symbol: symbol}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		s.bus.Publish(ctx, events.NewEvent(events.SymbolsSelected, map[string]interface{}{
			"symbol": symbol,
			"action": "selected",
		}))
		logger.Get().Infow("symbol selected", "symbol", symbol)
		return nil
	}

	if err := s.db.Where("symbol = ?", symbol).
		Delete(&models.SelectedSymbol{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	logger.Get().Infow("symbol deselected", "symbol", symbol)
	return nil
}

// SymbolInput is a bulk-import row
type SymbolInput struct {
	Symbol         string `json:"symbol" binding:"required"`
	YahooSymbol    string `json:"yahoo_symbol"`
	CompanyName    string `json:"company_name"`
	InstrumentType string `json:"instrument_type" binding:"required,instrument"`
	Exchange       string `json:"exchange"`
	Currency       string `json:"currency"`
}

// Import bulk-imports symbols, skipping tickers already present.
// Returns the number of created rows.
func (s *Service) Import(inputs []SymbolInput) (int, error) {
	created := 0
	for _, input := range inputs {
		ticker := strings.ToUpper(strings.TrimSpace(input.Symbol))
		if ticker == "" {
			continue
		}

		var count int64
		if err := s.db.Model(&models.Symbol{}).
			Where("symbol = ?", ticker).Count(&count).Error; err != nil {
			return created, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			continue
		}

		yahooSymbol := input.YahooSymbol
		if yahooSymbol == "" {
			yahooSymbol = ticker
		}

		record := models.Symbol{
			Symbol:         ticker,
			YahooSymbol:    yahooSymbol,
			CompanyName:    input.CompanyName,
			InstrumentType: models.InstrumentType(input.InstrumentType),
			Exchange:       input.Exchange,
			Currency:       input.Currency,
			IsActive:       true,
		}
		if err := s.db.Create(&record).Error; err != nil {
			return created, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		created++
	}

	logger.Get().Infow("imported symbols", "created", created)
	return created, nil
}

// ImportFromProvider runs an idempotent import from a symbol directory
// provider: existing tickers are updated and reactivated, new tickers
// inserted. Returns the import metrics.
func (s *Service) ImportFromProvider(ctx context.Context, exchange string, provider SymbolProvider) (*ImportSummary, error) {
	log := logger.Get()
	log.Infow("starting provider symbol import", "exchange", exchange)

	providerSymbols, err := provider.GetSymbols()
	if err != nil {
		log.Errorw("provider fetch failed", "exchange", exchange, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrProviderDown, err)
	}

	summary := &ImportSummary{
		Exchange:  exchange,
		Processed: len(providerSymbols),
		Timestamp: time.Now().UTC(),
	}

	for _, ps := range providerSymbols {
		var existing models.Symbol
		err := s.db.Where("symbol = ?", ps.Symbol).First(&existing).Error

		switch {
		case err == nil:
			updates := map[string]interface{}{
				"company_name": ps.CompanyName,
				"yahoo_symbol": ps.YahooSymbol,
				"is_active":    true,
			}
			if err := s.db.Model(&existing).Updates(updates).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			summary.Updated++

		case errors.Is(err, gorm.ErrRecordNotFound):
			record := models.Symbol{
				Symbol:         ps.Symbol,
				YahooSymbol:    ps.YahooSymbol,
				CompanyName:    ps.CompanyName,
				InstrumentType: models.InstrumentStock,
				Exchange:       exchange,
				Currency:       "USD",
				IsActive:       true,
			}
			if err := s.db.Create(&record).Error; err != nil {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			summary.Inserted++

		default:
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	s.bus.Publish(ctx, events.NewEvent(events.SymbolsImported, map[string]interface{}{
		"exchange": exchange,
		"count":    summary.Inserted,
		"inserted": summary.Inserted,
		"updated":  summary.Updated,
	}))

	log.Infow("provider symbol import completed",
		"exchange", exchange,
		"processed", summary.Processed,
		"inserted", summary.Inserted,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
	)
	return summary, nil
}
