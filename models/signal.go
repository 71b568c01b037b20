package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarketData represents one daily OHLCV bar for a symbol
type MarketData struct {
	ID        string          `gorm:"primaryKey" json:"id"` // symbol:YYYY-MM-DD
	Symbol    string          `gorm:"index:idx_symbol_date" json:"symbol"`
	Date      time.Time       `gorm:"index:idx_symbol_date" json:"date"`
	Open      decimal.Decimal `gorm:"type:decimal(15,4)" json:"open"`
	High      decimal.Decimal `gorm:"type:decimal(15,4)" json:"high"`
	Low       decimal.Decimal `gorm:"type:decimal(15,4)" json:"low"`
	Close     decimal.Decimal `gorm:"type:decimal(15,4)" json:"close"`
	Volume    int64           `json:"volume"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MarketDataID builds the composite primary key for a bar
func MarketDataID(symbol string, date time.Time) string {
	return fmt.Sprintf("%s:%s", symbol, date.UTC().Format("2006-01-02"))
}

// Signal type constants
const (
	SignalRSIOversold   = "RSI_OVERSOLD"
	SignalRSIOverbought = "RSI_OVERBOUGHT"
	SignalATRExpansion  = "ATR_EXPANSION"
	SignalGoldenCross   = "GOLDEN_CROSS"
)

// SignalResult represents an analysis result where trigger criteria
// were met for a symbol
type SignalResult struct {
	ID               string     `gorm:"primaryKey" json:"id"` // symbol:signal-type:unix-timestamp
	Symbol           string     `gorm:"index" json:"symbol"`
	SignalType       string     `gorm:"type:varchar(50)" json:"signal_type"`
	Timestamp        time.Time  `gorm:"index" json:"timestamp"`
	Confidence       float64    `json:"confidence"` // 0.0 to 1.0
	Explanation      string     `gorm:"type:varchar(1000)" json:"explanation"`
	IndicatorsPassed string     `gorm:"type:varchar(500)" json:"-"` // JSON array
	Notified         bool       `gorm:"default:false" json:"notified"`
	NotifiedAt       *time.Time `json:"notified_at"`
}

// SignalResultID builds the composite primary key for a signal. The
// signal type is part of the key so that multiple triggers firing in
// the same analysis run produce distinct rows.
func SignalResultID(symbol, signalType string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%d", symbol, signalType, ts.Unix())
}

// SetIndicatorsPassed stores the list of passed indicator names as JSON
func (s *SignalResult) SetIndicatorsPassed(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	s.IndicatorsPassed = string(data)
	return nil
}

// GetIndicatorsPassed returns the list of passed indicator names
func (s *SignalResult) GetIndicatorsPassed() []string {
	var names []string
	if s.IndicatorsPassed == "" {
		return names
	}
	if err := json.Unmarshal([]byte(s.IndicatorsPassed), &names); err != nil {
		return nil
	}
	return names
}

// MarshalJSON includes the decoded indicator list in API responses
func (s SignalResult) MarshalJSON() ([]byte, error) {
	type alias SignalResult
	return json.Marshal(struct {
		alias
		IndicatorsPassed []string `json:"indicators_passed"`
	}{
		alias:            alias(s),
		IndicatorsPassed: s.GetIndicatorsPassed(),
	})
}

// MigrateMarketModels runs database migrations for market data and signals
func MigrateMarketModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&MarketData{},
		&SignalResult{},
	)
}
