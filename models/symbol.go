package models

import (
	"time"

	"gorm.io/gorm"
)

// InstrumentType represents the type of financial instrument
type InstrumentType string

const (
	InstrumentStock InstrumentType = "STOCK"
	InstrumentMetal InstrumentType = "METAL"
)

// String returns the string representation of InstrumentType
func (i InstrumentType) String() string {
	return string(i)
}

// ValidInstrumentTypes returns the accepted instrument types
func ValidInstrumentTypes() []InstrumentType {
	return []InstrumentType{InstrumentStock, InstrumentMetal}
}

// IsValidInstrumentType checks if the instrument type is valid
func IsValidInstrumentType(t string) bool {
	for _, valid := range ValidInstrumentTypes() {
		if InstrumentType(t) == valid {
			return true
		}
	}
	return false
}

// Symbol represents an exchange-listed instrument in the registry
type Symbol struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Symbol         string         `gorm:"uniqueIndex;not null" json:"symbol"`
	YahooSymbol    string         `gorm:"index" json:"yahoo_symbol"`
	CompanyName    string         `json:"company_name"`
	InstrumentType InstrumentType `gorm:"type:varchar(10);not null" json:"instrument_type"`
	Exchange       string         `json:"exchange"`
	Currency       string         `gorm:"type:varchar(3)" json:"currency"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SelectedSymbol tracks the symbols chosen for data retrieval and
// analysis. Selection is a separate relation, not a symbol attribute.
type SelectedSymbol struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"uniqueIndex;not null" json:"symbol"`
	SelectedAt time.Time `gorm:"autoCreateTime" json:"selected_at"`
}

// MigrateSymbolModels runs database migrations for symbol-related models
func MigrateSymbolModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&Symbol{},
		&SelectedSymbol{},
	)
}
