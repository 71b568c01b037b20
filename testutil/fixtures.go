package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"quantpulse/models"
)

// TestPassword is the plaintext password used by user fixtures.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an approved, active user with a hashed
// password and unique username and email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleUser, models.ApprovalApproved, true)
}

// CreateTestAdmin creates an approved, active admin user.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleAdmin, models.ApprovalApproved, true)
}

// CreateTestPendingUser creates a user awaiting approval.
func CreateTestPendingUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleUser, models.ApprovalPending, true)
}

// CreateTestRejectedUser creates a user whose registration was rejected.
func CreateTestRejectedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleUser, models.ApprovalRejected, true)
}

// CreateTestInactiveUser creates an approved but deactivated user.
func CreateTestInactiveUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return createUser(t, db, models.RoleUser, models.ApprovalApproved, false)
}

func createUser(t *testing.T, db *gorm.DB, role models.UserRole, status models.ApprovalStatus, active bool) *models.User {
	t.Helper()

	id := nextID()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:       fmt.Sprintf("user%d", id),
		Email:          fmt.Sprintf("user%d@test.com", id),
		PasswordHash:   string(hash),
		Role:           role,
		ApprovalStatus: status,
		IsActive:       active,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestSymbol creates an active stock symbol.
func CreateTestSymbol(t *testing.T, db *gorm.DB, ticker string) *models.Symbol {
	t.Helper()

	symbol := &models.Symbol{
		Symbol:         ticker,
		YahooSymbol:    ticker,
		CompanyName:    fmt.Sprintf("%s Test Corp", ticker),
		InstrumentType: models.InstrumentStock,
		Exchange:       "NASDAQ",
		Currency:       "USD",
		IsActive:       true,
	}
	if err := db.Create(symbol).Error; err != nil {
		t.Fatalf("failed to create test symbol: %v", err)
	}
	return symbol
}

// SelectTestSymbol marks a symbol as selected for analysis.
func SelectTestSymbol(t *testing.T, db *gorm.DB, ticker string) {
	t.Helper()

	if err := db.Create(&models.SelectedSymbol{Symbol: ticker}).Error; err != nil {
		t.Fatalf("failed to select test symbol: %v", err)
	}
}

// CreateTestBars inserts count consecutive daily bars for a symbol
// starting at start, all with the given close price.
func CreateTestBars(t *testing.T, db *gorm.DB, symbol string, start time.Time, count int, closePrice float64) []models.MarketData {
	t.Helper()

	bars := make([]models.MarketData, 0, count)
	price := decimal.NewFromFloat(closePrice)
	for i := 0; i < count; i++ {
		date := start.AddDate(0, 0, i)
		bar := models.MarketData{
			ID:     models.MarketDataID(symbol, date),
			Symbol: symbol,
			Date:   date,
			Open:   price,
			High:   price.Mul(decimal.NewFromFloat(1.01)),
			Low:    price.Mul(decimal.NewFromFloat(0.99)),
			Close:  price,
			Volume: 1_000_000,
		}
		if err := db.Create(&bar).Error; err != nil {
			t.Fatalf("failed to create test bar: %v", err)
		}
		bars = append(bars, bar)
	}
	return bars
}

// CreateTestSignal inserts a signal for a symbol.
func CreateTestSignal(t *testing.T, db *gorm.DB, symbol, signalType string) *models.SignalResult {
	t.Helper()

	ts := time.Now().UTC().Add(-time.Duration(nextID()) * time.Second)
	signal := &models.SignalResult{
		ID:          models.SignalResultID(symbol, signalType, ts),
		Symbol:      symbol,
		SignalType:  signalType,
		Timestamp:   ts,
		Confidence:  0.8,
		Explanation: "test signal",
	}
	if err := signal.SetIndicatorsPassed([]string{"test_check"}); err != nil {
		t.Fatalf("failed to encode indicators: %v", err)
	}
	if err := db.Create(signal).Error; err != nil {
		t.Fatalf("failed to create test signal: %v", err)
	}
	return signal
}
