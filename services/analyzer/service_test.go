package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"quantpulse/models"
	"quantpulse/testutil"
)

type memoryArchiver struct {
	archived []models.SignalResult
}

func (m *memoryArchiver) ArchiveSignal(_ context.Context, signal models.SignalResult) error {
	m.archived = append(m.archived, signal)
	return nil
}

// insertBars writes a chronological series of daily bars with the
// given closes and a high/low range of rangePts around each close.
func insertBars(t *testing.T, db *gorm.DB, symbol string, closes []float64, rangePts float64) {
	t.Helper()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	half := decimal.NewFromFloat(rangePts / 2)
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		date := start.AddDate(0, 0, i)
		bar := models.MarketData{
			ID:     models.MarketDataID(symbol, date),
			Symbol: symbol,
			Date:   date,
			Open:   price,
			High:   price.Add(half),
			Low:    price.Sub(half),
			Close:  price,
			Volume: 1_000_000,
		}
		if err := db.Create(&bar).Error; err != nil {
			t.Fatalf("failed to insert bar: %v", err)
		}
	}
}

func signalTypes(signals []models.SignalResult) map[string]bool {
	types := make(map[string]bool, len(signals))
	for _, s := range signals {
		types[s.SignalType] = true
	}
	return types
}

func TestAnalyzeUnknownSymbol(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	_, err := service.Analyze(context.Background(), "NOPE")
	testutil.AssertAppError(t, err, "SYMBOL_NOT_FOUND")
}

func TestAnalyzeWithoutData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "AAPL")

	_, err := service.Analyze(context.Background(), "AAPL")
	testutil.AssertAppError(t, err, "NO_MARKET_DATA")
}

func TestAnalyzeInsufficientHistoryIsQuiet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "AAPL")
	insertBars(t, db, "AAPL", []float64{100, 101, 102}, 2)

	signals, err := service.Analyze(context.Background(), "AAPL")
	testutil.AssertNoError(t, err)
	if len(signals) != 0 {
		t.Errorf("expected no signals with 3 bars, got %d", len(signals))
	}
}

func TestAnalyzeDetectsOversold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	archiver := &memoryArchiver{}
	service := NewService(db, nil, archiver)

	testutil.CreateTestSymbol(t, db, "AAPL")

	// Twenty straight down days drive RSI to the floor.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	insertBars(t, db, "AAPL", closes, 2)

	signals, err := service.Analyze(context.Background(), "AAPL")
	testutil.AssertNoError(t, err)

	types := signalTypes(signals)
	if !types[models.SignalRSIOversold] {
		t.Fatalf("expected RSI_OVERSOLD signal, got %v", types)
	}

	for _, s := range signals {
		if s.SignalType != models.SignalRSIOversold {
			continue
		}
		if s.Confidence <= 0 || s.Confidence > 1 {
			t.Errorf("confidence out of range: %f", s.Confidence)
		}
		if len(s.GetIndicatorsPassed()) == 0 {
			t.Error("expected at least one passed indicator")
		}
		if s.Explanation == "" {
			t.Error("expected an explanation")
		}
	}

	// Signal was persisted and archived.
	var count int64
	testutil.AssertNoError(t, db.Model(&models.SignalResult{}).Count(&count).Error)
	if count == 0 {
		t.Error("expected signals persisted")
	}
	if len(archiver.archived) != len(signals) {
		t.Errorf("expected %d archived signals, got %d", len(signals), len(archiver.archived))
	}
}

func TestAnalyzeDetectsOverbought(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "NVDA")

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	insertBars(t, db, "NVDA", closes, 2)

	signals, err := service.Analyze(context.Background(), "NVDA")
	testutil.AssertNoError(t, err)
	if !signalTypes(signals)[models.SignalRSIOverbought] {
		t.Errorf("expected RSI_OVERBOUGHT signal, got %v", signalTypes(signals))
	}
}

func TestAnalyzeDetectsATRExpansion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "TSLA")

	// Sixteen quiet bars followed by fourteen wide-range bars.
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		price := decimal.NewFromInt(100)
		spread := decimal.NewFromFloat(0.01)
		if i >= 16 {
			spread = decimal.NewFromInt(1)
		}
		date := start.AddDate(0, 0, i)
		bar := models.MarketData{
			ID:     models.MarketDataID("TSLA", date),
			Symbol: "TSLA",
			Date:   date,
			Open:   price,
			High:   price.Add(spread),
			Low:    price.Sub(spread),
			Close:  price,
			Volume: 1_000_000,
		}
		if err := db.Create(&bar).Error; err != nil {
			t.Fatalf("failed to insert bar: %v", err)
		}
	}

	signals, err := service.Analyze(context.Background(), "TSLA")
	testutil.AssertNoError(t, err)
	if !signalTypes(signals)[models.SignalATRExpansion] {
		t.Errorf("expected ATR_EXPANSION signal, got %v", signalTypes(signals))
	}
}

func TestAnalyzeDetectsGoldenCross(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "MSFT")

	// Flat for 200 days, then a jump large enough to pull the 50-day
	// average above the 200-day average on the final bar.
	closes := make([]float64, 201)
	for i := range closes {
		closes[i] = 100
	}
	closes[200] = 150
	insertBars(t, db, "MSFT", closes, 2)

	signals, err := service.Analyze(context.Background(), "MSFT")
	testutil.AssertNoError(t, err)
	if !signalTypes(signals)[models.SignalGoldenCross] {
		t.Errorf("expected GOLDEN_CROSS signal, got %v", signalTypes(signals))
	}
}

func TestAnalyzeAllSkipsFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	testutil.CreateTestSymbol(t, db, "AAPL")
	testutil.SelectTestSymbol(t, db, "AAPL")
	// Selected but has no market data, so its analysis fails.
	testutil.CreateTestSymbol(t, db, "EMPT")
	testutil.SelectTestSymbol(t, db, "EMPT")

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	insertBars(t, db, "AAPL", closes, 2)

	summary, err := service.AnalyzeAll(context.Background())
	testutil.AssertNoError(t, err)
	if summary.Analyzed != 1 {
		t.Errorf("expected 1 analyzed, got %d", summary.Analyzed)
	}
	if summary.Skipped != 1 {
		t.Errorf("expected 1 skipped, got %d", summary.Skipped)
	}
	if summary.Triggered == 0 {
		t.Error("expected at least one triggered signal")
	}
}

func TestSignalsFilterAndLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	first := testutil.CreateTestSignal(t, db, "AAPL", models.SignalRSIOversold)
	testutil.CreateTestSignal(t, db, "NVDA", models.SignalGoldenCross)

	all, err := service.Signals(context.Background(), "", 50)
	testutil.AssertNoError(t, err)
	if len(all) != 2 {
		t.Errorf("expected 2 signals, got %d", len(all))
	}

	aapl, err := service.Signals(context.Background(), "AAPL", 50)
	testutil.AssertNoError(t, err)
	if len(aapl) != 1 || aapl[0].Symbol != "AAPL" {
		t.Errorf("expected one AAPL signal, got %v", aapl)
	}

	got, err := service.GetSignal(context.Background(), first.ID)
	testutil.AssertNoError(t, err)
	if got.SignalType != models.SignalRSIOversold {
		t.Errorf("expected RSI_OVERSOLD, got %s", got.SignalType)
	}

	_, err = service.GetSignal(context.Background(), "missing:RSI_OVERSOLD:0")
	testutil.AssertAppError(t, err, "SIGNAL_NOT_FOUND")
}

func TestSignalsDefaultLimits(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	service := NewService(db, nil, nil)

	for i := 0; i < 12; i++ {
		testutil.CreateTestSignal(t, db, "AAPL", models.SignalRSIOversold)
	}

	// Per-symbol queries default to the 10 most recent.
	aapl, err := service.Signals(context.Background(), "AAPL", 0)
	testutil.AssertNoError(t, err)
	if len(aapl) != 10 {
		t.Errorf("expected default of 10 signals for a symbol, got %d", len(aapl))
	}
	for i := 1; i < len(aapl); i++ {
		if aapl[i].Timestamp.After(aapl[i-1].Timestamp) {
			t.Fatal("expected signals ordered newest first")
		}
	}

	// Unfiltered queries keep the wider default.
	all, err := service.Signals(context.Background(), "", 0)
	testutil.AssertNoError(t, err)
	if len(all) != 12 {
		t.Errorf("expected all 12 signals without a filter, got %d", len(all))
	}
}
