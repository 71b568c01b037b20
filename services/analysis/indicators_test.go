package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"quantpulse/models"
)

// makeBars builds a chronological bar series from close prices, with a
// fixed 2-point high/low range around each close.
func makeBars(closes ...float64) []models.MarketData {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.MarketData, 0, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		bars = append(bars, models.MarketData{
			Symbol: "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price.Add(decimal.NewFromInt(1)),
			Low:    price.Sub(decimal.NewFromInt(1)),
			Close:  price,
			Volume: 1000,
		})
	}
	return bars
}

func TestSMA(t *testing.T) {
	bars := makeBars(1, 2, 3, 4, 5)

	sma, err := SMA(bars, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sma.Equal(decimal.NewFromInt(3)) {
		t.Errorf("expected SMA5 = 3, got %s", sma)
	}

	// Only the trailing window counts.
	sma, err = SMA(bars, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sma.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected SMA3 = 4, got %s", sma)
	}
}

func TestSMAInsufficientData(t *testing.T) {
	bars := makeBars(1, 2)
	if _, err := SMA(bars, 3); err == nil {
		t.Error("expected error for insufficient data")
	}
}

func TestEMAConstantSeries(t *testing.T) {
	bars := makeBars(50, 50, 50, 50, 50, 50)

	ema, err := EMA(bars, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ema.Equal(decimal.NewFromInt(50)) {
		t.Errorf("expected EMA of constant series = 50, got %s", ema)
	}
}

func TestEMATracksTrend(t *testing.T) {
	bars := makeBars(10, 11, 12, 13, 14, 15, 16, 17, 18, 19)

	ema, err := EMA(bars, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// EMA lags the latest close but sits above the series mean in an
	// uptrend.
	if !ema.LessThan(decimal.NewFromInt(19)) {
		t.Errorf("expected EMA below latest close, got %s", ema)
	}
	if !ema.GreaterThan(decimal.NewFromFloat(14.5)) {
		t.Errorf("expected EMA above series mean in uptrend, got %s", ema)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	bars := makeBars(closes...)

	rsi, err := RSI(bars, RSIPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rsi.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected RSI 100 for monotonic gains, got %s", rsi)
	}
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	bars := makeBars(closes...)

	rsi, err := RSI(bars, RSIPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rsi.IsZero() {
		t.Errorf("expected RSI 0 for monotonic losses, got %s", rsi)
	}
}

func TestRSIBounded(t *testing.T) {
	bars := makeBars(44, 47, 45, 50, 48, 52, 49, 53, 51, 55, 50, 54, 52, 56, 53, 57, 54)

	rsi, err := RSI(bars, RSIPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rsi.LessThan(decimal.Zero) || rsi.GreaterThan(decimal.NewFromInt(100)) {
		t.Errorf("RSI out of bounds: %s", rsi)
	}
	// Mixed but upward-biased series should read above the midline.
	if !rsi.GreaterThan(decimal.NewFromInt(50)) {
		t.Errorf("expected RSI above 50 for upward-biased series, got %s", rsi)
	}
}

func TestRSIInsufficientData(t *testing.T) {
	bars := makeBars(1, 2, 3)
	if _, err := RSI(bars, RSIPeriod); err == nil {
		t.Error("expected error for insufficient data")
	}
}

func TestTrueRangeUsesGaps(t *testing.T) {
	bar := models.MarketData{
		High:  decimal.NewFromInt(105),
		Low:   decimal.NewFromInt(101),
		Close: decimal.NewFromInt(103),
	}

	// Previous close inside the range: TR is high minus low.
	tr := TrueRange(bar, decimal.NewFromInt(102))
	if !tr.Equal(decimal.NewFromInt(4)) {
		t.Errorf("expected TR 4, got %s", tr)
	}

	// Gap up: previous close far below the low dominates.
	tr = TrueRange(bar, decimal.NewFromInt(90))
	if !tr.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected TR 15 after gap, got %s", tr)
	}
}

func TestATRConstantRange(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	bars := makeBars(closes...)

	atr, err := ATR(bars, ATRPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Every bar spans exactly 2 points around a flat close.
	if !atr.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected ATR 2 for constant range, got %s", atr)
	}
}

func TestATRInsufficientData(t *testing.T) {
	bars := makeBars(1, 2, 3)
	if _, err := ATR(bars, ATRPeriod); err == nil {
		t.Error("expected error for insufficient data")
	}
}
