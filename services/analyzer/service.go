// Package analyzer evaluates trigger conditions against stored market
// data and records signals when the criteria are met.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"quantpulse/apperrors"
	"quantpulse/events"
	"quantpulse/logger"
	"quantpulse/models"
	"quantpulse/services/analysis"
)

// Trigger thresholds
var (
	rsiOversoldLevel   = decimal.NewFromInt(30)
	rsiOverboughtLevel = decimal.NewFromInt(70)
	rsiExtremeLow      = decimal.NewFromInt(20)
	rsiExtremeHigh     = decimal.NewFromInt(80)
	atrExpansionRatio  = decimal.NewFromFloat(1.5)
)

// minBars is the minimum history needed to evaluate any trigger
const minBars = analysis.RSIPeriod + 1

// Archiver stores triggered signals in long term storage. A nil
// Archiver disables archival.
type Archiver interface {
	ArchiveSignal(ctx context.Context, signal models.SignalResult) error
}

// evaluation is a trigger that fired for a symbol
type evaluation struct {
	SignalType       string
	Confidence       float64
	Explanation      string
	IndicatorsPassed []string
}

// RunSummary describes one pass over the selected symbols
type RunSummary struct {
	Analyzed  int                   `json:"analyzed"`
	Triggered int                   `json:"triggered"`
	Skipped   int                   `json:"skipped"`
	Signals   []models.SignalResult `json:"signals"`
	StartedAt time.Time             `json:"started_at"`
	Duration  string                `json:"duration"`
}

// Service evaluates signal triggers over stored market data
type Service struct {
	db      *gorm.DB
	bus     *events.Bus
	archive Archiver
}

// NewService creates an analyzer service
func NewService(db *gorm.DB, bus *events.Bus, archive Archiver) *Service {
	return &Service{db: db, bus: bus, archive: archive}
}

// Analyze evaluates all triggers for one symbol and persists any that
// fire. Symbols without enough history produce no signals and no error.
func (s *Service) Analyze(ctx context.Context, symbol string) ([]models.SignalResult, error) {
	var sym models.Symbol
	if err := s.db.WithContext(ctx).Where("symbol = ?", symbol).First(&sym).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrSymbolNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var bars []models.MarketData
	if err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("date asc").
		Find(&bars).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(bars) == 0 {
		return nil, apperrors.ErrNoMarketData
	}

	now := time.Now().UTC()
	var results []models.SignalResult
	for _, eval := range evaluate(bars) {
		signal := models.SignalResult{
			ID:          models.SignalResultID(symbol, eval.SignalType, now),
			Symbol:      symbol,
			SignalType:  eval.SignalType,
			Timestamp:   now,
			Confidence:  eval.Confidence,
			Explanation: eval.Explanation,
		}
		if err := signal.SetIndicatorsPassed(eval.IndicatorsPassed); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if err := s.db.WithContext(ctx).Save(&signal).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		results = append(results, signal)

		s.bus.Publish(ctx, events.NewEvent(events.SignalTriggered, map[string]interface{}{
			"symbol":      symbol,
			"signal_type": eval.SignalType,
			"confidence":  eval.Confidence,
			"explanation": eval.Explanation,
		}))

		if s.archive != nil {
			if err := s.archive.ArchiveSignal(ctx, signal); err != nil {
				logger.Get().Warnw("signal archival failed", "symbol", symbol, "error", err)
			}
		}
	}

	return results, nil
}

// AnalyzeAll runs trigger evaluation for every selected symbol.
// Per-symbol failures are logged and skipped so one bad symbol does
// not abort the run.
func (s *Service) AnalyzeAll(ctx context.Context) (*RunSummary, error) {
	var selected []models.SelectedSymbol
	if err := s.db.WithContext(ctx).Order("symbol asc").Find(&selected).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	start := time.Now().UTC()
	s.bus.Publish(ctx, events.NewEvent(events.AnalysisStarted, map[string]interface{}{
		"symbols": len(selected),
	}))

	summary := &RunSummary{StartedAt: start}
	for _, sel := range selected {
		signals, err := s.Analyze(ctx, sel.Symbol)
		if err != nil {
			logger.Get().Warnw("analysis failed", "symbol", sel.Symbol, "error", err)
			summary.Skipped++
			continue
		}
		summary.Analyzed++
		summary.Triggered += len(signals)
		summary.Signals = append(summary.Signals, signals...)
	}
	summary.Duration = time.Since(start).Round(time.Millisecond).String()

	s.bus.Publish(ctx, events.NewEvent(events.AnalysisCompleted, map[string]interface{}{
		"analyzed":  summary.Analyzed,
		"triggered": summary.Triggered,
		"skipped":   summary.Skipped,
		"duration":  summary.Duration,
	}))

	logger.Get().Infow("analysis run complete",
		"analyzed", summary.Analyzed,
		"triggered", summary.Triggered,
		"skipped", summary.Skipped,
		"duration", summary.Duration)
	return summary, nil
}

// Signals returns recent signals, newest first, optionally filtered
// by symbol. Per-symbol queries default to the 10 most recent.
func (s *Service) Signals(ctx context.Context, symbol string, limit int) ([]models.SignalResult, error) {
	if limit <= 0 || limit > 200 {
		if symbol != "" {
			limit = 10
		} else {
			limit = 50
		}
	}
	query := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit)
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var signals []models.SignalResult
	if err := query.Find(&signals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return signals, nil
}

// GetSignal returns one signal by ID
func (s *Service) GetSignal(ctx context.Context, id string) (*models.SignalResult, error) {
	var signal models.SignalResult
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&signal).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.ErrSignalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &signal, nil
}

// evaluate runs every trigger against a chronological bar series
func evaluate(bars []models.MarketData) []evaluation {
	var evals []evaluation
	if eval := evaluateRSI(bars); eval != nil {
		evals = append(evals, *eval)
	}
	if eval := evaluateATRExpansion(bars); eval != nil {
		evals = append(evals, *eval)
	}
	if eval := evaluateGoldenCross(bars); eval != nil {
		evals = append(evals, *eval)
	}
	return evals
}

// evaluateRSI checks for oversold and overbought conditions
func evaluateRSI(bars []models.MarketData) *evaluation {
	if len(bars) < minBars {
		return nil
	}
	rsi, err := analysis.RSI(bars, analysis.RSIPeriod)
	if err != nil {
		return nil
	}

	latest := bars[len(bars)-1]
	switch {
	case rsi.LessThan(rsiOversoldLevel):
		passed := []string{"rsi_below_30"}
		confidence := 0.6
		if rsi.LessThan(rsiExtremeLow) {
			passed = append(passed, "rsi_below_20")
			confidence += 0.2
		}
		if belowSMA(bars, analysis.SMAShort) {
			passed = append(passed, "close_below_sma50")
			confidence += 0.2
		}
		return &evaluation{
			SignalType: models.SignalRSIOversold,
			Confidence: confidence,
			Explanation: fmt.Sprintf("RSI(14) at %s is below 30, indicating oversold conditions at close %s",
				rsi.Round(2), latest.Close),
			IndicatorsPassed: passed,
		}
	case rsi.GreaterThan(rsiOverboughtLevel):
		passed := []string{"rsi_above_70"}
		confidence := 0.6
		if rsi.GreaterThan(rsiExtremeHigh) {
			passed = append(passed, "rsi_above_80")
			confidence += 0.2
		}
		if !belowSMA(bars, analysis.SMAShort) {
			passed = append(passed, "close_above_sma50")
			confidence += 0.2
		}
		return &evaluation{
			SignalType: models.SignalRSIOverbought,
			Confidence: confidence,
			Explanation: fmt.Sprintf("RSI(14) at %s is above 70, indicating overbought conditions at close %s",
				rsi.Round(2), latest.Close),
			IndicatorsPassed: passed,
		}
	}
	return nil
}

// evaluateATRExpansion fires when the current ATR window exceeds the
// prior window by the expansion ratio, signalling a volatility regime
// change
func evaluateATRExpansion(bars []models.MarketData) *evaluation {
	// Needs two full ATR windows plus the seed bar.
	if len(bars) < 2*analysis.ATRPeriod+1 {
		return nil
	}

	current, err := analysis.ATR(bars, analysis.ATRPeriod)
	if err != nil {
		return nil
	}
	prior, err := analysis.ATR(bars[:len(bars)-analysis.ATRPeriod], analysis.ATRPeriod)
	if err != nil || prior.IsZero() {
		return nil
	}

	ratio := current.Div(prior)
	if !ratio.GreaterThan(atrExpansionRatio) {
		return nil
	}

	passed := []string{"atr_ratio_above_1_5"}
	confidence := 0.6
	if ratio.GreaterThan(decimal.NewFromInt(2)) {
		passed = append(passed, "atr_ratio_above_2_0")
		confidence += 0.2
	}
	if volumeAboveAverage(bars) {
		passed = append(passed, "volume_above_average")
		confidence += 0.2
	}
	return &evaluation{
		SignalType: models.SignalATRExpansion,
		Confidence: confidence,
		Explanation: fmt.Sprintf("ATR(14) expanded to %s, %sx the prior window, indicating rising volatility",
			current.Round(4), ratio.Round(2)),
		IndicatorsPassed: passed,
	}
}

// evaluateGoldenCross fires when the 50-day SMA crosses above the
// 200-day SMA on the latest bar
func evaluateGoldenCross(bars []models.MarketData) *evaluation {
	if len(bars) < analysis.SMALong+1 {
		return nil
	}

	shortNow, err := analysis.SMA(bars, analysis.SMAShort)
	if err != nil {
		return nil
	}
	longNow, err := analysis.SMA(bars, analysis.SMALong)
	if err != nil {
		return nil
	}
	prev := bars[:len(bars)-1]
	shortPrev, err := analysis.SMA(prev, analysis.SMAShort)
	if err != nil {
		return nil
	}
	longPrev, err := analysis.SMA(prev, analysis.SMALong)
	if err != nil {
		return nil
	}

	crossed := shortNow.GreaterThan(longNow) && !shortPrev.GreaterThan(longPrev)
	if !crossed {
		return nil
	}

	passed := []string{"sma50_crossed_above_sma200"}
	confidence := 0.7
	if volumeAboveAverage(bars) {
		passed = append(passed, "volume_above_average")
		confidence += 0.15
	}
	latest := bars[len(bars)-1]
	if latest.Close.GreaterThan(shortNow) {
		passed = append(passed, "close_above_sma50")
		confidence += 0.15
	}
	return &evaluation{
		SignalType: models.SignalGoldenCross,
		Confidence: confidence,
		Explanation: fmt.Sprintf("50-day SMA at %s crossed above 200-day SMA at %s, a long-term bullish crossover",
			shortNow.Round(2), longNow.Round(2)),
		IndicatorsPassed: passed,
	}
}

// belowSMA reports whether the latest close is below the n-period SMA.
// Returns false when there is not enough history.
func belowSMA(bars []models.MarketData, period int) bool {
	sma, err := analysis.SMA(bars, period)
	if err != nil {
		return false
	}
	return bars[len(bars)-1].Close.LessThan(sma)
}

// volumeAboveAverage reports whether the latest volume exceeds the
// trailing 20-day average
func volumeAboveAverage(bars []models.MarketData) bool {
	const window = 20
	if len(bars) < window+1 {
		return false
	}
	var sum int64
	for _, bar := range bars[len(bars)-window-1 : len(bars)-1] {
		sum += bar.Volume
	}
	avg := sum / window
	return bars[len(bars)-1].Volume > avg
}
