// Package analysis provides technical indicator calculations over
// daily OHLCV bars. All functions expect bars in chronological order.
package analysis

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quantpulse/models"
)

// Standard indicator periods
const (
	RSIPeriod   = 14
	ATRPeriod   = 14
	SMAShort    = 50
	SMALong     = 200
)

// SMA calculates the simple moving average of the last period closes
func SMA(bars []models.MarketData, period int) (decimal.Decimal, error) {
	if len(bars) < period {
		return decimal.Zero, fmt.Errorf("insufficient data for SMA%d calculation", period)
	}

	sum := decimal.Zero
	for _, bar := range bars[len(bars)-period:] {
		sum = sum.Add(bar.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// EMA calculates the exponential moving average over the full series,
// seeded with the first close
func EMA(bars []models.MarketData, period int) (decimal.Decimal, error) {
	if len(bars) < period {
		return decimal.Zero, fmt.Errorf("insufficient data for EMA%d calculation", period)
	}

	multiplier := decimal.NewFromFloat(2.0 / float64(period+1))
	ema := bars[0].Close

	for i := 1; i < len(bars); i++ {
		ema = bars[i].Close.Sub(ema).Mul(multiplier).Add(ema)
	}
	return ema, nil
}

// RSI calculates the Relative Strength Index with Wilder smoothing
func RSI(bars []models.MarketData, period int) (decimal.Decimal, error) {
	if len(bars) < period+1 {
		return decimal.Zero, fmt.Errorf("insufficient data for RSI%d calculation", period)
	}

	periodDec := decimal.NewFromInt(int64(period))

	// Seed averages from the first `period` changes.
	avgGain := decimal.Zero
	avgLoss := decimal.Zero
	for i := 1; i <= period; i++ {
		change := bars[i].Close.Sub(bars[i-1].Close)
		if change.GreaterThan(decimal.Zero) {
			avgGain = avgGain.Add(change)
		} else {
			avgLoss = avgLoss.Add(change.Abs())
		}
	}
	avgGain = avgGain.Div(periodDec)
	avgLoss = avgLoss.Div(periodDec)

	// Wilder smoothing over the remainder of the series.
	smoothing := periodDec.Sub(decimal.NewFromInt(1))
	for i := period + 1; i < len(bars); i++ {
		change := bars[i].Close.Sub(bars[i-1].Close)
		gain := decimal.Zero
		loss := decimal.Zero
		if change.GreaterThan(decimal.Zero) {
			gain = change
		} else {
			loss = change.Abs()
		}
		avgGain = avgGain.Mul(smoothing).Add(gain).Div(periodDec)
		avgLoss = avgLoss.Mul(smoothing).Add(loss).Div(periodDec)
	}

	if avgLoss.IsZero() {
		return decimal.NewFromInt(100), nil
	}

	rs := avgGain.Div(avgLoss)
	rsi := decimal.NewFromInt(100).Sub(
		decimal.NewFromInt(100).Div(decimal.NewFromInt(1).Add(rs)),
	)
	return rsi, nil
}

// TrueRange returns the true range of a bar given the previous close
func TrueRange(bar models.MarketData, prevClose decimal.Decimal) decimal.Decimal {
	highLow := bar.High.Sub(bar.Low)
	highClose := bar.High.Sub(prevClose).Abs()
	lowClose := bar.Low.Sub(prevClose).Abs()

	tr := highLow
	if highClose.GreaterThan(tr) {
		tr = highClose
	}
	if lowClose.GreaterThan(tr) {
		tr = lowClose
	}
	return tr
}

// ATR calculates the Average True Range over the last period bars
func ATR(bars []models.MarketData, period int) (decimal.Decimal, error) {
	if len(bars) < period+1 {
		return decimal.Zero, fmt.Errorf("insufficient data for ATR%d calculation", period)
	}

	start := len(bars) - period
	sum := decimal.Zero
	for i := start; i < len(bars); i++ {
		sum = sum.Add(TrueRange(bars[i], bars[i-1].Close))
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}
