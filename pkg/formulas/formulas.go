// Package formulas contains the pure portfolio math shared by the risk,
// strategy and reporting layers. Everything here is side-effect free.
package formulas

import "math"

// VolatilityScore maps a 24h percent change onto [0, 1].
// A ±20% move (or larger) saturates the score at 1.
func VolatilityScore(change24hPercent float64) float64 {
	return math.Min(math.Abs(change24hPercent)/20.0, 1.0)
}

// Drawdown returns the fractional loss of value relative to the initial
// balance. Gains produce negative values. Returns 0 when initialBalance
// is not positive.
func Drawdown(initialBalance, currentValue float64) float64 {
	if initialBalance <= 0 {
		return 0
	}
	return (initialBalance - currentValue) / initialBalance
}

// SharpeRatio computes the simplified reporting ratio
// ((value-initial)/initial - riskFreeRate) / volatility.
// Returns 0 when volatility is 0 so an empty portfolio never divides by zero.
func SharpeRatio(currentValue, initialBalance, volatility, riskFreeRate float64) float64 {
	if volatility == 0 || initialBalance <= 0 {
		return 0
	}
	returns := (currentValue - initialBalance) / initialBalance
	return (returns - riskFreeRate) / volatility
}

// VolumeScore maps a 24h quote volume onto [0, 1] on a log10 scale.
// Roughly: 10^8 in daily volume saturates the score.
func VolumeScore(volume24h float64) float64 {
	if volume24h <= 0 {
		return 0
	}
	return math.Min(math.Log10(volume24h+1)/8.0, 1.0)
}
