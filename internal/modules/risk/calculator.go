package risk

import (
	"math"
	"time"

	"github.com/apetrov/neurotrader/internal/domain"
)

// Position risk is a weighted sum of three normalized components.
const (
	volatilityWeight = 0.5
	shareWeight      = 0.3
	timeWeight       = 0.2

	// A +50% daily move saturates the volatility component. The component
	// is signed: falling positions reduce the score.
	volatilitySaturation = 50.0

	// Hours of holding after which the time component saturates.
	holdSaturationHours = 96.0
)

// PositionRiskScore scores a single open position at the given instant.
// shareCap is the configured per-asset share cap; the position's quote
// value is measured against it as an absolute scaling knob, not against
// the portfolio total.
func PositionRiskScore(p domain.Position, md domain.MarketData, shareCap float64, now time.Time) float64 {
	volRisk := math.Min(md.Change24h/volatilitySaturation, 1)
	shareRisk := math.Min(p.Amount*md.Price/shareCap, 1)
	timeRisk := math.Min(now.Sub(p.EntryTime).Hours()/holdSaturationHours, 1)

	return volatilityWeight*volRisk + shareWeight*shareRisk + timeWeight*timeRisk
}

// RiskCeiling returns the maximum tolerated position risk score for a mode.
func RiskCeiling(mode domain.RiskMode) float64 {
	switch mode {
	case domain.ModeSafety:
		return 0.3
	case domain.ModeAggressive:
		return 0.8
	default:
		return 0.6
	}
}
