// Package trading turns oracle verdicts into executable orders and
// records the decision trail.
package trading

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
)

// RiskPolicy is the slice of the risk engine the decision layer needs.
type RiskPolicy interface {
	Mode() domain.RiskMode
	CalculatePositionSize(portfolioValue, volatilityScore float64) float64
}

// DecisionMaker applies risk adjustment to raw oracle decisions.
type DecisionMaker struct {
	risk          RiskPolicy
	minConfidence float64
	log           zerolog.Logger
}

// NewDecisionMaker creates a decision maker.
func NewDecisionMaker(risk RiskPolicy, minConfidence float64, log zerolog.Logger) *DecisionMaker {
	return &DecisionMaker{
		risk:          risk,
		minConfidence: minConfidence,
		log:           log.With().Str("service", "decision_maker").Logger(),
	}
}

// MakeFinalDecision scales confidence by market volatility, downgrades
// disallowed or weak decisions to HOLD, and sizes the trade.
func (m *DecisionMaker) MakeFinalDecision(
	d domain.TradeDecision,
	portfolioValue float64,
	volatilityScore float64,
) domain.TradeDecision {
	d.Confidence = d.Confidence * (1 - volatilityScore)

	if m.risk.Mode() == domain.ModeSafety && d.Action == domain.ActionBuy {
		m.log.Info().Str("symbol", d.Symbol).Msg("BUY downgraded to HOLD in SAFETY mode")
		d.Action = domain.ActionHold
		d.Reason = "safety mode active: " + d.Reason
	}

	if d.Action != domain.ActionHold && d.Confidence < m.minConfidence {
		d.Action = domain.ActionHold
		d.Reason = fmt.Sprintf("adjusted confidence %.2f below %.2f: %s",
			d.Confidence, m.minConfidence, d.Reason)
	}

	if d.Action == domain.ActionHold {
		d.Amount = 0
		return d
	}

	d.Amount = m.risk.CalculatePositionSize(portfolioValue, volatilityScore)
	return d
}
