// Package risk owns the operating mode state machine, drawdown
// evaluation and position sizing.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/pkg/formulas"
)

// ValuationSource values the portfolio under a price map.
// Satisfied by the position repository.
type ValuationSource interface {
	Valuation(prices map[string]float64) (float64, error)
}

// Config holds the risk parameters the engine operates under.
type Config struct {
	InitialBalance      float64
	EmergencyThreshold  float64
	PositionSizePercent float64
	MaxAssetPercent     float64
}

// Engine is the single writer of the risk mode. All transitions happen
// under its mutex, either through EvaluateRisk or SetMode.
type Engine struct {
	mu             sync.Mutex
	mode           domain.RiskMode
	lastAssessment domain.RiskAssessment

	valuation ValuationSource
	cfg       Config
	log       zerolog.Logger
	nowFn     func() time.Time
}

// NewEngine creates a risk engine starting in NORMAL mode.
func NewEngine(valuation ValuationSource, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		mode:      domain.ModeNormal,
		valuation: valuation,
		cfg:       cfg,
		log:       log.With().Str("service", "risk").Logger(),
		nowFn:     time.Now,
	}
}

// EvaluateRisk values the portfolio and applies the drawdown transitions:
// into SAFETY at or above the emergency threshold, back to NORMAL below
// it. Emergency is reported only on the evaluation that entered SAFETY.
func (e *Engine) EvaluateRisk(prices map[string]float64) (domain.RiskAssessment, error) {
	value, err := e.valuation.Valuation(prices)
	if err != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		return domain.RiskAssessment{Mode: e.mode}, fmt.Errorf("risk evaluation failed: %w", err)
	}

	drawdown := formulas.Drawdown(e.cfg.InitialBalance, value)

	e.mu.Lock()
	defer e.mu.Unlock()

	assessment := domain.RiskAssessment{
		Mode:            e.mode,
		DrawdownPercent: math.Round(drawdown*10000) / 100,
	}

	if drawdown >= e.cfg.EmergencyThreshold {
		if e.mode != domain.ModeSafety {
			e.transitionLocked(domain.ModeSafety, fmt.Sprintf("drawdown %.2f%%", assessment.DrawdownPercent))
			assessment.Mode = domain.ModeSafety
			assessment.Emergency = true
		}
	} else if e.mode == domain.ModeSafety {
		e.transitionLocked(domain.ModeNormal, "drawdown recovered below threshold")
		assessment.Mode = domain.ModeNormal
	}

	e.lastAssessment = assessment
	return assessment, nil
}

// Mode returns the current risk mode.
func (e *Engine) Mode() domain.RiskMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode forces a mode. Used by the strategy layer for the
// NORMAL to AGGRESSIVE switch on a qualifying opportunity.
func (e *Engine) SetMode(mode domain.RiskMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == mode {
		return
	}
	e.transitionLocked(mode, "explicit mode switch")
}

// LastAssessment returns the most recent drawdown assessment.
func (e *Engine) LastAssessment() domain.RiskAssessment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastAssessment
}

// CalculatePositionSize returns the quote-currency notional for a new
// trade: portfolio value scaled by the configured fraction, the mode
// factor, and dampened by market volatility.
func (e *Engine) CalculatePositionSize(portfolioValue, volatilityScore float64) float64 {
	factor := 1.0
	switch e.Mode() {
	case domain.ModeAggressive:
		factor = 1.5
	case domain.ModeSafety:
		factor = 0.5
	}

	size := portfolioValue * e.cfg.PositionSizePercent * factor * (1 - volatilityScore)
	if size < 0 {
		return 0
	}
	return size
}

// CanSwitchToAggressive reports whether a decision qualifies for the
// aggressive posture. Never true while in SAFETY mode.
func (e *Engine) CanSwitchToAggressive(confidence, potentialProfit float64) bool {
	return e.Mode() != domain.ModeSafety && confidence > 0.8 && potentialProfit > 0.15
}

// EvaluatePositionRisk scores an open position and reports whether it
// exceeds the ceiling for the current mode.
func (e *Engine) EvaluatePositionRisk(p domain.Position, md domain.MarketData) (float64, bool) {
	score := PositionRiskScore(p, md, e.cfg.MaxAssetPercent, e.nowFn())
	return score, score > RiskCeiling(e.Mode())
}

func (e *Engine) transitionLocked(mode domain.RiskMode, reason string) {
	e.log.Warn().
		Str("from", string(e.mode)).
		Str("to", string(mode)).
		Str("reason", reason).
		Msg("Risk mode transition")
	e.mode = mode
}
