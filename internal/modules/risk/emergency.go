package risk

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/telemetry"
)

// Liquidator converts the whole portfolio into the stable asset.
// Satisfied by the rebalancing service.
type Liquidator interface {
	LiquidateToStable(prices map[string]float64, stableSymbol string) error
}

// Alerter delivers out-of-band notifications.
type Alerter interface {
	Alert(message string)
}

// EmergencyProtocol is the drawdown trip-wire. While the engine stays in
// SAFETY mode, repeated checks are no-ops.
type EmergencyProtocol struct {
	engine       *Engine
	liquidator   Liquidator
	alerter      Alerter
	stableSymbol string
	log          zerolog.Logger
}

// NewEmergencyProtocol creates the emergency protocol.
func NewEmergencyProtocol(
	engine *Engine,
	liquidator Liquidator,
	alerter Alerter,
	stableSymbol string,
	log zerolog.Logger,
) *EmergencyProtocol {
	return &EmergencyProtocol{
		engine:       engine,
		liquidator:   liquidator,
		alerter:      alerter,
		stableSymbol: stableSymbol,
		log:          log.With().Str("service", "emergency").Logger(),
	}
}

// CheckAndActivate evaluates drawdown and, on the transition into SAFETY,
// liquidates the portfolio into the stable asset. Returns true only when
// activation happened on this call.
func (p *EmergencyProtocol) CheckAndActivate(prices map[string]float64) (bool, error) {
	assessment, err := p.engine.EvaluateRisk(prices)
	if err != nil {
		p.log.Warn().Err(err).Msg("Valuation unavailable, skipping emergency check")
		return false, err
	}

	if !assessment.Emergency {
		return false, nil
	}

	p.log.Error().
		Float64("drawdown_percent", assessment.DrawdownPercent).
		Msg("EMERGENCY: drawdown threshold breached, liquidating to stable asset")
	telemetry.EmergencyActivations.Inc()

	if p.alerter != nil {
		p.alerter.Alert(fmt.Sprintf(
			"🚨 Emergency protocol activated: drawdown %.2f%%. Liquidating portfolio to %s and entering SAFETY mode.",
			assessment.DrawdownPercent, p.stableSymbol,
		))
	}

	if err := p.liquidator.LiquidateToStable(prices, p.stableSymbol); err != nil {
		// Trading still stops: the engine is already in SAFETY mode.
		p.log.Error().Err(err).Msg("Liquidation incomplete during emergency")
	}

	return true, nil
}
