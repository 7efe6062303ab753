// Package telemetry registers the process-wide prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/apetrov/neurotrader/internal/domain"
)

var (
	// TicksStarted counts trade cycles that acquired the run slot.
	TicksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurotrader_ticks_total",
		Help: "Trade cycles started.",
	})

	// TicksSkipped counts cycles dropped because the previous one was
	// still running.
	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurotrader_ticks_skipped_total",
		Help: "Trade cycles skipped due to an in-flight cycle.",
	})

	// SymbolsDegraded counts per-symbol market data fetches that failed
	// and fell back to a zeroed snapshot.
	SymbolsDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurotrader_symbols_degraded_total",
		Help: "Symbols processed with placeholder market data.",
	})

	// OrdersPlaced counts successfully placed orders by side.
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurotrader_orders_placed_total",
		Help: "Orders successfully placed at the venue.",
	}, []string{"side"})

	// OrdersFailed counts orders rejected by the venue or aborted locally.
	OrdersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurotrader_orders_failed_total",
		Help: "Orders that failed to execute.",
	})

	// EmergencyActivations counts emergency protocol activations.
	EmergencyActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurotrader_emergency_activations_total",
		Help: "Emergency liquidations triggered by drawdown.",
	})

	drawdownPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neurotrader_drawdown_percent",
		Help: "Last evaluated drawdown, in percent.",
	})

	riskMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neurotrader_risk_mode",
		Help: "Current risk mode (0=NORMAL, 1=AGGRESSIVE, 2=SAFETY).",
	})
)

// SetDrawdown records the last evaluated drawdown percentage.
func SetDrawdown(percent float64) {
	drawdownPercent.Set(percent)
}

// SetRiskMode records the current risk mode as a numeric gauge.
func SetRiskMode(mode domain.RiskMode) {
	switch mode {
	case domain.ModeAggressive:
		riskMode.Set(1)
	case domain.ModeSafety:
		riskMode.Set(2)
	default:
		riskMode.Set(0)
	}
}
