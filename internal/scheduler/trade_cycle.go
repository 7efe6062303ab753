package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/telemetry"
)

// SymbolSource ranks tradeable symbols for a tick.
type SymbolSource interface {
	RankSymbols(limit int) ([]string, error)
}

// MarketSource fetches per-symbol market data.
type MarketSource interface {
	GetMarketData(symbol string) (domain.MarketData, error)
}

// EmergencyChecker runs the drawdown trip-wire.
type EmergencyChecker interface {
	CheckAndActivate(prices map[string]float64) (bool, error)
}

// RiskEvaluator evaluates portfolio drawdown and mode.
type RiskEvaluator interface {
	EvaluateRisk(prices map[string]float64) (domain.RiskAssessment, error)
}

// RiskReporter builds the portfolio health summary.
type RiskReporter interface {
	GenerateRiskReport(marketData map[string]domain.MarketData) (domain.RiskReport, error)
}

// DecisionSource produces the final decision for one symbol.
type DecisionSource interface {
	MakeDecision(ctx context.Context, symbol string, md domain.MarketData, prices map[string]float64) domain.TradeDecision
}

// DecisionExecutor carries a decision to the venue.
type DecisionExecutor interface {
	ExecuteDecision(decision domain.TradeDecision) (bool, error)
}

// Rebalancer trims overweight positions.
type Rebalancer interface {
	Rebalance(prices map[string]float64) error
}

// SnapshotStore persists a tick's market data. Optional.
type SnapshotStore interface {
	Store(data map[string]domain.MarketData) error
}

// TradeCycleDeps are the orchestrator's collaborators.
type TradeCycleDeps struct {
	Symbols    SymbolSource
	Market     MarketSource
	Emergency  EmergencyChecker
	Risk       RiskEvaluator
	Reporter   RiskReporter
	Decider    DecisionSource
	Executor   DecisionExecutor
	Rebalancer Rebalancer
	Snapshots  SnapshotStore
}

// TradeCycleConfig holds the orchestrator's tunables.
type TradeCycleConfig struct {
	TopPairs         int
	StableSymbol     string
	RebalanceWeekday int // 0=Sunday ... 6=Saturday
	RebalanceHour    int
}

// TradeCycleJob runs one end-to-end trading tick. Every failure is
// contained inside the tick: a symbol that fails never stops the others,
// and no error escapes to crash the scheduler.
type TradeCycleJob struct {
	deps     TradeCycleDeps
	cfg      TradeCycleConfig
	inFlight atomic.Bool
	nowFn    func() time.Time
	log      zerolog.Logger
}

// NewTradeCycleJob creates the trade cycle job.
func NewTradeCycleJob(deps TradeCycleDeps, cfg TradeCycleConfig, log zerolog.Logger) *TradeCycleJob {
	return &TradeCycleJob{
		deps:  deps,
		cfg:   cfg,
		nowFn: time.Now,
		log:   log.With().Str("job", "trade-cycle").Logger(),
	}
}

// Name implements Job.
func (j *TradeCycleJob) Name() string { return "trade-cycle" }

// Run executes one tick. Only one tick runs at a time: if the previous
// one is still in flight, this run is dropped.
func (j *TradeCycleJob) Run() error {
	if !j.inFlight.CompareAndSwap(false, true) {
		telemetry.TicksSkipped.Inc()
		j.log.Warn().Msg("Previous trade cycle still running, skipping tick")
		return nil
	}
	defer j.inFlight.Store(false)
	telemetry.TicksStarted.Inc()

	symbols, err := j.deps.Symbols.RankSymbols(j.cfg.TopPairs)
	if err != nil {
		j.log.Error().Err(err).Msg("Symbol ranking unavailable, skipping tick")
		return nil
	}
	if len(symbols) == 0 {
		j.log.Info().Msg("No tradeable symbols this tick")
		return nil
	}

	marketData := make(map[string]domain.MarketData, len(symbols))
	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		md, err := j.deps.Market.GetMarketData(symbol)
		if err != nil {
			telemetry.SymbolsDegraded.Inc()
			j.log.Warn().Err(err).Str("symbol", symbol).
				Msg("Market data unavailable, continuing with placeholder")
			md = domain.MarketData{Symbol: symbol}
		}
		marketData[symbol] = md
		prices[symbol] = md.Price
	}

	// The stable asset is the valuation unit and never appears among the
	// ranked pairs; it is always worth par.
	if j.cfg.StableSymbol != "" {
		if _, ok := prices[j.cfg.StableSymbol]; !ok {
			prices[j.cfg.StableSymbol] = 1
			marketData[j.cfg.StableSymbol] = domain.MarketData{Symbol: j.cfg.StableSymbol, Price: 1}
		}
	}

	if j.deps.Snapshots != nil {
		if err := j.deps.Snapshots.Store(marketData); err != nil {
			j.log.Warn().Err(err).Msg("Failed to store market snapshot")
		}
	}

	activated, err := j.deps.Emergency.CheckAndActivate(prices)
	if err != nil {
		j.log.Warn().Err(err).Msg("Emergency check degraded")
	}
	if activated {
		j.log.Error().Msg("Emergency protocol activated, aborting tick")
		return nil
	}

	if assessment, err := j.deps.Risk.EvaluateRisk(prices); err != nil {
		j.log.Warn().Err(err).Msg("Risk evaluation unavailable")
	} else {
		telemetry.SetDrawdown(assessment.DrawdownPercent)
		telemetry.SetRiskMode(assessment.Mode)
		j.log.Info().
			Str("mode", string(assessment.Mode)).
			Float64("drawdown_percent", assessment.DrawdownPercent).
			Msg("Risk evaluated")
	}

	if report, err := j.deps.Reporter.GenerateRiskReport(marketData); err != nil {
		j.log.Warn().Err(err).Msg("Risk report unavailable")
	} else {
		if len(report.RiskPositions) > 0 {
			j.log.Warn().Strs("symbols", report.RiskPositions).Msg("Positions over risk ceiling")
		}
		if len(report.MissingData) > 0 {
			j.log.Warn().Strs("symbols", report.MissingData).Msg("Held symbols without market data")
		}
		j.log.Info().
			Float64("portfolio_value", report.PortfolioValue).
			Float64("sharpe", report.SharpeRatio).
			Msg("Portfolio health")
	}

	ctx := context.Background()
	for _, symbol := range symbols {
		decision := j.deps.Decider.MakeDecision(ctx, symbol, marketData[symbol], prices)
		if ok, err := j.deps.Executor.ExecuteDecision(decision); err != nil {
			j.log.Error().Err(err).Str("symbol", symbol).
				Msg("Execution failed, continuing with remaining symbols")
		} else if !ok {
			j.log.Debug().Str("symbol", symbol).Msg("Decision not executed")
		}
	}

	if j.isRebalanceWindow(j.nowFn()) {
		j.log.Info().Msg("Weekly rebalance window")
		if err := j.deps.Rebalancer.Rebalance(prices); err != nil {
			j.log.Error().Err(err).Msg("Rebalance failed")
		}
	}

	return nil
}

func (j *TradeCycleJob) isRebalanceWindow(now time.Time) bool {
	return int(now.Weekday()) == j.cfg.RebalanceWeekday && now.Hour() == j.cfg.RebalanceHour
}
