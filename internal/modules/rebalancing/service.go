// Package rebalancing trims overweight positions back to the configured
// per-asset share cap and performs emergency liquidation.
package rebalancing

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
)

// HoldingsSource reads the ledger. Satisfied by the position repository.
type HoldingsSource interface {
	GetAll() ([]domain.Position, error)
	Valuation(prices map[string]float64) (float64, error)
}

// DecisionExecutor executes a trade decision. Satisfied by the order executor.
type DecisionExecutor interface {
	ExecuteDecision(decision domain.TradeDecision) (bool, error)
}

// Service issues corrective SELL decisions. It never touches the ledger
// itself; position changes flow through the execution path.
type Service struct {
	holdings        HoldingsSource
	executor        DecisionExecutor
	maxAssetPercent float64
	log             zerolog.Logger
}

// NewService creates a new rebalancing service.
func NewService(
	holdings HoldingsSource,
	executor DecisionExecutor,
	maxAssetPercent float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		holdings:        holdings,
		executor:        executor,
		maxAssetPercent: maxAssetPercent,
		log:             log.With().Str("service", "rebalancing").Logger(),
	}
}

// Rebalance sells the excess of every position whose share of the current
// valuation is strictly above the cap. The sell is sized to bring the
// share exactly to the cap at current prices. Failures are isolated per
// position.
func (s *Service) Rebalance(prices map[string]float64) error {
	total, err := s.holdings.Valuation(prices)
	if err != nil {
		return fmt.Errorf("rebalance aborted: %w", err)
	}
	if total <= 0 {
		s.log.Debug().Msg("Portfolio has no value, nothing to rebalance")
		return nil
	}

	positions, err := s.holdings.GetAll()
	if err != nil {
		return fmt.Errorf("rebalance aborted: %w", err)
	}

	for _, p := range positions {
		price := prices[p.Symbol]
		share := price * p.Amount / total
		if share <= s.maxAssetPercent {
			continue
		}

		excess := share - s.maxAssetPercent
		sellUnits := p.Amount * (excess / share)

		s.log.Info().
			Str("symbol", p.Symbol).
			Float64("share", share).
			Float64("sell_units", sellUnits).
			Msg("Trimming overweight position")

		decision := domain.TradeDecision{
			Symbol:     p.Symbol,
			Action:     domain.ActionSell,
			Confidence: 1,
			Price:      price,
			Amount:     sellUnits * price,
			Reason: fmt.Sprintf("rebalance: trimming %.1f%% share to %.1f%%",
				share*100, s.maxAssetPercent*100),
		}

		if ok, err := s.executor.ExecuteDecision(decision); err != nil || !ok {
			s.log.Error().Err(err).
				Str("symbol", p.Symbol).
				Msg("Rebalance sell failed, continuing with remaining positions")
		}
	}

	return nil
}

// LiquidateToStable sells every position except the stable asset itself.
// Failures are isolated per position; an error is returned when any
// position could not be liquidated.
func (s *Service) LiquidateToStable(prices map[string]float64, stableSymbol string) error {
	positions, err := s.holdings.GetAll()
	if err != nil {
		return fmt.Errorf("liquidation aborted: %w", err)
	}

	var failed int
	for _, p := range positions {
		if p.Symbol == stableSymbol {
			continue
		}

		decision := domain.TradeDecision{
			Symbol:     p.Symbol,
			Action:     domain.ActionSell,
			Confidence: 1,
			Price:      prices[p.Symbol],
			Amount:     p.Amount * prices[p.Symbol],
			Reason:     "emergency liquidation into stable asset",
		}

		if ok, err := s.executor.ExecuteDecision(decision); err != nil || !ok {
			failed++
			s.log.Error().Err(err).
				Str("symbol", p.Symbol).
				Msg("Failed to liquidate position")
		}
	}

	if failed > 0 {
		return fmt.Errorf("liquidation incomplete: %d position(s) failed", failed)
	}
	return nil
}
