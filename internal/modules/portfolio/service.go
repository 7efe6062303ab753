package portfolio

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/pkg/formulas"
)

// PositionRiskEvaluator scores an open position against the current
// risk posture. Satisfied by the risk engine.
type PositionRiskEvaluator interface {
	EvaluatePositionRisk(p domain.Position, md domain.MarketData) (score float64, overLimit bool)
	Mode() domain.RiskMode
}

// Service exposes portfolio-level operations on top of the position ledger.
type Service struct {
	repo            *PositionRepository
	riskEval        PositionRiskEvaluator
	initialBalance  float64
	maxAssetPercent float64
	log             zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(
	repo *PositionRepository,
	riskEval PositionRiskEvaluator,
	initialBalance float64,
	maxAssetPercent float64,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:            repo,
		riskEval:        riskEval,
		initialBalance:  initialBalance,
		maxAssetPercent: maxAssetPercent,
		log:             log.With().Str("service", "portfolio").Logger(),
	}
}

// UpdatePosition applies a signed delta to the ledger and reports success.
func (s *Service) UpdatePosition(symbol string, delta, price float64) bool {
	if err := s.repo.ApplyDelta(symbol, delta, price); err != nil {
		s.log.Error().Err(err).
			Str("symbol", symbol).
			Float64("delta", delta).
			Float64("price", price).
			Msg("Failed to update position")
		return false
	}
	s.log.Info().
		Str("symbol", symbol).
		Float64("delta", delta).
		Float64("price", price).
		Msg("Position updated")
	return true
}

// Value returns the portfolio value under the given price map.
func (s *Service) Value(prices map[string]float64) (float64, error) {
	return s.repo.Valuation(prices)
}

// IsOverweight reports whether a symbol's share of portfolio value is
// strictly above the configured cap. An empty or zero-valued portfolio
// is never overweight.
func (s *Service) IsOverweight(symbol string, prices map[string]float64) (bool, error) {
	total, err := s.repo.Valuation(prices)
	if err != nil {
		return false, err
	}
	if total <= 0 {
		return false, nil
	}

	p, err := s.repo.GetBySymbol(symbol)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, nil
	}

	share := prices[symbol] * p.Amount / total
	return share > s.maxAssetPercent, nil
}

// GenerateRiskReport aggregates per-position risk scores into the
// portfolio health summary. Held symbols with no usable price are
// reported in MissingData instead of being scored.
func (s *Service) GenerateRiskReport(marketData map[string]domain.MarketData) (domain.RiskReport, error) {
	positions, err := s.repo.GetAll()
	if err != nil {
		return domain.RiskReport{}, fmt.Errorf("failed to generate risk report: %w", err)
	}

	prices := make(map[string]float64, len(marketData))
	for symbol, md := range marketData {
		prices[symbol] = md.Price
	}

	value, err := s.repo.Valuation(prices)
	if err != nil {
		return domain.RiskReport{}, fmt.Errorf("failed to generate risk report: %w", err)
	}

	report := domain.RiskReport{
		PortfolioValue: value,
		Mode:           s.riskEval.Mode(),
	}

	var scores []float64
	for _, p := range positions {
		md, ok := marketData[p.Symbol]
		if !ok || md.Price <= 0 {
			report.MissingData = append(report.MissingData, p.Symbol)
			continue
		}
		score, overLimit := s.riskEval.EvaluatePositionRisk(p, md)
		scores = append(scores, score)
		if overLimit {
			report.RiskPositions = append(report.RiskPositions, p.Symbol)
		}
	}

	if len(scores) > 0 {
		report.Volatility = stat.Mean(scores, nil)
	}
	report.SharpeRatio = formulas.SharpeRatio(value, s.initialBalance, report.Volatility, 0)

	return report, nil
}
