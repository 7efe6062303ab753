package strategy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/modules/trading"
)

// Oracle returns a raw trade verdict for a symbol. Satisfied by the
// openai client.
type Oracle interface {
	Decide(ctx context.Context, symbol string, md domain.MarketData, analysis domain.MarketContext) (domain.OracleDecision, error)
}

// KlineSource provides close-price history. Satisfied by the bybit client.
type KlineSource interface {
	GetKlineCloses(symbol, interval string, limit int) ([]float64, error)
}

// PortfolioValuer values the portfolio under a price map.
type PortfolioValuer interface {
	Value(prices map[string]float64) (float64, error)
}

// ModeController is the slice of the risk engine the opportunity switch
// needs.
type ModeController interface {
	Mode() domain.RiskMode
	SetMode(mode domain.RiskMode)
	CanSwitchToAggressive(confidence, potentialProfit float64) bool
}

// Alerter delivers out-of-band notifications.
type Alerter interface {
	Alert(message string)
}

// Service asks the oracle for a verdict and risk-adjusts it into a
// final decision. It never returns an error: any collaborator failure
// degrades to a HOLD with zero confidence.
type Service struct {
	oracle    Oracle
	klines    KlineSource
	analyzer  *Analyzer
	portfolio PortfolioValuer
	decisions *trading.DecisionMaker
	modes     ModeController
	alerter   Alerter
	log       zerolog.Logger
}

// NewService creates a strategy service.
func NewService(
	oracle Oracle,
	klines KlineSource,
	analyzer *Analyzer,
	portfolio PortfolioValuer,
	decisions *trading.DecisionMaker,
	modes ModeController,
	alerter Alerter,
	log zerolog.Logger,
) *Service {
	return &Service{
		oracle:    oracle,
		klines:    klines,
		analyzer:  analyzer,
		portfolio: portfolio,
		decisions: decisions,
		modes:     modes,
		alerter:   alerter,
		log:       log.With().Str("service", "strategy").Logger(),
	}
}

// MakeDecision produces the final decision for one symbol using this
// tick's market data and prices.
func (s *Service) MakeDecision(
	ctx context.Context,
	symbol string,
	md domain.MarketData,
	prices map[string]float64,
) domain.TradeDecision {
	closes, err := s.klines.GetKlineCloses(symbol, "60", 48)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("Kline history unavailable")
	}
	analysis := s.analyzer.Analyze(md, closes)

	verdict, err := s.oracle.Decide(ctx, symbol, md, analysis)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Oracle unavailable, holding")
		return domain.TradeDecision{
			Symbol: symbol,
			Action: domain.ActionHold,
			Price:  md.Price,
			Reason: "oracle unavailable",
		}
	}

	base := domain.TradeDecision{
		Symbol:          symbol,
		Action:          verdict.Action,
		Confidence:      verdict.Confidence,
		PotentialProfit: verdict.PotentialProfit,
		Price:           md.Price,
		Reason:          verdict.Reason,
	}

	value, err := s.portfolio.Value(prices)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("Valuation unavailable, holding")
		base.Action = domain.ActionHold
		base.Reason = "portfolio valuation unavailable"
		return base
	}

	final := s.decisions.MakeFinalDecision(base, value, analysis.VolatilityScore)

	// The opportunity switch keys off the raw verdict, before the
	// volatility haircut.
	if verdict.Action == domain.ActionBuy &&
		s.modes.CanSwitchToAggressive(verdict.Confidence, verdict.PotentialProfit) {
		s.modes.SetMode(domain.ModeAggressive)
		if s.alerter != nil {
			s.alerter.Alert(fmt.Sprintf(
				"⚡ Special opportunity on %s: confidence %.2f, potential profit %.0f%%. Switching to AGGRESSIVE mode.",
				symbol, verdict.Confidence, verdict.PotentialProfit*100,
			))
		}
	}

	return final
}
