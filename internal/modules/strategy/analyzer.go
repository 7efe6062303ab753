// Package strategy produces risk-adjusted trade decisions by combining
// market analysis with the decision oracle's verdicts.
package strategy

import (
	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/pkg/formulas"
)

const rsiPeriod = 14

// Analyzer derives the numeric market context handed to the oracle.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a market analyzer.
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "analyzer").Logger()}
}

// Analyze scores a symbol's current market state. RSI is omitted when
// the close history is too short for the 14-period window.
func (a *Analyzer) Analyze(md domain.MarketData, closes []float64) domain.MarketContext {
	ctx := domain.MarketContext{
		VolatilityScore: formulas.VolatilityScore(md.Change24h),
		VolumeScore:     formulas.VolumeScore(md.Volume24h),
	}

	if len(closes) > rsiPeriod {
		rsi := talib.Rsi(closes, rsiPeriod)
		last := rsi[len(rsi)-1]
		ctx.RSI14 = &last
	} else {
		a.log.Debug().Str("symbol", md.Symbol).Int("closes", len(closes)).
			Msg("Not enough history for RSI")
	}

	return ctx
}
