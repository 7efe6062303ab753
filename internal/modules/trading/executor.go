package trading

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/telemetry"
)

// Venue places orders at the exchange. Satisfied by the bybit client.
type Venue interface {
	PlaceMarketOrder(symbol, side string, qty float64) error
}

// Ledger is the write path into the position store.
// Satisfied by the position repository.
type Ledger interface {
	ApplyDelta(symbol string, delta, price float64) error
}

// OrderExecutor carries decisions to the venue and books the resulting
// ledger deltas. A filled trade books two legs: the traded symbol and
// the stable-asset cash leg, so valuation keeps counting the proceeds.
type OrderExecutor struct {
	venue        Venue
	ledger       Ledger
	trades       *TradeRepository
	stableSymbol string
	log          zerolog.Logger
}

// NewOrderExecutor creates an order executor.
func NewOrderExecutor(
	venue Venue,
	ledger Ledger,
	trades *TradeRepository,
	stableSymbol string,
	log zerolog.Logger,
) *OrderExecutor {
	return &OrderExecutor{
		venue:        venue,
		ledger:       ledger,
		trades:       trades,
		stableSymbol: stableSymbol,
		log:          log.With().Str("service", "executor").Logger(),
	}
}

// ExecuteDecision executes a single decision. HOLD succeeds trivially.
// Returns false when the order could not be placed; the ledger is never
// mutated for an unfilled order.
func (e *OrderExecutor) ExecuteDecision(d domain.TradeDecision) (bool, error) {
	if d.Action == domain.ActionHold {
		e.log.Debug().Str("symbol", d.Symbol).Str("reason", d.Reason).Msg("Holding")
		e.record(d, true)
		return true, nil
	}

	if d.Price <= 0 {
		e.log.Warn().Str("symbol", d.Symbol).Msg("No usable price, skipping order")
		telemetry.OrdersFailed.Inc()
		e.record(d, false)
		return false, nil
	}
	if d.Amount <= 0 {
		e.log.Warn().Str("symbol", d.Symbol).Float64("amount", d.Amount).
			Msg("Non-positive order amount, skipping order")
		e.record(d, false)
		return false, nil
	}

	qty := d.Amount / d.Price

	if err := e.venue.PlaceMarketOrder(d.Symbol, string(d.Action), qty); err != nil {
		telemetry.OrdersFailed.Inc()
		e.record(d, false)
		return false, fmt.Errorf("order %s %s failed: %w", d.Action, d.Symbol, err)
	}
	telemetry.OrdersPlaced.WithLabelValues(string(d.Action)).Inc()

	e.log.Info().
		Str("symbol", d.Symbol).
		Str("action", string(d.Action)).
		Float64("qty", qty).
		Float64("price", d.Price).
		Msg("Order filled")

	delta := qty
	cashDelta := -d.Amount
	if d.Action == domain.ActionSell {
		delta = -qty
		cashDelta = d.Amount
	}

	// The order is already filled; a failed booking is logged, not retried.
	if err := e.ledger.ApplyDelta(d.Symbol, delta, d.Price); err != nil {
		e.log.Error().Err(err).Str("symbol", d.Symbol).
			Msg("Order filled but position booking failed")
	}
	if d.Symbol != e.stableSymbol {
		if err := e.ledger.ApplyDelta(e.stableSymbol, cashDelta, 1); err != nil {
			e.log.Error().Err(err).Str("symbol", e.stableSymbol).
				Msg("Order filled but cash leg booking failed")
		}
	}

	e.record(d, true)
	return true, nil
}

func (e *OrderExecutor) record(d domain.TradeDecision, executed bool) {
	if e.trades == nil {
		return
	}
	if _, err := e.trades.Record(d, executed); err != nil {
		e.log.Error().Err(err).Str("symbol", d.Symbol).Msg("Failed to record decision")
	}
}
