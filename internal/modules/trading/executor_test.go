package trading

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/domain"
)

type placedOrder struct {
	symbol string
	side   string
	qty    float64
}

type stubVenue struct {
	orders []placedOrder
	err    error
}

func (s *stubVenue) PlaceMarketOrder(symbol, side string, qty float64) error {
	if s.err != nil {
		return s.err
	}
	s.orders = append(s.orders, placedOrder{symbol, side, qty})
	return nil
}

type ledgerDelta struct {
	symbol string
	delta  float64
	price  float64
}

type stubLedger struct {
	deltas []ledgerDelta
	err    error
}

func (s *stubLedger) ApplyDelta(symbol string, delta, price float64) error {
	if s.err != nil {
		return s.err
	}
	s.deltas = append(s.deltas, ledgerDelta{symbol, delta, price})
	return nil
}

func TestExecuteDecision_HoldIsTrivial(t *testing.T) {
	venue := &stubVenue{}
	ledger := &stubLedger{}
	e := NewOrderExecutor(venue, ledger, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{Symbol: "BTCUSDT", Action: domain.ActionHold})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, venue.orders, "HOLD places no order")
	assert.Empty(t, ledger.deltas, "HOLD books nothing")
}

func TestExecuteDecision_BuyBooksBothLegs(t *testing.T) {
	venue := &stubVenue{}
	ledger := &stubLedger{}
	e := NewOrderExecutor(venue, ledger, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{
		Symbol: "BTCUSDT",
		Action: domain.ActionBuy,
		Price:  100,
		Amount: 20, // quote notional
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, venue.orders, 1)
	assert.Equal(t, placedOrder{"BTCUSDT", "BUY", 0.2}, venue.orders[0])

	require.Len(t, ledger.deltas, 2)
	assert.Equal(t, ledgerDelta{"BTCUSDT", 0.2, 100}, ledger.deltas[0])
	assert.Equal(t, ledgerDelta{"USDT", -20, 1}, ledger.deltas[1], "cash leg debited")
}

func TestExecuteDecision_SellCreditsCash(t *testing.T) {
	venue := &stubVenue{}
	ledger := &stubLedger{}
	e := NewOrderExecutor(venue, ledger, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{
		Symbol: "ETHUSDT",
		Action: domain.ActionSell,
		Price:  50,
		Amount: 100,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, ledger.deltas, 2)
	assert.Equal(t, ledgerDelta{"ETHUSDT", -2, 50}, ledger.deltas[0])
	assert.Equal(t, ledgerDelta{"USDT", 100, 1}, ledger.deltas[1])
}

func TestExecuteDecision_VenueFailureLeavesLedgerUntouched(t *testing.T) {
	venue := &stubVenue{err: fmt.Errorf("insufficient balance")}
	ledger := &stubLedger{}
	e := NewOrderExecutor(venue, ledger, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{
		Symbol: "BTCUSDT",
		Action: domain.ActionBuy,
		Price:  100,
		Amount: 20,
	})
	require.Error(t, err)
	assert.False(t, ok)
	assert.Empty(t, ledger.deltas, "no ledger mutation for an unfilled order")
}

func TestExecuteDecision_ZeroPriceSkipsOrder(t *testing.T) {
	venue := &stubVenue{}
	e := NewOrderExecutor(venue, &stubLedger{}, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{
		Symbol: "SOLUSDT",
		Action: domain.ActionBuy,
		Price:  0,
		Amount: 20,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, venue.orders)
}

func TestExecuteDecision_ZeroAmountSkipsOrder(t *testing.T) {
	venue := &stubVenue{}
	e := NewOrderExecutor(venue, &stubLedger{}, nil, "USDT", zerolog.Nop())

	ok, err := e.ExecuteDecision(domain.TradeDecision{
		Symbol: "SOLUSDT",
		Action: domain.ActionBuy,
		Price:  100,
		Amount: 0,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, venue.orders)
}
