package rebalancing

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/database"
	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/modules/portfolio"
)

// applyingExecutor books fills into the ledger the way the real order
// executor does: one leg on the traded symbol, one cash leg.
type applyingExecutor struct {
	repo      *portfolio.PositionRepository
	stable    string
	decisions []domain.TradeDecision
	fail      map[string]bool
}

func (e *applyingExecutor) ExecuteDecision(d domain.TradeDecision) (bool, error) {
	e.decisions = append(e.decisions, d)
	if e.fail[d.Symbol] {
		return false, fmt.Errorf("venue unavailable")
	}

	qty := d.Amount / d.Price
	delta, cash := qty, -d.Amount
	if d.Action == domain.ActionSell {
		delta, cash = -qty, d.Amount
	}
	if err := e.repo.ApplyDelta(d.Symbol, delta, d.Price); err != nil {
		return false, err
	}
	if d.Symbol != e.stable {
		if err := e.repo.ApplyDelta(e.stable, cash, 1); err != nil {
			return false, err
		}
	}
	return true, nil
}

func setupRebalancer(t *testing.T) (*Service, *portfolio.PositionRepository, *applyingExecutor) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	repo := portfolio.NewPositionRepository(db.Conn(), zerolog.Nop())
	executor := &applyingExecutor{repo: repo, stable: "USDT"}
	svc := NewService(repo, executor, 0.2, zerolog.Nop())
	return svc, repo, executor
}

func TestRebalance_TrimsToCapAndIsIdempotent(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)

	// BTC holds 30% of a 1000 portfolio
	require.NoError(t, repo.ApplyDelta("BTCUSDT", 3, 100))
	require.NoError(t, repo.ApplyDelta("USDT", 700, 1))
	prices := map[string]float64{"BTCUSDT": 100, "USDT": 1}

	require.NoError(t, svc.Rebalance(prices))

	require.Len(t, executor.decisions, 1)
	d := executor.decisions[0]
	assert.Equal(t, domain.ActionSell, d.Action)
	assert.Equal(t, "BTCUSDT", d.Symbol)
	assert.InDelta(t, 100.0, d.Amount, 1e-9, "sell one third of the position: 1 unit at 100")
	assert.Equal(t, 1.0, d.Confidence)
	assert.Zero(t, d.PotentialProfit)

	// Position is now exactly at the 20% cap
	p, err := repo.GetBySymbol("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 2.0, p.Amount, 1e-9)

	// Re-running at the same prices issues nothing further
	require.NoError(t, svc.Rebalance(prices))
	assert.Len(t, executor.decisions, 1)
}

func TestRebalance_ExactlyAtCapIsLeftAlone(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 2, 100))
	require.NoError(t, repo.ApplyDelta("USDT", 800, 1))

	require.NoError(t, svc.Rebalance(map[string]float64{"BTCUSDT": 100, "USDT": 1}))
	assert.Empty(t, executor.decisions)
}

func TestRebalance_ZeroValuationIsNoop(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 3, 100))

	// No prices at all: valuation is zero
	require.NoError(t, svc.Rebalance(map[string]float64{}))
	assert.Empty(t, executor.decisions)
}

func TestRebalance_FailedSellDoesNotStopOthers(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)
	executor.fail = map[string]bool{"BTCUSDT": true}

	// Both positions overweight at 40% each
	require.NoError(t, repo.ApplyDelta("BTCUSDT", 4, 100))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 4, 100))
	require.NoError(t, repo.ApplyDelta("USDT", 200, 1))
	prices := map[string]float64{"BTCUSDT": 100, "ETHUSDT": 100, "USDT": 1}

	require.NoError(t, svc.Rebalance(prices))

	require.Len(t, executor.decisions, 2, "the failed BTC sell must not stop the ETH trim")
	eth, err := repo.GetBySymbol("ETHUSDT")
	require.NoError(t, err)
	assert.Less(t, eth.Amount, 4.0)
}

func TestLiquidateToStable(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 2, 100))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 5, 20))
	require.NoError(t, repo.ApplyDelta("USDT", 100, 1))
	prices := map[string]float64{"BTCUSDT": 110, "ETHUSDT": 18, "USDT": 1}

	require.NoError(t, svc.LiquidateToStable(prices, "USDT"))

	assert.Len(t, executor.decisions, 2, "the stable asset itself is never sold")

	positions, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "USDT", positions[0].Symbol)
	assert.InDelta(t, 100+220+90, positions[0].Amount, 1e-9)
}

func TestLiquidateToStable_ReportsFailures(t *testing.T) {
	svc, repo, executor := setupRebalancer(t)
	executor.fail = map[string]bool{"ETHUSDT": true}

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 1, 100))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 1, 100))
	prices := map[string]float64{"BTCUSDT": 100, "ETHUSDT": 100}

	err := svc.LiquidateToStable(prices, "USDT")
	require.Error(t, err)

	btc, _ := repo.GetBySymbol("BTCUSDT")
	assert.Nil(t, btc, "positions that could sell are sold")
	eth, _ := repo.GetBySymbol("ETHUSDT")
	assert.NotNil(t, eth)
}
