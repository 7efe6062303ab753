package portfolio

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/database"
)

func setupRepo(t *testing.T) *PositionRepository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewPositionRepository(db.Conn(), zerolog.Nop())
}

func TestApplyDelta_WeightedEntryPrice(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 2, 100))
	require.NoError(t, repo.ApplyDelta("BTCUSDT", 3, 200))

	p, err := repo.GetBySymbol("BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 5.0, p.Amount, 1e-9)
	assert.InDelta(t, 160.0, p.EntryPrice, 1e-9, "(2*100 + 3*200) / 5")
}

func TestApplyDelta_SellReweightsEntry(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("ETHUSDT", 5, 160))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", -1, 100))

	p, err := repo.GetBySymbol("ETHUSDT")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.InDelta(t, 4.0, p.Amount, 1e-9)
	assert.InDelta(t, 175.0, p.EntryPrice, 1e-9, "(5*160 - 1*100) / 4")
}

func TestApplyDelta_ClosesOnNonPositiveAmount(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 2, 100))
	require.NoError(t, repo.ApplyDelta("BTCUSDT", -2, 110))

	p, err := repo.GetBySymbol("BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, p, "position must be closed")

	// Oversell also closes rather than going negative
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 1, 50))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", -3, 60))

	p, err = repo.GetBySymbol("ETHUSDT")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestApplyDelta_NegativeDeltaWithoutPositionIsNoop(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", -1, 100))

	p, err := repo.GetBySymbol("BTCUSDT")
	require.NoError(t, err)
	assert.Nil(t, p, "a sell against nothing must not open a position")
}

func TestValuation_MissingPriceContributesZero(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 2, 100))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 10, 20))

	value, err := repo.Valuation(map[string]float64{"BTCUSDT": 110})
	require.NoError(t, err)
	assert.InDelta(t, 220.0, value, 1e-9, "ETHUSDT has no price and contributes nothing")
}

func TestGetAll(t *testing.T) {
	repo := setupRepo(t)

	require.NoError(t, repo.ApplyDelta("BTCUSDT", 1, 100))
	require.NoError(t, repo.ApplyDelta("ETHUSDT", 2, 50))

	positions, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "BTCUSDT", positions[0].Symbol)
	assert.Equal(t, "ETHUSDT", positions[1].Symbol)
}
