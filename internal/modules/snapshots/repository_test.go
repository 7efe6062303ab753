package snapshots

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/database"
	"github.com/apetrov/neurotrader/internal/domain"
)

func setupSnapshotRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	return NewRepository(db.Conn(), zerolog.Nop())
}

func TestStoreAndLatest(t *testing.T) {
	repo := setupSnapshotRepo(t)

	data := map[string]domain.MarketData{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: 50000, Volume24h: 1e8, Change24h: 2.5},
		"ETHUSDT": {Symbol: "ETHUSDT", Price: 3000, Volume24h: 5e7, Change24h: -1.2},
	}
	require.NoError(t, repo.Store(data))

	got, at, err := repo.Latest()
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.False(t, at.IsZero())
}

func TestLatest_EmptyIsNotAnError(t *testing.T) {
	repo := setupSnapshotRepo(t)

	got, at, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, at.IsZero())
}

func TestPrune(t *testing.T) {
	repo := setupSnapshotRepo(t)

	require.NoError(t, repo.Store(map[string]domain.MarketData{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: 50000},
	}))

	// Nothing is old enough yet
	removed, err := repo.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// A zero max age makes everything stale
	removed, err = repo.Prune(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, _, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, got)
}
