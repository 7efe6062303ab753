package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/modules/trading"
)

type stubPositions struct {
	positions []domain.Position
	err       error
}

func (s *stubPositions) GetAll() ([]domain.Position, error) {
	return s.positions, s.err
}

type stubSnapshots struct {
	data map[string]domain.MarketData
	at   time.Time
	err  error
}

func (s *stubSnapshots) Latest() (map[string]domain.MarketData, time.Time, error) {
	return s.data, s.at, s.err
}

type stubRisk struct {
	mode       domain.RiskMode
	assessment domain.RiskAssessment
}

func (s *stubRisk) Mode() domain.RiskMode                 { return s.mode }
func (s *stubRisk) LastAssessment() domain.RiskAssessment { return s.assessment }

type stubTrades struct {
	records []trading.DecisionRecord
	gotLim  int
}

func (s *stubTrades) Recent(limit int) ([]trading.DecisionRecord, error) {
	s.gotLim = limit
	return s.records, nil
}

type stubDB struct {
	name string
	err  error
}

func (s *stubDB) Name() string                         { return s.name }
func (s *stubDB) QuickCheck(ctx context.Context) error { return s.err }

func newTestHandlers() (*Handlers, *stubPositions, *stubSnapshots, *stubRisk, *stubTrades) {
	positions := &stubPositions{}
	snapshots := &stubSnapshots{}
	risk := &stubRisk{mode: domain.ModeNormal}
	trades := &stubTrades{}
	h := NewHandlers(positions, snapshots, risk, trades,
		[]HealthChecker{&stubDB{name: "portfolio"}, &stubDB{name: "cache"}}, zerolog.Nop())
	return h, positions, snapshots, risk, trades
}

func TestHandleHealth_AllDatabasesOK(t *testing.T) {
	h, _, _, _, _ := newTestHandlers()

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ok", resp.Databases["portfolio"])
	assert.Equal(t, "ok", resp.Databases["cache"])
}

func TestHandleHealth_FailingDatabase(t *testing.T) {
	h, _, _, _, _ := newTestHandlers()
	h.databases = []HealthChecker{
		&stubDB{name: "portfolio"},
		&stubDB{name: "cache", err: fmt.Errorf("disk I/O error")},
	}

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "ok", resp.Databases["portfolio"])
	assert.Contains(t, resp.Databases["cache"], "disk I/O error")
}

func TestHandlePortfolio_PricesAtLatestSnapshot(t *testing.T) {
	h, positions, snapshots, _, _ := newTestHandlers()
	positions.positions = []domain.Position{
		{Symbol: "BTCUSDT", Amount: 0.5, EntryPrice: 40000},
		{Symbol: "USDT", Amount: 100, EntryPrice: 1},
	}
	snapshots.data = map[string]domain.MarketData{
		"BTCUSDT": {Symbol: "BTCUSDT", Price: 50000},
		"USDT":    {Symbol: "USDT", Price: 1},
	}
	snapshots.at = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	rec := httptest.NewRecorder()
	h.HandlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PortfolioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 2)
	assert.InDelta(t, 25100.0, resp.TotalValue, 1e-9)
	assert.Equal(t, 50000.0, resp.Positions[0].MarkPrice)
	assert.Equal(t, "2026-08-30T12:00:00Z", resp.SnapshotAt)
}

func TestHandlePortfolio_NoSnapshotServesUnpriced(t *testing.T) {
	h, positions, snapshots, _, _ := newTestHandlers()
	positions.positions = []domain.Position{{Symbol: "BTCUSDT", Amount: 1, EntryPrice: 40000}}
	snapshots.err = fmt.Errorf("cache unavailable")

	rec := httptest.NewRecorder()
	h.HandlePortfolio(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp PortfolioResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 1)
	assert.Zero(t, resp.Positions[0].MarkPrice)
	assert.Zero(t, resp.TotalValue)
	assert.Empty(t, resp.SnapshotAt)
}

func TestHandleRisk(t *testing.T) {
	h, _, _, risk, _ := newTestHandlers()
	risk.mode = domain.ModeSafety
	risk.assessment = domain.RiskAssessment{
		Mode:            domain.ModeSafety,
		DrawdownPercent: 9.5,
		Emergency:       true,
	}

	rec := httptest.NewRecorder()
	h.HandleRisk(rec, httptest.NewRequest(http.MethodGet, "/api/risk", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RiskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ModeSafety), resp.Mode)
	assert.Equal(t, 9.5, resp.DrawdownPercent)
	assert.True(t, resp.Emergency)
}

func TestHandleDecisions_LimitHandling(t *testing.T) {
	h, _, _, _, trades := newTestHandlers()

	rec := httptest.NewRecorder()
	h.HandleDecisions(rec, httptest.NewRequest(http.MethodGet, "/api/decisions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, trades.gotLim, "default limit")

	rec = httptest.NewRecorder()
	h.HandleDecisions(rec, httptest.NewRequest(http.MethodGet, "/api/decisions?limit=1000", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200, trades.gotLim, "limit is capped")

	rec = httptest.NewRecorder()
	h.HandleDecisions(rec, httptest.NewRequest(http.MethodGet, "/api/decisions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDecisions_EmptyListIsNotNull(t *testing.T) {
	h, _, _, _, _ := newTestHandlers()

	rec := httptest.NewRecorder()
	h.HandleDecisions(rec, httptest.NewRequest(http.MethodGet, "/api/decisions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"decisions":[]`)
}
