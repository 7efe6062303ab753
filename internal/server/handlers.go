package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
	"github.com/apetrov/neurotrader/internal/modules/trading"
)

// PositionSource lists the held positions.
type PositionSource interface {
	GetAll() ([]domain.Position, error)
}

// SnapshotSource provides the latest market snapshot.
type SnapshotSource interface {
	Latest() (map[string]domain.MarketData, time.Time, error)
}

// RiskSource exposes the current risk state.
type RiskSource interface {
	Mode() domain.RiskMode
	LastAssessment() domain.RiskAssessment
}

// TradeSource lists recorded trade decisions.
type TradeSource interface {
	Recent(limit int) ([]trading.DecisionRecord, error)
}

// HealthChecker verifies a database is readable.
type HealthChecker interface {
	Name() string
	QuickCheck(ctx context.Context) error
}

// Handlers serves the read-only API over the bot's state.
type Handlers struct {
	positions PositionSource
	snapshots SnapshotSource
	risk      RiskSource
	trades    TradeSource
	databases []HealthChecker
	log       zerolog.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(
	positions PositionSource,
	snapshots SnapshotSource,
	risk RiskSource,
	trades TradeSource,
	databases []HealthChecker,
	log zerolog.Logger,
) *Handlers {
	return &Handlers{
		positions: positions,
		snapshots: snapshots,
		risk:      risk,
		trades:    trades,
		databases: databases,
		log:       log.With().Str("component", "handlers").Logger(),
	}
}

// HealthResponse reports per-database health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Databases map[string]string `json:"databases"`
}

// HandleHealth returns overall service health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Databases: make(map[string]string, len(h.databases)),
	}

	for _, db := range h.databases {
		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Database health check failed")
			response.Status = "unhealthy"
			response.Databases[db.Name()] = err.Error()
			continue
		}
		response.Databases[db.Name()] = "ok"
	}

	if response.Status != "healthy" {
		writeJSONStatus(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, response)
}

// PositionView is one holding priced at the latest snapshot.
type PositionView struct {
	Symbol     string    `json:"symbol"`
	Amount     float64   `json:"amount"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
	MarkPrice  float64   `json:"mark_price"`
	Value      float64   `json:"value"`
}

// PortfolioResponse is the portfolio summary.
type PortfolioResponse struct {
	Positions  []PositionView `json:"positions"`
	TotalValue float64        `json:"total_value"`
	SnapshotAt string         `json:"snapshot_at,omitempty"`
}

// HandlePortfolio returns the held positions priced at the latest snapshot.
func (h *Handlers) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		http.Error(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	marketData, snapshotAt, err := h.snapshots.Latest()
	if err != nil {
		h.log.Warn().Err(err).Msg("Latest snapshot unavailable, serving unpriced positions")
		marketData = nil
	}

	response := PortfolioResponse{Positions: make([]PositionView, 0, len(positions))}
	for _, p := range positions {
		view := PositionView{
			Symbol:     p.Symbol,
			Amount:     p.Amount,
			EntryPrice: p.EntryPrice,
			EntryTime:  p.EntryTime,
		}
		if md, ok := marketData[p.Symbol]; ok {
			view.MarkPrice = md.Price
			view.Value = p.Amount * md.Price
		}
		response.TotalValue += view.Value
		response.Positions = append(response.Positions, view)
	}
	if !snapshotAt.IsZero() {
		response.SnapshotAt = snapshotAt.UTC().Format(time.RFC3339)
	}

	writeJSON(w, response)
}

// RiskResponse is the current risk state.
type RiskResponse struct {
	Mode            string  `json:"mode"`
	DrawdownPercent float64 `json:"drawdown_percent"`
	Emergency       bool    `json:"emergency"`
}

// HandleRisk returns the current risk mode and last assessment.
func (h *Handlers) HandleRisk(w http.ResponseWriter, r *http.Request) {
	assessment := h.risk.LastAssessment()
	writeJSON(w, RiskResponse{
		Mode:            string(h.risk.Mode()),
		DrawdownPercent: assessment.DrawdownPercent,
		Emergency:       assessment.Emergency,
	})
}

// DecisionsResponse lists recent trade decisions.
type DecisionsResponse struct {
	Decisions []trading.DecisionRecord `json:"decisions"`
}

// HandleDecisions returns the most recent trade decisions.
// Accepts ?limit=N, capped at 200.
func (h *Handlers) HandleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}

	records, err := h.trades.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load decisions")
		http.Error(w, "failed to load decisions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []trading.DecisionRecord{}
	}

	writeJSON(w, DecisionsResponse{Decisions: records})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
