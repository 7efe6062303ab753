package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/domain"
)

// DecisionRecord is a persisted trade decision with its execution outcome.
type DecisionRecord struct {
	ID        string               `json:"id"`
	Decision  domain.TradeDecision `json:"decision"`
	Executed  bool                 `json:"executed"`
	CreatedAt time.Time            `json:"created_at"`
}

// TradeRepository is the append-only audit trail of final decisions.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trades").Logger(),
	}
}

// Record persists a decision and returns its id.
func (r *TradeRepository) Record(d domain.TradeDecision, executed bool) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO decisions (id, symbol, action, confidence, potential_profit, price, amount, reason, executed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.Symbol, string(d.Action), d.Confidence, d.PotentialProfit,
		d.Price, d.Amount, d.Reason, boolToInt(executed), time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record decision for %s: %w", d.Symbol, err)
	}
	return id, nil
}

// Recent returns the latest decisions across all symbols, newest first.
func (r *TradeRepository) Recent(limit int) ([]DecisionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, action, confidence, potential_profit, price, amount, reason, executed, created_at
		 FROM decisions ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent decisions: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// RecentBySymbol returns the latest decisions for one symbol, newest first.
func (r *TradeRepository) RecentBySymbol(symbol string, limit int) ([]DecisionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, symbol, action, confidence, potential_profit, price, amount, reason, executed, created_at
		 FROM decisions WHERE symbol = ? ORDER BY created_at DESC, id LIMIT ?`, symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions for %s: %w", symbol, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]DecisionRecord, error) {
	var records []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var action string
		var executed int
		var createdAt int64
		if err := rows.Scan(
			&rec.ID, &rec.Decision.Symbol, &action, &rec.Decision.Confidence,
			&rec.Decision.PotentialProfit, &rec.Decision.Price, &rec.Decision.Amount,
			&rec.Decision.Reason, &executed, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		rec.Decision.Action = domain.Action(action)
		rec.Executed = executed != 0
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
