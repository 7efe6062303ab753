package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/apetrov/neurotrader/internal/database"
	"github.com/apetrov/neurotrader/internal/domain"
)

// PositionRepository is the single write path for the positions table.
type PositionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository.
func NewPositionRepository(db *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "positions").Logger(),
	}
}

// ApplyDelta atomically applies a signed amount delta at the given price.
// Entry price is money-weighted across the old holding and the delta.
// A position whose amount drops to zero or below is closed. A negative
// delta against a symbol that is not held is a no-op.
func (r *PositionRepository) ApplyDelta(symbol string, delta, price float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var amount, entryPrice float64
		err := tx.QueryRow(
			`SELECT amount, entry_price FROM positions WHERE symbol = ?`, symbol,
		).Scan(&amount, &entryPrice)

		if errors.Is(err, sql.ErrNoRows) {
			if delta <= 0 {
				r.log.Debug().Str("symbol", symbol).Float64("delta", delta).
					Msg("No position to reduce, skipping")
				return nil
			}
			_, err := tx.Exec(
				`INSERT INTO positions (symbol, amount, entry_price, entry_time) VALUES (?, ?, ?, ?)`,
				symbol, delta, price, time.Now().Unix(),
			)
			if err != nil {
				return fmt.Errorf("failed to open position %s: %w", symbol, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load position %s: %w", symbol, err)
		}

		newAmount := amount + delta
		if newAmount <= 0 {
			if _, err := tx.Exec(`DELETE FROM positions WHERE symbol = ?`, symbol); err != nil {
				return fmt.Errorf("failed to close position %s: %w", symbol, err)
			}
			r.log.Info().Str("symbol", symbol).Msg("Position closed")
			return nil
		}

		newEntry := (entryPrice*amount + price*delta) / newAmount
		if _, err := tx.Exec(
			`UPDATE positions SET amount = ?, entry_price = ? WHERE symbol = ?`,
			newAmount, newEntry, symbol,
		); err != nil {
			return fmt.Errorf("failed to update position %s: %w", symbol, err)
		}
		return nil
	})
}

// GetBySymbol returns a position, or nil when the symbol is not held.
func (r *PositionRepository) GetBySymbol(symbol string) (*domain.Position, error) {
	var p domain.Position
	var entryTime int64
	err := r.db.QueryRow(
		`SELECT symbol, amount, entry_price, entry_time FROM positions WHERE symbol = ?`, symbol,
	).Scan(&p.Symbol, &p.Amount, &p.EntryPrice, &entryTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", symbol, err)
	}
	p.EntryTime = time.Unix(entryTime, 0)
	return &p, nil
}

// GetAll returns all open positions.
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT symbol, amount, entry_price, entry_time FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var entryTime int64
		if err := rows.Scan(&p.Symbol, &p.Amount, &p.EntryPrice, &entryTime); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		p.EntryTime = time.Unix(entryTime, 0)
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

// Valuation returns the portfolio value under the given price map.
// Symbols without a price contribute zero.
func (r *PositionRepository) Valuation(prices map[string]float64) (float64, error) {
	positions, err := r.GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to value portfolio: %w", err)
	}

	var total float64
	for _, p := range positions {
		total += prices[p.Symbol] * p.Amount
	}
	return total, nil
}
