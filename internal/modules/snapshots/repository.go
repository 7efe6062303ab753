// Package snapshots persists per-tick market data so the status API can
// show recent market context without hitting the venue.
package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/apetrov/neurotrader/internal/domain"
)

// Repository stores msgpack-encoded market snapshots in the cache database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a snapshot repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "snapshots").Logger(),
	}
}

// Store persists one tick's market data.
func (r *Repository) Store(data map[string]domain.MarketData) error {
	blob, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if _, err := r.db.Exec(
		`INSERT INTO snapshots (created_at, data) VALUES (?, ?)`,
		time.Now().Unix(), blob,
	); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot. A nil map with no error means
// no snapshot has been stored yet.
func (r *Repository) Latest() (map[string]domain.MarketData, time.Time, error) {
	var createdAt int64
	var blob []byte
	err := r.db.QueryRow(
		`SELECT created_at, data FROM snapshots ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&createdAt, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	var data map[string]domain.MarketData
	if err := msgpack.Unmarshal(blob, &data); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return data, time.Unix(createdAt, 0), nil
}

// Prune deletes snapshots older than maxAge and returns the number removed.
func (r *Repository) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := r.db.Exec(`DELETE FROM snapshots WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	removed, _ := res.RowsAffected()
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Msg("Pruned old snapshots")
	}
	return removed, nil
}
