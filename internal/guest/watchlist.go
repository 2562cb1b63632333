package guest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/domain"
)

const watchlistSchema = `
CREATE TABLE IF NOT EXISTS watchlist (
	symbol   TEXT PRIMARY KEY,
	position INTEGER NOT NULL
);
`

// WatchlistStore is the guest-mode watchlist adapter.
type WatchlistStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewWatchlistStore creates the watchlist table if needed and returns the store.
func NewWatchlistStore(db *sql.DB, log zerolog.Logger) (*WatchlistStore, error) {
	if _, err := db.Exec(watchlistSchema); err != nil {
		return nil, fmt.Errorf("failed to create watchlist table: %w", err)
	}
	return &WatchlistStore{
		db:  db,
		log: log.With().Str("repo", "guest_watchlist").Logger(),
	}, nil
}

// Compile-time interface check
var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// List returns all watched symbols ordered by position.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, position FROM watchlist ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []domain.WatchlistItem
	for rows.Next() {
		var item domain.WatchlistItem
		if err := rows.Scan(&item.Symbol, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist: %w", err)
	}

	return items, nil
}

// Add appends a symbol at the next dense position.
func (s *WatchlistStore) Add(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watchlist WHERE symbol = ?`, symbol).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check watchlist existence: %w", err)
	}
	if exists > 0 {
		return domain.NewConflictError("%s is already in watchlist", symbol)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM watchlist`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count watchlist: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO watchlist (symbol, position) VALUES (?, ?)`, symbol, count); err != nil {
		return fmt.Errorf("failed to insert watchlist item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Str("symbol", symbol).Msg("Watchlist symbol added")
	return nil
}

// Remove deletes a symbol and compacts positions.
func (s *WatchlistStore) Remove(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM watchlist WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("%s not found in watchlist", symbol)
	}

	if err := compactPositions(ctx, tx, "watchlist"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Str("symbol", symbol).Msg("Watchlist symbol removed")
	return nil
}

// Reorder assigns position = index for each listed symbol.
func (s *WatchlistStore) Reorder(ctx context.Context, symbols []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyOrder(ctx, tx, "watchlist", symbols); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug().Int("symbols", len(symbols)).Msg("Watchlist reordered")
	return nil
}
