// Package guest provides the local store backing unauthenticated sessions.
// It implements the same operation surface as the remote backend against a
// sqlite database under the data directory, so the mutation engine cannot
// tell which of the two it is driving.
package guest

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/domain"
)

// DBFileName is the guest database file kept under the data directory.
const DBFileName = "guest.db"

const portfolioSchema = `
CREATE TABLE IF NOT EXISTS holdings (
	symbol       TEXT PRIMARY KEY,
	shares       REAL NOT NULL,
	average_cost REAL NOT NULL,
	position     INTEGER NOT NULL,
	type         TEXT NOT NULL DEFAULT 'stock'
);
`

// PortfolioStore is the guest-mode portfolio adapter.
type PortfolioStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioStore creates the holdings table if needed and returns the store.
func NewPortfolioStore(db *sql.DB, log zerolog.Logger) (*PortfolioStore, error) {
	if _, err := db.Exec(portfolioSchema); err != nil {
		return nil, fmt.Errorf("failed to create holdings table: %w", err)
	}
	return &PortfolioStore{
		db:  db,
		log: log.With().Str("repo", "guest_portfolio").Logger(),
	}, nil
}

// Compile-time interface check
var _ domain.PortfolioStore = (*PortfolioStore)(nil)

// List returns all holdings ordered by position.
func (s *PortfolioStore) List(ctx context.Context) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, shares, average_cost, position, type FROM holdings ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Symbol, &h.Shares, &h.AverageCost, &h.Position, &h.Type); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Add appends a holding at the next dense position.
func (s *PortfolioStore) Add(ctx context.Context, input domain.HoldingInput) (domain.Holding, error) {
	symbol := domain.NormalizeSymbol(input.Symbol)
	assetType := input.Type
	if assetType == "" {
		assetType = domain.AssetStock
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM holdings WHERE symbol = ?`, symbol).Scan(&exists); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to check holding existence: %w", err)
	}
	if exists > 0 {
		return domain.Holding{}, domain.NewConflictError("Holding already exists. Use PUT to update.")
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM holdings`).Scan(&count); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to count holdings: %w", err)
	}

	holding := domain.Holding{
		Symbol:      symbol,
		Shares:      input.Shares,
		AverageCost: input.AverageCost,
		Position:    count,
		Type:        assetType,
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO holdings (symbol, shares, average_cost, position, type) VALUES (?, ?, ?, ?, ?)`,
		holding.Symbol, holding.Shares, holding.AverageCost, holding.Position, holding.Type); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to insert holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Str("symbol", holding.Symbol).Int("position", holding.Position).Msg("Holding added")
	return holding, nil
}

// Update replaces shares and average cost for an existing symbol.
func (s *PortfolioStore) Update(ctx context.Context, symbol string, shares, averageCost float64) (domain.Holding, error) {
	symbol = domain.NormalizeSymbol(symbol)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE holdings SET shares = ?, average_cost = ? WHERE symbol = ?`,
		shares, averageCost, symbol)
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to update holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Holding{}, domain.NewNotFoundError("Holding not found")
	}

	var h domain.Holding
	if err := tx.QueryRowContext(ctx,
		`SELECT symbol, shares, average_cost, position, type FROM holdings WHERE symbol = ?`,
		symbol).Scan(&h.Symbol, &h.Shares, &h.AverageCost, &h.Position, &h.Type); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to read updated holding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Holding{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Str("symbol", symbol).Float64("shares", shares).Msg("Holding updated")
	return h, nil
}

// Remove deletes a holding and compacts positions back to 0..n-1.
func (s *PortfolioStore) Remove(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("Holding not found")
	}

	if err := compactPositions(ctx, tx, "holdings"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Str("symbol", symbol).Msg("Holding removed")
	return nil
}

// Reorder assigns position = index for each listed symbol. Unknown symbols
// are ignored; stored symbols missing from the list follow the listed ones
// in their previous relative order.
func (s *PortfolioStore) Reorder(ctx context.Context, orderedSymbols []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyOrder(ctx, tx, "holdings", orderedSymbols); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug().Int("symbols", len(orderedSymbols)).Msg("Portfolio reordered")
	return nil
}

// Replace swaps the entire portfolio for the given holdings (bulk import).
func (s *PortfolioStore) Replace(ctx context.Context, holdings []domain.HoldingInput) error {
	if len(holdings) == 0 {
		return domain.NewValidationError("No valid holdings data received.")
	}

	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		symbol := domain.NormalizeSymbol(h.Symbol)
		if seen[symbol] {
			return domain.NewValidationError("Duplicate symbols found in upload data.")
		}
		seen[symbol] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings`); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	for i, h := range holdings {
		assetType := h.Type
		if assetType == "" {
			assetType = domain.AssetStock
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO holdings (symbol, shares, average_cost, position, type) VALUES (?, ?, ?, ?, ?)`,
			domain.NormalizeSymbol(h.Symbol), h.Shares, h.AverageCost, i, assetType); err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info().Int("holdings", len(holdings)).Msg("Portfolio replaced")
	return nil
}

// compactPositions re-enumerates rows to a dense 0..n-1 ordering,
// preserving the current relative order.
func compactPositions(ctx context.Context, tx *sql.Tx, table string) error {
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT symbol FROM %s ORDER BY position`, table))
	if err != nil {
		return fmt.Errorf("failed to query %s for compaction: %w", table, err)
	}

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating %s: %w", table, err)
	}
	rows.Close()

	for i, symbol := range symbols {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET position = ? WHERE symbol = ?`, table), i, symbol); err != nil {
			return fmt.Errorf("failed to compact %s positions: %w", table, err)
		}
	}
	return nil
}

// applyOrder moves the listed symbols to the front in list order, ignoring
// symbols not present, then re-densifies the remainder.
func applyOrder(ctx context.Context, tx *sql.Tx, table string, ordered []string) error {
	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT symbol FROM %s ORDER BY position`, table))
	if err != nil {
		return fmt.Errorf("failed to query %s for reorder: %w", table, err)
	}

	var current []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan symbol: %w", err)
		}
		current = append(current, symbol)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("error iterating %s: %w", table, err)
	}
	rows.Close()

	stored := make(map[string]bool, len(current))
	for _, symbol := range current {
		stored[symbol] = true
	}

	final := make([]string, 0, len(current))
	placed := make(map[string]bool, len(current))
	for _, symbol := range ordered {
		symbol = domain.NormalizeSymbol(symbol)
		if stored[symbol] && !placed[symbol] {
			final = append(final, symbol)
			placed[symbol] = true
		}
	}
	for _, symbol := range current {
		if !placed[symbol] {
			final = append(final, symbol)
		}
	}

	for i, symbol := range final {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET position = ? WHERE symbol = ?`, table), i, symbol); err != nil {
			return fmt.Errorf("failed to apply %s order: %w", table, err)
		}
	}
	return nil
}
