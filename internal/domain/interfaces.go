package domain

import "context"

// PortfolioStore is the shared adapter contract for portfolio state.
// The remote backend and the local guest store both implement it; the
// mutation engine is written against this seam and never knows which
// concrete adapter backs a session.
type PortfolioStore interface {
	// List returns holdings ordered by position
	List(ctx context.Context) ([]Holding, error)

	// Add appends a new holding at the next dense position.
	// Adding a symbol that already exists returns a ConflictError.
	Add(ctx context.Context, input HoldingInput) (Holding, error)

	// Update replaces shares and average cost for an existing symbol.
	// Unknown symbols return a NotFoundError.
	Update(ctx context.Context, symbol string, shares, averageCost float64) (Holding, error)

	// Remove deletes a holding and compacts remaining positions to 0..n-1.
	// Unknown symbols return a NotFoundError.
	Remove(ctx context.Context, symbol string) error

	// Reorder assigns position = index for each listed symbol.
	// Symbols in the list but not in the store are ignored.
	Reorder(ctx context.Context, orderedSymbols []string) error

	// Replace swaps the entire portfolio for the given holdings (bulk import)
	Replace(ctx context.Context, holdings []HoldingInput) error
}

// WatchlistStore is the shared adapter contract for watchlist state
type WatchlistStore interface {
	// List returns watched symbols ordered by position
	List(ctx context.Context) ([]WatchlistItem, error)

	// Add appends a symbol; duplicates return a ConflictError
	Add(ctx context.Context, symbol string) error

	// Remove deletes a symbol; unknown symbols return a NotFoundError
	Remove(ctx context.Context, symbol string) error

	// Reorder assigns position = index for each listed symbol
	Reorder(ctx context.Context, symbols []string) error
}

// QuoteProvider supplies live market snapshots for display enrichment.
// Implementations may serve cached values; the engine does not care.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
}
