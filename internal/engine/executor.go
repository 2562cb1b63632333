// Package engine implements the state engine between the UI surface and
// the storage adapters: session binding, confirm-then-invalidate
// mutations, optimistic reorders, and the cached read paths that join
// portfolio state with market data.
package engine

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/events"
)

// MarketData is the read surface of the market data client used for
// quote joins and cached passthroughs.
type MarketData interface {
	domain.QuoteProvider
	History(ctx context.Context, symbol, period, interval string, withSMA bool) (*domain.HistoryResponse, error)
	News(ctx context.Context, symbol string) ([]domain.NewsArticle, error)
	Search(ctx context.Context, query string) (json.RawMessage, error)
}

// Executor orchestrates every state-changing operation and the cached
// read paths. Item mutations are confirm-then-invalidate: the cache is
// only touched after the adapter acknowledges, and only if no newer
// mutation on the same entity was issued in the meantime. Reorders are
// optimistic and owned by the coordinators.
type Executor struct {
	session *Session
	cache   *cache.Store
	market  MarketData
	seq     *sequencer
	events  *events.Manager
	log     zerolog.Logger

	portfolioReorder *Coordinator
	watchlistReorder *Coordinator
}

// NewExecutor creates the executor and its two reorder coordinators.
func NewExecutor(session *Session, store *cache.Store, market MarketData, manager *events.Manager, log zerolog.Logger) *Executor {
	e := &Executor{
		session: session,
		cache:   store,
		market:  market,
		seq:     newSequencer(),
		events:  manager,
		log:     log.With().Str("service", "engine").Logger(),
	}
	e.portfolioReorder = newPortfolioCoordinator(e)
	e.watchlistReorder = newWatchlistCoordinator(e)
	return e
}

// Session exposes the bound session for the transport layer.
func (e *Executor) Session() *Session {
	return e.session
}

// validateHoldingInput normalizes and checks a holding payload before
// any adapter call.
func validateHoldingInput(input domain.HoldingInput) (domain.HoldingInput, error) {
	input.Symbol = domain.NormalizeSymbol(input.Symbol)
	if input.Symbol == "" {
		return input, domain.NewValidationError("Symbol is required.")
	}
	if input.Shares <= 0 {
		return input, domain.NewValidationError("Shares must be greater than zero.")
	}
	if input.AverageCost < 0 {
		return input, domain.NewValidationError("Average cost cannot be negative.")
	}
	if input.Type == "" {
		input.Type = domain.AssetStock
	}
	if !input.Type.Valid() {
		return input, domain.NewValidationError("Unknown asset type: %s", input.Type)
	}
	return input, nil
}

// confirmMutation applies the cache invalidation and change event for an
// acknowledged mutation, unless a newer mutation on the same entity was
// issued while this one was in flight. In that case the newer mutation
// owns the invalidation and this result is dropped.
func (e *Executor) confirmMutation(entity string, seq uint64, key string, emit func()) {
	if !e.seq.isLatest(entity, seq) {
		e.log.Debug().
			Str("entity", entity).
			Uint64("seq", seq).
			Uint64("latest", e.seq.current(entity)).
			Msg("Dropping superseded mutation confirmation")
		return
	}
	e.cache.Invalidate(key)
	emit()
}

// AddHolding validates and appends a new holding through the active
// adapter. The next portfolio read refetches the authoritative state.
func (e *Executor) AddHolding(ctx context.Context, input domain.HoldingInput) (domain.Holding, error) {
	input, err := validateHoldingInput(input)
	if err != nil {
		return domain.Holding{}, err
	}

	entity := itemEntity(EntityPortfolio, input.Symbol)
	seq := e.seq.take(entity)

	holding, err := e.session.Portfolio().Add(ctx, input)
	if err != nil {
		return domain.Holding{}, err
	}

	e.confirmMutation(entity, seq, cache.KeyPortfolio, func() {
		e.events.Emit("engine", &events.PortfolioChangedData{
			Action:   "added",
			Symbol:   holding.Symbol,
			Holdings: holding.Position + 1,
		})
	})
	return holding, nil
}

// UpdateHolding replaces the share count and average cost of an existing
// holding.
func (e *Executor) UpdateHolding(ctx context.Context, symbol string, shares, averageCost float64) (domain.Holding, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.Holding{}, domain.NewValidationError("Symbol is required.")
	}
	if shares <= 0 {
		return domain.Holding{}, domain.NewValidationError("Shares must be greater than zero.")
	}
	if averageCost < 0 {
		return domain.Holding{}, domain.NewValidationError("Average cost cannot be negative.")
	}

	entity := itemEntity(EntityPortfolio, symbol)
	seq := e.seq.take(entity)

	holding, err := e.session.Portfolio().Update(ctx, symbol, shares, averageCost)
	if err != nil {
		return domain.Holding{}, err
	}

	e.confirmMutation(entity, seq, cache.KeyPortfolio, func() {
		e.events.Emit("engine", &events.PortfolioChangedData{
			Action: "updated",
			Symbol: symbol,
		})
	})
	return holding, nil
}

// RemoveHolding deletes a holding. Remaining positions are compacted by
// the adapter, so the next read sees a dense sequence again.
func (e *Executor) RemoveHolding(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.NewValidationError("Symbol is required.")
	}

	entity := itemEntity(EntityPortfolio, symbol)
	seq := e.seq.take(entity)

	if err := e.session.Portfolio().Remove(ctx, symbol); err != nil {
		return err
	}

	e.confirmMutation(entity, seq, cache.KeyPortfolio, func() {
		e.events.Emit("engine", &events.PortfolioChangedData{
			Action: "removed",
			Symbol: symbol,
		})
	})
	return nil
}

// ReplacePortfolio swaps the entire portfolio for the given holdings, in
// order. Used by file import.
func (e *Executor) ReplacePortfolio(ctx context.Context, holdings []domain.HoldingInput) error {
	if len(holdings) == 0 {
		return domain.NewValidationError("No valid holdings data received.")
	}

	normalized := make([]domain.HoldingInput, 0, len(holdings))
	seen := make(map[string]bool, len(holdings))
	for _, h := range holdings {
		h, err := validateHoldingInput(h)
		if err != nil {
			return err
		}
		if seen[h.Symbol] {
			return domain.NewValidationError("Duplicate symbol in upload: %s", h.Symbol)
		}
		seen[h.Symbol] = true
		normalized = append(normalized, h)
	}

	seq := e.seq.take(EntityPortfolio)

	if err := e.session.Portfolio().Replace(ctx, normalized); err != nil {
		return err
	}

	e.confirmMutation(EntityPortfolio, seq, cache.KeyPortfolio, func() {
		e.events.Emit("engine", &events.PortfolioChangedData{
			Action:   "replaced",
			Holdings: len(normalized),
		})
	})
	return nil
}

// AddToWatchlist appends a symbol to the watchlist. The duplicate check
// runs against the current list before the adapter call, because the
// remote backend answers a duplicate add with a no-op success.
func (e *Executor) AddToWatchlist(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.NewValidationError("Symbol is required.")
	}

	items, err := e.watchlistItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Symbol == symbol {
			return domain.NewConflictError("%s is already in watchlist", symbol)
		}
	}

	entity := itemEntity(EntityWatchlist, symbol)
	seq := e.seq.take(entity)

	if err := e.session.Watchlist().Add(ctx, symbol); err != nil {
		return err
	}

	e.confirmMutation(entity, seq, cache.KeyWatchlist, func() {
		e.events.Emit("engine", &events.WatchlistChangedData{
			Action: "added",
			Symbol: symbol,
			Items:  len(items) + 1,
		})
	})
	return nil
}

// RemoveFromWatchlist removes a symbol from the watchlist. Like the
// duplicate check on add, absence is detected against the current list
// because the remote backend treats removing a missing symbol as a
// no-op success.
func (e *Executor) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.NewValidationError("Symbol is required.")
	}

	items, err := e.watchlistItems(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, item := range items {
		if item.Symbol == symbol {
			found = true
			break
		}
	}
	if !found {
		return domain.NewNotFoundError("%s not found in watchlist", symbol)
	}

	entity := itemEntity(EntityWatchlist, symbol)
	seq := e.seq.take(entity)

	if err := e.session.Watchlist().Remove(ctx, symbol); err != nil {
		return err
	}

	e.confirmMutation(entity, seq, cache.KeyWatchlist, func() {
		e.events.Emit("engine", &events.WatchlistChangedData{
			Action: "removed",
			Symbol: symbol,
			Items:  len(items) - 1,
		})
	})
	return nil
}

// ReorderPortfolio applies the given symbol order optimistically and
// persists it through the active adapter.
func (e *Executor) ReorderPortfolio(ctx context.Context, orderedSymbols []string) error {
	return e.portfolioReorder.Submit(ctx, orderedSymbols)
}

// MoveHolding relocates one holding to toIndex, preserving the relative
// order of everything else.
func (e *Executor) MoveHolding(ctx context.Context, symbol string, toIndex int) error {
	return e.portfolioReorder.Move(ctx, symbol, toIndex)
}

// ReorderWatchlist applies the given symbol order optimistically and
// persists it through the active adapter.
func (e *Executor) ReorderWatchlist(ctx context.Context, orderedSymbols []string) error {
	return e.watchlistReorder.Submit(ctx, orderedSymbols)
}

// MoveWatchlistItem relocates one watched symbol to toIndex, preserving
// the relative order of everything else.
func (e *Executor) MoveWatchlistItem(ctx context.Context, symbol string, toIndex int) error {
	return e.watchlistReorder.Move(ctx, symbol, toIndex)
}
