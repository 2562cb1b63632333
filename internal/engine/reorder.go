package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/events"
)

// reorderTarget adapts one entity class (portfolio or watchlist) to the
// coordinator: where its list lives in the cache, how to read the
// current symbol order, how to apply an order to the cached value, how
// to persist, and what to announce on confirmation.
type reorderTarget struct {
	entity  string
	key     string
	current func(ctx context.Context) ([]string, error)
	apply   func(value any, ordered []string) any
	persist func(ctx context.Context, ordered []string) error
	confirm func(ordered []string)
}

// Coordinator owns the optimistic drag state for one entity class. A
// submitted order is applied to the cache immediately, then persisted
// through the active adapter; the sequence space decides which result
// may touch the cache when submissions overlap, so the last submitted
// order always wins.
type Coordinator struct {
	target reorderTarget
	cache  *cache.Store
	seq    *sequencer
	log    zerolog.Logger

	mu      sync.Mutex
	pending int
}

func newPortfolioCoordinator(e *Executor) *Coordinator {
	return &Coordinator{
		target: reorderTarget{
			entity: EntityPortfolio,
			key:    cache.KeyPortfolio,
			current: func(ctx context.Context) ([]string, error) {
				holdings, err := e.portfolioHoldings(ctx)
				if err != nil {
					return nil, err
				}
				symbols := make([]string, len(holdings))
				for i, h := range holdings {
					symbols[i] = h.Symbol
				}
				return symbols, nil
			},
			apply: func(value any, ordered []string) any {
				holdings, ok := value.([]domain.Holding)
				if !ok {
					return value
				}
				return applyHoldingOrder(holdings, ordered)
			},
			persist: func(ctx context.Context, ordered []string) error {
				return e.session.Portfolio().Reorder(ctx, ordered)
			},
			confirm: func(ordered []string) {
				e.events.Emit("engine", &events.PortfolioChangedData{
					Action:   "reordered",
					Holdings: len(ordered),
				})
			},
		},
		cache: e.cache,
		seq:   e.seq,
		log:   e.log.With().Str("entity", EntityPortfolio).Logger(),
	}
}

func newWatchlistCoordinator(e *Executor) *Coordinator {
	return &Coordinator{
		target: reorderTarget{
			entity: EntityWatchlist,
			key:    cache.KeyWatchlist,
			current: func(ctx context.Context) ([]string, error) {
				items, err := e.watchlistItems(ctx)
				if err != nil {
					return nil, err
				}
				symbols := make([]string, len(items))
				for i, item := range items {
					symbols[i] = item.Symbol
				}
				return symbols, nil
			},
			apply: func(value any, ordered []string) any {
				items, ok := value.([]domain.WatchlistItem)
				if !ok {
					return value
				}
				return applyWatchlistOrder(items, ordered)
			},
			persist: func(ctx context.Context, ordered []string) error {
				return e.session.Watchlist().Reorder(ctx, ordered)
			},
			confirm: func(ordered []string) {
				e.events.Emit("engine", &events.WatchlistChangedData{
					Action: "reordered",
					Items:  len(ordered),
				})
			},
		},
		cache: e.cache,
		seq:   e.seq,
		log:   e.log.With().Str("entity", EntityWatchlist).Logger(),
	}
}

// Pending reports whether any submission is still awaiting its adapter
// result. Reads serve the cached order while true, so a refetch cannot
// stomp the provisional state mid-drag.
func (c *Coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending > 0
}

// Move relocates symbol to toIndex in the current order, keeping the
// relative order of everything else, then submits the result. A drop on
// the symbol's current index or an unknown symbol is a no-op.
func (c *Coordinator) Move(ctx context.Context, symbol string, toIndex int) error {
	symbol = domain.NormalizeSymbol(symbol)

	current, err := c.target.current(ctx)
	if err != nil {
		return err
	}

	from := -1
	for i, s := range current {
		if s == symbol {
			from = i
			break
		}
	}
	if from == -1 {
		return nil
	}

	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex > len(current)-1 {
		toIndex = len(current) - 1
	}
	if toIndex == from {
		return nil
	}

	ordered := make([]string, 0, len(current))
	ordered = append(ordered, current[:from]...)
	ordered = append(ordered, current[from+1:]...)
	ordered = append(ordered, "")
	copy(ordered[toIndex+1:], ordered[toIndex:])
	ordered[toIndex] = symbol

	return c.Submit(ctx, ordered)
}

// Submit validates orderedSymbols as a permutation of the current list,
// applies it to the cache, and persists through the adapter. A
// submission superseded before its result arrives is dropped silently;
// the newer submission owns the cache.
func (c *Coordinator) Submit(ctx context.Context, orderedSymbols []string) error {
	err := c.submit(ctx, orderedSymbols)
	if domain.IsStaleReorder(err) {
		c.log.Debug().Err(err).Msg("Dropping superseded reorder result")
		return nil
	}
	return err
}

func (c *Coordinator) submit(ctx context.Context, orderedSymbols []string) error {
	ordered := make([]string, len(orderedSymbols))
	for i, s := range orderedSymbols {
		ordered[i] = domain.NormalizeSymbol(s)
	}

	current, err := c.target.current(ctx)
	if err != nil {
		return err
	}

	if !sameSymbolSet(current, ordered) {
		return domain.NewValidationError("Reorder list does not match the current %s symbols.", c.target.entity)
	}
	if equalOrder(current, ordered) {
		return nil
	}

	// The optimistic write and the sequence take must be one step, so
	// the cache always reflects the submission holding the highest
	// sequence number.
	c.mu.Lock()
	snapshot, hasSnapshot := c.cache.OptimisticWrite(c.target.key, func(value any) any {
		return c.target.apply(value, ordered)
	})
	seq := c.seq.take(c.target.entity)
	c.pending++
	c.mu.Unlock()
	defer c.endPending()

	if err := c.target.persist(ctx, ordered); err != nil {
		if !c.seq.isLatest(c.target.entity, seq) {
			return &domain.StaleReorderError{Entity: c.target.entity, Seq: seq, Latest: c.seq.current(c.target.entity)}
		}
		if hasSnapshot {
			c.cache.Rollback(c.target.key, snapshot)
		}
		return err
	}

	if !c.seq.isLatest(c.target.entity, seq) {
		return &domain.StaleReorderError{Entity: c.target.entity, Seq: seq, Latest: c.seq.current(c.target.entity)}
	}

	c.target.confirm(ordered)
	return nil
}

func (c *Coordinator) endPending() {
	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
}

// applyHoldingOrder rebuilds holdings in the listed order with dense
// positions. Callers validate that ordered is a permutation of the
// current symbols first.
func applyHoldingOrder(holdings []domain.Holding, ordered []string) []domain.Holding {
	bySymbol := make(map[string]domain.Holding, len(holdings))
	for _, h := range holdings {
		bySymbol[h.Symbol] = h
	}

	out := make([]domain.Holding, 0, len(holdings))
	for _, symbol := range ordered {
		h, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		h.Position = len(out)
		out = append(out, h)
	}
	return out
}

// applyWatchlistOrder rebuilds watchlist items in the listed order with
// dense positions.
func applyWatchlistOrder(items []domain.WatchlistItem, ordered []string) []domain.WatchlistItem {
	bySymbol := make(map[string]domain.WatchlistItem, len(items))
	for _, item := range items {
		bySymbol[item.Symbol] = item
	}

	out := make([]domain.WatchlistItem, 0, len(items))
	for _, symbol := range ordered {
		item, ok := bySymbol[symbol]
		if !ok {
			continue
		}
		item.Position = len(out)
		out = append(out, item)
	}
	return out
}

// sameSymbolSet reports whether a and b contain exactly the same
// symbols, in any order.
func sameSymbolSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, s := range a {
		counts[s]++
	}
	for _, s := range b {
		counts[s]--
		if counts[s] < 0 {
			return false
		}
	}
	return true
}

func equalOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
