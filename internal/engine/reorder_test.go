package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/events"
	testingpkg "github.com/foliosync/foliosync/internal/testing"
)

// gatedPortfolioStore holds selected Reorder calls open so a later
// submission can overtake an earlier one.
type gatedPortfolioStore struct {
	domain.PortfolioStore
	mu      sync.Mutex
	calls   int
	gated   int           // calls 1..gated wait on release
	entered chan []string // receives each gated call's order on entry
	release chan struct{}
}

func newGatedPortfolioStore(inner domain.PortfolioStore, gated int) *gatedPortfolioStore {
	return &gatedPortfolioStore{
		PortfolioStore: inner,
		gated:          gated,
		entered:        make(chan []string, gated),
		release:        make(chan struct{}),
	}
}

func (s *gatedPortfolioStore) Reorder(ctx context.Context, orderedSymbols []string) error {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if call <= s.gated {
		s.entered <- orderedSymbols
		<-s.release
	}
	return s.PortfolioStore.Reorder(ctx, orderedSymbols)
}

func threeHoldings() []domain.Holding {
	return []domain.Holding{
		{Symbol: "AAPL", Shares: 10, AverageCost: 150, Position: 0},
		{Symbol: "MSFT", Shares: 5, AverageCost: 300, Position: 1},
		{Symbol: "NVDA", Shares: 2, AverageCost: 90, Position: 2},
	}
}

func portfolioOrder(holdings []domain.Holding) []string {
	symbols := make([]string, len(holdings))
	for i, h := range holdings {
		symbols[i] = h.Symbol
	}
	return symbols
}

func TestReorderPortfolioPersistsAndReindexes(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())
	ch := subscribe(te.bus, events.PortfolioChanged)

	err := te.executor.ReorderPortfolio(context.Background(), []string{"nvda", "AAPL", "msft"})
	require.NoError(t, err)

	holdings := te.portfolio.Holdings()
	require.Equal(t, []string{"NVDA", "AAPL", "MSFT"}, portfolioOrder(holdings))
	for i, h := range holdings {
		assert.Equal(t, i, h.Position)
	}

	require.Len(t, ch, 1)
	data := (<-ch).Data.(*events.PortfolioChangedData)
	assert.Equal(t, "reordered", data.Action)
}

func TestReorderValidatesPermutation(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())
	ctx := context.Background()

	tests := [][]string{
		{"AAPL", "MSFT"},                 // missing a symbol
		{"AAPL", "MSFT", "NVDA", "TSLA"}, // extra symbol
		{"AAPL", "MSFT", "TSLA"},         // substituted symbol
		{"AAPL", "AAPL", "MSFT"},         // duplicated symbol
	}
	for _, ordered := range tests {
		err := te.executor.ReorderPortfolio(ctx, ordered)
		assert.True(t, domain.IsValidation(err), "order %v must be rejected", ordered)
	}

	assert.Equal(t, 0, te.portfolio.ReorderCalls(), "invalid orders never reach the adapter")
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, portfolioOrder(te.portfolio.Holdings()))
}

func TestReorderIdenticalOrderIsNoOp(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())

	err := te.executor.ReorderPortfolio(context.Background(), []string{"AAPL", "MSFT", "NVDA"})
	require.NoError(t, err)
	assert.Equal(t, 0, te.portfolio.ReorderCalls(), "identical order skips the adapter")
}

func TestReorderWatchlist(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("AAPL", "MSFT")

	err := te.executor.ReorderWatchlist(context.Background(), []string{"MSFT", "AAPL"})
	require.NoError(t, err)

	items := te.watchlist.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "MSFT", items[0].Symbol)
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, "AAPL", items[1].Symbol)
	assert.Equal(t, 1, items[1].Position)
}

func TestMoveHolding(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())

	err := te.executor.MoveHolding(context.Background(), "AAPL", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "NVDA", "AAPL"}, portfolioOrder(te.portfolio.Holdings()))
}

func TestMoveHoldingNoOps(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())
	ctx := context.Background()

	require.NoError(t, te.executor.MoveHolding(ctx, "AAPL", 0), "drop on the current index")
	require.NoError(t, te.executor.MoveHolding(ctx, "TSLA", 1), "unknown symbol")
	assert.Equal(t, 0, te.portfolio.ReorderCalls())
}

func TestMoveHoldingClampsIndex(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())

	require.NoError(t, te.executor.MoveHolding(context.Background(), "AAPL", 99))
	assert.Equal(t, []string{"MSFT", "NVDA", "AAPL"}, portfolioOrder(te.portfolio.Holdings()))
}

func TestReorderRollbackRestoresExactOrder(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(threeHoldings())
	te.portfolio.SetReorderError(domain.NewTransportError(502, "bad gateway", nil))

	err := te.executor.MoveHolding(context.Background(), "AAPL", 2)
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err), "adapter failure surfaces to the caller")

	// The optimistic write is rolled back, so the cached order matches
	// the pre-drag state exactly.
	entry, ok := te.cache.Read(cache.KeyPortfolio)
	require.True(t, ok)
	cached, valid := entry.Value.([]domain.Holding)
	require.True(t, valid)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, portfolioOrder(cached))

	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, portfolioOrder(te.portfolio.Holdings()))
}

func TestWatchlistReorderRollbackServesOldOrderFromCache(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA", "AMZN", "META")
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	// Prime the cache so it stays fresh for the read after the failure.
	_, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)

	te.watchlist.SetReorderError(errors.New("write failed"))
	err = te.executor.ReorderWatchlist(ctx, []string{"META", "NVDA", "AMZN"})
	require.Error(t, err)

	views, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "NVDA", views[0].Symbol)
	assert.Equal(t, "AMZN", views[1].Symbol)
	assert.Equal(t, "META", views[2].Symbol)
	assert.Equal(t, 1, te.watchlist.ListCalls(), "the rolled-back order comes from cache, not a refetch")
}

func TestReorderSupersededSubmissionLosesToNewer(t *testing.T) {
	var gated *gatedPortfolioStore
	te := newTestEngine(t, func(inner domain.PortfolioStore) domain.PortfolioStore {
		gated = newGatedPortfolioStore(inner, 1)
		return gated
	})
	te.portfolio.SetHoldings(threeHoldings())
	ch := subscribe(te.bus, events.PortfolioChanged)
	ctx := context.Background()

	// First submission enters the adapter and parks there.
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- te.executor.ReorderPortfolio(ctx, []string{"MSFT", "AAPL", "NVDA"})
	}()

	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first reorder never reached the adapter")
	}

	// Second submission overtakes it and confirms.
	secondOrder := []string{"NVDA", "MSFT", "AAPL"}
	require.NoError(t, te.executor.ReorderPortfolio(ctx, secondOrder))

	// Release the first; its late result must be swallowed.
	close(gated.release)
	select {
	case err := <-firstDone:
		require.NoError(t, err, "a superseded submission reports success")
	case <-time.After(2 * time.Second):
		t.Fatal("first reorder never returned")
	}

	entry, ok := te.cache.Read(cache.KeyPortfolio)
	require.True(t, ok)
	cached, valid := entry.Value.([]domain.Holding)
	require.True(t, valid)
	assert.Equal(t, secondOrder, portfolioOrder(cached), "the newest submission owns the cache")

	require.Len(t, ch, 1, "only the winning submission announces a change")
	data := (<-ch).Data.(*events.PortfolioChangedData)
	assert.Equal(t, "reordered", data.Action)
}

func TestReorderPendingGateServesOptimisticOrder(t *testing.T) {
	var gated *gatedPortfolioStore
	te := newTestEngine(t, func(inner domain.PortfolioStore) domain.PortfolioStore {
		gated = newGatedPortfolioStore(inner, 1)
		return gated
	})
	te.portfolio.SetHoldings(threeHoldings())
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- te.executor.MoveHolding(ctx, "AAPL", 2)
	}()

	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("reorder never reached the adapter")
	}

	listCallsBefore := te.portfolio.ListCalls()

	// A read mid-flight serves the optimistic order from cache even
	// though portfolio entries are never fresh while idle.
	view, err := te.executor.Portfolio(ctx)
	require.NoError(t, err)

	got := make([]string, len(view.Holdings))
	for i, h := range view.Holdings {
		got[i] = h.Symbol
	}
	assert.Equal(t, []string{"MSFT", "NVDA", "AAPL"}, got)
	assert.Equal(t, listCallsBefore, te.portfolio.ListCalls(), "no refetch while the reorder is in flight")

	close(gated.release)
	require.NoError(t, <-done)
}
