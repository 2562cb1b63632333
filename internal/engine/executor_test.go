package engine_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/engine"
	"github.com/foliosync/foliosync/internal/events"
	testingpkg "github.com/foliosync/foliosync/internal/testing"
)

// testEngine wires an executor over mock adapters, bound in guest mode.
type testEngine struct {
	executor        *engine.Executor
	session         *engine.Session
	cache           *cache.Store
	bus             *events.Bus
	portfolio       *testingpkg.MockPortfolioStore
	watchlist       *testingpkg.MockWatchlistStore
	remotePortfolio *testingpkg.MockPortfolioStore
	remoteWatchlist *testingpkg.MockWatchlistStore
	market          *testingpkg.MockMarketData
	tokens          *testingpkg.MockTokenStore
	identities      *testingpkg.MockIdentityStore
}

// newTestEngine builds the fixture. Tests that need to intercept guest
// portfolio calls pass wrap to decorate the store before binding.
func newTestEngine(t *testing.T, wrap func(domain.PortfolioStore) domain.PortfolioStore) *testEngine {
	t.Helper()

	te := &testEngine{
		portfolio:       testingpkg.NewMockPortfolioStore(),
		watchlist:       testingpkg.NewMockWatchlistStore(),
		remotePortfolio: testingpkg.NewMockPortfolioStore(),
		remoteWatchlist: testingpkg.NewMockWatchlistStore(),
		market:          testingpkg.NewMockMarketData(),
		tokens:          testingpkg.NewMockTokenStore(),
		identities:      testingpkg.NewMockIdentityStore("guest-test"),
	}

	var guestPortfolio domain.PortfolioStore = te.portfolio
	if wrap != nil {
		guestPortfolio = wrap(te.portfolio)
	}

	te.cache = cache.New("", zerolog.Nop())
	te.bus = events.NewBus(zerolog.Nop())
	manager := events.NewManager(te.bus, zerolog.Nop())

	te.session = engine.NewSession(engine.SessionConfig{
		Guest:      engine.Adapters{Portfolio: guestPortfolio, Watchlist: te.watchlist},
		Remote:     engine.Adapters{Portfolio: te.remotePortfolio, Watchlist: te.remoteWatchlist},
		Tokens:     te.tokens,
		Identities: te.identities,
		Cache:      te.cache,
		Events:     manager,
		Log:        zerolog.Nop(),
	})
	require.NoError(t, te.session.BeginGuest())

	te.executor = engine.NewExecutor(te.session, te.cache, te.market, manager, zerolog.Nop())
	return te
}

// subscribe collects events of one type on a buffered channel.
func subscribe(bus *events.Bus, eventType events.EventType) chan *events.Event {
	ch := make(chan *events.Event, 16)
	bus.Subscribe(eventType, func(event *events.Event) {
		select {
		case ch <- event:
		default:
		}
	})
	return ch
}

func TestAddHoldingAppendsAtEnd(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	holding, err := te.executor.AddHolding(ctx, domain.HoldingInput{Symbol: "AAPL", Shares: 10, AverageCost: 150.0})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", holding.Symbol)
	assert.Equal(t, 10.0, holding.Shares)
	assert.Equal(t, 150.0, holding.AverageCost)
	assert.Equal(t, 0, holding.Position)
	assert.Equal(t, domain.AssetStock, holding.Type)
}

func TestAddHoldingNormalizesSymbol(t *testing.T) {
	te := newTestEngine(t, nil)

	holding, err := te.executor.AddHolding(context.Background(), domain.HoldingInput{Symbol: " aapl ", Shares: 1, AverageCost: 0})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", holding.Symbol)
}

func TestAddHoldingValidationSkipsAdapter(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []domain.HoldingInput{
		{Symbol: "", Shares: 10, AverageCost: 150},
		{Symbol: "AAPL", Shares: 0, AverageCost: 150},
		{Symbol: "AAPL", Shares: -5, AverageCost: 150},
		{Symbol: "AAPL", Shares: 10, AverageCost: -1},
		{Symbol: "AAPL", Shares: 10, AverageCost: 150, Type: "bond"},
	}
	for _, input := range tests {
		_, err := te.executor.AddHolding(ctx, input)
		assert.True(t, domain.IsValidation(err), "input %+v should fail validation", input)
	}

	assert.Empty(t, te.portfolio.Holdings(), "no adapter call on validation failure")
}

func TestAddHoldingDuplicateConflict(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings([]domain.Holding{{Symbol: "AAPL", Shares: 1, Position: 0}})

	_, err := te.executor.AddHolding(context.Background(), domain.HoldingInput{Symbol: "AAPL", Shares: 2, AverageCost: 100})
	assert.True(t, domain.IsConflict(err))
}

func TestUpdateHolding(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings([]domain.Holding{{Symbol: "AAPL", Shares: 10, AverageCost: 150, Position: 0}})

	holding, err := te.executor.UpdateHolding(context.Background(), "aapl", 12, 155)
	require.NoError(t, err)
	assert.Equal(t, 12.0, holding.Shares)
	assert.Equal(t, 155.0, holding.AverageCost)
	assert.Equal(t, 0, holding.Position, "position survives an update")
}

func TestUpdateMissingHoldingNotFound(t *testing.T) {
	te := newTestEngine(t, nil)

	_, err := te.executor.UpdateHolding(context.Background(), "AAPL", 1, 1)
	assert.True(t, domain.IsNotFound(err))
}

func TestRemoveHoldingCompactsPositions(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings([]domain.Holding{
		{Symbol: "AAPL", Shares: 10, AverageCost: 150, Position: 0},
		{Symbol: "MSFT", Shares: 5, AverageCost: 300, Position: 1},
	})

	require.NoError(t, te.executor.RemoveHolding(context.Background(), "AAPL"))

	holdings := te.portfolio.Holdings()
	require.Len(t, holdings, 1)
	assert.Equal(t, "MSFT", holdings[0].Symbol)
	assert.Equal(t, 0, holdings[0].Position, "remaining positions compact to a dense sequence")
}

func TestReplacePortfolio(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(testingpkg.NewHoldingFixtures())

	err := te.executor.ReplacePortfolio(context.Background(), []domain.HoldingInput{
		{Symbol: "NVDA", Shares: 3, AverageCost: 90},
		{Symbol: "AMZN", Shares: 2, AverageCost: 120},
	})
	require.NoError(t, err)

	holdings := te.portfolio.Holdings()
	require.Len(t, holdings, 2)
	assert.Equal(t, "NVDA", holdings[0].Symbol)
	assert.Equal(t, 0, holdings[0].Position)
	assert.Equal(t, "AMZN", holdings[1].Symbol)
	assert.Equal(t, 1, holdings[1].Position)
}

func TestReplacePortfolioValidation(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	err := te.executor.ReplacePortfolio(ctx, nil)
	assert.True(t, domain.IsValidation(err), "empty upload is rejected")

	err = te.executor.ReplacePortfolio(ctx, []domain.HoldingInput{
		{Symbol: "AAPL", Shares: 1, AverageCost: 1},
		{Symbol: "aapl", Shares: 2, AverageCost: 2},
	})
	assert.True(t, domain.IsValidation(err), "duplicate symbols are rejected after normalization")
}

func TestWatchlistAddDuplicateConflict(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA")

	err := te.executor.AddToWatchlist(context.Background(), "nvda")
	assert.True(t, domain.IsConflict(err))
	assert.Len(t, te.watchlist.Items(), 1, "no adapter call on the duplicate")
}

func TestWatchlistRemoveMissingNotFound(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA")

	err := te.executor.RemoveFromWatchlist(context.Background(), "TSLA")
	assert.True(t, domain.IsNotFound(err))
}

func TestWatchlistAddAppendsAtEnd(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA")

	require.NoError(t, te.executor.AddToWatchlist(context.Background(), "amzn"))

	items := te.watchlist.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "AMZN", items[1].Symbol)
	assert.Equal(t, 1, items[1].Position)
}

func TestWatchlistReadThroughCache(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA", "AMZN")
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	_, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)
	_, err = te.executor.Watchlist(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, te.watchlist.ListCalls(), "second read is served from cache")
}

func TestPortfolioAlwaysRefetches(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetHoldings(testingpkg.NewHoldingFixtures())
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	_, err := te.executor.Portfolio(ctx)
	require.NoError(t, err)
	_, err = te.executor.Portfolio(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, te.portfolio.ListCalls(), "portfolio reads never trust the cache while idle")
}

func TestMutationInvalidatesWatchlistCache(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA")
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	_, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, te.watchlist.ListCalls())

	require.NoError(t, te.executor.AddToWatchlist(ctx, "AMZN"))

	views, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "AMZN", views[1].Symbol)
	assert.Greater(t, te.watchlist.ListCalls(), 1, "confirmed mutation invalidates the cached list")
}

func TestWatchlistStaleFallbackOnFetchFailure(t *testing.T) {
	te := newTestEngine(t, nil)
	te.watchlist.SetSymbols("NVDA")
	for symbol, quote := range testingpkg.NewQuoteFixtures() {
		te.market.SetQuote(symbol, quote)
	}
	ctx := context.Background()

	_, err := te.executor.Watchlist(ctx)
	require.NoError(t, err)

	// Force the cached entry stale, then break the adapter.
	te.cache.Invalidate(cache.KeyWatchlist)
	te.watchlist.SetError(domain.NewTransportError(0, "backend unreachable", nil))

	views, err := te.executor.Watchlist(ctx)
	require.NoError(t, err, "stale data beats an error")
	require.Len(t, views, 1)
	assert.Equal(t, "NVDA", views[0].Symbol)
}

func TestPortfolioFetchFailureWithoutCache(t *testing.T) {
	te := newTestEngine(t, nil)
	te.portfolio.SetError(domain.NewTransportError(0, "backend unreachable", nil))

	_, err := te.executor.Portfolio(context.Background())
	assert.True(t, domain.IsTransport(err))
}

func TestMutationEventsCarryAction(t *testing.T) {
	te := newTestEngine(t, nil)
	ch := subscribe(te.bus, events.PortfolioChanged)

	_, err := te.executor.AddHolding(context.Background(), domain.HoldingInput{Symbol: "AAPL", Shares: 10, AverageCost: 150})
	require.NoError(t, err)

	require.Len(t, ch, 1)
	event := <-ch
	data, ok := event.Data.(*events.PortfolioChangedData)
	require.True(t, ok)
	assert.Equal(t, "added", data.Action)
	assert.Equal(t, "AAPL", data.Symbol)
	assert.Equal(t, 1, data.Holdings)
}

func TestQuoteReadThroughCache(t *testing.T) {
	te := newTestEngine(t, nil)
	te.market.SetQuote("AAPL", &domain.Quote{Symbol: "AAPL", Price: 175})
	ctx := context.Background()

	first, err := te.executor.Quote(ctx, "AAPL")
	require.NoError(t, err)
	second, err := te.executor.Quote(ctx, "aapl ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, te.market.QuoteCalls("AAPL"), "second lookup is a cache hit")
}

func TestQuoteStaleFallback(t *testing.T) {
	te := newTestEngine(t, nil)
	te.market.SetQuote("AAPL", &domain.Quote{Symbol: "AAPL", Price: 175})
	ctx := context.Background()

	_, err := te.executor.Quote(ctx, "AAPL")
	require.NoError(t, err)

	te.cache.Invalidate(cache.QuoteKey("AAPL"))
	te.market.SetError(domain.NewTransportError(0, "backend unreachable", nil))

	quote, err := te.executor.Quote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 175.0, quote.Price)
}

func TestSearchValidatesQuery(t *testing.T) {
	te := newTestEngine(t, nil)

	_, err := te.executor.Search(context.Background(), "   ")
	assert.True(t, domain.IsValidation(err))
}

// A mutation sequence routed through the executor leaves the portfolio
// identical to replaying the same sequence directly against an adapter.
func TestMutationSequenceMatchesAdapterReplay(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()
	replay := testingpkg.NewMockPortfolioStore()

	adds := []domain.HoldingInput{
		{Symbol: "AAPL", Shares: 10, AverageCost: 150},
		{Symbol: "MSFT", Shares: 5, AverageCost: 300},
		{Symbol: "NVDA", Shares: 2, AverageCost: 700},
	}
	for _, input := range adds {
		_, err := te.executor.AddHolding(ctx, input)
		require.NoError(t, err)
		_, err = replay.Add(ctx, input)
		require.NoError(t, err)
	}

	_, err := te.executor.UpdateHolding(ctx, "MSFT", 8, 310)
	require.NoError(t, err)
	_, err = replay.Update(ctx, "MSFT", 8, 310)
	require.NoError(t, err)

	require.NoError(t, te.executor.RemoveHolding(ctx, "AAPL"))
	require.NoError(t, replay.Remove(ctx, "AAPL"))

	_, err = te.executor.AddHolding(ctx, domain.HoldingInput{Symbol: "VWCE", Shares: 3, AverageCost: 110})
	require.NoError(t, err)
	_, err = replay.Add(ctx, domain.HoldingInput{Symbol: "VWCE", Shares: 3, AverageCost: 110})
	require.NoError(t, err)

	view, err := te.executor.Portfolio(ctx)
	require.NoError(t, err)

	expected := replay.Holdings()
	require.Len(t, view.Holdings, len(expected))
	for i, want := range expected {
		got := view.Holdings[i].Holding
		assert.Equal(t, want.Symbol, got.Symbol)
		assert.Equal(t, want.Shares, got.Shares)
		assert.Equal(t, want.AverageCost, got.AverageCost)
		assert.Equal(t, want.Position, got.Position)
	}
}
