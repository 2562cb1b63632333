package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/engine"
	"github.com/foliosync/foliosync/internal/events"
)

// quoteRefreshTimeout bounds one refresh run. The client is rate limited,
// so a large combined portfolio and watchlist takes several seconds.
const quoteRefreshTimeout = 2 * time.Minute

// QuoteRefreshJob keeps quotes for every held and watched symbol warm so
// portfolio reads rarely block on the market data provider. Refreshed
// quotes are written under the identity active when the run started;
// a session switch mid-run discards the remainder at write time.
type QuoteRefreshJob struct {
	session *engine.Session
	market  engine.MarketData
	store   *cache.Store
	events  *events.Manager
	log     zerolog.Logger
}

// NewQuoteRefreshJob creates a new quote refresh job.
func NewQuoteRefreshJob(session *engine.Session, market engine.MarketData, store *cache.Store, manager *events.Manager, log zerolog.Logger) *QuoteRefreshJob {
	return &QuoteRefreshJob{
		session: session,
		market:  market,
		store:   store,
		events:  manager,
		log:     log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *QuoteRefreshJob) Name() string {
	return "quote_refresh"
}

// Run refreshes quotes for all held and watched symbols and announces the
// result on the event bus.
func (j *QuoteRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), quoteRefreshTimeout)
	defer cancel()

	identity := j.store.Identity()
	symbols, err := j.collectSymbols(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		j.log.Debug().Msg("No symbols to refresh")
		return nil
	}

	start := time.Now()
	refreshed := make([]string, 0, len(symbols))
	failed := 0
	for _, symbol := range symbols {
		quote, err := j.market.Quote(ctx, symbol)
		if err != nil {
			j.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote refresh failed")
			failed++
			continue
		}
		j.store.ScopedWrite(identity, cache.QuoteKey(symbol), quote, cache.TTLQuote)
		refreshed = append(refreshed, symbol)
	}

	j.events.Emit("scheduler", &events.QuotesRefreshedData{
		Symbols: refreshed,
		Failed:  failed,
	})

	j.log.Info().
		Int("refreshed", len(refreshed)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Quote refresh completed")

	return nil
}

// collectSymbols gathers the distinct symbols of current holdings and
// watchlist items. Cash pseudo-holdings have no quote and are skipped.
func (j *QuoteRefreshJob) collectSymbols(ctx context.Context) ([]string, error) {
	holdings, err := j.session.Portfolio().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	items, err := j.session.Watchlist().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}

	seen := make(map[string]bool, len(holdings)+len(items))
	symbols := make([]string, 0, len(holdings)+len(items))
	for _, h := range holdings {
		if h.Type == domain.AssetCash || seen[h.Symbol] {
			continue
		}
		seen[h.Symbol] = true
		symbols = append(symbols, h.Symbol)
	}
	for _, item := range items {
		if seen[item.Symbol] {
			continue
		}
		seen[item.Symbol] = true
		symbols = append(symbols, item.Symbol)
	}
	return symbols, nil
}
