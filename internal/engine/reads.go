package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/foliosync/foliosync/internal/cache"
	"github.com/foliosync/foliosync/internal/domain"
)

// portfolioHoldings returns the raw holdings list through the cache.
// The cached value is served while fresh or while an optimistic reorder
// is in flight, so a refetch never stomps provisional order. On a fetch
// failure a stale entry is served as fallback.
func (e *Executor) portfolioHoldings(ctx context.Context) ([]domain.Holding, error) {
	entry, ok := e.cache.Read(cache.KeyPortfolio)
	if ok {
		if holdings, valid := entry.Value.([]domain.Holding); valid {
			if entry.Fresh(time.Now()) || e.portfolioReorder.Pending() {
				return holdings, nil
			}
		}
	}

	identity := e.cache.Identity()
	holdings, err := e.session.Portfolio().List(ctx)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.([]domain.Holding); valid {
				e.log.Warn().Err(err).Msg("Serving stale portfolio after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, cache.KeyPortfolio, holdings, cache.TTLPortfolio)
	return holdings, nil
}

// watchlistItems returns the raw watchlist through the cache, with the
// same pending-reorder gate and stale fallback as portfolioHoldings.
func (e *Executor) watchlistItems(ctx context.Context) ([]domain.WatchlistItem, error) {
	entry, ok := e.cache.Read(cache.KeyWatchlist)
	if ok {
		if items, valid := entry.Value.([]domain.WatchlistItem); valid {
			if entry.Fresh(time.Now()) || e.watchlistReorder.Pending() {
				return items, nil
			}
		}
	}

	identity := e.cache.Identity()
	items, err := e.session.Watchlist().List(ctx)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.([]domain.WatchlistItem); valid {
				e.log.Warn().Err(err).Msg("Serving stale watchlist after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, cache.KeyWatchlist, items, cache.TTLWatchlist)
	return items, nil
}

// Quote returns a single-symbol quote through the cache.
func (e *Executor) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.NewValidationError("Symbol is required.")
	}

	key := cache.QuoteKey(symbol)
	entry, ok := e.cache.Read(key)
	if ok && entry.Fresh(time.Now()) {
		if quote, valid := entry.Value.(*domain.Quote); valid {
			return quote, nil
		}
	}

	identity := e.cache.Identity()
	quote, err := e.market.Quote(ctx, symbol)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.(*domain.Quote); valid {
				e.log.Debug().Err(err).Str("symbol", symbol).Msg("Serving stale quote after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, key, quote, cache.TTLQuote)
	return quote, nil
}

// History returns a historical price series through the cache. Period
// clamping happens in the market client, so the cache key carries the
// requested parameters, not the clamped ones.
func (e *Executor) History(ctx context.Context, symbol, period, interval string, withSMA bool) (*domain.HistoryResponse, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.NewValidationError("Symbol is required.")
	}

	key := cache.HistoryKey(symbol, period, interval, withSMA)
	entry, ok := e.cache.Read(key)
	if ok && entry.Fresh(time.Now()) {
		if history, valid := entry.Value.(*domain.HistoryResponse); valid {
			return history, nil
		}
	}

	identity := e.cache.Identity()
	history, err := e.market.History(ctx, symbol, period, interval, withSMA)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.(*domain.HistoryResponse); valid {
				e.log.Debug().Err(err).Str("symbol", symbol).Msg("Serving stale history after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, key, history, cache.TTLHistory)
	return history, nil
}

// News returns recent headlines for a symbol through the cache.
func (e *Executor) News(ctx context.Context, symbol string) ([]domain.NewsArticle, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, domain.NewValidationError("Symbol is required.")
	}

	key := cache.NewsKey(symbol)
	entry, ok := e.cache.Read(key)
	if ok && entry.Fresh(time.Now()) {
		if articles, valid := entry.Value.([]domain.NewsArticle); valid {
			return articles, nil
		}
	}

	identity := e.cache.Identity()
	articles, err := e.market.News(ctx, symbol)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.([]domain.NewsArticle); valid {
				e.log.Debug().Err(err).Str("symbol", symbol).Msg("Serving stale news after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, key, articles, cache.TTLNews)
	return articles, nil
}

// Search resolves a symbol search through the cache. Results pass
// through verbatim from the backend.
func (e *Executor) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("Search query is required.")
	}

	key := cache.SearchKey(query)
	entry, ok := e.cache.Read(key)
	if ok && entry.Fresh(time.Now()) {
		if results, valid := entry.Value.(json.RawMessage); valid {
			return results, nil
		}
	}

	identity := e.cache.Identity()
	results, err := e.market.Search(ctx, query)
	if err != nil {
		if ok {
			if stale, valid := entry.Value.(json.RawMessage); valid {
				e.log.Debug().Err(err).Str("query", query).Msg("Serving stale search results after fetch failure")
				return stale, nil
			}
		}
		return nil, err
	}

	e.cache.ScopedWrite(identity, key, results, cache.TTLSearch)
	return results, nil
}
