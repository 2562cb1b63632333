package cache

import "time"

// TTL constants per entity class. These become an entry's StaleAfter when
// the engine writes a fetched result.
const (
	// Portfolio is always stale on mount so navigation never shows a
	// stale aggregate; reads serve the cached value only while a refetch
	// or an in-flight optimistic reorder covers it.
	TTLPortfolio = 0 * time.Second

	// Near-real-time data, short TTL to bound request volume
	TTLWatchlist = 30 * time.Second // watched symbols with quotes
	TTLQuote     = 30 * time.Second // single-symbol quote

	// Slow-moving data
	TTLHistory = 5 * time.Minute  // historical price series
	TTLNews    = 5 * time.Minute  // headlines per symbol
	TTLSearch  = 10 * time.Minute // symbol search results
)

// Well-known keys and key constructors. Quote/history/news/search keys
// share a class prefix so invalidation and snapshot filtering can select
// whole classes.
const (
	KeyPortfolio = "portfolio"
	KeyWatchlist = "watchlist"

	PrefixQuote   = "quote:"
	PrefixHistory = "history:"
	PrefixNews    = "news:"
	PrefixSearch  = "search:"
)

// QuoteKey returns the cache key for a single-symbol quote.
func QuoteKey(symbol string) string {
	return PrefixQuote + symbol
}

// HistoryKey returns the cache key for a price series request. Period,
// interval and the SMA flag are part of the key so requests for the same
// symbol with different parameters do not collide.
func HistoryKey(symbol, period, interval string, withSMA bool) string {
	key := PrefixHistory + symbol + ":" + period + ":" + interval
	if withSMA {
		key += ":sma"
	}
	return key
}

// NewsKey returns the cache key for a symbol's headlines.
func NewsKey(symbol string) string {
	return PrefixNews + symbol
}

// SearchKey returns the cache key for a search query.
func SearchKey(query string) string {
	return PrefixSearch + query
}
