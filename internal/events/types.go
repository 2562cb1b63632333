// Package events provides the in-process event bus that fans state changes
// out to the UI stream and other subscribers.
package events

// EventType represents different event types
type EventType string

const (
	// Mutation confirmations
	PortfolioChanged EventType = "portfolio_changed"
	WatchlistChanged EventType = "watchlist_changed"

	// Background refresh
	QuotesRefreshed EventType = "quotes_refreshed"

	// Identity transitions (guest <-> authenticated)
	SessionChanged EventType = "session_changed"

	ErrorOccurred EventType = "error_occurred"
)
