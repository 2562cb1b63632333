package trackerapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/foliosync/foliosync/internal/domain"
)

// WatchlistAPI exposes the backend's watchlist endpoints as a domain.WatchlistStore
type WatchlistAPI struct {
	c *Client
}

var _ domain.WatchlistStore = (*WatchlistAPI)(nil)

type watchlistItemPayload struct {
	Symbol string `json:"symbol"`
}

// List fetches the watchlist. The backend returns entries in display order
// without explicit positions, so positions are assigned from array order.
func (w *WatchlistAPI) List(ctx context.Context) ([]domain.WatchlistItem, error) {
	var payload []watchlistItemPayload
	if err := w.c.do(ctx, http.MethodGet, "/api/watchlist", nil, nil, &payload); err != nil {
		return nil, err
	}

	items := make([]domain.WatchlistItem, len(payload))
	for i, item := range payload {
		items[i] = domain.WatchlistItem{Symbol: item.Symbol, Position: i}
	}
	return items, nil
}

// Add appends a symbol to the watchlist. The backend treats a duplicate add
// as a no-op with a 200 message; the engine pre-checks the current list to
// produce the typed conflict.
func (w *WatchlistAPI) Add(ctx context.Context, symbol string) error {
	path := "/api/watchlist/add/" + url.PathEscape(domain.NormalizeSymbol(symbol))
	return w.c.do(ctx, http.MethodPost, path, nil, nil, nil)
}

// Remove deletes a symbol from the watchlist
func (w *WatchlistAPI) Remove(ctx context.Context, symbol string) error {
	path := "/api/watchlist/remove/" + url.PathEscape(domain.NormalizeSymbol(symbol))
	return w.c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

type watchlistReorderRequest struct {
	Symbols []string `json:"symbols"`
}

// Reorder persists a new total order for the watchlist
func (w *WatchlistAPI) Reorder(ctx context.Context, symbols []string) error {
	return w.c.do(ctx, http.MethodPost, "/api/watchlist/reorder", nil, watchlistReorderRequest{Symbols: symbols}, nil)
}
