package trackerapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliosync/foliosync/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, zerolog.Nop(), WithRateLimit(100))
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(portfolioResponse{})
	})

	client.Tokens().Set("secret-token")
	_, err := client.Portfolio().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)

	client.Tokens().Clear()
	_, err = client.Portfolio().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		message string
	}{
		{
			name:    "404 maps to not found",
			status:  http.StatusNotFound,
			body:    `{"detail": "Holding not found"}`,
			check:   domain.IsNotFound,
			message: "Holding not found",
		},
		{
			name:    "400 duplicate maps to conflict",
			status:  http.StatusBadRequest,
			body:    `{"detail": "Holding already exists. Use PUT to update."}`,
			check:   domain.IsConflict,
			message: "Holding already exists. Use PUT to update.",
		},
		{
			name:    "409 duplicate maps to conflict",
			status:  http.StatusConflict,
			body:    `{"detail": "Duplicate symbols found in upload data."}`,
			check:   domain.IsConflict,
			message: "Duplicate symbols found in upload data.",
		},
		{
			name:    "400 without duplicate detail maps to transport",
			status:  http.StatusBadRequest,
			body:    `{"detail": "No valid holdings data received."}`,
			check:   domain.IsTransport,
			message: "No valid holdings data received.",
		},
		{
			name:    "500 maps to transport",
			status:  http.StatusInternalServerError,
			body:    `{"detail": "Database error adding holding."}`,
			check:   domain.IsTransport,
			message: "Database error adding holding.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.Portfolio().Add(context.Background(), domain.HoldingInput{Symbol: "AAPL", Shares: 1, AverageCost: 1})
			require.Error(t, err)
			assert.True(t, tt.check(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestErrorWithoutDetailSynthesizesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>gateway error</html>"))
	})

	_, err := client.Portfolio().List(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.Contains(t, err.Error(), "status 503")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestTransportErrorWhenUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", zerolog.Nop(), WithRateLimit(100))

	_, err := client.Portfolio().List(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
}

func TestPortfolioList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/portfolio", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"holdings": [
				{"symbol": "AAPL", "shares": 10, "averageCost": 150, "name": "Apple Inc.", "currentPrice": 180.5, "type": "stock"},
				{"symbol": "VOO", "shares": 2, "averageCost": 400, "name": "Vanguard S&P 500", "currentPrice": 470.1, "type": "etf"}
			],
			"summary": {"totalValue": 2745.2, "totalGain": 385.2, "totalGainPercent": 16.3, "dayChange": 12.4, "dayChangePercent": 0.45}
		}`))
	})

	holdings, err := client.Portfolio().List(context.Background())
	require.NoError(t, err)
	require.Len(t, holdings, 2)

	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, 10.0, holdings[0].Shares)
	assert.Equal(t, 150.0, holdings[0].AverageCost)
	assert.Equal(t, 0, holdings[0].Position)
	assert.Equal(t, domain.AssetStock, holdings[0].Type)

	assert.Equal(t, "VOO", holdings[1].Symbol)
	assert.Equal(t, 1, holdings[1].Position)
	assert.Equal(t, domain.AssetETF, holdings[1].Type)
}

func TestPortfolioAdd(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/portfolio", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req holdingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AAPL", req.Symbol, "symbol is normalized before sending")
		assert.Equal(t, 10.0, req.Shares)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol": "AAPL", "shares": 10, "averageCost": 150, "position": 3}`))
	})

	holding, err := client.Portfolio().Add(context.Background(), domain.HoldingInput{Symbol: " aapl ", Shares: 10, AverageCost: 150})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", holding.Symbol)
	assert.Equal(t, 3, holding.Position)
	assert.Equal(t, domain.AssetStock, holding.Type)
}

func TestPortfolioUpdate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "/api/portfolio/update", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol": "AAPL", "shares": 20, "averageCost": 155.5, "position": 0}`))
	})

	holding, err := client.Portfolio().Update(context.Background(), "AAPL", 20, 155.5)
	require.NoError(t, err)
	assert.Equal(t, 20.0, holding.Shares)
	assert.Equal(t, 155.5, holding.AverageCost)
}

func TestPortfolioRemove(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/portfolio/AAPL", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "Holding deleted successfully"}`))
	})

	require.NoError(t, client.Portfolio().Remove(context.Background(), "aapl"))
}

func TestPortfolioReorder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/portfolio/reorder", r.URL.Path)

		var req reorderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"MSFT", "AAPL"}, req.OrderedSymbols)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "Portfolio reordered"}`))
	})

	require.NoError(t, client.Portfolio().Reorder(context.Background(), []string{"MSFT", "AAPL"}))
}

func TestPortfolioReplace(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/portfolio/upload", r.URL.Path)

		var req []holdingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req, 2)
		assert.Equal(t, "AAPL", req[0].Symbol)
		assert.Equal(t, "MSFT", req[1].Symbol)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "2 holdings uploaded successfully and portfolio overwritten."}`))
	})

	err := client.Portfolio().Replace(context.Background(), []domain.HoldingInput{
		{Symbol: "aapl", Shares: 10, AverageCost: 150},
		{Symbol: "msft", Shares: 5, AverageCost: 300},
	})
	require.NoError(t, err)
}

func TestWatchlistList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/watchlist", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"symbol": "NVDA", "name": "NVIDIA Corp", "price": 128.4},
			{"symbol": "AMD", "name": "Advanced Micro Devices", "price": 162.1}
		]`))
	})

	items, err := client.Watchlist().List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.WatchlistItem{Symbol: "NVDA", Position: 0}, items[0])
	assert.Equal(t, domain.WatchlistItem{Symbol: "AMD", Position: 1}, items[1])
}

func TestWatchlistAddRemovePaths(t *testing.T) {
	var gotMethod, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "ok"}`))
	})

	require.NoError(t, client.Watchlist().Add(context.Background(), "nvda"))
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/api/watchlist/add/NVDA", gotPath)

	require.NoError(t, client.Watchlist().Remove(context.Background(), "nvda"))
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/api/watchlist/remove/NVDA", gotPath)
}

func TestWatchlistReorder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/watchlist/reorder", r.URL.Path)

		var req watchlistReorderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"AMD", "NVDA"}, req.Symbols)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message": "ok"}`))
	})

	require.NoError(t, client.Watchlist().Reorder(context.Background(), []string{"AMD", "NVDA"}))
}
