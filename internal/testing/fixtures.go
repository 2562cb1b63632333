package testing

import (
	"encoding/json"

	"github.com/foliosync/foliosync/internal/domain"
)

// NewHoldingFixtures returns a small portfolio in display order for use
// in tests
func NewHoldingFixtures() []domain.Holding {
	return []domain.Holding{
		{Symbol: "AAPL", Shares: 10, AverageCost: 150.0, Position: 0, Type: domain.AssetStock},
		{Symbol: "MSFT", Shares: 5, AverageCost: 300.0, Position: 1, Type: domain.AssetStock},
		{Symbol: "VWCE", Shares: 50, AverageCost: 95.0, Position: 2, Type: domain.AssetETF},
	}
}

// NewHoldingInputFixtures returns the same portfolio as import payloads
func NewHoldingInputFixtures() []domain.HoldingInput {
	return []domain.HoldingInput{
		{Symbol: "AAPL", Shares: 10, AverageCost: 150.0, Type: domain.AssetStock},
		{Symbol: "MSFT", Shares: 5, AverageCost: 300.0, Type: domain.AssetStock},
		{Symbol: "VWCE", Shares: 50, AverageCost: 95.0, Type: domain.AssetETF},
	}
}

// NewWatchlistFixtures returns a watchlist in display order for use in
// tests
func NewWatchlistFixtures() []domain.WatchlistItem {
	return []domain.WatchlistItem{
		{Symbol: "NVDA", Position: 0},
		{Symbol: "AMZN", Position: 1},
		{Symbol: "META", Position: 2},
	}
}

// NewQuoteFixtures returns quotes keyed by symbol, matching the holding
// and watchlist fixtures
func NewQuoteFixtures() map[string]*domain.Quote {
	return map[string]*domain.Quote{
		"AAPL": {
			Symbol:        "AAPL",
			Name:          "Apple Inc.",
			Price:         175.0,
			Change:        2.5,
			ChangePercent: 1.45,
			Type:          domain.AssetStock,
			MarketState:   "REGULAR",
		},
		"MSFT": {
			Symbol:        "MSFT",
			Name:          "Microsoft Corporation",
			Price:         380.0,
			Change:        -1.2,
			ChangePercent: -0.31,
			Type:          domain.AssetStock,
			MarketState:   "REGULAR",
		},
		"VWCE": {
			Symbol:        "VWCE",
			Name:          "Vanguard FTSE All-World UCITS ETF",
			Price:         100.0,
			Change:        0.4,
			ChangePercent: 0.40,
			Type:          domain.AssetETF,
			MarketState:   "REGULAR",
		},
		"NVDA": {
			Symbol:        "NVDA",
			Name:          "NVIDIA Corporation",
			Price:         118.0,
			Change:        3.1,
			ChangePercent: 2.70,
			Type:          domain.AssetStock,
			MarketState:   "REGULAR",
		},
		"AMZN": {
			Symbol:        "AMZN",
			Name:          "Amazon.com Inc.",
			Price:         185.0,
			Change:        0.9,
			ChangePercent: 0.49,
			Type:          domain.AssetStock,
			MarketState:   "REGULAR",
		},
		"META": {
			Symbol:        "META",
			Name:          "Meta Platforms Inc.",
			Price:         510.0,
			Change:        -4.3,
			ChangePercent: -0.84,
			Type:          domain.AssetStock,
			MarketState:   "REGULAR",
		},
	}
}

// NewHistoryFixture returns a short daily series for one symbol
func NewHistoryFixture(symbol string) *domain.HistoryResponse {
	return &domain.HistoryResponse{
		Symbol:   symbol,
		Period:   "1y",
		Interval: "1d",
		History: json.RawMessage(`[
			{"date":"2024-05-01","Open":170.0,"High":176.0,"Low":169.5,"Close":175.0,"Volume":51230000},
			{"date":"2024-05-02","Open":175.2,"High":177.8,"Low":174.1,"Close":176.4,"Volume":48110000}
		]`),
	}
}

// NewNewsFixtures returns a few headlines for one symbol
func NewNewsFixtures(symbol string) []domain.NewsArticle {
	return []domain.NewsArticle{
		{
			Title:     symbol + " beats quarterly estimates",
			Link:      "https://example.com/news/1",
			Source:    "Newswire",
			Published: "2024-05-01T12:30:00Z",
		},
		{
			Title:     "Analysts raise " + symbol + " price target",
			Link:      "https://example.com/news/2",
			Source:    "Market Daily",
			Published: "2024-05-01T09:15:00Z",
		},
	}
}
