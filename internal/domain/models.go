// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"strings"
)

// AssetType classifies a holding
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetETF    AssetType = "etf"
	AssetCrypto AssetType = "crypto"
	// AssetCash represents a cash pseudo-holding; shares carry the cash amount
	AssetCash AssetType = "cash"
)

// Valid reports whether t is one of the known asset types
func (t AssetType) Valid() bool {
	switch t {
	case AssetStock, AssetETF, AssetCrypto, AssetCash:
		return true
	}
	return false
}

// NormalizeSymbol canonicalizes a ticker for storage and lookup
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Holding is one portfolio position. Only these fields are persisted;
// market-derived values live on HoldingView.
type Holding struct {
	Symbol      string    `json:"symbol"`
	Shares      float64   `json:"shares"`
	AverageCost float64   `json:"averageCost"`
	Position    int       `json:"position"`
	Type        AssetType `json:"type,omitempty"`
}

// HoldingInput is the payload for creating or importing a holding
type HoldingInput struct {
	Symbol      string    `json:"symbol"`
	Shares      float64   `json:"shares"`
	AverageCost float64   `json:"averageCost"`
	Type        AssetType `json:"type,omitempty"`
}

// HoldingView is a holding joined with its live quote for display.
// Pointer fields are null on the wire when no quote is available.
type HoldingView struct {
	Holding
	Name            *string  `json:"name,omitempty"`
	CurrentPrice    *float64 `json:"currentPrice,omitempty"`
	Change          *float64 `json:"change,omitempty"`
	ChangePercent   *float64 `json:"changePercent,omitempty"`
	Value           *float64 `json:"value,omitempty"`
	Gain            *float64 `json:"gain,omitempty"`
	GainPercent     *float64 `json:"gainPercent,omitempty"`
	PreMarketPrice  *float64 `json:"preMarketPrice,omitempty"`
	PostMarketPrice *float64 `json:"postMarketPrice,omitempty"`
	MarketState     *string  `json:"marketState,omitempty"`
}

// WatchlistItem is one watched symbol with its display order
type WatchlistItem struct {
	Symbol   string `json:"symbol"`
	Position int    `json:"position"`
}

// WatchlistItemView is a watchlist entry joined with its live quote
type WatchlistItemView struct {
	Symbol         string   `json:"symbol"`
	Position       int      `json:"position"`
	Name           *string  `json:"name,omitempty"`
	Price          *float64 `json:"price,omitempty"`
	Change         *float64 `json:"change,omitempty"`
	ChangePercent  *float64 `json:"changePercent,omitempty"`
	PreMarketPrice *float64 `json:"preMarketPrice,omitempty"`
	MarketState    *string  `json:"marketState,omitempty"`
}

// PortfolioSummary aggregates current holdings against live prices.
// Recomputed on every portfolio read, never persisted.
type PortfolioSummary struct {
	TotalValue       float64 `json:"totalValue"`
	TotalGain        float64 `json:"totalGain"`
	TotalGainPercent float64 `json:"totalGainPercent"`
	DayChange        float64 `json:"dayChange"`
	DayChangePercent float64 `json:"dayChangePercent"`
}

// PortfolioView is the portfolio query result the UI renders
type PortfolioView struct {
	Holdings []HoldingView    `json:"holdings"`
	Summary  PortfolioSummary `json:"summary"`
}

// Quote is a per-symbol market snapshot from the data provider
type Quote struct {
	Symbol          string    `json:"symbol"`
	Price           float64   `json:"price"`
	Name            string    `json:"name,omitempty"`
	Change          float64   `json:"change"`
	ChangePercent   float64   `json:"changePercent"`
	MarketCap       *float64  `json:"marketCap,omitempty"`
	Volume          *float64  `json:"volume,omitempty"`
	Type            AssetType `json:"type,omitempty"`
	PreMarketPrice  *float64  `json:"preMarketPrice,omitempty"`
	PostMarketPrice *float64  `json:"postMarketPrice,omitempty"`
	MarketState     string    `json:"marketState,omitempty"`
}

// HistoryResponse is the historical price series for one symbol.
// The bar records and SMA series pass through from the provider untouched.
type HistoryResponse struct {
	Symbol          string          `json:"symbol"`
	History         json.RawMessage `json:"history"`
	Period          string          `json:"period"`
	Interval        string          `json:"interval"`
	Adjusted        *bool           `json:"adjusted,omitempty"`
	RequestedPeriod string          `json:"requestedPeriod,omitempty"`
	ActualPeriod    string          `json:"actualPeriod,omitempty"`
	Message         string          `json:"message,omitempty"`
	SMA             json.RawMessage `json:"sma,omitempty"`
}

// NewsArticle is one headline for a symbol
type NewsArticle struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Source    string `json:"source"`
	Published string `json:"published"`
}
