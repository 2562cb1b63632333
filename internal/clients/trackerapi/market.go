package trackerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/foliosync/foliosync/internal/domain"
)

var _ domain.QuoteProvider = (*Client)(nil)

// Quote fetches the live market snapshot for one symbol
func (c *Client) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	normalized := domain.NormalizeSymbol(symbol)

	var quote domain.Quote
	path := "/api/stock/" + url.PathEscape(normalized)
	if err := c.getMarket(ctx, path, nil, &quote); err != nil {
		return nil, err
	}
	if quote.Symbol == "" {
		quote.Symbol = normalized
	}
	return &quote, nil
}

// History fetches the historical price series for a symbol. The requested
// period is clamped to what the provider serves for the interval before the
// request goes out; when that happens the response carries the adjustment.
func (c *Client) History(ctx context.Context, symbol, period, interval string, withSMA bool) (*domain.HistoryResponse, error) {
	requested := period
	effective, adjusted := clampPeriod(period, interval)

	params := url.Values{}
	params.Set("period", effective)
	params.Set("interval", interval)
	if withSMA {
		params.Set("calculate_sma", "true")
	}

	var resp domain.HistoryResponse
	path := "/api/history/" + url.PathEscape(domain.NormalizeSymbol(symbol))
	if err := c.getMarket(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	if adjusted && resp.Adjusted == nil {
		yes := true
		resp.Adjusted = &yes
		resp.RequestedPeriod = requested
		resp.ActualPeriod = effective
		resp.Message = fmt.Sprintf("Adjusted period from %s to %s due to %s interval limitations", requested, effective, interval)
	}
	return &resp, nil
}

// News fetches recent headlines for a symbol
func (c *Client) News(ctx context.Context, symbol string) ([]domain.NewsArticle, error) {
	var articles []domain.NewsArticle
	path := "/api/news/" + url.PathEscape(domain.NormalizeSymbol(symbol))
	if err := c.getMarket(ctx, path, nil, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

// Search looks up symbols matching a query. Results pass through untouched
// as the provider's raw array.
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("query", query)

	var results json.RawMessage
	if err := c.getMarket(ctx, "/api/search", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// maxPeriods caps how far back each interval may reach; provider limitation.
var maxPeriods = map[string]string{
	"1m":  "7d",
	"2m":  "60d",
	"5m":  "60d",
	"15m": "60d",
	"30m": "60d",
	"60m": "730d",
	"90m": "60d",
	"1h":  "730d",
	"1d":  "max",
	"5d":  "max",
	"1wk": "max",
	"1mo": "max",
	"3mo": "max",
}

var periodDays = map[string]int{
	"1d": 1, "5d": 5, "7d": 7, "60d": 60, "90d": 90,
	"1mo": 30, "3mo": 90, "6mo": 180, "1y": 365, "2y": 730,
	"5y": 1825, "10y": 3650,
}

// clampPeriod trims the requested period to the interval's maximum,
// mirroring the backend's adjustment rules.
func clampPeriod(period, interval string) (string, bool) {
	maxPeriod, ok := maxPeriods[interval]
	if !ok || maxPeriod == "max" {
		return period, false
	}

	requestedDays, haveRequested := parsePeriodDays(period)
	maxAllowedDays, haveMax := parsePeriodDays(maxPeriod)

	if haveRequested && haveMax {
		if requestedDays > maxAllowedDays {
			return maxPeriod, true
		}
		return period, false
	}

	// ytd and max have no fixed day count; minute intervals clamp them
	// outright unless the period is already a known-safe short one.
	switch period {
	case "1d", "5d", "7d", "60d":
		return period, false
	}
	switch interval {
	case "1m", "2m", "5m", "15m", "30m", "90m":
		return maxPeriod, true
	}
	return period, false
}

func parsePeriodDays(period string) (int, bool) {
	if days, ok := periodDays[period]; ok {
		return days, true
	}
	if strings.HasSuffix(period, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(period, "d")); err == nil {
			return days, true
		}
	}
	return 0, false
}
