package engine

import (
	"context"
	"sync"

	"github.com/foliosync/foliosync/internal/domain"
)

// quoteFetchWorkers bounds the quote fan-out so a cold cache does not
// open one connection per holding at once.
const quoteFetchWorkers = 4

// Portfolio returns the holdings joined with live quotes plus the
// recomputed summary. A holding whose quote cannot be fetched still
// appears, flagged by name, with its market fields null; its cost basis
// still counts toward the summary.
func (e *Executor) Portfolio(ctx context.Context) (*domain.PortfolioView, error) {
	holdings, err := e.portfolioHoldings(ctx)
	if err != nil {
		return nil, err
	}

	quotes := e.fetchQuotes(ctx, quoteSymbols(holdings))

	view := &domain.PortfolioView{Holdings: make([]domain.HoldingView, 0, len(holdings))}
	var totalValue, totalCostBasis, totalDayChange, totalStartValue float64

	for _, h := range holdings {
		hv := domain.HoldingView{Holding: h}
		totalCostBasis += h.Shares * h.AverageCost

		switch {
		case h.Type == domain.AssetCash:
			// Cash is priced at par and never moves intraday.
			fillMarketFields(&hv, h, 1.0, 0, 0)
			totalValue += *hv.Value
			totalStartValue += *hv.Value

		case quotes[h.Symbol] != nil:
			q := quotes[h.Symbol]
			fillMarketFields(&hv, h, q.Price, q.Change, q.ChangePercent)
			if q.Name != "" {
				name := q.Name
				hv.Name = &name
			}
			if q.Type.Valid() {
				hv.Type = q.Type
			}
			hv.PreMarketPrice = q.PreMarketPrice
			hv.PostMarketPrice = q.PostMarketPrice
			if q.MarketState != "" {
				state := q.MarketState
				hv.MarketState = &state
			}

			dayChange := q.Change * h.Shares
			totalValue += *hv.Value
			totalDayChange += dayChange
			totalStartValue += *hv.Value - dayChange

		default:
			name := h.Symbol + " (Data Error)"
			hv.Name = &name
		}

		view.Holdings = append(view.Holdings, hv)
	}

	view.Summary = domain.PortfolioSummary{
		TotalValue: totalValue,
		TotalGain:  totalValue - totalCostBasis,
		DayChange:  totalDayChange,
	}
	if totalCostBasis > 0 {
		view.Summary.TotalGainPercent = view.Summary.TotalGain / totalCostBasis * 100
	}
	if totalStartValue > 0 {
		view.Summary.DayChangePercent = totalDayChange / totalStartValue * 100
	}

	return view, nil
}

// Watchlist returns the watched symbols joined with live quotes. A
// symbol whose quote fails keeps its slot with null market fields.
func (e *Executor) Watchlist(ctx context.Context) ([]domain.WatchlistItemView, error) {
	items, err := e.watchlistItems(ctx)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(items))
	for i, item := range items {
		symbols[i] = item.Symbol
	}
	quotes := e.fetchQuotes(ctx, symbols)

	views := make([]domain.WatchlistItemView, 0, len(items))
	for _, item := range items {
		view := domain.WatchlistItemView{Symbol: item.Symbol, Position: item.Position}
		if q := quotes[item.Symbol]; q != nil {
			price := q.Price
			change := q.Change
			changePercent := q.ChangePercent
			view.Price = &price
			view.Change = &change
			view.ChangePercent = &changePercent
			if q.Name != "" {
				name := q.Name
				view.Name = &name
			}
			view.PreMarketPrice = q.PreMarketPrice
			if q.MarketState != "" {
				state := q.MarketState
				view.MarketState = &state
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// fillMarketFields computes the per-holding display values from a price
// and day change.
func fillMarketFields(hv *domain.HoldingView, h domain.Holding, price, change, changePercent float64) {
	value := h.Shares * price
	gain := (price - h.AverageCost) * h.Shares
	gainPercent := 0.0
	if h.AverageCost > 0 {
		gainPercent = (price/h.AverageCost - 1) * 100
	}

	hv.CurrentPrice = &price
	hv.Change = &change
	hv.ChangePercent = &changePercent
	hv.Value = &value
	hv.Gain = &gain
	hv.GainPercent = &gainPercent
}

// quoteSymbols lists the symbols that need a live quote. Cash never
// does.
func quoteSymbols(holdings []domain.Holding) []string {
	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		if h.Type == domain.AssetCash {
			continue
		}
		symbols = append(symbols, h.Symbol)
	}
	return symbols
}

// fetchQuotes resolves quotes for symbols through the cached read path
// with a bounded fan-out. A failed symbol is simply absent from the
// result; callers render it degraded rather than failing the view.
func (e *Executor) fetchQuotes(ctx context.Context, symbols []string) map[string]*domain.Quote {
	quotes := make(map[string]*domain.Quote, len(symbols))
	if len(symbols) == 0 {
		return quotes
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, quoteFetchWorkers)

	for _, symbol := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			quote, err := e.Quote(ctx, symbol)
			if err != nil {
				e.log.Debug().Err(err).Str("symbol", symbol).Msg("Quote unavailable for join")
				return
			}

			mu.Lock()
			quotes[symbol] = quote
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	return quotes
}
