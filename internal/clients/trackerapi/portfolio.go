package trackerapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/foliosync/foliosync/internal/domain"
)

// PortfolioAPI exposes the backend's portfolio endpoints as a domain.PortfolioStore
type PortfolioAPI struct {
	c *Client
}

var _ domain.PortfolioStore = (*PortfolioAPI)(nil)

// holdingPayload mirrors the backend's holding wire shape. Market-derived
// fields are ignored here; the engine joins quotes from its own cache.
type holdingPayload struct {
	Symbol      string  `json:"symbol"`
	Shares      float64 `json:"shares"`
	AverageCost float64 `json:"averageCost"`
	Position    *int    `json:"position"`
	Type        string  `json:"type"`
}

// toDomain converts a wire holding; index supplies the position when the
// backend response carries none (list entries arrive in display order).
func (h holdingPayload) toDomain(index int) domain.Holding {
	position := index
	if h.Position != nil {
		position = *h.Position
	}
	assetType := domain.AssetType(h.Type)
	if !assetType.Valid() {
		assetType = domain.AssetStock
	}
	return domain.Holding{
		Symbol:      h.Symbol,
		Shares:      h.Shares,
		AverageCost: h.AverageCost,
		Position:    position,
		Type:        assetType,
	}
}

type portfolioResponse struct {
	Holdings []holdingPayload `json:"holdings"`
}

type holdingRequest struct {
	Symbol      string  `json:"symbol"`
	Shares      float64 `json:"shares"`
	AverageCost float64 `json:"averageCost"`
}

// List fetches the portfolio ordered by position
func (p *PortfolioAPI) List(ctx context.Context) ([]domain.Holding, error) {
	var resp portfolioResponse
	if err := p.c.do(ctx, http.MethodGet, "/api/portfolio", nil, nil, &resp); err != nil {
		return nil, err
	}

	holdings := make([]domain.Holding, len(resp.Holdings))
	for i, h := range resp.Holdings {
		holdings[i] = h.toDomain(i)
	}
	return holdings, nil
}

// Add creates a new holding. The backend rejects duplicates with a 400 that
// maps to a ConflictError.
func (p *PortfolioAPI) Add(ctx context.Context, input domain.HoldingInput) (domain.Holding, error) {
	req := holdingRequest{
		Symbol:      domain.NormalizeSymbol(input.Symbol),
		Shares:      input.Shares,
		AverageCost: input.AverageCost,
	}

	var created holdingPayload
	if err := p.c.do(ctx, http.MethodPost, "/api/portfolio", nil, req, &created); err != nil {
		return domain.Holding{}, err
	}

	holding := created.toDomain(0)
	// The backend derives asset type from quote data on reads, so the create
	// response does not echo it back.
	if input.Type != "" && input.Type.Valid() {
		holding.Type = input.Type
	}
	return holding, nil
}

// Update replaces shares and average cost for an existing symbol
func (p *PortfolioAPI) Update(ctx context.Context, symbol string, shares, averageCost float64) (domain.Holding, error) {
	req := holdingRequest{
		Symbol:      domain.NormalizeSymbol(symbol),
		Shares:      shares,
		AverageCost: averageCost,
	}

	var updated holdingPayload
	if err := p.c.do(ctx, http.MethodPut, "/api/portfolio/update", nil, req, &updated); err != nil {
		return domain.Holding{}, err
	}
	return updated.toDomain(0), nil
}

// Remove deletes a holding; the backend compacts remaining positions
func (p *PortfolioAPI) Remove(ctx context.Context, symbol string) error {
	path := "/api/portfolio/" + url.PathEscape(domain.NormalizeSymbol(symbol))
	return p.c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

type reorderRequest struct {
	OrderedSymbols []string `json:"orderedSymbols"`
}

// Reorder persists a new total order for the portfolio
func (p *PortfolioAPI) Reorder(ctx context.Context, orderedSymbols []string) error {
	return p.c.do(ctx, http.MethodPost, "/api/portfolio/reorder", nil, reorderRequest{OrderedSymbols: orderedSymbols}, nil)
}

// Replace overwrites the entire portfolio with the given holdings (bulk import)
func (p *PortfolioAPI) Replace(ctx context.Context, holdings []domain.HoldingInput) error {
	payload := make([]holdingRequest, len(holdings))
	for i, h := range holdings {
		payload[i] = holdingRequest{
			Symbol:      domain.NormalizeSymbol(h.Symbol),
			Shares:      h.Shares,
			AverageCost: h.AverageCost,
		}
	}
	return p.c.do(ctx, http.MethodPost, "/api/portfolio/upload", nil, payload, nil)
}
