package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/engine"
)

// MockPortfolioStore is a mock implementation of domain.PortfolioStore
// for testing. It keeps holdings in memory with dense positions and
// mirrors the adapters' typed errors.
type MockPortfolioStore struct {
	mu           sync.RWMutex
	holdings     []domain.Holding
	err          error
	reorderErr   error
	listCalls    int
	reorderCalls int
}

// NewMockPortfolioStore creates a new mock portfolio store
func NewMockPortfolioStore() *MockPortfolioStore {
	return &MockPortfolioStore{
		holdings: make([]domain.Holding, 0),
	}
}

// SetHoldings sets the holdings to return
func (m *MockPortfolioStore) SetHoldings(holdings []domain.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings = make([]domain.Holding, len(holdings))
	copy(m.holdings, holdings)
}

// SetError sets the error to return
func (m *MockPortfolioStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetReorderError sets an error returned by Reorder only, leaving reads
// working
func (m *MockPortfolioStore) SetReorderError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reorderErr = err
}

// ListCalls returns how many times List has been invoked
func (m *MockPortfolioStore) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls
}

// ReorderCalls returns how many times Reorder has been invoked
func (m *MockPortfolioStore) ReorderCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reorderCalls
}

// Holdings returns a copy of the current holdings
func (m *MockPortfolioStore) Holdings() []domain.Holding {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Holding, len(m.holdings))
	copy(out, m.holdings)
	return out
}

// List returns all holdings in display order
func (m *MockPortfolioStore) List(ctx context.Context) ([]domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Holding, len(m.holdings))
	copy(out, m.holdings)
	return out, nil
}

// Add appends a new holding at the end of the display order
func (m *MockPortfolioStore) Add(ctx context.Context, input domain.HoldingInput) (domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Holding{}, m.err
	}
	for _, h := range m.holdings {
		if h.Symbol == input.Symbol {
			return domain.Holding{}, domain.NewConflictError("Holding already exists. Use PUT to update.")
		}
	}
	holding := domain.Holding{
		Symbol:      input.Symbol,
		Shares:      input.Shares,
		AverageCost: input.AverageCost,
		Position:    len(m.holdings),
		Type:        input.Type,
	}
	m.holdings = append(m.holdings, holding)
	return holding, nil
}

// Update replaces shares and average cost for an existing holding
func (m *MockPortfolioStore) Update(ctx context.Context, symbol string, shares, averageCost float64) (domain.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Holding{}, m.err
	}
	for i := range m.holdings {
		if m.holdings[i].Symbol == symbol {
			m.holdings[i].Shares = shares
			m.holdings[i].AverageCost = averageCost
			return m.holdings[i], nil
		}
	}
	return domain.Holding{}, domain.NewNotFoundError("Holding not found")
}

// Remove deletes a holding and compacts the remaining positions
func (m *MockPortfolioStore) Remove(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.holdings {
		if m.holdings[i].Symbol == symbol {
			m.holdings = append(m.holdings[:i], m.holdings[i+1:]...)
			for j := range m.holdings {
				m.holdings[j].Position = j
			}
			return nil
		}
	}
	return domain.NewNotFoundError("Holding not found")
}

// Reorder rewrites positions to match the given symbol order
func (m *MockPortfolioStore) Reorder(ctx context.Context, orderedSymbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reorderCalls++
	if m.err != nil {
		return m.err
	}
	if m.reorderErr != nil {
		return m.reorderErr
	}
	bySymbol := make(map[string]domain.Holding, len(m.holdings))
	for _, h := range m.holdings {
		bySymbol[h.Symbol] = h
	}
	reordered := make([]domain.Holding, 0, len(m.holdings))
	for _, symbol := range orderedSymbols {
		h, ok := bySymbol[symbol]
		if !ok {
			return domain.NewValidationError("Invalid order: unknown symbol %s", symbol)
		}
		h.Position = len(reordered)
		reordered = append(reordered, h)
	}
	m.holdings = reordered
	return nil
}

// Replace swaps the entire portfolio for the given holdings
func (m *MockPortfolioStore) Replace(ctx context.Context, holdings []domain.HoldingInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	replaced := make([]domain.Holding, 0, len(holdings))
	for i, input := range holdings {
		replaced = append(replaced, domain.Holding{
			Symbol:      input.Symbol,
			Shares:      input.Shares,
			AverageCost: input.AverageCost,
			Position:    i,
			Type:        input.Type,
		})
	}
	m.holdings = replaced
	return nil
}

// MockWatchlistStore is a mock implementation of domain.WatchlistStore
// for testing
type MockWatchlistStore struct {
	mu           sync.RWMutex
	items        []domain.WatchlistItem
	err          error
	reorderErr   error
	listCalls    int
	reorderCalls int
}

// NewMockWatchlistStore creates a new mock watchlist store
func NewMockWatchlistStore() *MockWatchlistStore {
	return &MockWatchlistStore{
		items: make([]domain.WatchlistItem, 0),
	}
}

// SetItems sets the watchlist items to return
func (m *MockWatchlistStore) SetItems(items []domain.WatchlistItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]domain.WatchlistItem, len(items))
	copy(m.items, items)
}

// SetSymbols sets the watchlist to the given symbols in order
func (m *MockWatchlistStore) SetSymbols(symbols ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make([]domain.WatchlistItem, 0, len(symbols))
	for i, symbol := range symbols {
		m.items = append(m.items, domain.WatchlistItem{Symbol: symbol, Position: i})
	}
}

// SetError sets the error to return
func (m *MockWatchlistStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetReorderError sets an error returned by Reorder only, leaving reads
// working
func (m *MockWatchlistStore) SetReorderError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reorderErr = err
}

// ListCalls returns how many times List has been invoked
func (m *MockWatchlistStore) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls
}

// ReorderCalls returns how many times Reorder has been invoked
func (m *MockWatchlistStore) ReorderCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reorderCalls
}

// Items returns a copy of the current watchlist
func (m *MockWatchlistStore) Items() []domain.WatchlistItem {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.WatchlistItem, len(m.items))
	copy(out, m.items)
	return out
}

// List returns all watched symbols in display order
func (m *MockWatchlistStore) List(ctx context.Context) ([]domain.WatchlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.WatchlistItem, len(m.items))
	copy(out, m.items)
	return out, nil
}

// Add appends a symbol at the end of the display order
func (m *MockWatchlistStore) Add(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, item := range m.items {
		if item.Symbol == symbol {
			return domain.NewConflictError("%s is already in watchlist", symbol)
		}
	}
	m.items = append(m.items, domain.WatchlistItem{Symbol: symbol, Position: len(m.items)})
	return nil
}

// Remove deletes a symbol and compacts the remaining positions
func (m *MockWatchlistStore) Remove(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for i := range m.items {
		if m.items[i].Symbol == symbol {
			m.items = append(m.items[:i], m.items[i+1:]...)
			for j := range m.items {
				m.items[j].Position = j
			}
			return nil
		}
	}
	return domain.NewNotFoundError("%s not found in watchlist", symbol)
}

// Reorder rewrites positions to match the given symbol order
func (m *MockWatchlistStore) Reorder(ctx context.Context, orderedSymbols []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reorderCalls++
	if m.err != nil {
		return m.err
	}
	if m.reorderErr != nil {
		return m.reorderErr
	}
	bySymbol := make(map[string]domain.WatchlistItem, len(m.items))
	for _, item := range m.items {
		bySymbol[item.Symbol] = item
	}
	reordered := make([]domain.WatchlistItem, 0, len(m.items))
	for _, symbol := range orderedSymbols {
		item, ok := bySymbol[symbol]
		if !ok {
			return domain.NewValidationError("Invalid order: unknown symbol %s", symbol)
		}
		item.Position = len(reordered)
		reordered = append(reordered, item)
	}
	m.items = reordered
	return nil
}

// Verify interface implementation
var _ domain.PortfolioStore = (*MockPortfolioStore)(nil)
var _ domain.WatchlistStore = (*MockWatchlistStore)(nil)

// MockMarketData is a mock implementation of engine.MarketData for
// testing. A symbol without a configured quote fails its lookup, which
// is how tests exercise degraded rows.
type MockMarketData struct {
	mu         sync.RWMutex
	quotes     map[string]*domain.Quote
	history    map[string]*domain.HistoryResponse
	news       map[string][]domain.NewsArticle
	search     map[string]json.RawMessage
	err        error
	quoteCalls map[string]int
}

// NewMockMarketData creates a new mock market data client
func NewMockMarketData() *MockMarketData {
	return &MockMarketData{
		quotes:     make(map[string]*domain.Quote),
		history:    make(map[string]*domain.HistoryResponse),
		news:       make(map[string][]domain.NewsArticle),
		search:     make(map[string]json.RawMessage),
		quoteCalls: make(map[string]int),
	}
}

// SetQuote sets the quote to return for a symbol
func (m *MockMarketData) SetQuote(symbol string, quote *domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = quote
}

// RemoveQuote removes a configured quote so lookups for the symbol fail
func (m *MockMarketData) RemoveQuote(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.quotes, symbol)
}

// SetHistory sets the history response to return for a symbol
func (m *MockMarketData) SetHistory(symbol string, history *domain.HistoryResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[symbol] = history
}

// SetNews sets the news articles to return for a symbol
func (m *MockMarketData) SetNews(symbol string, articles []domain.NewsArticle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.news[symbol] = articles
}

// SetSearch sets the search results to return for a query
func (m *MockMarketData) SetSearch(query string, results json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search[query] = results
}

// SetError sets the error to return from every method
func (m *MockMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// QuoteCalls returns how many times Quote has been invoked for a symbol
func (m *MockMarketData) QuoteCalls(symbol string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quoteCalls[symbol]
}

// Quote returns the configured quote for a symbol
func (m *MockMarketData) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteCalls[symbol]++
	if m.err != nil {
		return nil, m.err
	}
	quote, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote configured for symbol: %s", symbol)
	}
	return quote, nil
}

// History returns the configured history for a symbol
func (m *MockMarketData) History(ctx context.Context, symbol, period, interval string, withSMA bool) (*domain.HistoryResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	history, ok := m.history[symbol]
	if !ok {
		return nil, fmt.Errorf("no history configured for symbol: %s", symbol)
	}
	return history, nil
}

// News returns the configured articles for a symbol
func (m *MockMarketData) News(ctx context.Context, symbol string) ([]domain.NewsArticle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	articles, ok := m.news[symbol]
	if !ok {
		return nil, fmt.Errorf("no news configured for symbol: %s", symbol)
	}
	return articles, nil
}

// Search returns the configured results for a query
func (m *MockMarketData) Search(ctx context.Context, query string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	results, ok := m.search[query]
	if !ok {
		return nil, fmt.Errorf("no search results configured for query: %s", query)
	}
	return results, nil
}

// Verify interface implementation
var _ engine.MarketData = (*MockMarketData)(nil)

// MockTokenStore is a mock implementation of engine.TokenStore for
// testing
type MockTokenStore struct {
	mu      sync.RWMutex
	token   string
	cleared bool
}

// NewMockTokenStore creates a new mock token store
func NewMockTokenStore() *MockTokenStore {
	return &MockTokenStore{}
}

// Set stores the token
func (m *MockTokenStore) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.cleared = false
}

// Clear removes the token
func (m *MockTokenStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.cleared = true
}

// Token returns the stored token
func (m *MockTokenStore) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Cleared reports whether Clear has been called since the last Set
func (m *MockTokenStore) Cleared() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cleared
}

// MockIdentityStore is a mock implementation of engine.IdentityStore
// for testing. Reset mints a new identity by counting up, like the
// persistent store mints a new UUID.
type MockIdentityStore struct {
	mu       sync.RWMutex
	identity string
	resets   int
	err      error
}

// NewMockIdentityStore creates a mock identity store with the given
// starting identity
func NewMockIdentityStore(identity string) *MockIdentityStore {
	return &MockIdentityStore{identity: identity}
}

// SetError sets the error to return
func (m *MockIdentityStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Resets returns how many times Reset has been invoked
func (m *MockIdentityStore) Resets() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resets
}

// LoadOrCreate returns the current identity
func (m *MockIdentityStore) LoadOrCreate() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	return m.identity, nil
}

// Reset replaces the identity and returns the new one
func (m *MockIdentityStore) Reset() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.resets++
	m.identity = fmt.Sprintf("guest-reset-%d", m.resets)
	return m.identity, nil
}

// Verify interface implementation
var _ engine.TokenStore = (*MockTokenStore)(nil)
var _ engine.IdentityStore = (*MockIdentityStore)(nil)
