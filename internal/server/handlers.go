package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/engine"
)

// Handlers serves the portfolio, watchlist, market data and session
// endpoints by delegating to the engine. Every response uses the wire
// shapes the backend uses, so the UI cannot tell the two apart.
type Handlers struct {
	executor *engine.Executor
	log      zerolog.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(executor *engine.Executor, log zerolog.Logger) *Handlers {
	return &Handlers{
		executor: executor,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": serviceVersion,
		"service": serviceName,
	}

	s.handlers.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps a typed domain error onto an HTTP status and the
// backend's `{"detail": message}` error shape.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
	case domain.IsConflict(err):
		status = http.StatusConflict
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case domain.IsTransport(err):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		h.log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request rejected")
	}

	h.writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// decodeJSON decodes a request body, normalizing decode failures into a
// ValidationError so they map to a 400.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("Invalid request body.")
	}
	return nil
}

// --- Session ---

type sessionResponse struct {
	Mode     string `json:"mode"`
	Identity string `json:"identity"`
}

func (h *Handlers) sessionState() sessionResponse {
	session := h.executor.Session()
	return sessionResponse{
		Mode:     string(session.Mode()),
		Identity: session.Identity(),
	}
}

// HandleGetSession returns the current mode and identity
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessionState())
}

type loginRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// HandleLogin binds the session to the remote adapters
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.executor.Session().Login(req.UserID, req.Token); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.sessionState())
}

// HandleLogout drops the token and returns to a fresh guest session
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.executor.Session().Logout(); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.sessionState())
}

// --- Portfolio ---

// HandleGetPortfolio returns holdings joined with quotes plus the summary
func (h *Handlers) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	view, err := h.executor.Portfolio(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// HandleAddHolding creates a new holding
func (h *Handlers) HandleAddHolding(w http.ResponseWriter, r *http.Request) {
	var input domain.HoldingInput
	if err := decodeJSON(r, &input); err != nil {
		h.writeError(w, r, err)
		return
	}

	holding, err := h.executor.AddHolding(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, holding)
}

type updateHoldingRequest struct {
	Symbol      string  `json:"symbol"`
	Shares      float64 `json:"shares"`
	AverageCost float64 `json:"averageCost"`
}

// HandleUpdateHolding replaces shares and average cost for a symbol
func (h *Handlers) HandleUpdateHolding(w http.ResponseWriter, r *http.Request) {
	var req updateHoldingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	holding, err := h.executor.UpdateHolding(r.Context(), req.Symbol, req.Shares, req.AverageCost)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, holding)
}

// HandleRemoveHolding deletes a holding
func (h *Handlers) HandleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(chi.URLParam(r, "symbol"))

	if err := h.executor.RemoveHolding(r.Context(), symbol); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("%s removed from portfolio", symbol),
	})
}

// reorderRequest accepts either a full symbol order or the drag form of a
// single symbol plus its target index. The watchlist endpoint historically
// named the full-order field `symbols`, the portfolio one `orderedSymbols`;
// both are accepted on both endpoints.
type reorderRequest struct {
	OrderedSymbols []string `json:"orderedSymbols"`
	Symbols        []string `json:"symbols"`
	Symbol         string   `json:"symbol"`
	Index          *int     `json:"index"`
}

func (r reorderRequest) fullOrder() []string {
	if len(r.OrderedSymbols) > 0 {
		return r.OrderedSymbols
	}
	return r.Symbols
}

// HandleReorderPortfolio applies a new holding order and returns the
// refreshed portfolio view
func (h *Handlers) HandleReorderPortfolio(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var err error
	switch {
	case len(req.fullOrder()) > 0:
		err = h.executor.ReorderPortfolio(r.Context(), req.fullOrder())
	case req.Symbol != "" && req.Index != nil:
		err = h.executor.MoveHolding(r.Context(), req.Symbol, *req.Index)
	default:
		err = domain.NewValidationError("Reorder requires orderedSymbols or symbol and index.")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	view, err := h.executor.Portfolio(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// HandleUploadPortfolio replaces the entire portfolio from an import
func (h *Handlers) HandleUploadPortfolio(w http.ResponseWriter, r *http.Request) {
	var holdings []domain.HoldingInput
	if err := decodeJSON(r, &holdings); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.executor.ReplacePortfolio(r.Context(), holdings); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Portfolio replaced",
		"holdings": len(holdings),
	})
}

// --- Watchlist ---

// HandleGetWatchlist returns the watched symbols joined with quotes
func (h *Handlers) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.executor.Watchlist(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

// HandleAddToWatchlist adds a symbol and returns the updated list
func (h *Handlers) HandleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.executor.AddToWatchlist(r.Context(), symbol); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWatchlist(w, r)
}

// HandleRemoveFromWatchlist removes a symbol and returns the updated list
func (h *Handlers) HandleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	if err := h.executor.RemoveFromWatchlist(r.Context(), symbol); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWatchlist(w, r)
}

// HandleReorderWatchlist applies a new watchlist order and returns the
// updated list
func (h *Handlers) HandleReorderWatchlist(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var err error
	switch {
	case len(req.fullOrder()) > 0:
		err = h.executor.ReorderWatchlist(r.Context(), req.fullOrder())
	case req.Symbol != "" && req.Index != nil:
		err = h.executor.MoveWatchlistItem(r.Context(), req.Symbol, *req.Index)
	default:
		err = domain.NewValidationError("Reorder requires symbols or symbol and index.")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.respondWatchlist(w, r)
}

func (h *Handlers) respondWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := h.executor.Watchlist(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// --- Market data ---

// HandleQuote returns the live quote for a symbol
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.executor.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// HandleHistory returns the historical price series for a symbol
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1y"
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1d"
	}
	withSMA, _ := strconv.ParseBool(r.URL.Query().Get("calculate_sma"))

	history, err := h.executor.History(r.Context(), symbol, period, interval, withSMA)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, history)
}

// HandleNews returns recent headlines for a symbol
func (h *Handlers) HandleNews(w http.ResponseWriter, r *http.Request) {
	articles, err := h.executor.News(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, articles)
}

// HandleSearch looks up symbols matching a query
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.executor.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, results)
}
