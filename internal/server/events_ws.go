package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/foliosync/foliosync/internal/events"
)

const (
	// eventBuffer sizes the per-client queue; a slow consumer loses
	// events rather than blocking publishers.
	eventBuffer = 100

	writeWait         = 10 * time.Second
	heartbeatInterval = 30 * time.Second
)

// streamedEvents lists the event types forwarded to UI clients.
var streamedEvents = []events.EventType{
	events.PortfolioChanged,
	events.WatchlistChanged,
	events.QuotesRefreshed,
	events.SessionChanged,
	events.ErrorOccurred,
}

// EventsHandler streams bus events to browser clients over a websocket.
type EventsHandler struct {
	bus            *events.Bus
	originPatterns []string
	log            zerolog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewEventsHandler creates the websocket event stream handler. The origin
// check reuses the configured CORS origins.
func NewEventsHandler(bus *events.Bus, corsOrigins []string, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:            bus,
		originPatterns: originPatterns(corsOrigins),
		log:            log.With().Str("component", "events_ws").Logger(),
		conns:          make(map[*websocket.Conn]struct{}),
	}
}

// originPatterns converts CORS origins (scheme://host:port) into the bare
// host patterns the websocket handshake matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// ServeHTTP handles GET /api/events/ws requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}

	h.track(conn)
	defer h.untrack(conn)
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// Optional type filter, comma-separated
	var allowedTypes map[events.EventType]bool
	if typesFilter := r.URL.Query().Get("types"); typesFilter != "" {
		allowedTypes = make(map[events.EventType]bool)
		for _, t := range strings.Split(typesFilter, ",") {
			allowedTypes[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	h.log.Info().Msg("Client connected to event stream")

	// Create event channel for this connection
	eventChan := make(chan *events.Event, eventBuffer)

	// Non-blocking send (drop if channel full)
	forward := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	unsubscribe := make([]func(), 0, len(streamedEvents))
	for _, eventType := range streamedEvents {
		if allowedTypes != nil && !allowedTypes[eventType] {
			continue
		}
		unsubscribe = append(unsubscribe, h.bus.Subscribe(eventType, forward))
	}
	defer func() {
		for _, u := range unsubscribe {
			u()
		}
	}()

	// The client never sends data frames. CloseRead keeps control frames
	// flowing in the background and cancels the context on disconnect.
	ctx := conn.CloseRead(r.Context())

	// Send initial connection message
	hello := &events.Event{Type: "connected", Timestamp: time.Now(), Module: "server"}
	if err := h.writeEvent(ctx, conn, hello); err != nil {
		return
	}

	// Heartbeat ticker to keep connection alive
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event stream")
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event := <-eventChan:
			h.log.Debug().
				Str("event_type", string(event.Type)).
				Msg("Sending event to client")

			if err := h.writeEvent(ctx, conn, event); err != nil {
				h.log.Debug().Err(err).Msg("Event write failed, closing stream")
				return
			}

		case <-heartbeat.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Heartbeat failed, closing stream")
				return
			}
		}
	}
}

// writeEvent sends one JSON frame with a bounded write deadline.
func (h *EventsHandler) writeEvent(ctx context.Context, conn *websocket.Conn, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (h *EventsHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *EventsHandler) untrack(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// CloseAll disconnects every streaming client, used at shutdown.
func (h *EventsHandler) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
