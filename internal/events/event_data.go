package events

import (
	"encoding/json"
	"time"
)

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// PortfolioChangedData contains data for PortfolioChanged events
type PortfolioChangedData struct {
	Action   string `json:"action"` // "added", "updated", "removed", "reordered", "replaced"
	Symbol   string `json:"symbol,omitempty"`
	Holdings int    `json:"holdings,omitempty"`
}

// EventType returns the event type for PortfolioChangedData
func (d *PortfolioChangedData) EventType() EventType {
	return PortfolioChanged
}

// WatchlistChangedData contains data for WatchlistChanged events
type WatchlistChangedData struct {
	Action string `json:"action"` // "added", "removed", "reordered"
	Symbol string `json:"symbol,omitempty"`
	Items  int    `json:"items,omitempty"`
}

// EventType returns the event type for WatchlistChangedData
func (d *WatchlistChangedData) EventType() EventType {
	return WatchlistChanged
}

// QuotesRefreshedData contains data for QuotesRefreshed events
type QuotesRefreshedData struct {
	Symbols []string `json:"symbols"`
	Failed  int      `json:"failed,omitempty"`
}

// EventType returns the event type for QuotesRefreshedData
func (d *QuotesRefreshedData) EventType() EventType {
	return QuotesRefreshed
}

// SessionChangedData contains data for SessionChanged events
type SessionChangedData struct {
	Mode     string `json:"mode"` // "guest" or "authenticated"
	Identity string `json:"identity"`
}

// EventType returns the event type for SessionChangedData
func (d *SessionChangedData) EventType() EventType {
	return SessionChanged
}

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType {
	return ErrorOccurred
}

// Event represents an event with typed data
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// MarshalJSON customizes JSON serialization for Event
func (e *Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	// Marshal the data separately
	if e.Data != nil {
		dataBytes, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = dataBytes
	}

	return json.Marshal(aux)
}

// UnmarshalJSON customizes JSON deserialization for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Data json.RawMessage `json:"data"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	// Unmarshal data based on event type
	if len(aux.Data) > 0 {
		var eventData EventData
		switch aux.Type {
		case PortfolioChanged:
			eventData = &PortfolioChangedData{}
		case WatchlistChanged:
			eventData = &WatchlistChangedData{}
		case QuotesRefreshed:
			eventData = &QuotesRefreshedData{}
		case SessionChanged:
			eventData = &SessionChangedData{}
		case ErrorOccurred:
			eventData = &ErrorEventData{}
		default:
			// For unknown types, use raw map
			var rawData map[string]interface{}
			if err := json.Unmarshal(aux.Data, &rawData); err != nil {
				return err
			}
			eventData = &GenericEventData{Type: aux.Type, Data: rawData}
		}

		if err := json.Unmarshal(aux.Data, eventData); err != nil {
			return err
		}
		e.Data = eventData
	}

	return nil
}

// GenericEventData is a fallback for events that don't have a specific type
type GenericEventData struct {
	Type EventType              `json:"-"`
	Data map[string]interface{} `json:"-"`
}

// EventType returns the event type for GenericEventData
func (d *GenericEventData) EventType() EventType {
	return d.Type
}

// MarshalJSON customizes JSON serialization for GenericEventData
func (d *GenericEventData) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Data)
}

// UnmarshalJSON customizes JSON deserialization for GenericEventData
func (d *GenericEventData) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &d.Data)
}
