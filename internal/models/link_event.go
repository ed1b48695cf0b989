package models

import "time"

// Link journal event types.
const (
	EventConnect         = "CONNECT"
	EventDisconnect      = "DISCONNECT"
	EventLinkError       = "LINK_ERROR"
	EventWrite           = "WRITE"
	EventParamDiscovered = "PARAM_DISCOVERED"
	EventParseWarning    = "PARSE_WARNING"
	EventResize          = "RESIZE"
)

// LinkEvent is a single journal entry.
type LinkEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // CONNECT | DISCONNECT | LINK_ERROR | WRITE | ...
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
