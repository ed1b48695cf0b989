package models

import "time"

// Link states.
const (
	LinkDisconnected = "DISCONNECTED"
	LinkGrace        = "CONNECTED_GRACE"
	LinkSteady       = "CONNECTED"
	LinkClosed       = "CLOSED"
)

// LinkStatus is the observable state of the device session.
type LinkStatus struct {
	State       string    `json:"state"`
	Port        string    `json:"port,omitempty"`
	BaudRate    int       `json:"baud_rate,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitempty"`
	Message     string    `json:"message"` // last status text, e.g. "Sent: Kp:2.0"
}

// DiagnosticLine is a raw inbound line that was not telemetry.
type DiagnosticLine struct {
	ReceivedAt time.Time `json:"received_at"`
	Text       string    `json:"text"`
}

// StoredParameter is the last value of a parameter seen in any session.
type StoredParameter struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
