package models

import "time"

// Parameter is a named control value discovered on the device link.
type Parameter struct {
	Key              string    `json:"key"`
	LastDeviceValue  string    `json:"last_device_value"`            // only ever set from received lines
	PendingUserValue string    `json:"pending_user_value,omitempty"` // staged by the operator, not yet sent
	HasPending       bool      `json:"has_pending"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
