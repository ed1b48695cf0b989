package service

import (
	"time"

	"pid_tuner/internal/models"
)

// LogFilter supports journal filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "CONNECT", "DISCONNECT", "LINK_ERROR", "WRITE", "PARAM_DISCOVERED", "PARSE_WARNING", "RESIZE"
}

// TelemetryView is what a chart needs to redraw.
type TelemetryView struct {
	Snapshot models.TelemetrySnapshot `json:"snapshot"`
	Bounds   models.AxisBounds        `json:"bounds"`
	HasData  bool                     `json:"has_data"`
	Link     models.LinkStatus        `json:"link"`
}
