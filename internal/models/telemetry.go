package models

// TelemetrySample is one plotted point.
type TelemetrySample struct {
	Sequence      int64   `json:"sequence"`
	Setpoint      float64 `json:"setpoint"`
	MeasuredInput float64 `json:"measured_input"`
}

// TelemetrySnapshot holds copies of the three parallel window series.
type TelemetrySnapshot struct {
	Sequence      []int64   `json:"sequence"`
	Setpoint      []float64 `json:"setpoint"`
	MeasuredInput []float64 `json:"measured_input"`
	Capacity      int       `json:"capacity"`
}

// AxisBounds are the chart limits for the current window contents.
type AxisBounds struct {
	XMin int64   `json:"x_min"`
	XMax int64   `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}
