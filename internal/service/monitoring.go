package service

import (
	"context"

	"pid_tuner/internal/models"
)

type MonitoringService struct {
	loop   *IngestionLoop
	window *TelemetryWindow
	diag   *DiagnosticLog
}

func NewMonitoringService(loop *IngestionLoop, window *TelemetryWindow, diag *DiagnosticLog) *MonitoringService {
	return &MonitoringService{loop: loop, window: window, diag: diag}
}

// Telemetry returns the current window with chart bounds. Bounds are zero
// and HasData false when nothing has been plotted yet.
func (s *MonitoringService) Telemetry() TelemetryView {
	bounds, ok := s.window.AxisBounds()
	return TelemetryView{
		Snapshot: s.window.Snapshot(),
		Bounds:   bounds,
		HasData:  ok,
		Link:     s.loop.Status(),
	}
}

// ResizeWindow goes through the loop so the status text and journal follow.
func (s *MonitoringService) ResizeWindow(ctx context.Context, n int) error {
	return s.loop.ResizeWindow(ctx, n)
}

// ApplyCapacity resizes the window to the capacity an operator typed.
// Rejected input leaves the capacity unchanged.
func (s *MonitoringService) ApplyCapacity(ctx context.Context, raw string) (int, error) {
	n, err := ParseCapacity(raw)
	if err != nil {
		s.loop.setMessage(invalidCapacityMessage)
		return 0, err
	}
	if err := s.loop.ResizeWindow(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *MonitoringService) Diagnostics() []models.DiagnosticLine {
	return s.diag.Lines()
}

// SubscribeParameters streams keys as the device reports them for the
// first time.
func (s *MonitoringService) SubscribeParameters(buffer int) (<-chan string, func()) {
	return s.loop.Subscribe(buffer)
}
