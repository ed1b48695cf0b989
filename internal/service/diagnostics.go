package service

import (
	"sync"
	"time"

	"pid_tuner/internal/models"
)

// DefaultDiagnosticsCapacity is the number of raw lines kept.
const DefaultDiagnosticsCapacity = 50

// DiagnosticLog keeps the most recent non-telemetry lines.
type DiagnosticLog struct {
	mu    sync.Mutex
	lines []models.DiagnosticLine
	limit int
}

func NewDiagnosticLog(limit int) *DiagnosticLog {
	if limit <= 0 {
		limit = DefaultDiagnosticsCapacity
	}
	return &DiagnosticLog{limit: limit}
}

func (d *DiagnosticLog) Add(at time.Time, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.lines) == d.limit {
		copy(d.lines, d.lines[1:])
		d.lines = d.lines[:d.limit-1]
	}
	d.lines = append(d.lines, models.DiagnosticLine{ReceivedAt: at.UTC(), Text: text})
}

// Lines returns a copy, oldest first.
func (d *DiagnosticLog) Lines() []models.DiagnosticLine {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.DiagnosticLine(nil), d.lines...)
}
