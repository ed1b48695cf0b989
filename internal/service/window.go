package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"pid_tuner/internal/models"
)

// DefaultWindowCapacity is the initial number of plotted samples.
const DefaultWindowCapacity = 200

// axisPadding is the fraction of the y range added above and below.
const axisPadding = 0.1

// ErrInvalidCapacity is returned for a capacity that is not a positive integer.
var ErrInvalidCapacity = errors.New("invalid capacity: must be a positive integer")

// TelemetryWindow is a fixed-capacity FIFO of samples. The oldest sample is
// evicted when a new one arrives at capacity.
type TelemetryWindow struct {
	mu       sync.RWMutex
	items    []models.TelemetrySample
	capacity int
	size     int
	head     int // next write position
	nextSeq  int64
}

func NewTelemetryWindow(capacity int) (*TelemetryWindow, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &TelemetryWindow{
		items:    make([]models.TelemetrySample, capacity),
		capacity: capacity,
	}, nil
}

// Append stores sample, evicting the oldest one when full.
func (w *TelemetryWindow) Append(sample models.TelemetrySample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.append(sample)
}

// Record appends a sample with the next sequence index and returns it.
func (w *TelemetryWindow) Record(setpoint, measured float64) models.TelemetrySample {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSeq++
	s := models.TelemetrySample{Sequence: w.nextSeq, Setpoint: setpoint, MeasuredInput: measured}
	w.append(s)
	return s
}

func (w *TelemetryWindow) append(s models.TelemetrySample) {
	w.items[w.head] = s
	w.head = (w.head + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
	if s.Sequence > w.nextSeq {
		w.nextSeq = s.Sequence
	}
}

// Resize changes the capacity and keeps the newest min(len, n) samples in
// order. A non-positive n leaves the window unchanged.
func (w *TelemetryWindow) Resize(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, n)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	kept := w.ordered()
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	items := make([]models.TelemetrySample, n)
	copy(items, kept)
	w.items = items
	w.capacity = n
	w.size = len(kept)
	w.head = len(kept) % n
	return nil
}

// ParseCapacity accepts the textual capacity an operator typed.
func ParseCapacity(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCapacity, raw)
	}
	return n, nil
}

// Len returns the number of stored samples.
func (w *TelemetryWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Capacity returns the current capacity.
func (w *TelemetryWindow) Capacity() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.capacity
}

// Snapshot returns copies of the three parallel series, oldest first.
func (w *TelemetryWindow) Snapshot() models.TelemetrySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := models.TelemetrySnapshot{
		Sequence:      make([]int64, 0, w.size),
		Setpoint:      make([]float64, 0, w.size),
		MeasuredInput: make([]float64, 0, w.size),
		Capacity:      w.capacity,
	}
	for _, s := range w.ordered() {
		snap.Sequence = append(snap.Sequence, s.Sequence)
		snap.Setpoint = append(snap.Setpoint, s.Setpoint)
		snap.MeasuredInput = append(snap.MeasuredInput, s.MeasuredInput)
	}
	return snap
}

// AxisBounds returns chart limits, or false when the window is empty and the
// axes should be left alone. The y range is padded by 10% on both sides;
// a flat series gets no padding.
func (w *TelemetryWindow) AxisBounds() (models.AxisBounds, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.size == 0 {
		return models.AxisBounds{}, false
	}

	samples := w.ordered()
	b := models.AxisBounds{
		XMin: samples[0].Sequence,
		XMax: samples[len(samples)-1].Sequence,
		YMin: samples[0].Setpoint,
		YMax: samples[0].Setpoint,
	}
	for _, s := range samples {
		b.YMin = min(b.YMin, s.Setpoint, s.MeasuredInput)
		b.YMax = max(b.YMax, s.Setpoint, s.MeasuredInput)
	}
	pad := (b.YMax - b.YMin) * axisPadding
	b.YMin -= pad
	b.YMax += pad
	return b, true
}

// ordered copies the ring contents oldest first. Caller holds the lock.
func (w *TelemetryWindow) ordered() []models.TelemetrySample {
	out := make([]models.TelemetrySample, w.size)
	start := (w.head - w.size + w.capacity) % w.capacity
	for i := 0; i < w.size; i++ {
		out[i] = w.items[(start+i)%w.capacity]
	}
	return out
}
