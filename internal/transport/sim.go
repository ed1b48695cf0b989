package transport

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SimScheme prefixes simulator port identifiers.
const SimScheme = "sim://"

// ----------- Simulated plant constants -----------
const (
	AmbientC        = 20.0  // plant rests here with zero output
	PlantGain       = 0.4   // °C per output unit at steady state
	PlantTauSec     = 8.0   // first-order time constant
	OutputMin       = 0.0   // PWM floor
	OutputMax       = 255.0 // PWM ceiling
	DefaultSetpoint = 60.0
	DefaultKp       = 2.0
	DefaultKi       = 0.5
	DefaultKd       = 1.0

	defaultEmitInterval = 100 * time.Millisecond
)

var defaultBootLines = []string{
	"\x00\xffets Jan  8 2013,rst cause:2",
	"boot mode:(3,6)",
	"OLED init ok",
	"PID ready",
}

// SimConfig tunes the simulated controller.
type SimConfig struct {
	EmitInterval time.Duration
	BootLines    []string
	Now          func() time.Time
	Sleep        func(time.Duration)
}

// SimOpener opens simulated controllers.
type SimOpener struct {
	cfg SimConfig
}

func NewSimOpener(cfg SimConfig) *SimOpener {
	if cfg.EmitInterval == 0 {
		cfg.EmitInterval = defaultEmitInterval
	}
	if cfg.BootLines == nil {
		cfg.BootLines = defaultBootLines
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &SimOpener{cfg: cfg}
}

func (o *SimOpener) Open(port string, _ int, _ time.Duration) (Session, error) {
	if port != SimScheme+"pid" {
		return nil, fmt.Errorf("open %s: unknown simulator", port)
	}
	return NewSimDevice(o.cfg), nil
}

func (o *SimOpener) Ports() ([]string, error) {
	return []string{SimScheme + "pid"}, nil
}

// SimDevice is a PID loop driving a first-order thermal plant. It prints
// telemetry in the firmware's line format and accepts "Key:Value\n" writes
// for Setpoint, Kp, Ki and Kd.
type SimDevice struct {
	cfg SimConfig

	mu       sync.Mutex
	closed   bool
	boot     []string
	lastStep time.Time
	nextEmit time.Time

	setpoint, input, output float64
	kp, ki, kd              float64
	integral, prevErr       float64
}

func NewSimDevice(cfg SimConfig) *SimDevice {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	now := cfg.Now()
	return &SimDevice{
		cfg:      cfg,
		boot:     append([]string(nil), cfg.BootLines...),
		lastStep: now,
		nextEmit: now,
		setpoint: DefaultSetpoint,
		input:    AmbientC,
		kp:       DefaultKp,
		ki:       DefaultKi,
		kd:       DefaultKd,
	}
}

// ReadLine returns boot chatter first, then one telemetry line per emit
// interval. It waits at most timeout for the next line.
func (d *SimDevice) ReadLine(timeout time.Duration) (string, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrClosed
	}
	if len(d.boot) > 0 {
		line := d.boot[0]
		d.boot = d.boot[1:]
		d.mu.Unlock()
		return line, nil
	}
	wait := d.nextEmit.Sub(d.cfg.Now())
	d.mu.Unlock()

	if wait > 0 {
		if wait > timeout {
			d.cfg.Sleep(timeout)
			return "", ErrReadTimeout
		}
		d.cfg.Sleep(wait)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrClosed
	}
	now := d.cfg.Now()
	d.step(now.Sub(d.lastStep).Seconds())
	d.lastStep = now
	d.nextEmit = now.Add(d.cfg.EmitInterval)
	return d.line(), nil
}

// Write applies every complete "Key:Value" command in p. Unknown keys and
// bad numbers are ignored, as the firmware does.
func (d *SimDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	for _, cmd := range strings.Split(string(p), "\n") {
		key, raw, ok := strings.Cut(strings.TrimSpace(cmd), ":")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Setpoint":
			d.setpoint = v
		case "Kp":
			d.kp = v
		case "Ki":
			d.ki = v
			d.integral = 0
		case "Kd":
			d.kd = v
		}
	}
	return len(p), nil
}

func (d *SimDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// step advances controller and plant by elapsed seconds.
func (d *SimDevice) step(elapsed float64) {
	if elapsed <= 0 {
		return
	}
	e := d.setpoint - d.input
	d.integral += e * elapsed
	deriv := (e - d.prevErr) / elapsed
	d.prevErr = e

	d.output = clamp(d.kp*e+d.ki*d.integral+d.kd*deriv, OutputMin, OutputMax)
	// anti-windup: stop integrating while saturated
	if d.output == OutputMin || d.output == OutputMax {
		d.integral -= e * elapsed
	}

	target := AmbientC + PlantGain*d.output
	d.input += (target - d.input) * minFloat(elapsed/PlantTauSec, 1)
}

func (d *SimDevice) line() string {
	return fmt.Sprintf("Setpoint:%.2f,Input:%.2f,Output:%.0f,Kp:%.2f,Ki:%.2f,Kd:%.2f",
		d.setpoint, d.input, d.output, d.kp, d.ki, d.kd)
}

// helpers
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
