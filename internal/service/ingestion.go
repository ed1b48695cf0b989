package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pid_tuner/internal/logger"
	"pid_tuner/internal/models"
	"pid_tuner/internal/parser"
	"pid_tuner/internal/repository"
	"pid_tuner/internal/transport"

	"github.com/google/uuid"
)

// Ingestion defaults.
const (
	DefaultStartupGrace = 2 * time.Second
	DefaultReadTimeout  = 100 * time.Millisecond
	DefaultTickInterval = 200 * time.Millisecond
)

const invalidCapacityMessage = "Invalid buffer size"

var (
	ErrLinkOpen         = errors.New("link open failed")
	ErrLinkRead         = errors.New("link read failed")
	ErrLinkNotOpen      = errors.New("link not open")
	ErrAlreadyConnected = errors.New("link already open")
	ErrLoopClosed       = errors.New("ingestion loop closed")
	ErrNothingStaged    = errors.New("no staged value for parameter")
)

// Outcome describes what a single tick did.
type Outcome int

const (
	OutcomeIdle           Outcome = iota // no session
	OutcomeTimeout                       // no complete line within the read timeout
	OutcomeGraceDiscarded                // line dropped during the startup grace window
	OutcomeDiagnostic                    // non-telemetry line sent to the diagnostic log
	OutcomeSample                        // registry updated and sample appended
	OutcomeParametersOnly                // registry updated, numeric fields unusable
	OutcomeLinkLost                      // transport failed, session closed
)

// TickResult reports one tick.
type TickResult struct {
	Outcome Outcome
	Line    string
	NewKeys []string
	Sample  *models.TelemetrySample
}

// IngestionConfig holds the link timing knobs.
type IngestionConfig struct {
	BaudRate     int
	ReadTimeout  time.Duration
	StartupGrace time.Duration
}

// IngestMetrics receives ingestion counters. Implementations must be safe for
// concurrent use.
type IngestMetrics interface {
	LineRead()
	GraceDiscarded()
	ParseFailure(kind string)
	SampleAppended()
	WindowSize(windowLen, windowCap int)
	ParametersDiscovered(n int)
	CommandSent()
	LinkError()
	LinkUp(up bool)
}

type nopMetrics struct{}

func (nopMetrics) LineRead() {}
func (nopMetrics) GraceDiscarded() {}
func (nopMetrics) ParseFailure(string) {}
func (nopMetrics) SampleAppended() {}
func (nopMetrics) WindowSize(int, int) {}
func (nopMetrics) ParametersDiscovered(int) {}
func (nopMetrics) CommandSent() {}
func (nopMetrics) LinkError() {}
func (nopMetrics) LinkUp(bool) {}

// IngestionLoop owns the device session. It is the only writer of the
// registry and the window; one Tick reads at most one line.
type IngestionLoop struct {
	opener   transport.Opener
	registry *ParameterRegistry
	window   *TelemetryWindow
	diag     *DiagnosticLog
	events   repository.EventRepo     // optional
	stored   repository.ParameterRepo // optional
	metrics  IngestMetrics
	log      *logger.Logger
	cfg      IngestionConfig
	now      func() time.Time

	mu          sync.Mutex
	session     transport.Session
	port        string
	baudRate    int
	connectedAt time.Time
	closed      bool
	message     string

	subMu sync.Mutex
	subs  map[chan string]struct{}
}

// IngestionDeps groups the loop collaborators. Events, Stored and Metrics
// may be nil.
type IngestionDeps struct {
	Opener   transport.Opener
	Registry *ParameterRegistry
	Window   *TelemetryWindow
	Diag     *DiagnosticLog
	Events   repository.EventRepo
	Stored   repository.ParameterRepo
	Metrics  IngestMetrics
	Log      *logger.Logger
}

func NewIngestionLoop(deps IngestionDeps, cfg IngestionConfig) *IngestionLoop {
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = transport.DefaultBaudRate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.StartupGrace < 0 {
		cfg.StartupGrace = DefaultStartupGrace
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Diag == nil {
		deps.Diag = NewDiagnosticLog(DefaultDiagnosticsCapacity)
	}
	return &IngestionLoop{
		opener:   deps.Opener,
		registry: deps.Registry,
		window:   deps.Window,
		diag:     deps.Diag,
		events:   deps.Events,
		stored:   deps.Stored,
		metrics:  deps.Metrics,
		log:      deps.Log,
		cfg:      cfg,
		now:      time.Now,
		message:  "Not connected",
		subs:     make(map[chan string]struct{}),
	}
}

// Connect opens a session on port. A zero baudRate uses the configured one.
func (l *IngestionLoop) Connect(ctx context.Context, port string, baudRate int) error {
	if baudRate <= 0 {
		baudRate = l.cfg.BaudRate
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	if l.session != nil {
		l.mu.Unlock()
		return ErrAlreadyConnected
	}
	s, err := l.opener.Open(port, baudRate, l.cfg.ReadTimeout)
	if err != nil {
		l.message = "Connection error: " + err.Error()
		l.mu.Unlock()

		l.metrics.LinkError()
		l.log.Errorw("link_open_failed", "port", port, "baud_rate", baudRate, "err", err)
		l.journal(ctx, models.EventLinkError, "Connection failed", map[string]any{"port": port, "err": err.Error()})
		return fmt.Errorf("%w: %w", ErrLinkOpen, err)
	}
	l.session = s
	l.port = port
	l.baudRate = baudRate
	l.connectedAt = l.now()
	l.message = "Connected to " + port
	l.mu.Unlock()

	l.metrics.LinkUp(true)
	l.log.Infow("link_opened", "port", port, "baud_rate", baudRate, "grace", l.cfg.StartupGrace, "operator", operatorName(ctx))
	l.journal(ctx, models.EventConnect, "Connected to "+port, map[string]any{"port": port, "baud_rate": baudRate})
	return nil
}

// Disconnect closes the session if one is open. History is kept.
func (l *IngestionLoop) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	if l.session == nil {
		l.mu.Unlock()
		return nil
	}
	port := l.port
	err := l.closeLocked("Disconnected")
	l.mu.Unlock()

	l.log.Infow("link_closed", "port", port)
	l.journal(ctx, models.EventDisconnect, "Disconnected from "+port, map[string]any{"port": port})
	if err != nil {
		return fmt.Errorf("close %s: %w", port, err)
	}
	return nil
}

// Tick performs one bounded read and routes the line.
func (l *IngestionLoop) Tick(ctx context.Context) (TickResult, error) {
	l.mu.Lock()
	s, started := l.session, l.connectedAt
	l.mu.Unlock()
	if s == nil {
		return TickResult{Outcome: OutcomeIdle}, nil
	}

	line, err := s.ReadLine(l.cfg.ReadTimeout)

	l.mu.Lock()
	if l.session != s {
		// closed while reading
		l.mu.Unlock()
		return TickResult{Outcome: OutcomeIdle}, nil
	}
	if err != nil {
		if errors.Is(err, transport.ErrReadTimeout) {
			l.mu.Unlock()
			return TickResult{Outcome: OutcomeTimeout}, nil
		}
		port := l.port
		_ = l.closeLocked("Read error: " + err.Error())
		l.mu.Unlock()

		l.metrics.LinkError()
		l.journal(ctx, models.EventLinkError, "Link lost", map[string]any{"port": port, "err": err.Error()})
		return TickResult{Outcome: OutcomeLinkLost}, fmt.Errorf("%w: %s: %w", ErrLinkRead, port, err)
	}
	now := l.now()
	inGrace := now.Sub(started) < l.cfg.StartupGrace
	l.mu.Unlock()

	l.metrics.LineRead()
	if inGrace {
		l.metrics.GraceDiscarded()
		return TickResult{Outcome: OutcomeGraceDiscarded, Line: line}, nil
	}
	return l.route(ctx, now, line)
}

func (l *IngestionLoop) route(ctx context.Context, now time.Time, line string) (TickResult, error) {
	rec, err := parser.Parse(line)
	if err != nil {
		l.metrics.ParseFailure(parser.NotTelemetry.String())
		l.diag.Add(now, line)
		return TickResult{Outcome: OutcomeDiagnostic, Line: line}, nil
	}

	created, changed := l.registry.ObserveChanges(rec, now)
	if len(created) > 0 {
		l.metrics.ParametersDiscovered(len(created))
		l.log.Infow("parameters_discovered", "keys", created)
		l.publish(created)
		for _, k := range created {
			v, _ := rec.Get(k)
			l.journal(ctx, models.EventParamDiscovered, "Parameter "+k+" discovered", map[string]any{"key": k, "value": v})
		}
	}
	l.persist(ctx, rec, now, created, changed)

	setpoint, measured, err := rec.Values()
	if err != nil {
		l.metrics.ParseFailure(parser.NumericFormat.String())
		l.setMessage("Read error: " + err.Error())
		l.log.Warnw("line_numeric_format", "line", line, "err", err)
		l.journal(ctx, models.EventParseWarning, err.Error(), map[string]any{"line": line})
		return TickResult{Outcome: OutcomeParametersOnly, Line: line, NewKeys: created}, err
	}

	sample := l.window.Record(setpoint, measured)
	l.metrics.SampleAppended()
	l.metrics.WindowSize(l.window.Len(), l.window.Capacity())
	return TickResult{Outcome: OutcomeSample, Line: line, NewKeys: created, Sample: &sample}, nil
}

// Write sends "{key}:{value}\n" to the device.
func (l *IngestionLoop) Write(ctx context.Context, key, value string) error {
	cmd := l.registry.BuildWriteCommand(key, value)

	l.mu.Lock()
	if l.session == nil {
		l.message = "Not connected"
		l.mu.Unlock()
		return ErrLinkNotOpen
	}
	_, err := l.session.Write([]byte(cmd))
	if err != nil {
		l.message = "Send error: " + err.Error()
		l.mu.Unlock()
		l.metrics.LinkError()
		l.log.Errorw("link_write_failed", "key", key, "err", err)
		return fmt.Errorf("write %s: %w", key, err)
	}
	l.message = "Sent: " + key + ":" + value
	l.mu.Unlock()

	l.registry.ClearPending(key)
	l.metrics.CommandSent()
	l.log.Infow("parameter_sent", "key", key, "value", value, "operator", operatorName(ctx))
	l.journal(ctx, models.EventWrite, "Sent "+key+":"+value, map[string]any{"key": key, "value": value})
	return nil
}

// WritePending sends the staged value of key.
func (l *IngestionLoop) WritePending(ctx context.Context, key string) error {
	v, ok := l.registry.Pending(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNothingStaged, key)
	}
	return l.Write(ctx, key, v)
}

// ResizeWindow changes the window capacity. An invalid capacity is
// reported and the window keeps its current capacity.
func (l *IngestionLoop) ResizeWindow(ctx context.Context, n int) error {
	prev := l.window.Capacity()
	if err := l.window.Resize(n); err != nil {
		l.setMessage(invalidCapacityMessage)
		return err
	}
	l.setMessage(fmt.Sprintf("Buffer size updated: %d", n))
	l.metrics.WindowSize(l.window.Len(), n)
	l.journal(ctx, models.EventResize, fmt.Sprintf("Window resized to %d", n), map[string]any{"from": prev, "to": n})
	return nil
}

// State returns the current link state.
func (l *IngestionLoop) State() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// Status returns the observable link status.
func (l *IngestionLoop) Status() models.LinkStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return models.LinkStatus{
		State:       l.stateLocked(),
		Port:        l.port,
		BaudRate:    l.baudRate,
		ConnectedAt: l.connectedAt,
		Message:     l.message,
	}
}

// Ports lists the ports the opener can reach.
func (l *IngestionLoop) Ports() ([]string, error) {
	return l.opener.Ports()
}

// Subscribe returns a channel of newly discovered parameter keys. Keys are
// dropped for a subscriber whose buffer is full. The channel is closed by
// the returned cancel func or when the loop closes.
func (l *IngestionLoop) Subscribe(buffer int) (<-chan string, func()) {
	ch := make(chan string, buffer)
	l.subMu.Lock()
	if l.subs == nil {
		close(ch)
		l.subMu.Unlock()
		return ch, func() {}
	}
	l.subs[ch] = struct{}{}
	l.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subMu.Lock()
			defer l.subMu.Unlock()
			if _, ok := l.subs[ch]; ok {
				delete(l.subs, ch)
				close(ch)
			}
		})
	}
}

// Run ticks at the given interval until ctx is canceled, then closes the
// session. No timers outlive Run.
func (l *IngestionLoop) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	t := time.NewTicker(tick)
	defer t.Stop()
	defer l.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := l.Tick(ctx)
			if err == nil {
				continue
			}
			switch res.Outcome {
			case OutcomeLinkLost:
				l.log.Errorw("link_read_failed", "err", err)
			case OutcomeParametersOnly:
				// already logged as a warning
			default:
				l.log.Errorw("ingestion_tick_failed", "err", err)
			}
		}
	}
}

// Close closes any session and ends all subscriptions. The loop cannot be
// reconnected afterwards.
func (l *IngestionLoop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		if l.session != nil {
			_ = l.closeLocked("Closed")
		}
		l.message = "Closed"
	}
	l.mu.Unlock()

	l.subMu.Lock()
	for ch := range l.subs {
		close(ch)
	}
	l.subs = nil
	l.subMu.Unlock()
}

// closeLocked drops the session; buffers and registry are kept.
func (l *IngestionLoop) closeLocked(msg string) error {
	err := l.session.Close()
	l.session = nil
	l.connectedAt = time.Time{}
	l.message = msg
	l.metrics.LinkUp(false)
	return err
}

func (l *IngestionLoop) stateLocked() string {
	switch {
	case l.closed:
		return models.LinkClosed
	case l.session == nil:
		return models.LinkDisconnected
	case l.now().Sub(l.connectedAt) < l.cfg.StartupGrace:
		return models.LinkGrace
	default:
		return models.LinkSteady
	}
}

func (l *IngestionLoop) setMessage(msg string) {
	l.mu.Lock()
	l.message = msg
	l.mu.Unlock()
}

func (l *IngestionLoop) publish(keys []string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for ch := range l.subs {
		for _, k := range keys {
			select {
			case ch <- k:
			default:
			}
		}
	}
}

// persist upserts new and changed device values. Store failures are logged
// only.
func (l *IngestionLoop) persist(ctx context.Context, rec parser.Record, at time.Time, keys ...[]string) {
	if l.stored == nil {
		return
	}
	for _, group := range keys {
		for _, k := range group {
			v, _ := rec.Get(k)
			if err := l.stored.Upsert(ctx, k, v, at); err != nil {
				l.log.Warnw("parameter_store_failed", "key", k, "err", err)
			}
		}
	}
}

// journal appends a link event, attributed to the operator in ctx if any.
// Journal failures never affect the link.
func (l *IngestionLoop) journal(ctx context.Context, typ, desc string, meta map[string]any) {
	if l.events == nil {
		return
	}
	err := l.events.Append(ctx, models.LinkEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  l.now().UTC(),
		Type:        typ,
		Description: desc,
		Metadata:    attribute(ctx, meta),
	})
	if err != nil {
		l.log.Warnw("journal_append_failed", "type", typ, "err", err)
	}
}
