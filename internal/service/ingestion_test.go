package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"pid_tuner/internal/models"
	"pid_tuner/internal/parser"
	"pid_tuner/internal/transport"
)

type readResult struct {
	line string
	err  error
}

// fakeSession replays scripted reads; an empty script reads as a timeout.
type fakeSession struct {
	mu       sync.Mutex
	reads    []readResult
	written  []string
	writeErr error
	closed   bool
}

func (s *fakeSession) push(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		s.reads = append(s.reads, readResult{line: l})
	}
}

func (s *fakeSession) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, readResult{err: err})
}

func (s *fakeSession) ReadLine(time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", transport.ErrClosed
	}
	if len(s.reads) == 0 {
		return "", transport.ErrReadTimeout
	}
	r := s.reads[0]
	s.reads = s.reads[1:]
	return r.line, r.err
}

func (s *fakeSession) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.written = append(s.written, string(p))
	return len(p), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOpener struct {
	session *fakeSession
	err     error
	gotPort string
	gotBaud int
}

func (o *fakeOpener) Open(port string, baudRate int, _ time.Duration) (transport.Session, error) {
	o.gotPort, o.gotBaud = port, baudRate
	if o.err != nil {
		return nil, o.err
	}
	return o.session, nil
}

func (o *fakeOpener) Ports() ([]string, error) { return []string{"/dev/ttyUSB0"}, nil }

// journalRepo records appended link events.
type journalRepo struct {
	mu     sync.Mutex
	events []models.LinkEvent
}

func (j *journalRepo) Append(_ context.Context, e models.LinkEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	return nil
}

func (j *journalRepo) List(context.Context, time.Time, time.Time, string) ([]models.LinkEvent, error) {
	return nil, nil
}

func (j *journalRepo) types() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.events {
		out = append(out, e.Type)
	}
	return out
}

type storedRepo struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (s *storedRepo) Upsert(_ context.Context, key, value string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	s.values[key] = value
	return nil
}

func (s *storedRepo) List(context.Context) ([]models.StoredParameter, error) { return nil, nil }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type loopFixture struct {
	loop     *IngestionLoop
	session  *fakeSession
	opener   *fakeOpener
	registry *ParameterRegistry
	window   *TelemetryWindow
	diag     *DiagnosticLog
	journal  *journalRepo
	stored   *storedRepo
	clock    *fakeClock
}

func newLoopFixture(t *testing.T, grace time.Duration) *loopFixture {
	t.Helper()
	window, err := NewTelemetryWindow(4)
	if err != nil {
		t.Fatalf("NewTelemetryWindow: %v", err)
	}
	f := &loopFixture{
		session:  &fakeSession{},
		registry: NewParameterRegistry(nil),
		window:   window,
		diag:     NewDiagnosticLog(10),
		journal:  &journalRepo{},
		stored:   &storedRepo{},
		clock:    &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
	}
	f.opener = &fakeOpener{session: f.session}
	f.loop = NewIngestionLoop(IngestionDeps{
		Opener:   f.opener,
		Registry: f.registry,
		Window:   f.window,
		Diag:     f.diag,
		Events:   f.journal,
		Stored:   f.stored,
	}, IngestionConfig{StartupGrace: grace})
	f.loop.now = f.clock.Now
	return f
}

func (f *loopFixture) connect(t *testing.T) {
	t.Helper()
	if err := f.loop.Connect(context.Background(), "/dev/ttyUSB0", 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func (f *loopFixture) tick(t *testing.T) (TickResult, error) {
	t.Helper()
	return f.loop.Tick(context.Background())
}

func TestTick_IdleWithoutSession(t *testing.T) {
	f := newLoopFixture(t, 0)
	res, err := f.tick(t)
	if err != nil || res.Outcome != OutcomeIdle {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestConnect_UsesDefaultBaudRate(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	if f.opener.gotBaud != transport.DefaultBaudRate || f.opener.gotPort != "/dev/ttyUSB0" {
		t.Fatalf("opened %q at %d", f.opener.gotPort, f.opener.gotBaud)
	}
	st := f.loop.Status()
	if st.State != models.LinkSteady || st.Message != "Connected to /dev/ttyUSB0" || st.BaudRate != 9600 {
		t.Fatalf("status = %+v", st)
	}
}

func TestConnect_FailureReportsLinkOpen(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.opener.err = errors.New("no such device")

	err := f.loop.Connect(context.Background(), "/dev/ttyUSB9", 9600)
	if !errors.Is(err, ErrLinkOpen) {
		t.Fatalf("expected ErrLinkOpen, got %v", err)
	}
	st := f.loop.Status()
	if st.State != models.LinkDisconnected || !strings.HasPrefix(st.Message, "Connection error: ") {
		t.Fatalf("status = %+v", st)
	}
	if got := f.journal.types(); !reflect.DeepEqual(got, []string{models.EventLinkError}) {
		t.Fatalf("journal = %v", got)
	}
}

func TestConnect_SecondConnectRejected(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	if err := f.loop.Connect(context.Background(), "/dev/ttyUSB1", 9600); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestTick_GraceWindowDiscardsLines(t *testing.T) {
	f := newLoopFixture(t, 2*time.Second)
	f.connect(t)
	if st := f.loop.State(); st != models.LinkGrace {
		t.Fatalf("state = %s", st)
	}

	f.session.push("Setpoint:1,Input:2,Kp:3", "boot noise")
	f.clock.Advance(time.Second)
	for i := 0; i < 2; i++ {
		res, err := f.tick(t)
		if err != nil || res.Outcome != OutcomeGraceDiscarded {
			t.Fatalf("tick %d: %+v, %v", i, res, err)
		}
	}
	if f.registry.Len() != 0 || f.window.Len() != 0 || len(f.diag.Lines()) != 0 {
		t.Fatalf("grace lines must have no effect")
	}

	f.clock.Advance(time.Second)
	if st := f.loop.State(); st != models.LinkSteady {
		t.Fatalf("state = %s", st)
	}
	f.session.push("Setpoint:1,Input:2,Kp:3")
	res, err := f.tick(t)
	if err != nil || res.Outcome != OutcomeSample {
		t.Fatalf("after grace: %+v, %v", res, err)
	}
}

func TestTick_TelemetryLineEndToEnd(t *testing.T) {
	f := newLoopFixture(t, 0)
	updates, cancel := f.loop.Subscribe(8)
	defer cancel()
	f.connect(t)

	f.session.push("Setpoint:1.00,Input:0.95,Output:12,Kp:2.0")
	res, err := f.tick(t)
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if res.Outcome != OutcomeSample || res.Sample == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Sample.Setpoint != 1.0 || res.Sample.MeasuredInput != 0.95 || res.Sample.Sequence != 1 {
		t.Fatalf("sample = %+v", *res.Sample)
	}
	if !reflect.DeepEqual(res.NewKeys, []string{"Setpoint", "Kp"}) {
		t.Fatalf("new keys = %v", res.NewKeys)
	}

	kp, ok := f.registry.Get("Kp")
	if !ok || kp.LastDeviceValue != "2.0" {
		t.Fatalf("Kp = %+v", kp)
	}
	if !kp.FirstSeenAt.Equal(f.clock.Now()) {
		t.Fatalf("Kp first seen %v, want loop clock %v", kp.FirstSeenAt, f.clock.Now())
	}
	if _, ok := f.registry.Get("Setpoint"); !ok {
		t.Fatalf("Setpoint must be registered")
	}
	for _, k := range []string{"Input", "Output"} {
		if _, ok := f.registry.Get(k); ok {
			t.Fatalf("%s must not be registered", k)
		}
	}
	if f.window.Len() != 1 {
		t.Fatalf("window len = %d", f.window.Len())
	}

	for _, want := range []string{"Setpoint", "Kp"} {
		select {
		case got := <-updates:
			if got != want {
				t.Fatalf("update = %q, want %q", got, want)
			}
		default:
			t.Fatalf("missing update for %s", want)
		}
	}

	wantJournal := []string{models.EventConnect, models.EventParamDiscovered, models.EventParamDiscovered}
	if got := f.journal.types(); !reflect.DeepEqual(got, wantJournal) {
		t.Fatalf("journal = %v", got)
	}
	if f.stored.values["Kp"] != "2.0" || f.stored.values["Setpoint"] != "1.00" {
		t.Fatalf("stored = %v", f.stored.values)
	}

	// a second line only updates values
	f.session.push("Setpoint:1.00,Input:0.97,Output:11,Kp:2.5")
	res, err = f.tick(t)
	if err != nil || len(res.NewKeys) != 0 {
		t.Fatalf("second tick: %+v, %v", res, err)
	}
	if f.stored.values["Kp"] != "2.5" {
		t.Fatalf("changed value not persisted: %v", f.stored.values)
	}
}

func TestTick_NonTelemetryGoesToDiagnostics(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.session.push("boot mode:(3,6)")

	res, err := f.tick(t)
	if err != nil || res.Outcome != OutcomeDiagnostic {
		t.Fatalf("got %+v, %v", res, err)
	}
	lines := f.diag.Lines()
	if len(lines) != 1 || lines[0].Text != "boot mode:(3,6)" {
		t.Fatalf("diagnostics = %+v", lines)
	}
	if f.registry.Len() != 0 || f.window.Len() != 0 {
		t.Fatalf("non-telemetry line must not reach registry or window")
	}
}

func TestTick_NumericFailureKeepsParameters(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.session.push("Setpoint:abc,Input:1,Kp:3")

	res, err := f.tick(t)
	if res.Outcome != OutcomeParametersOnly || !parser.IsKind(err, parser.NumericFormat) {
		t.Fatalf("got %+v, %v", res, err)
	}
	if _, ok := f.registry.Get("Kp"); !ok {
		t.Fatalf("Kp should still be registered")
	}
	if f.window.Len() != 0 {
		t.Fatalf("no sample expected")
	}
	if st := f.loop.Status(); st.State != models.LinkSteady || !strings.HasPrefix(st.Message, "Read error: ") {
		t.Fatalf("status = %+v", st)
	}
}

func TestTick_TimeoutKeepsSession(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)

	res, err := f.tick(t)
	if err != nil || res.Outcome != OutcomeTimeout {
		t.Fatalf("got %+v, %v", res, err)
	}
	if f.session.isClosed() || f.loop.State() != models.LinkSteady {
		t.Fatalf("timeout must not close the link")
	}
}

func TestTick_ReadFailureClosesLinkAndKeepsHistory(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.session.push("Setpoint:1,Input:2,Kp:3")
	if _, err := f.tick(t); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	f.session.fail(errors.New("device unplugged"))
	res, err := f.tick(t)
	if res.Outcome != OutcomeLinkLost || !errors.Is(err, ErrLinkRead) {
		t.Fatalf("got %+v, %v", res, err)
	}
	if !f.session.isClosed() {
		t.Fatalf("session should be closed")
	}
	st := f.loop.Status()
	if st.State != models.LinkDisconnected || !strings.HasPrefix(st.Message, "Read error: ") {
		t.Fatalf("status = %+v", st)
	}
	if f.window.Len() != 1 || f.registry.Len() != 2 {
		t.Fatalf("history lost: window=%d registry=%d", f.window.Len(), f.registry.Len())
	}
	if res, err := f.tick(t); err != nil || res.Outcome != OutcomeIdle {
		t.Fatalf("after loss: %+v, %v", res, err)
	}
}

func TestWrite_RequiresOpenLink(t *testing.T) {
	f := newLoopFixture(t, 0)
	if err := f.loop.Write(context.Background(), "Kp", "2"); !errors.Is(err, ErrLinkNotOpen) {
		t.Fatalf("expected ErrLinkNotOpen, got %v", err)
	}
	if st := f.loop.Status(); st.Message != "Not connected" {
		t.Fatalf("message = %q", st.Message)
	}
}

func TestWrite_SendsCommandAndClearsPending(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.registry.StageUserEdit("Kp", "2.5")

	if err := f.loop.WritePending(context.Background(), "Kp"); err != nil {
		t.Fatalf("WritePending: %v", err)
	}
	if !reflect.DeepEqual(f.session.written, []string{"Kp:2.5\n"}) {
		t.Fatalf("written = %q", f.session.written)
	}
	if _, ok := f.registry.Pending("Kp"); ok {
		t.Fatalf("pending should be cleared")
	}
	if st := f.loop.Status(); st.Message != "Sent: Kp:2.5" {
		t.Fatalf("message = %q", st.Message)
	}

	if err := f.loop.WritePending(context.Background(), "Kp"); !errors.Is(err, ErrNothingStaged) {
		t.Fatalf("expected ErrNothingStaged, got %v", err)
	}
}

func TestWrite_TransportErrorKeepsPending(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.session.writeErr = errors.New("broken pipe")
	f.registry.StageUserEdit("Ki", "0.1")

	if err := f.loop.WritePending(context.Background(), "Ki"); err == nil {
		t.Fatalf("expected write error")
	}
	if v, ok := f.registry.Pending("Ki"); !ok || v != "0.1" {
		t.Fatalf("pending lost: %q, %v", v, ok)
	}
	if st := f.loop.Status(); !strings.HasPrefix(st.Message, "Send error: ") {
		t.Fatalf("message = %q", st.Message)
	}
}

func TestResizeWindow_StatusText(t *testing.T) {
	f := newLoopFixture(t, 0)
	ctx := context.Background()

	if err := f.loop.ResizeWindow(ctx, 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("expected ErrInvalidCapacity, got %v", err)
	}
	if st := f.loop.Status(); st.Message != "Invalid buffer size" || f.window.Capacity() != 4 {
		t.Fatalf("status = %+v, capacity = %d", st, f.window.Capacity())
	}

	if err := f.loop.ResizeWindow(ctx, 300); err != nil {
		t.Fatalf("ResizeWindow: %v", err)
	}
	if st := f.loop.Status(); st.Message != "Buffer size updated: 300" || f.window.Capacity() != 300 {
		t.Fatalf("status = %+v, capacity = %d", st, f.window.Capacity())
	}
}

func TestDisconnect_IdempotentAndKeepsBuffers(t *testing.T) {
	f := newLoopFixture(t, 0)
	ctx := context.Background()
	if err := f.loop.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect without session: %v", err)
	}

	f.connect(t)
	f.session.push("Setpoint:1,Input:2")
	if _, err := f.tick(t); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := f.loop.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !f.session.isClosed() || f.loop.State() != models.LinkDisconnected {
		t.Fatalf("link should be closed")
	}
	if f.window.Len() != 1 {
		t.Fatalf("window cleared on disconnect")
	}
}

func TestClose_EndsSubscriptionsAndBlocksConnect(t *testing.T) {
	f := newLoopFixture(t, 0)
	updates, cancel := f.loop.Subscribe(1)
	defer cancel()
	f.connect(t)

	f.loop.Close()
	if _, ok := <-updates; ok {
		t.Fatalf("subscription should be closed")
	}
	if !f.session.isClosed() || f.loop.State() != models.LinkClosed {
		t.Fatalf("loop should be closed")
	}
	if err := f.loop.Connect(context.Background(), "/dev/ttyUSB0", 0); !errors.Is(err, ErrLoopClosed) {
		t.Fatalf("expected ErrLoopClosed, got %v", err)
	}

	late, _ := f.loop.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatalf("subscribe after close should return a closed channel")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newLoopFixture(t, 0)
	f.connect(t)
	f.session.push("Setpoint:1,Input:2", "Setpoint:1,Input:3")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.loop.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for f.window.Len() < 2 {
		select {
		case <-deadline:
			t.Fatalf("loop did not ingest lines, window=%d", f.window.Len())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if !f.session.isClosed() {
		t.Fatalf("Run should close the session on exit")
	}
}

func TestIngestion_WithSimulator(t *testing.T) {
	registry := NewParameterRegistry(nil)
	window, _ := NewTelemetryWindow(10)
	loop := NewIngestionLoop(IngestionDeps{
		Opener:   transport.NewSimOpener(transport.SimConfig{EmitInterval: time.Millisecond}),
		Registry: registry,
		Window:   window,
	}, IngestionConfig{StartupGrace: 0, ReadTimeout: 20 * time.Millisecond})
	defer loop.Close()

	ctx := context.Background()
	if err := loop.Connect(ctx, "sim://pid", 0); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for i := 0; i < 100 && window.Len() == 0; i++ {
		if _, err := loop.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if window.Len() == 0 {
		t.Fatalf("no telemetry from simulator")
	}
	for _, k := range []string{"Setpoint", "Kp", "Ki", "Kd"} {
		if _, ok := registry.Get(k); !ok {
			t.Fatalf("%s not discovered", k)
		}
	}

	if err := loop.Write(ctx, "Kp", "4.5"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i := 0; i < 100; i++ {
		if _, err := loop.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if p, _ := registry.Get("Kp"); p.LastDeviceValue == "4.50" {
			return
		}
	}
	t.Fatalf("device did not report the new Kp")
}
