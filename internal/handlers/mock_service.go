package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pid_tuner/internal/models"
	"pid_tuner/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID    int
	signUpErr   error
	signInToken string
	signInErr   error
	parseOp     models.Operator
	parseErr    error

	lastSignUpUsername string
	lastSignInUsername string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) SignIn(ctx context.Context, username, password string) (string, error) {
	m.lastSignInUsername = username
	return m.signInToken, m.signInErr
}
func (m *mockAuth) ParseToken(token string) (models.Operator, error) {
	m.lastParseToken = token
	return m.parseOp, m.parseErr
}

// actedBy returns the operator a service call was made for.
func actedBy(ctx context.Context) string {
	op, _ := service.OperatorFrom(ctx)
	return op.Username
}

type mockLink struct {
	connectErr    error
	disconnectErr error
	status        models.LinkStatus
	ports         []string
	portsErr      error

	lastPort       string
	lastBaud       int
	lastOperator   string
	connectCalls   int
	disconnectCall int
}

func (m *mockLink) Connect(ctx context.Context, port string, baudRate int) error {
	m.connectCalls++
	m.lastPort = port
	m.lastBaud = baudRate
	m.lastOperator = actedBy(ctx)
	return m.connectErr
}
func (m *mockLink) Disconnect(ctx context.Context) error {
	m.disconnectCall++
	m.lastOperator = actedBy(ctx)
	return m.disconnectErr
}
func (m *mockLink) Status() models.LinkStatus { return m.status }
func (m *mockLink) Ports() ([]string, error) { return m.ports, m.portsErr }

type mockMonitoring struct {
	mu       sync.Mutex
	view     service.TelemetryView
	lines    []models.DiagnosticLine
	applyN   int
	applyErr error
	lastRaw  string
	lastOp   string
	updates  chan string
}

func (m *mockMonitoring) Telemetry() service.TelemetryView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}
func (m *mockMonitoring) ResizeWindow(ctx context.Context, n int) error {
	_, err := m.ApplyCapacity(ctx, strconv.Itoa(n))
	return err
}
func (m *mockMonitoring) ApplyCapacity(ctx context.Context, raw string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRaw = raw
	m.lastOp = actedBy(ctx)
	return m.applyN, m.applyErr
}
func (m *mockMonitoring) Diagnostics() []models.DiagnosticLine { return m.lines }
func (m *mockMonitoring) SubscribeParameters(buffer int) (<-chan string, func()) {
	if m.updates == nil {
		m.updates = make(chan string, buffer)
	}
	return m.updates, func() {}
}

type mockParameters struct {
	params    []models.Parameter
	stored    []models.StoredParameter
	storedErr error
	sendErr   error

	staged   map[string]string
	sent     []string
	sentKeys []string
	sentBy   []string
}

func (m *mockParameters) ListParameters() []models.Parameter { return m.params }
func (m *mockParameters) StageParameter(key, value string) {
	if m.staged == nil {
		m.staged = map[string]string{}
	}
	m.staged[key] = value
}
func (m *mockParameters) SendParameter(ctx context.Context, key, value string) error {
	m.sent = append(m.sent, key+":"+value)
	m.sentBy = append(m.sentBy, actedBy(ctx))
	return m.sendErr
}
func (m *mockParameters) SendStaged(ctx context.Context, key string) error {
	m.sentKeys = append(m.sentKeys, key)
	m.sentBy = append(m.sentBy, actedBy(ctx))
	if m.sendErr != nil {
		return m.sendErr
	}
	if _, ok := m.staged[key]; !ok {
		return service.ErrNothingStaged
	}
	return nil
}
func (m *mockParameters) StoredParameters(ctx context.Context) ([]models.StoredParameter, error) {
	return m.stored, m.storedErr
}

type mockEventLog struct {
	resp     []models.LinkEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.LinkEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

// testOperator is who every bearer token resolves to in newAuthedService.
var testOperator = models.Operator{ID: 1, Username: "bench"}

// newAuthedService returns a Service whose token check accepts any bearer.
func newAuthedService() (*service.Service, *mockLink, *mockMonitoring, *mockParameters, *mockEventLog) {
	link := &mockLink{}
	mon := &mockMonitoring{}
	params := &mockParameters{}
	logs := &mockEventLog{}
	s := &service.Service{
		Link:          link,
		Monitoring:    mon,
		Parameters:    params,
		EventLog:      logs,
		Authorization: &mockAuth{parseOp: testOperator},
	}
	return s, link, mon, params, logs
}

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
