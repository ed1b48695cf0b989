package service

import (
	"context"
	"fmt"
	"time"

	"pid_tuner/internal/logger"
	"pid_tuner/internal/models"
	"pid_tuner/internal/repository"
	"pid_tuner/internal/transport"
)

// Authorization manages operator accounts and their bearer tokens.
type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	SignIn(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (models.Operator, error)
}

// Link controls the device session.
type Link interface {
	Connect(ctx context.Context, port string, baudRate int) error
	Disconnect(ctx context.Context) error
	Status() models.LinkStatus
	Ports() ([]string, error)
}

// Monitoring exposes the plotted window and raw device chatter.
type Monitoring interface {
	Telemetry() TelemetryView
	ResizeWindow(ctx context.Context, n int) error
	ApplyCapacity(ctx context.Context, raw string) (int, error)
	Diagnostics() []models.DiagnosticLine
	SubscribeParameters(buffer int) (<-chan string, func())
}

// Parameters exposes the discovered device parameters and sends edits back.
type Parameters interface {
	ListParameters() []models.Parameter
	StageParameter(key, value string)
	SendParameter(ctx context.Context, key, value string) error
	SendStaged(ctx context.Context, key string) error
	StoredParameters(ctx context.Context) ([]models.StoredParameter, error)
}

// EventLog exposes the link journal with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.LinkEvent, error)
}

// Ingestion runs the background read loop. Stop via context cancellation.
type Ingestion interface {
	Run(ctx context.Context, tick time.Duration)
}

type Service struct {
	Link
	Monitoring
	Parameters
	EventLog
	Ingestion
	Authorization
}

// Options configures the services built by NewService.
type Options struct {
	Ingestion           IngestionConfig
	WindowCapacity      int
	DiagnosticsCapacity int
	ReservedKeys        []string
	Auth                AuthConfig
	Metrics             IngestMetrics
}

// NewService wires the repository layer and the device opener into the
// concrete services. All of them share one ingestion loop.
func NewService(repos *repository.Repository, opener transport.Opener, opts Options, log *logger.Logger) (*Service, error) {
	if opts.WindowCapacity == 0 {
		opts.WindowCapacity = DefaultWindowCapacity
	}
	window, err := NewTelemetryWindow(opts.WindowCapacity)
	if err != nil {
		return nil, fmt.Errorf("telemetry window: %w", err)
	}
	registry := NewParameterRegistry(opts.ReservedKeys)
	diag := NewDiagnosticLog(opts.DiagnosticsCapacity)

	loop := NewIngestionLoop(IngestionDeps{
		Opener:   opener,
		Registry: registry,
		Window:   window,
		Diag:     diag,
		Events:   repos.EventRepo,
		Stored:   repos.ParameterRepo,
		Metrics:  opts.Metrics,
		Log:      log,
	}, opts.Ingestion)

	return &Service{
		Link:          loop,
		Monitoring:    NewMonitoringService(loop, window, diag),
		Parameters:    NewParameterService(loop, registry, repos.ParameterRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Ingestion:     loop,
		Authorization: NewOperatorAuth(repos.Operators, opts.Auth),
	}, nil
}
