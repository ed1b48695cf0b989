package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "pid_tuner/docs"
	"pid_tuner/internal/config"
	"pid_tuner/internal/handlers"
	"pid_tuner/internal/logger"
	"pid_tuner/internal/metrics"
	"pid_tuner/internal/repository"
	"pid_tuner/internal/repository/db"
	"pid_tuner/internal/server"
	"pid_tuner/internal/service"
	"pid_tuner/internal/transport"
)

const shutdownTimeout = 10 * time.Second

// @title                       PID tuner API
// @version                     1.0
// @description                 Live telemetry and parameter tuning for a serial PID controller.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.LogLevel)
	if cfg.UsesDevSigningKey() {
		log.Warnw("using the development signing key; set PID_TUNER_AUTH_SIGNING_KEY")
	}

	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	prom := metrics.NewProm()
	repos := repository.NewRepository(conn)
	services, err := service.NewService(repos, transport.NewRouter(), serviceOptions(cfg, prom), log)
	if err != nil {
		log.Fatalw("failed to build services", "err", err)
	}
	apiHandler := handlers.NewHandler(services, log, prom.Handler())

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		services.Ingestion.Run(ctx, cfg.Link.TickInterval)
	}()
	autoConnect(ctx, services, cfg, log)

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	waitForShutdown(cancel, srv, loopDone, log)
}

func serviceOptions(cfg config.Config, m service.IngestMetrics) service.Options {
	return service.Options{
		Ingestion: service.IngestionConfig{
			BaudRate:     cfg.Link.BaudRate,
			ReadTimeout:  cfg.Link.ReadTimeout,
			StartupGrace: cfg.Link.StartupGrace,
		},
		WindowCapacity:      cfg.Window.Capacity,
		DiagnosticsCapacity: cfg.Diagnostics.Capacity,
		ReservedKeys:        cfg.Protocol.ReservedKeys,
		Auth: service.AuthConfig{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		Metrics: m,
	}
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DBPath)
	return db.InitDB(cfg.DBPath)
}

// autoConnect opens link.port at startup when configured. A failure is
// logged and the operator can connect through the API.
func autoConnect(ctx context.Context, services *service.Service, cfg config.Config, log *logger.Logger) {
	if cfg.Link.Port == "" {
		log.Infow("no link.port configured; waiting for connect request")
		return
	}
	if err := services.Link.Connect(ctx, cfg.Link.Port, cfg.Link.BaudRate); err != nil {
		log.Errorw("auto_connect_failed", "port", cfg.Link.Port, "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, loopDone <-chan struct{}, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// stop the ingestion loop; it closes the device link on exit
	cancel()
	select {
	case <-loopDone:
	case <-ctx.Done():
		log.Errorw("ingestion loop did not stop in time")
	}
}
