// Package main provides the agrolt telemetry server: MQTT ingestion,
// versioned persistence, the WebSocket push endpoint, and the HTTP
// query surface.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	telemetry "github.com/2saloni/agrolt-dashboard"
	"github.com/2saloni/agrolt-dashboard/adapters/paho"
	relicaadapter "github.com/2saloni/agrolt-dashboard/adapters/relica"
	"github.com/2saloni/agrolt-dashboard/cmd/agrolt-server/internal/api"
	"github.com/2saloni/agrolt-dashboard/cmd/agrolt-server/internal/config"
	"github.com/2saloni/agrolt-dashboard/ws"
)

// ZerologLogger adapts zerolog to the telemetry.Logger interface.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a console-friendly zerolog adapter.
func NewZerologLogger() *ZerologLogger {
	return &ZerologLogger{
		log: zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger(),
	}
}

// Debugf implements telemetry.Logger.
func (l *ZerologLogger) Debugf(format string, args ...interface{}) { l.log.Debug().Msgf(format, args...) }

// Infof implements telemetry.Logger.
func (l *ZerologLogger) Infof(format string, args ...interface{}) { l.log.Info().Msgf(format, args...) }

// Warnf implements telemetry.Logger.
func (l *ZerologLogger) Warnf(format string, args ...interface{}) { l.log.Warn().Msgf(format, args...) }

// Errorf implements telemetry.Logger.
func (l *ZerologLogger) Errorf(format string, args ...interface{}) { l.log.Error().Msgf(format, args...) }

// Info implements telemetry.Logger.
func (l *ZerologLogger) Info(message string) { l.log.Info().Msg(message) }

func main() {
	logger := NewZerologLogger()
	logger.Info("Starting agrolt telemetry server")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.Infof("Configuration loaded: server=%s db=%s broker=%s",
		cfg.Server.ListenAddr(), cfg.Database.Driver, cfg.MQTT.BrokerURL)

	// Relational store. The pipeline fails fast when it is unreachable;
	// restart policy is the supervisor's.
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.GetDSN())
	if err != nil {
		logger.Errorf("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warnf("Failed to close database: %v", closeErr)
		}
	}()

	repos := relicaadapter.NewRepositoriesWithPrefix(db, cfg.Database.Driver, cfg.Database.Prefix)

	registry := prometheus.NewRegistry()
	pipelineMetrics := telemetry.NewMetrics(registry)
	hubMetrics := ws.NewMetrics(registry)

	store, err := telemetry.NewVersionedStore(
		telemetry.WithStoreRepository(repos.TopicRecord),
		telemetry.WithStoreLogger(logger),
	)
	if err != nil {
		logger.Errorf("Failed to create versioned store: %v", err)
		os.Exit(1)
	}

	hub := ws.NewHub(logger, ws.WithHubMetrics(hubMetrics))

	bus := paho.NewClient(paho.Config{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		QoS:       byte(cfg.MQTT.QoS),
	}, logger)

	pipeline, err := telemetry.NewPipeline(
		telemetry.WithPipelineBus(bus),
		telemetry.WithPipelineDeviceRepository(repos.Device),
		telemetry.WithPipelineStore(store),
		telemetry.WithPipelineBroadcaster(hub),
		telemetry.WithPipelineAlerts(telemetry.NewLoggingAlertService(logger)),
		telemetry.WithPipelineMetrics(pipelineMetrics),
		telemetry.WithPipelineLogger(logger),
	)
	if err != nil {
		logger.Errorf("Failed to create pipeline: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipeline.Start(ctx); err != nil {
		logger.Errorf("Failed to start pipeline: %v", err)
		os.Exit(1)
	}
	defer pipeline.Stop()

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.WebSocketPath, hub)
	api.NewHandler(store, pipeline, logger).RegisterRoutes(mux)
	if cfg.Server.EnableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s (ws at %s)", cfg.Server.ListenAddr(), cfg.Server.WebSocketPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Infof("Received signal %v, shutting down", s)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server shutdown: %v", err)
	}
	hub.Close()
	logger.Info("Server stopped")
}
