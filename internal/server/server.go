// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakehouse-dev/scheduler/internal/api"
	"github.com/lakehouse-dev/scheduler/internal/api/handlers"
	"github.com/lakehouse-dev/scheduler/internal/api/middleware"
	"github.com/lakehouse-dev/scheduler/internal/auth"
	"github.com/lakehouse-dev/scheduler/internal/config"
	"github.com/lakehouse-dev/scheduler/internal/db"
	"github.com/lakehouse-dev/scheduler/internal/events"
	"github.com/lakehouse-dev/scheduler/internal/logger"
	"github.com/lakehouse-dev/scheduler/internal/metrics"
	"github.com/lakehouse-dev/scheduler/internal/rbac"
	"github.com/lakehouse-dev/scheduler/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Config holds the server configuration options.
type Config struct {
	ConfigFile string // Explicit config file (empty = search default locations)
	Port       int    // Port to run the server on (0 = use config default)
	Version    string // Version string to report
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Set version in handlers
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	// Load configuration
	appCfg, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from CLI flag if provided
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	// Initialize logger
	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting scheduler", "version", handlers.Version, "mode", appCfg.Server.Mode)

	database, err := OpenDatabase(appCfg)
	if err != nil {
		return err
	}

	// Instance ID distinguishes this process on the shared event channel
	instanceID, err := db.GetOrCreateInstanceID(database)
	if err != nil {
		return fmt.Errorf("failed to initialize instance ID: %w", err)
	}
	slog.Info("Instance ID initialized", "instance_id", instanceID)

	// Create default admin user if configured
	if err := db.CreateDefaultAdmin(database); err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	enforcer, err := rbac.NewEnforcer(database, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to initialize RBAC: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	broker := events.NewBroker(appCfg.Events.BufferSize)
	defer broker.Close()

	var publisher events.Publisher = broker
	var relay *events.ValkeyPublisher
	if appCfg.Events.Type == "valkey" {
		relay, err = events.NewValkeyPublisher(appCfg.Events.ValkeyAddr, appCfg.Events.Channel, instanceID, broker)
		if err != nil {
			return fmt.Errorf("failed to initialize event publisher: %w", err)
		}
		defer relay.Close()
		publisher = relay
	}
	slog.Info("Event publisher initialized", "type", appCfg.Events.Type)

	opts := []service.Option{
		service.WithPublisher(publisher),
		service.WithMetrics(collector),
		service.WithOverdueAfterDays(appCfg.Scheduler.OverdueAfterDays),
	}

	var limiter *middleware.RateLimiter
	if appCfg.RateLimit.RPS > 0 {
		limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(appCfg.RateLimit.RPS),
			Burst: appCfg.RateLimit.Burst,
		})
		defer limiter.Stop()
	}

	router := api.NewRouter(api.Dependencies{
		Mode:          appCfg.Server.Mode,
		DB:            database,
		Authenticator: auth.NewBasicAuthenticator(database, appCfg.Auth.JWTSecret, appCfg.Auth.TokenTTL),
		Enforcer:      enforcer,
		Broker:        broker,
		Services: api.Services{
			Reservations: service.NewReservationService(database, opts...),
			Duties:       service.NewDutyService(database, opts...),
			Assignments:  service.NewAssignmentService(database, opts...),
			Users:        service.NewUserService(database, opts...),
		},
		Metrics:     collector,
		Gatherer:    registry,
		RateLimiter: limiter,
	})

	addr := fmt.Sprintf(":%d", appCfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Relay(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down...")

		// Shutdown waits for in-flight requests; ending the event streams
		// first lets their handlers return.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("Scheduler exited")
	return nil
}

// OpenDatabase connects to the configured database and runs migrations.
func OpenDatabase(appCfg *config.Config) (*gorm.DB, error) {
	// Propagate app log level to database if not explicitly set
	if appCfg.Database.LogLevel == "" {
		appCfg.Database.LogLevel = appCfg.Log.Level
	}

	database, err := db.New(appCfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")
	return database, nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return Run(ctx, cfg)
}
