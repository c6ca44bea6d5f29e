package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/g1nlyf/BikeWerk-sub001/internal/di"
	"github.com/g1nlyf/BikeWerk-sub001/internal/handlers"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/observability"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/postgres"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	pool, err := postgres.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, di.ContainerDeps{
		Config: cfg,
		Pool:   pool,
		Logger: observability.EventLogger(logger),
	})
	if err != nil {
		pool.Close()
		logger.Fatal("failed to build container", zap.Error(err))
	}

	ratesCtx, ratesCancel := context.WithCancel(context.Background())
	container.Rates.Start(ratesCtx)

	checks := []handlers.ReadyCheck{
		{
			Name: "postgres",
			Check: func(ctx context.Context) error {
				pingCtx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
				defer cancel()
				return pool.Ping(pingCtx)
			},
		},
	}
	if container.Secondary != nil {
		secondary := container.Secondary
		checks = append(checks, handlers.ReadyCheck{
			Name: "supabase",
			Check: func(ctx context.Context) error {
				_, err := secondary.Orders().FindByCode(ctx, "readyz-probe")
				if err == nil || repositories.IsNotFound(err) {
					return nil
				}
				return err
			},
		})
	}

	healthHandlers := handlers.NewHealthHandlers(handlers.WithReadyChecks(checks...))
	bookingHandlers := handlers.NewBookingHandlers(container.Bookings)
	orderHandlers := handlers.NewOrderHandlers(container.Orders)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithBookingRoutes(bookingHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("booking api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	ratesCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if err := container.Close(shutdownCtx); err != nil {
		logger.Error("container close failed", zap.Error(err))
	}
}
