package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"business-api/internal/routes"
	"business-api/internal/sync"
	"business-api/pkg/config"
	applogger "business-api/pkg/logger"
	"business-api/pkg/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запуск HTTP API",
	Long:  `Запускает HTTP API и, если SYNC_ENABLED=true, периодическую синхронизацию всех компаний.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// setup - общий старт для всех команд: конфиг, логгер и трассировка.
func setup(ctx context.Context) (*config.Config, *zap.Logger, func(context.Context) error, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := applogger.NewLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("не удалось создать логгер: %w", err)
	}
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Enabled, cfg.Tracing.GRPCEndpoint, logger)
	if err != nil {
		logger.Warn("Трассировка не запущена", zap.Error(err))
	}
	return cfg, logger, shutdownTracing, nil
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, shutdownTracing, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if cfg.Sync.Enabled {
		scheduler := sync.NewScheduler(app.directory, app.resolver, app.syncs, cfg.Sync.Concurrency, logger)
		go scheduler.Start(ctx, cfg.Sync.Interval)
	}

	e := routes.NewEcho(logger)
	routes.InitRouter(e, routes.Services{
		Resolver: app.resolver,
		Sync:     app.syncService,
		Booking:  app.bookingService,
		Tenant:   app.tenantService,
		Gatherer: app.registry,
	}, cfg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           otelhttp.NewHandler(e, "business-api"),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Сервер запущен", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err = <-serverErr:
		if err != nil {
			err = fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Получен сигнал остановки")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("ошибка остановки сервера: %w", shutdownErr)
	}
	if tracingErr := shutdownTracing(shutdownCtx); tracingErr != nil {
		logger.Warn("Ошибка остановки трассировки", zap.Error(tracingErr))
	}
	logger.Info("Сервер остановлен", zap.Int64("active_leases", app.resolver.ActiveLeases()))
	return err
}
