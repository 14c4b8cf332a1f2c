// Файл: cmd/bootstrap.go
package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"business-api/internal/integrations/bc"
	"business-api/internal/repositories"
	"business-api/internal/scheduling"
	"business-api/internal/services"
	"business-api/internal/sync"
	"business-api/internal/tenancy"
	"business-api/pkg/config"
	"business-api/pkg/database/postgresql"
	"business-api/pkg/monitoring"
	"business-api/pkg/secrets"
)

// application - собранный граф зависимостей, общий для serve, sync и tenant.
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *monitoring.Metrics
	redis     *redis.Client
	control   *pgxpool.Pool
	directory *tenancy.CachedDirectory
	resolver  *tenancy.Resolver
	syncs     *sync.Registry
	checker   *scheduling.Checker

	syncService    services.SyncServiceInterface
	bookingService services.BookingServiceInterface
	tenantService  services.TenantServiceInterface
}

func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (app *application, err error) {
	app = &application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = monitoring.NewMetrics(app.registry)

	app.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return app, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.Redis.Address, err)
	}

	app.control, err = postgresql.NewPool(ctx, postgresql.PoolConfig{
		DSN:            cfg.ControlPlane.DSN,
		TracingEnabled: cfg.Tracing.Enabled,
	})
	if err != nil {
		return app, fmt.Errorf("справочник компаний недоступен: %w", err)
	}

	box, err := secrets.NewBox(cfg.Secrets.Key)
	if err != nil {
		return app, err
	}
	if box == nil {
		logger.Warn("SECRETS_KEY не задан, секреты ERP читаются как открытый текст")
	}

	cache := repositories.NewRedisCacheRepository(app.redis)
	app.directory = tenancy.NewCachedDirectory(
		tenancy.NewPostgresDirectory(app.control, logger),
		cache,
		box,
		cfg.Tenancy.DirectoryCacheTTL,
		logger,
	)

	adapter := bc.NewAdapter(bc.Options{
		HTTPTimeout: cfg.ERP.HTTPTimeout,
		MaxRetries:  cfg.ERP.MaxRetries,
		BackoffBase: cfg.ERP.BackoffBase,
		BackoffCap:  cfg.ERP.BackoffCap,
		MaxPages:    cfg.ERP.MaxPages,
	}, app.metrics, logger)

	poolFactory := tenancy.PgxPoolFactory(postgresql.PoolConfig{
		MaxConns:        cfg.Tenancy.MaxConns,
		MinConns:        cfg.Tenancy.MinConns,
		MaxConnLifetime: cfg.Tenancy.MaxConnLifetime,
		MaxConnIdleTime: cfg.Tenancy.MaxConnIdleTime,
		TracingEnabled:  cfg.Tracing.Enabled,
	})
	app.resolver, err = tenancy.NewResolver(app.directory, poolFactory, adapter, box,
		tenancy.ResolverOptions{
			ConnectTimeout: cfg.Tenancy.ConnectTimeout,
			ClientTTL:      cfg.Tenancy.ERPClientTTL,
		}, app.metrics, logger)
	if err != nil {
		return app, err
	}

	deps := sync.Deps{
		Cache:   repositories.NewOutputCacheRepository(cache),
		Runs:    repositories.NewSyncRunRepository(),
		Metrics: app.metrics,
		Logger:  logger,
	}
	app.syncs, err = sync.NewRegistry(
		sync.NewEngine(sync.CustomerSpec(), repositories.NewCustomerRepository(), deps),
		sync.NewEngine(sync.PaymentTermSpec(), repositories.NewPaymentTermRepository(), deps),
		sync.NewEngine(sync.EquipmentSpec(), repositories.NewEquipmentRepository(), deps),
	)
	if err != nil {
		return app, err
	}

	app.checker = scheduling.NewChecker(repositories.NewBookingRepository(), app.metrics, logger)

	app.syncService = services.NewSyncService(app.syncs, logger)
	app.bookingService = services.NewBookingService(app.checker, logger)
	app.tenantService = services.NewTenantService(app.directory, app.resolver, logger)
	return app, nil
}

// Close закрывает пулы компаний, затем общие подключения.
func (a *application) Close() {
	if a.resolver != nil {
		a.resolver.Close()
	}
	if a.control != nil {
		a.control.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Ошибка закрытия Redis", zap.Error(err))
		}
	}
}
