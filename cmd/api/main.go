package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/marketplace-accounts/internal/api/http"
	"github.com/spec-kit/marketplace-accounts/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-accounts/internal/auth"
	"github.com/spec-kit/marketplace-accounts/internal/config"
	"github.com/spec-kit/marketplace-accounts/internal/events"
	"github.com/spec-kit/marketplace-accounts/internal/identity"
	"github.com/spec-kit/marketplace-accounts/internal/observability"
	"github.com/spec-kit/marketplace-accounts/internal/persistence"
	"github.com/spec-kit/marketplace-accounts/internal/ratelimit"
	"github.com/spec-kit/marketplace-accounts/internal/repository"
	"github.com/spec-kit/marketplace-accounts/internal/service"
	"github.com/spec-kit/marketplace-accounts/internal/validation"
	"github.com/spec-kit/marketplace-accounts/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pool := pg.Pool
	profileRepo := repository.NewProfileRepository(pool)
	proProfileRepo := repository.NewProProfileRepository(pool)
	referenceRepo := repository.NewReferenceRepository(pool)
	procedureRepo := repository.NewProcedureRepository(pool)

	identities := newIdentityService(cfg, pg, rdb, logger)

	validator := validation.New()
	dispatcher := events.NewInMemoryDispatcher()

	provisioning := service.NewProvisioningService(*cfg, service.ProvisioningDependencies{
		Identities:     identities,
		ProfileRepo:    profileRepo,
		ProProfileRepo: proProfileRepo,
		ReferenceRepo:  referenceRepo,
		ProcedureRepo:  procedureRepo,
		Validator:      validator,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	}, logger)
	adminService := service.NewAdminService(service.AdminDependencies{
		Identities:   identities,
		ProfileRepo:  profileRepo,
		ListPageSize: cfg.Identity.ListPageSize,
	}, logger)
	authService := service.NewAuthService(service.AuthDependencies{
		Identities:  identities,
		ProfileRepo: profileRepo,
	}, logger)
	profileService := service.NewProfileService(profileRepo, proProfileRepo, validator, logger)
	referenceService := service.NewReferenceService(referenceRepo)

	workers := worker.Workers{
		Notifications: service.NewNotificationService(dispatcher, logger, cfg.Notification),
	}
	if cfg.Reconcile.Enabled {
		workers.Reconciler = worker.NewOrphanReconciler(
			identities,
			profileRepo,
			metrics,
			cfg.Reconcile.Interval(),
			cfg.Reconcile.Grace(),
			cfg.Identity.ListPageSize,
			logger,
		)
	}
	wg := worker.Start(ctx, workers, logger)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var emailCheckLimiter ratelimit.Limiter
	if rdb.Client != nil {
		emailCheckLimiter = ratelimit.NewTokenBucket(rdb.Client)
	}

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version).
		Check("postgres", pg, false).
		Check("redis", rdb, true)

	routes := httptransport.RouteConfig{
		Health:         healthHandler,
		Accounts:       handlers.NewAccountsHandler(provisioning),
		Admin:          handlers.NewAdminHandler(provisioning, adminService),
		Sessions:       handlers.NewSessionHandler(authService),
		Reference:      handlers.NewReferenceHandler(referenceService),
		Profiles:       handlers.NewProfileHandler(profileService),
		Guard:          auth.NewGuard(cfg.Guard, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(identities, profileRepo),
		EmailCheckRate: ratelimit.PerClientIP(
			emailCheckLimiter,
			"check-email",
			cfg.RateLimit.EmailCheckRate,
			cfg.RateLimit.EmailCheckBurst,
			logger,
		),
	}
	if cfg.Metrics.Enabled {
		routes.MetricsPath = cfg.Metrics.Path
		routes.Gatherer = registry
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	wg.Wait()
}

func newIdentityService(cfg *config.Config, pg *persistence.Postgres, rdb *persistence.Redis, logger *zap.Logger) identity.Service {
	if cfg.Identity.Provider == config.IdentityProviderRemote {
		logger.Info("using remote identity provider", zap.String("url", cfg.Identity.RemoteURL))
		return identity.NewRemoteProvider(cfg.Identity.RemoteURL, cfg.Identity.ServiceKey, cfg.Identity.Timeout(), logger)
	}
	if rdb.Client == nil {
		logger.Fatal("local identity provider requires REDIS_ADDR for session revocation")
	}
	return identity.NewLocalProvider(
		repository.NewIdentityRepository(pg.Pool),
		auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		identity.NewRedisRevocations(rdb.Client),
		cfg.Auth.BcryptCost,
	)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
