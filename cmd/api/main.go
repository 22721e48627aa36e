package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rentals-backend/api/controllers"
	"github.com/angelmondragon/rentals-backend/api/routes"
	"github.com/angelmondragon/rentals-backend/internal/auth"
	"github.com/angelmondragon/rentals-backend/internal/availability"
	"github.com/angelmondragon/rentals-backend/internal/booking"
	"github.com/angelmondragon/rentals-backend/internal/catalog"
	"github.com/angelmondragon/rentals-backend/internal/clients"
	"github.com/angelmondragon/rentals-backend/internal/payments"
	"github.com/angelmondragon/rentals-backend/internal/reservations"
	"github.com/angelmondragon/rentals-backend/internal/uploads"
	"github.com/angelmondragon/rentals-backend/internal/users"
	"github.com/angelmondragon/rentals-backend/pkg/auth/session"
	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/db/models"
	"github.com/angelmondragon/rentals-backend/pkg/locks"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/metrics"
	"github.com/angelmondragon/rentals-backend/pkg/migrate"
	"github.com/angelmondragon/rentals-backend/pkg/outbox"
	"github.com/angelmondragon/rentals-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := prepareSchema(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	locker, err := newLocker(cfg.Booking, redisClient)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	gdb := dbClient.DB()
	catalogRepo := catalog.NewRepository(gdb)
	ledger := reservations.NewRepository(gdb)
	clientRepo := clients.NewRepository(gdb)
	paymentRepo := payments.NewRepository(gdb)
	userRepo := users.NewRepository(gdb)

	catalogService, err := catalog.NewService(catalogRepo, dbClient, locker)
	if err != nil {
		return err
	}
	clientService, err := clients.NewService(clientRepo)
	if err != nil {
		return err
	}
	paymentService, err := payments.NewService(paymentRepo)
	if err != nil {
		return err
	}
	userService, err := users.NewService(userRepo, cfg.Password)
	if err != nil {
		return err
	}

	coordinator, err := booking.NewCoordinator(booking.Params{
		Tx:           dbClient,
		Locker:       locker,
		Catalog:      catalogRepo,
		Reservations: ledger,
		Clients:      clientRepo,
		Payments:     paymentRepo,
		Outbox:       outbox.NewService(outbox.NewRepository(gdb), logg),
		Metrics:      bookingMetrics,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	imageStore, err := uploads.NewLocalStore(cfg.Media.UploadDir)
	if err != nil {
		return err
	}
	uploadService, err := uploads.NewService(imageStore, cfg.Media, logg)
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:      cfg,
		Logger:      logg,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Ready: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
		Cache:        redisClient,
		Sessions:     sessionManager,
		Auth:         authService,
		Users:        userService,
		Catalog:      catalogService,
		Availability: availability.NewCalculator(catalogRepo, ledger),
		Clients:      clientService,
		Booking:      coordinator,
		Payments:     paymentService,
		Uploads:      uploadService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"version":      cfg.App.Version,
		"lock_backend": cfg.Booking.LockBackend,
	})
	logg.Info(ctx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return multierr.Append(server.Shutdown(shutdownCtx), <-serveErr)
}

// prepareSchema applies goose migrations in dev, or creates the tables
// directly when running on sqlite.
func prepareSchema(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if strings.EqualFold(cfg.DB.Driver, "sqlite") {
		if !cfg.FeatureFlags.AutoMigrate {
			return nil
		}
		logg.Info(ctx, "auto-migrating sqlite schema")
		return client.DB().WithContext(ctx).AutoMigrate(models.All()...)
	}
	return migrate.MaybeRunDev(ctx, cfg, logg, client)
}

func newLocker(cfg config.BookingConfig, client *redis.Client) (locks.Locker, error) {
	if strings.EqualFold(cfg.LockBackend, config.LockBackendLocal) {
		return locks.NewLocal(cfg.LockWait), nil
	}
	return locks.NewRedis(client, "booking", cfg.LockWait, cfg.LockTTL)
}
