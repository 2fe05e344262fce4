package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/example/event-booking/internal/application"
	"github.com/example/event-booking/internal/config"
	httptransport "github.com/example/event-booking/internal/http"
	"github.com/example/event-booking/internal/logging"
	"github.com/example/event-booking/internal/persistence"
	"github.com/example/event-booking/internal/persistence/appstore"
	"github.com/example/event-booking/internal/persistence/sqlstore"
	"github.com/example/event-booking/internal/persistence/sqlstore/migration"
	"github.com/example/event-booking/internal/scheduler"
	"github.com/example/event-booking/internal/scheduler/redislock"
)

const sweepInterval = time.Minute

func loadConfig(c *cli.Context) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// openStorage connects to the configured database and applies migrations.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sqlstore.Storage, error) {
	storeCfg := sqlstore.Config{Logger: logger}
	switch cfg.DBDriver {
	case config.DriverPostgres:
		storeCfg.Dialect = sqlstore.DialectPostgres
		storeCfg.Postgres = sqlstore.PostgresConfig{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		}
	default:
		storeCfg.Dialect = sqlstore.DialectSQLite
		storeCfg.SQLite = migration.DefaultSQLiteConfig(cfg.SQLiteDSN)
	}

	storage, err := sqlstore.Open(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, nil
}

func closeStorage(storage *sqlstore.Storage, logger *slog.Logger) {
	if err := storage.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}

// newLocker returns a Redis backed locker when an address is configured and
// an in-process one otherwise. The returned func releases the client.
func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (scheduler.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process booking locks")
		return scheduler.NewKeyedMutex(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("using redis booking locks", "addr", cfg.RedisAddr, "ttl", cfg.LockTTL)
	locker := redislock.New(client, redislock.Options{TTL: cfg.LockTTL, Logger: logger})
	return locker, func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}, nil
}

type services struct {
	auth      *application.AuthService
	users     *application.UserService
	rooms     *application.RoomService
	employees *application.EmployeeService
	lookups   *application.LookupService
	scheduler *application.BookingScheduler
	events    *application.EventService
	queries   *application.QueryService
}

func newServices(cfg config.Config, adapters appstore.Adapters, locker scheduler.Locker, logger *slog.Logger) services {
	ids := uuid.NewString
	now := time.Now

	lookups := application.NewLookupService(adapters.Lookups, ids, now, logger)
	sched := application.NewBookingScheduler(adapters.Catalog, adapters.Events, adapters.Bookings, locker, now, logger)

	return services{
		auth: application.NewAuthService(application.AuthServiceDeps{
			Credentials:   adapters.Users,
			Sessions:      adapters.Sessions,
			ResetTokens:   application.NewResetTokenStore(cfg.ResetTokenTTL, 0, now),
			IDGenerator:   ids,
			Now:           now,
			SessionSecret: []byte(cfg.SessionSecret),
			SessionTTL:    cfg.SessionTTL,
			Logger:        logger,
		}),
		users:     application.NewUserServiceWithLogger(adapters.Users, application.HashPassword, ids, now, logger),
		rooms:     application.NewRoomServiceWithLogger(adapters.Rooms, adapters.Lookups, adapters.Events, ids, now, logger).WithRetirer(sched),
		employees: application.NewEmployeeService(adapters.Employees, adapters.Lookups, lookups, ids, now, logger).WithRetirer(sched),
		lookups:   lookups,
		scheduler: sched,
		events: application.NewEventService(application.EventServiceDeps{
			Events:      adapters.Events,
			Bookings:    adapters.Bookings,
			Lookups:     adapters.Lookups,
			Users:       adapters.Users,
			Scheduler:   sched,
			IDGenerator: ids,
			Now:         now,
			Logger:      logger,
		}),
		queries: application.NewQueryService(adapters.Events, now, time.UTC, logger),
	}
}

func newHandler(svc services, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:       httptransport.NewAuthHandler(svc.auth, logger),
		Users:      httptransport.NewUserHandler(svc.users, logger),
		Rooms:      httptransport.NewRoomHandler(svc.rooms, logger),
		Employees:  httptransport.NewEmployeeHandler(svc.employees, logger),
		Lookups:    httptransport.NewLookupHandler(svc.lookups, logger),
		Events:     httptransport.NewEventHandler(svc.events, svc.queries, time.UTC, logger),
		Reports:    httptransport.NewReportHandler(svc.scheduler, svc.queries, logger),
		Session:    httptransport.RequireSession(svc.auth, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}

func serve(c *cli.Context) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := c.Context

	storage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage(storage, logger)

	if err := storage.Seed(ctx); err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	svc := newServices(cfg, appstore.New(storage), locker, logger)
	go sweepResetTokens(ctx, svc.auth, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("booking API listening", "addr", server.Addr, "driver", cfg.DBDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	logger.Info("booking API stopped")
	return nil
}

func sweepResetTokens(ctx context.Context, auth *application.AuthService, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := auth.SweepResetTokens(); removed > 0 {
				logger.Debug("expired reset tokens removed", "count", removed)
			}
		}
	}
}

// seed loads reference data and, when both credentials are given, creates an
// administrator. An existing account with the same email is left untouched.
func seed(ctx context.Context, storage *sqlstore.Storage, email, password string, logger *slog.Logger) error {
	if err := storage.Seed(ctx); err != nil {
		return fmt.Errorf("load reference data: %w", err)
	}
	logger.Info("reference data loaded")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return errors.New("both --admin-email and --admin-password are required to create an administrator")
	}
	if len(password) < application.MinPasswordLength {
		return fmt.Errorf("admin password must be at least %d characters", application.MinPasswordLength)
	}

	hash, err := application.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	users := appstore.New(storage).Users
	admin, err := users.CreateUser(ctx, application.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: "Administrator",
		Roles:       []application.Role{application.RoleAdmin},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, hash)
	if errors.Is(err, persistence.ErrDuplicate) {
		logger.Info("administrator already exists", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}

	logger.Info("administrator created", "user_id", admin.ID, "email", admin.Email)
	return nil
}
