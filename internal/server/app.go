package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flatwithoutbrokerage/flatapi/config"
	"github.com/flatwithoutbrokerage/flatapi/internal/cache"
	"github.com/flatwithoutbrokerage/flatapi/internal/db"
	"github.com/flatwithoutbrokerage/flatapi/internal/events"
	"github.com/flatwithoutbrokerage/flatapi/internal/handlers"
	"github.com/flatwithoutbrokerage/flatapi/internal/mq"
	"github.com/flatwithoutbrokerage/flatapi/internal/services"
	"github.com/flatwithoutbrokerage/flatapi/internal/storage"
	"github.com/flatwithoutbrokerage/flatapi/internal/store"
	"github.com/flatwithoutbrokerage/flatapi/internal/store/memory"
)

// Record store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type repositories struct {
	properties services.PropertyRepository
	users      services.UserRepository
	contacts   services.ContactRepository
	stats      services.StatsRepository
}

// App holds the services and the connections they depend on.
type App struct {
	Services handlers.Services
	Logger   *slog.Logger

	closers []func() error
}

// NewApp connects every configured backend and builds the services.
// storeKind selects postgres or the in-process memory store.
func NewApp(ctx context.Context, cfg config.Config, storeKind string, logger *slog.Logger) (app *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app = &App{Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	repos, err := app.openStore(ctx, cfg, storeKind)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{services.WithLogger(logger)}

	searchCache, redisClient, err := cache.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if searchCache != nil {
		app.closers = append(app.closers, redisClient.Close)
		opts = append(opts, services.WithCache(searchCache))
		logger.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	queue, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, err
	}
	if queue != nil {
		app.closers = append(app.closers, queue.Close)
		opts = append(opts, services.WithEvents(events.NewPublisher(queue)))
		logger.Info("event publishing enabled", "backend", cfg.MQ.Backend)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	app.Services = handlers.Services{
		Properties: services.NewPropertyService(repos.properties, repos.users, opts...),
		Contacts:   services.NewContactService(repos.properties, repos.users, repos.contacts, opts...),
		Users:      services.NewUserService(repos.users, cfg.Auth.AdminSecretHash, opts...),
		Admin:      services.NewAdminService(repos.stats, repos.users, cfg.Stats.LookbackDays, opts...),
	}
	if objects != nil {
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", objects.Bucket(), err)
		}
		app.Services.Uploads = services.NewUploadService(objects, repos.users, opts...)
		logger.Info("image uploads enabled", "backend", cfg.Storage.Backend, "bucket", objects.Bucket())
	}
	return app, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, kind string) (repositories, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", StorePostgres:
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return repositories{}, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, conn.Close)
		return postgresRepositories(conn), nil
	case StoreMemory:
		a.Logger.Warn("using in-memory store; data is lost on exit")
		mem := memory.New()
		return repositories{
			properties: mem.Properties(),
			users:      mem.Users(),
			contacts:   mem.Contacts(),
			stats:      mem.Stats(),
		}, nil
	default:
		return repositories{}, fmt.Errorf("unknown store %q", kind)
	}
}

func postgresRepositories(conn *sql.DB) repositories {
	return repositories{
		properties: store.NewPropertyRepository(conn),
		users:      store.NewUserRepository(conn),
		contacts:   store.NewContactRepository(conn),
		stats:      store.NewStatsRepository(conn),
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
