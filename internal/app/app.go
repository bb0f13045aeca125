package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-rules/internal/api/http/handlers"
	"github.com/spec-kit/ticket-rules/internal/config"
	"github.com/spec-kit/ticket-rules/internal/domain"
	"github.com/spec-kit/ticket-rules/internal/events"
	"github.com/spec-kit/ticket-rules/internal/persistence"
	"github.com/spec-kit/ticket-rules/internal/repository"
	"github.com/spec-kit/ticket-rules/internal/service"
	"github.com/spec-kit/ticket-rules/internal/worker"
)

// App holds the wired rule engine and the infrastructure it runs on.
type App struct {
	Engine        *service.TicketRuleEngine
	Notifications *service.NotificationService
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
}

// Bootstrap connects to Postgres and Redis, applies migrations when
// configured and builds the rule engine on top of them.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)

	notifications := service.NewNotificationService(events.NewInMemoryDispatcher(), logger, redis.ClientHandle(), cfg.Notification)
	worker.StartNotificationWorker(notifications)

	tickets, users := collaborators(ctx, pg, cfg.Directory, logger)
	engine := service.NewTicketRuleEngine(service.TicketDependencies{
		TicketStore:   tickets,
		UserDirectory: users,
		Notifier:      notifications,
		Logger:        logger.Named("rules"),
	})

	return &App{
		Engine:        engine,
		Notifications: notifications,
		Postgres:      pg,
		Redis:         redis,
	}, nil
}

// collaborators returns Postgres-backed stores, or in-memory ones seeded
// from the directory config when no database is configured.
func collaborators(ctx context.Context, pg *persistence.Postgres, dir config.DirectoryConfig, logger *zap.Logger) (repository.TicketStore, repository.UserDirectory) {
	pool := pg.PoolHandle()
	if pool != nil {
		return repository.NewTicketRepository(pool), repository.NewUserRepository(pool)
	}

	users := repository.NewInMemoryUserDirectory(dir.AccountManager)
	for _, username := range dir.Users {
		users.Add(domain.User{Username: username})
	}
	if dir.AccountManager != "" {
		if known, _ := users.Resolve(ctx, dir.AccountManager); known == nil {
			users.Add(domain.User{Username: dir.AccountManager})
		}
	}
	if len(dir.Users) == 0 {
		logger.Warn("in-memory user directory is empty; set DIRECTORY_USERS to assign tickets")
	}
	logger.Info("using in-memory ticket store",
		zap.Int("users", len(dir.Users)),
		zap.String("account_manager", dir.AccountManager))
	return repository.NewInMemoryTicketStore(), users
}

// HealthChecks lists the dependencies the readiness probe verifies.
func (a *App) HealthChecks() map[string]handlers.Pinger {
	return map[string]handlers.Pinger{
		"postgres": a.Postgres,
		"redis":    a.Redis,
	}
}

// Close releases pool and client resources.
func (a *App) Close() {
	a.Redis.Close()
	a.Postgres.Close()
}
