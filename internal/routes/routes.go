package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agentcoin/agentcoin/internal/agents"
	"github.com/agentcoin/agentcoin/internal/bounty"
	"github.com/agentcoin/agentcoin/internal/config"
	"github.com/agentcoin/agentcoin/internal/directory"
	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/middleware"
	"github.com/agentcoin/agentcoin/internal/mining"
	"github.com/agentcoin/agentcoin/internal/notification"
	"github.com/agentcoin/agentcoin/internal/ratelimit"
	"github.com/agentcoin/agentcoin/internal/reward"
	"github.com/agentcoin/agentcoin/internal/transfer"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	calc := reward.NewCalculator()
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, calc)
	} else {
		store = ledger.NewMemoryStore(calc)
	}

	var resolver directory.Resolver
	if d.Cfg.DirectoryURL != "" {
		resolver = directory.NewHTTPResolver(d.Cfg.DirectoryURL, d.Cfg.DirectoryTimeout)
	} else {
		// Dev fallback: a single static credential.
		resolver = directory.NewStaticResolver(map[string]directory.Principal{
			"dev-key": {ID: "dev-agent", Name: "dev-agent"},
		})
	}

	limiter := ratelimit.New(d.Cfg.RateLimit, d.Cfg.RateWindow)
	notifier := notification.NewLoggerNotifier(d.Logger)

	agentsHandler := agents.NewHandler(agents.NewService(store))
	miningHandler := mining.NewHandler(mining.NewService(store, notifier))
	transferHandler := transfer.NewHandler(transfer.NewService(store, notifier))
	bountyHandler := bounty.NewHandler(bounty.NewService(store, notifier))

	requireAgent := middleware.RequireAgent(resolver, limiter, store)

	RegisterAgentRoutes(app, agentsHandler, requireAgent)
	RegisterMiningRoutes(app, miningHandler, requireAgent)
	RegisterTransferRoutes(app, transferHandler, requireAgent)
	RegisterBountyRoutes(app, bountyHandler, requireAgent)

	return nil
}
