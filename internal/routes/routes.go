package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/somulo1/chamaledger/internal/config"
	"github.com/somulo1/chamaledger/internal/history"
	"github.com/somulo1/chamaledger/internal/ledger"
	"github.com/somulo1/chamaledger/internal/middleware"
	"github.com/somulo1/chamaledger/internal/notification"
	"github.com/somulo1/chamaledger/internal/transfer"
	"github.com/somulo1/chamaledger/internal/wallet"
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
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Stores and services
	var store ledger.Store
	if d.DB != nil {
		store = ledger.NewPostgres(d.DB, d.Cfg.DefaultCurrency)
	} else {
		store = ledger.NewMemory(d.Cfg.DefaultCurrency)
	}

	var notifier notification.Notifier
	if d.Cache != nil {
		notifier = notification.NewRedisNotifier(d.Cache)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	walletSvc := wallet.NewService(store)
	transferSvc := transfer.NewService(store, walletSvc, notifier)
	transferSvc.RecordFailures = d.Cfg.RecordFailedAttempts
	historySvc := history.NewService(store, walletSvc)

	walletHandler := wallet.NewHandler(walletSvc)
	transferHandler := transfer.NewHandler(transferSvc)
	historyHandler := history.NewHandler(historySvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)

	var opMiddlewares []fiber.Handler
	if d.Cache != nil {
		opMiddlewares = append(opMiddlewares, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	opMiddlewares = append(opMiddlewares, middleware.OperationRateLimit(d.Cache, d.Cfg.OpRateLimitPerMin))
	RegisterTransactionRoutes(api, transferHandler, historyHandler, opMiddlewares...)

	return nil
}
