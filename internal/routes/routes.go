package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kingsinvest/kings_invest/internal/config"
	"github.com/kingsinvest/kings_invest/internal/ledger"
	"github.com/kingsinvest/kings_invest/internal/metrics"
	"github.com/kingsinvest/kings_invest/internal/middleware"
	"github.com/kingsinvest/kings_invest/internal/notification"
	"github.com/kingsinvest/kings_invest/internal/plan"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Events  notification.MessageWriter
	Logger  *slog.Logger
	Metrics *metrics.Ledger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.LogFormat == "text" {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	} else {
		app.Use(middleware.Audit(d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var (
		store    ledger.Store
		planRepo plan.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		planRepo = plan.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		planRepo = plan.NewMemoryRepository()
	}

	planSvc := plan.NewService(planRepo, d.Logger)
	if d.Cfg.PlansFile != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := planSvc.SeedFile(ctx, d.Cfg.PlansFile); err != nil {
			return err
		}
	}

	notifiers := notification.Fanout{notification.NewLoggerNotifier(d.Logger)}
	if d.Events != nil {
		notifiers = append(notifiers, notification.NewKafkaNotifier(d.Events))
	}

	ledgerSvc := ledger.NewService(store, planSvc, notifiers, d.Logger, ledger.Options{
		CanonicalCurrency: d.Cfg.CanonicalCurrency,
		InvestSettlement:  d.Cfg.InvestSettlement,
		NotifyTimeout:     d.Cfg.NotifyTimeout,
		Metrics:           d.Metrics,
	})

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	RegisterPlanRoutes(api, plan.NewHandler(planSvc))

	verifier := middleware.NewVerifier([]byte(d.Cfg.JWTSecret), d.Cfg.JWTIssuer)
	protected := api.Group("", middleware.JWTAuth(verifier))
	if d.Cache != nil {
		protected.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterLedgerRoutes(protected, ledger.NewHandler(ledgerSvc), middleware.RateLimit(d.Cache, "tx", d.Cfg.RateLimitPerMin))
	RegisterAdminRoutes(protected.Group("/admin", middleware.RequireRole(middleware.RoleAdmin)), ledger.NewAdminHandler(ledgerSvc))

	return nil
}
