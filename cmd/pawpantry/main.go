package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/PawPantry/app/controllers"
	"github.com/ManuelReschke/PawPantry/internal/pkg/billing"
	"github.com/ManuelReschke/PawPantry/internal/pkg/cache"
	"github.com/ManuelReschke/PawPantry/internal/pkg/catalog"
	"github.com/ManuelReschke/PawPantry/internal/pkg/database"
	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
	"github.com/ManuelReschke/PawPantry/internal/pkg/jobqueue"
	"github.com/ManuelReschke/PawPantry/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PawPantry/internal/pkg/router"
	"github.com/ManuelReschke/PawPantry/internal/pkg/statistics"
	"github.com/ManuelReschke/PawPantry/internal/pkg/unlimited"
)

func main() {
	app, manager := NewApplication()

	if env.GetEnvBool("UNLIMITED_BILLING_ENABLED", true) {
		manager.Start()
	}

	go func() {
		if err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))); err != nil {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	manager.Stop()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// NewApplication wires stores, services and background workers into the fiber app.
func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	redisClient := cache.GetClient()
	cfg := unlimited.LoadConfigFromEnv()
	events := counter.NewEvents(redisClient)

	svc := unlimited.NewService(
		unlimited.NewRedisDraftStore(redisClient, cfg.DraftTTL, cfg.DraftCASRetries),
		unlimited.NewPlanRepository(database.GetDB()),
		newCatalogProvider(),
		cfg,
		unlimited.WithEventRecorder(events),
	)

	managerCfg := jobqueue.LoadManagerConfigFromEnv()
	queue := jobqueue.NewQueue(redisClient, managerCfg.Workers)
	processor := jobqueue.NewBillingProcessor(
		queue,
		billing.NewService(svc, billing.NewWebhookChargerFromEnv()),
		env.GetEnvInt("UNLIMITED_BILLING_BATCH_SIZE", 200),
		env.GetEnvDuration("UNLIMITED_BILLING_RETRY_BACKOFF", 6*time.Hour),
	)
	manager := jobqueue.NewManager(queue, processor, events, managerCfg)
	jobqueue.SetManager(manager)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "change-me"),
		},
	}), monitor.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "cache": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: env.GetEnv("OPENAPI_FILE", "./public/docs/v1/openapi.yml"),
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Controllers{
		Unlimited:  controllers.NewUnlimitedController(svc),
		AdminQueue: controllers.NewAdminQueueController(manager),
		AdminStats: controllers.NewAdminStatsController(statistics.NewService(statistics.NewGormSource(database.GetDB()))),
	})

	return app, manager
}

// newCatalogProvider talks to the catalog service; dev setups without one get a seeded in-memory catalog.
func newCatalogProvider() catalog.Provider {
	if env.IsDev() && env.GetEnv("CATALOG_BASE_URL", "") == "" {
		log.Println("CATALOG_BASE_URL not set, using seeded in-memory catalog")
		return catalog.NewStaticProvider(
			catalog.Variant{ID: 1, ProductID: 1, Price: 49900, Stock: 100, Active: true, PetType: "dog", Category: "food"},
			catalog.Variant{ID: 2, ProductID: 1, Price: 89900, Stock: 100, Active: true, PetType: "dog", Category: "food"},
			catalog.Variant{ID: 3, ProductID: 2, Price: 29900, Stock: 100, Active: true, PetType: "cat", Category: "litter"},
			catalog.Variant{ID: 4, ProductID: 3, Price: 19900, Stock: 100, Active: true, PetType: "dog", Category: "treats"},
		)
	}
	return catalog.NewHTTPProviderFromEnv()
}
