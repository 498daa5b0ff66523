package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PawPantry/app/controllers"
	"github.com/ManuelReschke/PawPantry/internal/pkg/env"
	"github.com/ManuelReschke/PawPantry/internal/pkg/middleware"
)

type ApiRouter struct {
	ctrl    Controllers
	storage fiber.Storage
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	limiterCfg := limiter.Config{
		Max:        env.GetEnvInt("API_RATE_LIMIT_MAX", 120),
		Expiration: env.GetEnvDuration("API_RATE_LIMIT_WINDOW", time.Minute),
		KeyGenerator: func(c *fiber.Ctx) string {
			if id := c.Get("X-User-ID"); id != "" {
				return "user:" + id
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}
	// nil storage falls back to the limiter's in-memory store
	if h.storage != nil {
		limiterCfg.Storage = h.storage
	}

	api := app.Group("/api", middleware.UserContextMiddleware, limiter.New(limiterCfg))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")
	v1.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{"ping": "pong"})
	})

	registerUnlimitedRoutes(v1.Group("/unlimited", middleware.RequireAPIUser), h.ctrl.Unlimited)

	admin := v1.Group("/admin/unlimited", middleware.RequireAPIAdmin)
	if h.ctrl.AdminStats != nil {
		admin.Get("/stats", h.ctrl.AdminStats.HandleUnlimitedStats)
	}
	if h.ctrl.AdminQueue != nil {
		admin.Get("/queue", h.ctrl.AdminQueue.HandleQueueStatus)
		admin.Post("/billing/sweep", h.ctrl.AdminQueue.HandleBillingSweep)
	}
}

func registerUnlimitedRoutes(r fiber.Router, uc *controllers.UnlimitedController) {
	// drafts
	r.Post("/drafts", uc.HandleCreateDraft)
	r.Get("/drafts/:draftId", uc.HandleGetDraft)
	r.Delete("/drafts/:draftId", uc.HandleDiscardDraft)
	r.Post("/drafts/:draftId/lines", uc.HandleAddLine)
	r.Delete("/drafts/:draftId/lines/:productId/:variantId", uc.HandleRemoveLine)
	r.Post("/drafts/:draftId/checkout", uc.HandleCheckout)
	r.Post("/drafts/:draftId/apply", uc.HandleApplyDraft)

	// plans
	r.Get("/plans", uc.HandleListPlans)
	r.Get("/plans/:planId", uc.HandleGetPlan)
	r.Post("/plans/:planId/drafts", uc.HandleCreateEditDraft)
	r.Post("/plans/:planId/pause", uc.HandlePausePlan)
	r.Post("/plans/:planId/resume", uc.HandleResumePlan)
	r.Post("/plans/:planId/skip", uc.HandleSkipPlan)
	r.Post("/plans/:planId/cancel", uc.HandleCancelPlan)

	// catalog display helper
	r.Get("/catalog/variants/:variantId/affordability", uc.HandleVariantAffordability)
	r.Get("/catalog/products/:productId/affordability", uc.HandleProductAffordability)
}

func NewApiRouter(ctrl Controllers, storage fiber.Storage) *ApiRouter {
	return &ApiRouter{ctrl: ctrl, storage: storage}
}
