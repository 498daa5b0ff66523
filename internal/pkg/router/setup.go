package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawPantry/app/controllers"
)

// Router installs a group of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles the handlers the routers mount.
type Controllers struct {
	Unlimited  *controllers.UnlimitedController
	AdminQueue *controllers.AdminQueueController
	AdminStats *controllers.AdminStatsController
}

func InstallRouter(app *fiber.App, ctrl Controllers) {
	setup(app, NewApiRouter(ctrl, NewLimiterStorage()))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
