package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/internal/pkg/statistics"
)

// AdminStatsController serves program numbers to admins.
type AdminStatsController struct {
	stats *statistics.Service
}

func NewAdminStatsController(stats *statistics.Service) *AdminStatsController {
	return &AdminStatsController{stats: stats}
}

// HandleUnlimitedStats returns plan counts and daily lifecycle events (?days=N, default 7).
func (a *AdminStatsController) HandleUnlimitedStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", statistics.DefaultDays)
	if c.QueryBool("fresh", false) {
		if err := a.stats.Invalidate(); err != nil {
			log.Warnf("[Admin] Could not invalidate stats cache: %v", err)
		}
	}
	ov, err := a.stats.Overview(c.UserContext(), days)
	if err != nil {
		log.Errorf("[Admin] Loading unlimited stats failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Failed to load statistics"})
	}
	return c.JSON(ov)
}
