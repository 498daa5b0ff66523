package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PawPantry/internal/pkg/jobqueue"
)

// AdminQueueController exposes the billing queue to admins.
type AdminQueueController struct {
	manager *jobqueue.Manager
}

func NewAdminQueueController(manager *jobqueue.Manager) *AdminQueueController {
	return &AdminQueueController{manager: manager}
}

func (aqc *AdminQueueController) handleError(c *fiber.Ctx, message string, err error) error {
	log.Errorf("[Admin] %s: %v", message, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": message})
}

// HandleQueueStatus returns queue depth and job counters.
func (aqc *AdminQueueController) HandleQueueStatus(c *fiber.Ctx) error {
	q := aqc.manager.GetQueue()
	ctx := c.UserContext()

	stats, err := q.GetJobStats(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to load job stats", err)
	}
	pending, err := q.GetQueueSize(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to load queue size", err)
	}
	processing, err := q.GetProcessingSize(ctx)
	if err != nil {
		return aqc.handleError(c, "Failed to load processing size", err)
	}

	return c.JSON(fiber.Map{
		"running":    aqc.manager.IsRunning(),
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}

// HandleBillingSweep enqueues billing jobs for every plan due now.
func (aqc *AdminQueueController) HandleBillingSweep(c *fiber.Ctx) error {
	n := aqc.manager.RunBillingSweepOnce()
	log.Infof("[Admin] Manual billing sweep enqueued %d jobs", n)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"enqueued": n})
}
