package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/suwandre/spreadscan/internal/scheduler"
)

type PairsHandler struct {
	scheduler *scheduler.Scheduler
}

func NewPairsHandler(scheduler *scheduler.Scheduler) *PairsHandler {
	return &PairsHandler{scheduler}
}

// Handles GET /pairs/:id.
func (h *PairsHandler) GetPair(c fiber.Ctx) error {
	id := c.Params("id")

	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "pair id parameter is required",
		})
	}

	result, ok := h.scheduler.Result(id)

	if !ok {
		log.Warn().Str("pair", id).Msg("pair not found in scan results")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "pair not scanned yet, check configured pairs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// Handles GET /active.
func (h *PairsHandler) GetActive(c fiber.Ctx) error {
	active := h.scheduler.ActivePairs()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"count": len(active),
		"pairs": active,
	})
}
