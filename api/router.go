package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/suwandre/spreadscan/api/handlers"
	"github.com/suwandre/spreadscan/internal/scheduler"
)

func SetupRoutes(app *fiber.App, sched *scheduler.Scheduler) {
	pairsHandler := handlers.NewPairsHandler(sched)

	v1 := app.Group("/v1")

	v1.Get("/pairs/:id", pairsHandler.GetPair)
	v1.Get("/active", pairsHandler.GetActive)
}
