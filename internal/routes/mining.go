package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/mining"
)

// RegisterMiningRoutes wires the work submission endpoints.
func RegisterMiningRoutes(app *fiber.App, h *mining.Handler, requireAgent fiber.Handler) {
	app.Post("/submit", requireAgent, h.Submit)
	app.Post("/mine", requireAgent, h.Mine)
}
