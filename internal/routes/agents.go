package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/agents"
)

// RegisterAgentRoutes wires the network and agent read endpoints.
func RegisterAgentRoutes(app *fiber.App, h *agents.Handler, requireAgent fiber.Handler) {
	app.Get("/status", h.Status)
	app.Get("/leaderboard", h.Leaderboard)
	app.Get("/agent/:name", h.Profile)
	app.Get("/quickstart", h.Quickstart)

	app.Get("/balance", requireAgent, h.Balance)
	app.Get("/history", requireAgent, h.History)
}
