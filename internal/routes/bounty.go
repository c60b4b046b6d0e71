package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/bounty"
)

// RegisterBountyRoutes wires the bounty board endpoints.
func RegisterBountyRoutes(app *fiber.App, h *bounty.Handler, requireAgent fiber.Handler) {
	app.Get("/bounties", h.List)
	app.Get("/bounty/:id", h.Get)

	app.Post("/bounties", requireAgent, h.Create)
	app.Get("/bounties/mine", requireAgent, h.Mine)
	app.Post("/bounty/:id/claim", requireAgent, h.Claim)
	app.Post("/bounty/:id/submit", requireAgent, h.Submit)
	app.Post("/bounty/:id/approve", requireAgent, h.Approve)
	app.Post("/bounty/:id/cancel", requireAgent, h.Cancel)
}
