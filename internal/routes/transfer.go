package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/transfer"
)

// RegisterTransferRoutes wires the transfer endpoint.
func RegisterTransferRoutes(app *fiber.App, h *transfer.Handler, requireAgent fiber.Handler) {
	app.Post("/transfer", requireAgent, h.Send)
}
