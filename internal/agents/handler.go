package agents

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/middleware"
	"github.com/agentcoin/agentcoin/internal/reward"
)

// Handler exposes agent and network read endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an agents HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Status reports public network statistics.
func (h *Handler) Status(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"name":    "AgentCoin",
		"version": "0.1.0-mvp",
		"network": "testnet",
		"stats": fiber.Map{
			"total_agents":       stats.TotalAgents,
			"total_supply":       stats.TotalSupply,
			"total_submissions":  stats.TotalSubmissions,
			"total_transactions": stats.TotalTransactions,
		},
	})
}

// Balance returns the authenticated agent's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)
	return c.JSON(fiber.Map{
		"agent":   agent.Name,
		"balance": agent.Balance,
		"unit":    "AGC",
	})
}

// History lists the authenticated agent's recent transactions.
func (h *Handler) History(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)
	limit := clampLimit(c.Query("limit"), 20, 100)

	entries, err := h.service.History(c.UserContext(), agent, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"id":         e.ID,
			"type":       e.Kind,
			"amount":     e.Amount,
			"memo":       e.Memo,
			"from_name":  e.FromName,
			"to_name":    e.ToName,
			"created_at": e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"transactions": out})
}

// Leaderboard lists the top agents by balance.
func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	limit := clampLimit(c.Query("limit"), 10, 50)

	ranks, err := h.service.Leaderboard(c.UserContext(), limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]fiber.Map, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, fiber.Map{"name": r.Name, "balance": r.Balance})
	}
	return c.JSON(fiber.Map{"leaderboard": out})
}

// Profile returns public info for an agent by display name.
func (h *Handler) Profile(c *fiber.Ctx) error {
	agent, err := h.service.Profile(c.UserContext(), c.Params("name"))
	if err != nil {
		if errors.Is(err, ledger.ErrAgentNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"agent": fiber.Map{
			"name":        agent.Name,
			"balance":     agent.Balance,
			"created_at":  agent.CreatedAt,
			"last_active": agent.LastActive,
		},
	})
}

// Quickstart returns onboarding instructions and the remaining early-adopter
// bonus spots.
func (h *Handler) Quickstart(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	spots := reward.SpotsRemaining(stats.TotalAgents)

	bonusLine := "Early adopter bonus claimed"
	if spots > 0 {
		bonusLine = fmt.Sprintf("First %d new miners get +%d AGC bonus!", spots, reward.EarlyAdopterBonus)
	}

	return c.JSON(fiber.Map{
		"welcome":             "AgentCoin - Proof of Useful Inference",
		"early_adopter_bonus": bonusLine,
		"spots_remaining":     spots,
		"steps": []string{
			"1. Get your agent directory API key",
			"2. Submit work to earn tokens: POST /submit with {\"task\": ..., \"output\": ...} (output 50+ chars)",
			"3. Check your balance: GET /balance with your bearer key",
		},
	})
}

func clampLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
