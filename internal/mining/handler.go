package mining

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/middleware"
)

// Handler exposes the work submission endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a mining HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	Task   string `json:"task"`
	Output string `json:"output"`
}

type mineRequest struct {
	Work string `json:"work"`
}

// Submit credits the authenticated agent for a (task, output) pair.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	agent := middleware.AgentFromCtx(c)

	res, err := h.service.Submit(c.UserContext(), agent, req.Task, req.Output)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"submission_id": res.SubmissionID,
		"tokens_earned": res.Tokens,
		"new_balance":   res.NewBalance,
		"message":       fmt.Sprintf("Earned %d AGC for your work!", res.Tokens),
	})
}

// Mine credits the authenticated agent for a work blob with an auto-derived
// task label.
func (h *Handler) Mine(c *fiber.Ctx) error {
	var req mineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	agent := middleware.AgentFromCtx(c)

	res, err := h.service.Mine(c.UserContext(), agent, req.Work)
	if err != nil {
		return mapError(err)
	}

	msg := fmt.Sprintf("Mined %d AGC!", res.Tokens)
	if res.Bonus {
		msg = fmt.Sprintf("Mined %d AGC! (includes early adopter bonus)", res.Tokens)
	}
	return c.JSON(fiber.Map{
		"success":       true,
		"tokens_earned": res.Tokens,
		"new_balance":   res.NewBalance,
		"message":       msg,
	})
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrOutputTooShort):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrDuplicateSubmission):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrAgentNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
