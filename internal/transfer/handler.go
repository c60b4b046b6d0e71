package transfer

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/middleware"
)

// Handler exposes the transfer endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a transfer HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// Send moves tokens from the authenticated agent to a named recipient.
func (h *Handler) Send(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	agent := middleware.AgentFromCtx(c)

	res, err := h.service.Send(c.UserContext(), agent, Input{
		ToName: req.To,
		Amount: req.Amount,
		Memo:   req.Memo,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingFields), errors.Is(err, ErrNonPositiveAmount),
			errors.Is(err, ledger.ErrSelfTransfer), errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrAgentNotFound):
			return fiber.NewError(http.StatusNotFound, "recipient not found, they must register first")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"transaction_id": res.TransactionID,
		"amount":         res.Amount,
		"to":             res.ToName,
		"new_balance":    res.NewBalance,
		"message":        fmt.Sprintf("Sent %d AGC to %s!", res.Amount, res.ToName),
	})
}
