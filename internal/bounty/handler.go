package bounty

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/middleware"
)

// Handler exposes the bounty board endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a bounty HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Reward         int64  `json:"reward"`
	ExpiresInHours int64  `json:"expires_in_hours"`
}

type workRequest struct {
	Work string `json:"work"`
}

type bountyResponse struct {
	ID          string     `json:"id"`
	Creator     string     `json:"creator"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Reward      int64      `json:"reward"`
	Status      string     `json:"status"`
	ClaimedBy   string     `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	Submission  string     `json:"submission,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toResponse(b ledger.Bounty) bountyResponse {
	return bountyResponse{
		ID:          b.ID,
		Creator:     b.CreatorName,
		Title:       b.Title,
		Description: b.Description,
		Reward:      b.Reward,
		Status:      string(b.Status),
		ClaimedBy:   b.ClaimedByName,
		ClaimedAt:   b.ClaimedAt,
		Submission:  b.Submission,
		SubmittedAt: b.SubmittedAt,
		CompletedAt: b.CompletedAt,
		CreatedAt:   b.CreatedAt,
		ExpiresAt:   b.ExpiresAt,
	}
}

// List returns bounties filtered by status (default open).
func (h *Handler) List(c *fiber.Ctx) error {
	status := ledger.BountyStatus(c.Query("status", string(ledger.BountyOpen)))
	limit := clampLimit(c.Query("limit"), 20, 50)

	bounties, err := h.service.List(c.UserContext(), status, limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]bountyResponse, 0, len(bounties))
	for _, b := range bounties {
		out = append(out, toResponse(b))
	}
	return c.JSON(fiber.Map{"bounties": out, "count": len(out)})
}

// bountyID validates the path parameter so malformed ids read as not found
// instead of leaking a database cast error.
func bountyID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if uuid.Validate(id) != nil {
		return "", ledger.ErrBountyNotFound
	}
	return id, nil
}

// Get returns full bounty details.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := bountyID(c)
	if err != nil {
		return mapError(err)
	}
	b, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"bounty": toResponse(b)})
}

// Mine lists the authenticated agent's created and claimed bounties.
func (h *Handler) Mine(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)

	created, claimed, err := h.service.Mine(c.UserContext(), agent)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	createdOut := make([]bountyResponse, 0, len(created))
	for _, b := range created {
		createdOut = append(createdOut, toResponse(b))
	}
	claimedOut := make([]bountyResponse, 0, len(claimed))
	for _, b := range claimed {
		claimedOut = append(claimedOut, toResponse(b))
	}
	return c.JSON(fiber.Map{"created": createdOut, "claimed": claimedOut})
}

// Create stakes a new bounty from the authenticated agent's balance.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	agent := middleware.AgentFromCtx(c)

	res, err := h.service.Create(c.UserContext(), agent, CreateInput{
		Title:          req.Title,
		Description:    req.Description,
		Reward:         req.Reward,
		ExpiresInHours: req.ExpiresInHours,
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"bounty_id":     res.BountyID,
		"reward_staked": res.Reward,
		"new_balance":   res.NewBalance,
		"message":       fmt.Sprintf("Bounty created! %d AGC staked.", res.Reward),
	})
}

// Claim marks an open bounty as claimed by the authenticated agent.
func (h *Handler) Claim(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)

	id, err := bountyID(c)
	if err != nil {
		return mapError(err)
	}
	b, err := h.service.Claim(c.UserContext(), agent, id)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"bounty_id": b.ID,
		"reward":    b.Reward,
		"message":   "Bounty claimed! Complete the task and submit your work.",
	})
}

// Submit records the claimant's work on a claimed bounty.
func (h *Handler) Submit(c *fiber.Ctx) error {
	var req workRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	agent := middleware.AgentFromCtx(c)

	id, err := bountyID(c)
	if err != nil {
		return mapError(err)
	}
	b, err := h.service.SubmitWork(c.UserContext(), agent, id, req.Work)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"bounty_id": b.ID,
		"message":   "Work submitted! Waiting for creator approval.",
	})
}

// Approve pays out a submitted bounty.
func (h *Handler) Approve(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)

	id, err := bountyID(c)
	if err != nil {
		return mapError(err)
	}
	res, err := h.service.Approve(c.UserContext(), agent, id)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"bounty_id": res.BountyID,
		"paid_to":   res.ClaimantName,
		"amount":    res.Reward,
		"message":   fmt.Sprintf("Bounty completed! %d AGC paid to %s.", res.Reward, res.ClaimantName),
	})
}

// Cancel refunds and cancels an open bounty.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	agent := middleware.AgentFromCtx(c)

	id, err := bountyID(c)
	if err != nil {
		return mapError(err)
	}
	res, err := h.service.Cancel(c.UserContext(), agent, id)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"new_balance": res.NewBalance,
		"message":     fmt.Sprintf("Bounty cancelled. %d AGC refunded.", res.Refunded),
	})
}

func mapError(err error) error {
	var wrongState *ledger.WrongStateError
	switch {
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrRewardTooSmall),
		errors.Is(err, ErrWorkTooShort), errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrSelfClaim):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.As(err, &wrongState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrNotCreator), errors.Is(err, ledger.ErrNotClaimant):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrBountyNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
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
