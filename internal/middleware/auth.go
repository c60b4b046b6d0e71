package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/directory"
	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/ratelimit"
)

const (
	agentLocalKey       = "agent"
	rateRemainingHeader = "X-RateLimit-Remaining"
	rateResetHeader     = "X-RateLimit-Reset"
)

// RequireAgent authenticates the bearer credential against the agent
// directory, applies per-identity rate limiting, and lazily registers the
// agent in the ledger. All of this happens before any handler runs, so a
// rejected request never mutates the ledger.
func RequireAgent(resolver directory.Resolver, limiter *ratelimit.Limiter, store ledger.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing agent API key")
		}
		apiKey := strings.TrimSpace(authz[len("Bearer "):])

		principal, err := resolver.Resolve(c.UserContext(), apiKey)
		if err != nil {
			// Directory failures (including unreachable upstream) surface as
			// unauthenticated, never as a server fault.
			return fiber.NewError(http.StatusUnauthorized, "invalid or unclaimed agent credential")
		}

		decision := limiter.Admit(principal.ID)
		c.Set(rateRemainingHeader, strconv.FormatInt(decision.Remaining, 10))
		c.Set(rateResetHeader, strconv.FormatInt(decision.ResetIn, 10))
		if !decision.Allowed {
			return c.Status(http.StatusTooManyRequests).JSON(fiber.Map{
				"error":               "rate limit exceeded",
				"retry_after_seconds": decision.ResetIn,
			})
		}

		agent, err := store.EnsureAgent(c.UserContext(), principal.ID, principal.Name)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		c.Locals(agentLocalKey, agent)
		return c.Next()
	}
}

// AgentFromCtx returns the agent stashed by RequireAgent. The zero Agent is
// returned on routes that did not pass through the middleware.
func AgentFromCtx(c *fiber.Ctx) ledger.Agent {
	agent, _ := c.Locals(agentLocalKey).(ledger.Agent)
	return agent
}
