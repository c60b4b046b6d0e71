package agents

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/reward"
)

func setupApp(t *testing.T) (*fiber.App, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore(reward.NewCalculator())
	h := NewHandler(NewService(store))

	withAgent := func(agent ledger.Agent) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("agent", agent)
			return c.Next()
		}
	}

	app := fiber.New()
	app.Get("/", h.Status)
	app.Get("/leaderboard", h.Leaderboard)
	app.Get("/agent/:name", h.Profile)
	app.Get("/quickstart", h.Quickstart)
	app.Get("/balance", withAgent(ledger.Agent{ID: "a1", Name: "alice", Balance: 77}), h.Balance)
	return app, store
}

func getJSON(t *testing.T, app *fiber.App, path string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, wantStatus)
	}

	var body map[string]any
	if wantStatus == fiber.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return body
}

func TestStatusReportsNetworkStats(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()
	store.EnsureAgent(ctx, "a1", "alice")
	store.EnsureAgent(ctx, "a2", "bob")

	body := getJSON(t, app, "/", fiber.StatusOK)
	if body["name"] != "AgentCoin" || body["network"] != "testnet" {
		t.Fatalf("unexpected status body %v", body)
	}
	stats, ok := body["stats"].(map[string]any)
	if !ok {
		t.Fatalf("missing stats in %v", body)
	}
	if stats["total_agents"] != float64(2) {
		t.Fatalf("total_agents = %v, want 2", stats["total_agents"])
	}
}

func TestLeaderboardOrdersByBalance(t *testing.T) {
	app, store := setupApp(t)
	ctx := context.Background()
	store.EnsureAgent(ctx, "a1", "alice")
	store.EnsureAgent(ctx, "a2", "bob")
	ledger.SeedBalance(store, "a1", 10)
	ledger.SeedBalance(store, "a2", 99)

	body := getJSON(t, app, "/leaderboard", fiber.StatusOK)
	ranks, ok := body["leaderboard"].([]any)
	if !ok || len(ranks) != 2 {
		t.Fatalf("unexpected leaderboard %v", body)
	}
	top := ranks[0].(map[string]any)
	if top["name"] != "bob" {
		t.Fatalf("top agent = %v, want bob", top["name"])
	}
}

func TestProfileLookup(t *testing.T) {
	app, store := setupApp(t)
	store.EnsureAgent(context.Background(), "a1", "alice")

	body := getJSON(t, app, "/agent/alice", fiber.StatusOK)
	agent, ok := body["agent"].(map[string]any)
	if !ok || agent["name"] != "alice" {
		t.Fatalf("unexpected profile %v", body)
	}

	getJSON(t, app, "/agent/nobody", fiber.StatusNotFound)
}

func TestBalanceUsesAuthenticatedAgent(t *testing.T) {
	app, _ := setupApp(t)

	body := getJSON(t, app, "/balance", fiber.StatusOK)
	if body["agent"] != "alice" || body["balance"] != float64(77) || body["unit"] != "AGC" {
		t.Fatalf("unexpected balance body %v", body)
	}
}

func TestQuickstartReportsBonusSpots(t *testing.T) {
	app, store := setupApp(t)
	store.EnsureAgent(context.Background(), "a1", "alice")

	body := getJSON(t, app, "/quickstart", fiber.StatusOK)
	spots, ok := body["spots_remaining"].(float64)
	if !ok {
		t.Fatalf("missing spots_remaining in %v", body)
	}
	if int64(spots) != reward.SpotsRemaining(1) {
		t.Fatalf("spots_remaining = %v, want %d", spots, reward.SpotsRemaining(1))
	}
}
