package mining

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/agentcoin/agentcoin/internal/ledger"
	"github.com/agentcoin/agentcoin/internal/reward"
)

func setupHandlerApp(t *testing.T) *fiber.App {
	t.Helper()
	store := ledger.NewMemoryStore(reward.NewCalculator())
	h := NewHandler(NewService(store, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		a, err := store.EnsureAgent(c.UserContext(), "a1", "alice")
		if err != nil {
			return err
		}
		c.Locals("agent", a)
		return c.Next()
	})
	app.Post("/submit", h.Submit)
	app.Post("/mine", h.Mine)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path, body string) (*int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return &resp.StatusCode, out
}

func TestSubmitEndpoint(t *testing.T) {
	app := setupHandlerApp(t)

	payload := `{"task":"summarize","output":"` + strings.Repeat("x", 120) + `"}`
	status, body := postJSON(t, app, "/submit", payload)
	if *status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", *status)
	}
	if body["success"] != true || body["submission_id"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, ok := body["tokens_earned"].(float64); !ok {
		t.Fatalf("missing tokens_earned in %v", body)
	}

	// Same task and output again is a conflict, not a second credit.
	status, _ = postJSON(t, app, "/submit", payload)
	if *status != fiber.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409", *status)
	}
}

func TestSubmitEndpointValidation(t *testing.T) {
	app := setupHandlerApp(t)

	status, _ := postJSON(t, app, "/submit", `{"task":"t","output":"short"}`)
	if *status != fiber.StatusBadRequest {
		t.Fatalf("short output status = %d, want 400", *status)
	}

	status, _ = postJSON(t, app, "/submit", `{"output":"`+strings.Repeat("x", 60)+`"}`)
	if *status != fiber.StatusBadRequest {
		t.Fatalf("missing task status = %d, want 400", *status)
	}
}

func TestMineEndpoint(t *testing.T) {
	app := setupHandlerApp(t)

	status, body := postJSON(t, app, "/mine", `{"work":"`+strings.Repeat("z", 200)+`"}`)
	if *status != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", *status)
	}
	if body["success"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	msg, _ := body["message"].(string)
	if !strings.Contains(msg, "Mined") {
		t.Fatalf("unexpected message %q", msg)
	}
}
