package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrUnauthenticated covers every failed resolution: missing/invalid key,
// unclaimed agent, or an unreachable directory. The caller must treat all of
// them as a 401, never as a server fault.
var ErrUnauthenticated = errors.New("invalid or unclaimed agent credential")

// Principal is the stable identity issued by the external agent directory.
type Principal struct {
	ID    string
	Name  string
	Karma int64
}

// Resolver maps an opaque bearer credential to an authenticated principal.
type Resolver interface {
	Resolve(ctx context.Context, apiKey string) (Principal, error)
}

const defaultTimeout = 5 * time.Second

// HTTPResolver verifies credentials against the agent directory's "me"
// endpoint with a bounded timeout.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver builds a resolver for the directory at baseURL. A
// non-positive timeout falls back to the default.
func NewHTTPResolver(baseURL string, timeout time.Duration) *HTTPResolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type meResponse struct {
	Success bool `json:"success"`
	Agent   struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Karma     int64  `json:"karma"`
		IsClaimed bool   `json:"is_claimed"`
	} `json:"agent"`
}

// Resolve calls the directory and returns the authenticated principal. Any
// transport error, non-200 response, or unclaimed agent resolves to
// ErrUnauthenticated.
func (r *HTTPResolver) Resolve(ctx context.Context, apiKey string) (Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/v1/agents/me", nil)
	if err != nil {
		return Principal{}, err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: directory unreachable", ErrUnauthenticated)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Principal{}, ErrUnauthenticated
	}

	var body meResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Principal{}, fmt.Errorf("%w: malformed directory response", ErrUnauthenticated)
	}
	if !body.Success || !body.Agent.IsClaimed || body.Agent.ID == "" {
		return Principal{}, ErrUnauthenticated
	}

	return Principal{ID: body.Agent.ID, Name: body.Agent.Name, Karma: body.Agent.Karma}, nil
}
