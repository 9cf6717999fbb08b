// Package projects is the client for the external project-management tool.
// The orchestrator consults it to answer project-status questions and to
// refresh stale sync records.
package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/frontdeskai/switchboard/internal/convo"
	"github.com/frontdeskai/switchboard/pkg/types"
)

// Compile-time interface assertion.
var _ convo.ProjectSource = (*Client)(nil)

// Client talks to the PM tool's REST API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default 10s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// New creates a PM-tool client. An empty baseURL produces a client whose
// Active reports false, which the orchestrator treats as "no integration".
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active reports whether an integration endpoint is configured.
func (c *Client) Active() bool {
	return c.baseURL != ""
}

// projectResponse is the PM tool's project payload.
type projectResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Phase   string `json:"phase"`
	DueDate string `json:"due_date"`
}

// FetchProject pulls the current state of one project. The returned record
// carries a fresh LastSyncedAt.
func (c *Client) FetchProject(ctx context.Context, projectID string) (types.ProjectRecord, error) {
	if !c.Active() {
		return types.ProjectRecord{}, fmt.Errorf("projects: no integration configured")
	}

	u := c.baseURL + "/projects/" + url.PathEscape(projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return types.ProjectRecord{}, fmt.Errorf("projects: building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return types.ProjectRecord{}, fmt.Errorf("projects: fetching %s: %w", projectID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ProjectRecord{}, fmt.Errorf("projects: fetching %s: status %d", projectID, resp.StatusCode)
	}

	var pr projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return types.ProjectRecord{}, fmt.Errorf("projects: decoding %s: %w", projectID, err)
	}

	rec := types.ProjectRecord{
		ID:           pr.ID,
		Name:         pr.Name,
		Status:       pr.Status,
		Phase:        pr.Phase,
		LastSyncedAt: time.Now(),
	}
	if pr.DueDate != "" {
		due, err := time.Parse("2006-01-02", pr.DueDate)
		if err != nil {
			return types.ProjectRecord{}, fmt.Errorf("projects: parsing due date %q: %w", pr.DueDate, err)
		}
		rec.DueDate = due
	}
	return rec, nil
}
