// Package fleetapi is the HTTP client for the fleet management
// service: application metadata, identity, and the two
// release-creation protocols.
package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fleetship/fleetship/internal/core/deploy"
	"github.com/google/uuid"
)

// =============================================================================
// Types
// =============================================================================

// ApplicationType carries the release-protocol capability flags the
// fleet service reports for an application's type.
type ApplicationType struct {
	Slug                   string `json:"slug"`
	IsLegacy               bool   `json:"is_legacy"`
	SupportsMulticontainer bool   `json:"supports_multicontainer"`
}

// Application is the deploy target as known to the fleet service.
type Application struct {
	ID         int64           `json:"id"`
	Name       string          `json:"app_name"`
	Arch       string          `json:"arch"`
	DeviceType string          `json:"device_type"`
	Type       ApplicationType `json:"application_type"`
}

// FleetInfo converts the application into the orchestrator's target
// description.
func (a *Application) FleetInfo() deploy.FleetInfo {
	return deploy.FleetInfo{
		Name:       a.Name,
		ID:         a.ID,
		Arch:       a.Arch,
		DeviceType: a.DeviceType,
		Capabilities: deploy.TargetCapabilities{
			IsLegacy:               a.Type.IsLegacy,
			SupportsMulticontainer: a.Type.SupportsMulticontainer,
		},
	}
}

// User is the authenticated account.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// =============================================================================
// Client
// =============================================================================

// Config holds fleet API client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the fleet management API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a fleet API client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "fleetapi"),
	}
}

// do issues one request and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return NewAPIError(op, path, 0, "failed to marshal request body", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return NewAPIError(op, path, 0, "failed to create request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewAPIError(op, path, 0, err.Error(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewAPIError(op, path, resp.StatusCode, "authentication failed; check your API token", ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return NewAPIError(op, path, resp.StatusCode, "not found", ErrNotFound)
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		return NewAPIError(op, path, resp.StatusCode,
			fmt.Sprintf("fleet API returned %d: %s", resp.StatusCode, string(respBody)), ErrBadResponse)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewAPIError(op, path, resp.StatusCode, "failed to decode response", ErrBadResponse)
		}
	}
	return nil
}

// =============================================================================
// Metadata Operations
// =============================================================================

// GetApplication fetches the deploy target by fleet name. A remote 404
// is rewritten into a clearer user-facing message.
func (c *Client) GetApplication(ctx context.Context, name string) (*Application, error) {
	var app Application
	err := c.do(ctx, "GetApplication", http.MethodGet, "/api/v1/applications/"+name, nil, &app)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, NewAPIError("GetApplication", name, http.StatusNotFound,
				fmt.Sprintf("fleet %q not found; check the fleet name and that your token grants access to it", name),
				ErrFleetNotFound)
		}
		return nil, err
	}
	return &app, nil
}

// WhoAmI fetches the authenticated user.
func (c *Client) WhoAmI(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "WhoAmI", http.MethodGet, "/api/v1/whoami", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeployContext is the fleet metadata a deploy needs up front.
type DeployContext struct {
	Application *Application
	User        *User
}

// Resolve fetches the application and the authenticated user
// concurrently; the two requests have no ordering dependency.
func (c *Client) Resolve(ctx context.Context, fleetName string) (*DeployContext, error) {
	var (
		app  *Application
		user *User
	)
	errCh := make(chan error, 2)

	go func() {
		a, err := c.GetApplication(ctx, fleetName)
		app = a
		errCh <- err
	}()
	go func() {
		u, err := c.WhoAmI(ctx)
		user = u
		errCh <- err
	}()

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}

	return &DeployContext{Application: app, User: user}, nil
}
