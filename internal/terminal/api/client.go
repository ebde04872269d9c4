// Package api is the terminal's HTTP client for the lead and user endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authtransport "leadflow_backend/internal/auth/transport"
	leadtransport "leadflow_backend/internal/leads/transport"

	"github.com/google/uuid"
)

// Client calls the API with a bearer token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ListLeads fetches the lead list the given advisor may see. A nil advisor
// lists every lead.
func (c *Client) ListLeads(ctx context.Context, advisorID *uuid.UUID) ([]leadtransport.LeadResponse, error) {
	query := url.Values{}
	if advisorID != nil {
		query.Set("advisorId", advisorID.String())
	}

	var leads []leadtransport.LeadResponse
	if err := c.get(ctx, "/api/leads", query, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// ListUsers fetches every user.
func (c *Client) ListUsers(ctx context.Context) ([]authtransport.UserResponse, error) {
	var users []authtransport.UserResponse
	if err := c.get(ctx, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s failed: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
