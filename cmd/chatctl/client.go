package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pageza/storefront-assistant/backend/internal/api"
	"github.com/pageza/storefront-assistant/backend/internal/models"
	"github.com/pageza/storefront-assistant/backend/internal/service"
	"github.com/pageza/storefront-assistant/backend/internal/types"
)

// apiError is a non-2xx answer from the server
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server answered %d", e.Status)
	}
	return fmt.Sprintf("server answered %d: %s", e.Status, e.Message)
}

// apiClient talks to a running storefront assistant over HTTP
type apiClient struct {
	base  string
	shop  string
	token string
	http  *http.Client
}

func newAPIClient(base, shop string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		shop: shop,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var e types.ErrorResponse
		_ = json.Unmarshal(data, &e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Send posts one message and returns the assistant's reply
func (c *apiClient) Send(ctx context.Context, sessionID, message string) (*service.Reply, error) {
	var reply service.Reply
	err := c.do(ctx, http.MethodPost, api.StorefrontPrefix+"/chat", types.ChatRequest{
		Shop:      c.shop,
		SessionID: sessionID,
		Message:   message,
	}, &reply)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// Reset forgets a session
func (c *apiClient) Reset(ctx context.Context, sessionID string) error {
	path := fmt.Sprintf("%s/chat/%s?shop=%s", api.StorefrontPrefix, url.PathEscape(sessionID), url.QueryEscape(c.shop))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Health returns the health report. A 503 still carries a report.
func (c *apiClient) Health(ctx context.Context) (*types.HealthResponse, error) {
	var health types.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &health)
	var e *apiError
	if errors.As(err, &e) && e.Status == http.StatusServiceUnavailable {
		return &types.HealthResponse{Status: "unhealthy", Database: "down"}, err
	}
	if err != nil {
		return nil, err
	}
	return &health, nil
}

// Conversations lists the shop's conversations. Needs a token.
func (c *apiClient) Conversations(ctx context.Context, limit, offset int) ([]models.ConversationSummary, error) {
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	path := fmt.Sprintf("/api/v1/admin/conversations?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// Conversation returns one conversation's messages. Needs a token.
func (c *apiClient) Conversation(ctx context.Context, sessionID string) ([]models.ConversationMessage, error) {
	var resp struct {
		Messages []models.ConversationMessage `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/conversations/"+url.PathEscape(sessionID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}
