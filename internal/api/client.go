// Package api implements the REST client consumed by the resource stores.
// It owns the bearer token, wraps requests in the {payload} / {code, message}
// envelope convention, and translates transport failures into the structured
// error shape before they can reach state-machine code.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/insrapperswil/antimony/internal/ctxlog"
	"github.com/insrapperswil/antimony/internal/model"
)

// Client is a thread-safe REST client for the Antimony API.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for the given base URL, e.g. "http://localhost:3000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetToken installs (or clears, with "") the bearer token used for all
// subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a bearer token is installed.
func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

// Login posts credentials to /users/auth and installs the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResponse, *model.ErrorResponse) {
	var out model.AuthResponse
	in := model.AuthRequest{Username: username, Password: password}
	if errRes := c.do(ctx, http.MethodPost, "/users/auth", in, &out); errRes != nil {
		return nil, errRes
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout clears the bearer token.
func (c *Client) Logout() {
	c.SetToken("")
}

// Get performs a GET and decodes the payload into out.
func (c *Client) Get(ctx context.Context, path string, out any) *model.ErrorResponse {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST with the given body, decoding the payload into out
// when out is non-nil.
func (c *Client) Post(ctx context.Context, path string, in, out any) *model.ErrorResponse {
	return c.do(ctx, http.MethodPost, path, in, out)
}

// Patch performs a PATCH with the given body.
func (c *Client) Patch(ctx context.Context, path string, in any) *model.ErrorResponse {
	return c.do(ctx, http.MethodPatch, path, in, nil)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) *model.ErrorResponse {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// envelope matches both response shapes; the presence of the code field
// decides which one arrived.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Payload json.RawMessage `json:"payload"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) *model.ErrorResponse {
	logger := ctxlog.FromContext(ctx).With("method", method, "path", path)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return model.NetworkError(fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return model.NetworkError(err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		logger.Debug("Request transport failure.", "error", err)
		return model.NetworkError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return model.NetworkError(err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.NetworkError(fmt.Errorf("failed to decode response: %w", err))
	}
	if env.Code != nil {
		logger.Debug("Request rejected by server.", "code", *env.Code, "message", env.Message)
		return &model.ErrorResponse{Code: *env.Code, Message: env.Message}
	}
	if out != nil && env.Payload != nil {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return model.NetworkError(fmt.Errorf("failed to decode payload: %w", err))
		}
	}
	return nil
}
