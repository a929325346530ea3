// Package client is a Go client for the playground HTTP and WebSocket API.
//
//	c, err := client.New("http://localhost:8080", client.WithToken(token))
//	if err != nil {
//	    return err
//	}
//	if err := c.WaitReady(ctx, time.Minute); err != nil {
//	    return err
//	}
//	err = c.NetworkAdd(ctx, "net0")
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"evalgo.org/playground/internal/playground"
)

// Client talks to one playground server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode  int                    `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	FieldErrors map[string]string      `json:"field_errors,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// PortMapping publishes container port To on host port From.
type PortMapping struct {
	From int `json:"mapping_from"`
	To   int `json:"mapping_to"`
}

// Proxy describes an Envoy proxy to start.
type Proxy struct {
	Name          string        `json:"name"`
	Configuration string        `json:"configuration"`
	PortMappings  []PortMapping `json:"port_mappings,omitempty"`
}

// Service describes an upstream service to start.
type Service struct {
	Name          string `json:"name"`
	ServiceType   string `json:"service_type"`
	Configuration string `json:"configuration,omitempty"`
}

// Health returns nil when the server reports Docker reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// WaitReady polls Health with exponential backoff until it succeeds or
// maxElapsed passes.
func (c *Client) WaitReady(ctx context.Context, maxElapsed time.Duration) error {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return c.Health(ctx)
	}, backoff.WithContext(expBackoff, ctx))
}

func (c *Client) Metadata(ctx context.Context) (playground.Metadata, error) {
	var meta playground.Metadata
	err := c.do(ctx, http.MethodGet, "/metadata", nil, &meta)
	return meta, err
}

// Resources returns the current networks, proxies and services together
// with the server metadata and service types.
func (c *Client) Resources(ctx context.Context) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := c.do(ctx, http.MethodGet, "/resources", nil, &snap)
	return snap, err
}

func (c *Client) NetworkAdd(ctx context.Context, name string) error {
	return c.action(ctx, "/network/add", map[string]interface{}{"name": name})
}

// NetworkEdit sets the proxies and services attached to network id.
func (c *Client) NetworkEdit(ctx context.Context, id string, proxies, services []string) error {
	body := map[string]interface{}{"id": id}
	if proxies != nil {
		body["proxies"] = proxies
	}
	if services != nil {
		body["services"] = services
	}
	return c.action(ctx, "/network/edit", body)
}

func (c *Client) NetworkDelete(ctx context.Context, id string) error {
	return c.action(ctx, "/network/delete", map[string]interface{}{"id": id})
}

func (c *Client) ProxyAdd(ctx context.Context, proxy Proxy) error {
	return c.action(ctx, "/proxy/add", proxy)
}

func (c *Client) ProxyDelete(ctx context.Context, id string) error {
	return c.action(ctx, "/proxy/delete", map[string]interface{}{"id": id})
}

func (c *Client) ServiceAdd(ctx context.Context, service Service) error {
	return c.action(ctx, "/service/add", service)
}

func (c *Client) ServiceDelete(ctx context.Context, id string) error {
	return c.action(ctx, "/service/delete", map[string]interface{}{"id": id})
}

// Clear removes every playground resource.
func (c *Client) Clear(ctx context.Context) error {
	return c.action(ctx, "/clear", nil)
}

func (c *Client) action(ctx context.Context, path string, body interface{}) error {
	var resp playground.Response
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return err
	}
	if resp.Message != playground.OK.Message {
		return fmt.Errorf("unexpected response from %s: %q", path, resp.Message)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &Error{}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
			apiErr.Details = strings.TrimSpace(string(data))
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
