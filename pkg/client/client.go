// Package client talks to a running schedopt API server.
package client

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

	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/retry"
)

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if sent again
func (e *APIError) Temporary() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client calls the scheduling API
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default 30s-timeout client, e.g. to add TLS settings
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry policy for throttled or unreachable servers
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: retry.Config{
			MaxRetries:     2,
			InitialBackoff: time.Second,
			MaxBackoff:     5 * time.Second,
			Multiplier:     2.0,
			Retryable:      isTemporary,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTemporary(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return retry.IsRetryable(err)
}

// Optimize schedules the given plan IDs on the server. It returns the
// response and the run ID the server assigned.
func (c *Client) Optimize(ctx context.Context, jobIDs []string) (*models.Response, string, error) {
	body := struct {
		JobIDs []string `json:"job_ids"`
	}{JobIDs: jobIDs}

	var resp models.Response
	header, err := c.do(ctx, http.MethodPost, "/api/ai/schedule-optimize", body, &resp)
	if err != nil {
		return nil, "", err
	}
	return &resp, header.Get("X-Run-ID"), nil
}

// ListEquipment returns every machine known to the server
func (c *Client) ListEquipment(ctx context.Context) ([]models.Machine, error) {
	var machines []models.Machine
	if _, err := c.do(ctx, http.MethodGet, "/api/equipment", nil, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// SetEquipmentStatus changes a machine's status to RUN, IDLE or DOWN
func (c *Client) SetEquipmentStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	_, err := c.do(ctx, http.MethodPut, "/api/equipment/"+url.PathEscape(id)+"/status", body, nil)
	return err
}

// Health returns nil when the server and its plan store are up
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (http.Header, error) {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = data
	}

	var header http.Header
	err := retry.Do(ctx, c.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return decodeError(resp)
		}

		header = resp.Header
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	return header, err
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
