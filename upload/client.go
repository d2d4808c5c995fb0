// Package upload sends the aggregated payload to the results backend.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/caseflow/caseflow/model"
)

// Uploader performs the single results upload of a run.
type Uploader interface {
	Upload(ctx context.Context, payload *model.Payload) (*model.Response, error)
}

const (
	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 4096
)

// Client uploads payloads as JSON over HTTP. It does not retry.
type Client struct {
	logger     zerolog.Logger
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func New(logger zerolog.Logger, endpoint string, opts ...Option) *Client {
	c := &Client{
		logger:     logger,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload posts the payload and decodes the backend response. Transport
// errors, non-2xx statuses and undecodable bodies are returned as errors.
func (c *Client) Upload(ctx context.Context, payload *model.Payload) (*model.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", c.endpoint).
		Int("cases", len(payload.Results.Cases)).
		Int("bytes", len(body)).
		Msg("Uploading results")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send results: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, fmt.Errorf("results upload returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var response model.Response
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
