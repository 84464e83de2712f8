// Package client calls the connector's direct tool API (/v1/tools) with an
// API key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bturcanu/sfclause/pkg/connectors"
	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/bturcanu/sfclause/pkg/types"
	"github.com/google/uuid"
)

// ErrRateLimited is returned once retries on 429 replies are exhausted.
var ErrRateLimited = errors.New("rate limited")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// RetryEvery and MaxAttempts bound retries of rate-limited calls.
	RetryEvery  time.Duration
	MaxAttempts int
}

func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 90 * time.Second},
		RetryEvery:  time.Second,
		MaxAttempts: 3,
	}
}

// List returns the tools the key's scope may call.
func (c *Client) List(ctx context.Context) ([]tools.Tool, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/v1/tools", nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Tools []tools.Tool `json:"tools"`
	}
	if err := c.doJSON(httpReq, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// Call runs one tool. Tool failures are reported in the response; the error
// is for transport, auth and scope failures.
func (c *Client) Call(ctx context.Context, name string, args json.RawMessage) (*connectors.ExecResponse, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	requestID := uuid.NewString()

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		httpReq, err := c.newRequest(ctx, http.MethodPost, "/v1/tools/"+url.PathEscape(name), args)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("X-Request-Id", requestID)

		var resp connectors.ExecResponse
		err = c.doJSON(httpReq, &resp)
		if err == nil {
			return &resp, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= attempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.RetryEvery):
		}
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-API-Key", c.apiKey)
	return httpReq, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr types.APIError
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			if resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
			}
			return fmt.Errorf("api error %s: %s", apiErr.Code, apiErr.Message)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return ErrRateLimited
		}
		return fmt.Errorf("http status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
