package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// Client posts ExecRequests to a remote connector.
type Client struct {
	baseURL       string
	internalToken string
	httpClient    *http.Client
}

// NewClient creates a client for the connector at baseURL.
func NewClient(baseURL, internalToken string) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		internalToken: internalToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTimeout overrides the default HTTP client timeout for connector calls.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// Exec sends req to the connector's /exec endpoint. Transport failures and
// non-200 replies are returned as errors; tool failures come back in the
// response.
func (c *Client) Exec(ctx context.Context, req ExecRequest) (*ExecResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("connector marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/exec", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("connector new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.internalToken != "" {
		httpReq.Header.Set("X-Internal-Token", c.internalToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("connector request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("connector read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var execResp ExecResponse
	if err := json.Unmarshal(respBody, &execResp); err != nil {
		return nil, fmt.Errorf("connector decode response: %w", err)
	}
	return &execResp, nil
}
