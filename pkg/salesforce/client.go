// Package salesforce is a small REST and Bulk API client covering the calls
// the tool catalog forwards: query, search, record CRUD, upsert, bulk insert,
// and metadata describes.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bturcanu/sfclause/pkg/config"
	"github.com/bturcanu/sfclause/pkg/types"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIVersion       = "59.0"
	DefaultBulkPollInterval = 2 * time.Second

	maxResponseBytes = 32 << 20
)

// Config holds client settings shared by every session.
type Config struct {
	APIVersion       string
	HTTPClient       *http.Client
	Limiter          *rate.Limiter // nil means unlimited
	Objects          *ObjectTable
	BulkPollInterval time.Duration
	// LoginURL overrides https://<domain>.salesforce.com.
	LoginURL string
}

// ConfigFromEnv builds a Config from SF_* environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		APIVersion: config.EnvOr("SF_API_VERSION", DefaultAPIVersion),
		HTTPClient: &http.Client{
			Timeout: time.Duration(config.EnvOrInt("SF_HTTP_TIMEOUT_SEC", 30)) * time.Second,
		},
		Objects:          NewObjectTable(config.EnvList("SF_OBJECT_ALLOWLIST")),
		BulkPollInterval: time.Duration(config.EnvOrInt("SF_BULK_POLL_MS", 2000)) * time.Millisecond,
		LoginURL:         config.EnvOr("SF_LOGIN_URL", ""),
	}
	if rps := config.EnvOrInt("SF_MAX_RPS", 0); rps > 0 {
		cfg.Limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
	return cfg
}

func (c Config) withDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	c.APIVersion = strings.TrimPrefix(c.APIVersion, "v")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Objects == nil {
		c.Objects = NewObjectTable(nil)
	}
	if c.BulkPollInterval <= 0 {
		c.BulkPollInterval = DefaultBulkPollInterval
	}
	return c
}

// Client is one authenticated session against a Salesforce instance.
type Client struct {
	instanceURL string
	accessToken string
	userID      string
	cfg         Config
}

// NewClient binds an existing access token to an instance. instance may be a
// bare host ("acme.my.salesforce.com") or a URL.
func NewClient(instance, accessToken string, cfg Config) (*Client, error) {
	instanceURL, err := normalizeInstance(instance)
	if err != nil {
		return nil, err
	}
	if accessToken == "" {
		return nil, types.ErrConfig("access token is empty")
	}
	return &Client{
		instanceURL: instanceURL,
		accessToken: accessToken,
		cfg:         cfg.withDefaults(),
	}, nil
}

// InstanceURL returns the base URL of the bound instance.
func (c *Client) InstanceURL() string { return c.instanceURL }

// APIVersion returns the REST API version in use, without the "v" prefix.
func (c *Client) APIVersion() string { return c.cfg.APIVersion }

func normalizeInstance(instance string) (string, error) {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return "", types.ErrConfig("instance is empty")
	}
	if !strings.Contains(instance, "://") {
		instance = "https://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil || u.Host == "" {
		return "", types.ErrConfig("invalid instance %q", instance)
	}
	return u.Scheme + "://" + u.Host, nil
}

func (c *Client) dataURL(path string) string {
	return c.instanceURL + "/services/data/v" + c.cfg.APIVersion + path
}

type request struct {
	method string
	url    string
	body   any
	bulk   bool // Bulk API 1.0 authenticates with X-SFDC-Session
}

// do sends req and decodes a 2xx body into out when both are non-empty.
// It returns the HTTP status code.
func (c *Client) do(ctx context.Context, req request, out any) (int, error) {
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("salesforce rate limit wait: %w", err)
		}
	}

	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return 0, types.ErrValidation("body", "not serializable: "+err.Error())
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return 0, fmt.Errorf("salesforce new request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.bulk {
		httpReq.Header.Set("X-SFDC-Session", c.accessToken)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("salesforce %s %s: %w", req.method, redactURL(req.url), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("salesforce read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeError(resp.StatusCode, respBody)
	}
	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("salesforce decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// decodeError turns a Salesforce error body into a ToolError. REST returns a
// list of {message, errorCode}; Bulk returns {exceptionCode,
// exceptionMessage}; OAuth returns {error, error_description}.
func decodeError(status int, body []byte) error {
	var restErrs []struct {
		Message   string `json:"message"`
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal(body, &restErrs); err == nil && len(restErrs) > 0 {
		msgs := make([]string, 0, len(restErrs))
		for _, e := range restErrs {
			msgs = append(msgs, e.Message)
		}
		code := restErrs[0].ErrorCode
		return types.ErrRemote(status, code, fmt.Sprintf("%s: %s (status %d)", code, strings.Join(msgs, "; "), status))
	}

	var other struct {
		ExceptionCode    string `json:"exceptionCode"`
		ExceptionMessage string `json:"exceptionMessage"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &other); err == nil {
		switch {
		case other.ExceptionCode != "":
			return types.ErrRemote(status, other.ExceptionCode,
				fmt.Sprintf("%s: %s (status %d)", other.ExceptionCode, other.ExceptionMessage, status))
		case other.Error != "":
			return types.ErrRemote(status, other.Error,
				fmt.Sprintf("%s: %s (status %d)", other.Error, other.ErrorDescription, status))
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return types.ErrRemote(status, "", fmt.Sprintf("salesforce returned status %d: %s", status, text))
}

// redactURL drops the query string, which may carry a full SOQL statement.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}
