package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// QueryResult is one page of a SOQL query.
type QueryResult struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl,omitempty"`
	Records        []json.RawMessage `json:"records"`
}

// Query runs soql and returns the first page of results.
func (c *Client) Query(ctx context.Context, soql string) (*QueryResult, error) {
	var out QueryResult
	u := c.dataURL("/query/") + "?q=" + url.QueryEscape(soql)
	if _, err := c.do(ctx, request{method: http.MethodGet, url: u}, &out); err != nil {
		return nil, err
	}
	if out.Records == nil {
		out.Records = []json.RawMessage{}
	}
	return &out, nil
}

// Search runs a SOSL statement. A nil result means Salesforce answered with
// no document at all; an empty match list is returned as is.
func (c *Client) Search(ctx context.Context, sosl string) (json.RawMessage, error) {
	var out json.RawMessage
	u := c.dataURL("/search/") + "?q=" + url.QueryEscape(sosl)
	if _, err := c.do(ctx, request{method: http.MethodGet, url: u}, &out); err != nil {
		return nil, err
	}
	switch string(bytes.TrimSpace(out)) {
	case "", "null":
		return nil, nil
	}
	return out, nil
}

// DescribeGlobal returns the raw catalog of object types in the org.
func (c *Client) DescribeGlobal(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if _, err := c.do(ctx, request{method: http.MethodGet, url: c.dataURL("/sobjects/")}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentUserID returns the id of the authenticated user. Logins report it
// directly; reused sessions ask the userinfo endpoint.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}
	var info struct {
		UserID string `json:"user_id"`
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, url: c.instanceURL + "/services/oauth2/userinfo"}, &info); err != nil {
		return "", err
	}
	c.userID = info.UserID
	return c.userID, nil
}
