package salesforce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/bturcanu/sfclause/pkg/types"
)

// apiNameRe matches standard, custom (__c), namespaced, and metadata object
// and field API names.
var apiNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,79}$`)

// ValidAPIName reports whether name is a syntactically valid API name.
func ValidAPIName(name string) bool {
	return apiNameRe.MatchString(name) && !strings.HasSuffix(name, "_") && !strings.Contains(name, "___")
}

// ObjectTable is the set of object types the tools may address. An empty
// table admits every valid API name.
type ObjectTable struct {
	allowed map[string]string // lower-cased name → canonical name
}

func NewObjectTable(allowlist []string) *ObjectTable {
	t := &ObjectTable{allowed: make(map[string]string, len(allowlist))}
	for _, name := range allowlist {
		name = strings.TrimSpace(name)
		if ValidAPIName(name) {
			t.allowed[strings.ToLower(name)] = name
		}
	}
	return t
}

// Lookup returns the canonical name for name, or a config error when the
// name is malformed or outside the allowlist.
func (t *ObjectTable) Lookup(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !ValidAPIName(name) {
		return "", types.ErrConfig("unsupported object type %q: not a valid API name", name)
	}
	if len(t.allowed) == 0 {
		return name, nil
	}
	canonical, ok := t.allowed[strings.ToLower(name)]
	if !ok {
		return "", types.ErrConfig("unsupported object type %q: allowed types are %s", name, strings.Join(t.Names(), ", "))
	}
	return canonical, nil
}

// Names returns the allowlisted names in sorted order.
func (t *ObjectTable) Names() []string {
	names := make([]string, 0, len(t.allowed))
	for _, n := range t.allowed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// sobject is the operation handle for one object type.
type sobject struct {
	c    *Client
	name string
}

func (c *Client) sobject(name string) (*sobject, error) {
	canonical, err := c.cfg.Objects.Lookup(name)
	if err != nil {
		return nil, err
	}
	return &sobject{c: c, name: canonical}, nil
}

func (s *sobject) url(parts ...string) string {
	u := s.c.dataURL("/sobjects/" + s.name + "/")
	for i, p := range parts {
		if i > 0 {
			u += "/"
		}
		u += p
	}
	return u
}

func recordID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", types.ErrValidation("record_id", "required")
	}
	return url.PathEscape(id), nil
}

// ExternalIDKey builds the "field/value" key Salesforce expects for upserts.
func ExternalIDKey(field, value string) (string, error) {
	field = strings.TrimSpace(field)
	if !ValidAPIName(field) {
		return "", types.ErrValidation("external_id_field", "is not a valid field API name")
	}
	if value == "" {
		return "", types.ErrValidation("external_id_value", "required")
	}
	return field + "/" + url.PathEscape(value), nil
}

// Create inserts one record and returns Salesforce's {id, success, errors}.
func (c *Client) Create(ctx context.Context, objectType string, fields map[string]any) (json.RawMessage, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if _, err := c.do(ctx, request{method: http.MethodPost, url: s.url(), body: fields}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update patches a record and returns the HTTP status (204 on success).
func (c *Client) Update(ctx context.Context, objectType, id string, fields map[string]any) (int, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return 0, err
	}
	rid, err := recordID(id)
	if err != nil {
		return 0, err
	}
	return c.do(ctx, request{method: http.MethodPatch, url: s.url(rid), body: fields}, nil)
}

// Delete removes a record and returns the HTTP status (204 on success).
func (c *Client) Delete(ctx context.Context, objectType, id string) (int, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return 0, err
	}
	rid, err := recordID(id)
	if err != nil {
		return 0, err
	}
	return c.do(ctx, request{method: http.MethodDelete, url: s.url(rid)}, nil)
}

// Get returns the record with every readable field.
func (c *Client) Get(ctx context.Context, objectType, id string) (json.RawMessage, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return nil, err
	}
	rid, err := recordID(id)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if _, err := c.do(ctx, request{method: http.MethodGet, url: s.url(rid)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertResult reports the outcome of an upsert.
type UpsertResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Created    bool   `json:"created"`
	ID         string `json:"id,omitempty"`
}

// Upsert inserts or updates the record addressed by key, as built by
// ExternalIDKey. Salesforce answers 201 for inserts and 200/204 for updates.
func (c *Client) Upsert(ctx context.Context, objectType, key string, fields map[string]any) (UpsertResult, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return UpsertResult{}, err
	}
	var body struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	status, err := c.do(ctx, request{method: http.MethodPatch, url: s.url(key), body: fields}, &body)
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{
		Success:    true,
		StatusCode: status,
		Created:    status == http.StatusCreated || body.Created,
		ID:         body.ID,
	}, nil
}

// Describe returns the raw describe metadata of one object type.
func (c *Client) Describe(ctx context.Context, objectType string) (json.RawMessage, error) {
	s, err := c.sobject(objectType)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if _, err := c.do(ctx, request{method: http.MethodGet, url: s.url("describe")}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
