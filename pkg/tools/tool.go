// Package tools is the catalog of Salesforce operations exposed to agents.
// Each tool takes named arguments, opens its own session, forwards the call,
// and reduces the outcome to a Result that always renders as JSON text.
package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/bturcanu/sfclause/pkg/salesforce"
)

// Permission tags a tool for the hosting agent's authorization layer.
type Permission string

const (
	ReadOnly  Permission = "read_only"
	ReadWrite Permission = "read_write"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
)

// Param declares one tool argument.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description"`
}

// Handler implements a tool. The returned value must be JSON-serializable.
type Handler func(ctx context.Context, call *Call) (any, error)

// Tool is one catalog entry.
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Permission  Permission `json:"permission"`
	Destructive bool       `json:"destructive,omitempty"`
	Params      []Param    `json:"params"`
	Handler     Handler    `json:"-"`
}

// Prefix is shared by every tool name.
const Prefix = "salesforce_"

// ShortName returns the tool name without Prefix.
func (t Tool) ShortName() string { return strings.TrimPrefix(t.Name, Prefix) }

// ──────────────────────────────────────────────────────────────────────────────
// Sessions
// ──────────────────────────────────────────────────────────────────────────────

// Session is the set of remote calls the catalog forwards to.
// *salesforce.Client implements it.
type Session interface {
	Query(ctx context.Context, soql string) (*salesforce.QueryResult, error)
	Search(ctx context.Context, sosl string) (json.RawMessage, error)
	DescribeGlobal(ctx context.Context) (json.RawMessage, error)
	CurrentUserID(ctx context.Context) (string, error)

	Create(ctx context.Context, objectType string, fields map[string]any) (json.RawMessage, error)
	Update(ctx context.Context, objectType, id string, fields map[string]any) (int, error)
	Delete(ctx context.Context, objectType, id string) (int, error)
	Get(ctx context.Context, objectType, id string) (json.RawMessage, error)
	Upsert(ctx context.Context, objectType, key string, fields map[string]any) (salesforce.UpsertResult, error)
	Describe(ctx context.Context, objectType string) (json.RawMessage, error)
	BulkInsert(ctx context.Context, objectType string, records []map[string]any, batchSize int) ([]salesforce.BulkResult, error)
}

var _ Session = (*salesforce.Client)(nil)

// SessionOpener produces a fresh session for one call.
type SessionOpener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to SessionOpener.
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// FromFactory opens sessions through a salesforce.SessionFactory.
func FromFactory(f salesforce.SessionFactory) SessionOpener {
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		c, err := f.Open(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Call is the per-invocation state handed to a Handler.
type Call struct {
	Args Args
	Log  *slog.Logger

	opener  SessionOpener
	objects *salesforce.ObjectTable
	session Session
}

// Session opens the session on first use and returns the same one for the
// rest of the call.
func (c *Call) Session(ctx context.Context) (Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	s, err := c.opener.Open(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	return s, nil
}

// ObjectType reads the named argument and resolves it against the object
// table. Tools that splice the name into SOQL must go through here.
func (c *Call) ObjectType(name string) (string, error) {
	raw, err := c.Args.RequiredString(name)
	if err != nil {
		return "", err
	}
	return c.objects.Lookup(raw)
}
