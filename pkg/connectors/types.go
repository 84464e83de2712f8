// Package connectors defines the /exec contract between callers and the
// Salesforce connector.
package connectors

import (
	"context"
	"encoding/json"
)

// Tool is the ExecRequest.Tool value the Salesforce connector accepts.
const Tool = "salesforce"

// Connector executes a tool action on an external system.
type Connector interface {
	// Exec executes the given request and returns a result.
	Exec(ctx context.Context, req ExecRequest) ExecResponse
}

// ExecRequest is the payload posted to a connector's /exec endpoint.
type ExecRequest struct {
	EventID string          `json:"event_id,omitempty"`
	AgentID string          `json:"agent_id,omitempty"`
	Tool    string          `json:"tool"`
	Action  string          `json:"action"` // tool name, with or without the salesforce_ prefix
	Params  json.RawMessage `json:"params"`
}

// ExecResponse is what the connector returns.
type ExecResponse struct {
	Status     string          `json:"status"` // "success" | "error"
	OutputJSON json.RawMessage `json:"output_json,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
}

// OK reports whether the call succeeded.
func (r ExecResponse) OK() bool { return r.Status == "success" }
