package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bturcanu/sfclause/pkg/types"
)

// Result is the outcome of one tool call: a JSON-serializable value or an
// error. Exactly one of Value and Err is meaningful.
type Result struct {
	Value any
	Err   error
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Kind returns the error kind of a failed call, or "" on success.
func (r Result) Kind() types.ErrorKind {
	if r.Err == nil {
		return ""
	}
	return types.KindOf(r.Err)
}

type errorBody struct {
	Error string `json:"error"`
}

// JSON renders the result as two-space indented JSON. Failures render as
// {"error": "<message>"}. Values that cannot be encoded are rendered as
// their string form.
func (r Result) JSON() string {
	if r.Err != nil {
		return render(errorBody{Error: r.Err.Error()})
	}
	return render(r.Value)
}

func render(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		buf.Reset()
		_ = enc.Encode(fmt.Sprint(v))
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}
