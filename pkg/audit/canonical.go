// Package audit records every tool invocation in a tamper-evident Postgres
// log: each row carries SHA-256(prev_hash || canonical payload || canonical
// outcome), so editing or deleting a row breaks the chain.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CanonicalJSON produces a stable byte representation of v: object keys
// sorted, numbers kept verbatim, no insignificant whitespace.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical json unmarshal: %w", err)
	}

	// encoding/json writes map keys in sorted order.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical json re-marshal: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
