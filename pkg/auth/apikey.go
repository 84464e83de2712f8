package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// Scope bounds which tools a key may call.
type Scope string

const (
	ScopeReadOnly  Scope = "read_only"
	ScopeReadWrite Scope = "read_write"
)

// Principal is the caller an API key authenticates.
type Principal struct {
	Caller string
	Scope  Scope
}

// Allows reports whether the principal may call a tool with the given
// permission tag.
func (p Principal) Allows(permission string) bool {
	switch permission {
	case string(ScopeReadOnly):
		return p.Scope == ScopeReadOnly || p.Scope == ScopeReadWrite
	case string(ScopeReadWrite):
		return p.Scope == ScopeReadWrite
	default:
		return false
	}
}

// KeyStore maps hashed API keys to principals. Thread-safe.
// Keys are stored as SHA-256 hashes to protect against memory dumps.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]Principal // SHA-256(apiKey) → principal
}

// NewKeyStore parses a comma-separated list of "caller:key[:scope]" entries.
// Scope is read_only or read_write and defaults to read_only.
// Example: "crm-agent:sk-abc:read_write,reporting:sk-def"
func NewKeyStore(raw string) *KeyStore {
	ks := &KeyStore{keys: make(map[string]Principal)}
	if raw == "" {
		return ks
	}
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) < 2 {
			continue
		}
		caller := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if caller == "" || key == "" {
			continue
		}
		scope := ScopeReadOnly
		if len(parts) == 3 && Scope(strings.TrimSpace(parts[2])) == ScopeReadWrite {
			scope = ScopeReadWrite
		}
		ks.keys[hashKey(key)] = Principal{Caller: caller, Scope: scope}
	}
	return ks
}

// Len returns the number of configured keys.
func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

// Lookup returns the principal for a given API key.
func (ks *KeyStore) Lookup(apiKey string) (Principal, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	p, ok := ks.keys[hashKey(apiKey)]
	return p, ok
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
