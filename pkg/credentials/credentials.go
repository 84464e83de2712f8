// Package credentials fetches the Salesforce credential bundle and decides
// which authentication strategy it supports.
package credentials

import (
	"context"
	"fmt"
	"strings"

	"github.com/bturcanu/sfclause/pkg/types"
)

// DefaultBundle is the bundle name used when none is configured.
const DefaultBundle = "salesforce_creds"

// DefaultDomain is the production login host prefix.
const DefaultDomain = "login"

const (
	KeyUsername       = "SF_USERNAME"
	KeyPassword       = "SF_PASSWORD"
	KeySecurityToken  = "SF_SECURITY_TOKEN"
	KeyDomain         = "SF_DOMAIN"
	KeySessionID      = "SF_SESSION_ID"
	KeyInstance       = "SF_INSTANCE"
	KeyConsumerKey    = "SF_CONSUMER_KEY"
	KeyConsumerSecret = "SF_CONSUMER_SECRET"
)

// Keys lists every key a bundle may carry, in display order.
var Keys = []string{
	KeyUsername, KeyPassword, KeySecurityToken, KeyDomain,
	KeySessionID, KeyInstance, KeyConsumerKey, KeyConsumerSecret,
}

// Bundle maps credential key names to values.
type Bundle map[string]string

// Get returns the trimmed value for key, or "" if absent.
func (b Bundle) Get(key string) string {
	return strings.TrimSpace(b[key])
}

func (b Bundle) has(keys ...string) bool {
	for _, k := range keys {
		if b.Get(k) == "" {
			return false
		}
	}
	return true
}

// Source fetches a named credential bundle from an external store.
type Source interface {
	Fetch(ctx context.Context, name string) (Bundle, error)
}

// Strategy identifies how a session is established.
type Strategy int

const (
	StrategySession  Strategy = iota + 1 // reuse SF_SESSION_ID on SF_INSTANCE
	StrategyPassword                     // username + password + security token
	StrategyOAuth                        // username + password + connected app
)

func (s Strategy) String() string {
	switch s {
	case StrategySession:
		return "session"
	case StrategyPassword:
		return "password"
	case StrategyOAuth:
		return "oauth"
	default:
		return "unknown"
	}
}

// Resolved is a bundle reduced to the fields its strategy needs.
type Resolved struct {
	Strategy       Strategy
	Domain         string
	Username       string
	Password       string
	SecurityToken  string
	SessionID      string
	Instance       string
	ConsumerKey    string
	ConsumerSecret string
}

// Select applies the strategy precedence to b. A reusable session wins over
// any login; otherwise a username and password are mandatory and the
// security token is preferred over connected-app credentials.
func Select(b Bundle) (Resolved, error) {
	domain := b.Get(KeyDomain)
	if domain == "" {
		domain = DefaultDomain
	}

	if b.has(KeySessionID, KeyInstance) {
		return Resolved{
			Strategy:  StrategySession,
			Domain:    domain,
			SessionID: b.Get(KeySessionID),
			Instance:  b.Get(KeyInstance),
		}, nil
	}

	if b.Get(KeyUsername) == "" {
		return Resolved{}, types.ErrConfig("username missing: %s not found in credential bundle", KeyUsername)
	}
	if b.Get(KeyPassword) == "" {
		return Resolved{}, types.ErrConfig("password missing: %s not found in credential bundle", KeyPassword)
	}

	r := Resolved{
		Domain:   domain,
		Username: b.Get(KeyUsername),
		Password: b.Get(KeyPassword),
	}
	switch {
	case b.has(KeySecurityToken):
		r.Strategy = StrategyPassword
		r.SecurityToken = b.Get(KeySecurityToken)
	case b.has(KeyConsumerKey, KeyConsumerSecret):
		r.Strategy = StrategyOAuth
		r.ConsumerKey = b.Get(KeyConsumerKey)
		r.ConsumerSecret = b.Get(KeyConsumerSecret)
	default:
		return Resolved{}, types.ErrConfig("missing required credentials: set %s, or %s and %s, or %s and %s",
			KeySecurityToken, KeyConsumerKey, KeyConsumerSecret, KeySessionID, KeyInstance)
	}
	return r, nil
}

// Resolve fetches bundle name from src and selects its strategy.
func Resolve(ctx context.Context, src Source, name string) (Resolved, error) {
	b, err := src.Fetch(ctx, name)
	if err != nil {
		return Resolved{}, types.WrapConfig(err, "failed to access credential bundle")
	}
	return Select(b)
}

// Mask hides all but the length of a secret value.
func Mask(v string) string {
	if v == "" {
		return "<unset>"
	}
	return strings.Repeat("*", len(v))
}

// Describe renders b for diagnostics with every secret masked.
func Describe(b Bundle) []string {
	lines := make([]string, 0, len(Keys))
	for _, k := range Keys {
		v := b.Get(k)
		switch k {
		case KeyUsername, KeyDomain, KeyInstance:
			if v == "" {
				v = "<unset>"
			}
		default:
			v = Mask(v)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", k, v))
	}
	return lines
}
