package salesforce

import (
	"context"

	"github.com/bturcanu/sfclause/pkg/config"
	"github.com/bturcanu/sfclause/pkg/credentials"
)

// SessionFactory opens a fresh session per call: it fetches the bundle,
// selects a strategy, and logs in. Nothing is reused between calls.
type SessionFactory struct {
	Source credentials.Source
	Bundle string
	Config Config
}

// Open resolves credentials and connects.
func (f SessionFactory) Open(ctx context.Context) (*Client, error) {
	name := f.Bundle
	if name == "" {
		name = credentials.DefaultBundle
	}
	r, err := credentials.Resolve(ctx, f.Source, name)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, r, f.Config)
}

// FactoryFromEnv builds a factory from SF_CREDENTIALS_DIR,
// SF_CREDENTIAL_BUNDLE and the client settings read by ConfigFromEnv.
func FactoryFromEnv() SessionFactory {
	return SessionFactory{
		Source: credentials.NewSource(config.EnvOr("SF_CREDENTIALS_DIR", "")),
		Bundle: config.EnvOr("SF_CREDENTIAL_BUNDLE", credentials.DefaultBundle),
		Config: ConfigFromEnv(),
	}
}
