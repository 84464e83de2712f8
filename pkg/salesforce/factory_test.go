package salesforce

import (
	"context"
	"errors"
	"testing"

	"github.com/bturcanu/sfclause/pkg/credentials"
	"github.com/bturcanu/sfclause/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]credentials.Bundle

func (m mapSource) Fetch(_ context.Context, name string) (credentials.Bundle, error) {
	b, ok := m[name]
	if !ok {
		return nil, errors.New("bundle not found")
	}
	return b, nil
}

func TestSessionFactory_Open(t *testing.T) {
	f := SessionFactory{
		Source: mapSource{credentials.DefaultBundle: {
			credentials.KeySessionID: "00Dsession",
			credentials.KeyInstance:  "na1.my.salesforce.com",
		}},
	}
	c, err := f.Open(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://na1.my.salesforce.com", c.InstanceURL())
	assert.Equal(t, DefaultAPIVersion, c.APIVersion())
}

func TestSessionFactory_MissingBundle(t *testing.T) {
	f := SessionFactory{Source: mapSource{}, Bundle: "other"}
	_, err := f.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.KindConfig, types.KindOf(err))
	assert.Contains(t, err.Error(), "failed to access credential bundle")
}

func TestFactoryFromEnv(t *testing.T) {
	t.Setenv("SF_CREDENTIALS_DIR", "/var/run/secrets/sf")
	t.Setenv("SF_CREDENTIAL_BUNDLE", "prod_creds")
	t.Setenv("SF_API_VERSION", "v60.0")

	f := FactoryFromEnv()
	assert.Equal(t, "prod_creds", f.Bundle)
	assert.Equal(t, credentials.FileSource{Dir: "/var/run/secrets/sf"}, f.Source)
	assert.Equal(t, "v60.0", f.Config.APIVersion)
}
