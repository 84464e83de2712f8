package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var bundleNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// EnvSource reads bundle keys from the process environment. The bundle name
// only has to be valid; every bundle maps onto the same SF_* variables.
type EnvSource struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (s EnvSource) Fetch(_ context.Context, name string) (Bundle, error) {
	if !bundleNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid bundle name %q", name)
	}
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	b := Bundle{}
	for _, k := range Keys {
		if v, ok := lookup(k); ok {
			b[k] = v
		}
	}
	return b, nil
}

// FileSource reads <Dir>/<name>.json, a flat JSON object of string values,
// such as a mounted Kubernetes secret.
type FileSource struct {
	Dir string
}

func (s FileSource) Fetch(_ context.Context, name string) (Bundle, error) {
	if !bundleNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid bundle name %q", name)
	}
	path := filepath.Join(s.Dir, name+".json")
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("bundle %q not found in %s", name, s.Dir)
		}
		return nil, fmt.Errorf("read bundle %q: %w", name, err)
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %q: %w", name, err)
	}
	return b, nil
}

// NewSource returns a FileSource when dir is set and an EnvSource otherwise.
func NewSource(dir string) Source {
	if dir != "" {
		return FileSource{Dir: dir}
	}
	return EnvSource{}
}
