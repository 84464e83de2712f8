// Package config provides shared environment variable helpers.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// EnvOr returns the environment variable value or a fallback default.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// EnvOrInt returns an integer environment variable or a fallback default.
// Logs a warning if the value is set but not parseable.
func EnvOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return n
}

// EnvOrBool returns a boolean environment variable or a fallback default.
func EnvOrBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("invalid boolean env var, using fallback", "key", key, "value", v, "fallback", fallback)
		return fallback
	}
	return b
}

// EnvList splits a comma-separated environment variable, dropping empty items.
func EnvList(key string) []string {
	return SplitList(os.Getenv(key))
}

// SplitList splits a comma-separated string, trimming whitespace and dropping
// empty items.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
