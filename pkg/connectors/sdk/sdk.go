// Package sdk provides the reusable /exec HTTP handler for connectors.
package sdk

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bturcanu/sfclause/pkg/connectors"
)

const maxBodyBytes = 1 << 20

type Executor interface {
	Exec(context.Context, connectors.ExecRequest) connectors.ExecResponse
}

type Config struct {
	InternalToken string
	Timeout       time.Duration // per request; defaults to 60s
	Logger        *slog.Logger
}

func Handler(executor Executor, cfg Config) http.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.InternalToken != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Internal-Token")), []byte(cfg.InternalToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req connectors.ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		resp := executor.Exec(ctx, req)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error("encode response failed", "error", err)
		}
	}
}
