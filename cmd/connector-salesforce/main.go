// Connector-Salesforce serves the Salesforce tool catalog over HTTP: the
// internal /exec contract plus direct, API-key guarded tool calls.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bturcanu/sfclause/pkg/audit"
	"github.com/bturcanu/sfclause/pkg/auth"
	"github.com/bturcanu/sfclause/pkg/config"
	"github.com/bturcanu/sfclause/pkg/connectors"
	"github.com/bturcanu/sfclause/pkg/connectors/sdk"
	"github.com/bturcanu/sfclause/pkg/metrics"
	sfOtel "github.com/bturcanu/sfclause/pkg/otel"
	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/bturcanu/sfclause/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes    = 1 << 20 // 1 MB
	maxRateLimiters = 10_000
	requestTimeout  = 60 * time.Second
)

// Version is set at build time with -ldflags.
var Version = "dev"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	internalToken := os.Getenv("INTERNAL_AUTH_TOKEN")
	if internalToken == "" {
		log.Error("INTERNAL_AUTH_TOKEN is required")
		os.Exit(1)
	}

	// ── OpenTelemetry ────────────────────────────────────────────────────
	otelShutdown, err := sfOtel.Setup(ctx, sfOtel.ConfigFromEnv("connector-salesforce", Version))
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	// ── Dependencies ─────────────────────────────────────────────────────
	factory := salesforce.FactoryFromEnv()
	opts := []tools.Option{
		tools.WithLogger(log),
		tools.WithObserver(metrics.NewTools(nil)),
		tools.WithObjects(factory.Config.Objects),
	}

	var pool *pgxpool.Pool
	if dsn := os.Getenv("AUDIT_DATABASE_URL"); dsn != "" {
		pool, err = pgxpool.New(ctx, dsn)
		if err != nil {
			log.Error("audit postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		store := audit.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			log.Error("audit schema setup failed", "error", err)
			os.Exit(1)
		}
		opts = append(opts, tools.WithAuditor(audit.NewLogger(store, log)))
	}

	dispatcher := tools.NewDispatcher(tools.FromFactory(factory), opts...)
	connector := &Connector{
		log:            log,
		tools:          dispatcher,
		rateLimiters:   make(map[string]*rate.Limiter),
		perCallerLimit: config.EnvOrInt("RATE_LIMIT_PER_CALLER", 20),
	}
	keyStore := auth.NewKeyStore(os.Getenv("API_KEYS"))
	if keyStore.Len() == 0 {
		log.Warn("API_KEYS is empty; direct tool calls are disabled")
	}

	r := newRouter(connector, keyStore, internalToken, readiness(pool))

	// ── Metrics (internal) ───────────────────────────────────────────────
	metricsAddr := config.EnvOr("METRICS_ADDR", "127.0.0.1:9095")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              metricsAddr,
		Handler:           metricsMux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	go func() {
		log.Info("metrics server starting", "addr", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", "error", err)
		}
	}()

	// ── Server ───────────────────────────────────────────────────────────
	addr := config.EnvOr("CONNECTOR_SALESFORCE_ADDR", ":8085")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("connector-salesforce starting",
			"addr", addr,
			"tools", len(dispatcher.Tools()),
			"audit", pool != nil,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down connector-salesforce")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	if err := metricsSrv.Shutdown(shutCtx); err != nil {
		log.Error("metrics server shutdown error", "error", err)
	}
}

func readiness(pool *pgxpool.Pool) func(context.Context) error {
	if pool == nil {
		return nil
	}
	return pool.Ping
}

func newRouter(c *Connector, keys *auth.KeyStore, internalToken string, ready func(context.Context) error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Post("/exec", sdk.Handler(connectors.NewExecutor(c.tools, c.log), sdk.Config{
		InternalToken: internalToken,
		Timeout:       requestTimeout,
		Logger:        c.log,
	}))

	r.Route("/v1/tools", func(r chi.Router) {
		r.Use(auth.APIKeyAuth(keys))
		r.Get("/", c.HandleListTools)
		r.Post("/{name}", c.HandleCallTool)
	})
	return r
}

// ──────────────────────────────────────────────────────────────────────────────
// Direct tool calls
// ──────────────────────────────────────────────────────────────────────────────

type Connector struct {
	log            *slog.Logger
	tools          toolDispatcher
	rateLimiters   map[string]*rate.Limiter
	rlOrder        []string
	rlMu           sync.Mutex
	perCallerLimit int
}

type toolDispatcher interface {
	Tools() []tools.Tool
	Lookup(name string) (tools.Tool, bool)
	Call(ctx context.Context, name string, args tools.Args) tools.Result
}

type toolInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Permission  string        `json:"permission"`
	Destructive bool          `json:"destructive,omitempty"`
	Params      []tools.Param `json:"params"`
}

// HandleListTools is GET /v1/tools. Tools the caller's scope cannot run are
// omitted.
func (c *Connector) HandleListTools(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	out := []toolInfo{}
	for _, t := range c.tools.Tools() {
		if !p.Allows(string(t.Permission)) {
			continue
		}
		params := t.Params
		if params == nil {
			params = []tools.Param{}
		}
		out = append(out, toolInfo{
			Name:        t.Name,
			Description: t.Description,
			Permission:  string(t.Permission),
			Destructive: t.Destructive,
			Params:      params,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"tools": out}); err != nil {
		c.log.ErrorContext(r.Context(), "response encode failed", "error", err)
	}
}

// HandleCallTool is POST /v1/tools/{name}. The body is the argument object.
func (c *Connector) HandleCallTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	tool, ok := c.tools.Lookup(name)
	if !ok {
		types.ErrNotFound("unknown tool").WriteJSON(w)
		return
	}
	p, _ := auth.PrincipalFromContext(ctx)
	if !p.Allows(string(tool.Permission)) {
		c.log.WarnContext(ctx, "tool call denied by scope", "caller", p.Caller, "scope", string(p.Scope), "tool", tool.Name)
		types.ErrForbidden("key scope does not permit " + string(tool.Permission) + " tools").WriteJSON(w)
		return
	}
	if !c.allowRate(p.Caller) {
		types.ErrRateLimited().WriteJSON(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		types.ErrBadRequest("request body too large").WriteJSON(w)
		return
	}
	args, err := tools.ArgsFromJSON(body)
	if err != nil {
		types.ErrBadRequest(err.Error()).WriteJSON(w)
		return
	}

	res := c.tools.Call(ctx, tool.Name, args)
	resp := connectors.ExecResponse{Status: "success"}
	if res.OK() {
		resp.OutputJSON = json.RawMessage(res.JSON())
	} else {
		resp.Status = "error"
		resp.Error = res.Err.Error()
		resp.ErrorKind = string(res.Kind())
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		c.log.ErrorContext(ctx, "response encode failed", "error", err)
	}
}

func (c *Connector) allowRate(caller string) bool {
	if c.perCallerLimit <= 0 {
		return true
	}
	caller = strings.TrimSpace(caller)

	c.rlMu.Lock()
	defer c.rlMu.Unlock()

	lim, ok := c.rateLimiters[caller]
	if ok {
		// Move to end of LRU order.
		for i, k := range c.rlOrder {
			if k == caller {
				c.rlOrder = append(c.rlOrder[:i], c.rlOrder[i+1:]...)
				break
			}
		}
		c.rlOrder = append(c.rlOrder, caller)
		return lim.Allow()
	}

	if len(c.rateLimiters) >= maxRateLimiters {
		oldest := c.rlOrder[0]
		c.rlOrder = c.rlOrder[1:]
		delete(c.rateLimiters, oldest)
	}

	lim = rate.NewLimiter(rate.Limit(c.perCallerLimit), c.perCallerLimit*2)
	c.rateLimiters[caller] = lim
	c.rlOrder = append(c.rlOrder, caller)
	return lim.Allow()
}
