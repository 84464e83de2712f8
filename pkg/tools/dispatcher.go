package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bturcanu/sfclause/pkg/audit"
	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/bturcanu/sfclause/pkg/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bturcanu/sfclause/pkg/tools"

// Observer receives one observation per finished call. outcome is
// "success" or the error kind.
type Observer interface {
	ObserveCall(tool, outcome string, elapsed time.Duration)
}

// Auditor persists finished calls.
type Auditor interface {
	Record(ctx context.Context, inv *audit.Invocation) error
}

// Dispatcher routes named calls to catalog handlers. It holds no session
// state: every Call opens its own session through the opener.
type Dispatcher struct {
	tools   []Tool
	byName  map[string]Tool
	opener  SessionOpener
	objects *salesforce.ObjectTable
	log     *slog.Logger
	obs     Observer
	auditor Auditor
	tracer  trace.Tracer
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option { return func(d *Dispatcher) { d.log = l } }

func WithObserver(o Observer) Option { return func(d *Dispatcher) { d.obs = o } }

func WithAuditor(a Auditor) Option { return func(d *Dispatcher) { d.auditor = a } }

// WithObjects restricts object_type arguments to the table.
func WithObjects(t *salesforce.ObjectTable) Option { return func(d *Dispatcher) { d.objects = t } }

// WithTools replaces the catalog, e.g. to expose a subset.
func WithTools(tools []Tool) Option { return func(d *Dispatcher) { d.tools = tools } }

// NewDispatcher creates a dispatcher over Catalog().
func NewDispatcher(opener SessionOpener, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tools:  Catalog(),
		opener: opener,
		log:    slog.Default(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.objects == nil {
		d.objects = salesforce.NewObjectTable(nil)
	}
	d.byName = make(map[string]Tool, len(d.tools))
	for _, t := range d.tools {
		d.byName[t.Name] = t
	}
	return d
}

// Tools returns the catalog in registration order.
func (d *Dispatcher) Tools() []Tool {
	out := make([]Tool, len(d.tools))
	copy(out, d.tools)
	return out
}

// Lookup finds a tool by full name or by its name without Prefix.
func (d *Dispatcher) Lookup(name string) (Tool, bool) {
	name = strings.TrimSpace(name)
	if t, ok := d.byName[name]; ok {
		return t, true
	}
	t, ok := d.byName[Prefix+name]
	return t, ok
}

// Call runs the named tool. It never panics and never returns a nil
// Result: every failure, including a panicking handler, becomes Result.Err.
func (d *Dispatcher) Call(ctx context.Context, name string, args Args) (res Result) {
	started := d.now()
	invocationID := uuid.New()

	tool, ok := d.Lookup(name)
	if !ok {
		res = Result{Err: types.ErrValidation("tool", fmt.Sprintf("unknown tool %q", name))}
		d.finish(ctx, Tool{Name: name}, invocationID, args, started, res)
		return res
	}

	ctx, span := d.tracer.Start(ctx, "tool "+tool.Name, trace.WithAttributes(
		attribute.String("tool.name", tool.Name),
		attribute.String("tool.permission", string(tool.Permission)),
		attribute.String("tool.invocation_id", invocationID.String()),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: &types.ToolError{Kind: types.KindRemote, Message: fmt.Sprintf("internal error: %v", p)}}
			d.log.ErrorContext(ctx, "tool handler panicked", "tool", tool.Name, "invocation_id", invocationID.String(), "panic", p)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, string(res.Kind()))
		}
		d.finish(ctx, tool, invocationID, args, started, res)
	}()

	if err := checkRequired(tool, args); err != nil {
		return Result{Err: err}
	}

	call := &Call{Args: args, Log: d.log, opener: d.opener, objects: d.objects}
	value, err := tool.Handler(ctx, call)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: value}
}

// CallJSON runs the named tool and renders its result.
func (d *Dispatcher) CallJSON(ctx context.Context, name string, args Args) string {
	return d.Call(ctx, name, args).JSON()
}

func checkRequired(tool Tool, args Args) error {
	for _, p := range tool.Params {
		if !p.Required {
			continue
		}
		v, ok := args[p.Name]
		if s, isString := v.(string); !ok || v == nil || (isString && strings.TrimSpace(s) == "") {
			return types.ErrValidation(p.Name, "required")
		}
	}
	return nil
}

func outcome(res Result) string {
	if res.Err == nil {
		return "success"
	}
	return string(res.Kind())
}

// finish emits the log line, metric, and audit row of a call.
func (d *Dispatcher) finish(ctx context.Context, tool Tool, id uuid.UUID, args Args, started time.Time, res Result) {
	elapsed := d.now().Sub(started)
	out := outcome(res)

	if res.Err != nil {
		d.log.WarnContext(ctx, "tool call failed",
			"tool", tool.Name,
			"invocation_id", id.String(),
			"error_kind", out,
			"error", res.Err,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		d.log.InfoContext(ctx, "tool call",
			"tool", tool.Name,
			"invocation_id", id.String(),
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	if d.obs != nil {
		d.obs.ObserveCall(tool.Name, out, elapsed)
	}

	if d.auditor == nil {
		return
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte(`{}`)
	}
	inv := &audit.Invocation{
		ID:         id,
		Tool:       tool.Name,
		Permission: string(tool.Permission),
		Args:       argsJSON,
		Status:     "success",
		Duration:   elapsed,
		StartedAt:  started,
	}
	if res.Err != nil {
		inv.Status = "error"
		inv.ErrorKind = out
		inv.ErrorMsg = res.Err.Error()
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	// Audit failures are logged by the auditor and never reach the caller.
	_ = d.auditor.Record(auditCtx, inv)
}
