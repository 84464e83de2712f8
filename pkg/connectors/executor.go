package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/bturcanu/sfclause/pkg/types"
)

// Caller runs a named tool. *tools.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, name string, args tools.Args) tools.Result
}

// Executor adapts a Caller to the /exec contract.
type Executor struct {
	caller Caller
	log    *slog.Logger
}

// NewExecutor returns an Executor over caller.
func NewExecutor(caller Caller, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{caller: caller, log: log}
}

// Exec implements Connector.
func (e *Executor) Exec(ctx context.Context, req ExecRequest) ExecResponse {
	if req.Tool != Tool {
		return errorResponse(types.ErrValidation("tool", fmt.Sprintf("unsupported tool %q", req.Tool)))
	}
	args, err := tools.ArgsFromJSON(req.Params)
	if err != nil {
		return errorResponse(err)
	}

	res := e.caller.Call(ctx, req.Action, args)
	if !res.OK() {
		e.log.InfoContext(ctx, "exec returned error",
			"event_id", req.EventID,
			"agent_id", req.AgentID,
			"action", req.Action,
			"error_kind", string(res.Kind()),
		)
		return errorResponse(res.Err)
	}
	return ExecResponse{Status: "success", OutputJSON: json.RawMessage(res.JSON())}
}

func errorResponse(err error) ExecResponse {
	return ExecResponse{
		Status:    "error",
		Error:     err.Error(),
		ErrorKind: string(types.KindOf(err)),
	}
}
