package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bturcanu/sfclause/pkg/connectors"
	"github.com/bturcanu/sfclause/pkg/sdk/client"
	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/spf13/cobra"
)

// errToolFailed marks a call that ran but returned an error result; the
// result JSON has already been printed.
var errToolFailed = errors.New("tool call failed")

type callOptions struct {
	remote string
	token  string
	apiKey string
}

func newCallCmd(root *rootOptions) *cobra.Command {
	opts := &callOptions{}
	cmd := &cobra.Command{
		Use:   "call <tool> [json-args]",
		Short: "Run one tool and print its JSON result",
		Example: `  sfclause call query '{"query":"SELECT Id, Name FROM Account LIMIT 5"}'
  sfclause call salesforce_get_user_info
  sfclause call --remote http://connector-salesforce:8085 list_objects`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := root.logger()
			raw := "{}"
			if len(args) == 2 {
				raw = args[1]
			}
			var run runner
			switch {
			case opts.remote != "" && opts.apiKey != "":
				run = directRunner(client.New(opts.remote, opts.apiKey))
			case opts.remote != "":
				run = remoteRunner(connectors.NewClient(opts.remote, opts.token))
			default:
				run = localRunner(newDispatcher(log))
			}
			return runCall(cmd.Context(), cmd.OutOrStdout(), run, args[0], raw)
		},
	}
	cmd.Flags().StringVar(&opts.remote, "remote", "", "Base URL of a connector-salesforce to call instead of Salesforce directly")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("INTERNAL_AUTH_TOKEN"), "Internal token for --remote (/exec)")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", os.Getenv("SFCLAUSE_API_KEY"), "API key for --remote; calls /v1/tools instead of /exec")
	return cmd
}

// runner executes a tool and returns its JSON output and whether it succeeded.
type runner func(ctx context.Context, name string, params json.RawMessage) (string, bool, error)

func localRunner(caller connectors.Caller) runner {
	return func(ctx context.Context, name string, params json.RawMessage) (string, bool, error) {
		args, err := tools.ArgsFromJSON(params)
		if err != nil {
			return "", false, err
		}
		res := caller.Call(ctx, name, args)
		return res.JSON(), res.OK(), nil
	}
}

func remoteRunner(c *connectors.Client) runner {
	return func(ctx context.Context, name string, params json.RawMessage) (string, bool, error) {
		resp, err := c.Exec(ctx, connectors.ExecRequest{
			Tool:   connectors.Tool,
			Action: name,
			Params: params,
		})
		return render(resp, err)
	}
}

func directRunner(c *client.Client) runner {
	return func(ctx context.Context, name string, params json.RawMessage) (string, bool, error) {
		return render(c.Call(ctx, name, params))
	}
}

// render turns a connector response back into the tool's JSON text.
func render(resp *connectors.ExecResponse, err error) (string, bool, error) {
	if err != nil {
		return "", false, err
	}
	if !resp.OK() {
		return tools.Result{Err: errors.New(resp.Error)}.JSON(), false, nil
	}
	return tools.Result{Value: resp.OutputJSON}.JSON(), true, nil
}

func runCall(ctx context.Context, out io.Writer, run runner, name, raw string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	raw = strings.TrimSpace(raw)
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("arguments must be a JSON object")
	}
	output, ok, err := run(ctx, name, json.RawMessage(raw))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, output)
	if !ok {
		return errToolFailed
	}
	return nil
}
