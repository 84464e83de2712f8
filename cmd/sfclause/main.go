// Sfclause is the command-line entrypoint: it serves the Salesforce tool
// catalog over MCP, runs single tool calls, and diagnoses credentials.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bturcanu/sfclause/pkg/metrics"
	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/spf13/cobra"
)

var (
	// Set at build time with -ldflags.
	Name    = "sfclause"
	Version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           Name,
		Short:         "Salesforce CRM tools for AI agents",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level (debug|info|warn|error)")

	root.AddCommand(
		newMCPCmd(opts),
		newCheckCmd(opts),
		newCallCmd(opts),
		newToolsCmd(),
		newAuditCmd(opts),
	)
	return root
}

// logger writes JSON logs to stderr; stdout is reserved for command output
// and the stdio MCP transport.
func (o *rootOptions) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	return log
}

// newDispatcher wires a dispatcher over sessions opened from the environment.
func newDispatcher(log *slog.Logger, extra ...tools.Option) *tools.Dispatcher {
	factory := salesforce.FactoryFromEnv()
	opts := []tools.Option{
		tools.WithLogger(log),
		tools.WithObjects(factory.Config.Objects),
		tools.WithObserver(metrics.NewTools(nil)),
	}
	return tools.NewDispatcher(tools.FromFactory(factory), append(opts, extra...)...)
}
