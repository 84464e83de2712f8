package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bturcanu/sfclause/pkg/mcpserver"
	sfOtel "github.com/bturcanu/sfclause/pkg/otel"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

type mcpOptions struct {
	port  int
	stdio bool
	tools []string
}

func newMCPCmd(root *rootOptions) *cobra.Command {
	opts := &mcpOptions{}
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Salesforce tools over the Model Context Protocol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMCP(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", 8084, "Port to run the SSE server on")
	cmd.Flags().BoolVar(&opts.stdio, "stdio", false, "Use stdio for communication instead of HTTP")
	cmd.Flags().StringSliceVar(&opts.tools, "tools", []string{}, "Tools to register, with or without the salesforce_ prefix. If empty, all tools are registered.")
	return cmd
}

func runMCP(parent context.Context, root *rootOptions, opts *mcpOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	log := root.logger()
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	otelShutdown, err := sfOtel.Setup(ctx, sfOtel.ConfigFromEnv(Name, Version))
	if err != nil {
		log.Error("otel setup failed", "error", err)
	} else {
		defer otelShutdown(context.Background()) //nolint:errcheck // best-effort shutdown
	}

	dispatcher := newDispatcher(log)
	s := server.NewMCPServer(Name, Version)
	registered := mcpserver.Register(s, dispatcher, dispatcher.Tools(), opts.tools, log)
	if len(registered) == 0 {
		return errors.New("no tools registered")
	}
	log.Info("starting "+Name, "version", Version, "tools", registered)

	if opts.stdio {
		log.Info("serving MCP over stdio")
		if err := server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server: %w", err)
		}
		return nil
	}

	sse := server.NewSSEServer(s)
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", opts.port)
		log.Info("serving MCP over SSE", "addr", addr)
		errCh <- sse.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sse server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down MCP server")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := sse.Shutdown(shutCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}
