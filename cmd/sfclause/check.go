package main

import (
	"context"
	"fmt"
	"io"

	"github.com/bturcanu/sfclause/pkg/credentials"
	"github.com/bturcanu/sfclause/pkg/salesforce"
	"github.com/spf13/cobra"
)

func newCheckCmd(root *rootOptions) *cobra.Command {
	var login bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the credential bundle (masked) and the login strategy it selects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root.logger()
			return runCheck(cmd.Context(), cmd.OutOrStdout(), salesforce.FactoryFromEnv(), login)
		},
	}
	cmd.Flags().BoolVar(&login, "login", false, "Also log in and report the instance and user")
	return cmd
}

func runCheck(ctx context.Context, out io.Writer, f salesforce.SessionFactory, login bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	name := f.Bundle
	if name == "" {
		name = credentials.DefaultBundle
	}
	fmt.Fprintf(out, "bundle: %s\n", name)

	b, err := f.Source.Fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to access credential bundle: %w", err)
	}
	for _, line := range credentials.Describe(b) {
		fmt.Fprintf(out, "  %s\n", line)
	}

	r, err := credentials.Select(b)
	if err != nil {
		fmt.Fprintln(out, "strategy: none")
		return err
	}
	fmt.Fprintf(out, "strategy: %s\n", r.Strategy)
	fmt.Fprintf(out, "domain: %s\n", r.Domain)
	if !login {
		return nil
	}

	c, err := salesforce.Connect(ctx, r, f.Config)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "instance: %s\n", c.InstanceURL())
	fmt.Fprintf(out, "api_version: %s\n", c.APIVersion())
	uid, err := c.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("logged in, but user lookup failed: %w", err)
	}
	fmt.Fprintf(out, "user_id: %s\n", uid)
	return nil
}
