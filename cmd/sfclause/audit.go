package main

import (
	"fmt"
	"os"
	"time"

	"github.com/bturcanu/sfclause/pkg/audit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the tool invocation audit log",
	}

	var since time.Duration
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of recorded invocations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root.logger()
			dsn := os.Getenv("AUDIT_DATABASE_URL")
			if dsn == "" {
				return fmt.Errorf("AUDIT_DATABASE_URL is required")
			}
			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				return fmt.Errorf("audit postgres connect: %w", err)
			}
			defer pool.Close()

			from := time.Time{}
			if since > 0 {
				from = time.Now().Add(-since)
			}
			links, err := audit.NewStore(pool).Chain(ctx, from)
			if err != nil {
				return err
			}
			if err := audit.VerifyChain(links); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %d invocations\n", len(links))
			return nil
		},
	}
	verify.Flags().DurationVar(&since, "since", 0, "Only verify invocations started within this window (e.g. 24h); 0 verifies everything")

	cmd.AddCommand(verify)
	return cmd
}
