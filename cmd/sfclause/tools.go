package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/bturcanu/sfclause/pkg/tools"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newToolsCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printTools(cmd.OutOrStdout(), tools.Catalog(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format (table|json)")
	return cmd
}

func printTools(out io.Writer, catalog []tools.Tool, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(catalog)
	case "table":
		tw := table.NewWriter()
		tw.SetOutputMirror(out)
		tw.AppendHeader(table.Row{"Name", "Permission", "Description"})
		for _, t := range catalog {
			tw.AppendRow(table.Row{t.Name, t.Permission, t.Description})
		}
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
