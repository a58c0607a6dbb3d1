package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dbjwhs/cql-sub000/internal/audit"
	"github.com/dbjwhs/cql-sub000/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve query compilation over MCP on stdio",
	Long: `Mcp runs a Model Context Protocol server on standard input and
output, exposing compile_query, optimize_query and list_templates
tools. Cache, audit and history maintenance run on a schedule while
the server is up.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := templateStore()
		if err != nil {
			return err
		}
		flags, err := optimizerFlags()
		if err != nil {
			return err
		}
		optimizer, _, err := newOptimizer()
		if err != nil {
			return err
		}

		runs := openHistory()
		if runs != nil {
			defer runs.Close()
		}
		seedSpend(optimizer, runs)

		server := mcpserver.New(mcpserver.Options{
			Version:   Version,
			Optimizer: optimizer,
			Templates: store,
			Trail:     audit.NewTrail(cfg.AuditDir(), cfg.Audit.RetentionDays),
			Runs:      runs,
			Flags:     flags,
		})
		return server.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
