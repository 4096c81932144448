package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	procmcp "github.com/rendis/procdoc/pkg/mcp"
)

var mcpOpts struct {
	reviews bool
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve procdoc tools to an MCP client over stdio",
	Long: `Runs an MCP server on stdin/stdout exposing procdoc.convert, procdoc.documents,
procdoc.report, procdoc.diagram and procdoc.watch. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if mcpOpts.reviews {
			if err := a.reviews.RecoverMissed(ctx); err != nil {
				logger.Warn("recovering missed reviews failed", slog.String("error", err.Error()))
			}
			if err := a.reviews.Start(ctx); err != nil {
				return err
			}
		}

		srv := procmcp.NewProcdocServer(procmcp.ProcdocServerDeps{
			Service: a.service,
			Reports: a.reports,
			Hub:     a.hub,
			Logger:  logger,
			Version: version,
		})
		return srv.Serve(ctx)
	},
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpOpts.reviews, "reviews", false, "also run the review scheduler (for watch notifications)")
}
