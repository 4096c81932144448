package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/logging"
)

var (
	// Global flags
	configPath string

	// Resolved in PersistentPreRunE.
	cfg      Config
	logLevel = new(slog.LevelVar)
	logger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "procdoc",
	Short: "procdoc - process documentation from BPMN diagrams",
	Long: `procdoc stores BPMN process diagrams and LaTeX documents per tenant and turns
diagrams into structured LaTeX process documentation.

Configuration is layered: defaults, then ~/.procdoc/settings.json, then
PROCDOC_* environment variables, then command-line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(&cfg, cmd.Flags()); err != nil {
			return err
		}
		logLevel.Set(logging.ParseLevel(cfg.LogLevel))
		logger = logging.NewLeveled(logLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", settingsPath(), "settings file")
	bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(serveCmd, convertCmd, mcpCmd, migrateCmd, seedCmd, installCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
