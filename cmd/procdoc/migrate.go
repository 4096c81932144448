package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/store"
)

var migrateOpts struct {
	status bool
	vacuum bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.validate(); err != nil {
			return err
		}
		s, err := store.NewLibSQLStore(cfg.dbURL())
		if err != nil {
			return err
		}
		defer s.Close()

		if !migrateOpts.status {
			if err := s.Migrate(ctx); err != nil {
				return err
			}
		}
		if migrateOpts.vacuum {
			if err := s.Vacuum(ctx); err != nil {
				return fmt.Errorf("vacuum: %w", err)
			}
		}

		status, err := s.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, st := range status {
			applied := "pending"
			if st.AppliedAt != nil {
				applied = st.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%03d\t%s\t%s\n", st.Version, st.Name, applied)
		}
		return w.Flush()
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateOpts.status, "status", false, "only show migration status")
	migrateCmd.Flags().BoolVar(&migrateOpts.vacuum, "vacuum", false, "run VACUUM afterwards")
}
