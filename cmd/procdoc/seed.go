package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/procdoc/internal/auth"
	"github.com/rendis/procdoc/pkg/schema"
)

var seedOpts struct {
	tenant string
}

var seedCmd = &cobra.Command{
	Use:   "seed [catalogue.yaml]",
	Short: "Import a standards/KPI catalogue YAML file into a tenant",
	Long: `Upserts every standard and KPI of the file into the tenant's catalogues.

The file format is:
  standards:
    - id: iso-9001
      code: ISO 9001
      name: Quality management
  kpis:
    - id: cycle-time
      name: Cycle time
      unit: days
      target: 5
      formula: value <= target`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedOpts.tenant == "" {
			return fmt.Errorf("--tenant is required")
		}
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.store.GetTenant(ctx, seedOpts.tenant); err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		p := auth.Principal{UserID: "seed", TenantID: seedOpts.tenant, Role: schema.RoleAdmin}
		res, err := a.service.ImportCatalogue(ctx, p, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d standards and %d KPIs into tenant %s\n",
			res.Standards, res.KPIs, seedOpts.tenant)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.tenant, "tenant", "", "target tenant ID")
}
