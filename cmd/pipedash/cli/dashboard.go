package cli

import (
	"context"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/davarch/pipedash/internal/infrastructure/logging"
	"github.com/davarch/pipedash/internal/infrastructure/progress"
	"github.com/spf13/cobra"
)

var (
	dashOrg      string
	dashProject  string
	dashProgress bool
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the pipeline dashboard of a project as JSON",
	Example: heredoc.Doc(`
		$ pipedash dashboard --org acme --project shop
		$ AZDO_TOKEN=... pipedash dashboard --progress
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}
		log := logging.New(debug || cfg.Log.Debug)
		defer func() { _ = log.Sync() }()

		org, project, err := orgProject(cfg, dashOrg, dashProject)
		if err != nil {
			return err
		}

		var (
			notifier domain.ProgressNotifier
			connID   string
		)
		if dashProgress {
			notifier = progress.NewLogNotifier(log)
			connID = "cli"
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Dashboard.Timeout)
		defer cancel()

		res, err := newDashboardService(cfg, log, notifier).GetDashboard(ctx, domain.Credentials{}, org, project, connID)
		if perr := printJSON(os.Stdout, res); perr != nil {
			return perr
		}
		return err
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashOrg, "org", "", "Azure DevOps organization (default dashboard.organization)")
	dashboardCmd.Flags().StringVar(&dashProject, "project", "", "project name (default dashboard.project)")
	dashboardCmd.Flags().BoolVar(&dashProgress, "progress", false, "log a line per loaded pipeline")

	rootCmd.AddCommand(dashboardCmd)
}
