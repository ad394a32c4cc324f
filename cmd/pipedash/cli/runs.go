package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/davarch/pipedash/internal/infrastructure/logging"
	"github.com/davarch/pipedash/internal/links"
	"github.com/spf13/cobra"
)

var (
	runsOrg     string
	runsProject string
	runsTop     int
	runsJSON    bool
)

var runsCmd = &cobra.Command{
	Use:   "runs <pipeline_id>",
	Short: "Show the most recent runs of a pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pipeline id %q", args[0])
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}
		log := logging.New(debug || cfg.Log.Debug)
		defer func() { _ = log.Sync() }()

		org, project, err := orgProject(cfg, runsOrg, runsProject)
		if err != nil {
			return err
		}

		top := runsTop
		if !cmd.Flags().Changed("top") {
			top = cfg.Dashboard.RecentRuns
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Dashboard.Timeout)
		defer cancel()

		res, err := newDashboardService(cfg, log, nil).GetRecentRuns(ctx, domain.Credentials{}, org, project, id, top)
		if err != nil {
			return err
		}

		if runsJSON {
			return printJSON(os.Stdout, res)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNUMBER\tSTATUS\tRESULT\tBRANCH\tCOMMIT\tTRIGGER")
		for _, r := range res.Runs {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Number, r.Status, r.Result,
				domain.ShortBranch(r.SourceBranch), links.ShortCommit(r.SourceVersion), r.Trigger.DisplayText)
		}
		return w.Flush()
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsOrg, "org", "", "Azure DevOps organization (default dashboard.organization)")
	runsCmd.Flags().StringVar(&runsProject, "project", "", "project name (default dashboard.project)")
	runsCmd.Flags().IntVar(&runsTop, "top", 5, "number of runs (1-50)")
	runsCmd.Flags().BoolVar(&runsJSON, "json", false, "print JSON")

	rootCmd.AddCommand(runsCmd)
}
