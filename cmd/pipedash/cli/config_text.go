package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/davarch/pipedash/internal/infrastructure/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgTextOrg     string
	cfgTextProject string
)

var configTextCmd = &cobra.Command{
	Use:   "config-text <pipeline_id>",
	Short: "Print the YAML configuration file of a pipeline",
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

		org, project, err := orgProject(cfg, cfgTextOrg, cfgTextProject)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Dashboard.Timeout)
		defer cancel()

		res, err := newDashboardService(cfg, log, nil).GetConfigText(ctx, domain.Credentials{}, org, project, id)
		if err != nil {
			return err
		}

		log.Debug("config text", zap.String("file", res.FileName), zap.Int("bytes", len(res.Text)))
		_, err = fmt.Fprint(os.Stdout, res.Text)
		return err
	},
}

func init() {
	configTextCmd.Flags().StringVar(&cfgTextOrg, "org", "", "Azure DevOps organization (default dashboard.organization)")
	configTextCmd.Flags().StringVar(&cfgTextProject, "project", "", "project name (default dashboard.project)")

	rootCmd.AddCommand(configTextCmd)
}
