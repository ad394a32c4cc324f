package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/davarch/pipedash/internal/application"
	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/infrastructure/azdo_http"
	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string
	debug   bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "pipedash",
	Short: "Azure DevOps pipeline dashboard (aggregation, watch mode, HTTP API)",
	Long: heredoc.Doc(`
		Builds a per-project pipeline dashboard from Azure DevOps: the latest run
		of every pipeline, its trigger, deep links and the variable groups each
		environment uses.

		The access token is read from upstream.token in the config file or from
		AZDO_TOKEN.
	`),
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "human readable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(*cobra.Command, []string) {
			fmt.Println(version)
		},
	})

	comp := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}

	rootCmd.AddCommand(comp)
}

func newDashboardService(cfg config.Config, log *zap.Logger, progress domain.ProgressNotifier) *application.DashboardService {
	pf := azdo_http.NewFactory(cfg.Upstream.BaseURL, cfg.Upstream.Token, cfg.Upstream.Timeout)
	return application.NewDashboardService(log, pf, progress, application.Options{
		Concurrency:     cfg.Dashboard.Concurrency,
		PipelineTimeout: cfg.Dashboard.PipelineTimeout,
		BuildRepo:       cfg.Dashboard.BuildRepo,
	})
}

// orgProject applies flag values over the configured dashboard target.
func orgProject(cfg config.Config, org, project string) (string, string, error) {
	if org == "" {
		org = cfg.Dashboard.Organization
	}
	if project == "" {
		project = cfg.Dashboard.Project
	}
	if org == "" || project == "" {
		return "", "", fmt.Errorf("organization and project are required (--org/--project or dashboard.* in config)")
	}
	return org, project, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
