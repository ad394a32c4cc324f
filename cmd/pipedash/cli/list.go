package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var (
	listOnlyEnabled  bool
	listOnlyDisabled bool
	listJSON         bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched projects from config.yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}

		items := make([]config.Project, 0, len(cfg.Watch.Projects))
		for _, p := range cfg.Watch.Projects {
			if listOnlyEnabled && !p.Enabled {
				continue
			}
			if listOnlyDisabled && p.Enabled {
				continue
			}
			if p.Organization == "" {
				p.Organization = cfg.Dashboard.Organization
			}
			items = append(items, p)
		}

		if listJSON {
			return printJSON(os.Stdout, items)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tORGANIZATION\tPROJECT\tENABLED")
		for _, p := range items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", projectLabel(p), p.Organization, p.Project, p.Enabled)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listOnlyEnabled, "enabled", false, "show only enabled projects")
	listCmd.Flags().BoolVar(&listOnlyDisabled, "disabled", false, "show only disabled projects")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON")
	listCmd.MarkFlagsMutuallyExclusive("enabled", "disabled")

	rootCmd.AddCommand(listCmd)
}

// projectLabel is the name used by enable/disable: the configured name, or
// the project itself.
func projectLabel(p config.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Project
}
