package cli

import (
	"fmt"
	"strings"

	"github.com/davarch/pipedash/internal/infrastructure/config"
	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:               "enable <project_name>",
	Short:             "Enable a watched project by name in config.yaml",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjects,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:               "disable <project_name>",
	Short:             "Disable a watched project by name in config.yaml",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeProjects,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

func init() {
	rootCmd.AddCommand(enableCmd, disableCmd)
}

func setEnabled(cmd *cobra.Command, name string, enabled bool) error {
	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		return err
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}

	changed := false
	for i := range cfg.Watch.Projects {
		p := &cfg.Watch.Projects[i]
		if projectLabel(*p) == name && p.Enabled != enabled {
			p.Enabled = enabled
			changed = true
		}
	}

	out := cmd.OutOrStdout()
	if !changed {
		_, _ = fmt.Fprintf(out, "no change (project %q already %s or not found)\n", name, verb)
		return nil
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "%s: %s\n", verb, name)
	return nil
}

func completeProjects(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	out := make([]string, 0, len(cfg.Watch.Projects))
	for _, p := range cfg.Watch.Projects {
		if l := projectLabel(p); strings.HasPrefix(l, toComplete) {
			out = append(out, l)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
