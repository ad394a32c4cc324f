package cli

import (
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/davarch/pipedash/internal/domain"
	"github.com/davarch/pipedash/internal/pipelineconfig"
	"github.com/spf13/cobra"
)

var (
	parseBuildRepo string
	parseName      string
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract environment variable groups and build repository settings from pipeline YAML",
	Long: heredoc.Doc(`
		Reads pipeline YAML from a file, or from stdin when no file is given, and
		prints the settings found in it. Works offline, no token is needed.
	`),
	Example: heredoc.Doc(`
		$ pipedash parse azure-pipelines.yml
		$ cat azure-pipelines.yml | pipedash parse --build-repo Tooling
	`),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			b   []byte
			err error
		)
		if len(args) == 1 {
			b, err = os.ReadFile(args[0])
		} else {
			b, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}

		name := parseName
		if name == "" && len(args) == 1 {
			name = args[0]
		}

		parsed := pipelineconfig.New(parseBuildRepo).Parse(string(b), domain.DefinitionRef{Name: name})
		return printJSON(cmd.OutOrStdout(), parsed)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseBuildRepo, "build-repo", pipelineconfig.DefaultBuildRepo, "alias of the build repository resource")
	parseCmd.Flags().StringVar(&parseName, "name", "", "pipeline name to report (default file name)")

	rootCmd.AddCommand(parseCmd)
}
