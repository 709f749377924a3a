package cmd

import (
	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Inspect the capabilities the configuration needs",
}

var depsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report missing connectors, credentials, tools and formats",
	Long: `Check that every enabled source has a connector and the credentials or
tools it needs, and that every configured output format is available.
Nothing is collected. Problems are reported as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), p.CheckDependencies())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.AddCommand(depsCheckCmd)
}
