package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect project data without generating documents",
	Long: `Run every enabled source once and report how each one fared and how
much data was merged. Useful to check credentials and limits before a
full generation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		parallel, err := cmd.Flags().GetBool("parallel")
		if err != nil {
			return err
		}

		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		if parallel {
			p.Config().Parallel = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		result, err := p.Collect(ctx)
		if result != nil {
			out := cmd.OutOrStdout()
			printOutcomes(out, result.Outcomes)
			if result.Data != nil {
				printCounts(out, result.Data.Counts())
			}
			if result.Cancelled {
				fmt.Fprintln(out, warning("collection cancelled, results are partial"))
			}
		}
		if err != nil {
			return fmt.Errorf("collection failed: %w", err)
		}
		if n := len(result.Failures()); n > 0 {
			return fmt.Errorf("%d source(s) failed to collect", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().Bool("parallel", false, "collect sources concurrently")
}
