package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/elhajjaji/wara9a/internal/config"
	"github.com/elhajjaji/wara9a/internal/generate"
	"github.com/elhajjaji/wara9a/internal/logging"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Collect project data and generate the documentation",
	Long: `Collect every enabled source once, merge the results and render each
enabled template into every configured output format.

You can narrow the run with -t/--template and -f/--format, both of which
can be given multiple times.

Example:
  wara9a generate -t readme -f markdown -f html -o site

A failing source or template is reported and the run moves on, unless
--abort-on-error is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		templates, err := cmd.Flags().GetStringArray("template")
		if err != nil {
			return err
		}
		formats, err := cmd.Flags().GetStringArray("format")
		if err != nil {
			return err
		}
		outputDir, err := cmd.Flags().GetString("output")
		if err != nil {
			return err
		}
		clean, err := cmd.Flags().GetBool("clean")
		if err != nil {
			return err
		}
		preview, err := cmd.Flags().GetBool("preview")
		if err != nil {
			return err
		}
		parallel, err := cmd.Flags().GetBool("parallel")
		if err != nil {
			return err
		}
		abort, err := cmd.Flags().GetBool("abort-on-error")
		if err != nil {
			return err
		}

		p, err := loadProject(cmd)
		if err != nil {
			return err
		}
		cfg := p.Config()
		if parallel {
			cfg.Parallel = true
		}
		if abort {
			cfg.FailurePolicy = config.FailAbort
		}
		if outputDir != "" {
			cfg.Output.Directory = outputDir
		}
		if len(formats) > 0 {
			cfg.Output.Formats = formats
		}

		if preview {
			printPreview(cmd.OutOrStdout(), p.Preview())
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		result, err := p.Generate(ctx, generate.RunOptions{
			Templates: templates,
			Formats:   formats,
			OutputDir: outputDir,
			Clean:     clean,
		})
		if result != nil {
			printGenerateResult(cmd.OutOrStdout(), result)
		}
		if err != nil {
			return fmt.Errorf("generation failed: %w", err)
		}
		if len(result.Failures) > 0 {
			return fmt.Errorf("%d document(s) could not be generated", len(result.Failures))
		}

		logging.Info("documentation generated",
			"files", result.Stats.FilesGenerated,
			"output_dir", cfg.Output.Directory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringArrayP("template", "t", []string{}, "template to generate (can be specified multiple times)")
	generateCmd.Flags().StringArrayP("format", "f", []string{}, "output format (can be specified multiple times)")
	generateCmd.Flags().StringP("output", "o", "", "output directory (overrides output.directory)")
	generateCmd.Flags().Bool("clean", false, "remove existing files from the output directory first")
	generateCmd.Flags().BoolP("preview", "p", false, "show what would be generated without collecting")
	generateCmd.Flags().Bool("parallel", false, "collect sources concurrently")
	generateCmd.Flags().Bool("abort-on-error", false, "stop at the first failing source or document")
}
