package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/validate"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var expectedISBN string
	var expectedCount int
	var fix bool

	cmd := &cobra.Command{
		Use:   "validate <master-root>",
		Short: "Check a master directory against the canonical structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			result := validate.Validate(root, validate.Options{
				ExpectedISBN:    expectedISBN,
				ExpectedCount:   expectedCount,
				FixSystemFiles:  fix,
				ValidExtensions: cfg.Encoding.ValidExtensions,
			}, logger)

			out := cmd.OutOrStdout()
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "error: %s\n", msg)
			}
			for _, msg := range result.Warnings {
				fmt.Fprintf(out, "warning: %s\n", msg)
			}
			if !result.OK {
				return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
			}
			fmt.Fprintf(out, "master at %s is valid (%d warning(s))\n", root, len(result.Warnings))
			return nil
		},
	}

	cmd.Flags().StringVar(&expectedISBN, "isbn", "", "Expected ISBN to match against bookInfo/id.txt")
	cmd.Flags().IntVar(&expectedCount, "count", 0, "Expected track count to match against count.txt")
	cmd.Flags().BoolVar(&fix, "fix", false, "Delete stray system files and create the no-index sentinel")
	return cmd
}
