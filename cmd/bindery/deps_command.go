package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check availability of the external tools bindery shells out to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				available := "ok"
				if !status.Available {
					available = status.Detail
				}
				rows = append(rows, []string{
					status.Name,
					status.Command,
					status.Description,
					yesNo(!status.Optional),
					available,
				})
			}
			headers := []string{"Tool", "Command", "Purpose", "Required", "Status"}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))

			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}
