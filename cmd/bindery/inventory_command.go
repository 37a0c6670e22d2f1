package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/inventory"
)

func newInventoryCommand(ctx *commandContext) *cobra.Command {
	inventoryCmd := &cobra.Command{
		Use:   "inventory",
		Short: "Build history utilities",
	}
	inventoryCmd.AddCommand(newInventoryListCommand(ctx))
	return inventoryCmd
}

func newInventoryListCommand(ctx *commandContext) *cobra.Command {
	var sku string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded builds, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := inventory.Open(cfg.Inventory.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), sku)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "no builds recorded")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				imagePath := valueOrDash(rec.ImagePath)
				rows = append(rows, []string{
					fmt.Sprintf("%d", rec.ID),
					rec.SKU,
					rec.ISBN,
					valueOrDash(rec.Title),
					fmt.Sprintf("%d", rec.TrackCount),
					fmt.Sprintf("%d", rec.BitRate),
					imagePath,
					rec.BuiltAt.Format("2006-01-02 15:04"),
				})
			}
			headers := []string{"ID", "SKU", "ISBN", "Title", "Tracks", "Bit rate", "Image", "Built"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&sku, "sku", "", "Only show builds for this SKU")
	return cmd
}
