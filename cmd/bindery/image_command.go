package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/deps"
	"bindery/internal/image"
)

func newImageCommand(ctx *commandContext) *cobra.Command {
	var sku string

	cmd := &cobra.Command{
		Use:   "image <master-root>",
		Short: "Build a FAT disk image from an existing master directory",
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
			if strings.TrimSpace(sku) == "" {
				return fmt.Errorf("--sku is required")
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
			}

			root, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			builder := image.New(cfg, logger)
			result, err := builder.Create(cmd.Context(), root, strings.TrimSpace(sku))
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Image", result.Path},
				{"Size", formatBytes(result.SizeBytes)},
				{"Filesystem", fmt.Sprintf("FAT%d", result.FATBits)},
				{"Volume label", result.Label},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&sku, "sku", "", "Product SKU, used for the image name and volume label (required)")
	return cmd
}
