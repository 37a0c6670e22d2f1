package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/deps"
	"bindery/internal/inventory"
	"bindery/internal/logging"
	"bindery/internal/master"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var sku string
	var isbn string
	var title string
	var author string
	var skipEncoding bool
	var noImage bool
	var expectedCount int

	cmd := &cobra.Command{
		Use:   "create <input-dir>",
		Short: "Build a master and disk image from a folder of audio files",
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

			if noImage {
				cfg.Image.Enabled = false
			}

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s (run `bindery deps` for details)", strings.Join(missing, ", "))
			}

			inputDir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			options := []master.BuilderOption{}
			if cfg.Inventory.Enabled {
				store, err := inventory.Open(cfg.Inventory.Path)
				if err != nil {
					logger.Warn("inventory unavailable", logging.Error(err))
				} else {
					defer store.Close()
					options = append(options, master.WithRecorder(store))
				}
			}

			builder := master.NewBuilder(cfg, logger, options...)
			m := &master.Master{
				ISBN:     strings.TrimSpace(isbn),
				SKU:      strings.TrimSpace(sku),
				Title:    strings.TrimSpace(title),
				Author:   strings.TrimSpace(author),
				InputDir: inputDir,
			}

			runOptions := master.Options{SkipEncoding: skipEncoding, ExpectedCount: expectedCount}
			if err := builder.Create(cmd.Context(), m, runOptions); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"SKU", m.SKU},
				{"ISBN", m.ISBN},
				{"Title", valueOrDash(m.Title)},
				{"Author", valueOrDash(m.Author)},
				{"Tracks", fmt.Sprintf("%d", m.Processed.Count())},
				{"Bit rate", fmt.Sprintf("%d bps", m.BitRate)},
				{"Checksum", m.Checksum},
				{"Master root", m.Root},
			}
			if m.Image != nil {
				rows = append(rows,
					[]string{"Image", m.Image.Path},
					[]string{"Image size", formatBytes(m.Image.SizeBytes)},
					[]string{"Filesystem", fmt.Sprintf("FAT%d (%s)", m.Image.FATBits, m.Image.Label)},
				)
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&sku, "sku", "", "Product SKU, also used as the volume label (required)")
	cmd.Flags().StringVar(&isbn, "isbn", "", "ISBN; read from input tags when omitted")
	cmd.Flags().StringVar(&title, "title", "", "Book title; read from input tags when omitted")
	cmd.Flags().StringVar(&author, "author", "", "Author; read from input tags when omitted")
	cmd.Flags().BoolVar(&skipEncoding, "skip-encoding", false, "Reuse the processed folder when its track count matches the input")
	cmd.Flags().BoolVar(&noImage, "no-image", false, "Stop after the master structure, skip the disk image")
	cmd.Flags().IntVar(&expectedCount, "count", 0, "Expected input track count, checked before encoding")
	return cmd
}
