package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/analysis"
	"bindery/internal/config"
	"bindery/internal/track"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var skipLoudness bool
	var skipSilence bool
	var skipFrameErrors bool

	cmd := &cobra.Command{
		Use:   "analyze <file-or-dir>",
		Short: "Probe audio files and report validity findings",
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
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			request := analysis.Request{
				Metadata:    true,
				Loudness:    !skipLoudness,
				Silence:     !skipSilence,
				FrameErrors: !skipFrameErrors,
			}
			analyzer := analysis.New(cfg, logger)

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("inspect path %q: %w", path, err)
			}

			var tracks []*track.Track
			if info.IsDir() {
				collection, err := track.Load(cmd.Context(), path, "", cfg, analyzer, logger, request)
				if err != nil {
					return err
				}
				tracks = collection.Tracks
			} else {
				probed, err := track.Probe(cmd.Context(), path, "", analyzer, request)
				if err != nil {
					return err
				}
				tracks = []*track.Track{probed}
			}

			opts := track.ValidationOptions{
				TargetLUFS:          cfg.Encoding.TargetLUFS,
				LoudnessToleranceLU: cfg.Analysis.LoudnessToleranceLU,
			}

			rows := make([][]string, 0, len(tracks))
			for _, t := range tracks {
				loudness := "-"
				if t.Loudness != nil {
					loudness = fmt.Sprintf("%.1f LUFS", t.Loudness.InputI)
				}
				frameErrors := fmt.Sprintf("%d", t.FrameErrorCount)
				if t.FrameErrorCount < 0 {
					frameErrors = "probe failed"
				}
				problems := strings.Join(t.Problems(opts), "; ")
				if problems == "" {
					problems = "ok"
				}
				rows = append(rows, []string{
					filepath.Base(t.Path),
					formatSeconds(t.Duration),
					fmt.Sprintf("%d Hz", t.SampleRate),
					fmt.Sprintf("%d bps", t.BitRate),
					fmt.Sprintf("%d", t.Channels),
					loudness,
					fmt.Sprintf("%d", len(t.SilenceStarts)),
					frameErrors,
					problems,
				})
			}

			headers := []string{"File", "Duration", "Sample rate", "Bit rate", "Ch", "Loudness", "Silences", "Frame errors", "Findings"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipLoudness, "skip-loudness", false, "Skip the loudness probe")
	cmd.Flags().BoolVar(&skipSilence, "skip-silence", false, "Skip silence detection")
	cmd.Flags().BoolVar(&skipFrameErrors, "skip-frame-errors", false, "Skip the strict decode pass")
	return cmd
}
