package track

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bindery/internal/analysis"
	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/services"
)

// Encoder re-encodes tracks to the fixed output profile: mono MP3 at the
// negotiated sample rate, loudness-normalized to the target LUFS.
type Encoder struct {
	ffmpeg     string
	sampleRate int
	targetLUFS float64
	timeout    time.Duration
	runner     analysis.Runner
	logger     *slog.Logger
}

// EncoderOption configures the encoder.
type EncoderOption func(*Encoder)

// WithEncoderRunner injects a custom command runner (primarily for tests).
func WithEncoderRunner(r analysis.Runner) EncoderOption {
	return func(e *Encoder) {
		if r != nil {
			e.runner = r
		}
	}
}

// NewEncoder constructs an Encoder from configuration.
func NewEncoder(cfg *config.Config, logger *slog.Logger, opts ...EncoderOption) *Encoder {
	e := &Encoder{
		ffmpeg:     cfg.Tools.FFmpeg,
		sampleRate: cfg.Encoding.SampleRate,
		targetLUFS: cfg.Encoding.TargetLUFS,
		timeout:    time.Duration(cfg.Analysis.ProbeTimeoutSeconds) * time.Second,
		runner:     analysis.CommandRunner(),
		logger:     logging.NewComponentLogger(logger, "encoder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convert re-encodes t into destDir at the given bitrate and rewrites its ID3
// tags from scratch. The filter chain mixes a very low-amplitude pink noise
// bed under the programme for the track's duration, so silence-only tails
// never reach the playback hardware as hard digital silence, then applies
// loudness normalization.
func (e *Encoder) Convert(ctx context.Context, t *Track, destDir string, bitRate int) error {
	if t.Duration <= 0 {
		return fmt.Errorf("%w: %s", ErrMissingDuration, t.Path)
	}

	dest := filepath.Join(destDir, t.OutputFilename())
	sampleRate := t.EncodingSampleRate(e.sampleRate)

	filter := fmt.Sprintf(
		"anoisesrc=colour=pink:amplitude=0.0001:duration=%.3f[bed];[0:a][bed]amix=inputs=2:duration=first:normalize=0[mix];[mix]loudnorm=I=%g:TP=-1.5:LRA=11[out]",
		t.Duration, e.targetLUFS,
	)
	args := []string{
		"-hide_banner", "-nostats",
		"-i", t.Path,
		"-filter_complex", filter,
		"-map", "[out]",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-b:a", strconv.Itoa(bitRate),
		"-codec:a", "libmp3lame",
		"-map_metadata", "-1",
		"-y", dest,
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Info("encoding track",
		logging.String("source", filepath.Base(t.Path)),
		logging.String("dest", filepath.Base(dest)),
		logging.Int("bit_rate", bitRate),
		logging.Int("sample_rate", sampleRate),
	)

	if _, stderr, err := e.runner.Run(runCtx, e.ffmpeg, args); err != nil {
		// A partial output file must never look like a finished track.
		_ = os.Remove(dest)
		return services.Wrap(services.ErrExternalTool, "encoder", "convert", trimmedTail(stderr), err)
	}

	if err := WriteTags(dest, Tags{Title: t.Title, Author: t.Author, ISBN: t.ISBN}); err != nil {
		return services.Wrap(services.ErrExternalTool, "encoder", "retag", dest, err)
	}
	return nil
}

func trimmedTail(stderr []byte) string {
	lines := strings.Split(strings.TrimSpace(string(stderr)), "\n")
	if len(lines) == 0 {
		return ""
	}
	tail := lines
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	return strings.Join(tail, "; ")
}
