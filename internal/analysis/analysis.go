// Package analysis runs loudness, silence, frame-error, and stream-metadata
// probes over a single audio file by shelling out to ffmpeg/ffprobe.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/media/ffprobe"
	"bindery/internal/services"
)

// Runner abstracts command execution for testability.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

// CommandRunner returns the default Runner backed by os/exec.
func CommandRunner() Runner {
	return commandRunner{}
}

type commandRunner struct{}

func (commandRunner) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Request selects which probes to run. Unrequested probes leave their result
// fields at safe zero values.
type Request struct {
	Metadata    bool
	Loudness    bool
	Silence     bool
	FrameErrors bool
}

// Loudness holds the parsed loudnorm analysis summary.
type Loudness struct {
	InputI       float64
	InputTP      float64
	InputLRA     float64
	InputThresh  float64
	TargetOffset float64
}

// Result aggregates the outcome of the requested probes.
type Result struct {
	Duration   float64
	SampleRate int
	BitRate    int
	Channels   int
	SizeBytes  int64
	Title      string
	Author     string

	// Loudness is nil when the probe was not requested or its summary could
	// not be parsed; callers must treat nil as "untested".
	Loudness *Loudness

	SilenceStarts []float64

	// FrameErrorCount is -1 when the decode invocation itself failed to run.
	FrameErrorCount int
}

// Option configures the analyzer.
type Option func(*Analyzer)

// WithRunner injects a custom command runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.runner = r
		}
	}
}

// Analyzer probes audio files with external tools.
type Analyzer struct {
	ffmpeg         string
	ffprobe        string
	silenceNoiseDB float64
	minSilenceSec  float64
	targetLUFS     float64
	timeout        time.Duration
	runner         Runner
	logger         *slog.Logger
}

// New constructs an Analyzer from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		ffmpeg:         cfg.Tools.FFmpeg,
		ffprobe:        cfg.Tools.FFprobe,
		silenceNoiseDB: cfg.Analysis.SilenceThresholdDB,
		minSilenceSec:  cfg.Analysis.MinSilenceDuration,
		targetLUFS:     cfg.Encoding.TargetLUFS,
		timeout:        time.Duration(cfg.Analysis.ProbeTimeoutSeconds) * time.Second,
		runner:         commandRunner{},
		logger:         logging.NewComponentLogger(logger, "analysis"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the requested probes against path. Metadata failures are
// returned as errors because duration is foundational; loudness and
// frame-error probe failures degrade to sentinel values.
func (a *Analyzer) Analyze(ctx context.Context, path string, req Request) (Result, error) {
	result := Result{SilenceStarts: []float64{}}

	if req.Metadata {
		if err := a.probeMetadata(ctx, path, &result); err != nil {
			return result, err
		}
	}
	if req.Loudness {
		result.Loudness = a.probeLoudness(ctx, path)
	}
	if req.Silence {
		starts, err := a.probeSilence(ctx, path)
		if err != nil {
			return result, err
		}
		result.SilenceStarts = starts
	}
	if req.FrameErrors {
		result.FrameErrorCount = a.probeFrameErrors(ctx, path)
	}
	return result, nil
}

func (a *Analyzer) probeMetadata(ctx context.Context, path string, result *Result) error {
	ctx, cancel := a.probeContext(ctx)
	defer cancel()

	args := []string{"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path}
	stdout, stderr, err := a.runner.Run(ctx, a.ffprobe, args)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "analysis", "probe metadata", strings.TrimSpace(string(stderr)), err)
	}
	probe, err := ffprobe.Parse(stdout)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "analysis", "probe metadata", "", err)
	}

	result.Duration = probe.DurationSeconds()
	result.SampleRate = probe.SampleRate()
	result.BitRate = probe.BitRate()
	result.Channels = probe.Channels()
	result.SizeBytes = probe.SizeBytes()
	result.Title = probe.Tag("title")
	result.Author = probe.Tag("artist")
	return nil
}

var (
	loudnessPatterns = map[string]*regexp.Regexp{
		"input_i":       regexp.MustCompile(`Input Integrated:\s*([+-]?[\d.]+)\s*LUFS`),
		"input_tp":      regexp.MustCompile(`Input True Peak:\s*([+-]?[\d.]+)\s*dBTP`),
		"input_lra":     regexp.MustCompile(`Input LRA:\s*([+-]?[\d.]+)\s*LU`),
		"input_thresh":  regexp.MustCompile(`Input Threshold:\s*([+-]?[\d.]+)\s*LUFS`),
		"target_offset": regexp.MustCompile(`Target Offset:\s*([+-]?[\d.]+)\s*LU`),
	}
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*([\d.]+)`)
)

// probeLoudness runs loudnorm in analysis-only mode and extracts the summary
// block from stderr. Any failure yields nil rather than an error: loudness is
// advisory and downstream validity checks treat nil as "cannot evaluate".
func (a *Analyzer) probeLoudness(ctx context.Context, path string) *Loudness {
	ctx, cancel := a.probeContext(ctx)
	defer cancel()

	filter := fmt.Sprintf("loudnorm=I=%g:TP=-1.5:LRA=11:print_format=summary", a.targetLUFS)
	args := []string{"-hide_banner", "-nostats", "-i", path, "-af", filter, "-f", "null", "-"}
	_, stderr, err := a.runner.Run(ctx, a.ffmpeg, args)
	if err != nil {
		a.logger.Debug("loudness probe failed", logging.String("path", path), logging.Error(err))
		return nil
	}

	values := map[string]float64{}
	output := string(stderr)
	for key, pattern := range loudnessPatterns {
		match := pattern.FindStringSubmatch(output)
		if len(match) < 2 {
			a.logger.Debug("loudness summary missing field", logging.String("path", path), logging.String("field", key))
			return nil
		}
		parsed, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			a.logger.Debug("loudness summary unparseable", logging.String("path", path), logging.String("field", key))
			return nil
		}
		values[key] = parsed
	}

	return &Loudness{
		InputI:       values["input_i"],
		InputTP:      values["input_tp"],
		InputLRA:     values["input_lra"],
		InputThresh:  values["input_thresh"],
		TargetOffset: values["target_offset"],
	}
}

// probeSilence collects silence_start offsets. Start/end pairing is not
// attempted; downstream logic only cares how many silence events occurred.
func (a *Analyzer) probeSilence(ctx context.Context, path string) ([]float64, error) {
	ctx, cancel := a.probeContext(ctx)
	defer cancel()

	filter := fmt.Sprintf("silencedetect=noise=-%gdB:d=%g", a.silenceNoiseDB, a.minSilenceSec)
	args := []string{"-hide_banner", "-nostats", "-i", path, "-af", filter, "-f", "null", "-"}
	_, stderr, err := a.runner.Run(ctx, a.ffmpeg, args)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "analysis", "detect silence", strings.TrimSpace(lastLine(stderr)), err)
	}

	starts := []float64{}
	for _, match := range silenceStartPattern.FindAllStringSubmatch(string(stderr), -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		starts = append(starts, value)
	}
	return starts, nil
}

// probeFrameErrors runs a strict error-level decode pass and counts emitted
// diagnostic lines. Returns -1 when the invocation itself fails to run.
func (a *Analyzer) probeFrameErrors(ctx context.Context, path string) int {
	ctx, cancel := a.probeContext(ctx)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error", "-i", path, "-f", "null", "-"}
	_, stderr, err := a.runner.Run(ctx, a.ffmpeg, args)
	if err != nil {
		a.logger.Warn("frame error probe failed to run", logging.String("path", path), logging.Error(err))
		return -1
	}

	count := 0
	for _, line := range strings.Split(string(stderr), "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func (a *Analyzer) probeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
