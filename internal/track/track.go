// Package track models a single audio file with its derived analysis and the
// ordered collection of files that make up one audiobook.
package track

import (
	"errors"
	"fmt"
	"strings"

	"bindery/internal/analysis"
	"bindery/internal/textutil"
)

var (
	// ErrMissingDuration indicates a track was asked to encode before its
	// duration was known.
	ErrMissingDuration = errors.New("track duration unknown")

	// ErrNoTracks indicates a directory scan produced no usable audio files.
	ErrNoTracks = errors.New("no valid tracks found")

	// ErrInconsistentMetadata indicates two tracks in one collection carry
	// different non-empty values for the same field.
	ErrInconsistentMetadata = errors.New("inconsistent track metadata")
)

// maxBaseNameLen is the embedded playback hardware's filename length limit,
// excluding the extension.
const maxBaseNameLen = 13

// allowedChannelCounts are the channel layouts the playback hardware accepts.
var allowedChannelCounts = map[int]bool{1: true, 2: true}

// Track represents one audio file plus its derived analysis and identity.
type Track struct {
	Path      string
	Index     int // 1-based position in natural-sort order
	SizeBytes int64

	Duration   float64
	SampleRate int
	BitRate    int
	Channels   int

	Title  string
	Author string
	ISBN   string
	SKU    string

	Loudness        *analysis.Loudness
	SilenceStarts   []float64
	FrameErrorCount int

	// tested records which probes actually ran, so validity checks can
	// distinguish "passed" from "untested".
	tested analysis.Request
}

// EncodingSampleRate returns the sample rate to encode at: the configured
// target capped at the source rate (upsampling buys nothing).
func (t *Track) EncodingSampleRate(target int) int {
	if t.SampleRate > 0 && t.SampleRate < target {
		return t.SampleRate
	}
	return target
}

// ProjectedSize estimates the post-encode size in bytes at the given bitrate.
func (t *Track) ProjectedSize(bitRate int) int64 {
	return int64(float64(bitRate) * t.Duration / 8)
}

// OutputFilename derives the destination name: a 3-digit zero-padded index
// followed by slugs of the ISBN and SKU tails, truncated to the hardware
// filename limit.
func (t *Track) OutputFilename() string {
	base := fmt.Sprintf("%03d_%s%s",
		t.Index,
		textutil.TailSlug(t.ISBN, 5),
		strings.ToUpper(textutil.TailSlug(t.SKU, 4)),
	)
	if len(base) > maxBaseNameLen {
		base = base[:maxBaseNameLen]
	}
	return base + ".mp3"
}

// ValidationOptions tunes the validity judgment.
type ValidationOptions struct {
	TargetLUFS          float64
	LoudnessToleranceLU float64
}

// Valid reports whether the track passed every requested probe and carries
// usable encoding parameters.
func (t *Track) Valid(opts ValidationOptions) bool {
	return len(t.Problems(opts)) == 0
}

// Problems returns a human-readable description of every validity failure.
// Untested probes never contribute problems.
func (t *Track) Problems(opts ValidationOptions) []string {
	var problems []string

	if t.tested.Silence && len(t.SilenceStarts) > 0 {
		problems = append(problems, fmt.Sprintf("%d silence event(s) detected", len(t.SilenceStarts)))
	}
	if t.tested.FrameErrors && t.FrameErrorCount != 0 {
		if t.FrameErrorCount < 0 {
			problems = append(problems, "frame error probe did not run")
		} else {
			problems = append(problems, fmt.Sprintf("%d frame error(s) detected", t.FrameErrorCount))
		}
	}
	if strings.TrimSpace(t.ISBN) == "" {
		problems = append(problems, "missing ISBN")
	}
	if !t.encodingValid() {
		problems = append(problems, "encoding parameters out of range")
	}
	// Loudness counts only when actually measured; nil means untested.
	if t.tested.Loudness && t.Loudness != nil && opts.LoudnessToleranceLU > 0 {
		delta := t.Loudness.InputI - opts.TargetLUFS
		if delta < -opts.LoudnessToleranceLU || delta > opts.LoudnessToleranceLU {
			problems = append(problems, fmt.Sprintf("loudness %.1f LUFS outside ±%.1f LU of target %.1f", t.Loudness.InputI, opts.LoudnessToleranceLU, opts.TargetLUFS))
		}
	}
	return problems
}

func (t *Track) encodingValid() bool {
	return t.SampleRate > 0 && t.BitRate > 0 && allowedChannelCounts[t.Channels]
}
