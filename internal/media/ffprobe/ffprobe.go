package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Duration   string            `json:"duration"`
	BitRate    string            `json:"bit_rate"`
	SampleRate string            `json:"sample_rate"`
	Channels   int               `json:"channels"`
	NBFrames   string            `json:"nb_frames"`
	Tags       map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON output.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// FirstAudioStream returns the first audio stream, if any.
func (r Result) FirstAudioStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds. When the
// container does not report one, it falls back to frame count divided by
// sample rate on the first audio stream. Returns 0 when no duration can be
// derived.
func (r Result) DurationSeconds() float64 {
	if d := parseFloat(r.Format.Duration); d > 0 {
		return d
	}
	stream, ok := r.FirstAudioStream()
	if !ok {
		return 0
	}
	if d := parseFloat(stream.Duration); d > 0 {
		return d
	}
	frames := parseFloat(stream.NBFrames)
	rate := parseFloat(stream.SampleRate)
	if frames > 0 && rate > 0 {
		return frames / rate
	}
	return 0
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bit rate in bits per second, preferring the
// first audio stream's own value, or 0 when unavailable.
func (r Result) BitRate() int {
	if stream, ok := r.FirstAudioStream(); ok {
		if rate := parseFloat(stream.BitRate); rate > 0 {
			return int(rate)
		}
	}
	if rate := parseFloat(r.Format.BitRate); rate > 0 {
		return int(rate)
	}
	return 0
}

// SampleRate returns the first audio stream's sample rate in Hz, or 0.
func (r Result) SampleRate() int {
	stream, ok := r.FirstAudioStream()
	if !ok {
		return 0
	}
	if rate := parseFloat(stream.SampleRate); rate > 0 {
		return int(rate)
	}
	return 0
}

// Channels returns the first audio stream's channel count, or 0.
func (r Result) Channels() int {
	stream, ok := r.FirstAudioStream()
	if !ok {
		return 0
	}
	return stream.Channels
}

// Tag returns the named container tag, case-insensitively.
func (r Result) Tag(name string) string {
	for key, value := range r.Format.Tags {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	if stream, ok := r.FirstAudioStream(); ok {
		for key, value := range stream.Tags {
			if strings.EqualFold(key, name) {
				return value
			}
		}
	}
	return ""
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
