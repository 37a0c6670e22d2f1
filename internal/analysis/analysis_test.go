package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bindery/internal/config"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]fakeOutput
}

type fakeOutput struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, binary string, args []string) ([]byte, []byte, error) {
	key := probeKind(binary, args)
	f.calls = append(f.calls, key)
	out := f.outputs[key]
	return []byte(out.stdout), []byte(out.stderr), out.err
}

func probeKind(binary string, args []string) string {
	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(binary, "ffprobe"):
		return "metadata"
	case strings.Contains(joined, "loudnorm"):
		return "loudness"
	case strings.Contains(joined, "silencedetect"):
		return "silence"
	default:
		return "frameerrors"
	}
}

const probeJSON = `{
  "streams": [
    {"codec_type": "audio", "sample_rate": "44100", "channels": 2, "bit_rate": "128000"}
  ],
  "format": {"duration": "61.5", "size": "984000", "bit_rate": "128000", "tags": {"title": "A Book", "artist": "An Author"}}
}`

const loudnormSummary = `[Parsed_loudnorm_0 @ 0x55]
Input Integrated:   -23.1 LUFS
Input True Peak:     -4.8 dBTP
Input LRA:            6.4 LU
Input Threshold:    -33.5 LUFS

Output Integrated:  -14.0 LUFS
Output True Peak:    -1.5 dBTP
Output LRA:           5.9 LU
Output Threshold:   -24.3 LUFS

Normalization Type:   Dynamic
Target Offset:       +0.2 LU
`

func newTestAnalyzer(runner Runner) *Analyzer {
	cfg := config.Default()
	return New(&cfg, nil, WithRunner(runner))
}

func TestAnalyzeAllProbes(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"metadata":    {stdout: probeJSON},
		"loudness":    {stderr: loudnormSummary},
		"silence":     {stderr: "[silencedetect @ 0x1] silence_start: 12.5\n[silencedetect @ 0x1] silence_end: 13.4 | silence_duration: 0.9\n[silencedetect @ 0x1] silence_start: 40\n"},
		"frameerrors": {stderr: ""},
	}}
	analyzer := newTestAnalyzer(runner)

	result, err := analyzer.Analyze(context.Background(), "/in/book.mp3", Request{Metadata: true, Loudness: true, Silence: true, FrameErrors: true})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if result.Duration != 61.5 {
		t.Fatalf("unexpected duration: %v", result.Duration)
	}
	if result.SampleRate != 44100 || result.Channels != 2 || result.BitRate != 128000 {
		t.Fatalf("unexpected stream values: %+v", result)
	}
	if result.Title != "A Book" || result.Author != "An Author" {
		t.Fatalf("unexpected tags: %+v", result)
	}
	if result.Loudness == nil {
		t.Fatal("expected parsed loudness")
	}
	if result.Loudness.InputI != -23.1 || result.Loudness.TargetOffset != 0.2 {
		t.Fatalf("unexpected loudness values: %+v", result.Loudness)
	}
	if len(result.SilenceStarts) != 2 || result.SilenceStarts[0] != 12.5 || result.SilenceStarts[1] != 40 {
		t.Fatalf("unexpected silence starts: %v", result.SilenceStarts)
	}
	if result.FrameErrorCount != 0 {
		t.Fatalf("unexpected frame error count: %d", result.FrameErrorCount)
	}
}

func TestAnalyzeSkipsUnrequestedProbes(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"metadata": {stdout: probeJSON},
	}}
	analyzer := newTestAnalyzer(runner)

	result, err := analyzer.Analyze(context.Background(), "/in/book.mp3", Request{Metadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "metadata" {
		t.Fatalf("expected only metadata probe, got %v", runner.calls)
	}
	if result.Loudness != nil {
		t.Fatal("expected nil loudness when not requested")
	}
	if len(result.SilenceStarts) != 0 {
		t.Fatalf("expected empty silence starts, got %v", result.SilenceStarts)
	}
	if result.FrameErrorCount != 0 {
		t.Fatalf("expected zero frame errors default, got %d", result.FrameErrorCount)
	}
}

func TestLoudnessParseFailureYieldsNil(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"loudness": {stderr: "garbage output with no summary"},
	}}
	analyzer := newTestAnalyzer(runner)

	result, err := analyzer.Analyze(context.Background(), "/in/book.mp3", Request{Loudness: true})
	if err != nil {
		t.Fatalf("loudness parse failure must not be an error: %v", err)
	}
	if result.Loudness != nil {
		t.Fatalf("expected nil loudness, got %+v", result.Loudness)
	}
}

func TestFrameErrorProbeFailureReturnsSentinel(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"frameerrors": {err: errors.New("exec: not found")},
	}}
	analyzer := newTestAnalyzer(runner)

	result, err := analyzer.Analyze(context.Background(), "/in/book.mp3", Request{FrameErrors: true})
	if err != nil {
		t.Fatalf("frame probe failure must not abort analysis: %v", err)
	}
	if result.FrameErrorCount != -1 {
		t.Fatalf("expected -1 sentinel, got %d", result.FrameErrorCount)
	}
}

func TestFrameErrorCounting(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"frameerrors": {stderr: "[mp3float] Header missing\n[mp3float] Header missing\n"},
	}}
	analyzer := newTestAnalyzer(runner)

	result, err := analyzer.Analyze(context.Background(), "/in/book.mp3", Request{FrameErrors: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.FrameErrorCount != 2 {
		t.Fatalf("expected 2 frame errors, got %d", result.FrameErrorCount)
	}
}

func TestMetadataFailurePropagates(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]fakeOutput{
		"metadata": {stderr: "no such file", err: errors.New("exit status 1")},
	}}
	analyzer := newTestAnalyzer(runner)

	if _, err := analyzer.Analyze(context.Background(), "/in/missing.mp3", Request{Metadata: true}); err == nil {
		t.Fatal("expected metadata probe failure to propagate")
	}
}
