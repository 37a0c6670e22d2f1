package track

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/analysis"
	"bindery/internal/config"
)

type stubRunner struct {
	calls    []string
	failOn   string
	duration float64
}

func (s *stubRunner) Run(_ context.Context, binary string, args []string) ([]byte, []byte, error) {
	var input string
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			input = args[i+1]
		}
		if arg == "--" && i+1 < len(args) {
			input = args[i+1]
		}
	}
	s.calls = append(s.calls, filepath.Base(input))

	if s.failOn != "" && filepath.Base(input) == s.failOn {
		return nil, []byte("decode failure"), errors.New("exit status 1")
	}

	if strings.Contains(binary, "ffprobe") {
		probe := fmt.Sprintf(`{
  "streams": [{"codec_type": "audio", "sample_rate": "44100", "channels": 1, "bit_rate": "96000"}],
  "format": {"duration": "%g", "size": "100000", "tags": {"title": "Book", "artist": "Author"}}
}`, s.duration)
		return []byte(probe), nil, nil
	}
	return nil, nil, nil
}

func writeInputFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("audio bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func TestLoadOrdersNaturally(t *testing.T) {
	dir := t.TempDir()
	writeInputFiles(t, dir, "track10.mp3", "track2.mp3", "track1.mp3")

	runner := &stubRunner{duration: 30}
	analyzer := analysis.New(testConfig(), nil, analysis.WithRunner(runner))

	collection, err := Load(context.Background(), dir, "sku-1", testConfig(), analyzer, nil, analysis.Request{Metadata: true})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if collection.Count() != 3 {
		t.Fatalf("expected 3 tracks, got %d", collection.Count())
	}

	var order []string
	for i, tr := range collection.Tracks {
		order = append(order, filepath.Base(tr.Path))
		if tr.Index != i+1 {
			t.Fatalf("track %d has index %d", i, tr.Index)
		}
		if tr.SKU != "sku-1" {
			t.Fatalf("track %d missing SKU", i)
		}
	}
	want := []string{"track1.mp3", "track2.mp3", "track10.mp3"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("natural order mismatch: got %v, want %v", order, want)
		}
	}
}

func TestLoadFiltersExtensionsAndDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeInputFiles(t, dir, "a.mp3", "notes.txt", ".DS_Store", "._a.mp3", "cover.jpg")

	runner := &stubRunner{duration: 30}
	analyzer := analysis.New(testConfig(), nil, analysis.WithRunner(runner))

	collection, err := Load(context.Background(), dir, "sku", testConfig(), analyzer, nil, analysis.Request{Metadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if collection.Count() != 1 || filepath.Base(collection.Tracks[0].Path) != "a.mp3" {
		t.Fatalf("expected only a.mp3, got %d tracks", collection.Count())
	}
}

func TestLoadSkipsFailingFiles(t *testing.T) {
	dir := t.TempDir()
	writeInputFiles(t, dir, "good.mp3", "broken.mp3")

	runner := &stubRunner{duration: 30, failOn: "broken.mp3"}
	analyzer := analysis.New(testConfig(), nil, analysis.WithRunner(runner))

	collection, err := Load(context.Background(), dir, "sku", testConfig(), analyzer, nil, analysis.Request{Metadata: true})
	if err != nil {
		t.Fatal(err)
	}
	if collection.Count() != 1 || filepath.Base(collection.Tracks[0].Path) != "good.mp3" {
		t.Fatalf("expected broken track skipped, got %d tracks", collection.Count())
	}
}

func TestLoadEmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	runner := &stubRunner{duration: 30}
	analyzer := analysis.New(testConfig(), nil, analysis.WithRunner(runner))

	_, err := Load(context.Background(), dir, "sku", testConfig(), analyzer, nil, analysis.Request{Metadata: true})
	if !errors.Is(err, ErrNoTracks) {
		t.Fatalf("expected ErrNoTracks, got %v", err)
	}
}

func TestCollectionAggregates(t *testing.T) {
	collection := &Collection{Tracks: []*Track{
		{Duration: 60, SizeBytes: 1000, ISBN: "111", Title: "Book", Author: "Author"},
		{Duration: 30, SizeBytes: 500, ISBN: "", Title: "Book", Author: ""},
	}}

	if collection.Duration() != 90 {
		t.Fatalf("Duration = %v", collection.Duration())
	}
	if collection.TotalSize() != 1500 {
		t.Fatalf("TotalSize = %d", collection.TotalSize())
	}
	if got := collection.ProjectedSize(96000); got != 720000+360000 {
		t.Fatalf("ProjectedSize = %d", got)
	}

	isbn, err := collection.ISBN()
	if err != nil || isbn != "111" {
		t.Fatalf("ISBN = %q, %v", isbn, err)
	}
	author, err := collection.Author()
	if err != nil || author != "Author" {
		t.Fatalf("Author = %q, %v", author, err)
	}
}

func TestCollectionInconsistentMetadata(t *testing.T) {
	collection := &Collection{Tracks: []*Track{
		{ISBN: "111"},
		{ISBN: "222"},
	}}
	if _, err := collection.ISBN(); !errors.Is(err, ErrInconsistentMetadata) {
		t.Fatalf("expected ErrInconsistentMetadata, got %v", err)
	}
}

func TestConvertRequiresDuration(t *testing.T) {
	encoder := NewEncoder(testConfig(), nil)
	err := encoder.Convert(context.Background(), &Track{Path: "/in/a.mp3"}, t.TempDir(), 96000)
	if !errors.Is(err, ErrMissingDuration) {
		t.Fatalf("expected ErrMissingDuration, got %v", err)
	}
}

func TestConvertRemovesPartialOutputOnFailure(t *testing.T) {
	dest := t.TempDir()
	track := &Track{Path: "/in/a.mp3", Index: 1, Duration: 10, SampleRate: 44100, ISBN: "12345", SKU: "sku1"}

	runner := &failingEncodeRunner{dest: dest, name: track.OutputFilename()}
	encoder := NewEncoder(testConfig(), nil, WithEncoderRunner(runner))

	if err := encoder.Convert(context.Background(), track, dest, 96000); err == nil {
		t.Fatal("expected encode failure")
	}
	if _, err := os.Stat(filepath.Join(dest, track.OutputFilename())); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("partial output should have been removed")
	}
}

type failingEncodeRunner struct {
	dest string
	name string
}

func (f *failingEncodeRunner) Run(_ context.Context, _ string, _ []string) ([]byte, []byte, error) {
	// Simulate ffmpeg dying after creating a partial file.
	if err := os.WriteFile(filepath.Join(f.dest, f.name), []byte("partial"), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, []byte("Conversion failed!"), errors.New("exit status 1")
}
