package track

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/analysis"
	"bindery/internal/config"
	"bindery/internal/logging"
	"bindery/internal/textutil"
)

// Collection is the ordered set of tracks that make up one audiobook. Order is
// natural sort over filenames, which matches how the playback hardware walks
// the disk.
type Collection struct {
	Dir    string
	Tracks []*Track
}

// Load scans dir for audio files, analyzes each with the requested probes, and
// returns them in natural-sort order with 1-based indices assigned. Files that
// fail analysis are logged and skipped; an empty result is ErrNoTracks.
func Load(ctx context.Context, dir, sku string, cfg *config.Config, analyzer *analysis.Analyzer, logger *slog.Logger, req analysis.Request) (*Collection, error) {
	log := logging.NewComponentLogger(logger, "tracks")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !allowedExtension(name, cfg.Encoding.ValidExtensions) {
			log.Debug("skipping non-audio file", logging.String("name", name))
			continue
		}
		names = append(names, name)
	}
	textutil.NaturalSort(names)

	collection := &Collection{Dir: dir}
	for _, name := range names {
		path := filepath.Join(dir, name)
		t, err := build(ctx, path, sku, analyzer, req)
		if err != nil {
			log.Warn("skipping unreadable track", logging.String("path", path), logging.Error(err))
			continue
		}
		t.Index = len(collection.Tracks) + 1
		collection.Tracks = append(collection.Tracks, t)
	}

	if len(collection.Tracks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTracks, dir)
	}
	return collection, nil
}

// Probe analyzes a single file outside any collection, with index 1.
func Probe(ctx context.Context, path, sku string, analyzer *analysis.Analyzer, req analysis.Request) (*Track, error) {
	t, err := build(ctx, path, sku, analyzer, req)
	if err != nil {
		return nil, err
	}
	t.Index = 1
	return t, nil
}

func allowedExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func build(ctx context.Context, path, sku string, analyzer *analysis.Analyzer, req analysis.Request) (*Track, error) {
	result, err := analyzer.Analyze(ctx, path, req)
	if err != nil {
		return nil, err
	}

	t := &Track{
		Path:            path,
		SizeBytes:       result.SizeBytes,
		Duration:        result.Duration,
		SampleRate:      result.SampleRate,
		BitRate:         result.BitRate,
		Channels:        result.Channels,
		Title:           result.Title,
		Author:          result.Author,
		SKU:             sku,
		Loudness:        result.Loudness,
		SilenceStarts:   result.SilenceStarts,
		FrameErrorCount: result.FrameErrorCount,
		tested:          req,
	}

	// ffprobe surfaces standard tags; the ISBN lives in a custom TXXX frame
	// only the id3 reader understands. Tag read failures are tolerable here
	// because untagged input is a validation finding, not a load failure.
	if tags, err := ReadTags(path); err == nil {
		t.ISBN = tags.ISBN
		if t.Title == "" {
			t.Title = tags.Title
		}
		if t.Author == "" {
			t.Author = tags.Author
		}
	}
	return t, nil
}

// Count returns the number of tracks.
func (c *Collection) Count() int {
	return len(c.Tracks)
}

// Duration returns the summed duration in seconds.
func (c *Collection) Duration() float64 {
	var total float64
	for _, t := range c.Tracks {
		total += t.Duration
	}
	return total
}

// TotalSize returns the summed on-disk size in bytes.
func (c *Collection) TotalSize() int64 {
	var total int64
	for _, t := range c.Tracks {
		total += t.SizeBytes
	}
	return total
}

// ProjectedSize estimates the summed post-encode size at the given bitrate.
func (c *Collection) ProjectedSize(bitRate int) int64 {
	var total int64
	for _, t := range c.Tracks {
		total += t.ProjectedSize(bitRate)
	}
	return total
}

// ISBN returns the collection-wide ISBN. Tracks with an empty value are
// ignored; two different non-empty values are ErrInconsistentMetadata.
func (c *Collection) ISBN() (string, error) {
	return c.consistent("isbn", func(t *Track) string { return t.ISBN })
}

// Title returns the collection-wide title, with the same consistency rules as ISBN.
func (c *Collection) Title() (string, error) {
	return c.consistent("title", func(t *Track) string { return t.Title })
}

// Author returns the collection-wide author, with the same consistency rules as ISBN.
func (c *Collection) Author() (string, error) {
	return c.consistent("author", func(t *Track) string { return t.Author })
}

func (c *Collection) consistent(field string, value func(*Track) string) (string, error) {
	var found string
	for _, t := range c.Tracks {
		v := strings.TrimSpace(value(t))
		if v == "" {
			continue
		}
		if found == "" {
			found = v
			continue
		}
		if v != found {
			return "", fmt.Errorf("%w: %s %q vs %q", ErrInconsistentMetadata, field, found, v)
		}
	}
	return found, nil
}

// Problems aggregates per-track validity failures keyed by base filename.
func (c *Collection) Problems(opts ValidationOptions) map[string][]string {
	problems := map[string][]string{}
	for _, t := range c.Tracks {
		if p := t.Problems(opts); len(p) > 0 {
			problems[filepath.Base(t.Path)] = p
		}
	}
	return problems
}

// ConvertAll encodes every track into destDir in collection order, stopping at
// the first failure.
func (e *Encoder) ConvertAll(ctx context.Context, c *Collection, destDir string, bitRate int) error {
	for _, t := range c.Tracks {
		if err := e.Convert(ctx, t, destDir, bitRate); err != nil {
			return fmt.Errorf("convert %s: %w", filepath.Base(t.Path), err)
		}
	}
	return nil
}
