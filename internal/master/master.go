// Package master drives the packaging pipeline for one audiobook: load input
// tracks, re-encode to the capacity-planned bitrate, assemble the canonical
// master directory, and hand the result to the image builder.
package master

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"bindery/internal/analysis"
	"bindery/internal/capacity"
	"bindery/internal/checksum"
	"bindery/internal/config"
	"bindery/internal/fileutil"
	"bindery/internal/image"
	"bindery/internal/inventory"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/track"
)

// State tracks pipeline progress for one Master.
type State int

const (
	StateEmpty State = iota
	StateInputLoaded
	StateProcessed
	StateStructured
	StateImaged
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateInputLoaded:
		return "input_loaded"
	case StateProcessed:
		return "processed"
	case StateStructured:
		return "structured"
	case StateImaged:
		return "imaged"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	tracksDirName       = "tracks"
	bookInfoDirName     = "bookInfo"
	idFileName          = "id.txt"
	countFileName       = "count.txt"
	noIndexSentinelName = ".metadata_never_index"
)

// Master is one audiobook moving through the pipeline. It is built fresh per
// create or validate request and never reused across books.
type Master struct {
	ISBN   string
	SKU    string
	Title  string
	Author string

	InputDir string

	Input     *track.Collection
	Processed *track.Collection

	BitRate  int
	Checksum string
	Root     string
	Image    *image.Result

	state State
}

// State reports the pipeline stage the master has reached.
func (m *Master) State() State {
	return m.state
}

// Imager builds a disk image from a finished master directory.
type Imager interface {
	Create(ctx context.Context, sourceDir, sku string) (image.Result, error)
}

// Recorder persists a finished build. Failures are advisory.
type Recorder interface {
	Record(ctx context.Context, rec inventory.Record) error
}

// Options tunes one Create run.
type Options struct {
	// SkipEncoding reuses an existing processed directory when its file
	// count matches the input, avoiding a full re-encode.
	SkipEncoding bool

	// ExpectedCount, when positive, must match the number of input tracks
	// discovered. Checked before any encode time is spent.
	ExpectedCount int
}

// Builder executes the pipeline. One Builder may serve many Masters, but two
// concurrent runs against the same output folder are serialized by a file
// lock.
type Builder struct {
	cfg      *config.Config
	logger   *slog.Logger
	analyzer *analysis.Analyzer
	encoder  *track.Encoder
	imager   Imager
	recorder Recorder
}

// BuilderOption configures the Builder.
type BuilderOption func(*Builder)

// WithAnalyzer overrides the default analyzer.
func WithAnalyzer(a *analysis.Analyzer) BuilderOption {
	return func(b *Builder) {
		if a != nil {
			b.analyzer = a
		}
	}
}

// WithEncoder overrides the default encoder.
func WithEncoder(e *track.Encoder) BuilderOption {
	return func(b *Builder) {
		if e != nil {
			b.encoder = e
		}
	}
}

// WithImager overrides the default image builder.
func WithImager(i Imager) BuilderOption {
	return func(b *Builder) {
		if i != nil {
			b.imager = i
		}
	}
}

// WithRecorder installs the inventory hook.
func WithRecorder(r Recorder) BuilderOption {
	return func(b *Builder) {
		b.recorder = r
	}
}

// NewBuilder constructs a Builder from configuration.
func NewBuilder(cfg *config.Config, logger *slog.Logger, opts ...BuilderOption) *Builder {
	b := &Builder{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "master"),
		analyzer: analysis.New(cfg, logger),
		encoder:  track.NewEncoder(cfg, logger),
		imager:   image.New(cfg, logger),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Create drives the whole pipeline for m. Any stage failure aborts the run;
// partially written directories are left for the next run's wipe step, but a
// half-built image is never published.
func (b *Builder) Create(ctx context.Context, m *Master, opts Options) error {
	release, err := b.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	if err := b.LoadInput(ctx, m); err != nil {
		return err
	}
	if err := b.preflight(m, opts); err != nil {
		return err
	}
	if err := b.Process(ctx, m, opts); err != nil {
		return err
	}
	if err := b.Structure(ctx, m); err != nil {
		return err
	}
	if err := b.BuildImage(ctx, m); err != nil {
		return err
	}
	b.record(ctx, m)
	return nil
}

// acquireLock serializes pipeline runs per output folder. Wipe steps race
// destructively without it.
func (b *Builder) acquireLock() (func(), error) {
	if err := os.MkdirAll(b.cfg.Paths.OutputFolder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}
	lock := flock.New(filepath.Join(b.cfg.Paths.OutputFolder, ".bindery.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrValidation, "master", "lock",
			"another build is already running against "+b.cfg.Paths.OutputFolder, nil)
	}
	return func() { _ = lock.Unlock() }, nil
}

// preflight rejects unusable drafts before any encode time is spent:
// identity must be complete and the discovered input count must match any
// caller-supplied expectation.
func (b *Builder) preflight(m *Master, opts Options) error {
	if strings.TrimSpace(m.ISBN) == "" || strings.TrimSpace(m.SKU) == "" {
		return services.Wrap(services.ErrValidation, "master", "preflight", "isbn and sku are required", nil)
	}
	if opts.ExpectedCount > 0 && m.Input.Count() != opts.ExpectedCount {
		detail := fmt.Sprintf("input folder has %d tracks, expected %d", m.Input.Count(), opts.ExpectedCount)
		return services.Wrap(services.ErrValidation, "master", "preflight", detail, nil)
	}
	return nil
}

// LoadInput scans the raw publisher files. Frame errors are probed here,
// before any encode time is spent, so corrupt sources fail early.
func (b *Builder) LoadInput(ctx context.Context, m *Master) error {
	collection, err := track.Load(ctx, m.InputDir, m.SKU, b.cfg, b.analyzer, b.logger,
		analysis.Request{Metadata: true, FrameErrors: true})
	if err != nil {
		return err
	}
	m.Input = collection

	// Identity supplied by the caller wins; tags fill the gaps.
	if m.ISBN == "" {
		isbn, err := collection.ISBN()
		if err != nil {
			return err
		}
		m.ISBN = isbn
	}
	if m.Title == "" {
		if title, err := collection.Title(); err == nil {
			m.Title = title
		}
	}
	if m.Author == "" {
		if author, err := collection.Author(); err == nil {
			m.Author = author
		}
	}

	// Identity flows onto every track so the rewritten tags, output
	// filenames, and validity checks all carry it.
	for _, t := range collection.Tracks {
		t.ISBN = m.ISBN
		t.SKU = m.SKU
		if m.Title != "" {
			t.Title = m.Title
		}
		if m.Author != "" {
			t.Author = m.Author
		}
	}

	findings := collection.Problems(track.ValidationOptions{
		TargetLUFS:          b.cfg.Encoding.TargetLUFS,
		LoudnessToleranceLU: b.cfg.Analysis.LoudnessToleranceLU,
	})
	for name, problems := range findings {
		b.logger.Warn("input track has findings",
			logging.String("file", name),
			logging.Any("problems", problems),
		)
	}

	m.state = StateInputLoaded
	b.logger.Info("input loaded",
		logging.String("sku", m.SKU),
		logging.Int("tracks", collection.Count()),
		logging.Float64("duration_s", collection.Duration()),
	)
	return nil
}

// Process produces the processed-track directory, re-encoding unless a
// count-matching processed set already exists and reuse was requested.
func (b *Builder) Process(ctx context.Context, m *Master, opts Options) error {
	if m.state < StateInputLoaded {
		return services.Wrap(services.ErrValidation, "master", "process", "input not loaded", nil)
	}
	processedDir := b.cfg.ProcessedFolder()

	if opts.SkipEncoding && b.processedReusable(processedDir, m.Input.Count()) {
		b.logger.Info("reusing processed tracks", logging.String("dir", processedDir))
		return b.adoptProcessed(ctx, m, processedDir)
	}

	if err := fileutil.ResetDir(processedDir, b.cfg.Paths.OutputFolder); err != nil {
		return err
	}
	if err := b.encodeTracks(ctx, m, processedDir); err != nil {
		return err
	}
	return b.adoptProcessed(ctx, m, processedDir)
}

func (b *Builder) processedReusable(dir string, inputCount int) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	return b.countAudioFiles(dir) == inputCount
}

func (b *Builder) countAudioFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range b.cfg.Encoding.ValidExtensions {
			if ext == allowed {
				count++
				break
			}
		}
	}
	return count
}

// encodeTracks plans the bitrate from the input projection and converts every
// track into dir.
func (b *Builder) encodeTracks(ctx context.Context, m *Master, dir string) error {
	projected := m.Input.ProjectedSize(b.cfg.Encoding.BitRate)
	plan, err := capacity.SelectBitRate(b.cfg.Encoding.BitRate, projected, b.cfg.Image.MaxDriveSize)
	if err != nil {
		return err
	}
	if plan.Reduced {
		b.logger.Warn("bitrate reduced to fit drive",
			logging.Int("configured", b.cfg.Encoding.BitRate),
			logging.Int("selected", plan.BitRate),
		)
	}
	m.BitRate = plan.BitRate
	return b.encoder.ConvertAll(ctx, m.Input, dir, plan.BitRate)
}

// adoptProcessed re-probes the processed directory as a fresh collection; the
// encoded files are now the source of truth for packaging.
func (b *Builder) adoptProcessed(ctx context.Context, m *Master, dir string) error {
	processed, err := track.Load(ctx, dir, m.SKU, b.cfg, b.analyzer, b.logger,
		analysis.Request{Metadata: true})
	if err != nil {
		return err
	}
	m.Processed = processed
	// Reused processed sets never went through planning; report the rate
	// actually observed on disk.
	if m.BitRate == 0 && len(processed.Tracks) > 0 {
		m.BitRate = processed.Tracks[0].BitRate
	}
	m.state = StateProcessed
	return nil
}

// Structure wipes and rebuilds the canonical master directory from the
// processed tracks, writing the integrity files last.
func (b *Builder) Structure(ctx context.Context, m *Master) error {
	if m.state < StateProcessed || m.Processed == nil || m.Processed.Count() == 0 {
		return services.Wrap(services.ErrValidation, "master", "structure", "no processed tracks", nil)
	}
	if strings.TrimSpace(m.ISBN) == "" || strings.TrimSpace(m.SKU) == "" {
		return services.Wrap(services.ErrValidation, "master", "structure", "isbn and sku are required", nil)
	}

	root := b.cfg.MasterRoot(m.SKU)
	if err := fileutil.ResetDir(root, b.cfg.Paths.OutputFolder); err != nil {
		return err
	}
	for _, dir := range []string{tracksDirName, bookInfoDirName} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	bookInfo := filepath.Join(root, bookInfoDirName)
	if err := os.WriteFile(filepath.Join(bookInfo, idFileName), []byte(m.ISBN), 0o644); err != nil {
		return fmt.Errorf("write id file: %w", err)
	}
	// Count is ground truth from the files actually processed, never an
	// externally supplied expectation.
	count := strconv.Itoa(m.Processed.Count())
	if err := os.WriteFile(filepath.Join(bookInfo, countFileName), []byte(count), 0o644); err != nil {
		return fmt.Errorf("write count file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, noIndexSentinelName), nil, 0o644); err != nil {
		return fmt.Errorf("write no-index sentinel: %w", err)
	}

	tracksDir := filepath.Join(root, tracksDirName)
	for _, t := range m.Processed.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}
		dest := filepath.Join(tracksDir, filepath.Base(t.Path))
		if err := fileutil.CopyFileVerified(t.Path, dest); err != nil {
			return fmt.Errorf("copy %s into master: %w", filepath.Base(t.Path), err)
		}
	}

	// Checksum last: it must commit to the final on-disk state.
	sum, err := checksum.Tree(root)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(bookInfo, checksum.ChecksumFileName), []byte(sum), 0o644); err != nil {
		return fmt.Errorf("write checksum file: %w", err)
	}

	m.Checksum = sum
	m.Root = root
	m.state = StateStructured
	b.logger.Info("master structured",
		logging.String("root", root),
		logging.String("checksum", sum),
		logging.Int("tracks", m.Processed.Count()),
	)
	return nil
}

// BuildImage creates the disk image for a structured master. A disabled image
// stage leaves the master in the structured state.
func (b *Builder) BuildImage(ctx context.Context, m *Master) error {
	if m.state < StateStructured {
		return services.Wrap(services.ErrValidation, "master", "image", "master not structured", nil)
	}
	if !b.cfg.Image.Enabled {
		b.logger.Info("image stage disabled, leaving master structured")
		return nil
	}

	result, err := b.imager.Create(ctx, m.Root, m.SKU)
	if err != nil {
		return err
	}
	m.Image = &result
	m.state = StateImaged
	b.logger.Info("image built",
		logging.String("path", result.Path),
		logging.Int64("size", result.SizeBytes),
	)
	return nil
}

// record writes the build to the inventory. Inventory problems never fail a
// build.
func (b *Builder) record(ctx context.Context, m *Master) {
	if b.recorder == nil {
		return
	}
	rec := inventory.Record{
		SKU:        m.SKU,
		ISBN:       m.ISBN,
		Title:      m.Title,
		Author:     m.Author,
		TrackCount: m.Processed.Count(),
		BitRate:    m.BitRate,
		Checksum:   m.Checksum,
	}
	if m.Image != nil {
		rec.ImagePath = m.Image.Path
		rec.ImageSize = m.Image.SizeBytes
	}
	if err := b.recorder.Record(ctx, rec); err != nil {
		b.logger.Warn("inventory record failed", logging.String("sku", m.SKU), logging.Error(err))
	}
}
