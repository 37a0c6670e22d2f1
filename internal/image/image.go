// Package image builds FAT disk images from a finished master directory using
// external formatting and FAT-editing tools, without ever mounting the image.
package image

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bindery/internal/checksum"
	"bindery/internal/config"
	"bindery/internal/fileutil"
	"bindery/internal/logging"
	"bindery/internal/services"
	"bindery/internal/textutil"
)

const (
	// fat16ThresholdMB is the image size below which FAT16 is used.
	fat16ThresholdMB = 40

	// minImageMB is the floor required for viable FAT cluster geometry.
	minImageMB = 10

	// minBufferBytes is the smallest overhead allowance added on top of the
	// content size.
	minBufferBytes = 5 << 20
)

// Runner abstracts external tool execution for testability.
type Runner interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
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

// Result describes a published disk image.
type Result struct {
	Path      string
	SizeBytes int64
	FATBits   int
	Label     string
}

// Option configures the builder.
type Option func(*Builder)

// WithRunner injects a custom tool runner (primarily for tests).
func WithRunner(r Runner) Option {
	return func(b *Builder) {
		if r != nil {
			b.runner = r
		}
	}
}

// Builder creates disk images per the configured tool set.
type Builder struct {
	cfg    *config.Config
	runner Runner
	logger *slog.Logger
}

// New constructs a Builder from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		cfg:    cfg,
		runner: commandRunner{},
		logger: logging.NewComponentLogger(logger, "image"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Create builds a FAT image of sourceDir, labeled from sku, and publishes it
// into the configured image folder as <sku>.img. The image is built in local
// staging and moved into place only once complete, so a half-written image is
// never visible at the published path.
func (b *Builder) Create(ctx context.Context, sourceDir, sku string) (Result, error) {
	if strings.TrimSpace(sku) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "image", "create", "empty sku", nil)
	}
	label := textutil.SanitizeVolumeLabel(sku)
	if label == "" {
		label = "MASTER"
	}

	sizeMB, err := b.imageSizeMB(sourceDir)
	if err != nil {
		return Result{}, err
	}
	sizeBytes := int64(sizeMB) << 20

	if err := b.preflightSpace(sizeBytes); err != nil {
		return Result{}, err
	}

	stagingDir := filepath.Join(b.cfg.Paths.StagingDir, uuid.New().String())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create staging directory: %w", err)
	}
	if !b.cfg.Image.KeepStaging {
		defer os.RemoveAll(stagingDir)
	}

	staged := filepath.Join(stagingDir, sku+".img")
	if err := allocate(staged, sizeBytes); err != nil {
		return Result{}, err
	}

	fatBits := 32
	if sizeMB < fat16ThresholdMB {
		fatBits = 16
	}
	b.logger.Info("formatting image",
		logging.Int("size_mb", sizeMB),
		logging.Int("fat_bits", fatBits),
		logging.String("label", label),
	)
	if err := b.run(ctx, b.cfg.Image.MkfsBinary, "-F", fmt.Sprintf("%d", fatBits), "-n", label, staged); err != nil {
		return Result{}, err
	}

	if err := b.populate(ctx, staged, sourceDir); err != nil {
		return Result{}, err
	}

	published, err := b.publish(staged, sku)
	if err != nil {
		return Result{}, err
	}

	return Result{Path: published, SizeBytes: sizeBytes, FATBits: fatBits, Label: label}, nil
}

// imageSizeMB computes the image size: content plus max(5%, 5MB) overhead,
// rounded up to whole megabytes, never below the FAT minimum.
func (b *Builder) imageSizeMB(sourceDir string) (int, error) {
	used, err := treeSize(sourceDir)
	if err != nil {
		return 0, err
	}
	buffer := used / 20
	if buffer < minBufferBytes {
		buffer = minBufferBytes
	}
	sizeMB := int((used + buffer + (1 << 20) - 1) >> 20)
	if sizeMB < minImageMB {
		sizeMB = minImageMB
	}
	return sizeMB, nil
}

func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && checksum.IsJunk(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if checksum.IsJunk(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measure source tree: %w", err)
	}
	return total, nil
}

func allocate(path string, size int64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("allocate image file: %w", err)
	}
	if err := file.Truncate(size); err != nil {
		file.Close()
		return fmt.Errorf("size image file: %w", err)
	}
	return file.Close()
}

// populate copies the source tree into the unmounted image. Directories are
// created explicitly first because the copy tool cannot create parents.
func (b *Builder) populate(ctx context.Context, imagePath, sourceDir string) error {
	var dirs, files []string
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == sourceDir {
			return nil
		}
		if checksum.IsJunk(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			dirs = append(dirs, rel)
		} else {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk source tree: %w", err)
	}
	textutil.NaturalSort(dirs)
	textutil.NaturalSort(files)

	for _, dir := range dirs {
		if err := b.run(ctx, b.cfg.Image.MmdBinary, "-i", imagePath, "::/"+dir); err != nil {
			return err
		}
	}
	for _, file := range files {
		src := filepath.Join(sourceDir, filepath.FromSlash(file))
		if err := b.run(ctx, b.cfg.Image.McopyBinary, "-i", imagePath, src, "::/"+file); err != nil {
			return err
		}
	}
	return nil
}

// publish moves the staged image into the image folder, falling back to
// copy+verify when rename crosses filesystems. The published file is made
// read-only.
func (b *Builder) publish(staged, sku string) (string, error) {
	destDir := b.cfg.ImageFolder()
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}
	dest := filepath.Join(destDir, sku+".img")
	// A previous published image may be read-only; clear it first.
	if _, err := os.Stat(dest); err == nil {
		_ = os.Chmod(dest, 0o644)
		_ = os.Remove(dest)
	}

	if err := os.Rename(staged, dest); err != nil {
		b.logger.Debug("rename failed, falling back to verified copy", logging.Error(err))
		if err := fileutil.CopyFileVerified(staged, dest); err != nil {
			return "", fmt.Errorf("publish image: %w", err)
		}
		if err := fileutil.RemoveWithRetry(staged, 3, 500*time.Millisecond); err != nil {
			// Stale staging only wastes disk space; the publish succeeded.
			b.logger.Warn("could not remove staged image", logging.String("path", staged), logging.Error(err))
		}
	}

	if !b.cfg.Image.SkipPublishRO {
		if err := os.Chmod(dest, 0o444); err != nil {
			b.logger.Warn("could not mark image read-only", logging.String("path", dest), logging.Error(err))
		}
	}
	return dest, nil
}

func (b *Builder) run(ctx context.Context, binary string, args ...string) error {
	if b.cfg.Image.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(b.cfg.Image.ToolTimeout)*time.Second)
		defer cancel()
	}
	if _, stderr, err := b.runner.Run(ctx, binary, args); err != nil {
		return services.Wrap(services.ErrExternalTool, "image", filepath.Base(binary), strings.TrimSpace(string(stderr)), err)
	}
	return nil
}
