package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputFolder string `toml:"output_folder"`
	StagingDir   string `toml:"staging_dir"`
	LogDir       string `toml:"log_dir"`
}

// Encoding contains the fixed output profile applied to every track.
type Encoding struct {
	BitRate         int      `toml:"bit_rate"`
	SampleRate      int      `toml:"sample_rate"`
	Channels        int      `toml:"channels"`
	TargetLUFS      float64  `toml:"target_lufs"`
	ValidExtensions []string `toml:"valid_extensions"`
}

// Analysis contains probe thresholds.
type Analysis struct {
	// SilenceThresholdDB is stored positive, meaning dB below full scale.
	SilenceThresholdDB  float64 `toml:"silence_threshold_db"`
	MinSilenceDuration  float64 `toml:"min_silence_duration"`
	LoudnessToleranceLU float64 `toml:"loudness_tolerance_lu"`
	ProbeTimeoutSeconds int     `toml:"probe_timeout_seconds"`
}

// Image contains disk image creation settings.
type Image struct {
	Enabled       bool   `toml:"enabled"`
	MaxDriveSize  int64  `toml:"max_drive_size"`
	MkfsBinary    string `toml:"mkfs_binary"`
	MmdBinary     string `toml:"mmd_binary"`
	McopyBinary   string `toml:"mcopy_binary"`
	ToolTimeout   int    `toml:"tool_timeout_seconds"`
	KeepStaging   bool   `toml:"keep_staging"`
	SkipPublishRO bool   `toml:"skip_publish_read_only"`
}

// Tools names the external audio binaries.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Inventory contains the build history database settings.
type Inventory struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for bindery.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Encoding  Encoding  `toml:"encoding"`
	Analysis  Analysis  `toml:"analysis"`
	Image     Image     `toml:"image"`
	Tools     Tools     `toml:"tools"`
	Inventory Inventory `toml:"inventory"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/bindery/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bindery.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputFolder, c.Paths.StagingDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProcessedFolder is the staging directory for re-encoded-but-unpackaged tracks.
func (c *Config) ProcessedFolder() string {
	return filepath.Join(c.Paths.OutputFolder, "processed")
}

// MasterRoot is the directory the canonical master structure is assembled in
// for the given SKU.
func (c *Config) MasterRoot(sku string) string {
	return filepath.Join(c.Paths.OutputFolder, "masters", sku)
}

// ImageFolder is the directory finished disk images are published into.
func (c *Config) ImageFolder() string {
	return filepath.Join(c.Paths.OutputFolder, "image_binaries")
}

// CreateSample writes the embedded sample configuration to the target path.
func CreateSample(target string) error {
	return os.WriteFile(target, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves ~ prefixes and returns a cleaned absolute path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputFolder, err = ExpandPath(c.Paths.OutputFolder); err != nil {
		return err
	}
	if c.Paths.StagingDir, err = ExpandPath(c.Paths.StagingDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Inventory.Path, err = ExpandPath(c.Inventory.Path); err != nil {
		return err
	}

	if strings.TrimSpace(c.Tools.FFmpeg) == "" {
		c.Tools.FFmpeg = "ffmpeg"
	}
	if strings.TrimSpace(c.Tools.FFprobe) == "" {
		c.Tools.FFprobe = "ffprobe"
	}
	if strings.TrimSpace(c.Image.MkfsBinary) == "" {
		c.Image.MkfsBinary = "mkfs.vfat"
	}
	if strings.TrimSpace(c.Image.MmdBinary) == "" {
		c.Image.MmdBinary = "mmd"
	}
	if strings.TrimSpace(c.Image.McopyBinary) == "" {
		c.Image.McopyBinary = "mcopy"
	}

	exts := make([]string, 0, len(c.Encoding.ValidExtensions))
	for _, ext := range c.Encoding.ValidExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	c.Encoding.ValidExtensions = exts

	return nil
}
