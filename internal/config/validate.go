package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateImage(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputFolder == "" {
		return errors.New("paths.output_folder must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.BitRate <= 0 {
		return errors.New("encoding.bit_rate must be positive")
	}
	if c.Encoding.SampleRate <= 0 {
		return errors.New("encoding.sample_rate must be positive")
	}
	switch c.Encoding.Channels {
	case 1, 2:
	default:
		return fmt.Errorf("encoding.channels must be 1 or 2, got %d", c.Encoding.Channels)
	}
	if c.Encoding.TargetLUFS >= 0 {
		return errors.New("encoding.target_lufs must be negative")
	}
	if len(c.Encoding.ValidExtensions) == 0 {
		return errors.New("encoding.valid_extensions must not be empty")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.SilenceThresholdDB <= 0 {
		return errors.New("analysis.silence_threshold_db is dB below full scale and must be positive")
	}
	if c.Analysis.MinSilenceDuration <= 0 {
		return errors.New("analysis.min_silence_duration must be positive")
	}
	if c.Analysis.LoudnessToleranceLU < 0 {
		return errors.New("analysis.loudness_tolerance_lu must not be negative")
	}
	return nil
}

func (c *Config) validateImage() error {
	if !c.Image.Enabled {
		return nil
	}
	if c.Image.MaxDriveSize <= 0 {
		return errors.New("image.max_drive_size must be positive when image creation is enabled")
	}
	return nil
}
