package config

const (
	defaultOutputFolder       = "~/bindery/output"
	defaultStagingDir         = "~/.local/share/bindery/staging"
	defaultLogDir             = "~/.local/share/bindery/logs"
	defaultInventoryPath      = "~/.local/share/bindery/inventory.db"
	defaultBitRate            = 96000
	defaultSampleRate         = 44100
	defaultChannels           = 1
	defaultTargetLUFS         = -14.0
	defaultSilenceThreshold   = 30.0
	defaultMinSilenceDuration = 0.5
	defaultLoudnessTolerance  = 2.0
	defaultProbeTimeout       = 300
	defaultImageToolTimeout   = 300
	defaultMaxDriveSize       = 1_000_000_000
	defaultLogLevel           = "info"
	defaultLogFormat          = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputFolder: defaultOutputFolder,
			StagingDir:   defaultStagingDir,
			LogDir:       defaultLogDir,
		},
		Encoding: Encoding{
			BitRate:         defaultBitRate,
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
			TargetLUFS:      defaultTargetLUFS,
			ValidExtensions: []string{".mp3", ".wav", ".flac", ".m4a", ".aac"},
		},
		Analysis: Analysis{
			SilenceThresholdDB:  defaultSilenceThreshold,
			MinSilenceDuration:  defaultMinSilenceDuration,
			LoudnessToleranceLU: defaultLoudnessTolerance,
			ProbeTimeoutSeconds: defaultProbeTimeout,
		},
		Image: Image{
			Enabled:      true,
			MaxDriveSize: defaultMaxDriveSize,
			MkfsBinary:   "mkfs.vfat",
			MmdBinary:    "mmd",
			McopyBinary:  "mcopy",
			ToolTimeout:  defaultImageToolTimeout,
		},
		Tools: Tools{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Inventory: Inventory{
			Enabled: true,
			Path:    defaultInventoryPath,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
