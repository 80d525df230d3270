package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
// This is used when loading configuration from an embedded source (e.g., a compiled binary).
type EmbeddedConfig []byte

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone. Forecast-hour timestamps are UTC.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// SourceConfig holds settings for locating and decoding archival forecast files.
type SourceConfig struct {
	// Dir is the directory holding raw forecast source files named {YYYYMMDD}{cycle}_{leadhour:03d}.
	Dir string `yaml:"dir"`
	// WorkDir is the scratch directory for decoded hour files.
	WorkDir string `yaml:"work_dir"`
	// DecodeCommand is the path to the external decode utility.
	DecodeCommand string `yaml:"decode_command"`
	// DecodeLibPath is prepended to LD_LIBRARY_PATH when running the decode utility.
	DecodeLibPath string `yaml:"decode_lib_path"`
	// Cycle is the forecast cycle whose output is authoritative. Only "06" is supported.
	Cycle string `yaml:"cycle"`
}

// GridConfig holds the fixed source grid shape and the operational crop window.
// The crop window is [JMin, JMax) rows by [IMin, IMax) columns.
type GridConfig struct {
	NativeNY int `yaml:"native_ny"`
	NativeNX int `yaml:"native_nx"`
	CropJMin int `yaml:"crop_j_min"`
	CropJMax int `yaml:"crop_j_max"`
	CropIMin int `yaml:"crop_i_min"`
	CropIMax int `yaml:"crop_i_max"`
}

// CropNY returns the number of rows in the cropped grid.
func (g GridConfig) CropNY() int { return g.CropJMax - g.CropJMin }

// CropNX returns the number of columns in the cropped grid.
func (g GridConfig) CropNX() int { return g.CropIMax - g.CropIMin }

// BatchConfig holds the date range and output location for a batch run.
type BatchConfig struct {
	// StartDate is the first target calendar day, formatted YYYY-MM-DD.
	StartDate string `yaml:"start_date"`
	// EndDate is the last target calendar day (inclusive), formatted YYYY-MM-DD.
	EndDate string `yaml:"end_date"`
	// DestDir is the directory daily forcing files are written to.
	DestDir string `yaml:"dest_dir"`
	// MaxGapHours is the longest run of consecutive missing hours that may be
	// filled by interpolation. Longer runs fail the day.
	MaxGapHours int `yaml:"max_gap_hours"`
}

// MetricsConfig holds settings for the optional Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the Prometheus recorder and HTTP endpoint on.
	Enabled bool `yaml:"enabled"`
	// Port is the listen port for the /metrics endpoint.
	Port int `yaml:"port"`
}

// GemfluxConfig holds all configuration under the "gemflux" top-level key.
type GemfluxConfig struct {
	// Batch contains the date range and output settings.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Source contains forecast source and decode settings.
	Source SourceConfig `yaml:"source"`
	// Grid contains the native grid shape and crop window.
	Grid GridConfig `yaml:"grid"`
	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `yaml:"metrics"`
	// Variables holds per-variable unit-conversion rules keyed by raw variable
	// name, decoded into typed rules by the binder.
	Variables map[string]interface{} `yaml:"variables"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Gemflux contains the top-level configuration for the pipeline.
	Gemflux GemfluxConfig `yaml:"gemflux"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
//
// Returns:
//
//	A pointer to a new Config instance initialized with default settings.
func NewConfig() *Config {
	cfg := &Config{
		Gemflux: GemfluxConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
			Batch: BatchConfig{
				DestDir:     ".",
				MaxGapHours: 4, // Longer runs indicate a data outage, not routine loss.
			},
			Source: SourceConfig{
				Dir:           ".",
				WorkDir:       ".",
				DecodeCommand: "rpn-decode",
				Cycle:         "06",
			},
			Grid: GridConfig{
				NativeNY: 300,
				NativeNX: 500,
				CropJMin: 20,
				CropJMax: 285,
				CropIMin: 110,
				CropIMax: 365,
			},
			Metrics: MetricsConfig{
				Enabled: false,
				Port:    9090,
			},
		},
	}

	// Initialize Variables as an empty map, to be populated by YAML or by mergeConfig.
	cfg.Gemflux.Variables = map[string]interface{}{}
	return cfg
}
