package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tidewaterlab/gemflux/internal/support/exception"
	"github.com/tidewaterlab/gemflux/internal/support/logger"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// loadConfig loads configuration from a file and environment variables.
// This function is intended to be called only once during application startup.
//
// Parameters:
//
//	envFilePath: The path to the .env file.
//	embeddedConfig: The embedded configuration bytes.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	// 1. Load defaults from NewConfig()

	// 2. Load configuration from embedded YAML into a temporary Config struct.
	// This ensures that YAML values are correctly parsed into their respective types.
	var yamlConfig Config
	if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
		return nil, exception.New(moduleName, "failed to unmarshal embedded config", err)
	}

	// 3. Merge YAML configuration into the default configuration.
	mergeConfig(cfg, &yamlConfig)

	// 4. Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.New(moduleName, "failed to load config from environment variables", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment variables.
// This function is expected to be called only once during application startup.
//
// Parameters:
//
//	envFilePath: The path to the .env file.
//	embeddedConfig: The embedded configuration bytes.
//
// Returns:
//
//	A pointer to the loaded Config and an error if loading fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validateConfig rejects configurations the pipeline cannot honor.
// Only the "06" forecast cycle convention is supported; the hour selection
// schedule is specific to it.
func validateConfig(cfg *Config) error {
	if cfg.Gemflux.Source.Cycle != "06" {
		return exception.Newf(moduleName, "unsupported forecast cycle %q: only the 06 cycle hour selection is implemented", cfg.Gemflux.Source.Cycle)
	}
	g := cfg.Gemflux.Grid
	if g.CropJMin < 0 || g.CropJMax > g.NativeNY || g.CropJMin >= g.CropJMax {
		return exception.Newf(moduleName, "invalid crop row window [%d, %d) for native height %d", g.CropJMin, g.CropJMax, g.NativeNY)
	}
	if g.CropIMin < 0 || g.CropIMax > g.NativeNX || g.CropIMin >= g.CropIMax {
		return exception.Newf(moduleName, "invalid crop column window [%d, %d) for native width %d", g.CropIMin, g.CropIMax, g.NativeNX)
	}
	if cfg.Gemflux.Batch.MaxGapHours < 1 {
		return exception.Newf(moduleName, "max_gap_hours must be at least 1, got %d", cfg.Gemflux.Batch.MaxGapHours)
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig will overwrite corresponding values in destConfig
// if they are not zero/empty values for their type.
//
// Parameters:
//
//	destConfig: The destination Config to merge into.
//	sourceConfig: The source Config to merge from.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeGemfluxConfig(&destConfig.Gemflux, &sourceConfig.Gemflux)
}

// mergeGemfluxConfig merges source into dest.
//
// Parameters:
//
//	dest: The destination GemfluxConfig to merge into.
//	source: The source GemfluxConfig to merge from.
func mergeGemfluxConfig(dest, source *GemfluxConfig) {
	// Merge BatchConfig
	if source.Batch.StartDate != "" {
		dest.Batch.StartDate = source.Batch.StartDate
	}
	if source.Batch.EndDate != "" {
		dest.Batch.EndDate = source.Batch.EndDate
	}
	if source.Batch.DestDir != "" {
		dest.Batch.DestDir = source.Batch.DestDir
	}
	if source.Batch.MaxGapHours != 0 {
		dest.Batch.MaxGapHours = source.Batch.MaxGapHours
	}

	// Merge SystemConfig
	mergeSystemConfig(&dest.System, &source.System)

	// Merge SourceConfig
	if source.Source.Dir != "" {
		dest.Source.Dir = source.Source.Dir
	}
	if source.Source.WorkDir != "" {
		dest.Source.WorkDir = source.Source.WorkDir
	}
	if source.Source.DecodeCommand != "" {
		dest.Source.DecodeCommand = source.Source.DecodeCommand
	}
	if source.Source.DecodeLibPath != "" {
		dest.Source.DecodeLibPath = source.Source.DecodeLibPath
	}
	if source.Source.Cycle != "" {
		dest.Source.Cycle = source.Source.Cycle
	}

	// Merge GridConfig
	mergeGridConfig(&dest.Grid, &source.Grid)

	// Merge MetricsConfig
	if source.Metrics.Enabled {
		dest.Metrics.Enabled = source.Metrics.Enabled
	}
	if source.Metrics.Port != 0 {
		dest.Metrics.Port = source.Metrics.Port
	}

	// Merge Variables (per-variable conversion rules)
	if source.Variables != nil {
		if dest.Variables == nil {
			dest.Variables = make(map[string]interface{})
		}
		for key, value := range source.Variables {
			dest.Variables[key] = value
		}
	}
}

// mergeSystemConfig merges source into dest.
//
// Parameters:
//
//	dest: The destination SystemConfig to merge into.
//	source: The source SystemConfig to merge from.
func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
}

// mergeGridConfig merges source into dest.
// A fully zero source grid leaves the defaults in place; a partially set one
// overwrites field by field.
//
// Parameters:
//
//	dest: The destination GridConfig to merge into.
//	source: The source GridConfig to merge from.
func mergeGridConfig(dest, source *GridConfig) {
	if source.NativeNY != 0 {
		dest.NativeNY = source.NativeNY
	}
	if source.NativeNX != 0 {
		dest.NativeNX = source.NativeNX
	}
	if source.CropJMin != 0 {
		dest.CropJMin = source.CropJMin
	}
	if source.CropJMax != 0 {
		dest.CropJMax = source.CropJMax
	}
	if source.CropIMin != 0 {
		dest.CropIMin = source.CropIMin
	}
	if source.CropIMax != 0 {
		dest.CropIMax = source.CropIMax
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "GEMFLUX_BATCH_").
//
// Returns: An error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, and bool types.
//
// Parameters:
//
//	field: The reflect.Value of the field to set.
//	value: The string value to convert and set.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
