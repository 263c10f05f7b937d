// Package config provides Viper-based configuration loading for the room
// conversion tool.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// ConvertConfig holds settings for one-shot and batch conversion.
type ConvertConfig struct {
	// Workers bounds how many documents a batch converts at once.
	Workers int `mapstructure:"workers"`
	// Output is the default output format: "stb" or "xml".
	Output string `mapstructure:"output"`
	// Overwrite allows replacing existing output files.
	Overwrite bool `mapstructure:"overwrite"`
	// STBDialect is the dialect written for STB output: "afterbirth+" or "rebirth".
	STBDialect string `mapstructure:"stb_dialect"`
}

// WatchConfig holds settings for watch mode.
type WatchConfig struct {
	// Debounce is how long a file must stay unchanged before it is converted.
	Debounce time.Duration `mapstructure:"debounce"`
	// Extensions lists the source file extensions to react to.
	Extensions []string `mapstructure:"extensions"`
}

// LookupConfig locates the entity metadata table.
type LookupConfig struct {
	// Entities is the path to the YAML entity table. Empty disables name
	// resolution.
	Entities string `mapstructure:"entities"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Convert ConvertConfig `mapstructure:"convert"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateConvert(c.Convert); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWatch(c.Watch); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateConvert(c ConvertConfig) error {
	var errs []string
	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("convert.workers must be >= 1, got %d", c.Workers))
	}
	validOutputs := map[string]bool{"stb": true, "xml": true}
	if !validOutputs[c.Output] {
		errs = append(errs, fmt.Sprintf("convert.output must be one of [stb, xml], got %q", c.Output))
	}
	validDialects := map[string]bool{"afterbirth+": true, "rebirth": true}
	if !validDialects[c.STBDialect] {
		errs = append(errs, fmt.Sprintf("convert.stb_dialect must be one of [afterbirth+, rebirth], got %q", c.STBDialect))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWatch(w WatchConfig) error {
	var errs []string
	if w.Debounce < 0 {
		errs = append(errs, "watch.debounce must not be negative")
	}
	for _, ext := range w.Extensions {
		switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
		case "stb", "xml":
		default:
			errs = append(errs, fmt.Sprintf("watch.extensions entries must be stb or xml, got %q", ext))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with STBTOOL_ prefix
	v.SetEnvPrefix("STBTOOL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
//
// Postcondition: the result passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := LoadFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("config: defaults are invalid: %v", err))
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("convert.workers", 4)
	v.SetDefault("convert.output", "xml")
	v.SetDefault("convert.overwrite", false)
	v.SetDefault("convert.stb_dialect", "afterbirth+")

	v.SetDefault("watch.debounce", "250ms")
	v.SetDefault("watch.extensions", []string{".stb", ".xml"})

	v.SetDefault("lookup.entities", "")
}
