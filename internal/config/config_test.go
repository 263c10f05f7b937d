package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Convert: ConvertConfig{
			Workers:    4,
			Output:     "xml",
			STBDialect: "afterbirth+",
		},
		Watch: WatchConfig{
			Debounce:   250 * time.Millisecond,
			Extensions: []string{".stb", ".xml"},
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Convert.Workers)
	assert.Equal(t, "afterbirth+", cfg.Convert.STBDialect)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{".stb", ".xml"}, cfg.Watch.Extensions)
	assert.Empty(t, cfg.Lookup.Entities)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
logging:
  level: debug
  format: console
convert:
  workers: 8
  output: stb
  overwrite: true
  stb_dialect: rebirth
watch:
  debounce: 1s
  extensions:
    - .xml
lookup:
  entities: /data/entities.yaml
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Convert.Workers)
	assert.Equal(t, "stb", cfg.Convert.Output)
	assert.True(t, cfg.Convert.Overwrite)
	assert.Equal(t, "rebirth", cfg.Convert.STBDialect)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []string{".xml"}, cfg.Watch.Extensions)
	assert.Equal(t, "/data/entities.yaml", cfg.Lookup.Entities)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.Convert.Output)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STBTOOL_CONVERT_WORKERS", "16")
	t.Setenv("STBTOOL_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Convert.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadFromViper_Invalid(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("convert.output", "json")
	_, err := LoadFromViper(v)
	assert.Error(t, err)
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateConvert(t *testing.T) {
	cfg := validConfig()
	cfg.Convert.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Convert.Output = "yaml"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Convert.STBDialect = "antibirth"
	assert.Error(t, cfg.Validate(), "antibirth cannot be written")
}

func TestValidateWatch(t *testing.T) {
	cfg := validConfig()
	cfg.Watch.Debounce = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Watch.Extensions = []string{"stb", ".XML"}
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.Watch.Extensions = []string{".png"}
	assert.Error(t, cfg.Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "loud"
	cfg.Convert.Workers = -1
	cfg.Watch.Debounce = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "convert.workers")
	assert.Contains(t, err.Error(), "watch.debounce")
}

func TestPropertyWorkersValidation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		workers := rapid.IntRange(-100, 100).Draw(t, "workers")
		cfg := validConfig()
		cfg.Convert.Workers = workers
		err := cfg.Validate()
		if workers >= 1 {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err)
		}
	})
}
