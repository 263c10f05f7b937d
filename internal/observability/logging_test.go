package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/stbtool/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := config.LoggingConfig{Level: level, Format: "json"}
		logger, err := NewLogger(cfg)
		require.NoError(t, err, "level %q should be valid", level)
		want, err := zapcore.ParseLevel(level)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(want))
	}
}

func TestNewLogger_WarnHidesInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestNewLogger_DefaultConfig(t *testing.T) {
	logger, err := NewLogger(config.Default().Logging)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLoggerTo_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerTo(config.LoggingConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("converted", zap.String("src", "a.stb"))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "converted", entry["msg"])
	assert.Equal(t, "a.stb", entry["src"])
	assert.Contains(t, entry, "caller")
}

func TestNewLoggerTo_ConsoleOmitsCallerAndStack(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLoggerTo(config.LoggingConfig{Level: "info", Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Error("conversion failed", zap.String("path", "b.xml"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "conversion failed")
	assert.Contains(t, out, `"path": "b.xml"`)
	assert.NotContains(t, out, ".go:")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
