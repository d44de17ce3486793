// File: internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/purib/ipopilot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// resetGlobalLogger gives each test an uninitialized logger singleton.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitialize(t *testing.T) {
	t.Run("console format colorizes the level", func(t *testing.T) {
		resetGlobalLogger()
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "ipopilot-test",
		}, zapcore.AddSync(&buf))

		GetLogger().Info("hello from console")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "hello from console")
		assert.Contains(t, out, colorGreen, "info level should carry its ANSI color")
		assert.Contains(t, out, "ipopilot-test.")
	})

	t.Run("json format emits structured entries", func(t *testing.T) {
		resetGlobalLogger()
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "ipopilot-test",
		}, zapcore.AddSync(&buf))

		GetLogger().Info("structured", zap.String("account", "user1"))
		Sync()

		line := strings.TrimSpace(buf.String())
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "structured", entry["msg"])
		assert.Equal(t, "user1", entry["account"])
		assert.Equal(t, "INFO", entry["level"])
	})

	t.Run("level below threshold is suppressed", func(t *testing.T) {
		resetGlobalLogger()
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{
			Level:  "warn",
			Format: "json",
		}, zapcore.AddSync(&buf))

		GetLogger().Info("too quiet")
		GetLogger().Warn("loud enough")
		Sync()

		out := buf.String()
		assert.NotContains(t, out, "too quiet")
		assert.Contains(t, out, "loud enough")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		resetGlobalLogger()
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{
			Level:  "nonsense",
			Format: "json",
		}, zapcore.AddSync(&buf))

		GetLogger().Debug("dropped")
		GetLogger().Info("kept")
		Sync()

		out := buf.String()
		assert.NotContains(t, out, "dropped")
		assert.Contains(t, out, "kept")
	})

	t.Run("second Initialize is a no-op", func(t *testing.T) {
		resetGlobalLogger()
		var first, second bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

		GetLogger().Info("routed")
		Sync()

		assert.Contains(t, first.String(), "routed")
		assert.Empty(t, second.String())
	})

	t.Run("log file core writes json", func(t *testing.T) {
		resetGlobalLogger()
		logFile := filepath.Join(t.TempDir(), "run.log")
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			LogFile: logFile,
		}, zapcore.AddSync(&buf))

		GetLogger().Info("persisted entry")
		Sync()

		data, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"persisted entry"`)
	})
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetGlobalLogger()
	logger := GetLogger()
	require.NotNil(t, logger)
	// The fallback must be usable without panicking.
	logger.Info("fallback logger works")
}
