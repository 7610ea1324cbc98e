package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/ariadriver/internal/config"
)

// setupTestLogger initializes the global logger to write to a buffer.
func setupTestLogger(cfg config.LoggerConfig) *bytes.Buffer {
	buf := new(bytes.Buffer)
	initializeLogger(cfg, zapcore.AddSync(buf))
	return buf
}

// resetGlobalLogger restores the singleton so each case starts clean.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitializeLogger(t *testing.T) {
	t.Run("console logger colorizes levels", func(t *testing.T) {
		resetGlobalLogger()
		buf := setupTestLogger(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "ConsoleTest",
			Colors:      config.ColorConfig{Warn: "yellow"},
		})

		GetLogger().Warn("Diagnostic", zap.String("code", "POOR_SEMANTICS"))
		GetLogger().Info("Operation finished")
		Sync()

		output := buf.String()
		assert.Contains(t, output, ansiColors["yellow"]+"WARN"+ansiReset)
		assert.NotContains(t, output, ansiColors["yellow"]+"INFO")
		assert.Contains(t, output, "POOR_SEMANTICS")
		assert.Contains(t, output, "ConsoleTest")
	})

	t.Run("json logger emits structured entries", func(t *testing.T) {
		resetGlobalLogger()
		buf := setupTestLogger(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"})

		GetLogger().Info("Operation finished", zap.String("kind", "popup"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Operation finished", entry["msg"])
		assert.Equal(t, "popup", entry["kind"])
	})

	t.Run("level filtering applies", func(t *testing.T) {
		resetGlobalLogger()
		buf := setupTestLogger(config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Debug("State transition")
		Sync()

		assert.Empty(t, buf.String())
	})

	t.Run("writes rotated json to the log file", func(t *testing.T) {
		resetGlobalLogger()
		logFile := filepath.Join(t.TempDir(), "ariadriver.log")
		setupTestLogger(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1})

		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})

	t.Run("initializes only once", func(t *testing.T) {
		resetGlobalLogger()
		buf1 := setupTestLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"})
		logger1 := GetLogger()

		buf2 := setupTestLogger(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"})
		logger2 := GetLogger()

		assert.Same(t, logger1, logger2)
		logger2.Info("test message")
		Sync()

		assert.Contains(t, buf1.String(), "First")
		assert.NotContains(t, buf1.String(), "Second")
		assert.Empty(t, buf2.String())
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("falls back when not initialized", func(t *testing.T) {
		resetGlobalLogger()
		require.NotNil(t, GetLogger())
	})

	t.Run("returns the global logger after initialization", func(t *testing.T) {
		resetGlobalLogger()
		setupTestLogger(config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})

		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestForSession(t *testing.T) {
	t.Run("names the component and binds the session", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)

		ForSession(zap.New(core), "driver", "s-1").Info("State transition")

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, "driver", entry.LoggerName)
		assert.Equal(t, "s-1", entry.ContextMap()[SessionKey])
	})

	t.Run("empty session id leaves the logger unbound", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)

		ForSession(zap.New(core), "static", "").Info("Document loaded")

		require.Equal(t, 1, logs.Len())
		assert.NotContains(t, logs.All()[0].ContextMap(), SessionKey)
	})

	t.Run("nil logger is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() { ForSession(nil, "session", "s-2").Warn("ignored") })
	})
}

func TestDiagnosticFields(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	logger.Warn("Diagnostic", DiagnosticFields("POOR_SEMANTICS", "tabindex 3", "https://example.test/kbd")...)
	logger.Warn("Diagnostic", DiagnosticFields("AMBIGUOUS_REFERENCE", "2 matches", "")...)

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.Equal(t, "POOR_SEMANTICS", first[CodeKey])
	assert.Equal(t, "tabindex 3", first[DetailKey])
	assert.Equal(t, "https://example.test/kbd", first[LinkKey])
	assert.NotContains(t, logs.All()[1].ContextMap(), LinkKey)
}

func TestOperationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	zap.New(core).Info("Operation finished", OperationFields("popup", "#trigger")...)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "popup", logs.All()[0].ContextMap()[KindKey])
	assert.Equal(t, "#trigger", logs.All()[0].ContextMap()[SelectorKey])
}
