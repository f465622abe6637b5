// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/plugin-eval/internal/config"
)

// -- Test Helper Functions --

// initBuffered resets the singleton and initializes it against an in-memory sink.
func initBuffered(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

// -- Test Cases --

func TestInitialize(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "plugin-eval",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Named("executor").Info("scenario passed")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "scenario passed")
		assert.Contains(t, out, ansi["green"], "info level should be colorized")
		assert.Contains(t, out, colorReset)
		assert.Contains(t, out, "plugin-eval.executor.")
	})

	t.Run("uncolored level falls back to plain text", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", Format: "console"})

		GetLogger().Warn("careful")
		Sync()

		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "JSONTest",
		})

		GetLogger().Warn("budget close to ceiling", zap.Int("tokens", 42))
		Sync()

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output should be valid JSON")
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "budget close to ceiling", entry["msg"])
		assert.EqualValues(t, 42, entry["tokens"])
	})

	t.Run("level below threshold is dropped", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Info("hidden")
		Sync()

		assert.Empty(t, buf.String())
	})

	t.Run("writes to a rotating log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "eval.log")
		initBuffered(t, config.LoggerConfig{
			Level:   "debug",
			Format:  "json",
			LogFile: path,
			MaxSize: 1,
		})

		GetLogger().Error("This should go to the file.")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "This should go to the file.")
	})

	t.Run("only the first call initializes", func(t *testing.T) {
		buf := initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "First"})
		first := GetLogger()

		var other bytes.Buffer
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "Second"}, zapcore.AddSync(&other))
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()

		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
		assert.Empty(t, other.String())
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		require.NotNil(t, GetLogger())
	})

	t.Run("global logger after initialization", func(t *testing.T) {
		initBuffered(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer prompt body", 10, "a longe..."},
		{"abcdef", 2, "ab"},
		{"unbounded", 0, "unbounded"},
		{"héllo wörld", 6, "hél..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Preview(tt.in, tt.n), "Preview(%q, %d)", tt.in, tt.n)
	}
}
