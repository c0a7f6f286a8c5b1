package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{name: "debug level", input: "DEBUG", expected: DEBUG},
		{name: "info level", input: "info", expected: INFO},
		{name: "warn level", input: "WARN", expected: WARN},
		{name: "warning level", input: "WARNING", expected: WARN},
		{name: "error level", input: "ERROR", expected: ERROR},
		{name: "invalid level", input: "LOUD", expected: INFO, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLogLevelMapping(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, DEBUG.SlogLevel())
	assert.Equal(t, slog.LevelError, ERROR.SlogLevel())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, INFO, "json")
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("visible", "path", "/a/b")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"path":"/a/b"`)

	buf.Reset()
	logger, err = NewLogger(&buf, DEBUG, "text")
	require.NoError(t, err)
	logger.Debug("resolving", "path", "/x")
	assert.True(t, strings.Contains(buf.String(), "path=/x"), buf.String())

	_, err = NewLogger(&buf, INFO, "xml")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logFile := filepath.Join(t.TempDir(), "treefs.log")
	closer, err := SetupLogging(LogOptions{Level: "DEBUG", File: logFile, Format: "json"})
	require.NoError(t, err)

	slog.Debug("written to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	_, err = SetupLogging(LogOptions{Level: "nope"})
	assert.Error(t, err)
}
