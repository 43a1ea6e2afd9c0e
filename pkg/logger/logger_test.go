package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, level LogLevel) (*Logger, *bytes.Buffer) {
	t.Helper()

	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	l, err := New(level, logPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	buf := &bytes.Buffer{}
	l.logger.SetOutput(buf)
	return l, buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newTestLogger(t, LevelWarn)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "[WARN] warn message")
}

func TestFormatArgs(t *testing.T) {
	l, buf := newTestLogger(t, LevelDebug)

	l.Info("loaded %d threads for user %s", 3, "alice")

	assert.Contains(t, buf.String(), "loaded 3 threads for user alice")
}

func TestPreserveAppends(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	err := os.WriteFile(logPath, []byte("previous session\n"), 0644)
	require.NoError(t, err)

	l, err := New(LevelInfo, logPath, true)
	require.NoError(t, err)
	l.Info("new session")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "previous session")
	assert.Contains(t, string(content), "new session")
}

func TestTruncateWithoutPreserve(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	err := os.WriteFile(logPath, []byte("previous session\n"), 0644)
	require.NoError(t, err)

	l, err := New(LevelInfo, logPath, false)
	require.NoError(t, err)
	l.Info("new session")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "previous session")
	assert.Contains(t, string(content), "new session")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, parseLevel("debug"))
	assert.Equal(t, LevelWarn, parseLevel("warning"))
	assert.Equal(t, LevelError, parseLevel("error"))
	assert.Equal(t, LevelInfo, parseLevel("unknown"))
	assert.Equal(t, LevelInfo, parseLevel(""))
}

func TestWithComponent(t *testing.T) {
	l, buf := newTestLogger(t, LevelDebug)
	SetDefault(l)
	defer SetDefault(nil)

	log := WithComponent("dispatch")
	log.Debug("registered %d processors", 2)

	assert.Contains(t, buf.String(), "[DEBUG] [dispatch] registered 2 processors")
}

func TestPackageFuncsSafeWhenUninitialized(t *testing.T) {
	SetDefault(nil)

	// Should not panic without an initialized logger
	assert.NotPanics(t, func() {
		Debug("ignored")
		Info("ignored")
		Warn("ignored")
		Error("ignored")
	})
}
