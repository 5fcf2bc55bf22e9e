package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset() {
	once = sync.Once{}
	mu.Lock()
	root = slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	mu.Unlock()
}

func TestNewLoggerWithoutInitDiscards(t *testing.T) {
	reset()
	l := NewLogger("relay")
	assert.Equal(t, "relay", l.Tag())
	assert.NotPanics(t, func() { l.Info("dropped", "k", "v") })
}

func TestDevModeWritesTaggedRecordsToConsole(t *testing.T) {
	reset()
	var buf bytes.Buffer
	require.NoError(t, InitLogger(Options{Dev: true, Console: &buf, Level: "debug"}))

	NewLogger("Ollama handler").Debug("received token", "bytes", 3)

	out := buf.String()
	assert.Contains(t, out, `component="Ollama handler"`)
	assert.Contains(t, out, "received token")
	assert.Contains(t, out, "bytes=3")
}

func TestLevelFiltersRecords(t *testing.T) {
	reset()
	var buf bytes.Buffer
	require.NoError(t, InitLogger(Options{Always: true, Console: &buf, Level: "warn"}))

	l := NewLogger("server")
	l.Info("hidden")
	l.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFileSinkUsesJSON(t *testing.T) {
	reset()
	dir := t.TempDir()
	require.NoError(t, InitLogger(Options{Path: dir, Format: "json"}))

	NewLogger("server").Info("started", "addr", ":8000")
	require.NoError(t, Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "chatrelay_log_"))

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.Contains(t, string(data), `"component":"server"`)
}

func TestInitLoggerOnlyOnce(t *testing.T) {
	reset()
	var first, second bytes.Buffer
	require.NoError(t, InitLogger(Options{Always: true, Console: &first}))
	require.NoError(t, InitLogger(Options{Always: true, Console: &second}))

	NewLogger("x").Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}
