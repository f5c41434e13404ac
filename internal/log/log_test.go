package log

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habitat/internal/model"
)

func TestRouting(t *testing.T) {
	var cmd, errs, info bytes.Buffer
	l := NewWriterLogger(&cmd, &errs, &info, LevelInfo)
	ctx := context.Background()

	l.Command(ctx, "Command received", Fields{"scope": "node", "operation": "click"})
	l.Error(ctx, "Expansion failed", Fields{"error": errors.New("boom")})
	l.Info(ctx, "Nodes created", Fields{"count": 5})
	l.Debug(ctx, "Frame published", nil)
	require.NoError(t, l.Close())

	assert.Contains(t, cmd.String(), `"operation":"click"`)
	assert.NotContains(t, cmd.String(), "Nodes created")
	assert.Contains(t, errs.String(), `"error":"boom"`)
	assert.Contains(t, info.String(), "Nodes created")
	assert.Contains(t, info.String(), "Expansion failed")
	assert.NotContains(t, info.String(), "Frame published")
}

func TestSetLevel(t *testing.T) {
	var info bytes.Buffer
	l := NewWriterLogger(&bytes.Buffer{}, &bytes.Buffer{}, &info, LevelWarn)
	l.Info(context.Background(), "hidden", nil)
	l.SetLevel(LevelDebug)
	l.Debug(context.Background(), "shown", nil)
	require.NoError(t, l.Close())

	assert.NotContains(t, info.String(), "hidden")
	assert.Contains(t, info.String(), "shown")
}

func TestLogAfterClose(t *testing.T) {
	l := NewDiscard()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	l.Error(context.Background(), "dropped", nil)
}

func TestNewLoggerFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	cfg := model.LogConfig{Folder: dir, CommandLog: "commands.log", ErrorLog: "errors.log", InfoLog: "info.log"}
	l, err := NewLogger(cfg, LevelInfo)
	require.NoError(t, err)
	l.Command(context.Background(), "help", nil)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "commands.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"help"`))
	for _, f := range []string{"errors.log", "info.log"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"": LevelInfo, "debug": LevelDebug, " Warn ": LevelWarn, "ERROR": LevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "DEBUG", LevelDebug.String())
}
