package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{"trace", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextHandler_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTextHandler("warn", &buf))

	logger.Info("hidden")
	logger.Warn("shown", "tenant_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "tenant_id=3")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewJSONHandler("debug", &buf)
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	slog.New(h).Debug("compiled", "assembly", "WageType_1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "compiled", record["msg"])
	assert.Equal(t, "WageType_1", record["assembly"])
	assert.NotContains(t, record, "source")
}

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "payscript.log")

	h, closer, err := Setup(FormatJSON, "info", path)
	require.NoError(t, err)
	slog.New(h).Info("started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)

	_, _, err = Setup("xml", "info", "")
	require.Error(t, err)
	_, _, err = Setup(FormatText, "loud", "")
	require.Error(t, err)
	_, _, err = Setup(FormatText, "info", "syslog")
	require.Error(t, err)
}
