package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "gateway.log")

	log, err := NewLogger(Config{Level: "warn", Format: "json", OutputPath: path})
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept", zap.String("sender_id", "s1"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "s1", entry["sender_id"])
	require.Contains(t, entry, "timestamp")
}

func TestNewLogger_Defaults(t *testing.T) {
	log, err := NewLogger(Config{Level: "bogus", Format: "xml"})
	require.NoError(t, err)
	require.True(t, log.Core().Enabled(zap.InfoLevel))
	require.False(t, log.Core().Enabled(zap.DebugLevel))
}
