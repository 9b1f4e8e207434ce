package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/studhelper/studhelper/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging(LoggingConfig{Level: "debug"}))
	require.NoError(t, ConfigureLogging(LoggingConfig{}))
}

func TestConfigureLoggingWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studhelper.log")
	require.NoError(t, ConfigureLogging(LoggingConfig{Level: "info", File: path, MaxSizeMB: 1}))
	t.Cleanup(func() { _ = ConfigureLogging(LoggingConfig{}) })

	logger.WithModule("test").Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}
