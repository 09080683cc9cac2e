package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithConfigFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	require.NoError(t, InitWithConfig("debug", "json", "file", path))
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())

	Info("worker %d started", 3)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "worker 3 started")
}

func TestInitWithConfigRejectsBadValues(t *testing.T) {
	assert.Error(t, InitWithConfig("loud", "json", "stdout", ""))
	assert.Error(t, InitWithConfig("info", "xml", "stdout", ""))
	assert.Error(t, InitWithConfig("info", "json", "file", ""))
	assert.Error(t, InitWithConfig("info", "json", "syslog", ""))
}
