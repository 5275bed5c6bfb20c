package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New(Config{Level: "debug"}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, New(Config{Level: "nonsense"}).GetLevel())
}

func TestNew_WritesRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "facegaze.log")

	log := New(Config{Level: "info", File: file, NoColor: true})
	log.WithField("frame", 3).Info("frame processed")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "frame processed")
	assert.Contains(t, string(data), "frame:3")
}
