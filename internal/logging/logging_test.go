package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/inertial_stream/internal/config"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imu_stream.log")
	log, err := New(Options{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Info("model: listening started")
	_ = log.Sync() // stderr sync fails on some terminals; the file write is synchronous

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model: listening started")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "info", opts.Level)
	assert.Equal(t, 10, opts.MaxSizeMB)
	assert.Equal(t, 4, opts.MaxBackups)
	assert.True(t, opts.Compress)
}
