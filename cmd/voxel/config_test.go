package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "voxel.toml"))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxel.toml")
	body := `
title = "demo"
width = 640
height = 480
swapchain_depth = 3
validation = true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Title)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
	assert.Equal(t, uint32(3), cfg.SwapchainDepth)
	assert.True(t, cfg.Validation)
	// Unset fields keep their defaults.
	assert.Equal(t, "shaders", cfg.ShaderDir)
}

func TestLoadConfigRejectsBadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxel.toml")
	require.NoError(t, os.WriteFile(path, []byte("width = -1\n"), 0o644))

	_, err := loadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxel.toml")
	require.NoError(t, os.WriteFile(path, []byte("width = \"wide\"\n"), 0o644))

	_, err := loadConfig(path)
	assert.Error(t, err)
}
