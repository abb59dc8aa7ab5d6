package main

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the optional voxel.toml next to the binary. Every field
// has a workable default so the file can be absent entirely.
type Config struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`

	// ShaderDir holds the compiled .spv files.
	ShaderDir string `toml:"shader_dir"`

	// SwapchainDepth asks for that many swapchain images; the surface
	// may clamp it.
	SwapchainDepth uint32 `toml:"swapchain_depth"`

	// Validation enables the Khronos validation layer when present.
	Validation bool `toml:"validation"`
}

func defaultConfig() Config {
	return Config{
		Title:          "voxel",
		Width:          1024,
		Height:         1024,
		ShaderDir:      "shaders",
		SwapchainDepth: 2,
	}
}

// loadConfig reads path over the defaults. A missing file is not an
// error; a malformed one is.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, fmt.Errorf("config %s: window size %dx%d", path, cfg.Width, cfg.Height)
	}
	if cfg.SwapchainDepth == 0 {
		cfg.SwapchainDepth = 2
	}
	return cfg, nil
}
