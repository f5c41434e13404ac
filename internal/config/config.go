// Package config provides functionality for loading, saving, and managing
// application configuration settings.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"habitat/internal/model"
)

// Global variables to store the current configuration and its file path.
var (
	mu            sync.RWMutex
	currentConfig *model.Config
	configPath    = "./data/config.json"
)

// Default returns the built-in configuration.
func Default() *model.Config {
	return &model.Config{
		Database: model.DatabaseConfig{
			Type: "sqlite",
			Dir:  "./data",
			File: "habitat.db",
		},
		Log: model.LogConfig{
			Folder:     "./log",
			CommandLog: "commands.log",
			ErrorLog:   "errors.log",
			InfoLog:    "info.log",
			Level:      "info",
		},
		Seed: model.SeedConfig{
			Topic: "Start",
			Count: 5,
			X:     1000,
			Y:     1000,
			Hole:  "start",
		},
		Layout: model.LayoutConfig{
			Radius:      300,
			MinDistance: 150,
			AngleStep:   0.5,
			RadiusStep:  50,
			MaxAttempts: 10,
			Relocate:    true,
		},
		Physics: model.PhysicsConfig{
			Enabled:           true,
			FrameMillis:       16,
			Force:             50000,
			MinDistance:       100,
			ParentForce:       500000,
			ParentMinDistance: 200,
			Damping:           0.9,
		},
		Viewport: model.ViewportConfig{
			Width:    1280,
			Height:   800,
			MinScale: 0.1,
			MaxScale: 5,
		},
		Controls: model.ControlsConfig{
			WheelStep:     0.1,
			KeyZoomStep:   0.1,
			PanSpeed:      10,
			DragThreshold: 3,
		},
		Provider: model.ProviderConfig{
			Type:       "catalog",
			TimeoutSec: 30,
			ChildCount: 5,
		},
		Stream: model.StreamConfig{
			Addr: "127.0.0.1:8420",
			Path: "/ws",
		},
	}
}

// SetConfigPath changes the file used by ConfigLoad, ConfigSave and Watch.
func SetConfigPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	configPath = path
}

// ConfigPath returns the configuration file path.
func ConfigPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return configPath
}

// ConfigLoad loads the configuration from the JSON file.
// If the file doesn't exist, it creates a default configuration.
func ConfigLoad() error {
	path := ConfigPath()

	// Ensure the data directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Check if the config file exists, if not create a default one
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := ConfigSave(cfg); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		setCurrent(cfg)
		return nil
	}

	cfg, err := read(path)
	if err != nil {
		return err
	}
	setCurrent(cfg)
	return nil
}

// read parses the file over the defaults so that missing keys keep their
// built-in values.
func read(path string) (*model.Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return cfg, nil
}

// ConfigSave saves the provided configuration to the JSON file.
func ConfigSave(cfg *model.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// ConfigGet returns the current configuration, or the defaults if nothing
// has been loaded.
func ConfigGet() *model.Config {
	mu.RLock()
	defer mu.RUnlock()
	if currentConfig == nil {
		return Default()
	}
	return currentConfig
}

func setCurrent(cfg *model.Config) {
	mu.Lock()
	currentConfig = cfg
	mu.Unlock()
}

// Watch reloads the configuration whenever the file is written and passes
// the new value to onChange. Parse failures go to onError and keep the
// previous configuration. Watch blocks until ctx is done.
func Watch(ctx context.Context, onChange func(*model.Config), onError func(error)) error {
	path, err := filepath.Abs(ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			cfg, err := read(path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			setCurrent(cfg)
			if onChange != nil {
				onChange(cfg)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(fmt.Errorf("config watcher: %w", err))
			}
		}
	}
}
