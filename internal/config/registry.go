package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "navajo"
	configFile = "config.yaml"
)

// fileMutex serializes saves from this process.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/navajo or $HOME/.config/navajo
//   - macOS: $HOME/.config/navajo
//   - Windows: %LOCALAPPDATA%\navajo
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Save writes the configuration to path, or the default path when empty.
// The file is written to a temporary name and renamed into place.
func (f *File) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# libnavajo server configuration
#
# Every key can be overridden by an environment variable: prefix NAVAJO_,
# sections separated by a double underscore, e.g. NAVAJO_NETWORK__PORT=8443.
# Prefer NAVAJO_TLS__KEY_PASSWORD over storing the key password here.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// CreateDefaultConfig writes a commented default configuration with an
// example repository and echo endpoint. Existing files are kept unless
// overwrite is set.
func CreateDefaultConfig(path string, overwrite bool) (string, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return "", err
		}
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("config file %s already exists", path)
		}
	}

	cfg := Default()
	cfg.Repositories = []Repository{{Alias: "", Dir: "./www"}}
	cfg.WebSockets = []WebSocket{{Path: "/echo", Handler: "echo", Deflate: true}}
	return path, cfg.Save(path)
}
