package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// getConfigDir resolves the directory portway's config file lives in by
// default, honoring XDG_CONFIG_HOME before falling back to ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "portway")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "portway")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path, exposed for the
// init command's usage output.
func GetConfigDir() string {
	return getConfigDir()
}

// InitConfig scaffolds a starter config file at the default location.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath scaffolds a starter config file at path, refusing to
// overwrite an existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: file already exists at %s (use --force to overwrite)", path)
		}
	}
	return Save(Default(), path)
}

// MustLoad loads the config at configPath, or the default location if
// configPath is empty, returning a descriptive error when neither exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  portway init\n\n"+
				"Or specify a custom config file:\n"+
				"  portway <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  portway init --config %s", configPath, configPath)
	}
	return Load(configPath)
}
