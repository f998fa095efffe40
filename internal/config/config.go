package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/logger"
	"github.com/dooshek/readaloud/internal/types"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configFilename = "readaloud.yaml"
)

// LoadConfig reads ~/.config/readaloud/readaloud.yaml. A missing file yields
// an empty config; the Get*Config accessors fill in defaults.
func LoadConfig() (*types.Config, error) {
	fileOps, err := fileops.NewDefaultFileOps()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file operations: %w", err)
	}
	return LoadFrom(fileOps)
}

// LoadFrom reads the config and the optional .env file through fileOps
func LoadFrom(fileOps fileops.FileOps) (*types.Config, error) {
	if err := fileOps.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := loadEnv(fileOps.GetEnvPath()); err != nil {
		return nil, err
	}

	data, err := fileOps.LoadConfig(configFilename)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			logger.Debugf("No %s in %s, using defaults", configFilename, fileOps.GetConfigDir())
			return &types.Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadFile reads a config from an explicit path
func LoadFile(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data
func Parse(data []byte) (*types.Config, error) {
	var config types.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// loadEnv loads secrets such as OPENAI_API_KEY. Variables already set in the
// environment win.
func loadEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logger.Debugf("Loaded environment from %s", path)
	return nil
}

// OpenAIKey returns the configured key or OPENAI_API_KEY
func OpenAIKey(cfg types.TTSConfig) string {
	if cfg.OpenAI.APIKey != "" {
		return cfg.OpenAI.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
