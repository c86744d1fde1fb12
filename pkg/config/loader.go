package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

// ProjectConfigFile is the name of the project-level config file
const ProjectConfigFile = "semgeo.yaml"

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. The explicit file, or semgeo.yaml in baseDir when no file is given
// 3. baseDir itself, when not empty
//
// A missing semgeo.yaml is not an error; a missing explicit file is.
func (l *Loader) Load(explicitPath, baseDir string) (*Config, error) {
	config := DefaultConfig()

	path := explicitPath
	if path == "" {
		dir := baseDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, ProjectConfigFile)
	}

	fileConfig, err := LoadFromFile(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded config", slog.String("path", path))
		config.Merge(fileConfig)
		if fileConfig.BaseDir == "" || fileConfig.BaseDir == "." {
			// Paths in a config file are relative to the file.
			config.BaseDir = filepath.Dir(path)
		} else if !filepath.IsAbs(fileConfig.BaseDir) {
			config.BaseDir = filepath.Join(filepath.Dir(path), fileConfig.BaseDir)
		}
	case explicitPath == "" && errors.Is(err, os.ErrNotExist):
		l.logger.Debug("No project config found", slog.String("path", path))
	default:
		return nil, err
	}

	if baseDir != "" {
		config.BaseDir = baseDir
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
