package logger

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds logging configuration
type Config struct {
	Level          string `yaml:"level"`
	ConsoleEnabled bool   `yaml:"console_enabled"`
	ConsoleFormat  string `yaml:"console_format"`
	FileEnabled    bool   `yaml:"file_enabled"`
	FilePath       string `yaml:"file_path"`
	FileFormat     string `yaml:"file_format"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxBackups int    `yaml:"file_max_backups"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// LoggingConfig wraps the Config for YAML parsing
type LoggingConfig struct {
	Logging Config `yaml:"logging"`
}

// DefaultConfig returns console-only text logging at WARNING, which keeps
// one-shot CLI output quiet.
func DefaultConfig() Config {
	return Config{
		Level:          "WARNING",
		ConsoleEnabled: true,
		ConsoleFormat:  "text",
		FileEnabled:    false,
		FilePath:       "logs/nut.log",
		FileFormat:     "text",
		FileMaxSizeMB:  10,
		FileMaxBackups: 5,
		FileMaxAgeDays: 30,
	}
}

// LoadConfig loads logging configuration from a YAML file
// and applies environment variable overrides.
// A missing file yields the defaults; a malformed one is an error.
func LoadConfig(configPath string) (Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			loaded := LoggingConfig{Logging: config}
			if err := yaml.Unmarshal(data, &loaded); err != nil {
				return config, fmt.Errorf("parse logging config %s: %w", configPath, err)
			}
			config = mergeDefaults(loaded.Logging)
		case !os.IsNotExist(err):
			return config, fmt.Errorf("read logging config %s: %w", configPath, err)
		}
	}

	applyEnv(&config)
	return config, nil
}

// mergeDefaults fills fields a YAML file left empty or zero.
func mergeDefaults(c Config) Config {
	d := DefaultConfig()
	if c.Level == "" {
		c.Level = d.Level
	}
	if c.ConsoleFormat == "" {
		c.ConsoleFormat = d.ConsoleFormat
	}
	if c.FilePath == "" {
		c.FilePath = d.FilePath
	}
	if c.FileFormat == "" {
		c.FileFormat = d.FileFormat
	}
	if c.FileMaxSizeMB <= 0 {
		c.FileMaxSizeMB = d.FileMaxSizeMB
	}
	if c.FileMaxBackups <= 0 {
		c.FileMaxBackups = d.FileMaxBackups
	}
	if c.FileMaxAgeDays <= 0 {
		c.FileMaxAgeDays = d.FileMaxAgeDays
	}
	return c
}

func applyEnv(config *Config) {
	if logLevel := os.Getenv("NUT_LOG_LEVEL"); logLevel != "" {
		config.Level = logLevel
	}

	if consoleFormat := os.Getenv("NUT_LOG_CONSOLE_FORMAT"); consoleFormat != "" {
		config.ConsoleFormat = consoleFormat
	}

	if fileEnabled := os.Getenv("NUT_LOG_FILE_ENABLED"); fileEnabled != "" {
		if enabled, err := strconv.ParseBool(fileEnabled); err == nil {
			config.FileEnabled = enabled
		}
	}

	if filePath := os.Getenv("NUT_LOG_FILE_PATH"); filePath != "" {
		config.FilePath = filePath
	}
}
