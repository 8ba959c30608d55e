// Package config loads runtime settings from an optional YAML file with
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Utre17/tasksmart/internal/util"
)

// AIConfig points at the external categorization/summarization services.
type AIConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the bound applied to each AI round-trip.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Config holds every tunable the binaries read.
type Config struct {
	ServerAddr   string   `yaml:"server_addr"`
	ServerDBPath string   `yaml:"server_db_path"`
	DeviceDBPath string   `yaml:"device_db_path"`
	APIBaseURL   string   `yaml:"api_base_url"`
	AI           AIConfig `yaml:"ai"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ServerAddr:   ":8080",
		ServerDBPath: "data/tasksmart.db",
		DeviceDBPath: defaultDevicePath(),
		APIBaseURL:   "http://localhost:8080",
	}
}

func defaultDevicePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data/device.db"
	}
	return home + "/.tasksmart/device.db"
}

// Load reads the YAML file at path when it exists, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.ServerAddr = util.EnvOrDefault("TASKSMART_ADDR", cfg.ServerAddr)
	cfg.ServerDBPath = util.EnvOrDefault("TASKSMART_DB_PATH", cfg.ServerDBPath)
	cfg.DeviceDBPath = util.EnvOrDefault("TASKSMART_DEVICE_DB_PATH", cfg.DeviceDBPath)
	cfg.APIBaseURL = util.EnvOrDefault("TASKSMART_API_URL", cfg.APIBaseURL)
	cfg.AI.BaseURL = util.EnvOrDefault("TASKSMART_AI_URL", cfg.AI.BaseURL)
	cfg.AI.APIKey = util.EnvOrDefault("TASKSMART_AI_KEY", cfg.AI.APIKey)
	if raw := os.Getenv("TASKSMART_AI_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil {
			cfg.AI.TimeoutSeconds = secs
		}
	}

	return cfg, nil
}
