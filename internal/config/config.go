// Package config loads CLI configuration from an optional YAML file with
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL        string `yaml:"base_url"`
		Token          string `yaml:"token"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"api"`
	Stub struct {
		Addr   string `yaml:"addr"`
		DBPath string `yaml:"db_path"`
	} `yaml:"stub"`
}

func Default() *Config {
	var cfg Config
	cfg.API.BaseURL = "http://localhost:8090"
	cfg.API.TimeoutSeconds = 30
	cfg.Stub.Addr = ":8090"
	cfg.Stub.DBPath = "./retiscan-stub.db"
	return &cfg
}

// Load reads the YAML file at path over the defaults. An empty path
// yields defaults plus environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if cfg.API.TimeoutSeconds <= 0 {
		cfg.API.TimeoutSeconds = 30
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RETISCAN_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("RETISCAN_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("RETISCAN_API_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("RETISCAN_STUB_ADDR"); v != "" {
		c.Stub.Addr = v
	}
	if v := os.Getenv("RETISCAN_STUB_DB"); v != "" {
		c.Stub.DBPath = v
	}
}
