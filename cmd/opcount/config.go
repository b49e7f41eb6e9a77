package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the opcount configuration file (~/.config/opcount/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	// Profiling defaults
	Format      string `yaml:"format"`
	Jobs        *int   `yaml:"jobs"`
	Quiet       *bool  `yaml:"quiet"`
	Materialize *bool  `yaml:"materialize"`
	Seed        *int64 `yaml:"seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	StoreSize     *int   `yaml:"store_size"`
}

func configPath() string {
	if p := os.Getenv("OPCOUNT_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "opcount", "config.yaml")
}

func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyProfileConfig applies config file defaults to profile command
// variables when the corresponding CLI flag was not explicitly set.
func applyProfileConfig(c *cli.Command, cfg Config, format *string, jobs *int, quiet, materialize *bool, seed *int64) {
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
	if cfg.Jobs != nil && !c.IsSet("jobs") {
		*jobs = *cfg.Jobs
	}
	if cfg.Quiet != nil && !c.IsSet("quiet") {
		*quiet = *cfg.Quiet
	}
	if cfg.Materialize != nil && !c.IsSet("materialize") {
		*materialize = *cfg.Materialize
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		*seed = *cfg.Seed
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, jobs, storeSize *int) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Jobs != nil && !c.IsSet("jobs") {
		*jobs = *cfg.Jobs
	}
	if cfg.StoreSize != nil && !c.IsSet("store-size") {
		*storeSize = *cfg.StoreSize
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
