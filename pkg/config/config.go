// Package config loads calculator server settings from defaults, an optional
// YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server and runner settings.
type Config struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	GRPCPort    int    `yaml:"grpcPort"`
	BatchesDir  string `yaml:"batchesDir"`
	Workers     int    `yaml:"workers"`
	StopOnFatal bool   `yaml:"stopOnFatal"`
	AccessLog   bool   `yaml:"accessLog"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Host:        "0.0.0.0",
		Port:        8787,
		GRPCPort:    8788,
		Workers:     4,
		StopOnFatal: true,
	}
}

// Load builds a config from the defaults, the YAML file at path (skipped when
// path is empty) and then the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the fields present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays HOST, PORT, GRPC_PORT, BATCHES_DIR and WORKERS when set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := getenv("BATCHES_DIR"); v != "" {
		c.BatchesDir = v
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &c.Port},
		{"GRPC_PORT", &c.GRPCPort},
		{"WORKERS", &c.Workers},
	}
	for _, e := range ints {
		v := getenv(e.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", e.key, v, err)
		}
		*e.dst = n
	}
	return nil
}

// Validate rejects out-of-range ports and worker counts.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.GRPCPort <= 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port %d", c.GRPCPort)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr returns the gRPC listen address.
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}
