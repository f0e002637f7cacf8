package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix environment overrides must carry, following the
// SECTION_FIELD convention the teacher's loader used.
const envPrefix = "HELIOS_"

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and then
// applies HELIOS_SECTION_FIELD environment overrides, which always win over
// the file. Only the handful of fields operators actually need to flip at
// deploy time are covered; listener topology stays file-only.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := loadConfigNoValidate(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadConfigNoValidate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envPrefix + "ADMIN_ADDRESS"); v != "" {
		cfg.Admin.Address = v
	}
	if v := os.Getenv(envPrefix + "DRAIN_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Drain.TimeoutSeconds = n
		}
	}
	if v := os.Getenv(envPrefix + "STATS_STATSD_UDP_ADDRESS"); v != "" {
		cfg.Stats.StatsdUDPAddress = v
	}
	if v := os.Getenv(envPrefix + "WATCHDOG_KILL_TIMEOUT_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Watchdog.KillTimeoutMsec = n
		}
	}
}
