package config

import (
	"fmt"
	"net"
)

// Validate checks a parsed Config for the invariants this core relies on.
// Anything about what a listener's filter chain does is out of scope; this
// only validates the shape the server orchestrator itself depends on.
func Validate(cfg *Config) error {
	if cfg.Admin.Address == "" && cfg.Admin.UDSPath == "" {
		return fmt.Errorf("admin: one of address or uds_path is required")
	}
	if cfg.Admin.Address != "" {
		if _, _, err := net.SplitHostPort(cfg.Admin.Address); err != nil {
			return fmt.Errorf("admin.address %q: %w", cfg.Admin.Address, err)
		}
	}

	seenNames := make(map[string]bool, len(cfg.Listeners))
	for i, l := range cfg.Listeners {
		if l.Name == "" {
			return fmt.Errorf("listeners[%d]: name is required", i)
		}
		if seenNames[l.Name] {
			return fmt.Errorf("listeners[%d]: duplicate listener name %q", i, l.Name)
		}
		seenNames[l.Name] = true

		if l.Address == "" {
			return fmt.Errorf("listener %q: address is required", l.Name)
		}
		if !l.UDS {
			if _, _, err := net.SplitHostPort(l.Address); err != nil {
				return fmt.Errorf("listener %q address %q: %w", l.Name, l.Address, err)
			}
		}
	}

	if cfg.Watchdog.MissTimeoutMsec > 0 && cfg.Watchdog.MissIntervalMsec > 0 &&
		cfg.Watchdog.MissIntervalMsec >= cfg.Watchdog.MissTimeoutMsec {
		return fmt.Errorf("watchdog: miss_interval_ms (%d) must be less than miss_timeout_ms (%d)",
			cfg.Watchdog.MissIntervalMsec, cfg.Watchdog.MissTimeoutMsec)
	}
	if cfg.Watchdog.KillTimeoutMsec > 0 && cfg.Watchdog.KillTimeoutMsec < cfg.Watchdog.MissTimeoutMsec {
		return fmt.Errorf("watchdog: kill_timeout_ms (%d) must be >= miss_timeout_ms (%d)",
			cfg.Watchdog.KillTimeoutMsec, cfg.Watchdog.MissTimeoutMsec)
	}

	if cfg.Drain.TimeoutSeconds < 0 {
		return fmt.Errorf("drain: timeout_seconds must be non-negative")
	}

	return nil
}

// ValidateOptions checks the CLI-derived Options surface.
func ValidateOptions(o Options) error {
	if o.ConfigPath == "" {
		return fmt.Errorf("config path is required")
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", o.Concurrency)
	}
	if o.RestartEpoch < 0 {
		return fmt.Errorf("restart epoch must be >= 0, got %d", o.RestartEpoch)
	}
	return nil
}
