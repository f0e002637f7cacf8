package config

// ApplyDefaults fills in zero-valued fields with the server's documented
// defaults, the same way the teacher's ApplyDefaults did for proxy config.
func ApplyDefaults(cfg *Config) {
	if cfg.Watchdog.MissIntervalMsec == 0 {
		cfg.Watchdog.MissIntervalMsec = 1000
	}
	if cfg.Watchdog.MissTimeoutMsec == 0 {
		cfg.Watchdog.MissTimeoutMsec = 15000
	}
	if cfg.Watchdog.MegaMissTimeoutMsec == 0 {
		cfg.Watchdog.MegaMissTimeoutMsec = 60000
	}
	// KillTimeoutMsec and MultikillTimeoutMsec default to 0 (disabled),
	// matching Envoy's watchdog: kill is opt-in.

	if cfg.Drain.TimeoutSeconds == 0 {
		cfg.Drain.TimeoutSeconds = 600
	}
	if cfg.Drain.ParentShutdownTimeoutSeconds == 0 {
		cfg.Drain.ParentShutdownTimeoutSeconds = 900
	}

	if cfg.Stats.FlushIntervalMsec == 0 {
		cfg.Stats.FlushIntervalMsec = 5000
	}

	for _, l := range cfg.Listeners {
		if !l.UDS {
			l.BindToPort = true
		}
	}
}

// DefaultOptions mirrors the CLI defaults spec.md §6 names.
func DefaultOptions() Options {
	return Options{
		Concurrency:           1,
		FileFlushIntervalMsec: 1000,
		AdminAddressPath:      "",
		FlagsPath:             "",
	}
}
