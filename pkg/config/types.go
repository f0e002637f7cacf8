// Package config loads and validates the on-disk description of listeners,
// the admin interface, and the tunables the supervisory core needs before it
// can bind a single socket: watchdog margins, drain timing, and the stats
// flush interval. Schema validation beyond basic shape checks, and anything
// downstream of "what does this listener's filter chain do", is outside this
// package's job — that lives in the HTTP/cluster manager this core hosts but
// does not implement.
package config

import "time"

// Options is the command-line-derived surface the server orchestrator reads
// before it touches the config file. It mirrors spec.md §6.
type Options struct {
	ConfigPath            string
	AdminAddressPath      string
	RestartEpoch          int
	Concurrency           int
	FileFlushIntervalMsec int
	FlagsPath             string
}

// Config is the parsed contents of the YAML config file.
type Config struct {
	Admin     AdminConfig     `yaml:"admin"`
	Listeners []*Listener     `yaml:"listeners"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	Drain     DrainConfig     `yaml:"drain"`
	Stats     StatsConfig     `yaml:"stats"`
}

// AdminConfig describes the admin HTTP listener. The handlers behind it are
// an external collaborator; this core only binds the address and hands the
// listener off.
type AdminConfig struct {
	Address      string `yaml:"address"`
	UDSPath      string `yaml:"uds_path"`
	AccessLogPath string `yaml:"access_log_path"`
}

// Listener is the immutable per-address description spec.md calls
// ListenerConfig. It is compared by pointer identity everywhere, never by
// address, because two listeners may legitimately share a bind address
// across protocols in the future (not modeled here, but the identity rule
// is load-bearing for the socket map in pkg/netconn).
type Listener struct {
	Name           string `yaml:"name"`
	Address        string `yaml:"address"`
	BindToPort     bool   `yaml:"bind_to_port"`
	UseOriginalDst bool   `yaml:"use_original_dst"`
	UDS            bool   `yaml:"uds"`
}

// WatchdogConfig carries the tunables named in spec.md §4.3.
type WatchdogConfig struct {
	MissIntervalMsec      int64 `yaml:"miss_interval_ms"`
	MissTimeoutMsec       int64 `yaml:"miss_timeout_ms"`
	MegaMissTimeoutMsec   int64 `yaml:"megamiss_timeout_ms"`
	KillTimeoutMsec       int64 `yaml:"kill_timeout_ms"`
	MultikillTimeoutMsec  int64 `yaml:"multikill_timeout_ms"`
}

func (w WatchdogConfig) MissInterval() time.Duration {
	return time.Duration(w.MissIntervalMsec) * time.Millisecond
}

func (w WatchdogConfig) MissMargin() time.Duration {
	return time.Duration(w.MissTimeoutMsec) * time.Millisecond
}

func (w WatchdogConfig) MegaMissMargin() time.Duration {
	return time.Duration(w.MegaMissTimeoutMsec) * time.Millisecond
}

func (w WatchdogConfig) KillTimeout() time.Duration {
	return time.Duration(w.KillTimeoutMsec) * time.Millisecond
}

func (w WatchdogConfig) MultikillTimeout() time.Duration {
	return time.Duration(w.MultikillTimeoutMsec) * time.Millisecond
}

// DrainConfig carries DrainManager's horizon and the parent-shutdown delay
// used only by a successor process after a hot restart.
type DrainConfig struct {
	TimeoutSeconds              int64 `yaml:"timeout_seconds"`
	ParentShutdownTimeoutSeconds int64 `yaml:"parent_shutdown_timeout_seconds"`
}

func (d DrainConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

func (d DrainConfig) ParentShutdownTimeout() time.Duration {
	return time.Duration(d.ParentShutdownTimeoutSeconds) * time.Second
}

// StatsConfig describes the external stat sinks. The sinks themselves are
// out of scope (spec.md §1); this is just enough to construct them.
type StatsConfig struct {
	FlushIntervalMsec int64  `yaml:"flush_interval_ms"`
	StatsdUDPAddress  string `yaml:"statsd_udp_address"`
}

func (s StatsConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalMsec) * time.Millisecond
}
