// Package config loads the YAML configuration this core's orchestrator
// needs before it can bind anything: listener addresses, the admin
// interface, watchdog margins, drain timing, and the stats flush interval.
//
// Loading sequence (LoadConfigWithEnvOverrides):
//
//  1. Parse YAML from file
//  2. Apply HELIOS_SECTION_FIELD environment overrides
//  3. Apply defaults to anything still unset
//  4. Validate
//
// Everything downstream of "what does this listener's filter chain do" is
// out of scope here — that's the HTTP/cluster manager this core hosts.
package config
