package config

import "sync"

var (
	globalConfig  *Config
	configMutex   sync.RWMutex
	initOnce      sync.Once
)

// Initialize loads configuration from path and stores it as the process-wide
// singleton. Subsequent calls are no-ops, mirroring the teacher's
// config.Initialize. cmd/heliosd's run command calls this once at startup
// and retrieves the result with GetConfig.
func Initialize(path string) error {
	var initErr error
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		configMutex.Lock()
		globalConfig = cfg
		configMutex.Unlock()
	})
	return initErr
}

// GetConfig returns the global configuration, or nil if Initialize has not
// run successfully. Prefer passing *Config explicitly in new code; this
// exists for subsystems (CLI subcommands) that run after Initialize but
// don't carry the config value through their own call chain.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// resetForTest clears singleton state. Test-only.
func resetForTest() {
	configMutex.Lock()
	globalConfig = nil
	initOnce = sync.Once{}
	configMutex.Unlock()
}
