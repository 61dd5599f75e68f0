// Package install resolves the runtime directories istgtd writes to:
// the config directory, the log directory, and the pidfile location.
// Overridable via environment variables so packaging and tests don't have
// to fight the compiled-in defaults.
package install

import (
	"os"
	"path/filepath"
)

// Compiled-in defaults. A packager building for a different FHS layout
// overrides these via -ldflags.
var (
	DefaultConfigDir = "/etc/istgt"
	DefaultRunDir    = "/var/run"
	DefaultLogDir    = "/var/log/istgt"

	// Build-time path overrides (set via -ldflags).
	BuildDefaultConfigDir = ""
	BuildDefaultRunDir    = ""
	BuildDefaultLogDir    = ""
)

func init() {
	if BuildDefaultConfigDir != "" {
		DefaultConfigDir = BuildDefaultConfigDir
	}
	if BuildDefaultRunDir != "" {
		DefaultRunDir = BuildDefaultRunDir
	}
	if BuildDefaultLogDir != "" {
		DefaultLogDir = BuildDefaultLogDir
	}
}

const envPrefix = "ISTGTD"

// GetConfigDir returns the config directory, checking env vars first.
// Priority: ISTGTD_CONFIG_DIR > ISTGTD_PREFIX/config > DefaultConfigDir.
func GetConfigDir() string {
	if dir := os.Getenv(envPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(envPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "config")
	}
	return DefaultConfigDir
}

// GetRunDir returns the runtime directory for the pidfile.
// Priority: ISTGTD_RUN_DIR > ISTGTD_PREFIX/run > DefaultRunDir.
func GetRunDir() string {
	if dir := os.Getenv(envPrefix + "_RUN_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(envPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "run")
	}
	return DefaultRunDir
}

// GetLogDir returns the log directory.
// Priority: ISTGTD_LOG_DIR > ISTGTD_PREFIX/log > DefaultLogDir.
func GetLogDir() string {
	if dir := os.Getenv(envPrefix + "_LOG_DIR"); dir != "" {
		return dir
	}
	if prefix := os.Getenv(envPrefix + "_PREFIX"); prefix != "" {
		return filepath.Join(prefix, "log")
	}
	return DefaultLogDir
}

// GetPidFile returns the full path to the daemon's pidfile (spec §6).
func GetPidFile() string {
	if path := os.Getenv(envPrefix + "_PIDFILE"); path != "" {
		return path
	}
	return filepath.Join(GetRunDir(), "istgtd.pid")
}
