// Package config loads the server's environment-variable configuration,
// the same env-driven shape as the teacher's internal/config package
// (BD_*/BEADS_* prefixes there; DATABASE_PATH etc. here), per spec.md §6.
package config

import (
	"os"
	"strconv"
)

// Config is the process-wide configuration read once at startup.
type Config struct {
	// DatabasePath is the SQLite file path. Defaults to "data/tasks.db".
	DatabasePath string
	// VaultPath, when non-empty, enables the export pipeline rooted there.
	// Empty disables export; rebuild_vault then returns a validation error.
	VaultPath string
	// AgentConfigDir is the directory containing workflow.yaml. Defaults to
	// the current working directory.
	AgentConfigDir string
	// UseFlyway is read from USE_FLYWAY but nothing consults it; sqlite.New
	// applies the embedded migrations on every open whatever its value.
	UseFlyway bool
	// TelemetryExporter selects the otel exporter installed at startup.
	// "none" (default) leaves the global no-op providers in place; "stdout"
	// installs the stdouttrace/stdoutmetric pair, writing to stderr.
	TelemetryExporter string
}

// Load reads the environment variables spec.md §6 names.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		DatabasePath:      getenv("DATABASE_PATH", "data/tasks.db"),
		VaultPath:         os.Getenv("MD_VAULT_PATH"),
		AgentConfigDir:    getenv("AGENT_CONFIG_DIR", cwd),
		UseFlyway:         parseBool(os.Getenv("USE_FLYWAY")),
		TelemetryExporter: getenv("TELEMETRY_EXPORTER", "none"),
	}
	return cfg, nil
}

// ExportEnabled reports whether the export pipeline should be started.
func (c *Config) ExportEnabled() bool { return c.VaultPath != "" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
