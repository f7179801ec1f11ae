// Package appconfig is the semlayer CLI's own configuration: the manifest
// file to load and the session defaults (dialect, catalog, schema) a
// plan/dry-run/dry-plan/validate call runs under when a flag doesn't
// override them. It is deliberately small next to the teacher's
// internal/cli/config — there is no models/seeds/macros project layout or
// database target here, only the few knobs spec.md §6's library surface
// takes as a SessionContext plus this CLI's own memoization sizing.
package appconfig

// Config holds all semlayer CLI configuration.
type Config struct {
	ManifestPath    string `koanf:"manifest_path"`
	Dialect         string `koanf:"dialect"`
	Catalog         string `koanf:"catalog"`
	Schema          string `koanf:"schema"`
	NoDynamicFields bool   `koanf:"no_dynamic_fields"`
	OutputFormat    string `koanf:"output"`
	Verbose         bool   `koanf:"verbose"`

	ManifestCacheSize int `koanf:"manifest_cache_size"`
	IndexCacheSize    int `koanf:"index_cache_size"`
}

// Default configuration values.
const (
	DefaultDialect = "duckdb"
	DefaultOutput  = "auto" // auto-detects: TTY=text, piped=json
	ConfigFileName = "semlayer.yaml"
	EnvPrefix      = "SEMLAYER_"
)
