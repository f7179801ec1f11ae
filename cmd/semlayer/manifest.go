package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/semlayer/internal/dialectadapter"
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/planner"
)

// loadManifest opens and memoizes the manifest named by --manifest (falling
// back to the config/env default), the way every subcommand that touches a
// statement needs one loaded before it can call into pkg/planner.
func loadManifest(cmd *cobra.Command) (*manifest.AnalyzedManifest, error) {
	cfg := getConfig(cmd.Context())
	path := cfg.ManifestPath
	if v, _ := cmd.Flags().GetString("manifest"); v != "" {
		path = v
	}
	if path == "" {
		return nil, fmt.Errorf("no manifest path given (use --manifest or set manifest_path in config)")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	return getPlanner(cmd.Context()).Analyzed(f)
}

// sessionFromFlags builds the SessionContext a plan/dry_run/dry_plan call
// runs under from --catalog/--schema/--no-dynamic-fields, falling back to
// config defaults.
func sessionFromFlags(cmd *cobra.Command) planner.SessionContext {
	cfg := getConfig(cmd.Context())
	sess := planner.SessionContext{
		Catalog:             cfg.Catalog,
		Schema:              cfg.Schema,
		EnableDynamicFields: !cfg.NoDynamicFields,
	}
	if v, _ := cmd.Flags().GetString("catalog"); v != "" {
		sess.Catalog = v
	}
	if v, _ := cmd.Flags().GetString("schema"); v != "" {
		sess.Schema = v
	}
	if noDynamic, _ := cmd.Flags().GetBool("no-dynamic-fields"); noDynamic {
		sess.EnableDynamicFields = false
	}
	return sess
}

// dialectFromFlags resolves --dialect (falling back to config) to a
// dialectadapter.Dialect. An empty name defaults to DuckDB, matching
// internal/semantic/rewrite.Plan's own nil-dialect default; any other name
// than duckdb or postgres is an error.
func dialectFromFlags(cmd *cobra.Command) (*dialectadapter.Dialect, error) {
	cfg := getConfig(cmd.Context())
	name := cfg.Dialect
	if v, _ := cmd.Flags().GetString("dialect"); v != "" {
		name = v
	}
	switch name {
	case "", "duckdb":
		return dialectadapter.DuckDB, nil
	case "postgres":
		return dialectadapter.Postgres, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (want duckdb or postgres)", name)
	}
}
