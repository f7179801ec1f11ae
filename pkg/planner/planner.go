// Package planner is the public library surface spec.md §6 describes: plan,
// dry_run, dry_plan and validate, each taking a manifest document and a
// SessionContext. It wires internal/session's memoization cache in front of
// internal/semantic/rewrite and internal/validate — a thin, logged façade
// over packages that do the actual work.
package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/leapstack-labs/semlayer/internal/dialectadapter"
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/analyzer"
	"github.com/leapstack-labs/semlayer/internal/semantic/rewrite"
	"github.com/leapstack-labs/semlayer/internal/session"
	"github.com/leapstack-labs/semlayer/internal/validate"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
)

// SessionContext is spec.md §6's per-request session: catalog, schema and
// the dynamic-fields toggle a Plan/DryRun/DryPlan call runs under.
type SessionContext struct {
	Catalog             string
	Schema              string
	EnableDynamicFields bool
}

func (s SessionContext) internal() session.Context {
	return session.Context{Catalog: s.Catalog, Schema: s.Schema, EnableDynamicFields: s.EnableDynamicFields}
}

// Column is one entry of dry_run's output shape: a projected column's name
// and, where it could be resolved to a single manifest column, its declared
// type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Config configures a Planner.
type Config struct {
	// Logger receives structured diagnostics. Internal errors (spec.md §7)
	// are logged here, never surfaced beyond a stable code and message.
	Logger *slog.Logger

	// ManifestCacheSize and IndexCacheSize bound the two memoization levels
	// (spec.md §5). Zero uses session's defaults.
	ManifestCacheSize int
	IndexCacheSize    int
}

// Planner is the stateless-at-the-request-boundary entry point: it owns only
// the process-local memoization cache (spec.md §5), never manifest or
// statement state across calls.
type Planner struct {
	cache  *session.Cache
	logger *slog.Logger
}

// New constructs a Planner.
func New(cfg Config) (*Planner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var opts []session.Option
	if cfg.ManifestCacheSize > 0 {
		opts = append(opts, session.WithManifestCapacity(cfg.ManifestCacheSize))
	}
	if cfg.IndexCacheSize > 0 {
		opts = append(opts, session.WithIndexCapacity(cfg.IndexCacheSize))
	}

	cache, err := session.NewCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	return &Planner{cache: cache, logger: logger}, nil
}

// Analyzed loads and memoizes manifestJSON, returning the AnalyzedManifest
// callers pass into Plan/DryRun/DryPlan/Validate. Exposed separately so a
// caller driving many statements against one manifest pays the load-and-hash
// cost once.
func (p *Planner) Analyzed(manifestJSON io.Reader) (*manifest.AnalyzedManifest, error) {
	am, _, err := p.cache.AnalyzedManifest(manifestJSON)
	return am, err
}

// Plan implements spec.md §6's plan(sql, session, analyzed) -> string.
func (p *Planner) Plan(ctx context.Context, am *manifest.AnalyzedManifest, sql string, sess SessionContext, dialect *dialectadapter.Dialect) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return "", err
	}
	result, err := rewrite.Plan(am, stmt, rewrite.Options{
		Catalog: sess.Catalog, Schema: sess.Schema, EnableDynamicFields: sess.EnableDynamicFields,
		Dialect: dialect,
	})
	if err != nil {
		p.logInternal("plan", sql, err)
		return "", err
	}
	return result.SQL, nil
}

// DryPlan implements spec.md §6's dry_plan(sql, session, analyzed,
// modeling_only) -> string: identical to Plan, but modeling_only skips the
// dialect adapter and leaves the statement dialect-neutral.
func (p *Planner) DryPlan(ctx context.Context, am *manifest.AnalyzedManifest, sql string, sess SessionContext, modelingOnly bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return "", err
	}
	result, err := rewrite.Plan(am, stmt, rewrite.Options{
		Catalog: sess.Catalog, Schema: sess.Schema, EnableDynamicFields: sess.EnableDynamicFields,
		SkipDialectAdapter: modelingOnly,
	})
	if err != nil {
		p.logInternal("dry_plan", sql, err)
		return "", err
	}
	return result.SQL, nil
}

// DryRun implements spec.md §6's dry_run(sql, session, analyzed) ->
// list<Column>: parses and type-checks sql without producing executable
// SQL, returning its output projection's shape. A projected expression that
// isn't a bare reference to exactly one manifest column (a computed
// expression, an ambiguous name across a join) is still named but reported
// with an empty Type rather than guessed at; SELECT * is expanded to each
// object's declared columns with their declared types.
func (p *Planner) DryRun(ctx context.Context, am *manifest.AnalyzedManifest, sql string, sess SessionContext) ([]Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stmt, err := sqlparse.Parse(sql)
	if err != nil {
		return nil, err
	}

	session := analyzer.Session{Catalog: sess.Catalog, Schema: sess.Schema, EnableDynamicFields: sess.EnableDynamicFields}
	ares, err := analyzer.New(am, session).Analyze(stmt)
	if err != nil {
		return nil, err
	}

	return outputColumns(am, ares, stmt), nil
}

// Validate implements spec.md §6's validate(rule, params, analyzed) ->
// list<ValidationResult>.
func (p *Planner) Validate(am *manifest.AnalyzedManifest, rule string, params map[string]any) []validate.ValidationResult {
	return validate.Validate(rule, params, am)
}

// logInternal logs a PlanError's stage/object, plus a bounded excerpt of the
// input that triggered it (spec.md §7: "messages must not include contents
// of the input SQL beyond a bounded excerpt"). Non-PlanError failures (parse
// errors, manifest errors) are the caller's own input-validation errors, not
// internal ones, so they aren't logged here.
func (p *Planner) logInternal(op, sql string, err error) {
	perr, ok := err.(*rewrite.PlanError)
	if !ok {
		return
	}
	p.logger.Error("plan failed", "op", op, "stage", perr.Stage, "object", perr.Object, "sql_excerpt", boundedExcerpt(sql))
}

// boundedExcerpt truncates sql for logging.
func boundedExcerpt(sql string) string {
	const max = 200
	if len(sql) <= max {
		return sql
	}
	return sql[:max] + "..."
}
