// Package dialectadapter rewrites the executable SQL a Plan produces
// (spec.md §4.F) for a specific target engine: function/table-source
// rewrites for constructs the engine lacks natively, and reserved-word
// aware identifier quoting. It mirrors the split the teacher uses across
// pkg/core.DialectConfig (pure data) and pkg/dialect.Dialect (behavior)
// scaled down to the single concern this rewrite engine has: it never
// parses dialect-specific syntax, only emits it.
package dialectadapter

import (
	"strings"

	"github.com/leapstack-labs/semlayer/pkg/ast"
)

// FuncTableRewrite replaces a table-valued function call with the FROM-item
// a dialect lacking that function natively needs instead. args are the
// original call's arguments, alias the original FuncTable's alias (already
// applied by the caller — a rewrite only needs to reproduce the same output
// column shape under that alias).
type FuncTableRewrite func(args []ast.Expr, alias string) ast.TableRef

// Dialect is one target engine's rewrite rules.
type Dialect struct {
	Name string

	// reservedWords holds identifiers (lowercased) that must be quoted even
	// though they are not ANSI keywords — e.g. Postgres reserves "user" and
	// "freeze" where DuckDB does not.
	reservedWords map[string]bool

	// funcRewrites renames a scalar/aggregate function call outright, e.g.
	// a dialect spelling a function differently than the canonical name the
	// descriptor builder (internal/semantic/descriptor) always emits.
	funcRewrites map[string]string

	// tableFuncRewrites replaces a table-valued function's call shape
	// entirely — used for the date_spine macro (internal/semantic/descriptor
	// emits it under one canonical shape; engines without a native date
	// spine need it lowered to generate_series or an equivalent).
	tableFuncRewrites map[string]FuncTableRewrite
}

// IsReserved reports whether name (any case) must be quoted in this dialect
// even when it is not an ANSI-reserved word.
func (d *Dialect) IsReserved(name string) bool {
	return d.reservedWords[strings.ToLower(name)]
}

// RewriteFuncName returns the dialect's spelling of a scalar/aggregate
// function name, or name unchanged if this dialect has no override.
func (d *Dialect) RewriteFuncName(name string) string {
	if alt, ok := d.funcRewrites[strings.ToLower(name)]; ok {
		return alt
	}
	return name
}

// TableFuncRewrite returns the structural rewrite for a table-valued
// function name, if this dialect needs one.
func (d *Dialect) TableFuncRewrite(name string) (FuncTableRewrite, bool) {
	rw, ok := d.tableFuncRewrites[strings.ToLower(name)]
	return rw, ok
}

// builder assembles a Dialect from small, composable pieces — the same
// fluent-construction idiom as the teacher's dialect.Builder, cut down to
// the handful of knobs this adapter actually has.
type builder struct{ d *Dialect }

func newBuilder(name string) *builder {
	return &builder{d: &Dialect{
		Name:              name,
		reservedWords:     make(map[string]bool),
		funcRewrites:      make(map[string]string),
		tableFuncRewrites: make(map[string]FuncTableRewrite),
	}}
}

func (b *builder) reserved(words ...string) *builder {
	for _, w := range words {
		b.d.reservedWords[strings.ToLower(w)] = true
	}
	return b
}

func (b *builder) funcRewrite(from, to string) *builder {
	b.d.funcRewrites[strings.ToLower(from)] = to
	return b
}

func (b *builder) tableFuncRewrite(from string, rw FuncTableRewrite) *builder {
	b.d.tableFuncRewrites[strings.ToLower(from)] = rw
	return b
}

func (b *builder) build() *Dialect { return b.d }
