// Package descriptor builds, for one referenced manifest object, the CTE
// specification realizing its logical semantics (spec.md §4.E): the origin
// SQL, the projected physical columns, and — for calculated columns — either
// a LEFT JOIN (to-one) or an aggregated, joined derived table (to-many)
// implementing the relationship traversal.
package descriptor

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/lineage"
	"github.com/leapstack-labs/semlayer/pkg/ast"
)

// DateSpineName is the fixed CTE name for the shared date spine added once
// per statement when any cumulative metric is referenced (spec.md §4.E).
const DateSpineName = "__date_spine__"

// Descriptor is the specification for one generated CTE.
type Descriptor struct {
	Name string
	// RequiredObjects are further manifest objects this descriptor's body
	// references — the rewrite engine expands these to a fixed point (§4.F).
	RequiredObjects []string
	// SQL is the CTE body: a full SELECT statement, unwrapped (the rewrite
	// engine supplies the "WITH name AS ( ... )" framing).
	SQL string
}

// Builder constructs Descriptors against a fixed manifest and its lineage.
type Builder struct {
	am      *manifest.AnalyzedManifest
	lineage *lineage.Analyzer
	dynamic bool // enable_dynamic_fields (spec.md §4.F two operating modes)
	catalog string
	schema  string
}

// NewBuilder returns a Builder. dynamicFields selects narrow, required-only
// projections (true, the default) versus full-materialization (false).
// catalog/schema are the session values a nested view analysis pass resolves
// table references against (spec.md §4.D, §6 SessionContext).
func NewBuilder(am *manifest.AnalyzedManifest, dynamicFields bool, catalog, schema string) *Builder {
	return &Builder{am: am, lineage: lineage.New(am), dynamic: dynamicFields, catalog: catalog, schema: schema}
}

// RequiredColumns resolves the columns a descriptor for object must project,
// starting from the columns a statement directly collected against it. In
// dynamic-fields mode this is the lineage closure of those columns; in
// full-materialization mode it is every column the object declares.
func (b *Builder) RequiredColumns(object, kind string, collected []string) ([]string, error) {
	if !b.dynamic {
		return b.allColumns(object, kind), nil
	}
	qualified := make([]string, 0, len(collected))
	for _, c := range collected {
		qualified = append(qualified, object+"."+c)
	}
	if len(qualified) == 0 {
		return nil, nil
	}
	fields, err := b.lineage.RequiredFields(qualified)
	if err != nil {
		return nil, err
	}
	cols := fields.Columns(object)
	// A calculated column in `collected` is itself not a "required base
	// column" of anything, but it must still be projected by this
	// descriptor under its own name — RequiredFields only reports base
	// (physical) columns reached by traversal, so add calculated/relationship
	// names back in explicitly.
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	out := append([]string{}, cols...)
	for _, c := range collected {
		if !seen[c] {
			out = append(out, c)
			seen[c] = true
		}
	}
	sort.Strings(out)
	return out, nil
}

// Closure computes the whole-statement lineage closure over qualifiedNames
// (each "object.column", spanning every object a statement collected columns
// against) in one pass: the rewrite engine (§4.F) uses this instead of
// calling RequiredColumns per object, since a single closure already walks
// relationship traversals and returns every transitively-required object —
// including join targets never directly referenced by the statement — in
// dependency order together with their required columns.
func (b *Builder) Closure(qualifiedNames []string) (*lineage.RequiredFields, error) {
	return b.lineage.RequiredFields(qualifiedNames)
}

// AllColumns returns every column object declares, regardless of operating
// mode — used for objects the statement consumes as a source node (SELECT *,
// count(*)) where every physical column must be materialized.
func (b *Builder) AllColumns(object, kind string) []string {
	return b.allColumns(object, kind)
}

func (b *Builder) allColumns(object, kind string) []string {
	switch kind {
	case "model":
		m, ok := b.am.Model(object)
		if !ok {
			return nil
		}
		out := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			out[i] = c.Name
		}
		return out
	case "metric":
		m, ok := b.am.Metric(object)
		if !ok {
			return nil
		}
		var out []string
		for _, c := range m.Dimensions {
			out = append(out, c.Name)
		}
		for _, c := range m.Measures {
			out = append(out, c.Name)
		}
		return out
	case "cumulativeMetric":
		cm, ok := b.am.CumulativeMetric(object)
		if !ok {
			return nil
		}
		var out []string
		if cm.Window != nil {
			out = append(out, cm.Window.TimeColumn)
		}
		if cm.Measure != nil {
			out = append(out, cm.Measure.Name)
		}
		return out
	}
	return nil
}

// Build constructs the Descriptor for object. columns is the already-resolved
// required-field set (see RequiredColumns); sourceOnly reports this object
// was referenced only as a source node (e.g. count(*), SELECT *) with no
// individually collected columns.
func (b *Builder) Build(object, kind string, columns []string, sourceOnly bool) (*Descriptor, error) {
	if len(columns) == 0 && !sourceOnly {
		return b.buildDummy(object), nil
	}
	switch kind {
	case "model":
		return b.buildModel(object, columns)
	case "metric":
		return b.buildMetric(object, columns)
	case "cumulativeMetric":
		return b.buildCumulativeMetric(object, columns)
	case "view":
		return b.buildView(object)
	default:
		return nil, fmt.Errorf("descriptor: unknown object kind %q for %q", kind, object)
	}
}

func (b *Builder) buildDummy(object string) *Descriptor {
	return &Descriptor{
		Name: object,
		SQL:  "SELECT NULL AS dummy_",
	}
}

// BaseRequirements reports, for a metric or cumulative metric, the base
// object its body reads from and the physical column names its wanted
// dimensions/measures (collected, or every one if collected is empty)
// resolve to — the rewrite engine folds these back into the whole-statement
// lineage seed so the base object's own descriptor is built wide enough
// (spec.md §4.F). Models and views have no such indirection and return "".
func (b *Builder) BaseRequirements(object, kind string, collected []string) (string, []string, error) {
	want := make(map[string]bool, len(collected))
	for _, c := range collected {
		want[c] = true
	}
	switch kind {
	case "metric":
		m, ok := b.am.Metric(object)
		if !ok {
			return "", nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "metric"}
		}
		seen := make(map[string]bool)
		var cols []string
		add := func(col *manifest.Column) error {
			if len(collected) > 0 && !want[col.Name] {
				return nil
			}
			expr, err := columnExpr(col)
			if err != nil {
				return err
			}
			for _, name := range columnNamesIn(expr) {
				if !seen[name] {
					seen[name] = true
					cols = append(cols, name)
				}
			}
			return nil
		}
		for _, d := range m.Dimensions {
			if err := add(d); err != nil {
				return "", nil, err
			}
		}
		for _, ms := range m.Measures {
			if err := add(ms); err != nil {
				return "", nil, err
			}
		}
		sort.Strings(cols)
		return m.BaseObject, cols, nil
	case "cumulativeMetric":
		cm, ok := b.am.CumulativeMetric(object)
		if !ok {
			return "", nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "cumulativeMetric"}
		}
		var cols []string
		if cm.Window != nil {
			cols = append(cols, cm.Window.TimeColumn)
		}
		if cm.Measure != nil {
			cols = append(cols, cm.Measure.Column)
		}
		sort.Strings(cols)
		return cm.BaseObject, cols, nil
	default:
		return "", nil, nil
	}
}

// columnNamesIn walks expr and collects every bare column name referenced,
// ignoring table qualifiers — metric/cumulative-metric dimension and measure
// expressions are scoped to their own base object, so the qualifier (if any)
// is always that same object.
func columnNamesIn(expr ast.Expr) []string {
	var out []string
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch v := e.(type) {
		case nil:
		case *ast.ColumnRef:
			out = append(out, v.Column)
		case *ast.DerefExpr:
			if len(v.Path) > 0 {
				out = append(out, v.Path[len(v.Path)-1])
			}
		case *ast.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryExpr:
			walk(v.Expr)
		case *ast.ParenExpr:
			walk(v.Expr)
		case *ast.FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
			walk(v.Filter)
		case *ast.CaseExpr:
			walk(v.Operand)
			for _, w := range v.Whens {
				walk(w.Condition)
				walk(w.Result)
			}
			walk(v.Else)
		case *ast.CastExpr:
			walk(v.Expr)
		}
	}
	walk(expr)
	return out
}
