// Package analyzer resolves an incoming, already-parsed SQL statement
// against an AnalyzedManifest: it decides which table references name
// manifest objects under the session's catalog/schema, and which columns
// of each referenced object the statement actually mentions (spec.md §4.D).
package analyzer

import (
	"strings"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/ast"
)

// Session carries the per-request settings the analyzer resolves names
// against (spec.md §6 SessionContext).
type Session struct {
	Catalog             string
	Schema              string
	EnableDynamicFields bool
}

// ObjectRef names one manifest object the statement referenced, with the
// discriminator kind returned by AnalyzedManifest.Object.
type ObjectRef struct {
	Name string
	Kind string // "model" | "metric" | "cumulativeMetric" | "view"
}

// Result is everything the statement analyzer records about one statement
// (spec.md §4.D).
type Result struct {
	// Objects is every manifest object the statement references, regardless
	// of whether any of its columns were individually collected.
	Objects []ObjectRef

	// CollectedColumns is, per referenced object, the set of columns the
	// statement mentions by name.
	CollectedColumns map[string]map[string]struct{}

	// SourceNodes is the subset of referenced objects whose output is
	// consumed without enumerating individual columns (e.g. count(*), or a
	// bare SELECT * / t.*) — they must still be materialized.
	SourceNodes map[string]struct{}
}

func newResult() *Result {
	return &Result{
		CollectedColumns: make(map[string]map[string]struct{}),
		SourceNodes:      make(map[string]struct{}),
	}
}

func (r *Result) collect(object, column string) {
	if _, ok := r.CollectedColumns[object]; !ok {
		r.CollectedColumns[object] = make(map[string]struct{})
	}
	r.CollectedColumns[object][column] = struct{}{}
}

func (r *Result) touchSourceNode(object string) {
	r.SourceNodes[object] = struct{}{}
}

// Analyzer resolves statements against a fixed AnalyzedManifest and Session.
type Analyzer struct {
	am      *manifest.AnalyzedManifest
	session Session

	result *Result
	seen   map[string]bool // object names already added to result.Objects
}

// New returns an Analyzer bound to am and session.
func New(am *manifest.AnalyzedManifest, session Session) *Analyzer {
	return &Analyzer{am: am, session: session}
}

// Analyze walks stmt and returns everything §4.D specifies.
func (a *Analyzer) Analyze(stmt *ast.SelectStmt) (*Result, error) {
	a.result = newResult()
	a.seen = make(map[string]bool)

	root := newScope(nil)
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			if err := a.analyzeStatement(cte.Select, root); err != nil {
				return nil, err
			}
			root.register(&scopeEntry{kind: entryCTE, name: cte.Name})
		}
	}
	if err := a.analyzeBody(stmt.Body, root); err != nil {
		return nil, err
	}
	return a.result, nil
}

func (a *Analyzer) analyzeStatement(stmt *ast.SelectStmt, parent *scope) error {
	s := newScope(parent)
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			if err := a.analyzeStatement(cte.Select, s); err != nil {
				return err
			}
			s.register(&scopeEntry{kind: entryCTE, name: cte.Name})
		}
	}
	return a.analyzeBody(stmt.Body, s)
}

func (a *Analyzer) analyzeBody(body *ast.SelectBody, parent *scope) error {
	if err := a.analyzeCore(body.Left, parent); err != nil {
		return err
	}
	if body.Right != nil {
		return a.analyzeBody(body.Right, parent)
	}
	return nil
}

func (a *Analyzer) analyzeCore(core *ast.SelectCore, parent *scope) error {
	s := newScope(parent)
	if core.From != nil {
		if err := a.registerTableRef(core.From.Source, s); err != nil {
			return err
		}
		for _, j := range core.From.Joins {
			if err := a.registerTableRef(j.Right, s); err != nil {
				return err
			}
			if err := a.walkExpr(j.Condition, s); err != nil {
				return err
			}
		}
	}

	for _, item := range core.Columns {
		if item.Star {
			for _, e := range s.objectEntries() {
				a.result.touchSourceNode(e.object)
			}
			continue
		}
		if item.TableStar != "" {
			if e, ok := s.lookup(item.TableStar); ok && e.kind == entryObject {
				a.result.touchSourceNode(e.object)
			}
			continue
		}
		if err := a.walkExpr(item.Expr, s); err != nil {
			return err
		}
	}
	if err := a.walkExpr(core.Where, s); err != nil {
		return err
	}
	for _, g := range core.GroupBy {
		if err := a.walkExpr(g, s); err != nil {
			return err
		}
	}
	if err := a.walkExpr(core.Having, s); err != nil {
		return err
	}
	for _, o := range core.OrderBy {
		if err := a.walkExpr(o.Expr, s); err != nil {
			return err
		}
	}
	if err := a.walkExpr(core.Limit, s); err != nil {
		return err
	}
	return a.walkExpr(core.Offset, s)
}

func (a *Analyzer) registerTableRef(ref ast.TableRef, s *scope) error {
	switch t := ref.(type) {
	case *ast.TableName:
		return a.registerTableName(t, s)
	case *ast.DerivedTable:
		if err := a.analyzeStatement(t.Select, s); err != nil {
			return err
		}
		s.register(&scopeEntry{kind: entryDerived, name: t.Alias, alias: t.Alias})
	case *ast.LateralTable:
		if err := a.analyzeStatement(t.Select, s); err != nil {
			return err
		}
		s.register(&scopeEntry{kind: entryDerived, name: t.Alias, alias: t.Alias})
	}
	return nil
}

func (a *Analyzer) registerTableName(t *ast.TableName, s *scope) error {
	// A CTE reference shadows a manifest object of the same unqualified name.
	if t.Catalog == "" && t.Schema == "" {
		if cte, ok := s.lookupCTE(t.Name); ok {
			s.register(&scopeEntry{kind: entryCTE, name: t.Name, alias: firstNonEmpty(t.Alias, cte.name)})
			return nil
		}
	}

	name, ok := a.resolveObjectName(t.Catalog, t.Schema, t.Name)
	if !ok {
		s.register(&scopeEntry{kind: entryRemote, name: t.Name, alias: t.Alias})
		return nil
	}
	_, kind, _ := a.am.Object(name)
	s.register(&scopeEntry{kind: entryObject, name: t.Name, alias: t.Alias, object: name, kindOf: kind})
	a.addObject(name, kind)
	return nil
}

// resolveObjectName strips the session's catalog/schema prefix (or a
// matching explicit qualification) and looks the bare name up against the
// manifest. An object qualified with a different catalog/schema is a
// reference to something outside this manifest and passes through.
func (a *Analyzer) resolveObjectName(catalog, schema, name string) (string, bool) {
	if catalog != "" && catalog != a.session.Catalog {
		return "", false
	}
	if schema != "" && schema != a.session.Schema {
		return "", false
	}
	if _, _, ok := a.am.Object(name); ok {
		return name, true
	}
	return "", false
}

func (a *Analyzer) addObject(name, kind string) {
	if a.seen[name] {
		return
	}
	a.seen[name] = true
	a.result.Objects = append(a.result.Objects, ObjectRef{Name: name, Kind: kind})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// walkExpr records every manifest column reference reachable from expr.
func (a *Analyzer) walkExpr(expr ast.Expr, s *scope) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *ast.ColumnRef:
		return a.resolveColumnRef(e.Table, e.Column, s)
	case *ast.DerefExpr:
		if len(e.Path) == 0 {
			return nil
		}
		return a.resolveColumnRef(e.Path[0], strings.Join(e.Path[1:], "."), s)
	case *ast.StarExpr:
		if e.Table != "" {
			if entry, ok := s.lookup(e.Table); ok && entry.kind == entryObject {
				a.result.touchSourceNode(entry.object)
			}
		} else {
			for _, entry := range s.objectEntries() {
				a.result.touchSourceNode(entry.object)
			}
		}
		return nil
	case *ast.Literal:
		return nil
	case *ast.BinaryExpr:
		if err := a.walkExpr(e.Left, s); err != nil {
			return err
		}
		return a.walkExpr(e.Right, s)
	case *ast.UnaryExpr:
		return a.walkExpr(e.Expr, s)
	case *ast.ParenExpr:
		return a.walkExpr(e.Expr, s)
	case *ast.FuncCall:
		if e.Star {
			for _, entry := range s.objectEntries() {
				a.result.touchSourceNode(entry.object)
			}
			return nil
		}
		for _, arg := range e.Args {
			if err := a.walkExpr(arg, s); err != nil {
				return err
			}
		}
		if err := a.walkExpr(e.Filter, s); err != nil {
			return err
		}
		if e.Window != nil {
			for _, p := range e.Window.PartitionBy {
				if err := a.walkExpr(p, s); err != nil {
					return err
				}
			}
			for _, o := range e.Window.OrderBy {
				if err := a.walkExpr(o.Expr, s); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.CaseExpr:
		if err := a.walkExpr(e.Operand, s); err != nil {
			return err
		}
		for _, w := range e.Whens {
			if err := a.walkExpr(w.Condition, s); err != nil {
				return err
			}
			if err := a.walkExpr(w.Result, s); err != nil {
				return err
			}
		}
		return a.walkExpr(e.Else, s)
	case *ast.CastExpr:
		return a.walkExpr(e.Expr, s)
	case *ast.InExpr:
		if err := a.walkExpr(e.Expr, s); err != nil {
			return err
		}
		for _, v := range e.Values {
			if err := a.walkExpr(v, s); err != nil {
				return err
			}
		}
		if e.Query != nil {
			return a.analyzeStatement(e.Query, s)
		}
		return nil
	case *ast.BetweenExpr:
		if err := a.walkExpr(e.Expr, s); err != nil {
			return err
		}
		if err := a.walkExpr(e.Low, s); err != nil {
			return err
		}
		return a.walkExpr(e.High, s)
	case *ast.IsNullExpr:
		return a.walkExpr(e.Expr, s)
	case *ast.IsBoolExpr:
		return a.walkExpr(e.Expr, s)
	case *ast.LikeExpr:
		if err := a.walkExpr(e.Expr, s); err != nil {
			return err
		}
		return a.walkExpr(e.Pattern, s)
	case *ast.SubqueryExpr:
		return a.analyzeStatement(e.Select, s)
	case *ast.ExistsExpr:
		return a.analyzeStatement(e.Select, s)
	}
	return nil
}

// resolveColumnRef records column against the object table qualifies, or —
// for an unqualified reference — against whichever single manifest object
// in scope declares a matching column name. Unknown identifiers and
// references to non-manifest relations pass through untouched.
func (a *Analyzer) resolveColumnRef(table, column string, s *scope) error {
	if table != "" {
		entry, ok := s.lookup(table)
		if !ok || entry.kind != entryObject {
			return nil // alias/CTE/remote-table column, or unresolvable qualifier
		}
		a.result.collect(entry.object, column)
		return nil
	}

	var matches []*scopeEntry
	for _, entry := range s.objectEntries() {
		if hasColumn(a.am, entry, column) {
			matches = append(matches, entry)
		}
	}
	switch len(matches) {
	case 0:
		return nil // CTE/remote column, or not a manifest column at all
	case 1:
		a.result.collect(matches[0].object, column)
		return nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.object
		}
		return &AmbiguousIdentifierError{Column: column, Candidates: names}
	}
}

// hasColumn reports whether object declares column by name.
func hasColumn(am *manifest.AnalyzedManifest, entry *scopeEntry, column string) bool {
	switch entry.kindOf {
	case "model":
		m, ok := am.Model(entry.object)
		if !ok {
			return false
		}
		for _, c := range m.Columns {
			if c.Name == column {
				return true
			}
		}
	case "metric":
		m, ok := am.Metric(entry.object)
		if !ok {
			return false
		}
		for _, c := range m.Dimensions {
			if c.Name == column {
				return true
			}
		}
		for _, c := range m.Measures {
			if c.Name == column {
				return true
			}
		}
	case "cumulativeMetric":
		cm, ok := am.CumulativeMetric(entry.object)
		if !ok {
			return false
		}
		if cm.Window != nil && cm.Window.TimeColumn == column {
			return true
		}
		if cm.Measure != nil && cm.Measure.Name == column {
			return true
		}
	}
	// Views carry no typed column list at this stage; a column reference
	// against a view is resolved once its body is recursively analyzed by
	// the descriptor builder, not here.
	return false
}
