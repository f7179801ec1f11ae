// Package lineage computes, for calculated columns declared in a manifest,
// the minimal set of base columns per object that must flow through a plan
// (spec.md §4.C). Cycles among calculated columns are detected lazily, the
// first time a traversal actually needs to resolve them together — never at
// manifest-analysis time.
package lineage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/semlayer/internal/dag"
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
)

// Analyzer computes lineage queries against a single AnalyzedManifest. It
// caches parsed calculated-field expressions across calls behind exprsMu, so
// it is safe for concurrent use once constructed, matching the read-only
// sharing of AnalyzedManifest described in spec.md §5 and letting
// internal/session cache one Analyzer per (manifest, session) rather than
// building it fresh per request.
type Analyzer struct {
	am      *manifest.AnalyzedManifest
	exprsMu sync.Mutex
	exprs   map[string]ast.Expr
}

// New returns a lineage Analyzer over am.
func New(am *manifest.AnalyzedManifest) *Analyzer {
	return &Analyzer{am: am, exprs: make(map[string]ast.Expr)}
}

type fieldKey struct{ object, column string }

func (k fieldKey) qualified() string { return k.object + "." + k.column }

// RequiredFields is the ordered per-object required-column mapping returned
// by Analyzer.RequiredFields.
type RequiredFields struct {
	// Objects is in dependency order: if object A depends on object B, B
	// appears before A.
	Objects []string
	columns map[string]map[string]struct{}
}

// Columns returns the required columns for object, sorted for determinism.
func (r *RequiredFields) Columns(object string) []string {
	set := r.columns[object]
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RequiredFields computes the union, across qualifiedNames, of the base
// columns each transitively reads per object, ordered so dependencies
// precede dependents (spec.md §4.C).
func (a *Analyzer) RequiredFields(qualifiedNames []string) (*RequiredFields, error) {
	result := &RequiredFields{columns: make(map[string]map[string]struct{})}
	objects := dag.NewGraph()
	state := make(map[fieldKey]int) // 0 unvisited, 1 visiting, 2 done
	var stack []fieldKey

	touch := func(object string) {
		if _, ok := result.columns[object]; !ok {
			result.columns[object] = make(map[string]struct{})
			objects.AddNode(object, nil)
		}
	}

	var require func(key fieldKey) error
	require = func(key fieldKey) error {
		touch(key.object)
		switch state[key] {
		case 2:
			return nil
		case 1:
			return a.cycleError(key, stack)
		}
		state[key] = 1
		stack = append(stack, key)
		defer func() { stack = stack[:len(stack)-1] }()

		col, ok := a.lookupColumn(key.object, key.column)
		if !ok {
			state[key] = 2
			return nil
		}

		switch col.Kind {
		case manifest.ColumnPhysical:
			result.columns[key.object][key.column] = struct{}{}
		case manifest.ColumnRelationship:
			// A bare relationship column has no value of its own; it only
			// contributes required columns when traversed by a dereference.
		case manifest.ColumnCalculated:
			expr, err := a.parsedExpr(key, col.Expression)
			if err != nil {
				return err
			}
			if err := a.walkExpr(expr, key.object, objects, require); err != nil {
				return err
			}
		}
		state[key] = 2
		return nil
	}

	for _, qualified := range qualifiedNames {
		key, err := splitQualified(qualified)
		if err != nil {
			return nil, err
		}
		if err := require(key); err != nil {
			return nil, err
		}
	}

	order, err := objects.TopologicalSort()
	if err != nil {
		// require()'s field-key DFS only catches a cycle that closes within
		// one calculated-column chain. A cycle that only closes once two
		// separate input columns are unioned - each side's relationship
		// dereference pulling in the other's object, e.g. Orders.x
		// dereferencing into Customer while Customer.y dereferences back
		// into Orders - never revisits a field key in flight, so it falls
		// through to here instead, on the object graph.
		if hasCycle, cyclePath := objects.HasCycle(); hasCycle {
			return nil, a.objectCycleError(cyclePath, qualifiedNames)
		}
		return nil, fmt.Errorf("lineage: %w", err)
	}
	for _, n := range order {
		result.Objects = append(result.Objects, n.ID)
	}
	return result, nil
}

// SourceColumns returns the immediate (non-transitive) source columns per
// object read directly by qualifiedName's expression, for lineage
// visualization (spec.md §4.C).
func (a *Analyzer) SourceColumns(qualifiedName string) (map[string][]string, error) {
	key, err := splitQualified(qualifiedName)
	if err != nil {
		return nil, err
	}
	col, ok := a.lookupColumn(key.object, key.column)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: qualifiedName, Ref: key.column, Kind: "column"}
	}
	out := make(map[string]map[string]struct{})
	add := func(object, column string) {
		if _, ok := out[object]; !ok {
			out[object] = make(map[string]struct{})
		}
		out[object][column] = struct{}{}
	}

	switch col.Kind {
	case manifest.ColumnPhysical:
		add(key.object, key.column)
	case manifest.ColumnCalculated:
		expr, err := a.parsedExpr(key, col.Expression)
		if err != nil {
			return nil, err
		}
		a.immediateColumns(expr, key.object, add)
	}

	result := make(map[string][]string, len(out))
	for object, set := range out {
		cols := make([]string, 0, len(set))
		for c := range set {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		result[object] = cols
	}
	return result, nil
}

func splitQualified(qualifiedName string) (fieldKey, error) {
	idx := strings.LastIndex(qualifiedName, ".")
	if idx < 0 {
		return fieldKey{}, fmt.Errorf("lineage: %q is not a qualified object.column name", qualifiedName)
	}
	return fieldKey{object: qualifiedName[:idx], column: qualifiedName[idx+1:]}, nil
}

func (a *Analyzer) cycleError(start fieldKey, stack []fieldKey) error {
	path := make([]string, 0, len(stack)+1)
	for _, k := range stack {
		path = append(path, k.qualified())
	}
	path = append(path, start.qualified())
	return &manifest.CycleError{Column: stack[0].qualified(), Path: path}
}

// objectCycleError reports a cycle found on the object graph rather than on
// a single field-key chain. It names, as the canonical column per
// spec.md §8 property 6, the first requested qualifiedName (in request
// order, for determinism) that is a calculated column on an object in
// cyclePath; failing that, the first requested name on such an object.
func (a *Analyzer) objectCycleError(cyclePath []string, qualifiedNames []string) error {
	inCycle := make(map[string]bool, len(cyclePath))
	for _, obj := range cyclePath {
		inCycle[obj] = true
	}
	fallback := ""
	for _, qualified := range qualifiedNames {
		key, err := splitQualified(qualified)
		if err != nil || !inCycle[key.object] {
			continue
		}
		if col, ok := a.lookupColumn(key.object, key.column); ok && col.Kind == manifest.ColumnCalculated {
			return &manifest.CycleError{Column: qualified, Path: cyclePath}
		}
		if fallback == "" {
			fallback = qualified
		}
	}
	if fallback != "" {
		return &manifest.CycleError{Column: fallback, Path: cyclePath}
	}
	return &manifest.CycleError{Column: strings.Join(qualifiedNames, ","), Path: cyclePath}
}

// lookupColumn resolves a column by name on a model or metric. Cumulative
// metrics and views carry no Column-kind declarations and are not part of
// the calculated-field dependency graph.
func (a *Analyzer) lookupColumn(object, column string) (*manifest.Column, bool) {
	if m, ok := a.am.Model(object); ok {
		for _, c := range m.Columns {
			if c.Name == column {
				return c, true
			}
		}
		return nil, false
	}
	if m, ok := a.am.Metric(object); ok {
		for _, c := range m.Dimensions {
			if c.Name == column {
				return c, true
			}
		}
		for _, c := range m.Measures {
			if c.Name == column {
				return c, true
			}
		}
	}
	return nil, false
}

func (a *Analyzer) parsedExpr(key fieldKey, source string) (ast.Expr, error) {
	k := key.qualified()

	a.exprsMu.Lock()
	expr, ok := a.exprs[k]
	a.exprsMu.Unlock()
	if ok {
		return expr, nil
	}

	expr, err := sqlparse.ParseExpr(source)
	if err != nil {
		return nil, fmt.Errorf("lineage: %s: %w", k, err)
	}

	a.exprsMu.Lock()
	a.exprs[k] = expr
	a.exprsMu.Unlock()
	return expr, nil
}

// walkExpr visits every identifier reachable from expr that resolves
// against the manifest, requiring each one in turn. A bare identifier
// requires a same-object column; a dereference requires a traversal through
// a relationship column, adding an object-graph edge from the traversed
// object to the owner so dependency order falls out of the same DFS.
func (a *Analyzer) walkExpr(expr ast.Expr, object string, objects *dag.Graph, require func(fieldKey) error) error {
	switch e := expr.(type) {
	case nil:
		return nil
	case *ast.ColumnRef:
		if e.Table == "" {
			return require(fieldKey{object, e.Column})
		}
		return a.walkDeref(object, []string{e.Table, e.Column}, objects, require)
	case *ast.DerefExpr:
		return a.walkDeref(object, e.Path, objects, require)
	case *ast.Literal, *ast.StarExpr:
		return nil
	case *ast.BinaryExpr:
		if err := a.walkExpr(e.Left, object, objects, require); err != nil {
			return err
		}
		return a.walkExpr(e.Right, object, objects, require)
	case *ast.UnaryExpr:
		return a.walkExpr(e.Expr, object, objects, require)
	case *ast.ParenExpr:
		return a.walkExpr(e.Expr, object, objects, require)
	case *ast.FuncCall:
		if e.Star {
			return nil // count(*) requires no base columns
		}
		for _, arg := range e.Args {
			if err := a.walkExpr(arg, object, objects, require); err != nil {
				return err
			}
		}
		if err := a.walkExpr(e.Filter, object, objects, require); err != nil {
			return err
		}
		if e.Window != nil {
			for _, p := range e.Window.PartitionBy {
				if err := a.walkExpr(p, object, objects, require); err != nil {
					return err
				}
			}
			for _, o := range e.Window.OrderBy {
				if err := a.walkExpr(o.Expr, object, objects, require); err != nil {
					return err
				}
			}
		}
		return nil
	case *ast.CaseExpr:
		if err := a.walkExpr(e.Operand, object, objects, require); err != nil {
			return err
		}
		for _, w := range e.Whens {
			if err := a.walkExpr(w.Condition, object, objects, require); err != nil {
				return err
			}
			if err := a.walkExpr(w.Result, object, objects, require); err != nil {
				return err
			}
		}
		return a.walkExpr(e.Else, object, objects, require)
	case *ast.CastExpr:
		return a.walkExpr(e.Expr, object, objects, require)
	case *ast.InExpr:
		if err := a.walkExpr(e.Expr, object, objects, require); err != nil {
			return err
		}
		for _, v := range e.Values {
			if err := a.walkExpr(v, object, objects, require); err != nil {
				return err
			}
		}
		return nil
	case *ast.BetweenExpr:
		if err := a.walkExpr(e.Expr, object, objects, require); err != nil {
			return err
		}
		if err := a.walkExpr(e.Low, object, objects, require); err != nil {
			return err
		}
		return a.walkExpr(e.High, object, objects, require)
	case *ast.IsNullExpr:
		return a.walkExpr(e.Expr, object, objects, require)
	case *ast.IsBoolExpr:
		return a.walkExpr(e.Expr, object, objects, require)
	case *ast.LikeExpr:
		if err := a.walkExpr(e.Expr, object, objects, require); err != nil {
			return err
		}
		return a.walkExpr(e.Pattern, object, objects, require)
	default:
		// Subqueries and statement-level nodes belong to a separate
		// statement scope; the calculated-field language does not require
		// lineage to descend into them.
		return nil
	}
}

// walkDeref resolves a dereference path rooted at object: every element but
// the last must name a relationship column on the object reached so far.
func (a *Analyzer) walkDeref(object string, path []string, objects *dag.Graph, require func(fieldKey) error) error {
	current := object
	for i, seg := range path {
		if i == len(path)-1 {
			return require(fieldKey{current, seg})
		}
		col, ok := a.lookupColumn(current, seg)
		if !ok || col.Kind != manifest.ColumnRelationship {
			// Not a manifest relationship hop; leave unresolved for the
			// statement analyzer's pass-through handling.
			return nil
		}
		rel, ok := a.am.Relationship(col.Relationship)
		if !ok {
			return &manifest.UnknownReferenceError{From: current + "." + seg, Ref: col.Relationship, Kind: "relationshipColumn"}
		}
		if err := a.requireJoinColumns(rel, objects, require); err != nil {
			return err
		}
		objects.AddNode(current, nil)
		objects.AddNode(col.RelationshipType, nil)
		_ = objects.AddEdge(col.RelationshipType, current)
		current = col.RelationshipType
	}
	return nil
}

// requireJoinColumns requires, on each endpoint of rel, the columns its join
// condition references — they must be projected for the join to execute.
func (a *Analyzer) requireJoinColumns(rel *manifest.Relationship, objects *dag.Graph, require func(fieldKey) error) error {
	cond, err := sqlparse.ParseExpr(rel.Condition)
	if err != nil {
		return fmt.Errorf("lineage: relationship %s condition: %w", rel.Name, err)
	}
	var walkErr error
	a.immediateColumns(cond, "", func(object, column string) {
		if walkErr != nil || object == "" {
			return
		}
		walkErr = require(fieldKey{object, column})
	})
	return walkErr
}

// immediateColumns collects the (object, column) pairs a condition or
// calculated expression reads directly, without following multi-hop
// relationship chains — used for join-condition requirements and
// SourceColumns. A qualifier that names a relationship column on
// defaultObject resolves to that relationship's target model; a qualifier
// that names a model directly (as in a relationship condition, which is
// always written model-qualified) is used as-is.
func (a *Analyzer) immediateColumns(expr ast.Expr, defaultObject string, add func(object, column string)) {
	switch e := expr.(type) {
	case nil:
		return
	case *ast.ColumnRef:
		object := defaultObject
		switch {
		case e.Table == "":
		case e.Table == defaultObject:
			object = defaultObject
		default:
			if relCol, ok := a.lookupColumn(defaultObject, e.Table); ok && relCol.Kind == manifest.ColumnRelationship {
				object = relCol.RelationshipType
			} else if _, ok := a.am.Model(e.Table); ok {
				object = e.Table
			}
		}
		add(object, e.Column)
	case *ast.DerefExpr:
		if len(e.Path) > 0 {
			add(defaultObject, e.Path[0])
		}
	case *ast.BinaryExpr:
		a.immediateColumns(e.Left, defaultObject, add)
		a.immediateColumns(e.Right, defaultObject, add)
	case *ast.UnaryExpr:
		a.immediateColumns(e.Expr, defaultObject, add)
	case *ast.ParenExpr:
		a.immediateColumns(e.Expr, defaultObject, add)
	case *ast.FuncCall:
		for _, arg := range e.Args {
			a.immediateColumns(arg, defaultObject, add)
		}
	case *ast.CaseExpr:
		a.immediateColumns(e.Operand, defaultObject, add)
		for _, w := range e.Whens {
			a.immediateColumns(w.Condition, defaultObject, add)
			a.immediateColumns(w.Result, defaultObject, add)
		}
		a.immediateColumns(e.Else, defaultObject, add)
	case *ast.CastExpr:
		a.immediateColumns(e.Expr, defaultObject, add)
	}
}
