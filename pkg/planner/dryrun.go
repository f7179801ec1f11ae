package planner

import (
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/analyzer"
	"github.com/leapstack-labs/semlayer/pkg/ast"
)

// outputColumns resolves the top-level SELECT list of stmt (the first core
// of its body — a UNION's branches must already agree on shape) into
// DryRun's output Columns. Star projections are expanded against every
// object ares collected, in the order analyzer reported them; an explicit
// column list is resolved one item at a time.
func outputColumns(am *manifest.AnalyzedManifest, ares *analyzer.Result, stmt *ast.SelectStmt) []Column {
	if stmt.Body == nil || stmt.Body.Left == nil {
		return nil
	}
	core := stmt.Body.Left

	var out []Column
	for _, item := range core.Columns {
		switch {
		case item.Star:
			out = append(out, expandAllObjects(am, ares)...)
		case item.TableStar != "":
			out = append(out, expandObject(am, ares, item.TableStar)...)
		default:
			out = append(out, resolveItem(am, ares, item))
		}
	}
	return out
}

// resolveItem names and, where possible, types a single explicit SELECT
// item.
func resolveItem(am *manifest.AnalyzedManifest, ares *analyzer.Result, item ast.SelectItem) Column {
	if item.Alias != "" {
		return Column{Name: item.Alias, Type: exprType(am, ares, item.Expr)}
	}
	switch e := item.Expr.(type) {
	case *ast.ColumnRef:
		return Column{Name: e.Column, Type: exprType(am, ares, e)}
	case *ast.DerefExpr:
		if len(e.Path) > 0 {
			return Column{Name: e.Path[len(e.Path)-1]}
		}
	case *ast.FuncCall:
		return Column{Name: e.Name}
	}
	return Column{}
}

// exprType types a bare column reference by finding the one referenced
// object whose declared columns include its name. Ambiguous (more than one
// referenced object declares that column name) or unresolved names report an
// empty type rather than guess.
func exprType(am *manifest.AnalyzedManifest, ares *analyzer.Result, expr ast.Expr) string {
	ref, ok := expr.(*ast.ColumnRef)
	if !ok {
		return ""
	}
	if ref.Table != "" {
		if obj, ok := ares.CollectedColumns[ref.Table]; ok {
			if _, ok := obj[ref.Column]; ok {
				return columnType(am, ref.Table, ref.Column)
			}
		}
	}

	var found, typ string
	for object, cols := range ares.CollectedColumns {
		if _, ok := cols[ref.Column]; !ok {
			continue
		}
		t := columnType(am, object, ref.Column)
		if t == "" {
			continue
		}
		if found != "" && found != object {
			return "" // ambiguous across more than one referenced object
		}
		found, typ = object, t
	}
	return typ
}

// columnType looks up column's declared type on the named manifest object.
func columnType(am *manifest.AnalyzedManifest, object, column string) string {
	obj, kind, ok := am.Object(object)
	if !ok {
		return ""
	}
	switch kind {
	case "model":
		m := obj.(*manifest.Model)
		for _, c := range m.Columns {
			if c.Name == column {
				return c.Type
			}
		}
	case "metric":
		metric := obj.(*manifest.Metric)
		for _, c := range append(append([]*manifest.Column{}, metric.Dimensions...), metric.Measures...) {
			if c.Name == column {
				return c.Type
			}
		}
	case "cumulativeMetric":
		cm := obj.(*manifest.CumulativeMetric)
		if cm.Measure != nil && cm.Measure.Name == column {
			return "" // Measure has no declared type; aggregation result type is dialect-dependent
		}
	}
	return ""
}

func expandObject(am *manifest.AnalyzedManifest, ares *analyzer.Result, object string) []Column {
	obj, kind, ok := am.Object(object)
	if !ok {
		return nil
	}
	switch kind {
	case "model":
		m := obj.(*manifest.Model)
		cols := make([]Column, 0, len(m.Columns))
		for _, c := range m.Columns {
			cols = append(cols, Column{Name: c.Name, Type: c.Type})
		}
		return cols
	case "metric":
		metric := obj.(*manifest.Metric)
		cols := make([]Column, 0, len(metric.Dimensions)+len(metric.Measures))
		for _, c := range metric.Dimensions {
			cols = append(cols, Column{Name: c.Name, Type: c.Type})
		}
		for _, c := range metric.Measures {
			cols = append(cols, Column{Name: c.Name, Type: c.Type})
		}
		return cols
	}
	_ = ares
	return nil
}

func expandAllObjects(am *manifest.AnalyzedManifest, ares *analyzer.Result) []Column {
	var out []Column
	for _, ref := range ares.Objects {
		out = append(out, expandObject(am, ares, ref.Name)...)
	}
	return out
}
