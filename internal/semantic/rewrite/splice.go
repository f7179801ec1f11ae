package rewrite

import (
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/analyzer"
	"github.com/leapstack-labs/semlayer/pkg/ast"
)

// spliceScope tracks the CTE names visible at one nesting level, mirroring
// the shadowing rule in internal/semantic/analyzer: a CTE shadows a manifest
// object of the same unqualified name.
type spliceScope struct {
	parent *spliceScope
	ctes   map[string]bool
}

func newSpliceScope(parent *spliceScope) *spliceScope {
	return &spliceScope{parent: parent, ctes: make(map[string]bool)}
}

func (s *spliceScope) hasCTE(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.ctes[name] {
			return true
		}
	}
	return false
}

// stripManifestQualifiers rewrites every TableName in stmt that resolves to
// a manifest object under session into a bare, unqualified reference to that
// object's name — the name the rewrite engine's assembled CTE is given
// (spec.md §4.F). WITH-clause CTE definitions are walked first so a CTE
// shadowing a manifest object is left untouched inside its own scope.
func stripManifestQualifiers(am *manifest.AnalyzedManifest, session analyzer.Session, stmt *ast.SelectStmt) {
	root := newSpliceScope(nil)
	spliceStatement(am, session, stmt, root)
}

func spliceStatement(am *manifest.AnalyzedManifest, session analyzer.Session, stmt *ast.SelectStmt, parent *spliceScope) {
	s := newSpliceScope(parent)
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			spliceStatement(am, session, cte.Select, s)
			s.ctes[cte.Name] = true
		}
	}
	spliceBody(am, session, stmt.Body, s)
}

func spliceBody(am *manifest.AnalyzedManifest, session analyzer.Session, body *ast.SelectBody, s *spliceScope) {
	if body == nil {
		return
	}
	spliceCore(am, session, body.Left, s)
	spliceBody(am, session, body.Right, s)
}

func spliceCore(am *manifest.AnalyzedManifest, session analyzer.Session, core *ast.SelectCore, s *spliceScope) {
	if core == nil {
		return
	}
	if core.From != nil {
		spliceTableRef(am, session, core.From.Source, s)
		for _, j := range core.From.Joins {
			spliceTableRef(am, session, j.Right, s)
			spliceExpr(am, session, j.Condition, s)
		}
	}
	for i := range core.Columns {
		spliceExpr(am, session, core.Columns[i].Expr, s)
	}
	spliceExpr(am, session, core.Where, s)
	for _, g := range core.GroupBy {
		spliceExpr(am, session, g, s)
	}
	spliceExpr(am, session, core.Having, s)
	for _, o := range core.OrderBy {
		spliceExpr(am, session, o.Expr, s)
	}
	spliceExpr(am, session, core.Limit, s)
	spliceExpr(am, session, core.Offset, s)
}

func spliceTableRef(am *manifest.AnalyzedManifest, session analyzer.Session, ref ast.TableRef, s *spliceScope) {
	switch t := ref.(type) {
	case *ast.TableName:
		if t.Catalog == "" && t.Schema == "" && s.hasCTE(t.Name) {
			return
		}
		if name, ok := resolveObjectName(am, session, t.Catalog, t.Schema, t.Name); ok {
			t.Catalog, t.Schema, t.Name = "", "", name
		}
	case *ast.DerivedTable:
		spliceStatement(am, session, t.Select, s)
	case *ast.LateralTable:
		spliceStatement(am, session, t.Select, s)
	}
}

func spliceExpr(am *manifest.AnalyzedManifest, session analyzer.Session, expr ast.Expr, s *spliceScope) {
	switch e := expr.(type) {
	case nil:
	case *ast.BinaryExpr:
		spliceExpr(am, session, e.Left, s)
		spliceExpr(am, session, e.Right, s)
	case *ast.UnaryExpr:
		spliceExpr(am, session, e.Expr, s)
	case *ast.ParenExpr:
		spliceExpr(am, session, e.Expr, s)
	case *ast.FuncCall:
		for _, a := range e.Args {
			spliceExpr(am, session, a, s)
		}
		spliceExpr(am, session, e.Filter, s)
	case *ast.CaseExpr:
		spliceExpr(am, session, e.Operand, s)
		for _, w := range e.Whens {
			spliceExpr(am, session, w.Condition, s)
			spliceExpr(am, session, w.Result, s)
		}
		spliceExpr(am, session, e.Else, s)
	case *ast.CastExpr:
		spliceExpr(am, session, e.Expr, s)
	case *ast.InExpr:
		spliceExpr(am, session, e.Expr, s)
		for _, v := range e.Values {
			spliceExpr(am, session, v, s)
		}
		if e.Query != nil {
			spliceStatement(am, session, e.Query, s)
		}
	case *ast.BetweenExpr:
		spliceExpr(am, session, e.Expr, s)
		spliceExpr(am, session, e.Low, s)
		spliceExpr(am, session, e.High, s)
	case *ast.IsNullExpr:
		spliceExpr(am, session, e.Expr, s)
	case *ast.IsBoolExpr:
		spliceExpr(am, session, e.Expr, s)
	case *ast.LikeExpr:
		spliceExpr(am, session, e.Expr, s)
		spliceExpr(am, session, e.Pattern, s)
	case *ast.SubqueryExpr:
		spliceStatement(am, session, e.Select, s)
	case *ast.ExistsExpr:
		spliceStatement(am, session, e.Select, s)
	}
}

func resolveObjectName(am *manifest.AnalyzedManifest, session analyzer.Session, catalog, schema, name string) (string, bool) {
	if catalog != "" && catalog != session.Catalog {
		return "", false
	}
	if schema != "" && schema != session.Schema {
		return "", false
	}
	if _, _, ok := am.Object(name); ok {
		return name, true
	}
	return "", false
}
