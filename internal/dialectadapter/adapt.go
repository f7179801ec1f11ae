package dialectadapter

import "github.com/leapstack-labs/semlayer/pkg/ast"

// Adapt rewrites every FuncCall and FuncTable in stmt for d's target engine,
// in place, mirroring the scope-walking traversal internal/semantic/rewrite
// uses to splice manifest-qualified table references. It is the last step
// before the statement is printed (spec.md §4.F/§4.G).
func Adapt(d *Dialect, stmt *ast.SelectStmt) {
	if d == nil || stmt == nil {
		return
	}
	adaptStatement(d, stmt)
}

func adaptStatement(d *Dialect, stmt *ast.SelectStmt) {
	if stmt.With != nil {
		for _, cte := range stmt.With.CTEs {
			adaptStatement(d, cte.Select)
		}
	}
	adaptBody(d, stmt.Body)
}

func adaptBody(d *Dialect, body *ast.SelectBody) {
	if body == nil {
		return
	}
	adaptCore(d, body.Left)
	adaptBody(d, body.Right)
}

func adaptCore(d *Dialect, core *ast.SelectCore) {
	if core == nil {
		return
	}
	if core.From != nil {
		core.From.Source = adaptTableRef(d, core.From.Source)
		for _, j := range core.From.Joins {
			j.Right = adaptTableRef(d, j.Right)
			adaptExpr(d, j.Condition)
		}
	}
	for i := range core.Columns {
		adaptExpr(d, core.Columns[i].Expr)
	}
	adaptExpr(d, core.Where)
	for _, g := range core.GroupBy {
		adaptExpr(d, g)
	}
	adaptExpr(d, core.Having)
	for _, o := range core.OrderBy {
		adaptExpr(d, o.Expr)
	}
	adaptExpr(d, core.Limit)
	adaptExpr(d, core.Offset)
}

// adaptTableRef returns the possibly-replaced ref: a FuncTable whose name
// has a structural rewrite in d is swapped out entirely, everything else is
// mutated in place and returned unchanged.
func adaptTableRef(d *Dialect, ref ast.TableRef) ast.TableRef {
	switch t := ref.(type) {
	case *ast.FuncTable:
		if rw, ok := d.TableFuncRewrite(t.Name); ok {
			return rw(t.Args, t.EffectiveName())
		}
		for _, a := range t.Args {
			adaptExpr(d, a)
		}
		return t
	case *ast.DerivedTable:
		adaptStatement(d, t.Select)
		return t
	case *ast.LateralTable:
		adaptStatement(d, t.Select)
		return t
	default:
		return ref
	}
}

func adaptExpr(d *Dialect, expr ast.Expr) {
	switch e := expr.(type) {
	case nil:
	case *ast.BinaryExpr:
		adaptExpr(d, e.Left)
		adaptExpr(d, e.Right)
	case *ast.UnaryExpr:
		adaptExpr(d, e.Expr)
	case *ast.ParenExpr:
		adaptExpr(d, e.Expr)
	case *ast.FuncCall:
		e.Name = d.RewriteFuncName(e.Name)
		for _, a := range e.Args {
			adaptExpr(d, a)
		}
		adaptExpr(d, e.Filter)
	case *ast.CaseExpr:
		adaptExpr(d, e.Operand)
		for _, w := range e.Whens {
			adaptExpr(d, w.Condition)
			adaptExpr(d, w.Result)
		}
		adaptExpr(d, e.Else)
	case *ast.CastExpr:
		adaptExpr(d, e.Expr)
	case *ast.InExpr:
		adaptExpr(d, e.Expr)
		for _, v := range e.Values {
			adaptExpr(d, v)
		}
		if e.Query != nil {
			adaptStatement(d, e.Query)
		}
	case *ast.BetweenExpr:
		adaptExpr(d, e.Expr)
		adaptExpr(d, e.Low)
		adaptExpr(d, e.High)
	case *ast.IsNullExpr:
		adaptExpr(d, e.Expr)
	case *ast.IsBoolExpr:
		adaptExpr(d, e.Expr)
	case *ast.LikeExpr:
		adaptExpr(d, e.Expr)
		adaptExpr(d, e.Pattern)
	case *ast.SubqueryExpr:
		adaptStatement(d, e.Select)
	case *ast.ExistsExpr:
		adaptStatement(d, e.Select)
	}
}
