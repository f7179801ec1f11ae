package sqlwrite

import (
	"strings"

	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

func (p *Printer) expr(e ast.Expr) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ast.Literal:
		p.literal(v)
	case *ast.ColumnRef:
		p.columnRef(v)
	case *ast.DerefExpr:
		p.write(strings.Join(p.quoteEach(v.Path), "."))
	case *ast.BinaryExpr:
		p.expr(v.Left)
		p.space()
		p.kw(v.Op)
		p.space()
		p.expr(v.Right)
	case *ast.UnaryExpr:
		p.kw(v.Op)
		if v.Op == token.NOT {
			p.space()
		}
		p.expr(v.Expr)
	case *ast.FuncCall:
		p.funcCall(v)
	case *ast.CaseExpr:
		p.caseExpr(v)
	case *ast.CastExpr:
		p.kw(token.CAST)
		p.write("(")
		p.expr(v.Expr)
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(v.TypeName)
		p.write(")")
	case *ast.InExpr:
		p.expr(v.Expr)
		if v.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		p.kw(token.IN)
		p.write(" (")
		if v.Query != nil {
			p.statement(v.Query)
		} else {
			p.list(len(v.Values), func(i int) { p.expr(v.Values[i]) }, ", ")
		}
		p.write(")")
	case *ast.BetweenExpr:
		p.expr(v.Expr)
		if v.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		p.kw(token.BETWEEN)
		p.space()
		p.expr(v.Low)
		p.space()
		p.kw(token.AND)
		p.space()
		p.expr(v.High)
	case *ast.IsNullExpr:
		p.expr(v.Expr)
		p.space()
		p.kw(token.IS)
		if v.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		p.kw(token.NULL)
	case *ast.IsBoolExpr:
		p.expr(v.Expr)
		p.space()
		p.kw(token.IS)
		if v.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		if v.Value {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case *ast.LikeExpr:
		p.expr(v.Expr)
		if v.Not {
			p.space()
			p.kw(token.NOT)
		}
		p.space()
		p.kw(token.LIKE)
		p.space()
		p.expr(v.Pattern)
	case *ast.ParenExpr:
		p.write("(")
		p.expr(v.Expr)
		p.write(")")
	case *ast.SubqueryExpr:
		p.write("(")
		p.statement(v.Select)
		p.write(")")
	case *ast.ExistsExpr:
		if v.Not {
			p.kw(token.NOT)
			p.space()
		}
		p.kw(token.EXISTS)
		p.write(" (")
		p.statement(v.Select)
		p.write(")")
	case *ast.StarExpr:
		if v.Table != "" {
			p.write(v.Table)
			p.write(".")
		}
		p.write("*")
	}
}

func (p *Printer) literal(lit *ast.Literal) {
	switch lit.Type {
	case ast.LiteralString:
		p.write("'")
		p.write(strings.ReplaceAll(lit.Value, "'", "''"))
		p.write("'")
	case ast.LiteralBool:
		if strings.EqualFold(lit.Value, "true") {
			p.kw(token.TRUE)
		} else {
			p.kw(token.FALSE)
		}
	case ast.LiteralNull:
		p.kw(token.NULL)
	default:
		p.write(lit.Value)
	}
}

func (p *Printer) columnRef(c *ast.ColumnRef) {
	if c.Table != "" {
		p.write(p.quoteIdent(c.Table))
		p.write(".")
	}
	p.write(p.quoteIdent(c.Column))
}

func (p *Printer) funcCall(fn *ast.FuncCall) {
	p.write(fn.Name)
	p.write("(")
	if fn.Distinct {
		p.kw(token.DISTINCT)
		p.space()
	}
	if fn.Star {
		p.write("*")
	} else {
		p.list(len(fn.Args), func(i int) { p.expr(fn.Args[i]) }, ", ")
	}
	p.write(")")
	if fn.Filter != nil {
		p.space()
		p.kw(token.FILTER)
		p.write(" (")
		p.kw(token.WHERE)
		p.space()
		p.expr(fn.Filter)
		p.write(")")
	}
	if fn.Window != nil {
		p.space()
		p.windowSpec(fn.Window)
	}
}

func (p *Printer) caseExpr(c *ast.CaseExpr) {
	p.kw(token.CASE)
	if c.Operand != nil {
		p.space()
		p.expr(c.Operand)
	}
	for _, w := range c.Whens {
		p.space()
		p.kw(token.WHEN)
		p.space()
		p.expr(w.Condition)
		p.space()
		p.kw(token.THEN)
		p.space()
		p.expr(w.Result)
	}
	if c.Else != nil {
		p.space()
		p.kw(token.ELSE)
		p.space()
		p.expr(c.Else)
	}
	p.space()
	p.kw(token.END)
}

func (p *Printer) windowSpec(w *ast.WindowSpec) {
	p.kw(token.OVER)
	p.write(" (")
	if w.Name != "" {
		p.write(w.Name)
	}
	if len(w.PartitionBy) > 0 {
		if w.Name != "" {
			p.space()
		}
		p.kw(token.PARTITION)
		p.space()
		p.kw(token.BY)
		p.space()
		p.list(len(w.PartitionBy), func(i int) { p.expr(w.PartitionBy[i]) }, ", ")
	}
	if len(w.OrderBy) > 0 {
		p.space()
		p.kw(token.ORDER)
		p.space()
		p.kw(token.BY)
		p.space()
		p.list(len(w.OrderBy), func(i int) { p.orderByItem(w.OrderBy[i]) }, ", ")
	}
	if w.Frame != nil {
		p.space()
		p.frameSpec(w.Frame)
	}
	p.write(")")
}

func (p *Printer) frameSpec(f *ast.FrameSpec) {
	p.keyword(string(f.Type))
	p.space()
	p.kw(token.BETWEEN)
	p.space()
	p.frameBound(f.Start)
	p.space()
	p.kw(token.AND)
	p.space()
	p.frameBound(f.End)
}

func (p *Printer) frameBound(b *ast.FrameBound) {
	if b == nil {
		return
	}
	switch b.Type {
	case ast.FrameUnboundedPreceding:
		p.keyword("UNBOUNDED PRECEDING")
	case ast.FrameUnboundedFollowing:
		p.keyword("UNBOUNDED FOLLOWING")
	case ast.FrameCurrentRow:
		p.keyword("CURRENT ROW")
	case ast.FrameExprPreceding:
		p.expr(b.Offset)
		p.space()
		p.keyword("PRECEDING")
	case ast.FrameExprFollowing:
		p.expr(b.Offset)
		p.space()
		p.keyword("FOLLOWING")
	}
}

func (p *Printer) quoteEach(path []string) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = p.quoteIdent(s)
	}
	return out
}
