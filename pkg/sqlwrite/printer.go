// Package sqlwrite renders the shared AST (pkg/ast) back into SQL text.
// It is the mirror image of pkg/sqlparse: the rewrite engine (spec.md §4.F)
// uses it to emit the final statement, and the descriptor builder (§4.E)
// uses PrintExpr to splice rewritten calculated-field expressions into a
// CTE's projection list.
package sqlwrite

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

const indentSize = 2

// QuoteConfig lets a caller override which identifiers need quoting beyond
// the ANSI-reserved-word default — the dialect adapter (spec.md §4.G) uses
// this to fold in a target engine's own reserved-word list without the
// printer needing to know about dialects.
type QuoteConfig struct {
	// IsReserved, if set, reports whether name (already lowercased) is
	// reserved in the target dialect and must be quoted even though it is
	// not an ANSI keyword. nil means no additional reserved words.
	IsReserved func(name string) bool
}

// Printer accumulates formatted SQL text with simple depth-based indentation.
type Printer struct {
	output      *bytes.Buffer
	depth       int
	atLineStart bool
	quoteCfg    QuoteConfig
}

func newPrinter(cfg QuoteConfig) *Printer {
	return &Printer{output: &bytes.Buffer{}, atLineStart: true, quoteCfg: cfg}
}

// Print renders a complete statement using ANSI-default identifier quoting.
func Print(stmt *ast.SelectStmt) string {
	return PrintWithConfig(stmt, QuoteConfig{})
}

// PrintWithConfig renders a complete statement, quoting identifiers per cfg.
func PrintWithConfig(stmt *ast.SelectStmt, cfg QuoteConfig) string {
	p := newPrinter(cfg)
	p.statement(stmt)
	return p.String()
}

// PrintExpr renders a single expression, with no surrounding statement
// context — used when splicing a rewritten calculated-field expression into
// a generated projection list.
func PrintExpr(e ast.Expr) string {
	p := newPrinter(QuoteConfig{})
	p.expr(e)
	return p.String()
}

func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n")
}

func (p *Printer) write(s string) {
	if p.atLineStart && len(s) > 0 {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *Printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
}

func (p *Printer) kw(t token.TokenType) { p.write(t.String()) }

func (p *Printer) space() { p.output.WriteByte(' ') }

func (p *Printer) indent() { p.depth++ }

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *Printer) list(n int, each func(i int), sep string) {
	for i := 0; i < n; i++ {
		each(i)
		if i < n-1 {
			p.write(sep)
		}
	}
}

func (p *Printer) statement(stmt *ast.SelectStmt) {
	if stmt == nil {
		return
	}
	if stmt.With != nil {
		p.withClause(stmt.With)
	}
	p.selectBody(stmt.Body)
}

func (p *Printer) withClause(w *ast.WithClause) {
	p.kw(token.WITH)
	if w.Recursive {
		p.space()
		p.kw(token.RECURSIVE)
	}
	p.writeln()
	p.indent()
	p.list(len(w.CTEs), func(i int) {
		cte := w.CTEs[i]
		p.write(p.quoteIdent(cte.Name))
		p.space()
		p.kw(token.AS)
		p.write(" (")
		p.writeln()
		p.indent()
		p.statement(cte.Select)
		p.dedent()
		p.writeln()
		p.write(")")
	}, ",\n")
	p.writeln()
	p.dedent()
}

func (p *Printer) selectBody(body *ast.SelectBody) {
	if body == nil {
		return
	}
	p.selectCore(body.Left)
	if body.Op != ast.SetOpNone {
		p.writeln()
		switch body.Op {
		case ast.SetOpUnion:
			p.kw(token.UNION)
		case ast.SetOpIntersect:
			p.kw(token.INTERSECT)
		case ast.SetOpExcept:
			p.kw(token.EXCEPT)
		}
		if body.All {
			p.space()
			p.kw(token.ALL)
		}
		p.writeln()
		p.selectBody(body.Right)
	}
}

func (p *Printer) selectCore(sc *ast.SelectCore) {
	if sc == nil {
		return
	}
	p.kw(token.SELECT)
	if sc.Distinct {
		p.space()
		p.kw(token.DISTINCT)
	}
	p.writeln()
	p.indent()
	p.list(len(sc.Columns), func(i int) { p.selectItem(sc.Columns[i]) }, ",\n")
	p.writeln()
	p.dedent()

	if sc.From != nil {
		p.kw(token.FROM)
		p.space()
		p.fromClause(sc.From)
		p.writeln()
	}
	if sc.Where != nil {
		p.kw(token.WHERE)
		p.writeln()
		p.indent()
		p.expr(sc.Where)
		p.dedent()
		p.writeln()
	}
	if len(sc.GroupBy) > 0 {
		p.kw(token.GROUP)
		p.space()
		p.kw(token.BY)
		p.space()
		p.list(len(sc.GroupBy), func(i int) { p.expr(sc.GroupBy[i]) }, ", ")
		p.writeln()
	}
	if sc.Having != nil {
		p.kw(token.HAVING)
		p.writeln()
		p.indent()
		p.expr(sc.Having)
		p.dedent()
		p.writeln()
	}
	for _, w := range sc.Windows {
		p.kw(token.WINDOW)
		p.space()
		p.write(w.Name)
		p.space()
		p.kw(token.AS)
		p.space()
		p.windowSpec(w.Spec)
		p.writeln()
	}
	if len(sc.OrderBy) > 0 {
		p.kw(token.ORDER)
		p.space()
		p.kw(token.BY)
		p.space()
		p.list(len(sc.OrderBy), func(i int) { p.orderByItem(sc.OrderBy[i]) }, ", ")
		p.writeln()
	}
	if sc.Limit != nil {
		p.kw(token.LIMIT)
		p.space()
		p.expr(sc.Limit)
		p.writeln()
	}
	if sc.Offset != nil {
		p.kw(token.OFFSET)
		p.space()
		p.expr(sc.Offset)
		p.writeln()
	}
}

func (p *Printer) selectItem(item ast.SelectItem) {
	if item.Star {
		p.write("*")
		return
	}
	if item.TableStar != "" {
		p.write(item.TableStar)
		p.write(".*")
		return
	}
	p.expr(item.Expr)
	if item.Alias != "" {
		p.space()
		p.kw(token.AS)
		p.space()
		p.write(p.quoteIdent(item.Alias))
	}
}

func (p *Printer) fromClause(from *ast.FromClause) {
	p.tableRef(from.Source)
	for _, j := range from.Joins {
		p.writeln()
		p.join(j)
	}
}

func (p *Printer) tableRef(ref ast.TableRef) {
	if ref == nil {
		return
	}
	switch t := ref.(type) {
	case *ast.TableName:
		p.tableName(t)
	case *ast.DerivedTable:
		p.write("(")
		p.writeln()
		p.indent()
		p.statement(t.Select)
		p.dedent()
		p.writeln()
		p.write(")")
		if t.Alias != "" {
			p.space()
			p.write(p.quoteIdent(t.Alias))
		}
	case *ast.LateralTable:
		p.keyword("LATERAL")
		p.write(" (")
		p.writeln()
		p.indent()
		p.statement(t.Select)
		p.dedent()
		p.writeln()
		p.write(")")
		if t.Alias != "" {
			p.space()
			p.write(p.quoteIdent(t.Alias))
		}
	case *ast.FuncTable:
		p.funcTable(t)
	}
}

func (p *Printer) funcTable(t *ast.FuncTable) {
	p.write(t.Name)
	p.write("(")
	p.list(len(t.Args), func(i int) { p.expr(t.Args[i]) }, ", ")
	p.write(")")
	if t.Alias != "" {
		p.space()
		p.write(p.quoteIdent(t.Alias))
	}
}

func (p *Printer) keyword(s string) { p.write(s) }

func (p *Printer) tableName(t *ast.TableName) {
	if t.Catalog != "" {
		p.write(p.quoteIdent(t.Catalog))
		p.write(".")
	}
	if t.Schema != "" {
		p.write(p.quoteIdent(t.Schema))
		p.write(".")
	}
	p.write(p.quoteIdent(t.Name))
	if t.Alias != "" {
		p.space()
		p.write(p.quoteIdent(t.Alias))
	}
}

func (p *Printer) join(j *ast.Join) {
	switch j.Type {
	case ast.JoinComma:
		p.write(",")
	case ast.JoinInner:
		p.kw(token.JOIN)
	default:
		p.keyword(string(j.Type))
		p.space()
		p.kw(token.JOIN)
	}
	p.space()
	p.tableRef(j.Right)
	if len(j.Using) > 0 {
		p.space()
		p.keyword("USING")
		p.write(" (")
		p.write(strings.Join(j.Using, ", "))
		p.write(")")
	} else if j.Condition != nil {
		p.space()
		p.kw(token.ON)
		p.space()
		p.expr(j.Condition)
	}
}

func (p *Printer) orderByItem(item ast.OrderByItem) {
	p.expr(item.Expr)
	if item.Desc {
		p.space()
		p.kw(token.DESC)
	}
	if item.NullsFirst != nil {
		p.space()
		p.kw(token.NULLS)
		p.space()
		if *item.NullsFirst {
			p.keyword("FIRST")
		} else {
			p.keyword("LAST")
		}
	}
}

// quoteIdent double-quotes an identifier that is not a bare SQL name or that
// collides with a reserved keyword, preserving case exactly (spec.md §8
// scenario 7: a quoted reserved identifier like "Order" passes through
// untouched rather than being emitted as a bare, keyword-colliding name).
func quoteIdent(name string) string {
	return quoteIdentReserved(name, nil)
}

// quoteIdent is the Printer-bound variant, additionally quoting names the
// active QuoteConfig reports as dialect-reserved.
func (p *Printer) quoteIdent(name string) string {
	return quoteIdentReserved(name, p.quoteCfg.IsReserved)
}

func quoteIdentReserved(name string, isReserved func(string) bool) string {
	if name == "" {
		return name
	}
	lower := strings.ToLower(name)
	needsQuote := token.LookupIdent(lower) != token.IDENT
	if !needsQuote && isReserved != nil {
		needsQuote = isReserved(lower)
	}
	for i, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		switch {
		case i == 0 && !isAlpha:
			needsQuote = true
		case i > 0 && !isAlpha && !isDigit:
			needsQuote = true
		}
	}
	if !needsQuote {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
