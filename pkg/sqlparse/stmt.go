package sqlparse

import (
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// parseStatement parses a full SELECT statement, with an optional leading
// WITH clause.
func (p *Parser) parseStatement() *ast.SelectStmt {
	stmt := &ast.SelectStmt{}
	if p.check(token.WITH) {
		stmt.With = p.parseWithClause()
	}
	stmt.Body = p.parseSelectBody()
	return stmt
}

func (p *Parser) parseWithClause() *ast.WithClause {
	p.advance() // consume WITH
	wc := &ast.WithClause{Recursive: p.match(token.RECURSIVE)}
	wc.CTEs = append(wc.CTEs, p.parseCTE())
	for p.match(token.COMMA) {
		wc.CTEs = append(wc.CTEs, p.parseCTE())
	}
	return wc
}

func (p *Parser) parseCTE() *ast.CTE {
	name := p.expectIdent()
	p.expect(token.AS)
	p.expect(token.LPAREN)
	sel := p.parseStatement()
	p.expect(token.RPAREN)
	return &ast.CTE{Name: name, Select: sel}
}

// parseSelectBody parses one or more SELECT cores chained by set operators.
func (p *Parser) parseSelectBody() *ast.SelectBody {
	left := p.parseSelectCore()
	body := &ast.SelectBody{Left: left}

	op, ok := p.peekSetOp()
	if !ok {
		return body
	}
	body.Op = op
	body.All = p.consumeSetOp()
	body.Right = p.parseSelectBody()
	return body
}

func (p *Parser) peekSetOp() (ast.SetOpType, bool) {
	switch p.tok.Type {
	case token.UNION:
		return ast.SetOpUnion, true
	case token.INTERSECT:
		return ast.SetOpIntersect, true
	case token.EXCEPT:
		return ast.SetOpExcept, true
	}
	return ast.SetOpNone, false
}

func (p *Parser) consumeSetOp() bool {
	p.advance()
	return p.match(token.ALL)
}

func (p *Parser) parseSelectCore() *ast.SelectCore {
	p.expect(token.SELECT)
	core := &ast.SelectCore{}
	core.Distinct = p.match(token.DISTINCT)
	if !core.Distinct {
		p.match(token.ALL)
	}

	core.Columns = p.parseSelectList()

	if p.match(token.FROM) {
		core.From = p.parseFromClause()
	}
	if p.match(token.WHERE) {
		core.Where = p.parseExpression()
	}
	if p.match(token.GROUP) {
		p.expect(token.BY)
		core.GroupBy = p.parseExpressionList()
	}
	if p.match(token.HAVING) {
		core.Having = p.parseExpression()
	}
	if p.match(token.WINDOW) {
		core.Windows = p.parseWindowClauseList()
	}
	if p.match(token.ORDER) {
		p.expect(token.BY)
		core.OrderBy = p.parseOrderByList()
	}
	if p.match(token.LIMIT) {
		core.Limit = p.parseExpression()
	}
	if p.match(token.OFFSET) {
		core.Offset = p.parseExpression()
	}
	return core
}

func (p *Parser) parseWindowClauseList() []ast.WindowDef {
	var defs []ast.WindowDef
	defs = append(defs, p.parseWindowDef())
	for p.match(token.COMMA) {
		defs = append(defs, p.parseWindowDef())
	}
	return defs
}

func (p *Parser) parseWindowDef() ast.WindowDef {
	name := p.expectIdent()
	p.expect(token.AS)
	return ast.WindowDef{Name: name, Spec: p.parseWindowSpec()}
}

func (p *Parser) parseSelectList() []ast.SelectItem {
	var items []ast.SelectItem
	items = append(items, p.parseSelectItem())
	for p.match(token.COMMA) {
		items = append(items, p.parseSelectItem())
	}
	return items
}

func (p *Parser) parseSelectItem() ast.SelectItem {
	if p.check(token.STAR) {
		p.advance()
		return ast.SelectItem{Star: true}
	}
	expr := p.parseExpression()
	if star, ok := expr.(*ast.StarExpr); ok && star.Table != "" {
		return ast.SelectItem{TableStar: star.Table}
	}
	return p.finishSelectItem(expr)
}

func (p *Parser) finishSelectItem(expr ast.Expr) ast.SelectItem {
	item := ast.SelectItem{Expr: expr}
	if p.match(token.AS) {
		item.Alias = p.expectIdent()
	} else if p.check(token.IDENT) {
		item.Alias = p.tok.Literal
		p.advance()
	}
	return item
}

func (p *Parser) parseFromClause() *ast.FromClause {
	fc := &ast.FromClause{Source: p.parseTableRef()}
	for {
		jt, ok := p.peekJoinType()
		if !ok {
			break
		}
		fc.Joins = append(fc.Joins, p.parseJoin(jt))
	}
	return fc
}

func (p *Parser) peekJoinType() (ast.JoinType, bool) {
	switch p.tok.Type {
	case token.JOIN:
		return ast.JoinInner, true
	case token.INNER:
		return ast.JoinInner, true
	case token.LEFT:
		return ast.JoinLeft, true
	case token.RIGHT:
		return ast.JoinRight, true
	case token.FULL:
		return ast.JoinFull, true
	case token.CROSS:
		return ast.JoinCross, true
	case token.COMMA:
		return ast.JoinComma, true
	}
	return "", false
}

func (p *Parser) parseJoin(jt ast.JoinType) *ast.Join {
	join := &ast.Join{Type: jt}
	switch jt {
	case ast.JoinComma:
		p.advance()
	case ast.JoinLeft, ast.JoinRight, ast.JoinFull:
		p.advance()
		p.match(token.OUTER)
		p.expect(token.JOIN)
	case ast.JoinCross:
		p.advance()
		p.expect(token.JOIN)
	default: // inner
		p.match(token.INNER)
		p.expect(token.JOIN)
	}
	join.Right = p.parseTableRef()
	if jt == ast.JoinComma {
		return join
	}
	if p.match(token.ON) {
		join.Condition = p.parseExpression()
	} else if p.checkIdentLiteral("using") {
		p.advance()
		p.expect(token.LPAREN)
		join.Using = append(join.Using, p.expectIdent())
		for p.match(token.COMMA) {
			join.Using = append(join.Using, p.expectIdent())
		}
		p.expect(token.RPAREN)
	}
	return join
}

func (p *Parser) checkIdentLiteral(lower string) bool {
	return p.tok.Type == token.IDENT && equalFold(p.tok.Literal, lower)
}

func equalFold(s, lower string) bool {
	if len(s) != len(lower) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lower[i] {
			return false
		}
	}
	return true
}

func (p *Parser) parseTableRef() ast.TableRef {
	if p.check(token.LPAREN) {
		p.advance()
		sel := p.parseStatement()
		p.expect(token.RPAREN)
		dt := &ast.DerivedTable{Select: sel}
		dt.Alias = p.parseOptionalAlias()
		return dt
	}

	names := []string{p.expectIdent()}
	for p.match(token.DOT) {
		names = append(names, p.expectIdent())
	}
	if len(names) == 1 && p.check(token.LPAREN) {
		p.advance()
		var args []ast.Expr
		if !p.check(token.RPAREN) {
			args = p.parseExpressionList()
		}
		p.expect(token.RPAREN)
		ft := &ast.FuncTable{Name: names[0], Args: args}
		ft.Alias = p.parseOptionalAlias()
		return ft
	}
	tn := &ast.TableName{}
	switch len(names) {
	case 1:
		tn.Name = names[0]
	case 2:
		tn.Schema, tn.Name = names[0], names[1]
	default:
		tn.Catalog, tn.Schema, tn.Name = names[0], names[1], names[2]
	}
	tn.Alias = p.parseOptionalAlias()
	return tn
}

// parseOptionalAlias consumes an optional [AS] alias, stopping before any
// clause keyword or join keyword that would otherwise be mistaken for one.
func (p *Parser) parseOptionalAlias() string {
	if p.match(token.AS) {
		return p.expectIdent()
	}
	if p.check(token.IDENT) {
		alias := p.tok.Literal
		p.advance()
		return alias
	}
	return ""
}
