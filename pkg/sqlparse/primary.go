package sqlparse

import (
	"strings"

	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// parsePrimary parses a primary expression: literals, identifiers/column
// refs/deref chains, function calls, parenthesized expressions, subqueries,
// CASE, CAST, and EXISTS.
func (p *Parser) parsePrimary() ast.Expr {
	switch p.tok.Type {
	case token.NUMBER:
		lit := &ast.Literal{Type: ast.LiteralNumber, Value: p.tok.Literal}
		p.advance()
		return lit
	case token.STRING:
		lit := &ast.Literal{Type: ast.LiteralString, Value: p.tok.Literal}
		p.advance()
		return lit
	case token.TRUE, token.FALSE:
		lit := &ast.Literal{Type: ast.LiteralBool, Value: p.tok.Literal}
		p.advance()
		return lit
	case token.NULL:
		p.advance()
		return &ast.Literal{Type: ast.LiteralNull, Value: "NULL"}
	case token.STAR:
		p.advance()
		return &ast.StarExpr{}
	case token.LPAREN:
		return p.parseParenOrSubquery()
	case token.CASE:
		return p.parseCaseExpr()
	case token.CAST:
		return p.parseCastExpr()
	case token.EXISTS:
		p.advance()
		p.expect(token.LPAREN)
		ex := &ast.ExistsExpr{Select: p.parseStatement()}
		p.expect(token.RPAREN)
		return ex
	case token.IDENT:
		return p.parseIdentExpr()
	}
	p.addError("unexpected token in expression: " + p.tok.Type.String())
	p.advance()
	return nil
}

func (p *Parser) parseParenOrSubquery() ast.Expr {
	p.advance() // consume (
	if p.check(token.SELECT) || p.check(token.WITH) {
		stmt := p.parseStatement()
		p.expect(token.RPAREN)
		return &ast.SubqueryExpr{Select: stmt}
	}
	expr := p.parseExpression()
	p.expect(token.RPAREN)
	return &ast.ParenExpr{Expr: expr}
}

func (p *Parser) parseCaseExpr() ast.Expr {
	p.advance() // consume CASE
	c := &ast.CaseExpr{}
	if !p.check(token.WHEN) {
		c.Operand = p.parseExpression()
	}
	for p.match(token.WHEN) {
		cond := p.parseExpression()
		p.expect(token.THEN)
		result := p.parseExpression()
		c.Whens = append(c.Whens, ast.WhenClause{Condition: cond, Result: result})
	}
	if p.match(token.ELSE) {
		c.Else = p.parseExpression()
	}
	p.expect(token.END)
	return c
}

func (p *Parser) parseCastExpr() ast.Expr {
	p.advance() // consume CAST
	p.expect(token.LPAREN)
	expr := p.parseExpression()
	p.expect(token.AS)
	typeName := p.parseTypeName()
	p.expect(token.RPAREN)
	return &ast.CastExpr{Expr: expr, TypeName: typeName}
}

// parseTypeName parses a type name, e.g. INTEGER, VARCHAR, DOUBLE PRECISION,
// NUMERIC(10, 2).
func (p *Parser) parseTypeName() string {
	var b strings.Builder
	b.WriteString(p.tok.Literal)
	p.advance()
	for p.check(token.IDENT) {
		b.WriteByte(' ')
		b.WriteString(p.tok.Literal)
		p.advance()
	}
	if p.match(token.LPAREN) {
		b.WriteByte('(')
		b.WriteString(p.tok.Literal)
		p.advance()
		for p.match(token.COMMA) {
			b.WriteString(", ")
			b.WriteString(p.tok.Literal)
			p.advance()
		}
		p.expect(token.RPAREN)
		b.WriteByte(')')
	}
	return b.String()
}

// parseIdentExpr disambiguates a column reference, a dereference chain, a
// table-star (t.*), and a function call, all of which start with IDENT.
func (p *Parser) parseIdentExpr() ast.Expr {
	first := p.tok.Literal
	p.advance()

	if p.check(token.LPAREN) {
		return p.parseFuncCall(first)
	}

	if !p.check(token.DOT) {
		return &ast.ColumnRef{Column: first}
	}

	parts := []string{first}
	for p.match(token.DOT) {
		if p.check(token.STAR) {
			p.advance()
			return &ast.StarExpr{Table: first}
		}
		parts = append(parts, p.expectIdent())
	}
	if len(parts) == 2 {
		return &ast.ColumnRef{Table: parts[0], Column: parts[1]}
	}
	return &ast.DerefExpr{Path: parts}
}

func (p *Parser) parseFuncCall(name string) ast.Expr {
	p.expect(token.LPAREN)
	fc := &ast.FuncCall{Name: name}
	if p.check(token.STAR) {
		fc.Star = true
		p.advance()
	} else if !p.check(token.RPAREN) {
		fc.Distinct = p.match(token.DISTINCT)
		fc.Args = p.parseExpressionList()
	}
	p.expect(token.RPAREN)

	if p.match(token.FILTER) {
		p.expect(token.LPAREN)
		p.expect(token.WHERE)
		fc.Filter = p.parseExpression()
		p.expect(token.RPAREN)
	}

	if p.match(token.OVER) {
		fc.Window = p.parseWindowSpec()
	}
	return fc
}

func (p *Parser) parseWindowSpec() *ast.WindowSpec {
	if p.check(token.IDENT) {
		name := p.tok.Literal
		p.advance()
		return &ast.WindowSpec{Name: name}
	}
	p.expect(token.LPAREN)
	spec := &ast.WindowSpec{}
	if p.match(token.PARTITION) {
		p.expect(token.BY)
		spec.PartitionBy = p.parseExpressionList()
	}
	if p.match(token.ORDER) {
		p.expect(token.BY)
		spec.OrderBy = p.parseOrderByList()
	}
	if p.check(token.IDENT) {
		// frame clauses use contextual keywords not in the reserved set
		spec.Frame = p.parseFrameSpec()
	}
	p.expect(token.RPAREN)
	return spec
}

func (p *Parser) parseFrameSpec() *ast.FrameSpec {
	frameType := ast.FrameRows
	switch strings.ToUpper(p.tok.Literal) {
	case "ROWS":
		frameType = ast.FrameRows
	case "RANGE":
		frameType = ast.FrameRange
	case "GROUPS":
		frameType = ast.FrameGroups
	default:
		return nil
	}
	p.advance()
	if strings.EqualFold(p.tok.Literal, "between") {
		p.advance()
		start := p.parseFrameBound()
		p.expect(token.AND)
		end := p.parseFrameBound()
		return &ast.FrameSpec{Type: frameType, Start: start, End: end}
	}
	start := p.parseFrameBound()
	return &ast.FrameSpec{Type: frameType, Start: start}
}

func (p *Parser) parseFrameBound() *ast.FrameBound {
	if strings.EqualFold(p.tok.Literal, "unbounded") {
		p.advance()
		switch strings.ToUpper(p.tok.Literal) {
		case "PRECEDING":
			p.advance()
			return &ast.FrameBound{Type: ast.FrameUnboundedPreceding}
		case "FOLLOWING":
			p.advance()
			return &ast.FrameBound{Type: ast.FrameUnboundedFollowing}
		}
	}
	if strings.EqualFold(p.tok.Literal, "current") {
		p.advance()
		p.advance() // ROW
		return &ast.FrameBound{Type: ast.FrameCurrentRow}
	}
	offset := p.parseExpression()
	switch strings.ToUpper(p.tok.Literal) {
	case "PRECEDING":
		p.advance()
		return &ast.FrameBound{Type: ast.FrameExprPreceding, Offset: offset}
	case "FOLLOWING":
		p.advance()
		return &ast.FrameBound{Type: ast.FrameExprFollowing, Offset: offset}
	}
	p.addError("expected PRECEDING or FOLLOWING in frame bound")
	return nil
}

func (p *Parser) parseOrderByList() []ast.OrderByItem {
	var items []ast.OrderByItem
	items = append(items, p.parseOrderByItem())
	for p.match(token.COMMA) {
		items = append(items, p.parseOrderByItem())
	}
	return items
}

func (p *Parser) parseOrderByItem() ast.OrderByItem {
	item := ast.OrderByItem{Expr: p.parseExpression()}
	if p.match(token.ASC) {
		item.Desc = false
	} else if p.match(token.DESC) {
		item.Desc = true
	}
	if p.match(token.NULLS) {
		first := true
		if p.check(token.IDENT) && strings.EqualFold(p.tok.Literal, "last") {
			first = false
		}
		p.advance()
		item.NullsFirst = &first
	}
	return item
}
