package sqlparse

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// MaxInputBytes is the default upper bound on input SQL length (spec.md §5).
const MaxInputBytes = 1 << 20

// InputTooLargeError is returned by Parse when sql exceeds MaxInputBytes.
type InputTooLargeError struct{ Limit, Size int }

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("sqlparse: input size %d exceeds limit %d", e.Size, e.Limit)
}

func (e *InputTooLargeError) Code() string { return "INPUT_TOO_LARGE" }

// Parser is a recursive-descent parser over a token stream with two tokens
// of lookahead.
type Parser struct {
	lex    *lexer
	tok    token.Token
	peek   token.Token
	errors []error
}

// NewParser returns a parser positioned at the first token of sql.
func NewParser(sql string) *Parser {
	p := &Parser{lex: newLexer(sql)}
	p.advance()
	p.advance()
	return p
}

// Parse parses a full SELECT statement.
func Parse(sql string) (*ast.SelectStmt, error) {
	if len(sql) > MaxInputBytes {
		return nil, &InputTooLargeError{Limit: MaxInputBytes, Size: len(sql)}
	}
	p := NewParser(sql)
	stmt := p.parseStatement()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return stmt, nil
}

// ParseExpr parses a single calculated-field expression (spec.md §4.B).
func ParseExpr(src string) (ast.Expr, error) {
	if len(src) > MaxInputBytes {
		return nil, &InputTooLargeError{Limit: MaxInputBytes, Size: len(src)}
	}
	p := NewParser(src)
	expr := p.parseExpression()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return expr, nil
}

func (p *Parser) advance() {
	p.tok = p.peek
	p.peek = p.lex.next()
}

func (p *Parser) check(t token.TokenType) bool { return p.tok.Type == t }

func (p *Parser) match(t token.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t token.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	p.addError(fmt.Sprintf(errUnexpectedToken, p.tok.Type, t))
	return false
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, &ParseError{Pos: p.tok.Pos, Message: msg})
}

func (p *Parser) expectIdent() string {
	if p.check(token.IDENT) {
		name := p.tok.Literal
		p.advance()
		return name
	}
	p.addError(fmt.Sprintf(errUnexpectedToken, p.tok.Type, token.IDENT))
	return ""
}

// ---------- Precedence ----------

const (
	precNone = iota
	precOr
	precAnd
	precComparison
	precAddition
	precMultiply
	precUnary
)

func (p *Parser) infixPrecedence() int {
	switch p.tok.Type {
	case token.OR:
		return precOr
	case token.AND:
		return precAnd
	case token.EQ, token.NE, token.LT, token.GT, token.LE, token.GE,
		token.IS, token.IN, token.BETWEEN, token.LIKE, token.NOT:
		return precComparison
	case token.PLUS, token.MINUS, token.DPIPE:
		return precAddition
	case token.STAR, token.SLASH, token.PERCENT:
		return precMultiply
	default:
		return precNone
	}
}

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() ast.Expr {
	return p.parseExpressionPrec(precNone + 1)
}

func (p *Parser) parseExpressionPrec(minPrec int) ast.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for {
		prec := p.infixPrecedence()
		if prec < minPrec {
			break
		}
		left = p.parseInfix(left, prec)
		if left == nil {
			break
		}
	}
	return left
}

func (p *Parser) parsePrefix() ast.Expr {
	switch p.tok.Type {
	case token.NOT:
		p.advance()
		return &ast.UnaryExpr{Op: token.NOT, Expr: p.parseExpressionPrec(precComparison)}
	case token.MINUS:
		p.advance()
		return &ast.UnaryExpr{Op: token.MINUS, Expr: p.parseExpressionPrec(precUnary)}
	case token.PLUS:
		p.advance()
		return &ast.UnaryExpr{Op: token.PLUS, Expr: p.parseExpressionPrec(precUnary)}
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parseInfix(left ast.Expr, prec int) ast.Expr {
	switch p.tok.Type {
	case token.NOT:
		p.advance()
		switch p.tok.Type {
		case token.IN:
			p.advance()
			return p.parseInExpr(left, true)
		case token.BETWEEN:
			p.advance()
			return p.parseBetweenExpr(left, true)
		case token.LIKE:
			p.advance()
			return p.parseLikeExpr(left, true)
		default:
			p.addError("expected IN, BETWEEN, or LIKE after NOT")
			return left
		}
	case token.IS:
		p.advance()
		isNot := p.match(token.NOT)
		switch p.tok.Type {
		case token.NULL:
			p.advance()
			return &ast.IsNullExpr{Expr: left, Not: isNot}
		case token.TRUE:
			p.advance()
			return &ast.IsBoolExpr{Expr: left, Not: isNot, Value: true}
		case token.FALSE:
			p.advance()
			return &ast.IsBoolExpr{Expr: left, Not: isNot, Value: false}
		default:
			p.addError("expected NULL, TRUE, or FALSE after IS")
			return left
		}
	case token.IN:
		p.advance()
		return p.parseInExpr(left, false)
	case token.BETWEEN:
		p.advance()
		return p.parseBetweenExpr(left, false)
	case token.LIKE:
		p.advance()
		return p.parseLikeExpr(left, false)
	}

	op := p.tok.Type
	p.advance()
	right := p.parseExpressionPrec(prec + 1)
	return &ast.BinaryExpr{Left: left, Op: op, Right: right}
}

func (p *Parser) parseInExpr(left ast.Expr, not bool) ast.Expr {
	p.expect(token.LPAREN)
	in := &ast.InExpr{Expr: left, Not: not}
	if p.check(token.SELECT) || p.check(token.WITH) {
		in.Query = p.parseStatement()
	} else {
		in.Values = p.parseExpressionList()
	}
	p.expect(token.RPAREN)
	return in
}

func (p *Parser) parseBetweenExpr(left ast.Expr, not bool) ast.Expr {
	between := &ast.BetweenExpr{Expr: left, Not: not}
	between.Low = p.parseExpressionPrec(precAddition)
	p.expect(token.AND)
	between.High = p.parseExpressionPrec(precAddition)
	return between
}

func (p *Parser) parseLikeExpr(left ast.Expr, not bool) ast.Expr {
	return &ast.LikeExpr{Expr: left, Not: not, Pattern: p.parseExpressionPrec(precAddition)}
}

func (p *Parser) parseExpressionList() []ast.Expr {
	var exprs []ast.Expr
	exprs = append(exprs, p.parseExpression())
	for p.match(token.COMMA) {
		exprs = append(exprs, p.parseExpression())
	}
	return exprs
}
