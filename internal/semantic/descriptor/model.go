package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// joinAliasPrefix namespaces generated relationship-join aliases so they
// never collide with a user-visible column or CTE name.
const joinAliasPrefix = "__rel_"

func (b *Builder) buildModel(object string, columns []string) (*Descriptor, error) {
	model, ok := b.am.Model(object)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "model"}
	}

	origin, err := b.modelOrigin(model)
	if err != nil {
		return nil, err
	}

	required := make(map[string]struct{}, len(columns))
	var physical, calculated []string
	for _, name := range columns {
		required[name] = struct{}{}
		col := findColumn(model.Columns, name)
		if col == nil {
			continue // a column the statement collected that this model doesn't declare; ignored here
		}
		switch col.Kind {
		case manifest.ColumnCalculated:
			calculated = append(calculated, name)
		case manifest.ColumnPhysical:
			physical = append(physical, name)
		}
	}

	p := &modelPlan{builder: b, model: model}
	items := make([]ast.SelectItem, 0, len(physical)+len(calculated))
	for _, name := range physical {
		col := findColumn(model.Columns, name)
		var expr ast.Expr = &ast.ColumnRef{Column: col.Name}
		if col.Expression != "" {
			parsed, err := sqlparse.ParseExpr(col.Expression)
			if err != nil {
				return nil, fmt.Errorf("descriptor: %s.%s: %w", model.Name, col.Name, err)
			}
			expr = parsed
		}
		items = append(items, ast.SelectItem{Expr: expr, Alias: name})
	}
	sort.Strings(calculated)
	for _, name := range calculated {
		col := findColumn(model.Columns, name)
		item, err := p.planCalculated(col)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: items,
		From:    &ast.FromClause{Source: origin, Joins: p.joins},
	}}}

	return &Descriptor{
		Name:            object,
		RequiredObjects: p.requiredObjects(),
		SQL:             sqlwrite.Print(stmt),
	}, nil
}

func (b *Builder) modelOrigin(m *manifest.Model) (ast.TableRef, error) {
	switch {
	case m.RefSQL != "":
		sub, err := sqlparse.Parse(m.RefSQL)
		if err != nil {
			return nil, fmt.Errorf("descriptor: model %s refSql: %w", m.Name, err)
		}
		return &ast.DerivedTable{Select: sub, Alias: m.Name + "_origin"}, nil
	case m.BaseObject != "":
		return &ast.TableName{Name: m.BaseObject, Alias: m.Name + "_origin"}, nil
	case m.TableReference != nil:
		return &ast.TableName{
			Catalog: m.TableReference.Catalog,
			Schema:  m.TableReference.Schema,
			Name:    m.TableReference.Table,
			Alias:   m.Name + "_origin",
		}, nil
	}
	return nil, &manifest.InvalidOriginError{Model: m.Name, Count: 0}
}

func findColumn(cols []*manifest.Column, name string) *manifest.Column {
	for _, c := range cols {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// modelPlan accumulates the joins and required objects discovered while
// planning a model's calculated columns, one model-descriptor build at a
// time (spec.md §4.E steps 3-4).
type modelPlan struct {
	builder *Builder
	model   *manifest.Model

	joins    []*ast.Join
	required map[string]struct{}
	aliasSeq int
}

func (p *modelPlan) requiredObjects() []string {
	out := make([]string, 0, len(p.required))
	for name := range p.required {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p *modelPlan) nextAlias() string {
	p.aliasSeq++
	return fmt.Sprintf("%s%d", joinAliasPrefix, p.aliasSeq)
}

func (p *modelPlan) addRequired(object string) {
	if p.required == nil {
		p.required = make(map[string]struct{})
	}
	p.required[object] = struct{}{}
}

// planCalculated rewrites one calculated column into its projected
// expression, adding any LEFT JOINs (to-one) or aggregated derived-table
// joins (to-many) it needs.
func (p *modelPlan) planCalculated(col *manifest.Column) (*ast.SelectItem, error) {
	expr, err := sqlparse.ParseExpr(col.Expression)
	if err != nil {
		return nil, fmt.Errorf("descriptor: %s.%s: %w", p.model.Name, col.Name, err)
	}

	relCol, relName, ok := soleRelationshipRoot(p.model, expr)
	if !ok {
		// No single relationship-dereference root (a plain physical
		// expression, or a shape this builder does not specialize) — project
		// the expression as written.
		return &ast.SelectItem{Expr: expr, Alias: col.Name}, nil
	}

	rel, ok := p.builder.am.Relationship(relName)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: p.model.Name + "." + col.Name, Ref: relName, Kind: "relationshipColumn"}
	}
	target := relCol.RelationshipType
	effective := effectiveJoinType(rel, p.model.Name)
	ownerCol, targetCol, err := joinColumns(rel, p.model.Name, target)
	if err != nil {
		return nil, err
	}
	p.addRequired(target)

	if !effective.ToMany() {
		alias := p.nextAlias()
		p.joins = append(p.joins, &ast.Join{
			Type:  ast.JoinLeft,
			Right: &ast.TableName{Name: target, Alias: alias},
			Condition: &ast.BinaryExpr{
				Left:  &ast.ColumnRef{Table: p.model.Name + "_origin", Column: ownerCol},
				Op:    token.EQ,
				Right: &ast.ColumnRef{Table: alias, Column: targetCol},
			},
		})
		rewritten := substituteRelRefs(expr, relCol.Name, alias)
		return &ast.SelectItem{Expr: rewritten, Alias: col.Name}, nil
	}

	alias := p.nextAlias()
	innerExpr := substituteRelRefs(expr, relCol.Name, target)
	inner := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: []ast.SelectItem{
			{Expr: &ast.ColumnRef{Table: target, Column: targetCol}, Alias: targetCol},
			{Expr: innerExpr, Alias: "agg"},
		},
		From:    &ast.FromClause{Source: &ast.TableName{Name: target}},
		GroupBy: []ast.Expr{&ast.ColumnRef{Table: target, Column: targetCol}},
	}}}
	p.joins = append(p.joins, &ast.Join{
		Type:  ast.JoinLeft,
		Right: &ast.DerivedTable{Select: inner, Alias: alias},
		Condition: &ast.BinaryExpr{
			Left:  &ast.ColumnRef{Table: p.model.Name + "_origin", Column: ownerCol},
			Op:    token.EQ,
			Right: &ast.ColumnRef{Table: alias, Column: targetCol},
		},
	})
	return &ast.SelectItem{Expr: &ast.ColumnRef{Table: alias, Column: "agg"}, Alias: col.Name}, nil
}

// effectiveJoinType reports the cardinality of rel as traversed from "from"
// — Relationship.JoinType is declared Models[0]→Models[1], so traversing in
// the opposite direction reverses ONE_TO_MANY/MANY_TO_ONE.
func effectiveJoinType(rel *manifest.Relationship, from string) manifest.JoinType {
	if from == rel.Models[0] {
		return rel.JoinType
	}
	switch rel.JoinType {
	case manifest.OneToMany:
		return manifest.ManyToOne
	case manifest.ManyToOne:
		return manifest.OneToMany
	default:
		return rel.JoinType
	}
}

// joinColumns returns (ownerColumn, targetColumn) — the pair of columns
// rel.Condition equates, oriented so the first belongs to owner and the
// second to target.
func joinColumns(rel *manifest.Relationship, owner, target string) (string, string, error) {
	cond, err := sqlparse.ParseExpr(rel.Condition)
	if err != nil {
		return "", "", fmt.Errorf("descriptor: relationship %s condition: %w", rel.Name, err)
	}
	bin, ok := cond.(*ast.BinaryExpr)
	if !ok {
		return "", "", fmt.Errorf("descriptor: relationship %s condition is not a simple equality", rel.Name)
	}
	left, lok := bin.Left.(*ast.ColumnRef)
	right, rok := bin.Right.(*ast.ColumnRef)
	if !lok || !rok {
		return "", "", fmt.Errorf("descriptor: relationship %s condition is not column = column", rel.Name)
	}
	switch {
	case strings.EqualFold(left.Table, owner) && strings.EqualFold(right.Table, target):
		return left.Column, right.Column, nil
	case strings.EqualFold(left.Table, target) && strings.EqualFold(right.Table, owner):
		return right.Column, left.Column, nil
	}
	return "", "", fmt.Errorf("descriptor: relationship %s condition does not qualify both %s and %s", rel.Name, owner, target)
}

// soleRelationshipRoot reports whether expr's only relationship traversal is
// a single dereference rooted at one relationship column of model — the
// shape this builder knows how to plan as one join. relCol is that column,
// relName its relationship binding.
func soleRelationshipRoot(model *manifest.Model, expr ast.Expr) (*manifest.Column, string, bool) {
	var found *manifest.Column
	var relName string
	ok := true
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		switch v := e.(type) {
		case nil:
		case *ast.ColumnRef:
			if v.Table == "" {
				return
			}
			col := findColumn(model.Columns, v.Table)
			if col == nil || col.Kind != manifest.ColumnRelationship {
				return
			}
			if found != nil && found.Name != col.Name {
				ok = false
				return
			}
			found, relName = col, col.Relationship
		case *ast.DerefExpr:
			if len(v.Path) < 2 {
				return
			}
			col := findColumn(model.Columns, v.Path[0])
			if col == nil || col.Kind != manifest.ColumnRelationship {
				return
			}
			if len(v.Path) > 2 {
				// Multi-hop chains beyond one relationship are not planned
				// by this builder.
				ok = false
				return
			}
			if found != nil && found.Name != col.Name {
				ok = false
				return
			}
			found, relName = col, col.Relationship
		case *ast.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *ast.UnaryExpr:
			walk(v.Expr)
		case *ast.ParenExpr:
			walk(v.Expr)
		case *ast.FuncCall:
			for _, a := range v.Args {
				walk(a)
			}
		case *ast.CaseExpr:
			walk(v.Operand)
			for _, w := range v.Whens {
				walk(w.Condition)
				walk(w.Result)
			}
			walk(v.Else)
		case *ast.CastExpr:
			walk(v.Expr)
		}
	}
	walk(expr)
	if !ok || found == nil {
		return nil, "", false
	}
	return found, relName, true
}

// substituteRelRefs returns a copy of expr with every reference through
// relCol (either a bare ColumnRef{Table: relCol} or a two-segment
// DerefExpr{relCol, field}) replaced by a reference into alias.
func substituteRelRefs(expr ast.Expr, relCol, alias string) ast.Expr {
	var rw func(e ast.Expr) ast.Expr
	rw = func(e ast.Expr) ast.Expr {
		switch v := e.(type) {
		case nil:
			return nil
		case *ast.ColumnRef:
			if v.Table == relCol {
				return &ast.ColumnRef{Table: alias, Column: v.Column}
			}
			return v
		case *ast.DerefExpr:
			if len(v.Path) == 2 && v.Path[0] == relCol {
				return &ast.ColumnRef{Table: alias, Column: v.Path[1]}
			}
			return v
		case *ast.BinaryExpr:
			return &ast.BinaryExpr{Left: rw(v.Left), Op: v.Op, Right: rw(v.Right)}
		case *ast.UnaryExpr:
			return &ast.UnaryExpr{Op: v.Op, Expr: rw(v.Expr)}
		case *ast.ParenExpr:
			return &ast.ParenExpr{Expr: rw(v.Expr)}
		case *ast.FuncCall:
			args := make([]ast.Expr, len(v.Args))
			for i, a := range v.Args {
				args[i] = rw(a)
			}
			return &ast.FuncCall{Name: v.Name, Distinct: v.Distinct, Args: args, Star: v.Star, Window: v.Window, Filter: rw(v.Filter)}
		case *ast.CaseExpr:
			whens := make([]ast.WhenClause, len(v.Whens))
			for i, w := range v.Whens {
				whens[i] = ast.WhenClause{Condition: rw(w.Condition), Result: rw(w.Result)}
			}
			return &ast.CaseExpr{Operand: rw(v.Operand), Whens: whens, Else: rw(v.Else)}
		case *ast.CastExpr:
			return &ast.CastExpr{Expr: rw(v.Expr), TypeName: v.TypeName}
		default:
			return v
		}
	}
	return rw(expr)
}
