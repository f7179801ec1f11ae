package descriptor

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
)

// buildMetric emits `SELECT dimensions, aggregated_measures FROM base_object
// GROUP BY dimensions` (spec.md §4.E).
func (b *Builder) buildMetric(object string, columns []string) (*Descriptor, error) {
	metric, ok := b.am.Metric(object)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "metric"}
	}

	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}

	var items []ast.SelectItem
	var groupBy []ast.Expr
	for _, dim := range metric.Dimensions {
		if !want[dim.Name] {
			continue
		}
		expr, err := columnExpr(dim)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %s.%s: %w", object, dim.Name, err)
		}
		items = append(items, ast.SelectItem{Expr: expr, Alias: dim.Name})
		groupBy = append(groupBy, &ast.ColumnRef{Column: dim.Name})
	}
	for _, measure := range metric.Measures {
		if !want[measure.Name] {
			continue
		}
		expr, err := columnExpr(measure)
		if err != nil {
			return nil, fmt.Errorf("descriptor: %s.%s: %w", object, measure.Name, err)
		}
		items = append(items, ast.SelectItem{Expr: expr, Alias: measure.Name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Alias < items[j].Alias })

	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: items,
		From:    &ast.FromClause{Source: &ast.TableName{Name: metric.BaseObject}},
		GroupBy: groupBy,
	}}}

	return &Descriptor{
		Name:            object,
		RequiredObjects: []string{metric.BaseObject},
		SQL:             sqlwrite.Print(stmt),
	}, nil
}

func columnExpr(col *manifest.Column) (ast.Expr, error) {
	if col.Expression == "" {
		return &ast.ColumnRef{Column: col.Name}, nil
	}
	return sqlparse.ParseExpr(col.Expression)
}
