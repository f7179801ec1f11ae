package descriptor

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// dateSpineFuncName is the FuncTable/FuncCall name of the date-spine macro. It
// is a dialect macro; the dialect adapter (§4.G) rewrites it for engines
// that lack it natively.
const dateSpineFuncName = "date_spine"

// DateSpineDescriptor builds the shared date-spine CTE for unit over
// [start, end), added once per statement if any cumulative metric is
// referenced (spec.md §4.E).
func DateSpineDescriptor(unit, start, end string) *Descriptor {
	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: []ast.SelectItem{{Expr: &ast.ColumnRef{Column: "bucket"}}},
		From: &ast.FromClause{Source: &ast.FuncTable{
			Name: dateSpineFuncName,
			Args: []ast.Expr{
				&ast.Literal{Type: ast.LiteralString, Value: unit},
				&ast.Literal{Type: ast.LiteralString, Value: start},
				&ast.Literal{Type: ast.LiteralString, Value: end},
			},
			Alias: "bucket",
		}},
	}}}
	return &Descriptor{Name: DateSpineName, SQL: sqlwrite.Print(stmt)}
}

// buildCumulativeMetric joins the shared date spine against the base object
// aggregated by its window column bucketed to the window unit (spec.md
// §4.E).
func (b *Builder) buildCumulativeMetric(object string, columns []string) (*Descriptor, error) {
	cm, ok := b.am.CumulativeMetric(object)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "cumulativeMetric"}
	}
	if cm.Window == nil || cm.Measure == nil {
		return nil, fmt.Errorf("descriptor: cumulative metric %s missing window or measure", object)
	}

	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}

	items := []ast.SelectItem{
		{Expr: &ast.ColumnRef{Table: "ds", Column: "bucket"}, Alias: cm.Window.TimeColumn},
	}
	if want[cm.Measure.Name] || len(columns) == 0 {
		items = append(items, ast.SelectItem{
			Expr: &ast.FuncCall{
				Name: cm.Measure.Aggregation,
				Args: []ast.Expr{&ast.ColumnRef{Table: cm.BaseObject, Column: cm.Measure.Column}},
			},
			Alias: cm.Measure.Name,
		})
	}

	bucketOf := &ast.FuncCall{
		Name: "date_trunc",
		Args: []ast.Expr{
			&ast.Literal{Type: ast.LiteralString, Value: cm.Window.TimeUnit},
			&ast.ColumnRef{Table: cm.BaseObject, Column: cm.Window.TimeColumn},
		},
	}

	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: items,
		From: &ast.FromClause{
			Source: &ast.TableName{Name: DateSpineName, Alias: "ds"},
			Joins: []*ast.Join{{
				Type:      ast.JoinLeft,
				Right:     &ast.TableName{Name: cm.BaseObject},
				Condition: &ast.BinaryExpr{Left: bucketOf, Op: token.EQ, Right: &ast.ColumnRef{Table: "ds", Column: "bucket"}},
			}},
		},
		GroupBy: []ast.Expr{&ast.ColumnRef{Table: "ds", Column: "bucket"}},
	}}}

	return &Descriptor{
		Name:            object,
		RequiredObjects: []string{cm.BaseObject, DateSpineName},
		SQL:             sqlwrite.Print(stmt),
	}, nil
}
