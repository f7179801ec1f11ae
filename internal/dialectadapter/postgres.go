package dialectadapter

import (
	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/token"
)

// Postgres is exercised by tests (spec.md §4.G) to prove the adapter
// boundary is real rather than a single-dialect special case. Its reserved
// word list is wider than DuckDB's (e.g. "user", "freeze"), and it has no
// native date_spine macro, so every call is lowered to generate_series.
var Postgres = newBuilder("postgres").
	reserved(
		"user", "order", "group", "table", "select", "from", "where", "index",
		"all", "and", "any", "array", "as", "asc", "asymmetric", "authorization",
		"between", "binary", "both", "case", "cast", "check", "collate", "column",
		"constraint", "create", "cross", "current_catalog", "current_role",
		"current_schema", "current_time", "current_timestamp", "current_user",
		"default", "deferrable", "desc", "distinct", "do", "else", "end",
		"except", "false", "fetch", "for", "foreign", "freeze", "full", "grant",
		"having", "ilike", "in", "initially", "inner", "intersect", "into", "is",
		"isnull", "join", "lateral", "leading", "left", "like", "limit",
		"localtime", "localtimestamp", "natural", "not", "notnull", "null",
		"offset", "on", "only", "or", "outer", "overlaps", "placing", "primary",
		"references", "returning", "right", "session_user", "similar", "some",
		"symmetric", "then", "to", "trailing", "true", "union", "unique",
		"using", "variadic", "verbose", "when", "window", "with",
	).
	tableFuncRewrite("date_spine", rewriteDateSpineToGenerateSeries).
	build()

// rewriteDateSpineToGenerateSeries lowers date_spine(unit, start, end) to
// Postgres's native generate_series over a computed interval step, since
// Postgres has no date_spine macro. args are (unit, start, end) in that
// order, matching internal/semantic/descriptor.DateSpineDescriptor.
func rewriteDateSpineToGenerateSeries(args []ast.Expr, alias string) ast.TableRef {
	if len(args) != 3 {
		return &ast.FuncTable{Name: "generate_series", Args: args, Alias: alias}
	}
	unit, start, end := args[0], args[1], args[2]

	step := &ast.CastExpr{
		Expr: &ast.BinaryExpr{
			Left:  &ast.Literal{Type: ast.LiteralString, Value: "1 "},
			Op:    token.DPIPE,
			Right: unit,
		},
		TypeName: "interval",
	}

	return &ast.FuncTable{
		Name: "generate_series",
		Args: []ast.Expr{
			&ast.CastExpr{Expr: start, TypeName: "timestamp"},
			&ast.CastExpr{Expr: end, TypeName: "timestamp"},
			step,
		},
		Alias: alias,
	}
}
