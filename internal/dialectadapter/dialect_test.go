package dialectadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/semlayer/pkg/ast"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
)

func TestDuckDB_HasNoDateSpineRewrite(t *testing.T) {
	_, ok := DuckDB.TableFuncRewrite("date_spine")
	assert.False(t, ok)
}

func TestPostgres_IsReservedBeyondANSIDefaults(t *testing.T) {
	assert.True(t, Postgres.IsReserved("freeze"))
	assert.True(t, Postgres.IsReserved("USER"))
	assert.False(t, Postgres.IsReserved("customer_name"))
}

func TestAdapt_RewritesDateSpineFuncTableForPostgres(t *testing.T) {
	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: []ast.SelectItem{{Expr: &ast.ColumnRef{Column: "bucket"}}},
		From: &ast.FromClause{Source: &ast.FuncTable{
			Name: "date_spine",
			Args: []ast.Expr{
				&ast.Literal{Type: ast.LiteralString, Value: "DAY"},
				&ast.Literal{Type: ast.LiteralString, Value: "2020-01-01"},
				&ast.Literal{Type: ast.LiteralString, Value: "2020-12-31"},
			},
			Alias: "bucket",
		}},
	}}}

	Adapt(Postgres, stmt)
	sql := sqlwrite.Print(stmt)

	assert.NotContains(t, sql, "date_spine")
	assert.Contains(t, sql, "generate_series")
	assert.Contains(t, sql, "interval")
}

func TestAdapt_LeavesDuckDBStatementUnchanged(t *testing.T) {
	stmt := &ast.SelectStmt{Body: &ast.SelectBody{Left: &ast.SelectCore{
		Columns: []ast.SelectItem{{Expr: &ast.ColumnRef{Column: "bucket"}}},
		From: &ast.FromClause{Source: &ast.FuncTable{
			Name: "date_spine",
			Args: []ast.Expr{
				&ast.Literal{Type: ast.LiteralString, Value: "DAY"},
				&ast.Literal{Type: ast.LiteralString, Value: "2020-01-01"},
				&ast.Literal{Type: ast.LiteralString, Value: "2020-12-31"},
			},
			Alias: "bucket",
		}},
	}}}

	Adapt(DuckDB, stmt)
	sql := sqlwrite.Print(stmt)

	assert.Contains(t, sql, "date_spine")
}
