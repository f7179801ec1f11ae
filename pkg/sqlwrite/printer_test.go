package sqlwrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
)

func render(t *testing.T, sql string) string {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	return Print(stmt)
}

func TestPrint_SimpleSelect(t *testing.T) {
	out := render(t, "SELECT orderkey FROM Orders LIMIT 200")
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "orderkey")
	assert.Contains(t, out, "FROM")
	assert.Contains(t, out, "Orders")
	assert.Contains(t, out, "LIMIT")
	assert.Contains(t, out, "200")
}

func TestPrint_QuotesReservedIdentifier(t *testing.T) {
	out := render(t, `SELECT albumId FROM "Order"`)
	assert.Contains(t, out, `"Order"`)
}

func TestPrint_WithClauseRoundTrips(t *testing.T) {
	out := render(t, "WITH c AS (SELECT 1 AS x) SELECT x FROM c")
	assert.True(t, strings.HasPrefix(out, "WITH"))
	assert.Contains(t, out, "c AS (")
}

func TestPrint_JoinOnCondition(t *testing.T) {
	out := render(t, "SELECT 1 FROM Orders o JOIN Customer c ON o.custkey = c.custkey")
	assert.Contains(t, out, "JOIN")
	assert.Contains(t, out, "ON")
	assert.Contains(t, out, "o.custkey = c.custkey")
}

func TestPrint_UnionAll(t *testing.T) {
	out := render(t, "SELECT 1 UNION ALL SELECT 2")
	assert.Contains(t, out, "UNION")
	assert.Contains(t, out, "ALL")
}

func TestPrintExpr_FuncCallWithFilterAndWindow(t *testing.T) {
	stmt, err := sqlparse.Parse("SELECT sum(x) FILTER (WHERE x > 0) OVER (PARTITION BY y) FROM t")
	require.NoError(t, err)
	out := Print(stmt)
	assert.Contains(t, out, "sum(x)")
	assert.Contains(t, out, "FILTER")
	assert.Contains(t, out, "OVER")
	assert.Contains(t, out, "PARTITION BY")
}

func TestQuoteIdent_PassesThroughPlainNames(t *testing.T) {
	assert.Equal(t, "orders", quoteIdent("orders"))
	assert.Equal(t, "Orders", quoteIdent("Orders"))
}

func TestQuoteIdent_QuotesNamesWithSpaces(t *testing.T) {
	assert.Equal(t, `"order date"`, quoteIdent("order date"))
}
