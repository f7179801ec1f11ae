package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semlayer/internal/dialectadapter"
	"github.com/leapstack-labs/semlayer/internal/manifest"
)

const fixtureJSON = `{
  "catalog": "tpch",
  "schema": "public",
  "models": [
    {
      "name": "Orders",
      "refSql": "SELECT * FROM tpch.orders",
      "primaryKey": "orderkey",
      "columns": [
        {"name": "orderkey", "type": "INT", "kind": "PHYSICAL"},
        {"name": "custkey", "type": "INT", "kind": "PHYSICAL"},
        {"name": "totalprice", "type": "INT", "kind": "PHYSICAL"},
        {"name": "orderdate", "type": "DATE", "kind": "PHYSICAL"},
        {"name": "customer", "type": "RELATIONSHIP", "kind": "RELATIONSHIP", "relationshipType": "Customer", "relationship": "OrdersCustomer"},
        {"name": "customer_name", "type": "VARCHAR", "kind": "CALCULATED", "expression": "customer.name"}
      ]
    },
    {
      "name": "Customer",
      "refSql": "SELECT * FROM tpch.customer",
      "primaryKey": "custkey",
      "columns": [
        {"name": "custkey", "type": "INT", "kind": "PHYSICAL"},
        {"name": "name", "type": "VARCHAR", "kind": "PHYSICAL"},
        {"name": "orders", "type": "RELATIONSHIP", "kind": "RELATIONSHIP", "relationshipType": "Orders", "relationship": "OrdersCustomer"},
        {"name": "total_price", "type": "INT", "kind": "CALCULATED", "expression": "sum(orders.totalprice)"}
      ]
    }
  ],
  "cumulativeMetrics": [
    {
      "name": "DailyRevenue",
      "baseObject": "Orders",
      "measure": {"name": "revenue", "aggregation": "sum", "column": "totalprice"},
      "window": {"timeColumn": "orderdate", "timeUnit": "DAY", "start": "2020-01-01", "end": "2020-12-31"}
    }
  ],
  "relationships": [
    {"name": "OrdersCustomer", "models": ["Orders", "Customer"], "joinType": "MANY_TO_ONE", "condition": "Orders.custkey = Customer.custkey"}
  ]
}`

func newPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := New(Config{})
	require.NoError(t, err)
	return p
}

func sess() SessionContext {
	return SessionContext{Catalog: "tpch", Schema: "public", EnableDynamicFields: true}
}

func TestPlanner_Plan(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	sql, err := p.Plan(context.Background(), am, "SELECT orderkey, customer_name FROM Orders", sess(), nil)
	require.NoError(t, err)
	assert.Contains(t, sql, "WITH")
	assert.Contains(t, sql, "Orders")
}

func TestPlanner_Plan_MutualCalculatedColumnCycleFails(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	_, err = p.Plan(context.Background(), am,
		"SELECT customer_name, total_price FROM Customer c LEFT JOIN Orders o ON c.custkey = o.custkey", sess(), nil)
	require.Error(t, err)
	var cycleErr *manifest.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, manifest.CodeCycle, cycleErr.Code())
}

func TestPlanner_Plan_PostgresDialect(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	sql, err := p.Plan(context.Background(), am, "SELECT orderdate, revenue FROM DailyRevenue", sess(), dialectadapter.Postgres)
	require.NoError(t, err)
	assert.NotContains(t, sql, "date_spine(")
	assert.Contains(t, sql, "generate_series")
}

func TestPlanner_DryPlan_ModelingOnlySkipsDialectAdapter(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	sql, err := p.DryPlan(context.Background(), am, "SELECT orderdate, revenue FROM DailyRevenue", sess(), true)
	require.NoError(t, err)
	assert.Contains(t, sql, "date_spine")
}

func TestPlanner_DryRun_ResolvesExplicitColumnTypes(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	cols, err := p.DryRun(context.Background(), am, "SELECT orderkey, totalprice FROM Orders", sess())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Name: "orderkey", Type: "INT"}, cols[0])
	assert.Equal(t, Column{Name: "totalprice", Type: "INT"}, cols[1])
}

func TestPlanner_DryRun_StarExpandsModelColumns(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	cols, err := p.DryRun(context.Background(), am, "SELECT * FROM Customer", sess())
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Contains(t, names, "custkey")
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "total_price")
}

func TestPlanner_DryRun_AliasedExpressionHasNoGuessedType(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	cols, err := p.DryRun(context.Background(), am, "SELECT orderkey + 1 AS bumped FROM Orders", sess())
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "bumped", cols[0].Name)
	assert.Equal(t, "", cols[0].Type)
}

func TestPlanner_Validate(t *testing.T) {
	p := newPlanner(t)
	am, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)

	results := p.Validate(am, "column_is_valid", map[string]any{"model": "Orders", "column": "orderkey"})
	require.Len(t, results, 1)
	assert.Equal(t, "PASS", string(results[0].Status))
}

func TestPlanner_Analyzed_MemoizesByContentHash(t *testing.T) {
	p := newPlanner(t)
	am1, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)
	am2, err := p.Analyzed(strings.NewReader(fixtureJSON))
	require.NoError(t, err)
	assert.Same(t, am1, am2)
}
