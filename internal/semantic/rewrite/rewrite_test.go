package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semlayer/internal/dialectadapter"
	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
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
  "metrics": [
    {
      "name": "OrderMetrics",
      "baseObject": "Orders",
      "dimensions": [{"name": "custkey", "type": "INT", "kind": "PHYSICAL"}],
      "measures": [{"name": "order_count", "type": "INT", "kind": "CALCULATED", "expression": "count(*)"}]
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
  "views": [
    {"name": "RecentOrders", "statement": "SELECT orderkey, custkey FROM Orders WHERE orderkey > 0"}
  ],
  "relationships": [
    {"name": "OrdersCustomer", "models": ["Orders", "Customer"], "joinType": "MANY_TO_ONE", "condition": "Orders.custkey = Customer.custkey"}
  ]
}`

func newFixtureManifest(t *testing.T) *manifest.AnalyzedManifest {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(fixtureJSON))
	require.NoError(t, err)
	am, err := manifest.Analyze(m)
	require.NoError(t, err)
	return am
}

func planSQL(t *testing.T, am *manifest.AnalyzedManifest, sql string) *Result {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	result, err := Plan(am, stmt, Options{Catalog: "tpch", Schema: "public", EnableDynamicFields: true})
	require.NoError(t, err)
	return result
}

func TestPlan_SimpleModelReference(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT orderkey FROM Orders LIMIT 200")
	assert.Contains(t, result.Objects, "Orders")
	assert.Contains(t, result.SQL, "WITH")
	assert.Contains(t, result.SQL, "orderkey")
	assert.Contains(t, result.SQL, "LIMIT")
}

func TestPlan_ToOneCalculatedFieldPullsInRelationshipTarget(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT customer_name FROM Orders")
	assert.Contains(t, result.Objects, "Orders")
	assert.Contains(t, result.Objects, "Customer")
	// Customer must be defined before Orders references it.
	custIdx, ordIdx := indexOf(result.Objects, "Customer"), indexOf(result.Objects, "Orders")
	assert.Less(t, custIdx, ordIdx)
	assert.Contains(t, result.SQL, "LEFT JOIN")
}

func TestPlan_ToManyCalculatedFieldPullsInRelationshipTarget(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT total_price FROM Customer WHERE custkey = 370")
	assert.Contains(t, result.Objects, "Customer")
	assert.Contains(t, result.Objects, "Orders")
	ordIdx, custIdx := indexOf(result.Objects, "Orders"), indexOf(result.Objects, "Customer")
	assert.Less(t, ordIdx, custIdx)
}

func TestPlan_MutualCalculatedColumnCycleFails(t *testing.T) {
	// spec.md §8 scenario 4: customer_name (Orders) dereferences into
	// Customer, and total_price (Customer) dereferences back into Orders -
	// planning a statement that references both fails with CYCLE naming one
	// of the two columns, not the rewrite engine's own defensive check.
	am := newFixtureManifest(t)
	stmt, err := sqlparse.Parse("SELECT customer_name, total_price FROM Customer c LEFT JOIN Orders o ON c.custkey = o.custkey")
	require.NoError(t, err)

	_, err = Plan(am, stmt, Options{Catalog: "tpch", Schema: "public", EnableDynamicFields: true})
	require.Error(t, err)
	var cycleErr *manifest.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, manifest.CodeCycle, cycleErr.Code())
	assert.Contains(t, []string{"Orders.customer_name", "Customer.total_price"}, cycleErr.Column)
}

func TestPlan_MetricPullsInBaseObject(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT custkey, order_count FROM OrderMetrics")
	assert.Contains(t, result.Objects, "Orders")
	assert.Contains(t, result.Objects, "OrderMetrics")
	ordIdx, metricIdx := indexOf(result.Objects, "Orders"), indexOf(result.Objects, "OrderMetrics")
	assert.Less(t, ordIdx, metricIdx)
}

func TestPlan_CumulativeMetricAddsDateSpine(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT orderdate, revenue FROM DailyRevenue")
	assert.Contains(t, result.Objects, "__date_spine__")
	assert.Contains(t, result.Objects, "Orders")
	assert.Contains(t, result.Objects, "DailyRevenue")
	assert.Contains(t, result.SQL, "date_spine")
}

func TestPlan_ViewExpandsInline(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT orderkey FROM RecentOrders")
	assert.Contains(t, result.Objects, "RecentOrders")
	assert.Contains(t, result.Objects, "Orders")
	ordIdx, viewIdx := indexOf(result.Objects, "Orders"), indexOf(result.Objects, "RecentOrders")
	assert.Less(t, ordIdx, viewIdx)
}

func TestPlan_UnknownTablePassesThrough(t *testing.T) {
	am := newFixtureManifest(t)
	result := planSQL(t, am, "SELECT * FROM some_other_table")
	assert.Empty(t, result.Objects)
	assert.Contains(t, result.SQL, "some_other_table")
}

func TestPlan_PostgresDialectRewritesDateSpine(t *testing.T) {
	am := newFixtureManifest(t)
	stmt, err := sqlparse.Parse("SELECT orderdate, revenue FROM DailyRevenue")
	require.NoError(t, err)
	result, err := Plan(am, stmt, Options{
		Catalog: "tpch", Schema: "public", EnableDynamicFields: true,
		Dialect: dialectadapter.Postgres,
	})
	require.NoError(t, err)
	assert.NotContains(t, result.SQL, "date_spine(")
	assert.Contains(t, result.SQL, "generate_series")
}

func TestPlan_PostgresDialectQuotesReservedIdentifier(t *testing.T) {
	am := newFixtureManifest(t)
	const sql = `SELECT custkey AS freeze FROM Customer`

	pgStmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	pgResult, err := Plan(am, pgStmt, Options{
		Catalog: "tpch", Schema: "public", EnableDynamicFields: true,
		Dialect: dialectadapter.Postgres,
	})
	require.NoError(t, err)
	assert.Contains(t, pgResult.SQL, `"freeze"`)

	duckStmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	duckResult, err := Plan(am, duckStmt, Options{Catalog: "tpch", Schema: "public", EnableDynamicFields: true})
	require.NoError(t, err)
	assert.NotContains(t, duckResult.SQL, `"freeze"`)
}

func TestPlan_SkipDialectAdapterLeavesDateSpineUnrewritten(t *testing.T) {
	am := newFixtureManifest(t)
	stmt, err := sqlparse.Parse("SELECT orderdate, revenue FROM DailyRevenue")
	require.NoError(t, err)

	result, err := Plan(am, stmt, Options{
		Catalog: "tpch", Schema: "public", EnableDynamicFields: true,
		Dialect: dialectadapter.Postgres, SkipDialectAdapter: true,
	})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "date_spine")
	assert.NotContains(t, result.SQL, "generate_series")
}

func indexOf(items []string, target string) int {
	for i, v := range items {
		if v == target {
			return i
		}
	}
	return -1
}
