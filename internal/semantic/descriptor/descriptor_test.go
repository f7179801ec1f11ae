package descriptor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
    {"name": "RecentOrders", "statement": "SELECT orderkey FROM Orders WHERE orderkey > 0"}
  ],
  "relationships": [
    {"name": "OrdersCustomer", "models": ["Orders", "Customer"], "joinType": "MANY_TO_ONE", "condition": "Orders.custkey = Customer.custkey"}
  ]
}`

func newFixtureBuilder(t *testing.T, dynamic bool) *Builder {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(fixtureJSON))
	require.NoError(t, err)
	am, err := manifest.Analyze(m)
	require.NoError(t, err)
	return NewBuilder(am, dynamic, "tpch", "public")
}

func TestBuildModel_PhysicalColumnsOnly(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("Orders", "model", []string{"orderkey"}, false)
	require.NoError(t, err)
	assert.Equal(t, "Orders", d.Name)
	assert.Contains(t, d.SQL, "orderkey")
	assert.Contains(t, d.SQL, "SELECT")
	assert.Empty(t, d.RequiredObjects)
}

func TestBuildModel_ToOneCalculatedField(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("Orders", "model", []string{"orderkey", "customer_name"}, false)
	require.NoError(t, err)
	assert.Contains(t, d.RequiredObjects, "Customer")
	assert.Contains(t, d.SQL, "LEFT JOIN")
	assert.Contains(t, d.SQL, "customer_name")
}

func TestBuildModel_ToManyCalculatedField(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("Customer", "model", []string{"custkey", "total_price"}, false)
	require.NoError(t, err)
	assert.Contains(t, d.RequiredObjects, "Orders")
	assert.Contains(t, d.SQL, "LEFT JOIN")
	assert.Contains(t, d.SQL, "GROUP BY")
	assert.Contains(t, d.SQL, "total_price")
}

func TestBuildMetric(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("OrderMetrics", "metric", []string{"custkey", "order_count"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders"}, d.RequiredObjects)
	assert.Contains(t, d.SQL, "GROUP BY")
	assert.Contains(t, d.SQL, "order_count")
}

func TestBuildCumulativeMetric(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("DailyRevenue", "cumulativeMetric", []string{"orderdate", "revenue"}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Orders", DateSpineName}, d.RequiredObjects)
	assert.Contains(t, d.SQL, "revenue")
	assert.Contains(t, d.SQL, "date_trunc")
}

func TestDateSpineDescriptor(t *testing.T) {
	d := DateSpineDescriptor("DAY", "2020-01-01", "2020-12-31")
	assert.Equal(t, DateSpineName, d.Name)
	assert.Contains(t, d.SQL, "date_spine")
	assert.Contains(t, d.SQL, "2020-01-01")
}

func TestBuildView(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("RecentOrders", "view", nil, true)
	require.NoError(t, err)
	assert.Contains(t, d.RequiredObjects, "Orders")
	assert.Contains(t, d.SQL, "orderkey")
}

func TestBuildDummy_EmptyColumnsNotSourceOnly(t *testing.T) {
	b := newFixtureBuilder(t, true)
	d, err := b.Build("Orders", "model", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT NULL AS dummy_", d.SQL)
}

func TestRequiredColumns_DynamicModeNarrowsToClosure(t *testing.T) {
	b := newFixtureBuilder(t, true)
	cols, err := b.RequiredColumns("Orders", "model", []string{"customer_name"})
	require.NoError(t, err)
	assert.Contains(t, cols, "customer_name")
}

func TestRequiredColumns_FullMaterializationReturnsAllColumns(t *testing.T) {
	b := newFixtureBuilder(t, false)
	cols, err := b.RequiredColumns("Orders", "model", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"orderkey", "custkey", "totalprice", "orderdate", "customer", "customer_name"}, cols)
}
