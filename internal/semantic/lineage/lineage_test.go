package lineage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semlayer/internal/manifest"
)

const ordersCustomerJSON = `{
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
  "relationships": [
    {"name": "OrdersCustomer", "models": ["Orders", "Customer"], "joinType": "MANY_TO_ONE", "condition": "Orders.custkey = Customer.custkey"}
  ]
}`

func loadAnalyzer(t *testing.T, doc string) *Analyzer {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(doc))
	require.NoError(t, err)
	am, err := manifest.Analyze(m)
	require.NoError(t, err)
	return New(am)
}

func TestRequiredFields_PhysicalColumn(t *testing.T) {
	a := loadAnalyzer(t, ordersCustomerJSON)
	rf, err := a.RequiredFields([]string{"Orders.orderkey"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders"}, rf.Objects)
	assert.Equal(t, []string{"orderkey"}, rf.Columns("Orders"))
}

func TestRequiredFields_ToOneCalculatedField(t *testing.T) {
	a := loadAnalyzer(t, ordersCustomerJSON)
	rf, err := a.RequiredFields([]string{"Orders.customer_name"})
	require.NoError(t, err)
	// Customer must precede Orders: Orders depends on Customer.
	require.Equal(t, []string{"Customer", "Orders"}, rf.Objects)
	assert.Equal(t, []string{"custkey", "name"}, rf.Columns("Customer"))
	assert.Equal(t, []string{"custkey"}, rf.Columns("Orders"))
}

func TestRequiredFields_ToManyCalculatedField(t *testing.T) {
	a := loadAnalyzer(t, ordersCustomerJSON)
	rf, err := a.RequiredFields([]string{"Customer.total_price"})
	require.NoError(t, err)
	require.Equal(t, []string{"Orders", "Customer"}, rf.Objects)
	assert.Equal(t, []string{"custkey", "totalprice"}, rf.Columns("Orders"))
	assert.Equal(t, []string{"custkey"}, rf.Columns("Customer"))
}

func TestRequiredFields_UnionOfMultipleInputs(t *testing.T) {
	// Orders.customer_name dereferences into Customer, and Customer.total_price
	// dereferences back into Orders - requesting both together closes an
	// object-level cycle, which must surface as a manifest.CycleError naming
	// one of the two columns (spec.md §8 property 6), not succeed.
	a := loadAnalyzer(t, ordersCustomerJSON)
	_, err := a.RequiredFields([]string{"Orders.customer_name", "Customer.total_price"})
	require.Error(t, err)
	var cycleErr *manifest.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, manifest.CodeCycle, cycleErr.Code())
	assert.Contains(t, []string{"Orders.customer_name", "Customer.total_price"}, cycleErr.Column)
}

func TestRequiredFields_MutualCycleFailsOnlyWhenBothRequested(t *testing.T) {
	mutual := `{
	  "catalog": "t", "schema": "s",
	  "models": [
	    {"name": "A", "refSql": "SELECT 1", "columns": [
	      {"name": "x", "type": "INT", "kind": "CALCULATED", "expression": "y"},
	      {"name": "y", "type": "INT", "kind": "CALCULATED", "expression": "x"}
	    ]}
	  ]
	}`
	a2 := loadAnalyzer(t, mutual)
	_, err := a2.RequiredFields([]string{"A.x"})
	require.Error(t, err)
	var cycleErr *manifest.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestRequiredFields_CountStarRequiresNoColumns(t *testing.T) {
	doc := `{
	  "catalog": "t", "schema": "s",
	  "models": [
	    {"name": "A", "refSql": "SELECT 1", "columns": [
	      {"name": "n", "type": "INT", "kind": "CALCULATED", "expression": "count(*)"}
	    ]}
	  ]
	}`
	a := loadAnalyzer(t, doc)
	rf, err := a.RequiredFields([]string{"A.n"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, rf.Objects)
	assert.Empty(t, rf.Columns("A"))
}

func TestSourceColumns_Immediate(t *testing.T) {
	a := loadAnalyzer(t, ordersCustomerJSON)
	cols, err := a.SourceColumns("Customer.total_price")
	require.NoError(t, err)
	assert.Equal(t, []string{"totalprice"}, cols["Orders"])
}
