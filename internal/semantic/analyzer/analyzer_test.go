package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
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

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	m, err := manifest.Load(strings.NewReader(ordersCustomerJSON))
	require.NoError(t, err)
	am, err := manifest.Analyze(m)
	require.NoError(t, err)
	return New(am, Session{Catalog: "tpch", Schema: "public", EnableDynamicFields: true})
}

func analyze(t *testing.T, a *Analyzer, sql string) *Result {
	t.Helper()
	stmt, err := sqlparse.Parse(sql)
	require.NoError(t, err)
	result, err := a.Analyze(stmt)
	require.NoError(t, err)
	return result
}

func TestAnalyze_SimpleModelReference(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "SELECT orderkey FROM Orders LIMIT 200")
	require.Len(t, r.Objects, 1)
	assert.Equal(t, "Orders", r.Objects[0].Name)
	assert.Equal(t, "model", r.Objects[0].Kind)
	assert.Contains(t, r.CollectedColumns["Orders"], "orderkey")
}

func TestAnalyze_UnknownTablePassesThrough(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "SELECT * FROM unknown_table")
	assert.Empty(t, r.Objects)
}

func TestAnalyze_QualifiedColumnReference(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "SELECT o.orderkey FROM Orders o")
	assert.Contains(t, r.CollectedColumns["Orders"], "orderkey")
}

func TestAnalyze_UnqualifiedAmbiguousColumn(t *testing.T) {
	a := newTestAnalyzer(t)
	stmt, err := sqlparse.Parse("SELECT custkey FROM Orders, Customer")
	require.NoError(t, err)
	_, err = a.Analyze(stmt)
	require.Error(t, err)
	var ambiguous *AmbiguousIdentifierError
	require.ErrorAs(t, err, &ambiguous)
}

func TestAnalyze_CountStarIsSourceNode(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "SELECT COUNT(*) FROM Orders")
	assert.Contains(t, r.SourceNodes, "Orders")
	assert.Empty(t, r.CollectedColumns["Orders"])
}

func TestAnalyze_CTEShadowsManifestObject(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "WITH Orders AS (SELECT 1 AS x) SELECT x FROM Orders")
	for _, obj := range r.Objects {
		assert.NotEqual(t, "Orders", obj.Name)
	}
}

func TestAnalyze_SubqueryReferencesPropagate(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, "SELECT orderkey FROM Orders WHERE custkey IN (SELECT custkey FROM Customer)")
	names := make([]string, 0)
	for _, o := range r.Objects {
		names = append(names, o.Name)
	}
	assert.Contains(t, names, "Orders")
	assert.Contains(t, names, "Customer")
	assert.Contains(t, r.CollectedColumns["Customer"], "custkey")
}

func TestAnalyze_DifferentCatalogPassesThrough(t *testing.T) {
	a := newTestAnalyzer(t)
	r := analyze(t, a, `SELECT 1 FROM other_catalog.public."Orders"`)
	assert.Empty(t, r.Objects)
}
