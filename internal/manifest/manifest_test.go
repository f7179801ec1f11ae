package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ordersCustomerJSON is the worked TPCH-style fixture from spec.md §8.
const ordersCustomerJSON = `{
	"catalog": "tpch",
	"schema": "main",
	"models": [
		{
			"name": "Orders",
			"refSql": "SELECT * FROM tpch.orders",
			"primaryKey": "orderkey",
			"columns": [
				{"name": "orderkey", "type": "INT", "notNull": true, "kind": "physical"},
				{"name": "custkey", "type": "INT", "kind": "physical"},
				{"name": "totalprice", "type": "INT", "kind": "physical"},
				{"name": "customer_name", "type": "VARCHAR", "kind": "calculated", "expression": "customer.name"}
			]
		},
		{
			"name": "Customer",
			"refSql": "SELECT * FROM tpch.customer",
			"primaryKey": "custkey",
			"columns": [
				{"name": "custkey", "type": "INT", "notNull": true, "kind": "physical"},
				{"name": "name", "type": "VARCHAR", "kind": "physical"},
				{"name": "total_price", "type": "INT", "kind": "calculated", "expression": "sum(orders.totalprice)"}
			]
		}
	],
	"relationships": [
		{
			"name": "OrdersCustomer",
			"models": ["Orders", "Customer"],
			"joinType": "MANY_TO_ONE",
			"condition": "Orders.custkey = Customer.custkey"
		}
	]
}`

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader(`{"catalog": "tpch", "bogus": 1}`))
	assert.Error(t, err)
}

func TestLoad_CanonicalizesEnumCasing(t *testing.T) {
	m, err := Load(strings.NewReader(`{
		"relationships": [
			{"name": "r", "models": ["A", "B"], "joinType": "many_to_one", "condition": "A.x = B.y"}
		]
	}`))
	require.NoError(t, err)
	require.Len(t, m.Relationships, 1)
	assert.Equal(t, ManyToOne, m.Relationships[0].JoinType)
}

func TestAnalyze_OrdersCustomerFixture(t *testing.T) {
	m, err := Load(strings.NewReader(ordersCustomerJSON))
	require.NoError(t, err)

	am, err := Analyze(m)
	require.NoError(t, err)

	orders, ok := am.Model("Orders")
	require.True(t, ok)
	assert.Equal(t, "orderkey", orders.PrimaryKey)

	_, ok = am.Relationship("OrdersCustomer")
	assert.True(t, ok)

	catalog, schema := am.CatalogSchemaPrefix()
	assert.Equal(t, "tpch", catalog)
	assert.Equal(t, "main", schema)
}

func TestAnalyze_AllowsMutualCalculatedReference(t *testing.T) {
	// spec.md §8 scenario 4: Orders.customer_name and Customer.total_price
	// reference each other through the relationship. The manifest itself
	// must still analyze successfully — only planning a statement that
	// reaches both fails with a cycle (enforced later by the lineage
	// package, not here).
	m, err := Load(strings.NewReader(ordersCustomerJSON))
	require.NoError(t, err)

	_, err = Analyze(m)
	assert.NoError(t, err)
}

func TestAnalyze_DuplicateModelName(t *testing.T) {
	m := &Manifest{
		Models: []*Model{
			{Name: "Orders", RefSQL: "SELECT 1"},
			{Name: "Orders", RefSQL: "SELECT 2"},
		},
	}
	_, err := Analyze(m)
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "MANIFEST_INVALID", dup.Code())
}

func TestAnalyze_InvalidOrigin(t *testing.T) {
	t.Run("zero origins", func(t *testing.T) {
		m := &Manifest{Models: []*Model{{Name: "Orders"}}}
		_, err := Analyze(m)
		var invalid *InvalidOriginError
		require.ErrorAs(t, err, &invalid)
	})

	t.Run("two origins", func(t *testing.T) {
		m := &Manifest{Models: []*Model{{
			Name:           "Orders",
			RefSQL:         "SELECT 1",
			TableReference: &TableReference{Catalog: "tpch", Schema: "main", Table: "orders"},
		}}}
		_, err := Analyze(m)
		var invalid *InvalidOriginError
		require.ErrorAs(t, err, &invalid)
	})
}

func TestAnalyze_UnknownBaseObject(t *testing.T) {
	m := &Manifest{
		Metrics: []*Metric{{Name: "Revenue", BaseObject: "DoesNotExist"}},
	}
	_, err := Analyze(m)
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "UNKNOWN_OBJECT", unknown.Code())
}

func TestAnalyze_UnknownRelationshipEndpoint(t *testing.T) {
	m := &Manifest{
		Models: []*Model{{Name: "Orders", RefSQL: "SELECT 1"}},
		Relationships: []*Relationship{{
			Name:      "r",
			Models:    [2]string{"Orders", "Missing"},
			JoinType:  ManyToOne,
			Condition: "Orders.x = Missing.y",
		}},
	}
	_, err := Analyze(m)
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
}

func TestAnalyze_InvalidWindow(t *testing.T) {
	m := &Manifest{
		Models:            []*Model{{Name: "Orders", RefSQL: "SELECT 1"}},
		CumulativeMetrics: []*CumulativeMetric{{
			Name:       "RunningTotal",
			BaseObject: "Orders",
			Window:     &Window{TimeColumn: "orderdate", TimeUnit: "DAY", Start: "2024-01-31", End: "2024-01-01"},
		}},
	}
	_, err := Analyze(m)
	var invalid *InvalidWindowError
	require.ErrorAs(t, err, &invalid)
}

func TestAnalyze_RelationshipColumnRequiresKnownRelationship(t *testing.T) {
	m := &Manifest{
		Models: []*Model{
			{Name: "Customer", RefSQL: "SELECT 1"},
			{Name: "Orders", RefSQL: "SELECT 1", Columns: []*Column{
				{Name: "customer", Kind: ColumnRelationship, RelationshipType: "Customer", Relationship: "OrdersCustomer"},
			}},
		},
	}
	_, err := Analyze(m)
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "OrdersCustomer", unknown.Ref)
}
