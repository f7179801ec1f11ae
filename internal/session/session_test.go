package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallManifestJSON = `{
  "catalog": "tpch",
  "schema": "public",
  "models": [
    {
      "name": "Orders",
      "refSql": "SELECT * FROM tpch.orders",
      "primaryKey": "orderkey",
      "columns": [
        {"name": "orderkey", "type": "INT", "kind": "PHYSICAL"}
      ]
    }
  ]
}`

func TestCache_AnalyzedManifest_CachesByContentHash(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	am1, hash1, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)
	am2, hash2, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)

	assert.Equal(t, hash1, hash2)
	assert.Same(t, am1, am2)
}

func TestCache_AnalyzedManifest_DifferentContentDifferentHash(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	_, hash1, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)

	other := strings.Replace(smallManifestJSON, "Orders", "Purchases", 1)
	_, hash2, err := c.AnalyzedManifest(strings.NewReader(other))
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2)
}

func TestCache_Builder_ReusesForSameSessionAndMode(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	am, hash, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)

	sess := Context{Catalog: "tpch", Schema: "public", EnableDynamicFields: true}
	b1 := c.Builder(am, hash, sess, ModePlan)
	b2 := c.Builder(am, hash, sess, ModePlan)
	assert.Same(t, b1, b2)

	b3 := c.Builder(am, hash, Context{Catalog: "tpch", Schema: "public", EnableDynamicFields: false}, ModePlan)
	assert.NotSame(t, b1, b3)
}

func TestCache_Builder_DistinguishesMode(t *testing.T) {
	c, err := NewCache()
	require.NoError(t, err)

	am, hash, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)

	sess := Context{Catalog: "tpch", Schema: "public", EnableDynamicFields: true}
	planBuilder := c.Builder(am, hash, sess, ModePlan)
	dryRunBuilder := c.Builder(am, hash, sess, ModeDryRun)
	assert.NotSame(t, planBuilder, dryRunBuilder)
}

func TestNewCache_BoundedCapacityEvicts(t *testing.T) {
	c, err := NewCache(WithManifestCapacity(1))
	require.NoError(t, err)

	_, hash1, err := c.AnalyzedManifest(strings.NewReader(smallManifestJSON))
	require.NoError(t, err)

	other := strings.Replace(smallManifestJSON, "Orders", "Purchases", 1)
	_, _, err = c.AnalyzedManifest(strings.NewReader(other))
	require.NoError(t, err)

	assert.Equal(t, 1, c.manifests.Len())
	_, ok := c.manifests.Get(hash1)
	assert.False(t, ok, "capacity-1 cache should have evicted the first entry")
}
