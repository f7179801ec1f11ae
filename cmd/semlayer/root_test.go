package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
        {"name": "name", "type": "VARCHAR", "kind": "PHYSICAL"}
      ]
    }
  ],
  "relationships": [
    {"name": "OrdersCustomer", "models": ["Orders", "Customer"], "joinType": "MANY_TO_ONE", "condition": "Orders.custkey = Customer.custkey"}
  ]
}`

func writeFixtureManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "semlayer v")
}

func TestPlanCommand(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "plan", "--manifest", manifestPath, "--output", "text",
		"SELECT orderkey, customer_name FROM Orders")
	require.NoError(t, err)
	assert.Contains(t, out, "WITH")
	assert.Contains(t, out, "orderkey")
}

func TestPlanCommand_UnknownDialectErrors(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	_, err := runCLI(t, "plan", "--manifest", manifestPath, "--dialect", "oracle", "SELECT orderkey FROM Orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dialect")
}

func TestDryPlanCommand_ModelingOnly(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "dry-plan", "--manifest", manifestPath, "--output", "text",
		"SELECT orderkey FROM Orders")
	require.NoError(t, err)
	assert.Contains(t, out, "orderkey")
}

func TestDryRunCommand_JSON(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "dry-run", "--manifest", manifestPath, "--output", "json",
		"SELECT orderkey FROM Orders")
	require.NoError(t, err)

	var cols []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cols))
	require.Len(t, cols, 1)
	assert.Equal(t, "orderkey", cols[0].Name)
	assert.Equal(t, "INT", cols[0].Type)
}

func TestValidateCommand_ColumnIsValid(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "validate", "--manifest", manifestPath, "--output", "json",
		"--rule", "column_is_valid", "--model", "Orders", "--column", "orderkey")
	require.NoError(t, err)
	assert.Contains(t, out, `"PASS"`)
}

func TestValidateCommand_MissingRuleFlagErrors(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	_, err := runCLI(t, "validate", "--manifest", manifestPath, "--model", "Orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--rule is required")
}

func TestValidateRulesCommand_ListsBuiltins(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "validate", "rules", "--manifest", manifestPath, "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, out, "column_is_valid")
}

func TestLineageCommand_ResolvesSourceColumns(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	out, err := runCLI(t, "lineage", "--manifest", manifestPath, "--output", "json",
		"--column", "Orders.customer_name")
	require.NoError(t, err)
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "name")
}

func TestLineageCommand_RequiresColumnFlag(t *testing.T) {
	manifestPath := writeFixtureManifest(t)
	_, err := runCLI(t, "lineage", "--manifest", manifestPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--column is required")
}

func TestRootCommand_MissingManifestErrors(t *testing.T) {
	_, err := runCLI(t, "plan", "SELECT 1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "manifest"))
}
