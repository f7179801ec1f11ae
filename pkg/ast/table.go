package ast

// TableName is a table or manifest-object name reference, optionally
// catalog/schema-qualified.
type TableName struct {
	NodeInfo
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

func (*TableName) tableRefNode() {}

// EffectiveName returns the alias if set, otherwise the bare name — the
// name other clauses use to refer back to this table.
func (t *TableName) EffectiveName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// DerivedTable is a subquery used as a FROM-clause source.
type DerivedTable struct {
	NodeInfo
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) tableRefNode() {}

// LateralTable is a LATERAL subquery.
type LateralTable struct {
	NodeInfo
	Select *SelectStmt
	Alias  string
}

func (*LateralTable) tableRefNode() {}

// FuncTable is a table-valued function call used as a FROM-clause source
// (e.g. generate_series(...), the date-spine macro emitted by
// internal/semantic/descriptor). Name and quoting of the function name are
// dialect-specific — the dialect adapter rewrites Name for engines that lack
// the function under this spelling.
type FuncTable struct {
	NodeInfo
	Name  string
	Args  []Expr
	Alias string
}

func (*FuncTable) tableRefNode() {}

// EffectiveName returns the alias if set, otherwise the function name.
func (t *FuncTable) EffectiveName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}
