// Package manifest holds the typed representation of the logical catalog
// consumed by the planner: models, metrics, cumulative metrics, views,
// relationships, enum definitions and macros.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Manifest is the declarative description of the logical catalog.
type Manifest struct {
	Catalog           string              `json:"catalog"`
	Schema            string              `json:"schema"`
	Models            []*Model            `json:"models"`
	Metrics           []*Metric           `json:"metrics"`
	CumulativeMetrics []*CumulativeMetric `json:"cumulativeMetrics"`
	Views             []*View             `json:"views"`
	Relationships     []*Relationship     `json:"relationships"`
	EnumDefinitions   []*EnumDefinition   `json:"enumDefinitions"`
	Macros            []*Macro            `json:"macros"`
}

// Model is a logical relation with exactly one origin.
type Model struct {
	Name           string          `json:"name"`
	RefSQL         string          `json:"refSql,omitempty"`
	BaseObject     string          `json:"baseObject,omitempty"`
	TableReference *TableReference `json:"tableReference,omitempty"`
	Columns        []*Column       `json:"columns"`
	PrimaryKey     string          `json:"primaryKey,omitempty"`
}

// TableReference names a physical (catalog, schema, table) triple.
type TableReference struct {
	Catalog string `json:"catalog"`
	Schema  string `json:"schema"`
	Table   string `json:"table"`
}

// origins returns how many of the three mutually exclusive origins are set.
func (m *Model) origins() int {
	n := 0
	if m.RefSQL != "" {
		n++
	}
	if m.BaseObject != "" {
		n++
	}
	if m.TableReference != nil {
		n++
	}
	return n
}

// ColumnKind tags the variant of a Column: physical, relationship or calculated.
type ColumnKind string

const (
	ColumnPhysical     ColumnKind = "PHYSICAL"
	ColumnRelationship ColumnKind = "RELATIONSHIP"
	ColumnCalculated   ColumnKind = "CALCULATED"
)

// UnmarshalJSON canonicalizes the kind to upper case, matching spec.md §6's
// case-insensitive-in/canonical-out enum rule.
func (k *ColumnKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := ColumnKind(strings.ToUpper(s))
	switch v {
	case ColumnPhysical, ColumnRelationship, ColumnCalculated:
		*k = v
		return nil
	default:
		return fmt.Errorf("manifest: unknown column kind %q", s)
	}
}

// Column is one entry in a Model's column list or a Metric's dimension or
// measure list.
type Column struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	NotNull bool        `json:"notNull,omitempty"`
	Kind    ColumnKind `json:"kind"`

	// Physical: Expression optionally maps to a source column, defaults to Name.
	// Calculated: Expression is required, written in the calculated-field language.
	Expression string `json:"expression,omitempty"`

	// Relationship: RelationshipType is the target model name, Relationship is
	// the relationship binding it.
	RelationshipType string `json:"relationshipType,omitempty"`
	Relationship     string `json:"relationship,omitempty"`
}

// JoinType is the cardinality of a Relationship.
type JoinType string

const (
	OneToOne   JoinType = "ONE_TO_ONE"
	OneToMany  JoinType = "ONE_TO_MANY"
	ManyToOne  JoinType = "MANY_TO_ONE"
	ManyToMany JoinType = "MANY_TO_MANY"
)

func (j *JoinType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := JoinType(strings.ToUpper(s))
	switch v {
	case OneToOne, OneToMany, ManyToOne, ManyToMany:
		*j = v
		return nil
	default:
		return fmt.Errorf("manifest: unknown join type %q", s)
	}
}

// ToMany reports whether traversing this relationship can yield multiple rows.
func (j JoinType) ToMany() bool {
	return j == OneToMany || j == ManyToMany
}

// Relationship is a named edge between two model names.
type Relationship struct {
	Name      string   `json:"name"`
	Models    [2]string `json:"models"`
	JoinType  JoinType `json:"joinType"`
	Condition string   `json:"condition"`
}

// Metric is a model-like object with dimension and measure column lists.
type Metric struct {
	Name       string    `json:"name"`
	BaseObject string    `json:"baseObject"`
	Dimensions []*Column `json:"dimensions"`
	Measures   []*Column `json:"measures"`
}

// Measure is a single aggregation over a source column.
type Measure struct {
	Name        string `json:"name"`
	Aggregation string `json:"aggregation"`
	Column      string `json:"column"`
}

// Window specifies the date spine for a CumulativeMetric.
type Window struct {
	TimeColumn string `json:"timeColumn"`
	TimeUnit   string `json:"timeUnit"`
	Start      string `json:"start"`
	End        string `json:"end"`
}

// CumulativeMetric densifies a single measure over a date spine.
type CumulativeMetric struct {
	Name       string   `json:"name"`
	BaseObject string   `json:"baseObject"`
	Measure    *Measure `json:"measure"`
	Window     *Window  `json:"window"`
}

// View is a named SQL statement expanded inline at rewrite time.
type View struct {
	Name      string `json:"name"`
	Statement string `json:"statement"`
}

// EnumDefinition is a named string enum.
type EnumDefinition struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// MacroParam is a parameter of a Macro, typed as either an expression or
// another macro (spec.md §3).
type MacroParam struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "expression" | "macro"
}

// Macro is a parametric expression template; macros may recursively
// reference other macros.
type Macro struct {
	Name   string        `json:"name"`
	Params []*MacroParam `json:"params"`
	Body   string        `json:"body"`
}
