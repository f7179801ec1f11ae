package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MaxManifestBytes is the default upper bound on manifest JSON size
// (spec.md §5). Exceeding it fails with InputTooLargeError.
const MaxManifestBytes = 16 << 20

// InputTooLargeError is returned by Load when the manifest document exceeds
// MaxManifestBytes.
type InputTooLargeError struct {
	Limit, Size int64
}

func (e *InputTooLargeError) Error() string {
	return fmt.Sprintf("manifest: input size %d exceeds limit %d", e.Size, e.Limit)
}

func (e *InputTooLargeError) Code() string { return "INPUT_TOO_LARGE" }

// Load decodes a manifest from r. Field names are lowerCamelCase and
// unknown fields are rejected (spec.md §3 "[ADD] Wire format").
func Load(r io.Reader) (*Manifest, error) {
	limited := io.LimitReader(r, MaxManifestBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("manifest: read: %w", err)
	}
	if int64(len(raw)) > MaxManifestBytes {
		return nil, &InputTooLargeError{Limit: MaxManifestBytes, Size: int64(len(raw))}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}
	return &m, nil
}

// AnalyzedManifest is a Manifest plus the name indexes built once at analysis
// time (spec.md §4.A). It is immutable and safe for concurrent read access
// from multiple planning operations without synchronization.
type AnalyzedManifest struct {
	manifest *Manifest

	models            map[string]*Model
	metrics           map[string]*Metric
	cumulativeMetrics map[string]*CumulativeMetric
	views             map[string]*View
	relationships     map[string]*Relationship
	enums             map[string]*EnumDefinition
	macros            map[string]*Macro

	modelOrder []string
}

// Analyze validates a Manifest against invariants 1, 2, 4 and 5 of spec.md
// §3 and builds its name indexes. Invariant 3 (the calculated-column
// dependency graph is acyclic) is deliberately not checked here: per
// spec.md §4.C/§9 cycles are detected lazily during lineage traversal, so a
// manifest with mutually-referencing calculated columns analyzes
// successfully and only fails when a statement tries to resolve both
// columns together.
func Analyze(m *Manifest) (*AnalyzedManifest, error) {
	am := &AnalyzedManifest{
		manifest:          m,
		models:            make(map[string]*Model, len(m.Models)),
		metrics:           make(map[string]*Metric, len(m.Metrics)),
		cumulativeMetrics: make(map[string]*CumulativeMetric, len(m.CumulativeMetrics)),
		views:             make(map[string]*View, len(m.Views)),
		relationships:     make(map[string]*Relationship, len(m.Relationships)),
		enums:             make(map[string]*EnumDefinition, len(m.EnumDefinitions)),
		macros:            make(map[string]*Macro, len(m.Macros)),
	}

	seen := make(map[string]bool)
	for _, model := range m.Models {
		if seen[model.Name] {
			return nil, &DuplicateNameError{Name: model.Name, Kind: "model"}
		}
		if n := model.origins(); n != 1 {
			return nil, &InvalidOriginError{Model: model.Name, Count: n}
		}
		seen[model.Name] = true
		am.models[model.Name] = model
		am.modelOrder = append(am.modelOrder, model.Name)
	}
	for _, metric := range m.Metrics {
		if seen[metric.Name] {
			return nil, &DuplicateNameError{Name: metric.Name, Kind: "metric"}
		}
		seen[metric.Name] = true
		am.metrics[metric.Name] = metric
	}
	for _, cm := range m.CumulativeMetrics {
		if seen[cm.Name] {
			return nil, &DuplicateNameError{Name: cm.Name, Kind: "cumulativeMetric"}
		}
		seen[cm.Name] = true
		am.cumulativeMetrics[cm.Name] = cm
	}
	for _, v := range m.Views {
		if seen[v.Name] {
			return nil, &DuplicateNameError{Name: v.Name, Kind: "view"}
		}
		seen[v.Name] = true
		am.views[v.Name] = v
	}
	for _, e := range m.EnumDefinitions {
		am.enums[e.Name] = e
	}
	for _, mc := range m.Macros {
		am.macros[mc.Name] = mc
	}
	for _, r := range m.Relationships {
		am.relationships[r.Name] = r
	}

	if err := am.checkReferences(); err != nil {
		return nil, err
	}
	if err := am.checkWindows(); err != nil {
		return nil, err
	}

	return am, nil
}

// objectExists reports whether name resolves to any model, metric,
// cumulative-metric or view — the set of things a baseObject or a
// relationship endpoint may legally name.
func (am *AnalyzedManifest) objectExists(name string) bool {
	if _, ok := am.models[name]; ok {
		return true
	}
	if _, ok := am.metrics[name]; ok {
		return true
	}
	if _, ok := am.cumulativeMetrics[name]; ok {
		return true
	}
	if _, ok := am.views[name]; ok {
		return true
	}
	return false
}

func (am *AnalyzedManifest) checkReferences() error {
	for _, model := range am.manifest.Models {
		if model.BaseObject != "" && !am.objectExists(model.BaseObject) {
			return &UnknownReferenceError{From: model.Name, Ref: model.BaseObject, Kind: "baseObject"}
		}
		for _, col := range model.Columns {
			if col.Kind == ColumnRelationship {
				if _, ok := am.models[col.RelationshipType]; !ok {
					return &UnknownReferenceError{From: model.Name + "." + col.Name, Ref: col.RelationshipType, Kind: "relationshipEndpoint"}
				}
				if _, ok := am.relationships[col.Relationship]; !ok {
					return &UnknownReferenceError{From: model.Name + "." + col.Name, Ref: col.Relationship, Kind: "relationshipColumn"}
				}
			}
		}
	}
	for _, metric := range am.manifest.Metrics {
		if !am.objectExists(metric.BaseObject) {
			return &UnknownReferenceError{From: metric.Name, Ref: metric.BaseObject, Kind: "baseObject"}
		}
	}
	for _, cm := range am.manifest.CumulativeMetrics {
		if !am.objectExists(cm.BaseObject) {
			return &UnknownReferenceError{From: cm.Name, Ref: cm.BaseObject, Kind: "baseObject"}
		}
	}
	for _, r := range am.manifest.Relationships {
		for _, endpoint := range r.Models {
			if _, ok := am.models[endpoint]; !ok {
				return &UnknownReferenceError{From: r.Name, Ref: endpoint, Kind: "relationshipEndpoint"}
			}
		}
	}
	return nil
}

func (am *AnalyzedManifest) checkWindows() error {
	for _, cm := range am.manifest.CumulativeMetrics {
		if cm.Window == nil {
			continue
		}
		if cm.Window.Start > cm.Window.End {
			return &InvalidWindowError{CumulativeMetric: cm.Name, Start: cm.Window.Start, End: cm.Window.End}
		}
	}
	return nil
}

// Model returns the named model, if any.
func (am *AnalyzedManifest) Model(name string) (*Model, bool) {
	m, ok := am.models[name]
	return m, ok
}

// Metric returns the named metric, if any.
func (am *AnalyzedManifest) Metric(name string) (*Metric, bool) {
	m, ok := am.metrics[name]
	return m, ok
}

// CumulativeMetric returns the named cumulative metric, if any.
func (am *AnalyzedManifest) CumulativeMetric(name string) (*CumulativeMetric, bool) {
	m, ok := am.cumulativeMetrics[name]
	return m, ok
}

// View returns the named view, if any.
func (am *AnalyzedManifest) View(name string) (*View, bool) {
	v, ok := am.views[name]
	return v, ok
}

// Relationship returns the named relationship, if any.
func (am *AnalyzedManifest) Relationship(name string) (*Relationship, bool) {
	r, ok := am.relationships[name]
	return r, ok
}

// Macro returns the named macro, if any.
func (am *AnalyzedManifest) Macro(name string) (*Macro, bool) {
	mc, ok := am.macros[name]
	return mc, ok
}

// Enum returns the named enum definition, if any.
func (am *AnalyzedManifest) Enum(name string) (*EnumDefinition, bool) {
	e, ok := am.enums[name]
	return e, ok
}

// CatalogSchemaPrefix returns the manifest's implicit qualifying prefix.
func (am *AnalyzedManifest) CatalogSchemaPrefix() (catalog, schema string) {
	return am.manifest.Catalog, am.manifest.Schema
}

// ListModels returns every model name, in manifest declaration order.
func (am *AnalyzedManifest) ListModels() []string {
	out := make([]string, len(am.modelOrder))
	copy(out, am.modelOrder)
	return out
}

// Object looks up any catalog object by name regardless of kind, returning
// the object value and a discriminator ("model", "metric",
// "cumulativeMetric", "view") or ok=false if nothing matches.
func (am *AnalyzedManifest) Object(name string) (obj any, kind string, ok bool) {
	if m, found := am.models[name]; found {
		return m, "model", true
	}
	if m, found := am.metrics[name]; found {
		return m, "metric", true
	}
	if m, found := am.cumulativeMetrics[name]; found {
		return m, "cumulativeMetric", true
	}
	if v, found := am.views[name]; found {
		return v, "view", true
	}
	return nil, "", false
}

// RelationshipsBetween returns every relationship declared between from and
// to, in either direction — needed because a model pair may have more than
// one named relationship (e.g. "ships_to" and "bills_to").
func (am *AnalyzedManifest) RelationshipsBetween(from, to string) []*Relationship {
	var out []*Relationship
	for _, r := range am.manifest.Relationships {
		if (r.Models[0] == from && r.Models[1] == to) || (r.Models[0] == to && r.Models[1] == from) {
			out = append(out, r)
		}
	}
	return out
}

// Manifest returns the underlying, immutable Manifest value.
func (am *AnalyzedManifest) Manifest() *Manifest { return am.manifest }
