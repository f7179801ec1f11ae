package analyzer

import "strings"

// entryKind discriminates what a Scope entry names.
type entryKind int

const (
	entryRemote entryKind = iota // a table/CTE/derived relation with no manifest binding
	entryObject                  // bound to a manifest model/metric/cumulativeMetric/view
	entryCTE
	entryDerived
)

// scopeEntry is one name binding visible in a FROM clause: a table, a CTE,
// or a derived table, plus its manifest binding if it has one. Mirrors
// pkg/parser/scope.go's ScopeEntry, generalized from a raw column-name
// Schema lookup to resolution against an AnalyzedManifest.
type scopeEntry struct {
	kind   entryKind
	name   string // original table/CTE name
	alias  string
	object string // manifest object name, set iff kind == entryObject
	kindOf string // "model" | "metric" | "cumulativeMetric" | "view"
}

func (e *scopeEntry) effectiveName() string {
	if e.alias != "" {
		return e.alias
	}
	return e.name
}

// scope tracks name bindings within one SELECT core, chained to its
// enclosing statement for correlated-subquery lookups.
type scope struct {
	parent  *scope
	entries map[string]*scopeEntry
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, entries: make(map[string]*scopeEntry)}
}

func (s *scope) register(e *scopeEntry) {
	s.entries[strings.ToLower(e.effectiveName())] = e
}

// lookup finds a binding by table name or alias, searching enclosing scopes
// for correlated references.
func (s *scope) lookup(name string) (*scopeEntry, bool) {
	if e, ok := s.entries[strings.ToLower(name)]; ok {
		return e, true
	}
	if s.parent != nil {
		return s.parent.lookup(name)
	}
	return nil, false
}

// lookupCTE finds a CTE binding visible from this scope, defined by an
// enclosing WITH clause.
func (s *scope) lookupCTE(name string) (*scopeEntry, bool) {
	if e, ok := s.entries[strings.ToLower(name)]; ok && e.kind == entryCTE {
		return e, true
	}
	if s.parent != nil {
		return s.parent.lookupCTE(name)
	}
	return nil, false
}

// objectEntries returns the manifest-bound entries visible in this scope
// only (not enclosing scopes) — the set a bare, unqualified column or a
// bare "SELECT *" can resolve against.
func (s *scope) objectEntries() []*scopeEntry {
	var out []*scopeEntry
	for _, e := range s.entries {
		if e.kind == entryObject {
			out = append(out, e)
		}
	}
	return out
}
