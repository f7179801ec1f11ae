package manifest

import "fmt"

// Error codes per spec.md §6.
const (
	CodeManifestInvalid = "MANIFEST_INVALID"
	CodeUnknownObject   = "UNKNOWN_OBJECT"
	CodeCycle           = "CYCLE"
)

// Error is the common shape every manifest-analysis failure implements:
// a stable code plus a human-readable message.
type Error interface {
	error
	Code() string
}

// DuplicateNameError reports two manifest objects sharing a name.
type DuplicateNameError struct {
	Name string
	Kind string // "model", "metric", "cumulativeMetric", "view"
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("manifest: duplicate %s name %q", e.Kind, e.Name)
}

func (e *DuplicateNameError) Code() string { return CodeManifestInvalid }

// UnknownReferenceError reports a baseObject, relationship endpoint, or
// relationship column that does not resolve within the manifest.
type UnknownReferenceError struct {
	From string // the object doing the referencing
	Ref  string // the unresolved name
	Kind string // "baseObject", "relationshipEndpoint", "relationshipColumn"
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("manifest: %s references unknown %s %q", e.From, e.Kind, e.Ref)
}

func (e *UnknownReferenceError) Code() string { return CodeUnknownObject }

// InvalidOriginError reports a Model that does not declare exactly one origin.
type InvalidOriginError struct {
	Model string
	Count int
}

func (e *InvalidOriginError) Error() string {
	return fmt.Sprintf("manifest: model %q must declare exactly one origin, found %d", e.Model, e.Count)
}

func (e *InvalidOriginError) Code() string { return CodeManifestInvalid }

// InvalidWindowError reports a CumulativeMetric window with start > end.
type InvalidWindowError struct {
	CumulativeMetric string
	Start, End       string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("manifest: cumulative metric %q window start %q is after end %q", e.CumulativeMetric, e.Start, e.End)
}

func (e *InvalidWindowError) Code() string { return CodeManifestInvalid }

// CycleError reports a cycle discovered while traversing calculated-column
// dependencies. Per spec.md §4.C/§9 this is raised lazily during lineage
// traversal, never eagerly at Analyze time.
type CycleError struct {
	Column string // one of the columns on the cycle, per spec.md §8 property 6
	Path   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("manifest: cycle detected involving %q (path: %v)", e.Column, e.Path)
}

func (e *CycleError) Code() string { return CodeCycle }
