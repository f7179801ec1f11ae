// Package validate is the built-in rule engine spec.md §6 calls out:
// validate(rule, params, analyzed) -> list<ValidationResult>. Rules run
// against an already-analyzed manifest rather than a parsed SQL statement, so
// the interface is narrower than the teacher's pkg/lint (no DialectInfo, no
// project-DAG context) — but the ID/Name/Group/Description/ConfigKeys shape
// and the registry-of-named-rules pattern are adapted directly from it.
package validate

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/internal/manifest"
)

// Status is a ValidationResult's outcome (spec.md §6: "status ∈ {PASS, FAIL,
// ERROR}").
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// ValidationResult is one rule outcome: {name, status, message?} per spec.md
// §6.
type ValidationResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Rule is a named, built-in validation check against an AnalyzedManifest.
// Unlike pkg/lint's SQLRule/ProjectRule split (which branches on what kind of
// tree a rule walks), every rule here walks the same AnalyzedManifest, so one
// interface covers the built-in set.
type Rule interface {
	// ID is the stable identifier passed as the validate() rule argument,
	// e.g. "column_is_valid".
	ID() string

	// Name is a short human-readable label.
	Name() string

	// Group categorizes the rule, e.g. "reference", "structure".
	Group() string

	// Description explains what the rule checks.
	Description() string

	// ParamKeys lists the params map keys this rule requires.
	ParamKeys() []string

	// Check runs the rule against am with the given params and returns its
	// result. A malformed or missing param yields StatusError, not a Go
	// error: the caller gets a ValidationResult back either way.
	Check(am *manifest.AnalyzedManifest, params map[string]any) ValidationResult
}

// Registry looks rules up by ID.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry returns a Registry preloaded with the built-in rule set.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	for _, rule := range builtins {
		r.Register(rule)
	}
	return r
}

// Register adds or replaces a rule by its ID.
func (r *Registry) Register(rule Rule) {
	r.rules[rule.ID()] = rule
}

// Lookup returns the rule with the given ID, if any.
func (r *Registry) Lookup(id string) (Rule, bool) {
	rule, ok := r.rules[id]
	return rule, ok
}

// List returns every registered rule, unordered.
func (r *Registry) List() []Rule {
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}

// DefaultRegistry is the process-wide built-in rule set. Rules are stateless
// and read-only against am, so one shared instance is safe for concurrent
// Validate calls.
var DefaultRegistry = NewRegistry()

// Validate runs the named rule against am with params, per spec.md §6's
// validate(rule, params, analyzed) -> list<ValidationResult>. An unknown rule
// ID is itself reported as a single ERROR result rather than a Go error: the
// caller always gets a result list back, matching the "never propagate as
// process-fatal" handling spec.md §7 asks for at this boundary.
func Validate(rule string, params map[string]any, am *manifest.AnalyzedManifest) []ValidationResult {
	r, ok := DefaultRegistry.Lookup(rule)
	if !ok {
		return []ValidationResult{{
			Name:    rule,
			Status:  StatusError,
			Message: fmt.Sprintf("unknown validation rule %q", rule),
		}}
	}
	return []ValidationResult{r.Check(am, params)}
}

// stringParam extracts a required string param, reporting ok=false if it is
// missing or not a string.
func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
