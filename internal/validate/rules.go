package validate

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/internal/manifest"
)

// builtins is the rule set NewRegistry preloads, grounded on the checks
// manifest.AnalyzedManifest.checkReferences already performs internally at
// Analyze time — these expose the same existence checks as callable,
// per-object rules rather than a fail-fast pass over the whole manifest.
var builtins = []Rule{
	columnIsValidRule{},
	modelExistsRule{},
	relationshipIsValidRule{},
	metricIsValidRule{},
}

// columnIsValidRule implements column_is_valid(model, column): spec.md §6's
// named example built-in.
type columnIsValidRule struct{}

func (columnIsValidRule) ID() string          { return "column_is_valid" }
func (columnIsValidRule) Name() string        { return "column_is_valid" }
func (columnIsValidRule) Group() string       { return "reference" }
func (columnIsValidRule) Description() string { return "checks that column exists on model" }
func (columnIsValidRule) ParamKeys() []string { return []string{"model", "column"} }

func (columnIsValidRule) Check(am *manifest.AnalyzedManifest, params map[string]any) ValidationResult {
	model, ok := stringParam(params, "model")
	if !ok {
		return errorResult("column_is_valid", `missing or non-string "model" param`)
	}
	column, ok := stringParam(params, "column")
	if !ok {
		return errorResult("column_is_valid", `missing or non-string "column" param`)
	}

	m, ok := am.Model(model)
	if !ok {
		return ValidationResult{
			Name:    "column_is_valid",
			Status:  StatusFail,
			Message: fmt.Sprintf("model %q does not exist", model),
		}
	}
	for _, c := range m.Columns {
		if c.Name == column {
			return ValidationResult{Name: "column_is_valid", Status: StatusPass}
		}
	}
	return ValidationResult{
		Name:    "column_is_valid",
		Status:  StatusFail,
		Message: fmt.Sprintf("model %q has no column %q", model, column),
	}
}

// modelExistsRule implements model_exists(model).
type modelExistsRule struct{}

func (modelExistsRule) ID() string          { return "model_exists" }
func (modelExistsRule) Name() string        { return "model_exists" }
func (modelExistsRule) Group() string       { return "reference" }
func (modelExistsRule) Description() string { return "checks that a model with this name exists" }
func (modelExistsRule) ParamKeys() []string { return []string{"model"} }

func (modelExistsRule) Check(am *manifest.AnalyzedManifest, params map[string]any) ValidationResult {
	model, ok := stringParam(params, "model")
	if !ok {
		return errorResult("model_exists", `missing or non-string "model" param`)
	}
	if _, ok := am.Model(model); !ok {
		return ValidationResult{Name: "model_exists", Status: StatusFail, Message: fmt.Sprintf("model %q does not exist", model)}
	}
	return ValidationResult{Name: "model_exists", Status: StatusPass}
}

// relationshipIsValidRule implements relationship_is_valid(relationship):
// the named relationship exists and both endpoints resolve to known models.
type relationshipIsValidRule struct{}

func (relationshipIsValidRule) ID() string    { return "relationship_is_valid" }
func (relationshipIsValidRule) Name() string  { return "relationship_is_valid" }
func (relationshipIsValidRule) Group() string { return "reference" }
func (relationshipIsValidRule) Description() string {
	return "checks that a relationship exists and both endpoint models exist"
}
func (relationshipIsValidRule) ParamKeys() []string { return []string{"relationship"} }

func (relationshipIsValidRule) Check(am *manifest.AnalyzedManifest, params map[string]any) ValidationResult {
	name, ok := stringParam(params, "relationship")
	if !ok {
		return errorResult("relationship_is_valid", `missing or non-string "relationship" param`)
	}
	rel, ok := am.Relationship(name)
	if !ok {
		return ValidationResult{Name: "relationship_is_valid", Status: StatusFail, Message: fmt.Sprintf("relationship %q does not exist", name)}
	}
	for _, model := range rel.Models {
		if _, ok := am.Model(model); !ok {
			return ValidationResult{
				Name:    "relationship_is_valid",
				Status:  StatusFail,
				Message: fmt.Sprintf("relationship %q references unknown model %q", name, model),
			}
		}
	}
	return ValidationResult{Name: "relationship_is_valid", Status: StatusPass}
}

// metricIsValidRule implements metric_is_valid(metric): the named metric
// exists and its base object resolves to a known manifest object.
type metricIsValidRule struct{}

func (metricIsValidRule) ID() string          { return "metric_is_valid" }
func (metricIsValidRule) Name() string        { return "metric_is_valid" }
func (metricIsValidRule) Group() string       { return "reference" }
func (metricIsValidRule) Description() string { return "checks that a metric exists and its base object resolves" }
func (metricIsValidRule) ParamKeys() []string { return []string{"metric"} }

func (metricIsValidRule) Check(am *manifest.AnalyzedManifest, params map[string]any) ValidationResult {
	name, ok := stringParam(params, "metric")
	if !ok {
		return errorResult("metric_is_valid", `missing or non-string "metric" param`)
	}
	metric, ok := am.Metric(name)
	if !ok {
		return ValidationResult{Name: "metric_is_valid", Status: StatusFail, Message: fmt.Sprintf("metric %q does not exist", name)}
	}
	if _, _, ok := am.Object(metric.BaseObject); !ok {
		return ValidationResult{
			Name:    "metric_is_valid",
			Status:  StatusFail,
			Message: fmt.Sprintf("metric %q has unresolved base object %q", name, metric.BaseObject),
		}
	}
	return ValidationResult{Name: "metric_is_valid", Status: StatusPass}
}

func errorResult(name, message string) ValidationResult {
	return ValidationResult{Name: name, Status: StatusError, Message: message}
}
