package descriptor

import (
	"fmt"

	"github.com/leapstack-labs/semlayer/internal/manifest"
	"github.com/leapstack-labs/semlayer/internal/semantic/analyzer"
	"github.com/leapstack-labs/semlayer/pkg/sqlparse"
	"github.com/leapstack-labs/semlayer/pkg/sqlwrite"
)

// buildView parses the view's body, recursively resolves it against the
// manifest with a fresh analyzer pass, and emits it as a CTE whose
// RequiredObjects are whatever objects that body itself references (spec.md
// §4.E). A view is never reified on its own; it is always expanded inline.
func (b *Builder) buildView(object string) (*Descriptor, error) {
	view, ok := b.am.View(object)
	if !ok {
		return nil, &manifest.UnknownReferenceError{From: object, Ref: object, Kind: "view"}
	}
	stmt, err := sqlparse.Parse(view.Statement)
	if err != nil {
		return nil, fmt.Errorf("descriptor: view %s: %w", object, err)
	}

	a := analyzer.New(b.am, analyzer.Session{
		Catalog:             b.catalog,
		Schema:              b.schema,
		EnableDynamicFields: b.dynamic,
	})
	result, err := a.Analyze(stmt)
	if err != nil {
		return nil, fmt.Errorf("descriptor: view %s: %w", object, err)
	}

	required := make([]string, 0, len(result.Objects))
	for _, ref := range result.Objects {
		required = append(required, ref.Name)
	}

	return &Descriptor{
		Name:            object,
		RequiredObjects: required,
		SQL:             sqlwrite.Print(stmt),
	}, nil
}
