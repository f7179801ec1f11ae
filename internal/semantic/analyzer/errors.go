package analyzer

import "fmt"

// AmbiguousIdentifierError reports an unqualified column that resolves
// against more than one manifest object in scope (spec.md §4.D, §6).
type AmbiguousIdentifierError struct {
	Column     string
	Candidates []string
}

func (e *AmbiguousIdentifierError) Error() string {
	return fmt.Sprintf("analyzer: column %q is ambiguous between %v", e.Column, e.Candidates)
}

func (e *AmbiguousIdentifierError) Code() string { return "AMBIGUOUS_IDENTIFIER" }
