// Package ast defines the tagged-union node hierarchy shared by calculated
// field expressions and full SQL statements (spec.md §4.B). Expression and
// statement nodes are plain structs distinguished by marker methods rather
// than an inheritance hierarchy, so traversal is a switch over concrete
// types (see internal/semantic/lineage and internal/semantic/analyzer).
package ast

import "github.com/leapstack-labs/semlayer/pkg/token"

// Expr is a marker interface for expression nodes.
type Expr interface {
	exprNode()
}

// Stmt is a marker interface for statement nodes.
type Stmt interface {
	stmtNode()
}

// TableRef is a marker interface for FROM-clause table references.
type TableRef interface {
	tableRefNode()
}

// Node is a generic node interface used for the SelectCore.Extensions
// escape hatch — rare, dialect-specific clauses that don't earn a typed
// field (e.g. a QUALIFY-only construct).
type Node interface {
	node()
}

// NodeInfo carries position and comment information for node types that
// need it (statements and table references; most expression nodes don't).
type NodeInfo struct {
	Span             token.Span
	LeadingComments  []*token.Comment
	TrailingComments []*token.Comment
}

// GetSpan returns the node's source span.
func (n *NodeInfo) GetSpan() token.Span { return n.Span }
