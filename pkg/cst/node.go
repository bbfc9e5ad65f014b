// Package cst defines the concrete-syntax-tree boundary between the syntax
// producer and the lowering engine. A producer emits a tree of typed nodes,
// each with a kind tag, a byte span and ordered (optionally field-named)
// children. Unparseable regions surface as KindError nodes; consumers must
// tolerate them without failing.
package cst

import (
	"context"

	"github.com/leapstack-labs/sqlscope/pkg/token"
)

// Node kinds produced for SQL documents. Producers may emit additional kinds;
// the lowering engine treats anything it does not recognize like KindError.
const (
	KindSource          = "source_file"
	KindSelectStmt      = "select_statement"
	KindInsertStmt      = "insert_statement"
	KindUpdateStmt      = "update_statement"
	KindDeleteStmt      = "delete_statement"
	KindDDLStmt         = "ddl_statement"
	KindWithClause      = "with_clause"
	KindCTE             = "common_table_expression"
	KindSelectList      = "select_list"
	KindSelectItem      = "select_item"
	KindStar            = "star"
	KindFromClause      = "from_clause"
	KindTableRef        = "table_reference"
	KindDerivedTable    = "derived_table"
	KindJoin            = "join_clause"
	KindJoinCondition   = "join_condition"
	KindUsingClause     = "using_clause"
	KindWhereClause     = "where_clause"
	KindGroupByClause   = "group_by_clause"
	KindHavingClause    = "having_clause"
	KindOrderByClause   = "order_by_clause"
	KindOrderItem       = "order_item"
	KindLimitClause     = "limit_clause"
	KindOffsetClause    = "offset_clause"
	KindSetClause       = "set_clause"
	KindAssignment      = "assignment"
	KindValuesClause    = "values_clause"
	KindReturningClause = "returning_clause"
	KindSetOp           = "set_operation"

	KindColumnRef  = "column_reference"
	KindIdentifier = "identifier"
	KindLiteral    = "literal"
	KindBindVar    = "bind_parameter"
	KindBinaryExpr = "binary_expression"
	KindUnaryExpr  = "unary_expression"
	KindParenExpr  = "parenthesized_expression"
	KindFuncCall   = "function_call"
	KindArgList    = "argument_list"
	KindCaseExpr   = "case_expression"
	KindWhenClause = "when_clause"
	KindCastExpr   = "cast_expression"
	KindSubquery   = "subquery"
	KindExistsExpr = "exists_expression"
	KindBetween    = "between_expression"
	KindInExpr     = "in_expression"
	KindIsExpr     = "is_expression"
	KindWindowSpec = "window_specification"
	KindOverClause = "over_clause"
	KindKeyword    = "keyword"

	// KindError marks a region the producer could not parse.
	KindError = "error"
)

// Node is one typed node in a concrete syntax tree.
// Children are ordered; Field names are parallel to Children and may be "".
type Node struct {
	Kind     string
	Span     token.Span
	Text     string // raw source text for leaf nodes, "" for interior nodes
	Children []*Node
	Fields   []string // field name per child, "" for positional children
}

// Parser produces a CST from raw SQL text. Implementations must be tolerant:
// malformed input yields a tree containing KindError nodes, never an error,
// except for producer-internal failures (I/O, cancellation).
type Parser interface {
	Parse(ctx context.Context, text string) (*Node, error)
}

// New creates a node with the given kind and span.
func New(kind string, span token.Span) *Node {
	return &Node{Kind: kind, Span: span}
}

// Leaf creates a leaf node carrying its source text.
func Leaf(kind string, span token.Span, text string) *Node {
	return &Node{Kind: kind, Span: span, Text: text}
}

// Append adds a positional child.
func (n *Node) Append(child *Node) *Node {
	return n.AppendField("", child)
}

// AppendField adds a child under a field name and grows the node span to
// cover it.
func (n *Node) AppendField(field string, child *Node) *Node {
	if child == nil {
		return n
	}
	n.Children = append(n.Children, child)
	n.Fields = append(n.Fields, field)
	if !n.Span.IsValid() {
		n.Span = child.Span
	} else if child.Span.IsValid() {
		n.Span = n.Span.Union(child.Span)
	}
	return n
}

// Field returns the first child stored under the given field name.
func (n *Node) Field(name string) *Node {
	for i, f := range n.Fields {
		if f == name {
			return n.Children[i]
		}
	}
	return nil
}

// FieldAll returns every child stored under the given field name, in order.
func (n *Node) FieldAll(name string) []*Node {
	var out []*Node
	for i, f := range n.Fields {
		if f == name {
			out = append(out, n.Children[i])
		}
	}
	return out
}

// ChildrenOfKind returns all direct children with the given kind.
func (n *Node) ChildrenOfKind(kind string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// IsError reports whether the node is an error node.
func (n *Node) IsError() bool {
	return n.Kind == KindError
}

// HasError reports whether the node or any descendant is an error node.
func (n *Node) HasError() bool {
	if n.IsError() {
		return true
	}
	for _, c := range n.Children {
		if c.HasError() {
			return true
		}
	}
	return false
}

// DescendantAt returns the innermost node whose span contains the byte
// offset. The end offset of a node counts as inside it so a cursor placed
// right after the last typed byte still lands in the node being edited.
// Returns n itself when no child contains the offset.
func (n *Node) DescendantAt(offset int) *Node {
	for i := len(n.Children) - 1; i >= 0; i-- {
		c := n.Children[i]
		if c.Span.ContainsInclusive(offset) {
			return c.DescendantAt(offset)
		}
	}
	return n
}

// Walk calls fn for n and every descendant in depth-first order.
// Returning false from fn prunes the subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Depth returns the height of the tree rooted at n.
func (n *Node) Depth() int {
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}
