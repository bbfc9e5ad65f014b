package completion

import (
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/cst"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
)

// Classify determines what kind of token the cursor position expects. It
// walks the concrete tree to the innermost node at the offset and falls
// back to the nearest preceding token when the offset sits in whitespace
// or an unfinished token. A cursor inside a region that did not parse
// classifies as Indeterminate so callers offer keywords only.
func Classify(root *cst.Node, low *lowering.Result, offset int) Context {
	if root == nil || len(root.Children) == 0 {
		return Context{Kind: ExpectKeyword}
	}

	stmt := statementAt(root, offset)
	if stmt == nil {
		// Between statements or before the first one.
		return Context{Kind: ExpectKeyword}
	}
	if stmt.Kind == cst.KindError {
		return Context{Kind: Indeterminate}
	}
	if low != nil {
		for _, region := range low.ErrorRegions() {
			// Zero-width regions mark gaps where a clause is still being
			// typed; those keep their clause context.
			if region.Len() > 0 && region.ContainsInclusive(offset) {
				return Context{Kind: Indeterminate}
			}
		}
	}

	path := pathTo(stmt, offset)

	if ctx, ok := qualifierContext(path, offset); ok {
		return ctx
	}
	if ctx, ok := argumentContext(path, offset); ok {
		return ctx
	}
	if ctx, ok := clauseContext(stmt, path, offset); ok {
		return ctx
	}
	return anchorContext(stmt, offset)
}

// statementAt returns the top-level statement node containing the offset.
func statementAt(root *cst.Node, offset int) *cst.Node {
	for i := len(root.Children) - 1; i >= 0; i-- {
		child := root.Children[i]
		if child.Span.ContainsInclusive(offset) {
			return child
		}
	}
	return nil
}

// pathTo returns the ancestor chain from the statement down to the
// innermost node containing the offset, innermost last.
func pathTo(node *cst.Node, offset int) []*cst.Node {
	path := []*cst.Node{node}
	for {
		var next *cst.Node
		for i := len(node.Children) - 1; i >= 0; i-- {
			child := node.Children[i]
			if child.Span.ContainsInclusive(offset) {
				next = child
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		node = next
	}
}

// qualifierContext detects a cursor after "alias." inside a column
// reference.
func qualifierContext(path []*cst.Node, offset int) (Context, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind != cst.KindColumnRef {
			continue
		}
		parts := path[i].FieldAll("part")
		if len(parts) < 2 {
			return Context{}, false
		}
		first := parts[0]
		if first.Kind != cst.KindIdentifier || offset <= first.Span.End.Offset {
			return Context{}, false
		}
		return Context{Kind: ExpectColumn, Qualifier: trimQuotes(first.Text)}, true
	}
	return Context{}, false
}

// argumentContext detects a cursor inside a function call's argument list.
// It anchors on the call node rather than the argument list: an unclosed
// call ends in a recovery leaf that sits outside the list.
func argumentContext(path []*cst.Node, offset int) (Context, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Kind != cst.KindFuncCall {
			continue
		}
		call := path[i]
		name := call.Field("name")
		args := call.Field("args")
		if name == nil || args == nil || offset < args.Span.Start.Offset {
			return Context{}, false
		}
		idx := 0
		for j, arg := range args.FieldAll("arg") {
			if arg.Span.ContainsInclusive(offset) {
				idx = j
				break
			}
			if arg.Span.End.Offset <= offset {
				idx = j + 1
			}
		}
		return Context{
			Kind:     ExpectFunctionArgument,
			Function: strings.ToLower(trimQuotes(name.Text)),
			ArgIndex: idx,
		}, true
	}
	return Context{}, false
}

// clauseContext maps the innermost enclosing clause to a context.
func clauseContext(stmt *cst.Node, path []*cst.Node, offset int) (Context, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i].Kind {
		case cst.KindFromClause, cst.KindTableRef, cst.KindDerivedTable:
			return Context{Kind: ExpectTableOrSchema}, true
		case cst.KindUsingClause:
			// Join USING lists columns; DELETE ... USING lists sources.
			if i > 0 && path[i-1].Kind == cst.KindJoin {
				return Context{Kind: ExpectColumn}, true
			}
			return Context{Kind: ExpectTableOrSchema}, true
		case cst.KindSelectList, cst.KindReturningClause:
			return Context{Kind: ExpectFunctionOrColumn}, true
		case cst.KindWhereClause, cst.KindHavingClause, cst.KindJoinCondition,
			cst.KindCaseExpr:
			return predicateContext(stmt, offset), true
		case cst.KindGroupByClause, cst.KindOrderByClause, cst.KindWindowSpec:
			return Context{Kind: ExpectColumn}, true
		case cst.KindSetClause:
			return Context{Kind: ExpectColumn}, true
		case cst.KindValuesClause, cst.KindLimitClause, cst.KindOffsetClause:
			return Context{Kind: ExpectFunctionOrColumn}, true
		case cst.KindSubquery:
			// A nested statement restarts the scan inside the subquery.
			return Context{}, false
		}
	}
	return Context{}, false
}

// predicateContext refines WHERE/ON/HAVING positions: right after a
// comparison operator only a value or column fits, elsewhere a fresh
// expression can also start with a function.
func predicateContext(stmt *cst.Node, offset int) Context {
	anchor := lastLeafBefore(stmt, offset)
	if anchor != nil && anchor.Kind == cst.KindKeyword && isComparison(anchor.Text) {
		return Context{Kind: ExpectColumn}
	}
	return Context{Kind: ExpectFunctionOrColumn}
}

// anchorContext is the fallback: classify by the nearest keyword before
// the cursor.
func anchorContext(stmt *cst.Node, offset int) Context {
	anchor := lastKeywordBefore(stmt, offset)
	if anchor == nil {
		return Context{Kind: ExpectKeyword}
	}
	switch strings.ToUpper(anchor.Text) {
	case "FROM", "JOIN", "INTO", "UPDATE", "TABLE", "VIEW", "TRUNCATE", "USING":
		return Context{Kind: ExpectTableOrSchema}
	case "SELECT", "DISTINCT", "WHERE", "ON", "HAVING", "AND", "OR", "NOT",
		"BY", "SET", "WHEN", "THEN", "ELSE", "RETURNING", "IN", "BETWEEN":
		return Context{Kind: ExpectFunctionOrColumn}
	default:
		if isComparison(anchor.Text) {
			return Context{Kind: ExpectColumn}
		}
		return Context{Kind: ExpectKeyword}
	}
}

func lastLeafBefore(node *cst.Node, offset int) *cst.Node {
	var best *cst.Node
	node.Walk(func(n *cst.Node) bool {
		if len(n.Children) > 0 {
			return true
		}
		if n.Span.Len() == 0 || n.Span.End.Offset > offset {
			return false
		}
		if best == nil || n.Span.End.Offset > best.Span.End.Offset {
			best = n
		}
		return false
	})
	return best
}

func lastKeywordBefore(node *cst.Node, offset int) *cst.Node {
	var best *cst.Node
	node.Walk(func(n *cst.Node) bool {
		if len(n.Children) > 0 {
			return true
		}
		if n.Kind != cst.KindKeyword || n.Span.End.Offset > offset {
			return false
		}
		if best == nil || n.Span.End.Offset > best.Span.End.Offset {
			best = n
		}
		return false
	})
	return best
}

func isComparison(text string) bool {
	switch strings.ToUpper(text) {
	case "=", "<>", "!=", "<", ">", "<=", ">=", "LIKE", "ILIKE",
		"NOT LIKE", "NOT ILIKE":
		return true
	}
	return false
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
