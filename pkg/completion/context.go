// Package completion classifies cursor positions against the syntax tree
// and turns the classification into ranked candidate lists. Classification
// works on the concrete tree rather than the IR so it keeps functioning on
// half-typed input where lowering already degraded.
package completion

import "fmt"

// ContextKind is the closed set of completion contexts.
type ContextKind int

const (
	// ExpectKeyword means the cursor is at a statement or clause boundary
	// where only keywords make sense.
	ExpectKeyword ContextKind = iota
	// ExpectTableOrSchema means a source name is expected (after FROM,
	// JOIN, INTO, UPDATE, ...).
	ExpectTableOrSchema
	// ExpectColumn means a column is expected, optionally restricted to
	// one source by Qualifier.
	ExpectColumn
	// ExpectFunctionOrColumn means an expression is starting, so both
	// columns and function invocations apply.
	ExpectFunctionOrColumn
	// ExpectFunctionArgument means the cursor is inside a call's argument
	// list; Function and ArgIndex identify the position.
	ExpectFunctionArgument
	// Indeterminate means the region under the cursor did not parse, so
	// only keyword suggestions are safe.
	Indeterminate
)

func (k ContextKind) String() string {
	switch k {
	case ExpectKeyword:
		return "keyword"
	case ExpectTableOrSchema:
		return "table-or-schema"
	case ExpectColumn:
		return "column"
	case ExpectFunctionOrColumn:
		return "function-or-column"
	case ExpectFunctionArgument:
		return "function-argument"
	case Indeterminate:
		return "indeterminate"
	default:
		return fmt.Sprintf("ContextKind(%d)", int(k))
	}
}

// Context is the classified completion position.
type Context struct {
	Kind      ContextKind
	Qualifier string // source qualifier for ExpectColumn ("u" in "u.")
	Function  string // enclosing call for ExpectFunctionArgument
	ArgIndex  int    // zero-based argument position
}
