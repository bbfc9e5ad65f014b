package semantic

import (
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
)

// ResolutionKind is the outcome of resolving one column reference.
type ResolutionKind int

const (
	// Resolved means exactly one source matched.
	Resolved ResolutionKind = iota
	// Ambiguous means several sources expose the column; Candidates lists
	// them in declaration order.
	Ambiguous
	// Unknown means no visible source matched, or nothing could be
	// verified because column sets are incomplete.
	Unknown
)

// Resolution is the result of resolving a column reference.
type Resolution struct {
	Kind       ResolutionKind
	Source     *Source     // the matched source, nil unless Resolved
	Column     *ColumnInfo // nil when the source's columns are unverifiable
	Candidates []*Source   // ambiguous matches in declaration order
	Outer      bool        // matched in an enclosing scope (correlated)
}

// Diagnostic codes added by semantic analysis.
const (
	CodeAmbiguousColumn lowering.Code = "ambiguous-column"
	CodeUnknownColumn   lowering.Code = "unknown-column"
	CodeUnknownTable    lowering.Code = "unknown-table"
	CodeDuplicateAlias  lowering.Code = "duplicate-alias"
)
