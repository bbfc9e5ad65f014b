// Package lowering converts concrete syntax trees into the dialect-neutral
// IR. Lowering is best effort: malformed or unsupported regions degrade to
// ir.Unknown* placeholders with diagnostics instead of aborting, so the
// semantic and completion layers always receive a usable statement list.
package lowering

import (
	"fmt"

	"github.com/leapstack-labs/sqlscope/pkg/ir"
	"github.com/leapstack-labs/sqlscope/pkg/token"
)

// Outcome is the fidelity of one lowering run.
type Outcome int

const (
	// OutcomeSuccess means every construct lowered with full fidelity.
	OutcomeSuccess Outcome = iota
	// OutcomePartial means some regions degraded to Unknown placeholders
	// or used features the dialect does not support; the rest of the IR
	// is trustworthy.
	OutcomePartial
	// OutcomeFailed means no trustworthy IR could be produced.
	OutcomeFailed
)

// String returns the outcome's wire name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	default:
		return "failed"
	}
}

// Severity of a diagnostic.
type Severity int

// Diagnostic severities.
const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Code identifies a diagnostic category.
type Code string

// Diagnostic codes.
const (
	CodeSyntaxError        Code = "syntax-error"
	CodeUnsupportedFeature Code = "unsupported-feature"
	CodeUnknownConstruct   Code = "unknown-construct"
	CodeDepthExceeded      Code = "depth-exceeded"
	CodeMissingAlias       Code = "missing-alias"
)

// Diagnostic is one problem found during lowering, anchored to source.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Span     token.Span
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s (%d:%d)", d.Code, d.Message, d.Span.Start.Line, d.Span.Start.Column)
}

// Result is the output of lowering one document.
type Result struct {
	Statements  []ir.Statement
	Outcome     Outcome
	Diagnostics []Diagnostic
}

// ErrorRegions returns the spans of all error-severity diagnostics. The
// completion layer treats cursors inside these regions as indeterminate.
func (r *Result) ErrorRegions() []token.Span {
	var spans []token.Span
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError && d.Span.IsValid() {
			spans = append(spans, d.Span)
		}
	}
	return spans
}

// StatementAt returns the statement whose span contains the offset, or nil.
func (r *Result) StatementAt(offset int) ir.Statement {
	for _, s := range r.Statements {
		if s.GetSpan().ContainsInclusive(offset) {
			return s
		}
	}
	return nil
}
