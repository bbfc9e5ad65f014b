package lsp

import (
	"context"

	"github.com/leapstack-labs/sqlscope/internal/engine"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
)

const diagnosticSource = "sqlscope"

// publishDiagnostics analyzes the document and pushes the findings to the client.
func (s *Server) publishDiagnostics(ctx context.Context, uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	res, err := s.engine.Analyze(ctx, engine.Request{
		DocID:   uri,
		Version: doc.Version,
		Text:    doc.Content,
		Dialect: s.dialect,
	})
	if err != nil {
		s.logger.Error("Analysis failed", "uri", uri, "error", err)
		return
	}

	diagnostics := make([]Diagnostic, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		diagnostics = append(diagnostics, toDiagnostic(doc, d))
	}

	if res.SchemaDegraded {
		s.logger.Warn("Catalog metadata unavailable, diagnostics may be incomplete", "uri", uri)
	}

	s.sendNotification("textDocument/publishDiagnostics", &PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// toDiagnostic converts an analysis diagnostic to its LSP form.
func toDiagnostic(doc *Document, d lowering.Diagnostic) Diagnostic {
	var r Range
	if d.Span.IsValid() {
		r = Range{
			Start: doc.OffsetToPosition(d.Span.Start.Offset),
			End:   doc.OffsetToPosition(d.Span.End.Offset),
		}
	}

	severity := DiagnosticSeverityError
	if d.Severity == lowering.SeverityWarning {
		severity = DiagnosticSeverityWarning
	}

	return Diagnostic{
		Range:    r,
		Severity: severity,
		Code:     string(d.Code),
		Source:   diagnosticSource,
		Message:  d.Message,
	}
}
