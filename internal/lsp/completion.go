package lsp

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/sqlscope/internal/engine"
	"github.com/leapstack-labs/sqlscope/pkg/completion"
)

// getCompletions analyzes the document at the cursor and maps the resulting
// candidates to LSP completion items.
func (s *Server) getCompletions(ctx context.Context, params CompletionParams) []CompletionItem {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	offset := doc.PositionToOffset(params.Position)
	res, err := s.engine.Analyze(ctx, engine.Request{
		DocID:   params.TextDocument.URI,
		Version: doc.Version,
		Text:    doc.Content,
		Dialect: s.dialect,
		Cursor:  &offset,
	})
	if err != nil {
		s.logger.Error("Completion analysis failed", "uri", params.TextDocument.URI, "error", err)
		return nil
	}

	items := make([]CompletionItem, 0, len(res.Candidates))
	for i, c := range res.Candidates {
		items = append(items, CompletionItem{
			Label:  c.Label,
			Kind:   itemKind(c.Kind),
			Detail: c.Detail,
			// Preserve context ranking over the client's alphabetical sort.
			SortText: fmt.Sprintf("%04d", i),
		})
	}
	return items
}

// itemKind maps a candidate kind to the LSP completion item kind.
func itemKind(kind completion.CandidateKind) CompletionItemKind {
	switch kind {
	case completion.KindKeyword:
		return CompletionItemKindKeyword
	case completion.KindTable:
		return CompletionItemKindClass
	case completion.KindView:
		return CompletionItemKindInterface
	case completion.KindColumn:
		return CompletionItemKindField
	case completion.KindFunction:
		return CompletionItemKindFunction
	case completion.KindSchema:
		return CompletionItemKindModule
	default:
		return CompletionItemKindText
	}
}

// getHover analyzes the document at the cursor and renders the hover result.
func (s *Server) getHover(ctx context.Context, params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	offset := doc.PositionToOffset(params.Position)
	res, err := s.engine.Analyze(ctx, engine.Request{
		DocID:   params.TextDocument.URI,
		Version: doc.Version,
		Text:    doc.Content,
		Dialect: s.dialect,
		Cursor:  &offset,
	})
	if err != nil {
		s.logger.Error("Hover analysis failed", "uri", params.TextDocument.URI, "error", err)
		return nil
	}
	if res.Hover == nil {
		return nil
	}

	value := fmt.Sprintf("**%s**", res.Hover.Title)
	if res.Hover.Detail != "" {
		value += "\n\n" + res.Hover.Detail
	}

	return &Hover{
		Contents: MarkupContent{
			Kind:  MarkupKindMarkdown,
			Value: value,
		},
	}
}
