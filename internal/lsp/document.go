package lsp

import (
	"strings"
	"sync"
)

// Document represents an open text document.
type Document struct {
	URI     string
	Content string
	Version int
	Lines   []int // byte offset of each line start
}

// DocumentStore manages open documents.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds a document to the store.
func (s *DocumentStore) Open(uri, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
	s.documents[uri] = doc
	return doc
}

// Update replaces the content of an open document.
func (s *DocumentStore) Update(uri, content string, version int) *Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[uri]
	if !ok {
		doc = &Document{URI: uri}
		s.documents[uri] = doc
	}
	doc.Content = content
	doc.Version = version
	doc.Lines = computeLineOffsets(content)
	return doc
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uri)
}

// Get returns a document by URI, or nil if not open.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents[uri]
}

// computeLineOffsets returns the byte offset of each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

// PositionToOffset converts an LSP position to a byte offset.
func (d *Document) PositionToOffset(pos Position) int {
	line := int(pos.Line)
	if line >= len(d.Lines) {
		return len(d.Content)
	}

	offset := d.Lines[line] + int(pos.Character)

	// Clamp to the end of the line
	lineEnd := len(d.Content)
	if line+1 < len(d.Lines) {
		lineEnd = d.Lines[line+1] - 1
	}
	if offset > lineEnd {
		offset = lineEnd
	}
	return offset
}

// OffsetToPosition converts a byte offset to an LSP position.
func (d *Document) OffsetToPosition(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Content) {
		offset = len(d.Content)
	}

	line := 0
	for i, lineOffset := range d.Lines {
		if lineOffset > offset {
			break
		}
		line = i
	}

	return Position{
		Line:      uint32(line),
		Character: uint32(offset - d.Lines[line]),
	}
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}

// PathToURI converts a file system path to a file:// URI.
func PathToURI(path string) string {
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}
