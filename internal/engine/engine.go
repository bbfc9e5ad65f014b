// Package engine sequences the analysis pipeline for one request: parse,
// lower, resolve, classify. It owns per-document serialization and the
// schema cache consultation; everything below it is pure computation on
// immutable inputs.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/sqlscope/internal/syntax"
	"github.com/leapstack-labs/sqlscope/pkg/completion"
	"github.com/leapstack-labs/sqlscope/pkg/cst"
	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/ir"
	"github.com/leapstack-labs/sqlscope/pkg/lowering"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
	"github.com/leapstack-labs/sqlscope/pkg/semantic"
)

// Request is one analysis request against a document version.
type Request struct {
	DocID   string
	Version int
	Text    string
	Dialect string
	Cursor  *int // byte offset; nil when no completion/hover is wanted
}

// Result is the outcome of one request. Version echoes the request so a
// caller holding a newer document can detect and discard stale results.
type Result struct {
	DocID       string
	Version     int
	Outcome     lowering.Outcome
	Diagnostics []lowering.Diagnostic
	Statements  []ir.Statement

	// Set only when the request carried a cursor.
	Context    *completion.Context
	Candidates []completion.Candidate
	Hover      *Hover

	// SchemaDegraded reports that catalog metadata was stale, empty or
	// unavailable; resolution ran with reduced cross-checking.
	SchemaDegraded bool
}

// Hover is the information shown for the symbol under the cursor.
type Hover struct {
	Title  string
	Detail string
}

// Engine is the request orchestrator. Safe for concurrent use; requests
// for the same document serialize, requests across documents run freely.
type Engine struct {
	cache    *schema.Cache // nil when no catalog is configured
	logger   *slog.Logger
	maxDepth int

	mu   sync.Mutex
	docs map[string]*document
}

type document struct {
	mu      sync.Mutex
	version int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMaxDepth bounds syntax-tree depth before lowering fails.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// New builds an Engine. cache may be nil; analysis then runs without
// catalog cross-checks.
func New(cache *schema.Cache, opts ...Option) *Engine {
	e := &Engine{
		cache:    cache,
		logger:   slog.Default(),
		maxDepth: lowering.DefaultMaxDepth,
		docs:     make(map[string]*document),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs the full pipeline for one document version. A request for
// an older version than the latest seen still completes and returns; the
// caller compares Result.Version against its own state.
func (e *Engine) Analyze(ctx context.Context, req Request) (*Result, error) {
	d, err := dialect.Get(req.Dialect)
	if err != nil {
		return nil, err
	}

	doc := e.document(req.DocID)
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if req.Version > doc.version {
		doc.version = req.Version
	}

	root, err := syntax.NewParser(d).Parse(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.DocID, err)
	}

	low := lowering.New(d, lowering.WithMaxDepth(e.maxDepth)).Lower(root)

	res := &Result{
		DocID:       req.DocID,
		Version:     req.Version,
		Outcome:     low.Outcome,
		Diagnostics: low.Diagnostics,
		Statements:  low.Statements,
	}

	snap, degraded, release, err := e.acquireSchema(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	res.SchemaDegraded = degraded

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	an := semantic.Analyze(low.Statements, snap, d)
	res.Diagnostics = append(res.Diagnostics, an.Diagnostics...)

	e.invalidateOnDDL(low.Statements, req.DocID)

	if req.Cursor != nil {
		e.complete(res, req, root, low, an, snap, d)
	}

	e.logger.Debug("analyzed document",
		"doc", req.DocID,
		"version", req.Version,
		"dialect", d.Name,
		"outcome", res.Outcome.String(),
		"diagnostics", len(res.Diagnostics))
	return res, nil
}

func (e *Engine) document(id string) *document {
	e.mu.Lock()
	defer e.mu.Unlock()
	doc, ok := e.docs[id]
	if !ok {
		doc = &document{}
		e.docs[id] = doc
	}
	return doc
}

// Forget drops per-document bookkeeping after a document closes.
func (e *Engine) Forget(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.docs, docID)
}

// acquireSchema obtains the snapshot handle for the duration of one
// request. The release func is a no-op when no cache is configured.
func (e *Engine) acquireSchema(ctx context.Context) (*schema.Snapshot, bool, func(), error) {
	if e.cache == nil {
		return nil, false, func() {}, nil
	}
	h, err := e.cache.Acquire(ctx)
	if err != nil {
		return nil, false, nil, err
	}
	return h.Snapshot(), h.Degraded(), h.Release, nil
}

// invalidateOnDDL drops the cached snapshot when the document contains a
// statement that mutates catalog metadata.
func (e *Engine) invalidateOnDDL(stmts []ir.Statement, docID string) {
	if e.cache == nil {
		return
	}
	for _, stmt := range stmts {
		ddl, ok := stmt.(*ir.DDLStmt)
		if !ok || !ddl.MutatesSchema() {
			continue
		}
		e.logger.Debug("schema-mutating statement, invalidating catalog cache",
			"doc", docID, "kind", string(ddl.Kind))
		e.cache.Invalidate()
		return
	}
}

func (e *Engine) complete(res *Result, req Request, root *cst.Node, low *lowering.Result, an *semantic.Analysis, snap *schema.Snapshot, d *dialect.Dialect) {
	offset := clamp(*req.Cursor, 0, len(req.Text))
	cctx := completion.Classify(root, low, offset)
	res.Context = &cctx
	res.Candidates = completion.Candidates(completion.Request{
		Context:  cctx,
		Scope:    an.ScopeAt(offset),
		Snapshot: snap,
		Dialect:  d,
		Prefix:   wordBefore(req.Text, offset),
	})
	res.Hover = e.hover(an, d, req.Text, offset)
}

// hover resolves the symbol under the cursor: a column reference first,
// then a table reference, then a dialect function.
func (e *Engine) hover(an *semantic.Analysis, d *dialect.Dialect, text string, offset int) *Hover {
	if ref, ok := an.ResolutionAt(offset); ok {
		return columnHover(ref)
	}
	if ref, ok := an.TableRefAt(offset); ok {
		return tableHover(ref)
	}
	word := wordAround(text, offset)
	if doc, ok := d.LookupFunction(word); ok {
		return &Hover{Title: doc.Signature, Detail: doc.Description}
	}
	return nil
}

func columnHover(ref semantic.ResolvedRef) *Hover {
	switch ref.Res.Kind {
	case semantic.Resolved:
		h := &Hover{Title: ref.Ref.Column}
		if src := ref.Res.Source; src != nil && src.Name != "" {
			h.Title = src.Name + "." + ref.Ref.Column
		}
		if col := ref.Res.Column; col != nil {
			h.Detail = col.DataType
			if col.Primary {
				h.Detail += ", primary key"
			} else if col.Nullable {
				h.Detail += ", nullable"
			}
		}
		if ref.Res.Outer {
			h.Detail += " (outer reference)"
		}
		return h
	case semantic.Ambiguous:
		return &Hover{Title: ref.Ref.Column, Detail: "ambiguous reference"}
	default:
		return nil
	}
}

func tableHover(ref semantic.TableRef) *Hover {
	src := ref.Source
	if src == nil || src.Name == "" {
		return nil
	}
	h := &Hover{Title: src.Name}
	if src.Table != nil {
		h.Title = src.Table.Qualified()
		h.Detail = fmt.Sprintf("%d columns", len(src.Table.Columns))
	} else if src.Kind == semantic.SourceCTE {
		h.Detail = "common table expression"
	}
	return h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// wordBefore returns the identifier fragment ending at the offset, the
// prefix an in-progress completion should filter on.
func wordBefore(text string, offset int) string {
	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	return text[start:offset]
}

func wordAround(text string, offset int) string {
	start := offset
	for start > 0 && isWordByte(text[start-1]) {
		start--
	}
	end := offset
	for end < len(text) && isWordByte(text[end]) {
		end++
	}
	return text[start:end]
}
