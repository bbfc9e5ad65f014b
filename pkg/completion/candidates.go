package completion

import (
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/dialect"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
	"github.com/leapstack-labs/sqlscope/pkg/semantic"
)

// CandidateKind tags what a completion candidate inserts.
type CandidateKind string

// Candidate kinds.
const (
	KindKeyword  CandidateKind = "keyword"
	KindTable    CandidateKind = "table"
	KindColumn   CandidateKind = "column"
	KindFunction CandidateKind = "function"
	KindSchema   CandidateKind = "schema"
	KindView     CandidateKind = "view"
)

// Candidate is one ranked completion suggestion.
type Candidate struct {
	Label  string
	Kind   CandidateKind
	Detail string // data type, signature or qualified name
}

// Request carries everything candidate generation draws from. Scope and
// Snapshot may be nil; generation then degrades to what remains.
type Request struct {
	Context  Context
	Scope    *semantic.Scope
	Snapshot *schema.Snapshot
	Dialect  *dialect.Dialect
	Prefix   string // word fragment before the cursor, filters candidates
}

// Candidates produces the ranked suggestion list for a classified
// position. Order within a group is deterministic: declaration order for
// columns, lexical order for catalog names and keywords.
func Candidates(req Request) []Candidate {
	var out []Candidate
	switch req.Context.Kind {
	case ExpectTableOrSchema:
		out = tableCandidates(req)
	case ExpectColumn:
		out = columnCandidates(req)
	case ExpectFunctionOrColumn:
		out = append(columnCandidates(req), functionCandidates(req)...)
	case ExpectFunctionArgument:
		out = append(columnCandidates(req), functionCandidates(req)...)
	default:
		// ExpectKeyword and Indeterminate both fall back to the keyword
		// list rather than returning nothing.
		out = keywordCandidates(req)
	}
	return filterPrefix(out, req.Prefix)
}

func keywordCandidates(req Request) []Candidate {
	if req.Dialect == nil {
		return nil
	}
	kws := req.Dialect.Keywords()
	out := make([]Candidate, 0, len(kws))
	for _, kw := range kws {
		out = append(out, Candidate{Label: kw, Kind: KindKeyword})
	}
	return out
}

// tableCandidates lists CTEs first: they shadow catalog tables and are
// almost always what the author is reaching for.
func tableCandidates(req Request) []Candidate {
	var out []Candidate
	if req.Scope != nil {
		for _, cte := range req.Scope.VisibleCTEs() {
			out = append(out, Candidate{Label: cte.Name, Kind: KindTable, Detail: "cte"})
		}
	}
	if req.Snapshot != nil {
		for _, tbl := range req.Snapshot.Tables() {
			kind := KindTable
			if tbl.Kind == schema.KindView {
				kind = KindView
			}
			out = append(out, Candidate{Label: tbl.Name, Kind: kind, Detail: tbl.Qualified()})
		}
		for _, name := range req.Snapshot.Schemas() {
			out = append(out, Candidate{Label: name, Kind: KindSchema})
		}
	}
	return out
}

func columnCandidates(req Request) []Candidate {
	if req.Scope == nil {
		return nil
	}
	if q := req.Context.Qualifier; q != "" {
		for sc := req.Scope; sc != nil; sc = sc.Parent {
			src, ok := sc.SourceNamed(q)
			if !ok {
				continue
			}
			out := make([]Candidate, 0, len(src.Columns))
			for _, col := range src.Columns {
				out = append(out, Candidate{Label: col.Name, Kind: KindColumn, Detail: col.DataType})
			}
			return out
		}
		return nil
	}

	var out []Candidate
	for _, src := range req.Scope.VisibleSources() {
		for _, col := range src.Columns {
			detail := col.DataType
			if src.Name != "" {
				detail = strings.TrimSpace(src.Name + " " + col.DataType)
			}
			out = append(out, Candidate{Label: col.Name, Kind: KindColumn, Detail: detail})
		}
	}
	return out
}

func functionCandidates(req Request) []Candidate {
	var out []Candidate
	if req.Dialect != nil {
		for _, name := range req.Dialect.Functions() {
			doc, _ := req.Dialect.LookupFunction(name)
			out = append(out, Candidate{Label: name, Kind: KindFunction, Detail: doc.Signature})
		}
	}
	if req.Snapshot != nil {
		for _, r := range req.Snapshot.AllRoutines() {
			out = append(out, Candidate{Label: r.Name, Kind: KindFunction, Detail: r.ReturnType})
		}
	}
	return out
}

func filterPrefix(in []Candidate, prefix string) []Candidate {
	if prefix == "" {
		return in
	}
	out := in[:0]
	for _, c := range in {
		if len(c.Label) >= len(prefix) && strings.EqualFold(c.Label[:len(prefix)], prefix) {
			out = append(out, c)
		}
	}
	return out
}
