// Package semantic builds name scopes over the IR and resolves column
// references against them, cross-checking the catalog snapshot when one is
// available. Scopes are built bottom-up: CTEs first, then derived tables,
// then the enclosing query, so every reference resolves against fully
// known sources.
package semantic

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/sqlscope/pkg/schema"
	"github.com/leapstack-labs/sqlscope/pkg/token"
)

// SourceKind classifies where a scope source came from.
type SourceKind int

// Source kinds.
const (
	SourceTable SourceKind = iota
	SourceView
	SourceCTE
	SourceDerived
	SourceUnknown
)

// ColumnInfo is one column a source exposes.
type ColumnInfo struct {
	Name     string
	DataType string // "" when not known from the catalog
	Nullable bool
	Primary  bool
}

// Source is one name-resolvable entry of a scope: a table, view, CTE or
// derived table, under its effective name.
type Source struct {
	Name    string // effective name: alias, else bare table name
	Kind    SourceKind
	Span    token.Span
	Table   *schema.Table // catalog backing, nil for CTEs and derived tables
	Columns []ColumnInfo  // declaration order

	// Complete reports whether Columns is the full column set. False for
	// tables missing from the catalog and star projections over unknown
	// sources; resolution then refuses to call absent columns unknown.
	Complete bool
}

// Column returns the named column, case insensitive.
func (s *Source) Column(name string) (*ColumnInfo, bool) {
	for i := range s.Columns {
		if strings.EqualFold(s.Columns[i].Name, name) {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// Scope is one level of name visibility. Sources keep declaration order;
// lookups that miss locally continue in the parent (correlated references).
type Scope struct {
	Parent  *Scope
	Sources []*Source
	Span    token.Span

	ctes map[string]*Source
}

func newScope(parent *Scope, span token.Span) *Scope {
	return &Scope{Parent: parent, Span: span, ctes: make(map[string]*Source)}
}

// CTE returns the in-scope CTE with the given name, walking outward.
func (s *Scope) CTE(name string) (*Source, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if src, ok := sc.ctes[strings.ToLower(name)]; ok {
			return src, true
		}
	}
	return nil, false
}

// SourceNamed returns the local source with the given effective name.
func (s *Scope) SourceNamed(name string) (*Source, bool) {
	for _, src := range s.Sources {
		if strings.EqualFold(src.Name, name) {
			return src, true
		}
	}
	return nil, false
}

// VisibleSources returns the local sources in declaration order.
func (s *Scope) VisibleSources() []*Source {
	return s.Sources
}

// VisibleCTEs returns every CTE in scope, innermost first. Shadowed names
// appear once.
func (s *Scope) VisibleCTEs() []*Source {
	var out []*Source
	seen := make(map[string]struct{})
	for sc := s; sc != nil; sc = sc.Parent {
		for name, src := range sc.ctes {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, src)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AllColumns returns every column of every local source in declaration
// order, the expansion order of an unqualified star.
func (s *Scope) AllColumns() []ColumnInfo {
	var out []ColumnInfo
	for _, src := range s.Sources {
		out = append(out, src.Columns...)
	}
	return out
}
