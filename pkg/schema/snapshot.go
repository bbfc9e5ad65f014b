// Package schema provides the catalog metadata model and a concurrent
// snapshot cache. Snapshots are immutable once built; the cache swaps whole
// snapshots atomically so readers never observe a half-updated catalog.
package schema

import (
	"sort"
	"strings"
	"time"
)

// TableKind distinguishes tables from views.
type TableKind string

// Table kinds.
const (
	KindTable TableKind = "table"
	KindView  TableKind = "view"
)

// Column is one column of a table or view. Position is the 1-based ordinal
// within the table; completion preserves this order.
type Column struct {
	Name     string
	DataType string
	Nullable bool
	Position int
	Default  string
}

// Table is one table or view with its columns in declaration order.
type Table struct {
	Schema     string
	Name       string
	Kind       TableKind
	Columns    []Column
	PrimaryKey []string
}

// Qualified returns "schema.name", or just the name without a schema.
func (t *Table) Qualified() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Column returns the named column, case insensitive.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// IsPrimaryKey reports whether the named column is part of the primary key.
func (t *Table) IsPrimaryKey(name string) bool {
	for _, pk := range t.PrimaryKey {
		if strings.EqualFold(pk, name) {
			return true
		}
	}
	return false
}

// RoutineKind distinguishes functions from procedures.
type RoutineKind string

// Routine kinds.
const (
	KindFunction  RoutineKind = "function"
	KindProcedure RoutineKind = "procedure"
)

// Routine is one stored function or procedure.
type Routine struct {
	Schema     string
	Name       string
	Kind       RoutineKind
	ReturnType string
}

// Snapshot is one immutable view of the catalog. Lookups are case
// insensitive; iteration orders are deterministic.
type Snapshot struct {
	version   uint64
	fetchedAt time.Time

	tables   map[string]*Table // keyed by folded qualified name
	byName   map[string][]*Table
	routines map[string][]*Routine
}

// NewSnapshot builds a snapshot from fetched metadata.
func NewSnapshot(tables []*Table, routines []*Routine) *Snapshot {
	s := &Snapshot{
		fetchedAt: time.Now(),
		tables:    make(map[string]*Table, len(tables)),
		byName:    make(map[string][]*Table),
		routines:  make(map[string][]*Routine),
	}
	for _, t := range tables {
		s.tables[fold(t.Qualified())] = t
		s.byName[fold(t.Name)] = append(s.byName[fold(t.Name)], t)
	}
	for _, r := range routines {
		s.routines[fold(r.Name)] = append(s.routines[fold(r.Name)], r)
	}
	return s
}

func fold(name string) string {
	return strings.ToLower(name)
}

// Version is the monotonic snapshot version assigned by the cache. The zero
// value means the snapshot never went through a cache.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// FetchedAt is when the snapshot was built.
func (s *Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// Table returns the table with the given schema and name. An empty schema
// falls back to the given default schema, then to a unique unqualified
// match.
func (s *Snapshot) Table(schema, name, defaultSchema string) (*Table, bool) {
	if schema != "" {
		t, ok := s.tables[fold(schema+"."+name)]
		return t, ok
	}
	if defaultSchema != "" {
		if t, ok := s.tables[fold(defaultSchema+"."+name)]; ok {
			return t, true
		}
	}
	if t, ok := s.tables[fold(name)]; ok {
		return t, true
	}
	if matches := s.byName[fold(name)]; len(matches) == 1 {
		return matches[0], true
	}
	return nil, false
}

// Tables returns every table sorted by qualified name.
func (s *Snapshot) Tables() []*Table {
	out := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Qualified() < out[j].Qualified()
	})
	return out
}

// TablesInSchema returns the tables of one schema sorted by name.
func (s *Snapshot) TablesInSchema(schema string) []*Table {
	var out []*Table
	for _, t := range s.tables {
		if strings.EqualFold(t.Schema, schema) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schemas returns the distinct schema names, sorted.
func (s *Snapshot) Schemas() []string {
	seen := make(map[string]struct{})
	for _, t := range s.tables {
		if t.Schema != "" {
			seen[t.Schema] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Routines returns all routines matching the name, case insensitive.
func (s *Snapshot) Routines(name string) []*Routine {
	return s.routines[fold(name)]
}

// AllRoutines returns every routine sorted by schema then name.
func (s *Snapshot) AllRoutines() []*Routine {
	var out []*Routine
	for _, rs := range s.routines {
		out = append(out, rs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Schema != out[j].Schema {
			return out[i].Schema < out[j].Schema
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Empty reports whether the snapshot holds no tables.
func (s *Snapshot) Empty() bool {
	return len(s.tables) == 0
}
