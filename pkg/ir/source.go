package ir

import "strings"

// SourceItem represents an entry in a source (FROM) clause: a table, a
// derived table, or the right side of a join.
type SourceItem interface {
	sourceNode()
	// EffectiveName returns the name unqualified column references resolve
	// against: the alias when present, otherwise the bare name.
	EffectiveName() string
}

// TableName references a table, view or CTE, optionally schema-qualified.
type TableName struct {
	NodeInfo
	Schema string
	Name   string
	Alias  string
}

func (*TableName) sourceNode() {}

// EffectiveName returns the alias if present, else the table name.
func (t *TableName) EffectiveName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Qualified returns the schema-qualified name ("schema.table" or "table").
func (t *TableName) Qualified() string {
	if t.Schema == "" {
		return t.Name
	}
	return strings.Join([]string{t.Schema, t.Name}, ".")
}

// DerivedTable is a subquery in a source clause. SQL requires an alias;
// lowering records a missing one as a diagnostic but keeps the item.
type DerivedTable struct {
	NodeInfo
	Select *SelectStmt
	Alias  string
}

func (*DerivedTable) sourceNode() {}

// EffectiveName returns the derived table's alias.
func (d *DerivedTable) EffectiveName() string {
	return d.Alias
}

// UnknownSource preserves a source-clause region that could not be lowered.
type UnknownSource struct {
	NodeInfo
	Reason string
}

func (*UnknownSource) sourceNode() {}

// EffectiveName returns "" because an unknown source exposes no name.
func (*UnknownSource) EffectiveName() string { return "" }

// JoinKind is the join type keyword.
type JoinKind string

// Join kinds. Comma-separated FROM items lower to JoinCross.
const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
	JoinCross JoinKind = "CROSS"
)

// Join connects one source item to the items before it.
type Join struct {
	NodeInfo
	Kind      JoinKind
	Natural   bool
	Right     SourceItem
	Condition Expr     // ON expr, nil for CROSS/NATURAL/USING
	Using     []string // USING (a, b) column names
}

// SourceClause is the ordered sequence of source items of one query level:
// a first item followed by join links.
type SourceClause struct {
	NodeInfo
	First SourceItem
	Joins []*Join
}

// Items returns every source item of the clause in declaration order.
func (s *SourceClause) Items() []SourceItem {
	if s == nil || s.First == nil {
		return nil
	}
	items := []SourceItem{s.First}
	for _, j := range s.Joins {
		if j.Right != nil {
			items = append(items, j.Right)
		}
	}
	return items
}
