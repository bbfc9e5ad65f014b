// Package ir defines the dialect-neutral intermediate representation that the
// lowering engine produces and the semantic layer consumes. Dialect syntax
// differences (clause ordering, limit spelling, literal forms) are normalized
// away before IR construction, so nothing downstream special-cases dialects.
package ir

import "github.com/leapstack-labs/sqlscope/pkg/token"

// Statement represents a SQL statement.
type Statement interface {
	stmtNode()
	GetSpan() token.Span
}

// NodeInfo provides the common span field for IR nodes.
// Embed this in node types that need position tracking.
type NodeInfo struct {
	Span token.Span
}

// GetSpan returns the node's source span.
func (n *NodeInfo) GetSpan() token.Span {
	return n.Span
}

// ---------- Statement Types ----------

// SelectStmt is a complete SELECT statement with optional WITH clause and
// set operations.
type SelectStmt struct {
	NodeInfo
	With *WithClause
	Body *SelectBody
}

func (*SelectStmt) stmtNode() {}

// WithClause holds the CTE list of a WITH clause.
type WithClause struct {
	NodeInfo
	Recursive bool
	CTEs      []*CTE
}

// CTE is one common table expression.
type CTE struct {
	NodeInfo
	Name    string
	Columns []string // optional explicit column list
	Select  *SelectStmt
}

// SetOpType represents the type of set operation combining select cores.
type SetOpType string

// Set operation kinds.
const (
	SetOpNone      SetOpType = ""
	SetOpUnion     SetOpType = "UNION"
	SetOpUnionAll  SetOpType = "UNION ALL"
	SetOpIntersect SetOpType = "INTERSECT"
	SetOpExcept    SetOpType = "EXCEPT"
)

// SelectBody is the body of a SELECT with possible chained set operations.
type SelectBody struct {
	NodeInfo
	Left  *SelectCore
	Op    SetOpType
	Right *SelectBody // nil unless Op != SetOpNone
}

// SelectCore is a single SELECT ... FROM ... block.
//
// Limit/Offset are already normalized: both the `LIMIT offset, count` and
// the `LIMIT count OFFSET offset` spellings land here identically.
type SelectCore struct {
	NodeInfo
	Distinct bool
	Items    []*SelectItem
	From     *SourceClause
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []*OrderItem
	Limit    *LimitOffset
}

// LimitOffset is the normalized row-limit pair. A nil field means the clause
// was absent; spelled "LIMIT 10" yields {Limit: <10>, Offset: nil}.
type LimitOffset struct {
	NodeInfo
	Limit  Expr
	Offset Expr
}

// SelectItem is one projection-list entry.
type SelectItem struct {
	NodeInfo
	Star      bool   // SELECT *
	TableStar string // SELECT t.*
	Expr      Expr
	Alias     string
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	NodeInfo
	Expr Expr
	Desc bool
}

// InsertStmt is an INSERT statement.
type InsertStmt struct {
	NodeInfo
	Target    *TableName
	Columns   []string
	Rows      [][]Expr    // VALUES rows, nil when Select is set
	Select    *SelectStmt // INSERT ... SELECT
	Returning []*SelectItem
}

func (*InsertStmt) stmtNode() {}

// UpdateStmt is an UPDATE statement.
type UpdateStmt struct {
	NodeInfo
	Target    *TableName
	Set       []*Assignment
	From      *SourceClause // Postgres-family UPDATE ... FROM
	Where     Expr
	Returning []*SelectItem
}

func (*UpdateStmt) stmtNode() {}

// Assignment is one SET column = expr pair.
type Assignment struct {
	NodeInfo
	Column string
	Value  Expr
}

// DeleteStmt is a DELETE statement. Using holds the extra sources of the
// Postgres-family DELETE ... USING form.
type DeleteStmt struct {
	NodeInfo
	Target    *TableName
	Using     *SourceClause
	Where     Expr
	Returning []*SelectItem
}

func (*DeleteStmt) stmtNode() {}

// DDLKind classifies DDL statements coarsely.
type DDLKind string

// DDL statement kinds.
const (
	DDLCreateTable DDLKind = "CREATE TABLE"
	DDLCreateView  DDLKind = "CREATE VIEW"
	DDLCreateIndex DDLKind = "CREATE INDEX"
	DDLAlterTable  DDLKind = "ALTER TABLE"
	DDLDropTable   DDLKind = "DROP TABLE"
	DDLDropView    DDLKind = "DROP VIEW"
	DDLTruncate    DDLKind = "TRUNCATE"
	DDLOther       DDLKind = "OTHER"
)

// DDLStmt is a data-definition statement. The engine does not model DDL
// sub-structure; it records the kind and target so the schema cache can be
// invalidated when a statement mutates the catalog.
type DDLStmt struct {
	NodeInfo
	Kind   DDLKind
	Target *TableName // nil when no single target (e.g. OTHER)
}

func (*DDLStmt) stmtNode() {}

// MutatesSchema reports whether executing the statement would change catalog
// metadata the cache may hold.
func (d *DDLStmt) MutatesSchema() bool {
	return d.Kind != DDLTruncate && d.Kind != DDLOther
}

// UnknownStmt preserves a statement region the lowering engine could not
// convert. It keeps the raw span so diagnostics and keyword-only completion
// still have something to anchor to.
type UnknownStmt struct {
	NodeInfo
	Reason string
}

func (*UnknownStmt) stmtNode() {}
