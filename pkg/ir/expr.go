package ir

import "github.com/leapstack-labs/sqlscope/pkg/token"

// Expr represents an expression in SQL.
type Expr interface {
	exprNode()
	GetSpan() token.Span
}

// ColumnRef is a column reference, possibly qualified by a table or alias.
type ColumnRef struct {
	NodeInfo
	Table  string // optional qualifier
	Column string
}

func (*ColumnRef) exprNode() {}

// LiteralType classifies literal values.
type LiteralType int

// Literal value types.
const (
	LiteralNumber LiteralType = iota
	LiteralString
	LiteralBool
	LiteralNull
)

// Literal is a literal value. Value holds the normalized text: numbers keep
// their source spelling, strings are unquoted and unescaped.
type Literal struct {
	NodeInfo
	Type  LiteralType
	Value string
}

func (*Literal) exprNode() {}

// BindParam is a query placeholder (? or $1).
type BindParam struct {
	NodeInfo
	Index int // 1-based for $n style, 0 for anonymous ?
}

func (*BindParam) exprNode() {}

// BinaryOp is the operator of a BinaryExpr, stored as the normalized SQL
// spelling ("=", "<>", "AND", "LIKE", ...).
type BinaryOp string

// BinaryExpr is a binary expression.
type BinaryExpr struct {
	NodeInfo
	Left  Expr
	Op    BinaryOp
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is a unary expression (NOT x, -x).
type UnaryExpr struct {
	NodeInfo
	Op   string
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall is a function invocation, optionally with an OVER clause.
type FuncCall struct {
	NodeInfo
	Name     string
	Distinct bool
	Star     bool // COUNT(*)
	Args     []Expr
	Over     *WindowSpec // non-nil makes this a window invocation
}

func (*FuncCall) exprNode() {}

// WindowSpec is an OVER (...) specification.
type WindowSpec struct {
	NodeInfo
	PartitionBy []Expr
	OrderBy     []*OrderItem
}

// Subquery is a parenthesized SELECT used as an expression.
type Subquery struct {
	NodeInfo
	Select *SelectStmt
	Exists bool // EXISTS (...)
}

func (*Subquery) exprNode() {}

// CaseExpr is a CASE expression.
type CaseExpr struct {
	NodeInfo
	Operand Expr // optional CASE operand WHEN ...
	Whens   []*WhenClause
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// WhenClause is one WHEN condition THEN result arm.
type WhenClause struct {
	NodeInfo
	Condition Expr
	Result    Expr
}

// InExpr is expr [NOT] IN (list) or expr [NOT] IN (subquery). Exactly one
// of List and Subquery is set.
type InExpr struct {
	NodeInfo
	Expr     Expr
	Not      bool
	List     []Expr
	Subquery *Subquery
}

func (*InExpr) exprNode() {}

// BetweenExpr is expr [NOT] BETWEEN low AND high.
type BetweenExpr struct {
	NodeInfo
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// IsExpr is expr IS [NOT] NULL/TRUE/FALSE. Value holds the uppercased
// right-hand keyword.
type IsExpr struct {
	NodeInfo
	Expr  Expr
	Not   bool
	Value string
}

func (*IsExpr) exprNode() {}

// CastExpr is a CAST(expr AS type) or expr::type.
type CastExpr struct {
	NodeInfo
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// UnknownExpr preserves an expression region that could not be lowered.
// It carries the original span so diagnostics can point at it, and so
// Partial lowering keeps the surrounding statement intact.
type UnknownExpr struct {
	NodeInfo
	Reason string
}

func (*UnknownExpr) exprNode() {}
