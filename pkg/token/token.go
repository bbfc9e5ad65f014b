// Package token defines lexical token types and source positions shared by
// the bundled syntax-tree producer and the CST node model.
package token

import "fmt"

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT   // identifier
	NUMBER  // 123, 45.67, 1e10
	STRING  // 'hello'
	BINDVAR // ? or $1

	// Operators
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
	DPIPE   // ||
	EQ      // =
	NE      // != or <>
	LT      // <
	GT      // >
	LE      // <=
	GE      // >=
	DCOLON  // :: (Postgres family cast)
	DOT     // .
	COMMA   // ,
	SEMI    // ;
	LPAREN  // (
	RPAREN  // )

	// Keywords (alphabetical)
	ALL
	ALTER
	AND
	AS
	ASC
	BETWEEN
	BY
	CASE
	CAST
	CREATE
	CROSS
	CURRENT
	DELETE
	DESC
	DISTINCT
	DROP
	ELSE
	END
	EXCEPT
	EXISTS
	FALSE
	FOLLOWING
	FROM
	FULL
	GROUP
	HAVING
	ILIKE
	IN
	INDEX
	INNER
	INSERT
	INTERSECT
	INTO
	IS
	JOIN
	LATERAL
	LEFT
	LIKE
	LIMIT
	NATURAL
	NOT
	NULL
	NULLS
	OFFSET
	ON
	OR
	ORDER
	OUTER
	OVER
	PARTITION
	PRECEDING
	RANGE
	RECURSIVE
	RETURNING
	RIGHT
	ROW
	ROWS
	SELECT
	SET
	TABLE
	THEN
	TRUE
	TRUNCATE
	UNBOUNDED
	UNION
	UPDATE
	USING
	VALUES
	VIEW
	WHEN
	WHERE
	WINDOW
	WITH
)

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// Span returns the source span covered by the token.
func (t Token) Span() Span {
	end := t.Pos
	end.Column += len(t.Literal)
	end.Offset += len(t.Literal)
	return Span{Start: t.Pos, End: end}
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:   "IDENT",
	NUMBER:  "NUMBER",
	STRING:  "STRING",
	BINDVAR: "BINDVAR",

	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",
	DPIPE:   "||",
	EQ:      "=",
	NE:      "!=",
	LT:      "<",
	GT:      ">",
	LE:      "<=",
	GE:      ">=",
	DCOLON:  "::",
	DOT:     ".",
	COMMA:   ",",
	SEMI:    ";",
	LPAREN:  "(",
	RPAREN:  ")",

	ALL:       "ALL",
	ALTER:     "ALTER",
	AND:       "AND",
	AS:        "AS",
	ASC:       "ASC",
	BETWEEN:   "BETWEEN",
	BY:        "BY",
	CASE:      "CASE",
	CAST:      "CAST",
	CREATE:    "CREATE",
	CROSS:     "CROSS",
	CURRENT:   "CURRENT",
	DELETE:    "DELETE",
	DESC:      "DESC",
	DISTINCT:  "DISTINCT",
	DROP:      "DROP",
	ELSE:      "ELSE",
	END:       "END",
	EXCEPT:    "EXCEPT",
	EXISTS:    "EXISTS",
	FALSE:     "FALSE",
	FOLLOWING: "FOLLOWING",
	FROM:      "FROM",
	FULL:      "FULL",
	GROUP:     "GROUP",
	HAVING:    "HAVING",
	ILIKE:     "ILIKE",
	IN:        "IN",
	INDEX:     "INDEX",
	INNER:     "INNER",
	INSERT:    "INSERT",
	INTERSECT: "INTERSECT",
	INTO:      "INTO",
	IS:        "IS",
	JOIN:      "JOIN",
	LATERAL:   "LATERAL",
	LEFT:      "LEFT",
	LIKE:      "LIKE",
	LIMIT:     "LIMIT",
	NATURAL:   "NATURAL",
	NOT:       "NOT",
	NULL:      "NULL",
	NULLS:     "NULLS",
	OFFSET:    "OFFSET",
	ON:        "ON",
	OR:        "OR",
	ORDER:     "ORDER",
	OUTER:     "OUTER",
	OVER:      "OVER",
	PARTITION: "PARTITION",
	PRECEDING: "PRECEDING",
	RANGE:     "RANGE",
	RECURSIVE: "RECURSIVE",
	RETURNING: "RETURNING",
	RIGHT:     "RIGHT",
	ROW:       "ROW",
	ROWS:      "ROWS",
	SELECT:    "SELECT",
	SET:       "SET",
	TABLE:     "TABLE",
	THEN:      "THEN",
	TRUE:      "TRUE",
	TRUNCATE:  "TRUNCATE",
	UNBOUNDED: "UNBOUNDED",
	UNION:     "UNION",
	UPDATE:    "UPDATE",
	USING:     "USING",
	VALUES:    "VALUES",
	VIEW:      "VIEW",
	WHEN:      "WHEN",
	WHERE:     "WHERE",
	WINDOW:    "WINDOW",
	WITH:      "WITH",
}

// keywords maps lowercase keyword strings to their token types.
var keywords = map[string]TokenType{
	"all":       ALL,
	"alter":     ALTER,
	"and":       AND,
	"as":        AS,
	"asc":       ASC,
	"between":   BETWEEN,
	"by":        BY,
	"case":      CASE,
	"cast":      CAST,
	"create":    CREATE,
	"cross":     CROSS,
	"current":   CURRENT,
	"delete":    DELETE,
	"desc":      DESC,
	"distinct":  DISTINCT,
	"drop":      DROP,
	"else":      ELSE,
	"end":       END,
	"except":    EXCEPT,
	"exists":    EXISTS,
	"false":     FALSE,
	"following": FOLLOWING,
	"from":      FROM,
	"full":      FULL,
	"group":     GROUP,
	"having":    HAVING,
	"ilike":     ILIKE,
	"in":        IN,
	"index":     INDEX,
	"inner":     INNER,
	"insert":    INSERT,
	"intersect": INTERSECT,
	"into":      INTO,
	"is":        IS,
	"join":      JOIN,
	"lateral":   LATERAL,
	"left":      LEFT,
	"like":      LIKE,
	"limit":     LIMIT,
	"natural":   NATURAL,
	"not":       NOT,
	"null":      NULL,
	"nulls":     NULLS,
	"offset":    OFFSET,
	"on":        ON,
	"or":        OR,
	"order":     ORDER,
	"outer":     OUTER,
	"over":      OVER,
	"partition": PARTITION,
	"preceding": PRECEDING,
	"range":     RANGE,
	"recursive": RECURSIVE,
	"returning": RETURNING,
	"right":     RIGHT,
	"row":       ROW,
	"rows":      ROWS,
	"select":    SELECT,
	"set":       SET,
	"table":     TABLE,
	"then":      THEN,
	"true":      TRUE,
	"truncate":  TRUNCATE,
	"unbounded": UNBOUNDED,
	"union":     UNION,
	"update":    UPDATE,
	"using":     USING,
	"values":    VALUES,
	"view":      VIEW,
	"when":      WHEN,
	"where":     WHERE,
	"window":    WINDOW,
	"with":      WITH,
}

// LookupIdent returns the token type for the given lowercase identifier.
// If the identifier is a keyword, the keyword token type is returned;
// otherwise IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= ALL && t <= WITH
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RPAREN
}
